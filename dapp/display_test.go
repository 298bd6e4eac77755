package dapp_test

import (
	"bytes"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/tidwall/gjson"

	"github.com/GPTx-global/flightsurety/dapp"
)

var _ = Describe("Display", func() {
	var buf *bytes.Buffer

	results := []dapp.Result{
		{Label: "Operational Status", Value: true},
		{Label: "Fetch Flight Status", Error: errors.New("execution reverted")},
	}

	BeforeEach(func() {
		buf = new(bytes.Buffer)
	})

	It("renders a titled table with errors in place of values", func() {
		Expect(dapp.Display(buf, dapp.FormatText, "Operational Status", "Check if contract is operational", results)).To(Succeed())

		lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
		Expect(lines).To(HaveLen(4))
		Expect(string(lines[0])).To(Equal("Operational Status"))
		Expect(string(lines[1])).To(Equal("Check if contract is operational"))
		Expect(string(lines[2])).To(MatchRegexp(`^Operational Status\s+true$`))
		Expect(string(lines[3])).To(MatchRegexp(`^Fetch Flight Status\s+execution reverted$`))
	})

	It("renders one JSON document", func() {
		Expect(dapp.Display(buf, dapp.FormatJSON, "Oracles", "Trigger oracles", results)).To(Succeed())

		doc := buf.String()
		Expect(gjson.Valid(doc)).To(BeTrue())
		Expect(gjson.Get(doc, "title").String()).To(Equal("Oracles"))
		Expect(gjson.Get(doc, "results.#").Int()).To(Equal(int64(2)))
		Expect(gjson.Get(doc, "results.0.value").String()).To(Equal("true"))
		Expect(gjson.Get(doc, "results.1.error").String()).To(Equal("execution reverted"))
		Expect(gjson.Get(doc, "results.1.value").Exists()).To(BeFalse())
	})

	It("renders an empty section", func() {
		Expect(dapp.Display(buf, dapp.FormatJSON, "Buy", "Buy Insurance", nil)).To(Succeed())
		Expect(gjson.Get(buf.String(), "results").IsArray()).To(BeTrue())
	})

	It("joins the errors of failed rows", func() {
		err := dapp.Err(results)
		Expect(err).To(MatchError(ContainSubstring("Fetch Flight Status: execution reverted")))
		Expect(dapp.Err(results[:1])).To(Succeed())
	})

	It("rejects an unknown format", func() {
		Expect(dapp.Display(buf, "yaml", "Buy", "Buy Insurance", results)).NotTo(Succeed())
	})
})
