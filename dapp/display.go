package dapp

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/tidwall/sjson"
)

const (
	FormatText = "text"
	FormatJSON = "json"
)

// Result is one labelled row of a display section. A row with an error shows
// the error text in place of the value.
type Result struct {
	Label string
	Error error
	Value any
}

func (r Result) text() string {
	if r.Error != nil {
		return r.Error.Error()
	}
	if r.Value == nil {
		return ""
	}
	return fmt.Sprint(r.Value)
}

// Err joins the errors of every failed row, or returns nil when all succeeded.
func Err(results []Result) error {
	var errs []error
	for _, r := range results {
		if r.Error != nil {
			errs = append(errs, fmt.Errorf("%s: %w", r.Label, r.Error))
		}
	}
	return errors.Join(errs...)
}

// Display renders a titled section of results to w, as an aligned table or
// as a single JSON document.
func Display(w io.Writer, format, title, description string, results []Result) error {
	switch format {
	case "", FormatText:
		return displayText(w, title, description, results)
	case FormatJSON:
		return displayJSON(w, title, description, results)
	default:
		return fmt.Errorf("unknown display format: %s", format)
	}
}

func displayText(w io.Writer, title, description string, results []Result) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "%s\n", title)
	fmt.Fprintf(tw, "%s\n", description)
	for _, r := range results {
		fmt.Fprintf(tw, "%s\t%s\n", r.Label, r.text())
	}
	return tw.Flush()
}

func displayJSON(w io.Writer, title, description string, results []Result) error {
	doc, err := sjson.Set("", "title", title)
	if err != nil {
		return err
	}
	if doc, err = sjson.Set(doc, "description", description); err != nil {
		return err
	}
	if doc, err = sjson.SetRaw(doc, "results", "[]"); err != nil {
		return err
	}

	for i, r := range results {
		prefix := "results." + strconv.Itoa(i)
		if doc, err = sjson.Set(doc, prefix+".label", r.Label); err != nil {
			return err
		}

		key, value := ".value", r.text()
		if r.Error != nil {
			key = ".error"
		}
		if doc, err = sjson.Set(doc, prefix+key, value); err != nil {
			return err
		}
	}

	_, err = fmt.Fprintln(w, doc)
	return err
}
