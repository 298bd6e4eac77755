package dapp_test

import (
	"context"
	"errors"
	"math/big"
	"time"

	errorsmod "cosmossdk.io/errors"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/GPTx-global/flightsurety/dapp"
	"github.com/GPTx-global/flightsurety/oracle/client"
	"github.com/GPTx-global/flightsurety/oracle/client/clienttest"
	"github.com/GPTx-global/flightsurety/oracle/config"
	"github.com/GPTx-global/flightsurety/oracle/types"
)

var (
	ownerAddress   = common.HexToAddress("0x627306090abaB3A6e1400e9345bC60c78a8BEf57")
	airlineAddress = common.HexToAddress("0xf17f52151EbEF6C7334FAD080c5704D77216b732")
	appAddress     = common.HexToAddress("0x0000000000000000000000000000000000000a99")
	dataAddress    = common.HexToAddress("0x0000000000000000000000000000000000000d47")
)

var _ = Describe("Contract", func() {
	var (
		ctx      context.Context
		backend  *clienttest.Backend
		contract *dapp.Contract
		appABI   abi.ABI
		dataABI  abi.ABI
		now      time.Time
	)

	// decode returns the method and arguments of a sent transaction.
	decode := func(parsed abi.ABI, tx *ethtypes.Transaction) (string, []any) {
		method, err := parsed.MethodById(tx.Data()[:4])
		Expect(err).NotTo(HaveOccurred())
		args, err := method.Inputs.Unpack(tx.Data()[4:])
		Expect(err).NotTo(HaveOccurred())
		return method.Name, args
	}

	sender := func(tx *ethtypes.Transaction) common.Address {
		from, err := ethtypes.Sender(ethtypes.LatestSignerForChainID(big.NewInt(1337)), tx)
		Expect(err).NotTo(HaveOccurred())
		return from
	}

	BeforeEach(func() {
		ctx = context.Background()
		backend = clienttest.NewBackend()
		now = time.Unix(1_700_000_000, 0)

		accounts, err := client.NewAccounts(config.DefaultMnemonic, 11)
		Expect(err).NotTo(HaveOccurred())

		network := config.Network{
			URL:         "http://localhost:8545",
			AppAddress:  appAddress.Hex(),
			DataAddress: dataAddress.Hex(),
		}
		clt, err := client.NewClient(ctx, backend, network, accounts, client.Options{})
		Expect(err).NotTo(HaveOccurred())

		contract, err = dapp.New(clt)
		Expect(err).NotTo(HaveOccurred())
		contract.WithClock(func() time.Time { return now })

		appABI, err = client.LoadABI("", client.FlightSuretyAppABI)
		Expect(err).NotTo(HaveOccurred())
		dataABI, err = client.LoadABI("", client.FlightSuretyDataABI)
		Expect(err).NotTo(HaveOccurred())
	})

	It("assigns owner, airline and passenger roles in wallet order", func() {
		Expect(contract.Owner()).To(Equal(ownerAddress))
		Expect(contract.Airlines()).To(HaveLen(dapp.AirlineCount))
		Expect(contract.Airlines()[0]).To(Equal(airlineAddress))
		Expect(contract.Passengers()).To(HaveLen(dapp.PassengerCount))
		Expect(contract.Passengers()).NotTo(ContainElement(ownerAddress))
	})

	It("rejects a wallet too small for every role", func() {
		accounts, err := client.NewAccounts(config.DefaultMnemonic, 3)
		Expect(err).NotTo(HaveOccurred())
		clt, err := client.NewClient(ctx, backend, config.Network{AppAddress: appAddress.Hex()}, accounts, client.Options{})
		Expect(err).NotTo(HaveOccurred())

		_, err = dapp.New(clt)
		Expect(errorsmod.IsOf(err, types.ErrConfig)).To(BeTrue())
	})

	It("buys insurance with exactly the first airline, the flight and the clock time", func() {
		payload, err := contract.BuyInsurance(ctx, "ND1309", big.NewInt(1e9))
		Expect(err).NotTo(HaveOccurred())
		Expect(payload).To(Equal(types.InsurancePurchase{Airline: airlineAddress, Flight: "ND1309", Timestamp: 1_700_000_000}))

		sent := backend.Sent()
		Expect(sent).To(HaveLen(1))
		Expect(*sent[0].To()).To(Equal(dataAddress))
		Expect(sent[0].Value()).To(Equal(big.NewInt(1e9)))
		Expect(sender(sent[0])).To(Equal(ownerAddress))

		name, args := decode(dataABI, sent[0])
		Expect(name).To(Equal(client.MethodBuyInsurance))
		Expect(args[0]).To(Equal(airlineAddress))
		Expect(args[1]).To(Equal("ND1309"))
		Expect(args[2].(*big.Int).Int64()).To(Equal(int64(1_700_000_000)))
	})

	It("asks the app contract for a flight status with the same payload shape", func() {
		payload, err := contract.FetchFlightStatus(ctx, "ND1309")
		Expect(err).NotTo(HaveOccurred())

		sent := backend.Sent()
		Expect(sent).To(HaveLen(1))
		Expect(*sent[0].To()).To(Equal(appAddress))

		name, args := decode(appABI, sent[0])
		Expect(name).To(Equal(client.MethodFetchFlightStatus))
		Expect(args[0]).To(Equal(payload.Airline))
		Expect(args[1]).To(Equal(payload.Flight))
		Expect(args[2].(*big.Int).Int64()).To(Equal(payload.Timestamp))
	})

	It("sends a flight update as an unpaid purchase", func() {
		_, err := contract.FlightStatusUpdate(ctx, "ND1310")
		Expect(err).NotTo(HaveOccurred())

		sent := backend.Sent()
		Expect(sent).To(HaveLen(1))
		Expect(sent[0].Value().Sign()).To(BeZero())

		name, args := decode(dataABI, sent[0])
		Expect(name).To(Equal(client.MethodBuyInsurance))
		Expect(args[1]).To(Equal("ND1310"))
	})

	It("reports a reverted purchase as ErrRevert", func() {
		backend.SetReceiptStatus(ethtypes.ReceiptStatusFailed)

		_, err := contract.BuyInsurance(ctx, "ND1309", nil)
		Expect(errorsmod.IsOf(err, types.ErrRevert)).To(BeTrue())
	})

	Describe("IsOperational", func() {
		It("is true when the app contract does not revert", func() {
			operational, err := contract.IsOperational(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(operational).To(BeTrue())
		})

		It("is false with the revert error otherwise", func() {
			backend.SetCallError(errors.New("execution reverted: Contract is currently not operational"))

			operational, err := contract.IsOperational(ctx)
			Expect(err).To(HaveOccurred())
			Expect(operational).To(BeFalse())
		})

		It("reads the data contract flag", func() {
			m := dataABI.Methods[client.MethodIsOperational]
			out, err := m.Outputs.Pack(false)
			Expect(err).NotTo(HaveOccurred())
			backend.SetOutput(m.ID, out)

			operational, err := contract.IsDataOperational(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(operational).To(BeFalse())
		})
	})

	Describe("administration", func() {
		It("authorises the app contract by default", func() {
			Expect(contract.Authorise(ctx, common.Address{})).To(Succeed())

			name, args := decode(dataABI, backend.Sent()[0])
			Expect(name).To(Equal(client.MethodAuthoriseContract))
			Expect(args[0]).To(Equal(appAddress))
		})

		It("funds from the first airline", func() {
			Expect(contract.Fund(ctx, big.NewInt(10))).To(Succeed())

			sent := backend.Sent()[0]
			Expect(sender(sent)).To(Equal(airlineAddress))
			Expect(sent.Value()).To(Equal(big.NewInt(10)))
		})

		It("registers an airline sponsored by the first airline", func() {
			newAirline := contract.Airlines()[1]
			Expect(contract.RegisterAirline(ctx, newAirline, "Second Air")).To(Succeed())

			sent := backend.Sent()[0]
			Expect(sender(sent)).To(Equal(airlineAddress))
			name, args := decode(appABI, sent)
			Expect(name).To(Equal(client.MethodRegisterAirline))
			Expect(args).To(Equal([]any{newAirline, "Second Air"}))
		})

		It("sets the operating status from the owner", func() {
			Expect(contract.SetOperatingStatus(ctx, false)).To(Succeed())

			sent := backend.Sent()[0]
			Expect(sender(sent)).To(Equal(ownerAddress))
			name, args := decode(dataABI, sent)
			Expect(name).To(Equal(client.MethodSetOperatingStatus))
			Expect(args).To(Equal([]any{false}))
		})
	})
})
