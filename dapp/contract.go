package dapp

import (
	"context"
	"fmt"
	"math/big"
	"time"

	errorsmod "cosmossdk.io/errors"
	"github.com/ethereum/go-ethereum/common"

	"github.com/GPTx-global/flightsurety/oracle/client"
	"github.com/GPTx-global/flightsurety/oracle/config"
	"github.com/GPTx-global/flightsurety/oracle/log"
	"github.com/GPTx-global/flightsurety/oracle/types"
)

const (
	AirlineCount   = 5
	PassengerCount = 5

	// owner, airlines and passengers, in wallet order
	accountCount = 1 + AirlineCount + PassengerCount
)

// Contract is the user-side facade over both FlightSurety contracts. Account
// 0 of the wallet is the owner, 1..5 are airlines and 6..10 passengers.
type Contract struct {
	client *client.Client

	owner      common.Address
	airlines   []common.Address
	passengers []common.Address

	now func() time.Time
}

// NewContract derives the dapp accounts from the configured mnemonic and
// dials the network over HTTP.
func NewContract(ctx context.Context, cfg *config.Config, networkName string) (*Contract, error) {
	network, err := cfg.Network(networkName)
	if err != nil {
		return nil, err
	}

	accounts, err := client.NewAccounts(cfg.Key.Mnemonic, accountCount)
	if err != nil {
		return nil, err
	}

	clt, err := client.Dial(ctx, network, accounts, client.Options{GasLimit: cfg.Oracle.GasLimit})
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}

	return New(clt)
}

// New assigns the roles from the accounts held by clt.
func New(clt *client.Client) (*Contract, error) {
	addrs := clt.Accounts().Addresses()
	if len(addrs) < accountCount {
		return nil, errorsmod.Wrapf(types.ErrConfig, "dapp needs %d accounts, wallet holds %d", accountCount, len(addrs))
	}

	return &Contract{
		client:     clt,
		owner:      addrs[0],
		airlines:   append([]common.Address(nil), addrs[1:1+AirlineCount]...),
		passengers: append([]common.Address(nil), addrs[1+AirlineCount:accountCount]...),
		now:        time.Now,
	}, nil
}

// WithClock replaces the clock that stamps flight payloads.
func (c *Contract) WithClock(now func() time.Time) *Contract {
	c.now = now
	return c
}

func (c *Contract) Owner() common.Address {
	return c.owner
}

func (c *Contract) Airlines() []common.Address {
	return c.airlines
}

func (c *Contract) Passengers() []common.Address {
	return c.passengers
}

func (c *Contract) Close() {
	c.client.Close()
}

// Payload builds the (airline, flight, timestamp) triple for flight, using
// the first airline and the current time in seconds.
func (c *Contract) Payload(flight string) types.InsurancePurchase {
	return types.InsurancePurchase{
		Airline:   c.airlines[0],
		Flight:    flight,
		Timestamp: c.now().Unix(),
	}
}

// IsOperational asks the app contract from the owner account. A revert means
// not operational and is returned alongside false.
func (c *Contract) IsOperational(ctx context.Context) (bool, error) {
	if err := c.client.App().RequireIsOperational(ctx, c.owner); err != nil {
		return false, err
	}
	return true, nil
}

// IsDataOperational reads the operating flag of the data contract.
func (c *Contract) IsDataOperational(ctx context.Context) (bool, error) {
	return c.client.Data().IsOperational(ctx, c.owner)
}

// FetchFlightStatus asks the app contract to emit an oracle request for
// flight and returns the payload it sent.
func (c *Contract) FetchFlightStatus(ctx context.Context, flight string) (types.InsurancePurchase, error) {
	payload := c.Payload(flight)
	log.Debugf("fetch flight status: %s", payload)

	if _, err := c.client.App().FetchFlightStatus(ctx, c.owner, payload); err != nil {
		return payload, err
	}
	return payload, nil
}

// BuyInsurance sends buyInsurance to the data contract from the owner for
// the first airline's flight, paying value.
func (c *Contract) BuyInsurance(ctx context.Context, flight string, value *big.Int) (types.InsurancePurchase, error) {
	payload := c.Payload(flight)
	log.Debugf("buy insurance: %s value=%s", payload, value)

	if _, err := c.client.Data().BuyInsurance(ctx, c.owner, payload, value); err != nil {
		return payload, err
	}
	return payload, nil
}

// FlightStatusUpdate is the "flight update" action. It records a purchase for
// the flight the same way BuyInsurance does, without payment.
func (c *Contract) FlightStatusUpdate(ctx context.Context, flight string) (types.InsurancePurchase, error) {
	return c.BuyInsurance(ctx, flight, nil)
}

// RegisterAirline registers airline under name, sponsored by the first
// airline.
func (c *Contract) RegisterAirline(ctx context.Context, airline common.Address, name string) error {
	_, err := c.client.App().RegisterAirline(ctx, c.airlines[0], airline, name)
	return err
}

func (c *Contract) IsAirlineRegistered(ctx context.Context, airline common.Address) (bool, error) {
	return c.client.Data().IsAirlineRegistered(ctx, c.owner, airline)
}

// SetOperatingStatus toggles the data contract from the owner account.
func (c *Contract) SetOperatingStatus(ctx context.Context, mode bool) error {
	_, err := c.client.Data().SetOperatingStatus(ctx, c.owner, mode)
	return err
}

// Authorise lets caller invoke the data contract. With a zero caller the app
// contract is authorised.
func (c *Contract) Authorise(ctx context.Context, caller common.Address) error {
	if caller == (common.Address{}) {
		caller = c.client.Address(client.AppContract)
	}
	_, err := c.client.Data().AuthoriseContract(ctx, c.owner, caller)
	return err
}

// Fund pays value into the data contract on behalf of the first airline.
func (c *Contract) Fund(ctx context.Context, value *big.Int) error {
	_, err := c.client.Data().Fund(ctx, c.airlines[0], value)
	return err
}
