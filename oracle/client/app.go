package client

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/event"

	"github.com/GPTx-global/flightsurety/oracle/types"
)

// App exposes the FlightSuretyApp contract operations.
type App struct {
	c *Client
}

func (c *Client) App() *App {
	return &App{c: c}
}

type oracleRequestLog struct {
	Airline         common.Address
	Flight          string
	FlightTimestamp *big.Int
	Index           uint8
}

func (a *App) RegistrationFee(ctx context.Context) (*big.Int, error) {
	out, err := a.c.Call(ctx, AppContract, MethodRegistrationFee, common.Address{})
	if err != nil {
		return nil, err
	}

	fee := *abi.ConvertType(out[0], new(*big.Int)).(**big.Int)
	return fee, nil
}

// RegisterOracle registers account as an oracle, paying fee.
func (a *App) RegisterOracle(ctx context.Context, account common.Address, fee *big.Int) (*ethtypes.Receipt, error) {
	return a.c.Send(ctx, AppContract, MethodRegisterOracle, account, fee)
}

func (a *App) GetMyIndexes(ctx context.Context, account common.Address) ([types.IndexCount]uint8, error) {
	out, err := a.c.Call(ctx, AppContract, MethodGetMyIndexes, account)
	if err != nil {
		return [types.IndexCount]uint8{}, err
	}

	indexes := *abi.ConvertType(out[0], new([types.IndexCount]uint8)).(*[types.IndexCount]uint8)
	return indexes, nil
}

func (a *App) SubmitOracleResponse(ctx context.Context, resp types.OracleResponse) (*ethtypes.Receipt, error) {
	return a.c.Send(ctx, AppContract, MethodSubmitOracleResponse, resp.Account, nil,
		resp.Index, resp.Airline, resp.Flight, timestampOrZero(resp.Timestamp), uint8(resp.Status))
}

// FetchFlightStatus asks the contract to emit an oracle request for the flight.
func (a *App) FetchFlightStatus(ctx context.Context, sender common.Address, flight types.InsurancePurchase) (*ethtypes.Receipt, error) {
	return a.c.Send(ctx, AppContract, MethodFetchFlightStatus, sender, nil,
		flight.Airline, flight.Flight, big.NewInt(flight.Timestamp))
}

// RequireIsOperational returns nil when the contract is operational and a
// revert error otherwise.
func (a *App) RequireIsOperational(ctx context.Context, sender common.Address) error {
	_, err := a.c.Call(ctx, AppContract, MethodRequireIsOperational, sender)
	return err
}

func (a *App) RegisterAirline(ctx context.Context, sender, airline common.Address, name string) (*ethtypes.Receipt, error) {
	return a.c.Send(ctx, AppContract, MethodRegisterAirline, sender, nil, airline, name)
}

func (a *App) BlockNumber(ctx context.Context) (uint64, error) {
	return a.c.BlockNumber(ctx)
}

// ParseOracleRequest decodes an OracleRequest log into a request.
func (a *App) ParseOracleRequest(l ethtypes.Log) (types.FlightStatusRequest, error) {
	var ev oracleRequestLog
	if err := a.c.UnpackLog(AppContract, &ev, EventOracleRequest, l); err != nil {
		return types.FlightStatusRequest{}, err
	}

	return types.FlightStatusRequest{
		Airline:     ev.Airline,
		Flight:      ev.Flight,
		Timestamp:   ev.FlightTimestamp,
		Index:       ev.Index,
		TxHash:      l.TxHash,
		LogIndex:    l.Index,
		BlockNumber: l.BlockNumber,
	}, nil
}

// WatchOracleRequest streams decoded OracleRequest events from block from
// onwards into sink. The subscription fails on the first undecodable log.
func (a *App) WatchOracleRequest(ctx context.Context, from uint64, sink chan<- types.FlightStatusRequest) (event.Subscription, error) {
	logs, sub, err := a.c.WatchLogs(ctx, AppContract, EventOracleRequest, from)
	if err != nil {
		return nil, err
	}

	return event.NewSubscription(func(quit <-chan struct{}) error {
		defer sub.Unsubscribe()
		for {
			select {
			case l := <-logs:
				if l.Removed {
					continue
				}

				req, err := a.ParseOracleRequest(l)
				if err != nil {
					return fmt.Errorf("block %d tx %s: %w", l.BlockNumber, l.TxHash.Hex(), err)
				}

				select {
				case sink <- req:
				case err := <-sub.Err():
					return err
				case <-quit:
					return nil
				}
			case err := <-sub.Err():
				return err
			case <-quit:
				return nil
			}
		}
	}), nil
}

// Data exposes the FlightSuretyData contract operations.
type Data struct {
	c *Client
}

func (c *Client) Data() *Data {
	return &Data{c: c}
}

func (d *Data) IsOperational(ctx context.Context, sender common.Address) (bool, error) {
	out, err := d.c.Call(ctx, DataContract, MethodIsOperational, sender)
	if err != nil {
		return false, err
	}
	return *abi.ConvertType(out[0], new(bool)).(*bool), nil
}

func (d *Data) SetOperatingStatus(ctx context.Context, sender common.Address, mode bool) (*ethtypes.Receipt, error) {
	return d.c.Send(ctx, DataContract, MethodSetOperatingStatus, sender, nil, mode)
}

// AuthoriseContract allows caller to invoke the data contract's restricted
// operations.
func (d *Data) AuthoriseContract(ctx context.Context, sender, caller common.Address) (*ethtypes.Receipt, error) {
	return d.c.Send(ctx, DataContract, MethodAuthoriseContract, sender, nil, caller)
}

func (d *Data) Fund(ctx context.Context, sender common.Address, value *big.Int) (*ethtypes.Receipt, error) {
	return d.c.Send(ctx, DataContract, MethodFund, sender, value)
}

func (d *Data) BuyInsurance(ctx context.Context, sender common.Address, purchase types.InsurancePurchase, value *big.Int) (*ethtypes.Receipt, error) {
	return d.c.Send(ctx, DataContract, MethodBuyInsurance, sender, value,
		purchase.Airline, purchase.Flight, big.NewInt(purchase.Timestamp))
}

func (d *Data) IsAirlineRegistered(ctx context.Context, sender, airline common.Address) (bool, error) {
	out, err := d.c.Call(ctx, DataContract, MethodIsAirlineRegistered, sender, airline)
	if err != nil {
		return false, err
	}
	return *abi.ConvertType(out[0], new(bool)).(*bool), nil
}

func timestampOrZero(ts *big.Int) *big.Int {
	if ts == nil {
		return new(big.Int)
	}
	return ts
}
