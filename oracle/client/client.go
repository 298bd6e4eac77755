package client

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	errorsmod "cosmossdk.io/errors"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/event"
	cmap "github.com/orcaman/concurrent-map/v2"

	"github.com/GPTx-global/flightsurety/oracle/config"
	"github.com/GPTx-global/flightsurety/oracle/log"
	"github.com/GPTx-global/flightsurety/oracle/retry"
	"github.com/GPTx-global/flightsurety/oracle/types"
)

// Backend is the subset of an Ethereum node connection the client relies on.
// *ethclient.Client satisfies it.
type Backend interface {
	bind.ContractBackend
	bind.DeployBackend
	ChainID(ctx context.Context) (*big.Int, error)
	BlockNumber(ctx context.Context) (uint64, error)
	Close()
}

type Options struct {
	// Websocket dials the network's ws endpoint, required for log subscriptions.
	Websocket bool
	// GasLimit of 0 lets the node estimate gas per transaction.
	GasLimit uint64
}

// Client binds the app and data contracts of one network to a wallet.
type Client struct {
	backend  Backend
	chainID  *big.Int
	accounts *Accounts
	gasLimit uint64

	abis      map[Contract]abi.ABI
	addresses map[Contract]common.Address
	contracts map[Contract]*bind.BoundContract

	// transactions from the same account must not race for a nonce
	sendLocks cmap.ConcurrentMap[string, *sync.Mutex]
}

var dialBreaker = retry.NewCircuitBreaker(5, time.Minute)

// Dial connects to the network with retries and binds its contracts.
func Dial(ctx context.Context, network config.Network, accounts *Accounts, opts Options) (*Client, error) {
	endpoint := network.URL
	if opts.Websocket {
		endpoint = network.WebsocketURL()
	}

	var backend *ethclient.Client
	err := retry.Do(ctx, retry.NetworkRetryConfig(),
		func() error {
			return dialBreaker.Execute(func() error {
				var err error
				backend, err = ethclient.DialContext(ctx, endpoint)
				return err
			})
		},
		retry.DefaultIsRetryable,
	)
	if err != nil {
		return nil, errorsmod.Wrapf(types.ErrRPC, "failed to dial %s: %v", endpoint, err)
	}

	c, err := NewClient(ctx, backend, network, accounts, opts)
	if err != nil {
		backend.Close()
		return nil, err
	}

	log.Infof("connected to %s (chain id %s)", endpoint, c.chainID)
	return c, nil
}

// NewClient binds the network's contracts over an already connected backend.
func NewClient(ctx context.Context, backend Backend, network config.Network, accounts *Accounts, opts Options) (*Client, error) {
	appABI, err := LoadABI(network.AppABIPath, FlightSuretyAppABI)
	if err != nil {
		return nil, errorsmod.Wrap(types.ErrConfig, err.Error())
	}

	dataABI, err := LoadABI(network.DataABIPath, FlightSuretyDataABI)
	if err != nil {
		return nil, errorsmod.Wrap(types.ErrConfig, err.Error())
	}

	chainID, err := backend.ChainID(ctx)
	if err != nil {
		return nil, types.ClassifyRPCError(err, "failed to query chain id")
	}

	c := &Client{
		backend:   backend,
		chainID:   chainID,
		accounts:  accounts,
		gasLimit:  opts.GasLimit,
		abis:      map[Contract]abi.ABI{AppContract: appABI, DataContract: dataABI},
		addresses: map[Contract]common.Address{AppContract: network.App(), DataContract: network.Data()},
		contracts: make(map[Contract]*bind.BoundContract, 2),
		sendLocks: cmap.New[*sync.Mutex](),
	}

	for name, parsed := range c.abis {
		c.contracts[name] = bind.NewBoundContract(c.addresses[name], parsed, backend, backend, backend)
	}

	return c, nil
}

func (c *Client) Accounts() *Accounts {
	return c.accounts
}

func (c *Client) ChainID() *big.Int {
	return new(big.Int).Set(c.chainID)
}

func (c *Client) Address(contract Contract) common.Address {
	return c.addresses[contract]
}

func (c *Client) bound(contract Contract) (*bind.BoundContract, error) {
	bound, ok := c.contracts[contract]
	if !ok {
		return nil, errorsmod.Wrap(types.ErrUnknownContract, string(contract))
	}
	return bound, nil
}

// Call performs a read-only contract call as sender and returns the
// unpacked outputs.
func (c *Client) Call(ctx context.Context, contract Contract, method string, sender common.Address, args ...any) ([]any, error) {
	bound, err := c.bound(contract)
	if err != nil {
		return nil, err
	}

	var out []any
	if err := bound.Call(&bind.CallOpts{Context: ctx, From: sender}, &out, method, args...); err != nil {
		return nil, types.ClassifyRPCError(err, "call %s.%s", contract, method)
	}

	return out, nil
}

// Send signs and submits a transaction from sender, then waits for it to be
// mined. A mined transaction with a failed status is reported as ErrRevert.
func (c *Client) Send(ctx context.Context, contract Contract, method string, sender common.Address, value *big.Int, args ...any) (*ethtypes.Receipt, error) {
	bound, err := c.bound(contract)
	if err != nil {
		return nil, err
	}

	opts, err := c.accounts.TransactOpts(sender, c.chainID)
	if err != nil {
		return nil, err
	}
	opts.Context = ctx
	opts.Value = value
	opts.GasLimit = c.gasLimit

	lock := c.sendLock(sender)
	lock.Lock()
	tx, err := bound.Transact(opts, method, args...)
	lock.Unlock()
	if err != nil {
		return nil, types.ClassifyRPCError(err, "send %s.%s from %s", contract, method, sender.Hex())
	}

	log.Debugf("sent %s.%s from %s: %s", contract, method, sender.Hex(), tx.Hash().Hex())

	receipt, err := bind.WaitMined(ctx, c.backend, tx)
	if err != nil {
		return nil, types.ClassifyRPCError(err, "wait for %s.%s tx %s", contract, method, tx.Hash().Hex())
	}

	if receipt.Status == ethtypes.ReceiptStatusFailed {
		return receipt, errorsmod.Wrapf(types.ErrRevert, "%s.%s from %s reverted in tx %s", contract, method, sender.Hex(), tx.Hash().Hex())
	}

	return receipt, nil
}

func (c *Client) sendLock(sender common.Address) *sync.Mutex {
	c.sendLocks.SetIfAbsent(sender.Hex(), &sync.Mutex{})
	lock, _ := c.sendLocks.Get(sender.Hex())
	return lock
}

// WatchLogs subscribes to event logs of a contract from block from onwards.
func (c *Client) WatchLogs(ctx context.Context, contract Contract, name string, from uint64) (chan ethtypes.Log, event.Subscription, error) {
	bound, err := c.bound(contract)
	if err != nil {
		return nil, nil, err
	}

	start := from
	logs, sub, err := bound.WatchLogs(&bind.WatchOpts{Start: &start, Context: ctx}, name)
	if err != nil {
		return nil, nil, types.ClassifyRPCError(err, "watch %s.%s from block %d", contract, name, from)
	}

	return logs, sub, nil
}

func (c *Client) UnpackLog(contract Contract, out any, name string, l ethtypes.Log) error {
	bound, err := c.bound(contract)
	if err != nil {
		return err
	}

	if err := bound.UnpackLog(out, name, l); err != nil {
		return fmt.Errorf("failed to unpack %s.%s log: %w", contract, name, err)
	}
	return nil
}

func (c *Client) BlockNumber(ctx context.Context) (uint64, error) {
	number, err := c.backend.BlockNumber(ctx)
	if err != nil {
		return 0, types.ClassifyRPCError(err, "failed to query block number")
	}
	return number, nil
}

// Ping reports whether the node answers. It backs the RPC health check.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.BlockNumber(ctx)
	return err
}

func (c *Client) Close() {
	c.backend.Close()
}
