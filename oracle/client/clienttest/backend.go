package clienttest

import (
	"context"
	"errors"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/event"
)

// Backend is an in-memory node. Calls are answered from canned outputs keyed
// by method selector, sent transactions are recorded and mined at once.
type Backend struct {
	mu sync.Mutex

	outputs       map[string][]byte
	callErr       error
	sendErr       error
	receiptStatus uint64
	sent          []*ethtypes.Transaction
	calls         []ethereum.CallMsg

	logs  []ethtypes.Log
	query ethereum.FilterQuery

	blockNumber uint64
	closed      bool
}

func NewBackend() *Backend {
	return &Backend{
		outputs:       make(map[string][]byte),
		receiptStatus: ethtypes.ReceiptStatusSuccessful,
		blockNumber:   42,
	}
}

// SetOutput answers calls to the method with selector with out.
func (b *Backend) SetOutput(selector []byte, out []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.outputs[hexutil.Encode(selector)] = out
}

// SetCallError fails every call with err until reset with nil.
func (b *Backend) SetCallError(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.callErr = err
}

func (b *Backend) SetSendError(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sendErr = err
}

// SetReceiptStatus sets the status of receipts of mined transactions.
func (b *Backend) SetReceiptStatus(status uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.receiptStatus = status
}

// SetLogs sets the logs delivered to each new log subscription.
func (b *Backend) SetLogs(logs ...ethtypes.Log) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.logs = logs
}

func (b *Backend) Sent() []*ethtypes.Transaction {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]*ethtypes.Transaction(nil), b.sent...)
}

// Calls returns every call message received, in order.
func (b *Backend) Calls() []ethereum.CallMsg {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]ethereum.CallMsg(nil), b.calls...)
}

// LastQuery is the filter of the most recent log subscription.
func (b *Backend) LastQuery() ethereum.FilterQuery {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.query
}

func (b *Backend) Closed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

func (b *Backend) CodeAt(context.Context, common.Address, *big.Int) ([]byte, error) {
	return []byte{0x60}, nil
}

func (b *Backend) CallContract(_ context.Context, call ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.calls = append(b.calls, call)
	if b.callErr != nil {
		return nil, b.callErr
	}
	if len(call.Data) < 4 {
		return nil, errors.New("short call data")
	}
	return b.outputs[hexutil.Encode(call.Data[:4])], nil
}

func (b *Backend) HeaderByNumber(context.Context, *big.Int) (*ethtypes.Header, error) {
	// no base fee, so transactions are priced as legacy ones
	return &ethtypes.Header{Number: new(big.Int).SetUint64(b.blockNumber)}, nil
}

func (b *Backend) PendingCodeAt(context.Context, common.Address) ([]byte, error) {
	return []byte{0x60}, nil
}

func (b *Backend) PendingNonceAt(context.Context, common.Address) (uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return uint64(len(b.sent)), nil
}

func (b *Backend) SuggestGasPrice(context.Context) (*big.Int, error) {
	return big.NewInt(1_000_000_000), nil
}

func (b *Backend) SuggestGasTipCap(context.Context) (*big.Int, error) {
	return big.NewInt(1_000_000_000), nil
}

func (b *Backend) EstimateGas(context.Context, ethereum.CallMsg) (uint64, error) {
	return 100_000, nil
}

func (b *Backend) SendTransaction(_ context.Context, tx *ethtypes.Transaction) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.sendErr != nil {
		return b.sendErr
	}
	b.sent = append(b.sent, tx)
	return nil
}

func (b *Backend) FilterLogs(context.Context, ethereum.FilterQuery) ([]ethtypes.Log, error) {
	return nil, nil
}

func (b *Backend) SubscribeFilterLogs(_ context.Context, q ethereum.FilterQuery, ch chan<- ethtypes.Log) (ethereum.Subscription, error) {
	b.mu.Lock()
	b.query = q
	logs := append([]ethtypes.Log(nil), b.logs...)
	b.mu.Unlock()

	return event.NewSubscription(func(quit <-chan struct{}) error {
		for _, l := range logs {
			select {
			case ch <- l:
			case <-quit:
				return nil
			}
		}
		<-quit
		return nil
	}), nil
}

func (b *Backend) TransactionReceipt(_ context.Context, hash common.Hash) (*ethtypes.Receipt, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return &ethtypes.Receipt{Status: b.receiptStatus, TxHash: hash, BlockNumber: new(big.Int).SetUint64(b.blockNumber)}, nil
}

func (b *Backend) ChainID(context.Context) (*big.Int, error) {
	return big.NewInt(1337), nil
}

func (b *Backend) BlockNumber(context.Context) (uint64, error) {
	return b.blockNumber, nil
}

func (b *Backend) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
}
