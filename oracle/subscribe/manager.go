package subscribe

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	errorsmod "cosmossdk.io/errors"
	"github.com/ethereum/go-ethereum/event"

	"github.com/GPTx-global/flightsurety/oracle/log"
	"github.com/GPTx-global/flightsurety/oracle/retry"
	"github.com/GPTx-global/flightsurety/oracle/types"
)

// Source delivers OracleRequest events. *client.App satisfies it.
type Source interface {
	BlockNumber(ctx context.Context) (uint64, error)
	WatchOracleRequest(ctx context.Context, from uint64, sink chan<- types.FlightStatusRequest) (event.Subscription, error)
}

// SubscribeManager owns the single OracleRequest subscription of the process
// and forwards decoded requests to Requests().
type SubscribeManager struct {
	source      Source
	retryConfig *retry.RetryConfig

	events   chan types.FlightStatusRequest
	requests chan types.FlightStatusRequest

	mu         sync.RWMutex
	subscribed bool
	lastBlock  uint64
	lastEvent  time.Time
	err        error
	cancel     context.CancelFunc
	done       chan struct{}
}

// NewSubscribeManager returns a manager buffering up to channelSize requests.
// A nil retryConfig resubscribes with the network retry policy.
func NewSubscribeManager(source Source, channelSize int, retryConfig *retry.RetryConfig) *SubscribeManager {
	if retryConfig == nil {
		retryConfig = retry.NetworkRetryConfig()
	}

	return &SubscribeManager{
		source:      source,
		retryConfig: retryConfig,
		events:      make(chan types.FlightStatusRequest),
		requests:    make(chan types.FlightStatusRequest, channelSize),
		done:        make(chan struct{}),
	}
}

// Subscribe starts watching OracleRequest events from the current head block.
// It may succeed only once per manager.
func (sm *SubscribeManager) Subscribe(ctx context.Context) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.subscribed {
		return types.ErrAlreadySubscribed
	}

	head, err := sm.source.BlockNumber(ctx)
	if err != nil {
		return fmt.Errorf("failed to read head block: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	sub, err := sm.source.WatchOracleRequest(ctx, head, sm.events)
	if err != nil {
		cancel()
		return fmt.Errorf("failed to subscribe from block %d: %w", head, err)
	}

	sm.subscribed = true
	sm.lastBlock = head
	sm.cancel = cancel

	log.Infof("subscribed to oracle requests from block %d", head)
	go sm.run(ctx, sub)

	return nil
}

// Requests is closed once the subscription ends.
func (sm *SubscribeManager) Requests() <-chan types.FlightStatusRequest {
	return sm.requests
}

func (sm *SubscribeManager) run(ctx context.Context, sub event.Subscription) {
	defer close(sm.done)
	defer close(sm.requests)

	for {
		select {
		case req := <-sm.events:
			sm.observe(req)

			select {
			case sm.requests <- req:
			case <-ctx.Done():
				sub.Unsubscribe()
				return
			}

		case err := <-sub.Err():
			sub.Unsubscribe()
			if ctx.Err() != nil {
				return
			}
			if err == nil {
				err = errors.New("subscription closed")
			}

			from := sm.LastBlock()
			log.Warnf("subscription dropped: %v, resubscribing from block %d", err, from)

			sub, err = sm.resubscribe(ctx, from)
			if err != nil {
				log.Errorf("failed to resubscribe: %v", err)
				sm.setErr(err)
				return
			}

		case <-ctx.Done():
			sub.Unsubscribe()
			return
		}
	}
}

// resubscribe restarts from the last block that delivered a request. Requests
// of that block are seen again and dropped downstream as duplicates.
func (sm *SubscribeManager) resubscribe(ctx context.Context, from uint64) (event.Subscription, error) {
	var sub event.Subscription
	err := retry.Do(ctx, sm.retryConfig, func() error {
		var err error
		sub, err = sm.source.WatchOracleRequest(ctx, from, sm.events)
		return err
	}, retry.Always)
	if err != nil {
		return nil, err
	}
	return sub, nil
}

func (sm *SubscribeManager) observe(req types.FlightStatusRequest) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if req.BlockNumber > sm.lastBlock {
		sm.lastBlock = req.BlockNumber
	}
	sm.lastEvent = time.Now()
}

func (sm *SubscribeManager) setErr(err error) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.err = err
}

func (sm *SubscribeManager) LastBlock() uint64 {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.lastBlock
}

func (sm *SubscribeManager) LastEvent() time.Time {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.lastEvent
}

// Healthy reports an error unless the subscription is established and alive.
func (sm *SubscribeManager) Healthy(context.Context) error {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if !sm.subscribed {
		return errors.New("not subscribed")
	}
	if sm.err != nil {
		return errorsmod.Wrap(types.ErrRPC, sm.err.Error())
	}

	select {
	case <-sm.done:
		return errors.New("subscription closed")
	default:
		return nil
	}
}

// Close cancels the subscription and waits for the forwarding loop to exit.
func (sm *SubscribeManager) Close() {
	sm.mu.RLock()
	cancel := sm.cancel
	subscribed := sm.subscribed
	sm.mu.RUnlock()

	if !subscribed {
		return
	}
	cancel()
	<-sm.done
}
