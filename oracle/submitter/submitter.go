package submitter

import (
	"context"
	"sync"
	"time"

	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/sirupsen/logrus"

	"github.com/GPTx-global/flightsurety/oracle/log"
	"github.com/GPTx-global/flightsurety/oracle/telemetry"
	"github.com/GPTx-global/flightsurety/oracle/types"
)

// Backend sends a single oracle response. *client.App satisfies it.
type Backend interface {
	SubmitOracleResponse(ctx context.Context, resp types.OracleResponse) (*ethtypes.Receipt, error)
}

// Submitter sends oracle responses with a bounded number of workers.
// Submission failures are logged and dropped; the contract tolerates missing
// responses, so nothing is retried.
type Submitter struct {
	backend     Backend
	concurrency int
	telemetry   *telemetry.Telemetry
	notifier    types.Notifier

	wg   sync.WaitGroup
	done chan struct{}
}

func New(backend Backend, concurrency int, tm *telemetry.Telemetry, notifier types.Notifier) *Submitter {
	if concurrency < 1 {
		concurrency = 1
	}

	return &Submitter{
		backend:     backend,
		concurrency: concurrency,
		telemetry:   tm,
		notifier:    notifier,
		done:        make(chan struct{}),
	}
}

// Start consumes responses until the channel is closed or ctx is done.
func (s *Submitter) Start(ctx context.Context, responses <-chan types.OracleResponse) {
	for i := 0; i < s.concurrency; i++ {
		s.wg.Add(1)
		go s.worker(ctx, responses)
	}

	go func() {
		s.wg.Wait()
		close(s.done)
	}()
}

// Wait blocks until every worker has returned.
func (s *Submitter) Wait() {
	<-s.done
}

func (s *Submitter) worker(ctx context.Context, responses <-chan types.OracleResponse) {
	defer s.wg.Done()

	for {
		select {
		case resp, ok := <-responses:
			if !ok {
				return
			}
			s.Submit(ctx, resp)
		case <-ctx.Done():
			return
		}
	}
}

// Submit sends one response and reports whether the contract accepted it.
func (s *Submitter) Submit(ctx context.Context, resp types.OracleResponse) bool {
	logger := log.WithFields(logrus.Fields{
		"correlation_id": resp.CorrelationID,
		"oracle":         resp.Account.Hex(),
		"index":          resp.Index,
		"flight":         resp.Flight,
	})

	start := time.Now()
	receipt, err := s.backend.SubmitOracleResponse(ctx, resp)
	s.telemetry.MeasureSince(telemetry.KeySubmitLatency, start)

	if err != nil {
		s.telemetry.IncrCounter(telemetry.KeyResponsesRejected, 1)
		s.notify(types.ResponseActivity(types.ActivityRejected, resp, err))

		if types.IsRevert(err) {
			logger.Warnf("response rejected: %v", err)
		} else {
			logger.Errorf("failed to submit response: %v", err)
		}
		return false
	}

	s.telemetry.IncrCounter(telemetry.KeyResponses, 1)
	s.notify(types.ResponseActivity(types.ActivityResponse, resp, nil))
	logger.Infof("response %s submitted in tx %s", resp.Status, receipt.TxHash.Hex())

	return true
}

func (s *Submitter) notify(a types.Activity) {
	if s.notifier != nil {
		s.notifier.Notify(a)
	}
}
