package scheduler

import (
	"context"
	"errors"
	"sync"

	errorsmod "cosmossdk.io/errors"
	"github.com/davecgh/go-spew/spew"
	"github.com/google/uuid"
	cmap "github.com/orcaman/concurrent-map/v2"
	"github.com/sirupsen/logrus"

	"github.com/GPTx-global/flightsurety/oracle/log"
	"github.com/GPTx-global/flightsurety/oracle/registry"
	"github.com/GPTx-global/flightsurety/oracle/telemetry"
	"github.com/GPTx-global/flightsurety/oracle/types"
)

// Scheduler turns oracle requests into one response per matching oracle.
type Scheduler struct {
	wg        sync.WaitGroup
	quit      chan struct{}
	stopOnce  sync.Once
	closeOnce sync.Once

	pool    *registry.Pool
	policy  StatusPolicy
	workers int

	seen      cmap.ConcurrentMap[string, struct{}]
	responses chan types.OracleResponse

	telemetry *telemetry.Telemetry
	notifier  types.Notifier
}

func New(pool *registry.Pool, policy StatusPolicy, workers, queueSize int, tm *telemetry.Telemetry, notifier types.Notifier) *Scheduler {
	if workers < 1 {
		workers = 1
	}

	return &Scheduler{
		quit:      make(chan struct{}),
		pool:      pool,
		policy:    policy,
		workers:   workers,
		seen:      cmap.New[struct{}](),
		responses: make(chan types.OracleResponse, queueSize),
		telemetry: tm,
		notifier:  notifier,
	}
}

// Start runs the workers over requests. Responses() is closed after requests
// is closed or Stop is called, once every worker has returned.
func (s *Scheduler) Start(ctx context.Context, requests <-chan types.FlightStatusRequest) {
	for i := 0; i < s.workers; i++ {
		s.wg.Add(1)
		go s.worker(ctx, requests)
	}

	go func() {
		s.wg.Wait()
		s.closeOnce.Do(func() { close(s.responses) })
	}()
}

func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() { close(s.quit) })
	s.wg.Wait()
}

func (s *Scheduler) Responses() <-chan types.OracleResponse {
	return s.responses
}

// Process matches req against the pool and builds the responses to submit.
// A request whose log was already processed yields ErrDuplicateRequest.
func (s *Scheduler) Process(ctx context.Context, req types.FlightStatusRequest, correlationID string) ([]types.OracleResponse, error) {
	if !s.seen.SetIfAbsent(req.ID(), struct{}{}) {
		return nil, errorsmod.Wrapf(types.ErrDuplicateRequest, "%s", req)
	}

	matched := s.pool.Matching(req.Index)
	responses := make([]types.OracleResponse, 0, len(matched))

	var errs []error
	for _, oracle := range matched {
		status, err := s.policy.ChooseStatus(ctx, req)
		if err != nil {
			errs = append(errs, errorsmod.Wrapf(err, "oracle %s", oracle.Account.Hex()))
			continue
		}

		resp := types.NewOracleResponse(oracle.Account, req, status)
		resp.CorrelationID = correlationID
		responses = append(responses, resp)
	}

	return responses, errors.Join(errs...)
}

func (s *Scheduler) worker(ctx context.Context, requests <-chan types.FlightStatusRequest) {
	defer s.wg.Done()

	for {
		select {
		case req, ok := <-requests:
			if !ok {
				return
			}
			s.handle(ctx, req)

		case <-s.quit:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (s *Scheduler) handle(ctx context.Context, req types.FlightStatusRequest) {
	id := uuid.NewString()
	logger := log.WithFields(logrus.Fields{
		"correlation_id": id,
		"index":          req.Index,
		"flight":         req.Flight,
	})

	if log.Logger().IsLevelEnabled(logrus.DebugLevel) {
		logger.Debugf("request received:\n%s", spew.Sdump(req))
	}

	s.telemetry.IncrCounter(telemetry.KeyRequests, 1)

	responses, err := s.Process(ctx, req, id)
	if errorsmod.IsOf(err, types.ErrDuplicateRequest) {
		s.telemetry.IncrCounter(telemetry.KeyDuplicateRequests, 1)
		s.notify(types.RequestActivity(types.ActivityDuplicate, id, req))
		logger.Debugf("duplicate request dropped")
		return
	}
	if err != nil {
		logger.Errorf("failed to choose status: %v", err)
	}

	s.notify(types.RequestActivity(types.ActivityRequest, id, req))
	logger.Infof("request matched %d oracles", len(responses))

	for _, resp := range responses {
		select {
		case s.responses <- resp:
		case <-s.quit:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (s *Scheduler) notify(a types.Activity) {
	if s.notifier != nil {
		s.notifier.Notify(a)
	}
}
