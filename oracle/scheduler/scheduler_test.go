package scheduler

import (
	"context"
	"math/big"
	"math/rand"
	"sync"
	"testing"
	"time"

	errorsmod "cosmossdk.io/errors"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/suite"

	"github.com/GPTx-global/flightsurety/oracle/config"
	"github.com/GPTx-global/flightsurety/oracle/registry"
	"github.com/GPTx-global/flightsurety/oracle/telemetry"
	"github.com/GPTx-global/flightsurety/oracle/types"
)

type recordingNotifier struct {
	mu         sync.Mutex
	activities []types.Activity
}

func (n *recordingNotifier) Notify(a types.Activity) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.activities = append(n.activities, a)
}

func (n *recordingNotifier) kinds() []string {
	n.mu.Lock()
	defer n.mu.Unlock()

	kinds := make([]string, 0, len(n.activities))
	for _, a := range n.activities {
		kinds = append(kinds, a.Kind)
	}
	return kinds
}

type SchedulerTestSuite struct {
	suite.Suite

	ctx       context.Context
	cancel    context.CancelFunc
	a, b, c   types.Oracle
	pool      *registry.Pool
	telemetry *telemetry.Telemetry
	notifier  *recordingNotifier
	scheduler *Scheduler
}

func TestSchedulerTestSuite(t *testing.T) {
	suite.Run(t, new(SchedulerTestSuite))
}

func (suite *SchedulerTestSuite) SetupTest() {
	var err error
	suite.ctx, suite.cancel = context.WithTimeout(context.Background(), 5*time.Second)

	suite.a = types.Oracle{Account: common.HexToAddress("0x0a"), Indexes: [3]uint8{1, 2, 3}}
	suite.b = types.Oracle{Account: common.HexToAddress("0x0b"), Indexes: [3]uint8{4, 5, 6}}
	suite.c = types.Oracle{Account: common.HexToAddress("0x0c"), Indexes: [3]uint8{1, 7, 8}}
	suite.pool = registry.NewPool(suite.a, suite.b, suite.c)

	suite.telemetry, err = telemetry.New(time.Minute, time.Minute)
	suite.Require().NoError(err)
	suite.notifier = &recordingNotifier{}
	suite.scheduler = New(suite.pool, FixedStatus(types.StatusLateAirline), 2, 16, suite.telemetry, suite.notifier)
}

func (suite *SchedulerTestSuite) TearDownTest() {
	suite.scheduler.Stop()
	suite.cancel()
}

func request(index uint8) types.FlightStatusRequest {
	return types.FlightStatusRequest{
		Airline:   common.HexToAddress("0xf17f52151EbEF6C7334FAD080c5704D77216b732"),
		Flight:    "ND1309",
		Timestamp: big.NewInt(1_700_000_000),
		Index:     index,
	}
}

func accounts(responses []types.OracleResponse) []common.Address {
	out := make([]common.Address, 0, len(responses))
	for _, r := range responses {
		out = append(out, r.Account)
	}
	return out
}

func (suite *SchedulerTestSuite) TestProcessMatchesExactly() {
	responses, err := suite.scheduler.Process(suite.ctx, request(1), "cid")
	suite.Require().NoError(err)
	suite.Require().ElementsMatch([]common.Address{suite.a.Account, suite.c.Account}, accounts(responses))

	req := request(1)
	for _, resp := range responses {
		suite.Equal(uint8(1), resp.Index)
		suite.Equal(req.Airline, resp.Airline)
		suite.Equal("ND1309", resp.Flight)
		suite.Equal(types.StatusLateAirline, resp.Status)
		suite.Equal(req.Key(), resp.RequestKey)
		suite.Equal("cid", resp.CorrelationID)
	}
}

func (suite *SchedulerTestSuite) TestProcessNoMatch() {
	responses, err := suite.scheduler.Process(suite.ctx, request(9), "cid")
	suite.Require().NoError(err)
	suite.Empty(responses)
}

func (suite *SchedulerTestSuite) TestProcessDuplicate() {
	req := request(4)
	req.TxHash = common.HexToHash("0x01")
	req.LogIndex = 2

	_, err := suite.scheduler.Process(suite.ctx, req, "first")
	suite.Require().NoError(err)

	responses, err := suite.scheduler.Process(suite.ctx, req, "second")
	suite.True(errorsmod.IsOf(err, types.ErrDuplicateRequest))
	suite.Empty(responses)
}

func (suite *SchedulerTestSuite) TestProcessRepeatedRequestForSameFlight() {
	first := request(1)
	first.TxHash = common.HexToHash("0x01")
	first.BlockNumber = 100

	second := request(1)
	second.TxHash = common.HexToHash("0x02")
	second.BlockNumber = 200
	suite.Require().Equal(first.Key(), second.Key())

	for _, req := range []types.FlightStatusRequest{first, second} {
		responses, err := suite.scheduler.Process(suite.ctx, req, "cid")
		suite.Require().NoError(err)
		suite.ElementsMatch([]common.Address{suite.a.Account, suite.c.Account}, accounts(responses))
	}
}

func (suite *SchedulerTestSuite) TestProcessPolicyFailure() {
	calls := 0
	failing := StatusPolicyFunc(func(context.Context, types.FlightStatusRequest) (types.StatusCode, error) {
		calls++
		if calls == 1 {
			return types.StatusUnknown, context.DeadlineExceeded
		}
		return types.StatusOnTime, nil
	})
	s := New(suite.pool, failing, 1, 4, nil, nil)

	responses, err := s.Process(suite.ctx, request(1), "cid")
	suite.Error(err)
	suite.Len(responses, 1)
}

func (suite *SchedulerTestSuite) TestWorkersDropDuplicateDelivery() {
	requests := make(chan types.FlightStatusRequest, 4)
	suite.scheduler.Start(suite.ctx, requests)

	requests <- request(1)
	requests <- request(1)
	close(requests)

	var got []types.OracleResponse
	for resp := range suite.scheduler.Responses() {
		got = append(got, resp)
	}

	suite.Require().ElementsMatch([]common.Address{suite.a.Account, suite.c.Account}, accounts(got))
	suite.Equal(float64(2), suite.telemetry.Counter(telemetry.KeyRequests))
	suite.Equal(float64(1), suite.telemetry.Counter(telemetry.KeyDuplicateRequests))
	suite.ElementsMatch([]string{types.ActivityRequest, types.ActivityDuplicate}, suite.notifier.kinds())
}

func (suite *SchedulerTestSuite) TestStopClosesResponses() {
	requests := make(chan types.FlightStatusRequest)
	suite.scheduler.Start(suite.ctx, requests)
	suite.scheduler.Stop()

	select {
	case _, ok := <-suite.scheduler.Responses():
		suite.False(ok)
	case <-suite.ctx.Done():
		suite.FailNow("responses not closed")
	}
}

func (suite *SchedulerTestSuite) TestRandomStatus() {
	policy := RandomStatus(rand.New(rand.NewSource(1)))

	seen := make(map[types.StatusCode]bool)
	for i := 0; i < 500; i++ {
		status, err := policy.ChooseStatus(suite.ctx, request(1))
		suite.Require().NoError(err)
		suite.Require().Contains(types.ReportableStatuses, status)
		seen[status] = true
	}
	suite.Len(seen, len(types.ReportableStatuses))
}

func (suite *SchedulerTestSuite) TestPolicyFromConfig() {
	policy, err := PolicyFromConfig(config.OracleConfig{StatusPolicy: config.PolicyFixed, FixedStatus: 30})
	suite.Require().NoError(err)
	status, err := policy.ChooseStatus(suite.ctx, request(1))
	suite.Require().NoError(err)
	suite.Equal(types.StatusLateWeather, status)

	_, err = PolicyFromConfig(config.OracleConfig{StatusPolicy: config.PolicyRandom})
	suite.NoError(err)

	_, err = PolicyFromConfig(config.OracleConfig{StatusPolicy: config.PolicyHTTP, StatusURL: "http://x", StatusPath: "status"})
	suite.NoError(err)

	_, err = PolicyFromConfig(config.OracleConfig{StatusPolicy: config.PolicyFixed, FixedStatus: 11})
	suite.True(errorsmod.IsOf(err, types.ErrConfig))

	_, err = PolicyFromConfig(config.OracleConfig{StatusPolicy: "weighted"})
	suite.True(errorsmod.IsOf(err, types.ErrConfig))
}
