package submitter

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	errorsmod "cosmossdk.io/errors"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"

	"github.com/GPTx-global/flightsurety/oracle/telemetry"
	"github.com/GPTx-global/flightsurety/oracle/types"
)

type MockBackend struct {
	mock.Mock
}

func (m *MockBackend) SubmitOracleResponse(ctx context.Context, resp types.OracleResponse) (*ethtypes.Receipt, error) {
	args := m.Called(ctx, resp)
	receipt, _ := args.Get(0).(*ethtypes.Receipt)
	return receipt, args.Error(1)
}

type SubmitterTestSuite struct {
	suite.Suite
	ctx       context.Context
	cancel    context.CancelFunc
	backend   *MockBackend
	telemetry *telemetry.Telemetry
}

func TestSubmitterTestSuite(t *testing.T) {
	suite.Run(t, new(SubmitterTestSuite))
}

func (suite *SubmitterTestSuite) SetupTest() {
	var err error
	suite.ctx, suite.cancel = context.WithTimeout(context.Background(), 5*time.Second)
	suite.backend = new(MockBackend)
	suite.telemetry, err = telemetry.New(time.Minute, time.Minute)
	suite.Require().NoError(err)
}

func (suite *SubmitterTestSuite) TearDownTest() {
	suite.cancel()
}

func response(account byte, status types.StatusCode) types.OracleResponse {
	return types.OracleResponse{
		Account:   common.BytesToAddress([]byte{account}),
		Index:     1,
		Airline:   common.HexToAddress("0x01"),
		Flight:    "ND1309",
		Timestamp: big.NewInt(1_700_000_000),
		Status:    status,
	}
}

func (suite *SubmitterTestSuite) TestSubmitAll() {
	ok := response(1, types.StatusOnTime)
	rejected := response(2, types.StatusLateAirline)
	failed := response(3, types.StatusLateOther)

	suite.backend.On("SubmitOracleResponse", mock.Anything, ok).Return(&ethtypes.Receipt{Status: 1}, nil).Once()
	suite.backend.On("SubmitOracleResponse", mock.Anything, rejected).
		Return(nil, errorsmod.Wrap(types.ErrRevert, "Flight or timestamp do not match oracle request")).Once()
	suite.backend.On("SubmitOracleResponse", mock.Anything, failed).Return(nil, errors.New("connection reset")).Once()

	responses := make(chan types.OracleResponse, 3)
	responses <- ok
	responses <- rejected
	responses <- failed
	close(responses)

	s := New(suite.backend, 2, suite.telemetry, nil)
	s.Start(suite.ctx, responses)
	s.Wait()

	suite.backend.AssertExpectations(suite.T())
	suite.Equal(float64(1), suite.telemetry.Counter(telemetry.KeyResponses))
	suite.Equal(float64(2), suite.telemetry.Counter(telemetry.KeyResponsesRejected))
}

func (suite *SubmitterTestSuite) TestNoRetryOnRejection() {
	resp := response(1, types.StatusOnTime)
	suite.backend.On("SubmitOracleResponse", mock.Anything, resp).Return(nil, errorsmod.Wrap(types.ErrRevert, "closed"))

	s := New(suite.backend, 1, nil, nil)
	suite.False(s.Submit(suite.ctx, resp))
	suite.backend.AssertNumberOfCalls(suite.T(), "SubmitOracleResponse", 1)
}

func (suite *SubmitterTestSuite) TestStopsOnCancel() {
	ctx, cancel := context.WithCancel(suite.ctx)
	s := New(suite.backend, 3, nil, nil)
	s.Start(ctx, make(chan types.OracleResponse))

	cancel()

	done := make(chan struct{})
	go func() {
		s.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-suite.ctx.Done():
		suite.FailNow("workers did not stop")
	}
}
