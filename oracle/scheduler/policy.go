package scheduler

import (
	"context"
	"math/rand"
	"sync"
	"time"

	errorsmod "cosmossdk.io/errors"

	"github.com/GPTx-global/flightsurety/oracle/config"
	"github.com/GPTx-global/flightsurety/oracle/types"
)

// StatusPolicy decides the status an oracle reports for a request.
type StatusPolicy interface {
	ChooseStatus(ctx context.Context, req types.FlightStatusRequest) (types.StatusCode, error)
}

type StatusPolicyFunc func(ctx context.Context, req types.FlightStatusRequest) (types.StatusCode, error)

func (f StatusPolicyFunc) ChooseStatus(ctx context.Context, req types.FlightStatusRequest) (types.StatusCode, error) {
	return f(ctx, req)
}

type randomStatus struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// RandomStatus picks uniformly among the reportable status codes.
func RandomStatus(rng *rand.Rand) StatusPolicy {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &randomStatus{rng: rng}
}

func (p *randomStatus) ChooseStatus(context.Context, types.FlightStatusRequest) (types.StatusCode, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return types.ReportableStatuses[p.rng.Intn(len(types.ReportableStatuses))], nil
}

// FixedStatus always reports code.
func FixedStatus(code types.StatusCode) StatusPolicy {
	return StatusPolicyFunc(func(context.Context, types.FlightStatusRequest) (types.StatusCode, error) {
		return code, nil
	})
}

// PolicyFromConfig builds the policy named by status_policy.
func PolicyFromConfig(cfg config.OracleConfig) (StatusPolicy, error) {
	switch cfg.StatusPolicy {
	case config.PolicyRandom, "":
		return RandomStatus(nil), nil
	case config.PolicyFixed:
		code := types.StatusCode(cfg.FixedStatus)
		if !code.Valid() {
			return nil, errorsmod.Wrapf(types.ErrConfig, "invalid fixed status: %d", cfg.FixedStatus)
		}
		return FixedStatus(code), nil
	case config.PolicyHTTP:
		return HTTPStatus(cfg.StatusURL, cfg.StatusPath), nil
	default:
		return nil, errorsmod.Wrapf(types.ErrConfig, "unknown status policy: %s", cfg.StatusPolicy)
	}
}
