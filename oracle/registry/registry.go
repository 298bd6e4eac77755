package registry

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"golang.org/x/sync/errgroup"

	"github.com/GPTx-global/flightsurety/oracle/log"
	"github.com/GPTx-global/flightsurety/oracle/telemetry"
	"github.com/GPTx-global/flightsurety/oracle/types"
)

// Backend is the part of the app contract registration needs.
type Backend interface {
	RegistrationFee(ctx context.Context) (*big.Int, error)
	RegisterOracle(ctx context.Context, account common.Address, fee *big.Int) (*ethtypes.Receipt, error)
	GetMyIndexes(ctx context.Context, account common.Address) ([types.IndexCount]uint8, error)
}

type Registry struct {
	backend     Backend
	concurrency int
	telemetry   *telemetry.Telemetry
}

// New returns a Registry issuing at most concurrency registrations at once.
func New(backend Backend, concurrency int, tm *telemetry.Telemetry) *Registry {
	if concurrency < 1 {
		concurrency = 1
	}

	return &Registry{
		backend:     backend,
		concurrency: concurrency,
		telemetry:   tm,
	}
}

// RegisterAll registers the first poolSize accounts as oracles and records
// the indexes the contract assigned to each. An account whose registration
// or index query fails is logged and left out of the pool. The error is
// non-nil only if the fee cannot be read or ctx is cancelled.
func (r *Registry) RegisterAll(ctx context.Context, accounts []common.Address, poolSize int) (*Pool, error) {
	if poolSize > len(accounts) {
		log.Warnf("pool size %d exceeds %d available accounts", poolSize, len(accounts))
		poolSize = len(accounts)
	}

	fee, err := r.backend.RegistrationFee(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read registration fee: %w", err)
	}
	log.Infof("registering %d oracles, fee %s wei", poolSize, fee)

	pool := NewPool()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)

	for _, account := range accounts[:poolSize] {
		account := account
		g.Go(func() error {
			oracle, err := r.register(gctx, account, fee)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				log.Errorf("oracle %s excluded from pool: %v", account.Hex(), err)
				r.telemetry.IncrCounter(telemetry.KeyRegistrationFailed, 1)
				return nil
			}

			pool.Add(oracle)
			r.telemetry.IncrCounter(telemetry.KeyRegistered, 1)
			log.Debugf("oracle registered: %s", oracle)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	r.telemetry.SetGauge(telemetry.KeyPoolSize, float32(pool.Len()))
	log.Infof("oracle pool ready: %d/%d registered", pool.Len(), poolSize)

	return pool, nil
}

// register sends the registration and only then queries the indexes of the
// same account.
func (r *Registry) register(ctx context.Context, account common.Address, fee *big.Int) (types.Oracle, error) {
	if _, err := r.backend.RegisterOracle(ctx, account, fee); err != nil {
		return types.Oracle{}, fmt.Errorf("register: %w", err)
	}

	indexes, err := r.backend.GetMyIndexes(ctx, account)
	if err != nil {
		return types.Oracle{}, fmt.Errorf("get indexes: %w", err)
	}

	return types.Oracle{Account: account, Indexes: indexes}, nil
}
