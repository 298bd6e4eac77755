package registry

import (
	"bytes"
	"slices"

	"github.com/ethereum/go-ethereum/common"
	cmap "github.com/orcaman/concurrent-map/v2"

	"github.com/GPTx-global/flightsurety/oracle/types"
)

// Pool is the set of accounts registered as oracles in this run, keyed by
// account.
type Pool struct {
	oracles cmap.ConcurrentMap[string, types.Oracle]
}

func NewPool(oracles ...types.Oracle) *Pool {
	p := &Pool{oracles: cmap.New[types.Oracle]()}
	for _, o := range oracles {
		p.Add(o)
	}
	return p
}

func (p *Pool) Add(o types.Oracle) {
	p.oracles.Set(o.Account.Hex(), o)
}

func (p *Pool) Get(account common.Address) (types.Oracle, bool) {
	return p.oracles.Get(account.Hex())
}

func (p *Pool) Len() int {
	return p.oracles.Count()
}

// Oracles returns the pool ordered by account.
func (p *Pool) Oracles() []types.Oracle {
	oracles := make([]types.Oracle, 0, p.oracles.Count())
	for _, o := range p.oracles.Items() {
		oracles = append(oracles, o)
	}

	slices.SortFunc(oracles, func(a, b types.Oracle) int {
		return bytes.Compare(a.Account.Bytes(), b.Account.Bytes())
	})
	return oracles
}

// Matching returns the oracles whose assigned indexes contain index, ordered
// by account.
func (p *Pool) Matching(index uint8) []types.Oracle {
	var matched []types.Oracle
	for _, o := range p.Oracles() {
		if o.Has(index) {
			matched = append(matched, o)
		}
	}
	return matched
}
