package market

import "sync"

// Registry owns every market, indexed by a monotonically increasing id.
// The registry lock covers only the index itself; per-market state is
// serialized by each market's own mutex.
type Registry struct {
	mu      sync.RWMutex
	markets []*Market
}

func NewRegistry() *Registry {
	return &Registry{}
}

// Create registers a new market and returns it. The id is the position in
// the append-only index.
func (r *Registry) Create(core MarketCore) *Market {
	r.mu.Lock()
	defer r.mu.Unlock()

	m := &Market{
		ID:   int64(len(r.markets)),
		Core: core,
	}
	r.markets = append(r.markets, m)
	return m
}

// Get returns the market with the given id, or false when id >= count.
func (r *Registry) Get(id int64) (*Market, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if id < 0 || id >= int64(len(r.markets)) {
		return nil, false
	}
	return r.markets[id], true
}

// Count returns the number of registered markets.
func (r *Registry) Count() int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return int64(len(r.markets))
}

// All returns the current market index. Callers must take each market's lock
// before reading mutable state.
func (r *Registry) All() []*Market {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Market, len(r.markets))
	copy(out, r.markets)
	return out
}
