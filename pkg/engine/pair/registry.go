package pair

import (
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// Registry is the authoritative set of tradable pairs. It is pure
// bookkeeping: the engine decides when a pair may be added or removed
// (e.g. only removing pairs whose book is empty).
type Registry struct {
	mu    sync.RWMutex
	pairs map[common.Hash]*Pair
	// insertion order, for stable pagination
	order []common.Hash
}

func NewRegistry() *Registry {
	return &Registry{pairs: make(map[common.Hash]*Pair)}
}

// Add registers a new pair and returns it. The id is derived from the
// asset addresses, so (A, B) and (B, A) collide; the first registration
// fixes the base/quote orientation.
func (r *Registry) Add(base, quote common.Address, baseDecimals, quoteDecimals uint8) (*Pair, error) {
	zero := common.Address{}
	if base == zero || quote == zero || base == quote {
		return nil, ErrInvalidAsset
	}

	id := DeriveID(base, quote)

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.pairs[id]; ok {
		return nil, ErrExists
	}

	p := &Pair{
		ID:            id,
		Base:          base,
		Quote:         quote,
		BaseDecimals:  baseDecimals,
		QuoteDecimals: quoteDecimals,
	}
	r.pairs[id] = p
	r.order = append(r.order, id)
	return p, nil
}

// Remove deletes a pair. The caller must have verified the pair's book is
// empty first.
func (r *Registry) Remove(id common.Hash) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.pairs[id]; !ok {
		return ErrNotFound
	}
	delete(r.pairs, id)
	for i, v := range r.order {
		if v == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return nil
}

// Get returns the pair with the given id.
func (r *Registry) Get(id common.Hash) (*Pair, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.pairs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return p, nil
}

// Lookup resolves two assets to their registered pair, in either order.
func (r *Registry) Lookup(a, b common.Address) (*Pair, error) {
	return r.Get(DeriveID(a, b))
}

// List returns up to limit pairs starting at offset, in registration
// order. limit <= 0 means no cap.
func (r *Registry) List(offset, limit int) []*Pair {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if offset >= len(r.order) {
		return nil
	}
	end := len(r.order)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	out := make([]*Pair, 0, end-offset)
	for _, id := range r.order[offset:end] {
		out = append(out, r.pairs[id])
	}
	return out
}

// Count returns the number of registered pairs.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.pairs)
}
