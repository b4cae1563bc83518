// Package book implements one trading pair's price-ordered order book:
// two red-black trees keyed by price (bids and asks), each node holding a
// FIFO queue of resting orders at that exact price. Best-price lookup is
// O(log n) in the number of live price levels; dequeue at a level is O(1).
//
// The book never touches balances and never decides matches - it is a pure
// index structure driven by the engine.
package book

// Book indexes the resting orders of a single pair.
type Book struct {
	bids *tree
	asks *tree

	// resting order id -> order, for O(1) cancellation. Orders leave the
	// index the moment they leave the book.
	resting map[uint64]*Order
}

func New() *Book {
	return &Book{
		bids:    newTree(),
		asks:    newTree(),
		resting: make(map[uint64]*Order),
	}
}

func (b *Book) side(s Side) *tree {
	if s == Buy {
		return b.bids
	}
	return b.asks
}

// Insert rests o at the tail of its price level, creating the level on
// first use.
func (b *Book) Insert(o *Order) {
	lvl := b.side(o.Side).upsert(o.Price)
	lvl.enqueue(o)
	b.resting[o.ID] = o
}

// Remove unlinks o from its price level and drops the level if it became
// empty. o must be resting.
func (b *Book) Remove(o *Order) {
	lvl := o.level
	lvl.unlink(o)
	delete(b.resting, o.ID)
	if lvl.Count == 0 {
		b.side(o.Side).delete(lvl.Price)
	}
}

// Reduce shrinks a resting order by qty. If the order reaches zero it is
// removed from the book in the same step, per the book invariant that a
// resting order always has remaining > 0.
func (b *Book) Reduce(o *Order, qty int64) {
	o.level.reduce(o, qty)
	if o.Remaining == 0 {
		b.Remove(o)
	}
}

// Resting returns the resting order with the given id, or nil.
func (b *Book) Resting(id uint64) *Order { return b.resting[id] }

// Best returns the extremal level of a side: highest price for bids,
// lowest for asks. Nil if the side is empty.
func (b *Book) Best(s Side) *Level {
	if s == Buy {
		return b.bids.max()
	}
	return b.asks.min()
}

// BestPrice returns the best price of a side and whether the side is
// non-empty.
func (b *Book) BestPrice(s Side) (int64, bool) {
	lvl := b.Best(s)
	if lvl == nil {
		return 0, false
	}
	return lvl.Price, true
}

// SideEmpty reports whether a side has no resting orders.
func (b *Book) SideEmpty(s Side) bool { return b.side(s).len() == 0 }

// Empty reports whether both sides are empty.
func (b *Book) Empty() bool { return b.bids.len() == 0 && b.asks.len() == 0 }

// Levels returns the number of live price levels on a side.
func (b *Book) Levels(s Side) int { return b.side(s).len() }

// Walk visits a side's levels best-first: bids descending, asks ascending.
// The callback returns false to stop.
func (b *Book) Walk(s Side, fn func(*Level) bool) {
	if s == Buy {
		b.bids.descend(fn)
	} else {
		b.asks.ascend(fn)
	}
}

// Depth is one aggregated price level of a depth snapshot.
type Depth struct {
	Price  int64 `json:"price"`
	Amount int64 `json:"amount"`
	Orders int   `json:"orders"`
}

// DepthSnapshot returns up to limit aggregated levels of a side starting
// at offset levels from the best. limit <= 0 means no cap.
func (b *Book) DepthSnapshot(s Side, offset, limit int) []Depth {
	var out []Depth
	skipped := 0
	b.Walk(s, func(lvl *Level) bool {
		if skipped < offset {
			skipped++
			return true
		}
		out = append(out, Depth{Price: lvl.Price, Amount: lvl.Total, Orders: lvl.Count})
		return limit <= 0 || len(out) < limit
	})
	return out
}
