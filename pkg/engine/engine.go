// Package engine is the matching engine: it owns every order book and all
// order state, holds the vault's privileged ledger handle, and exposes the
// public operations of the exchange. Every mutating operation runs as one
// indivisible step behind the engine lock and either fully applies or
// fully rejects - validation happens before the first mutation, so there
// is never a partially-visible intermediate state.
package engine

import (
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/jwhyun/limitbook/pkg/engine/book"
	"github.com/jwhyun/limitbook/pkg/engine/pair"
	"github.com/jwhyun/limitbook/pkg/engine/vault"
	"github.com/jwhyun/limitbook/pkg/events"
	"github.com/jwhyun/limitbook/pkg/util"
)

// Config carries the admin identity and fee defaults.
type Config struct {
	Admin    common.Address
	MakerBps int64
	TakerBps int64
}

// tracked pairs a live or historical order with its pair; book.Order only
// knows about one side of one book.
type tracked struct {
	o *book.Order
	p *pair.Pair
}

type Engine struct {
	mu sync.Mutex

	log   *zap.SugaredLogger
	clock util.Clock

	vault  *vault.Vault
	ledger *vault.Ledger
	pairs  *pair.Registry
	books  map[common.Hash]*book.Book

	// every order ever placed, including terminal ones, for historical
	// lookup; ids are never reused
	orders map[uint64]*tracked
	nextID uint64

	sink events.Sink
	seq  uint64

	admin    common.Address
	makerBps int64
	takerBps int64
}

// New wires the engine to its vault and event sinks. It takes the vault's
// one-time ledger capability; constructing a second engine over the same
// vault fails with Unauthorized.
func New(cfg Config, v *vault.Vault, sink events.Sink, lastSeq uint64, logger *zap.SugaredLogger, clock util.Clock) (*Engine, error) {
	if cfg.MakerBps < 0 || cfg.MakerBps > MaxFeeBps || cfg.TakerBps < 0 || cfg.TakerBps > MaxFeeBps {
		return nil, ErrFeeTooHigh
	}

	ledger, err := v.Bind()
	if err != nil {
		return nil, fmt.Errorf("bind vault ledger: %w", err)
	}

	if sink == nil {
		sink = events.Fanout(nil)
	}
	if clock == nil {
		clock = util.RealClock{}
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	return &Engine{
		log:      logger,
		clock:    clock,
		vault:    v,
		ledger:   ledger,
		pairs:    pair.NewRegistry(),
		books:    make(map[common.Hash]*book.Book),
		orders:   make(map[uint64]*tracked),
		sink:     sink,
		seq:      lastSeq,
		admin:    cfg.Admin,
		makerBps: cfg.MakerBps,
		takerBps: cfg.TakerBps,
	}, nil
}

// Vault exposes the public (non-privileged) side of the balance ledger.
func (e *Engine) Vault() *vault.Vault { return e.vault }

// emit assigns the next sequence number and publishes. Called with e.mu
// held, after the operation's state is fully committed.
func (e *Engine) emit(kind events.Kind, data any) {
	e.seq++
	ev := events.Event{
		Seq:  e.seq,
		Kind: kind,
		Time: e.clock.Now().UnixMilli(),
		Data: data,
	}
	if err := e.sink.Publish(ev); err != nil {
		e.log.Errorw("event_publish_failed", "seq", ev.Seq, "kind", ev.Kind, "err", err)
	}
}

// ==============================
// Balance operations
// ==============================

// Deposit credits a user's available balance.
func (e *Engine) Deposit(user, asset common.Address, amount int64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.vault.Deposit(user, asset, amount); err != nil {
		return err
	}
	e.emit(events.KindDeposit, events.Deposit{User: user, Asset: asset, Amount: amount})
	return nil
}

// Withdraw debits a user's available balance. Funds reserved by resting
// orders are already debited, so they can never be withdrawn.
func (e *Engine) Withdraw(user, asset common.Address, amount int64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.vault.Withdraw(user, asset, amount); err != nil {
		return err
	}
	e.emit(events.KindWithdrawal, events.Withdrawal{User: user, Asset: asset, Amount: amount})
	return nil
}

// ==============================
// Pair registry operations
// ==============================

// AddPair registers a tradable pair and creates its empty book. Admin
// only.
func (e *Engine) AddPair(caller common.Address, base, quote common.Address, baseDecimals, quoteDecimals uint8) (*pair.Pair, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if caller != e.admin {
		return nil, ErrUnauthorized
	}
	p, err := e.pairs.Add(base, quote, baseDecimals, quoteDecimals)
	if err != nil {
		return nil, err
	}
	e.books[p.ID] = book.New()
	e.emit(events.KindPairAdded, events.PairAdded{
		PairID:        p.ID,
		Base:          p.Base,
		Quote:         p.Quote,
		BaseDecimals:  p.BaseDecimals,
		QuoteDecimals: p.QuoteDecimals,
	})
	return p, nil
}

// RemovePair deletes a pair whose book is empty on both sides. Admin
// only.
func (e *Engine) RemovePair(caller common.Address, id common.Hash) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if caller != e.admin {
		return ErrUnauthorized
	}
	bk, ok := e.books[id]
	if !ok {
		return ErrPairNotFound
	}
	if !bk.Empty() {
		return ErrPairHasOpenOrders
	}
	if err := e.pairs.Remove(id); err != nil {
		return err
	}
	delete(e.books, id)
	e.emit(events.KindPairRemoved, events.PairRemoved{PairID: id})
	return nil
}

// PairID resolves two assets to their pair id, in either order.
func (e *Engine) PairID(a, b common.Address) (common.Hash, error) {
	p, err := e.pairs.Lookup(a, b)
	if err != nil {
		return common.Hash{}, err
	}
	return p.ID, nil
}

// GetPair returns a pair's metadata.
func (e *Engine) GetPair(id common.Hash) (*pair.Pair, error) {
	return e.pairs.Get(id)
}

// ListPairs returns up to limit pairs starting at offset.
func (e *Engine) ListPairs(offset, limit int) []*pair.Pair {
	return e.pairs.List(offset, limit)
}

// PairCount returns the number of registered pairs.
func (e *Engine) PairCount() int { return e.pairs.Count() }

// LastSeq returns the sequence number of the last emitted event.
func (e *Engine) LastSeq() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.seq
}

// ==============================
// Admin operations
// ==============================

// SetFeeRates updates the maker/taker basis-point rates. Admin only.
func (e *Engine) SetFeeRates(caller common.Address, makerBps, takerBps int64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if caller != e.admin {
		return ErrUnauthorized
	}
	if makerBps < 0 || makerBps > MaxFeeBps || takerBps < 0 || takerBps > MaxFeeBps {
		return ErrFeeTooHigh
	}
	e.makerBps, e.takerBps = makerBps, takerBps
	e.emit(events.KindFeeRatesUpdated, events.FeeRatesUpdated{MakerBps: makerBps, TakerBps: takerBps})
	return nil
}

// FeeRates returns the current maker/taker rates.
func (e *Engine) FeeRates() (makerBps, takerBps int64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.makerBps, e.takerBps
}

// WithdrawFees moves the full accrued fee amount for an asset to the
// admin's available balance. Admin only.
func (e *Engine) WithdrawFees(caller common.Address, asset common.Address) (int64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if caller != e.admin {
		return 0, ErrUnauthorized
	}
	acc, err := e.ledger.WithdrawFees(asset, caller)
	if err != nil {
		return 0, err
	}
	if acc.Total() == 0 {
		return 0, nil
	}
	e.emit(events.KindFeesWithdrawn, events.FeesWithdrawn{
		Asset: asset,
		To:    caller,
		Maker: acc.Maker,
		Taker: acc.Taker,
	})
	return acc.Total(), nil
}

// ==============================
// Order cancellation
// ==============================

// CancelOrder removes the caller's resting order from the book and
// refunds the unused reservation.
func (e *Engine) CancelOrder(caller common.Address, id uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	tr, ok := e.orders[id]
	if !ok {
		return ErrOrderNotFound
	}
	if tr.o.Owner != caller {
		return ErrNotOrderOwner
	}
	if !tr.o.Active {
		return ErrOrderNotActive
	}

	refundAsset, refundAmount := reservationOf(tr.p, tr.o.Side, tr.o.Remaining, tr.o.Price)

	// The refund lands before the book mutates: if the credit fails on a
	// persistence fault the order stays resting and the cancel can be
	// retried, instead of leaving a removed order with no refund.
	if err := e.ledger.Credit(caller, refundAsset, refundAmount); err != nil {
		e.log.Errorw("cancel_refund_failed", "order", id, "err", err)
		return err
	}

	e.books[tr.p.ID].Remove(tr.o)
	tr.o.Active = false

	e.emit(events.KindOrderCancelled, events.OrderCancelled{
		OrderID: id,
		Owner:   caller,
		PairID:  tr.p.ID,
		Refund:  events.FeeAmount{Asset: refundAsset, Amount: refundAmount},
	})
	return nil
}

// reservationOf returns the asset and amount a (side, amount, price)
// order commits: buys reserve quote amount*price, sells reserve base.
// Multiplication safety is established at placement.
func reservationOf(p *pair.Pair, side book.Side, amount, price int64) (common.Address, int64) {
	if side == book.Buy {
		return p.Quote, amount * price
	}
	return p.Base, amount
}

// ==============================
// Read operations
// ==============================

// OrderInfo is an immutable snapshot of an order for queries and the API.
type OrderInfo struct {
	ID        uint64         `json:"id"`
	Owner     common.Address `json:"owner"`
	PairID    common.Hash    `json:"pairId"`
	Side      string         `json:"side"`
	TIF       string         `json:"tif"`
	Price     int64          `json:"price"`
	Original  int64          `json:"original"`
	Remaining int64          `json:"remaining"`
	Active    bool           `json:"active"`
}

func snapshotOrder(tr *tracked) OrderInfo {
	return OrderInfo{
		ID:        tr.o.ID,
		Owner:     tr.o.Owner,
		PairID:    tr.p.ID,
		Side:      tr.o.Side.String(),
		TIF:       tr.o.TIF.String(),
		Price:     tr.o.Price,
		Original:  tr.o.Original,
		Remaining: tr.o.Remaining,
		Active:    tr.o.Active,
	}
}

// GetOrder returns any order ever placed, terminal or not.
func (e *Engine) GetOrder(id uint64) (OrderInfo, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	tr, ok := e.orders[id]
	if !ok {
		return OrderInfo{}, ErrOrderNotFound
	}
	return snapshotOrder(tr), nil
}

// BestPrice returns the best price of one side of a pair's book.
func (e *Engine) BestPrice(id common.Hash, side book.Side) (int64, bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	bk, ok := e.books[id]
	if !ok {
		return 0, false, ErrPairNotFound
	}
	price, ok := bk.BestPrice(side)
	return price, ok, nil
}

// BestOrder returns the order first in line at the best price of a side.
func (e *Engine) BestOrder(id common.Hash, side book.Side) (OrderInfo, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	bk, ok := e.books[id]
	if !ok {
		return OrderInfo{}, ErrPairNotFound
	}
	lvl := bk.Best(side)
	if lvl == nil {
		return OrderInfo{}, ErrOrderNotFound
	}
	return snapshotOrder(e.orders[lvl.Head().ID]), nil
}

// Depth returns up to limit aggregated price levels of a side, best
// first, starting offset levels in.
func (e *Engine) Depth(id common.Hash, side book.Side, offset, limit int) ([]book.Depth, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	bk, ok := e.books[id]
	if !ok {
		return nil, ErrPairNotFound
	}
	return bk.DepthSnapshot(side, offset, limit), nil
}

// OpenOrders returns the user's resting orders across all pairs, oldest
// first, paginated.
func (e *Engine) OpenOrders(owner common.Address, offset, limit int) []OrderInfo {
	e.mu.Lock()
	defer e.mu.Unlock()

	var ids []uint64
	for id, tr := range e.orders {
		if tr.o.Owner == owner && tr.o.Active {
			ids = append(ids, id)
		}
	}
	sortIDs(ids)

	if offset >= len(ids) {
		return nil
	}
	end := len(ids)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	out := make([]OrderInfo, 0, end-offset)
	for _, id := range ids[offset:end] {
		out = append(out, snapshotOrder(e.orders[id]))
	}
	return out
}

// BookReserves sums what the books implicitly hold of one asset: quote
// reservations of resting bids plus base reservations of resting asks.
// Together with available balances and accrued fees this is the
// conservation check: reserves + available + fees == deposits - withdrawals.
func (e *Engine) BookReserves(asset common.Address) int64 {
	e.mu.Lock()
	defer e.mu.Unlock()

	var sum int64
	for _, tr := range e.orders {
		if !tr.o.Active {
			continue
		}
		resAsset, resAmount := reservationOf(tr.p, tr.o.Side, tr.o.Remaining, tr.o.Price)
		if resAsset == asset {
			sum += resAmount
		}
	}
	return sum
}

func sortIDs(ids []uint64) {
	for i := 1; i < len(ids); i++ {
		for j := i; j > 0 && ids[j] < ids[j-1]; j-- {
			ids[j], ids[j-1] = ids[j-1], ids[j]
		}
	}
}
