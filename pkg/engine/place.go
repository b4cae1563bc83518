package engine

import (
	"fmt"
	"math"

	"github.com/ethereum/go-ethereum/common"

	"github.com/jwhyun/limitbook/pkg/engine/book"
	"github.com/jwhyun/limitbook/pkg/engine/pair"
	"github.com/jwhyun/limitbook/pkg/engine/vault"
	"github.com/jwhyun/limitbook/pkg/events"
)

// PlaceRequest is a limit order submission. PairID fixes the orientation:
// a Buy spends quote for base, a Sell spends base for quote.
type PlaceRequest struct {
	Owner  common.Address
	PairID common.Hash
	Side   book.Side
	TIF    book.TimeInForce
	Price  int64
	Amount int64
}

// Fill is one execution against a resting maker, always at the maker's
// posted price.
type Fill struct {
	MakerOrderID uint64
	MakerOwner   common.Address
	Price        int64
	Amount       int64
	MakerFee     events.FeeAmount
	TakerFee     events.FeeAmount
}

// PlaceResult reports what happened to a submission: zero or more fills,
// then either a resting remainder (GTC) or a discarded one (IOC).
type PlaceResult struct {
	OrderID   uint64
	Fills     []Fill
	Remaining int64
	Rested    bool
}

// plan is everything a placement will do, computed before anything is
// touched. Building it can fail; applying it cannot.
type plan struct {
	fills   []Fill
	entries []entryAcc

	// fee accumulator deltas by asset
	makerFees map[common.Address]int64
	takerFees map[common.Address]int64

	remaining int64
	rested    bool
}

// entryAcc accumulates a net balance movement for one (user, asset).
type entryAcc struct {
	user   common.Address
	asset  common.Address
	amount int64
}

// PlaceOrder validates, matches and settles a limit order as one atomic
// step. Every rejection happens during planning, before the book or the
// vault is touched; once planning succeeds the whole result - fills,
// settlement, the resting remainder - is committed together.
func (e *Engine) PlaceOrder(req PlaceRequest) (PlaceResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	p, bk, err := e.resolvePlacement(req)
	if err != nil {
		return PlaceResult{}, err
	}

	pl, err := e.planMatch(req, p, bk)
	if err != nil {
		return PlaceResult{}, err
	}

	return e.applyPlacement(req, p, bk, pl)
}

func (e *Engine) resolvePlacement(req PlaceRequest) (*pair.Pair, *book.Book, error) {
	if req.Amount <= 0 || req.Price <= 0 {
		return nil, nil, fmt.Errorf("%w: amount and price must be positive", ErrInvalidOrder)
	}
	if req.TIF != book.GTC && req.TIF != book.IOC {
		return nil, nil, fmt.Errorf("%w: unknown time in force", ErrInvalidOrder)
	}
	p, err := e.pairs.Get(req.PairID)
	if err != nil {
		return nil, nil, err
	}
	return p, e.books[req.PairID], nil
}

// planMatch walks the opposite side of the book read-only, collecting the
// fills the order would take and pricing every fee, then verifies the
// taker can fund the whole thing. The book and vault are not modified.
//
// Fee policy: the taker fee is quote-denominated at takerBps of each
// fill's quote value. A buy taker pays it on top of the reservation; a
// sell taker has it withheld from proceeds. The maker fee comes out of
// the maker's proceeds in whatever asset those proceeds are - quote for
// an ask maker, base for a bid maker - so settling a maker can never
// fail for funds.
func (e *Engine) planMatch(req PlaceRequest, p *pair.Pair, bk *book.Book) (*plan, error) {
	if req.Side == book.Buy {
		// the full reservation must be representable before anything else
		if _, err := mulCheck(req.Amount, req.Price); err != nil {
			return nil, err
		}
	}

	pl := &plan{
		remaining: req.Amount,
		makerFees: make(map[common.Address]int64),
		takerFees: make(map[common.Address]int64),
	}

	var filledQuote, filledBase, takerFeeTotal int64

	stop := false
	bk.Walk(req.Side.Opposite(), func(lvl *book.Level) bool {
		if stop || pl.remaining == 0 {
			return false
		}
		if req.Side == book.Buy && lvl.Price > req.Price {
			return false
		}
		if req.Side == book.Sell && lvl.Price < req.Price {
			return false
		}

		for maker := lvl.Head(); maker != nil && pl.remaining > 0; maker = maker.Next() {
			qty := min64(pl.remaining, maker.Remaining)

			quoteValue, err := mulCheck(qty, lvl.Price)
			if err != nil {
				stop = true
				return false
			}
			if filledQuote > math.MaxInt64-quoteValue {
				stop = true
				return false
			}

			takerFee := feeOf(quoteValue, e.takerBps)
			var makerFee events.FeeAmount
			if req.Side == book.Buy {
				// ask maker earns quote
				makerFee = events.FeeAmount{Asset: p.Quote, Amount: feeOf(quoteValue, e.makerBps)}
			} else {
				// bid maker earns base
				makerFee = events.FeeAmount{Asset: p.Base, Amount: feeOf(qty, e.makerBps)}
			}

			pl.fills = append(pl.fills, Fill{
				MakerOrderID: maker.ID,
				MakerOwner:   maker.Owner,
				Price:        lvl.Price,
				Amount:       qty,
				MakerFee:     makerFee,
				TakerFee:     events.FeeAmount{Asset: p.Quote, Amount: takerFee},
			})

			pl.remaining -= qty
			filledQuote += quoteValue
			filledBase += qty
			takerFeeTotal += takerFee
			pl.makerFees[makerFee.Asset] += makerFee.Amount
			pl.takerFees[p.Quote] += takerFee
		}
		return true
	})
	if stop {
		return nil, fmt.Errorf("%w: fill value overflows", ErrInvalidOrder)
	}

	pl.rested = req.TIF == book.GTC && pl.remaining > 0

	// Net movement for the taker. Debits are validated against the live
	// balance here and again inside the settlement batch.
	if req.Side == book.Buy {
		var restReserve int64
		if pl.rested {
			restReserve = pl.remaining * req.Price
		}
		// the fee rides on top of the notional, so the sum needs its own
		// overflow check
		need, err := addCheck(filledQuote, takerFeeTotal)
		if err != nil {
			return nil, err
		}
		if need, err = addCheck(need, restReserve); err != nil {
			return nil, err
		}
		if e.vault.Balance(req.Owner, p.Quote) < need {
			return nil, ErrInsufficientBalance
		}
		pl.addEntry(req.Owner, p.Quote, -need)
		pl.addEntry(req.Owner, p.Base, filledBase)
	} else {
		var restReserve int64
		if pl.rested {
			restReserve = pl.remaining
		}
		need := filledBase + restReserve
		if e.vault.Balance(req.Owner, p.Base) < need {
			return nil, ErrInsufficientBalance
		}
		pl.addEntry(req.Owner, p.Base, -need)
		// MaxFeeBps keeps the withheld fee strictly below proceeds.
		pl.addEntry(req.Owner, p.Quote, filledQuote-takerFeeTotal)
	}

	// Maker proceeds, net of the maker fee. Their reservation was debited
	// at placement, so only the credit leg appears here.
	for _, f := range pl.fills {
		if req.Side == book.Buy {
			pl.addEntry(f.MakerOwner, p.Quote, f.Amount*f.Price-f.MakerFee.Amount)
		} else {
			pl.addEntry(f.MakerOwner, p.Base, f.Amount-f.MakerFee.Amount)
		}
	}

	return pl, nil
}

func (pl *plan) addEntry(user, asset common.Address, amount int64) {
	if amount == 0 {
		return
	}
	for i := range pl.entries {
		if pl.entries[i].user == user && pl.entries[i].asset == asset {
			pl.entries[i].amount += amount
			return
		}
	}
	pl.entries = append(pl.entries, entryAcc{user, asset, amount})
}

// applyPlacement commits a fully validated plan: one settlement batch,
// fee accrual, book mutation, then events. Called with e.mu held.
func (e *Engine) applyPlacement(req PlaceRequest, p *pair.Pair, bk *book.Book, pl *plan) (PlaceResult, error) {
	batch := make([]vault.Entry, 0, len(pl.entries))
	for _, en := range pl.entries {
		batch = append(batch, vault.Entry{User: en.user, Asset: en.asset, Amount: en.amount})
	}
	fees := make(map[common.Address]vault.FeeAccrual)
	for asset, amount := range pl.makerFees {
		if amount > 0 {
			acc := fees[asset]
			acc.Maker = amount
			fees[asset] = acc
		}
	}
	for asset, amount := range pl.takerFees {
		if amount > 0 {
			acc := fees[asset]
			acc.Taker = amount
			fees[asset] = acc
		}
	}
	// balance legs and fee accruals commit in one durable write, so a
	// crash can never record the deduction without the accrual
	if err := e.ledger.Settle(batch, fees); err != nil {
		// planMatch pre-validated every debit, so this only fires on a
		// persistence fault.
		return PlaceResult{}, err
	}

	e.nextID++
	id := e.nextID

	taker := &book.Order{
		ID:        id,
		Owner:     req.Owner,
		Side:      req.Side,
		TIF:       req.TIF,
		Price:     req.Price,
		Original:  req.Amount,
		Remaining: pl.remaining,
		Active:    pl.rested,
	}
	e.orders[id] = &tracked{o: taker, p: p}

	for _, f := range pl.fills {
		maker := bk.Resting(f.MakerOrderID)
		bk.Reduce(maker, f.Amount)
		if maker.Remaining == 0 {
			maker.Active = false
		}
	}
	if pl.rested {
		bk.Insert(taker)
	}

	e.emit(events.KindOrderPlaced, events.OrderPlaced{
		OrderID: id,
		Owner:   req.Owner,
		PairID:  p.ID,
		Side:    req.Side.String(),
		TIF:     req.TIF.String(),
		Price:   req.Price,
		Amount:  req.Amount,
	})
	for _, f := range pl.fills {
		e.emit(events.KindTrade, events.Trade{
			PairID:       p.ID,
			MakerOrderID: f.MakerOrderID,
			TakerOrderID: id,
			Price:        f.Price,
			Amount:       f.Amount,
			MarketTaker:  !pl.rested,
			MakerFee:     f.MakerFee,
			TakerFee:     f.TakerFee,
		})
	}

	e.log.Infow("order_placed",
		"order", id, "pair", p.ID.Hex(), "side", req.Side.String(),
		"price", req.Price, "amount", req.Amount,
		"fills", len(pl.fills), "rested", pl.rested)

	return PlaceResult{
		OrderID:   id,
		Fills:     pl.fills,
		Remaining: pl.remaining,
		Rested:    pl.rested,
	}, nil
}

func min64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}
