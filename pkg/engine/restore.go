package engine

import (
	"fmt"

	"github.com/jwhyun/limitbook/pkg/engine/book"
	"github.com/jwhyun/limitbook/pkg/events"
)

// Replayer streams journalled events in sequence order, starting at from.
type Replayer interface {
	Replay(from uint64, fn func(events.Event) error) error
}

// Restore rebuilds the in-memory state - pairs, books, order records and
// fee rates - by replaying the event journal from the beginning. Balances
// are not replayed; the vault persists them itself and already loaded them
// at Open.
//
// Restore must run on a freshly constructed engine, before it serves any
// operation.
func (e *Engine) Restore(journal Replayer) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.seq = 0
	r := &restorer{e: e}
	if err := journal.Replay(0, r.apply); err != nil {
		return fmt.Errorf("restore: %w", err)
	}
	r.flushTaker()

	e.log.Infow("state_restored",
		"events", e.seq, "pairs", e.pairs.Count(), "orders", len(e.orders))
	return nil
}

// restorer carries the one piece of cross-event state replay needs: the
// taker of an in-flight placement. A placement's fills follow its
// order_placed record as consecutive trade records, so the taker stays
// pending until the first record that is not one of its fills.
type restorer struct {
	e     *Engine
	taker *tracked
}

func (r *restorer) apply(ev events.Event) error {
	e := r.e
	if ev.Seq != e.seq+1 {
		return fmt.Errorf("journal gap: got seq %d, want %d", ev.Seq, e.seq+1)
	}
	e.seq = ev.Seq

	if ev.Kind != events.KindTrade {
		r.flushTaker()
	}

	switch ev.Kind {
	case events.KindPairAdded:
		d, err := events.Decode[events.PairAdded](ev)
		if err != nil {
			return err
		}
		p, err := e.pairs.Add(d.Base, d.Quote, d.BaseDecimals, d.QuoteDecimals)
		if err != nil {
			return err
		}
		if p.ID != d.PairID {
			return fmt.Errorf("journal pair id mismatch: %s vs %s", p.ID.Hex(), d.PairID.Hex())
		}
		e.books[p.ID] = book.New()

	case events.KindPairRemoved:
		d, err := events.Decode[events.PairRemoved](ev)
		if err != nil {
			return err
		}
		if err := e.pairs.Remove(d.PairID); err != nil {
			return err
		}
		delete(e.books, d.PairID)

	case events.KindFeeRatesUpdated:
		d, err := events.Decode[events.FeeRatesUpdated](ev)
		if err != nil {
			return err
		}
		e.makerBps, e.takerBps = d.MakerBps, d.TakerBps

	case events.KindOrderPlaced:
		d, err := events.Decode[events.OrderPlaced](ev)
		if err != nil {
			return err
		}
		side, err := book.ParseSide(d.Side)
		if err != nil {
			return err
		}
		tif, err := book.ParseTimeInForce(d.TIF)
		if err != nil {
			return err
		}
		p, err := e.pairs.Get(d.PairID)
		if err != nil {
			return err
		}
		o := &book.Order{
			ID:        d.OrderID,
			Owner:     d.Owner,
			Side:      side,
			TIF:       tif,
			Price:     d.Price,
			Original:  d.Amount,
			Remaining: d.Amount,
		}
		r.taker = &tracked{o: o, p: p}
		e.orders[d.OrderID] = r.taker
		if d.OrderID > e.nextID {
			e.nextID = d.OrderID
		}

	case events.KindTrade:
		d, err := events.Decode[events.Trade](ev)
		if err != nil {
			return err
		}
		if r.taker == nil || r.taker.o.ID != d.TakerOrderID {
			return fmt.Errorf("journal trade for order %d without its placement", d.TakerOrderID)
		}
		bk := e.books[d.PairID]
		maker := bk.Resting(d.MakerOrderID)
		if maker == nil {
			return fmt.Errorf("journal trade against unknown maker %d", d.MakerOrderID)
		}
		bk.Reduce(maker, d.Amount)
		if maker.Remaining == 0 {
			maker.Active = false
		}
		r.taker.o.Remaining -= d.Amount

	case events.KindOrderCancelled:
		d, err := events.Decode[events.OrderCancelled](ev)
		if err != nil {
			return err
		}
		tr, ok := e.orders[d.OrderID]
		if !ok {
			return fmt.Errorf("journal cancel of unknown order %d", d.OrderID)
		}
		e.books[tr.p.ID].Remove(tr.o)
		tr.o.Active = false

	case events.KindDeposit, events.KindWithdrawal, events.KindFeesWithdrawn:
		// balance-only; the vault already has it

	default:
		return fmt.Errorf("journal has unknown event kind %q", ev.Kind)
	}
	return nil
}

// flushTaker settles the fate of a pending placement once its trades have
// all been seen: a GTC remainder rests, anything else goes terminal.
func (r *restorer) flushTaker() {
	if r.taker == nil {
		return
	}
	o := r.taker.o
	if o.TIF == book.GTC && o.Remaining > 0 {
		o.Active = true
		r.e.books[r.taker.p.ID].Insert(o)
	} else {
		o.Active = false
	}
	r.taker = nil
}
