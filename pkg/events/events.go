// Package events defines the structured events every mutating engine
// operation emits. The ordered event stream is the sole source of truth
// for external indexers: replaying it rebuilds order, trade and balance
// history without reaching into engine internals.
package events

import (
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

type Kind string

const (
	KindOrderPlaced     Kind = "order_placed"
	KindOrderCancelled  Kind = "order_cancelled"
	KindTrade           Kind = "trade"
	KindPairAdded       Kind = "pair_added"
	KindPairRemoved     Kind = "pair_removed"
	KindFeeRatesUpdated Kind = "fee_rates_updated"
	KindFeesWithdrawn   Kind = "fees_withdrawn"
	KindDeposit         Kind = "deposit"
	KindWithdrawal      Kind = "withdrawal"
)

// Event is one entry of the stream. Seq is assigned by the engine in
// emission order and has no gaps; indexers must process events in Seq
// order.
type Event struct {
	Seq  uint64 `json:"seq"`
	Kind Kind   `json:"kind"`
	// Time is the host clock at emission, unix milliseconds. Informational
	// only - ordering is by Seq.
	Time int64 `json:"time"`
	Data any    `json:"data"`
}

// Sink consumes the event stream. Publish is called after the operation's
// state is fully committed, in Seq order, under the engine lock.
type Sink interface {
	Publish(Event) error
}

// Fanout publishes to several sinks in order.
type Fanout []Sink

func (f Fanout) Publish(e Event) error {
	var first error
	for _, s := range f {
		if err := s.Publish(e); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Decode extracts a typed payload from an event. Live events carry the
// struct directly; events read back from the journal carry decoded JSON,
// which is round-tripped into the target type.
func Decode[T any](e Event) (T, error) {
	if v, ok := e.Data.(T); ok {
		return v, nil
	}
	var out T
	raw, err := json.Marshal(e.Data)
	if err != nil {
		return out, fmt.Errorf("decode %s event %d: %w", e.Kind, e.Seq, err)
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("decode %s event %d: %w", e.Kind, e.Seq, err)
	}
	return out, nil
}

// FeeAmount is a fee taken in a specific asset.
type FeeAmount struct {
	Asset  common.Address `json:"asset"`
	Amount int64          `json:"amount"`
}

type OrderPlaced struct {
	OrderID uint64         `json:"orderId"`
	Owner   common.Address `json:"owner"`
	PairID  common.Hash    `json:"pairId"`
	Side    string         `json:"side"`
	TIF     string         `json:"tif"`
	Price   int64          `json:"price"`
	Amount  int64          `json:"amount"`
}

type OrderCancelled struct {
	OrderID uint64         `json:"orderId"`
	Owner   common.Address `json:"owner"`
	PairID  common.Hash    `json:"pairId"`
	// Refund is the unused reservation returned to the owner.
	Refund FeeAmount `json:"refund"`
}

type Trade struct {
	PairID       common.Hash `json:"pairId"`
	MakerOrderID uint64      `json:"makerOrderId"`
	TakerOrderID uint64      `json:"takerOrderId"`
	// Price is always the maker's posted price.
	Price  int64 `json:"price"`
	Amount int64 `json:"amount"`
	// MarketTaker is true when the taker order was fully consumed on
	// arrival and never rested in the book.
	MarketTaker bool      `json:"marketTaker"`
	MakerFee    FeeAmount `json:"makerFee"`
	TakerFee    FeeAmount `json:"takerFee"`
}

type PairAdded struct {
	PairID        common.Hash    `json:"pairId"`
	Base          common.Address `json:"base"`
	Quote         common.Address `json:"quote"`
	BaseDecimals  uint8          `json:"baseDecimals"`
	QuoteDecimals uint8          `json:"quoteDecimals"`
}

type PairRemoved struct {
	PairID common.Hash `json:"pairId"`
}

type FeeRatesUpdated struct {
	MakerBps int64 `json:"makerBps"`
	TakerBps int64 `json:"takerBps"`
}

type FeesWithdrawn struct {
	Asset common.Address `json:"asset"`
	To    common.Address `json:"to"`
	Maker int64          `json:"maker"`
	Taker int64          `json:"taker"`
}

type Deposit struct {
	User   common.Address `json:"user"`
	Asset  common.Address `json:"asset"`
	Amount int64          `json:"amount"`
}

type Withdrawal struct {
	User   common.Address `json:"user"`
	Asset  common.Address `json:"asset"`
	Amount int64          `json:"amount"`
}
