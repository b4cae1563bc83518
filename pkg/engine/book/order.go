package book

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// Side of the book an order belongs to.
type Side int8

const (
	Buy Side = iota
	Sell
)

func (s Side) String() string {
	if s == Buy {
		return "buy"
	}
	return "sell"
}

// ParseSide is the inverse of Side.String.
func ParseSide(s string) (Side, error) {
	switch s {
	case "buy":
		return Buy, nil
	case "sell":
		return Sell, nil
	default:
		return 0, fmt.Errorf("unknown side %q", s)
	}
}

// Opposite returns the side an incoming order matches against.
func (s Side) Opposite() Side {
	if s == Buy {
		return Sell
	}
	return Buy
}

// TimeInForce controls what happens to the unfilled remainder of an order.
type TimeInForce int8

const (
	// GTC rests the remainder in the book.
	GTC TimeInForce = iota
	// IOC discards the remainder; no funds are ever reserved for it.
	IOC
)

func (t TimeInForce) String() string {
	if t == IOC {
		return "IOC"
	}
	return "GTC"
}

// ParseTimeInForce is the inverse of TimeInForce.String.
func ParseTimeInForce(s string) (TimeInForce, error) {
	switch s {
	case "GTC", "":
		return GTC, nil
	case "IOC":
		return IOC, nil
	default:
		return 0, fmt.Errorf("unknown time in force %q", s)
	}
}

// Order is a limit order. The id doubles as the time-priority tie-break:
// ids are assigned monotonically and never reused, so the lowest id at a
// price level is always the oldest order.
//
// next/prev/level are intrusive links owned by the price level the order
// rests in; they are nil while the order is not in the book.
type Order struct {
	ID        uint64
	Owner     common.Address
	Side      Side
	TIF       TimeInForce
	Price     int64
	Original  int64
	Remaining int64
	Active    bool

	next, prev *Order
	level      *Level
}

// Next returns the order behind this one in its price level's FIFO queue.
func (o *Order) Next() *Order { return o.next }

// Resting reports whether the order is currently linked into a price level.
func (o *Order) Resting() bool { return o.level != nil }
