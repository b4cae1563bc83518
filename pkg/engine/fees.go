package engine

import (
	"fmt"
	"math"
)

const (
	// BpsDenom is the basis-point denominator: 10000 bps = 100%.
	BpsDenom = 10_000
	// MaxFeeBps caps either fee rate at 10%, which keeps every net
	// settlement amount strictly positive.
	MaxFeeBps = 1_000
)

// feeOf returns floor(value * bps / BpsDenom) without intermediate
// overflow: the quotient and remainder of value are scaled separately,
// which is exact because bps*(value%BpsDenom) always fits.
func feeOf(value, bps int64) int64 {
	q, r := value/BpsDenom, value%BpsDenom
	return q*bps + r*bps/BpsDenom
}

// mulCheck multiplies two positive amounts, rejecting overflow before any
// state is touched.
func mulCheck(a, b int64) (int64, error) {
	if a > math.MaxInt64/b {
		return 0, fmt.Errorf("%w: %d * %d overflows", ErrInvalidOrder, a, b)
	}
	return a * b, nil
}

// addCheck adds two non-negative amounts, rejecting overflow.
func addCheck(a, b int64) (int64, error) {
	if a > math.MaxInt64-b {
		return 0, fmt.Errorf("%w: %d + %d overflows", ErrInvalidOrder, a, b)
	}
	return a + b, nil
}
