package engine

import (
	"errors"

	"github.com/jwhyun/limitbook/pkg/engine/pair"
	"github.com/jwhyun/limitbook/pkg/engine/vault"
)

// The full error taxonomy of the engine. Registry and vault failures keep
// their originating sentinels so errors.Is works across package borders;
// everything is rejected before any state of the failing operation is
// committed.
var (
	ErrInvalidAsset        = pair.ErrInvalidAsset
	ErrPairExists          = pair.ErrExists
	ErrPairNotFound        = pair.ErrNotFound
	ErrPairHasOpenOrders   = errors.New("pair has open orders")
	ErrInsufficientBalance = vault.ErrInsufficientBalance
	ErrUnauthorized        = vault.ErrUnauthorized
	ErrInvalidOrder        = errors.New("invalid order")
	ErrOrderNotFound       = errors.New("order not found")
	ErrOrderNotActive      = errors.New("order not active")
	ErrNotOrderOwner       = errors.New("not order owner")
	ErrFeeTooHigh          = errors.New("fee rate too high")
)

// Kind returns the machine-readable error kind for an engine error, or
// "internal" for anything outside the taxonomy. The API layer puts this
// in rejection responses.
func Kind(err error) string {
	switch {
	case errors.Is(err, ErrInvalidAsset):
		return "InvalidAsset"
	case errors.Is(err, ErrPairExists):
		return "PairExists"
	case errors.Is(err, ErrPairNotFound):
		return "PairNotFound"
	case errors.Is(err, ErrPairHasOpenOrders):
		return "PairHasOpenOrders"
	case errors.Is(err, ErrInsufficientBalance):
		return "InsufficientBalance"
	case errors.Is(err, ErrUnauthorized):
		return "Unauthorized"
	case errors.Is(err, ErrInvalidOrder):
		return "InvalidOrder"
	case errors.Is(err, ErrOrderNotFound):
		return "OrderNotFound"
	case errors.Is(err, ErrOrderNotActive):
		return "OrderNotActive"
	case errors.Is(err, ErrNotOrderOwner):
		return "NotOrderOwner"
	case errors.Is(err, ErrFeeTooHigh):
		return "FeeTooHigh"
	default:
		return "internal"
	}
}
