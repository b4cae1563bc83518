// Package pair maps (base asset, quote asset) pairs to stable identifiers
// and their fixed metadata. Pair ids are derived, not assigned, so every
// node and every indexer computes the same id for the same two assets.
package pair

import (
	"errors"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/crypto/sha3"
)

var (
	// ErrInvalidAsset rejects the zero asset and base == quote.
	ErrInvalidAsset = errors.New("invalid asset")
	// ErrExists rejects a second registration of the same asset pair.
	ErrExists = errors.New("pair already registered")
	// ErrNotFound is returned for lookups of unregistered pairs.
	ErrNotFound = errors.New("pair not found")
)

// Pair is one tradable (base, quote) market. Base amounts are what orders
// buy and sell; prices are quote units per base unit.
type Pair struct {
	ID            common.Hash    `json:"id"`
	Base          common.Address `json:"base"`
	Quote         common.Address `json:"quote"`
	BaseDecimals  uint8          `json:"baseDecimals"`
	QuoteDecimals uint8          `json:"quoteDecimals"`
}

// DeriveID computes the canonical pair id: keccak256 of the two asset
// addresses in byte order, so DeriveID(a, b) == DeriveID(b, a).
func DeriveID(a, b common.Address) common.Hash {
	lo, hi := a, b
	if hi.Cmp(lo) < 0 {
		lo, hi = hi, lo
	}
	h := sha3.NewLegacyKeccak256()
	h.Write(lo.Bytes())
	h.Write(hi.Bytes())
	return common.BytesToHash(h.Sum(nil))
}
