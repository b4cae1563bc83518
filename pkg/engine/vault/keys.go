package vault

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// Pebble key schema. Everything is prefix-scannable:
//
//	bal:{user}:{asset} -> available balance (8 bytes, big-endian)
//	fee:{asset}        -> accrued fees (JSON)
const (
	prefixBalance = "bal:"
	prefixFee     = "fee:"
)

func balanceKey(user, asset common.Address) []byte {
	return []byte(fmt.Sprintf("%s%s:%s", prefixBalance, user.Hex(), asset.Hex()))
}

func feeKey(asset common.Address) []byte {
	return []byte(fmt.Sprintf("%s%s", prefixFee, asset.Hex()))
}

// parseBalanceKey is the inverse of balanceKey, used when scanning.
func parseBalanceKey(key []byte) (user, asset common.Address, err error) {
	s := strings.TrimPrefix(string(key), prefixBalance)
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 || !common.IsHexAddress(parts[0]) || !common.IsHexAddress(parts[1]) {
		return common.Address{}, common.Address{}, fmt.Errorf("malformed balance key %q", key)
	}
	return common.HexToAddress(parts[0]), common.HexToAddress(parts[1]), nil
}

func parseFeeKey(key []byte) (common.Address, error) {
	s := strings.TrimPrefix(string(key), prefixFee)
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("malformed fee key %q", key)
	}
	return common.HexToAddress(s), nil
}

// keyUpperBound returns the exclusive upper bound for a prefix scan.
func keyUpperBound(prefix []byte) []byte {
	bound := make([]byte, len(prefix))
	copy(bound, prefix)
	bound[len(bound)-1]++
	return bound
}
