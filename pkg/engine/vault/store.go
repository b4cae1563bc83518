package vault

import (
	"encoding/binary"
	"encoding/json"
	"fmt"

	"github.com/cockroachdb/pebble"
	"github.com/ethereum/go-ethereum/common"
)

// Store persists balance records and fee accruals in Pebble. All writes go
// through a single pebble batch per logical operation so a crash never
// leaves half of a settlement on disk.
type Store struct {
	db *pebble.DB
}

func NewStore(dbPath string) (*Store, error) {
	opts := &pebble.Options{
		Cache:        pebble.NewCache(64 << 20),
		MemTableSize: 32 << 20,
	}
	db, err := pebble.Open(dbPath, opts)
	if err != nil {
		return nil, fmt.Errorf("open pebble db at %s: %w", dbPath, err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func encodeAmount(v int64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], uint64(v))
	return b[:]
}

func decodeAmount(b []byte) (int64, error) {
	if len(b) != 8 {
		return 0, fmt.Errorf("balance value must be 8 bytes, got %d", len(b))
	}
	return int64(binary.BigEndian.Uint64(b)), nil
}

// writeBatch flushes a set of dirty balances and fee accruals atomically.
func (s *Store) writeBatch(balances map[balanceRef]int64, fees map[common.Address]FeeAccrual) error {
	b := s.db.NewBatch()
	defer b.Close()

	for ref, amount := range balances {
		if err := b.Set(balanceKey(ref.user, ref.asset), encodeAmount(amount), nil); err != nil {
			return err
		}
	}
	for asset, acc := range fees {
		data, err := json.Marshal(acc)
		if err != nil {
			return err
		}
		if err := b.Set(feeKey(asset), data, nil); err != nil {
			return err
		}
	}
	return b.Commit(pebble.Sync)
}

// loadBalances scans every persisted balance record.
func (s *Store) loadBalances(visit func(user, asset common.Address, amount int64)) error {
	prefix := []byte(prefixBalance)
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: keyUpperBound(prefix),
	})
	if err != nil {
		return err
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		user, asset, err := parseBalanceKey(iter.Key())
		if err != nil {
			return err
		}
		amount, err := decodeAmount(iter.Value())
		if err != nil {
			return err
		}
		visit(user, asset, amount)
	}
	return iter.Error()
}

// loadFees scans every persisted fee accrual.
func (s *Store) loadFees(visit func(asset common.Address, acc FeeAccrual)) error {
	prefix := []byte(prefixFee)
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: keyUpperBound(prefix),
	})
	if err != nil {
		return err
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		asset, err := parseFeeKey(iter.Key())
		if err != nil {
			return err
		}
		var acc FeeAccrual
		if err := json.Unmarshal(iter.Value(), &acc); err != nil {
			return err
		}
		visit(asset, acc)
	}
	return iter.Error()
}
