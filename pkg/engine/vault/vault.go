// Package vault is the custodial balance ledger: per-user, per-asset
// available balances plus the protocol fee accumulator, persisted in
// Pebble and cached in memory.
//
// Deposits, withdrawals and reads are public. Debits, credits and trade
// settlement are only reachable through the Ledger handle, which the vault
// issues exactly once - the matching engine takes it at construction and
// nothing else can obtain one.
package vault

import (
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

var (
	// ErrInsufficientBalance rejects a debit or withdrawal that exceeds
	// the available amount.
	ErrInsufficientBalance = errors.New("insufficient balance")
	// ErrUnauthorized rejects privileged access without the capability.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrInvalidAmount rejects non-positive amounts.
	ErrInvalidAmount = errors.New("amount must be positive")
)

type balanceRef struct {
	user  common.Address
	asset common.Address
}

// FeeAccrual is the accrued-but-unwithdrawn protocol revenue for one asset.
type FeeAccrual struct {
	Maker int64 `json:"maker"`
	Taker int64 `json:"taker"`
}

func (f FeeAccrual) Total() int64 { return f.Maker + f.Taker }

// Vault owns every balance record. Available balances are the only
// counter: a resting order's reservation has already been debited, so
// "available" always means truly spendable.
type Vault struct {
	mu       sync.RWMutex
	store    *Store
	balances map[balanceRef]int64
	fees     map[common.Address]FeeAccrual
	bound    bool
}

// Open loads (or creates) a vault backed by a Pebble database.
func Open(dbPath string) (*Vault, error) {
	store, err := NewStore(dbPath)
	if err != nil {
		return nil, err
	}

	v := &Vault{
		store:    store,
		balances: make(map[balanceRef]int64),
		fees:     make(map[common.Address]FeeAccrual),
	}
	if err := store.loadBalances(func(user, asset common.Address, amount int64) {
		v.balances[balanceRef{user, asset}] = amount
	}); err != nil {
		store.Close()
		return nil, fmt.Errorf("load balances: %w", err)
	}
	if err := store.loadFees(func(asset common.Address, acc FeeAccrual) {
		v.fees[asset] = acc
	}); err != nil {
		store.Close()
		return nil, fmt.Errorf("load fees: %w", err)
	}
	return v, nil
}

func (v *Vault) Close() error {
	return v.store.Close()
}

// Bind issues the privileged ledger handle. It succeeds exactly once; the
// matching engine is the designated holder.
func (v *Vault) Bind() (*Ledger, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.bound {
		return nil, ErrUnauthorized
	}
	v.bound = true
	return &Ledger{v: v}, nil
}

// Deposit credits a user's available balance.
func (v *Vault) Deposit(user, asset common.Address, amount int64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	ref := balanceRef{user, asset}
	if v.balances[ref] > math.MaxInt64-amount {
		return fmt.Errorf("%w: deposit would overflow balance", ErrInvalidAmount)
	}
	v.balances[ref] += amount
	return v.persistBalances(ref)
}

// Withdraw debits a user's available balance. Funds reserved by resting
// orders were debited at placement, so the available check is sufficient.
func (v *Vault) Withdraw(user, asset common.Address, amount int64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	ref := balanceRef{user, asset}
	if v.balances[ref] < amount {
		return ErrInsufficientBalance
	}
	v.balances[ref] -= amount
	return v.persistBalances(ref)
}

// Balance returns a user's available balance for one asset.
func (v *Vault) Balance(user, asset common.Address) int64 {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.balances[balanceRef{user, asset}]
}

// Balances returns every non-zero balance of a user.
func (v *Vault) Balances(user common.Address) map[common.Address]int64 {
	v.mu.RLock()
	defer v.mu.RUnlock()

	out := make(map[common.Address]int64)
	for ref, amount := range v.balances {
		if ref.user == user && amount != 0 {
			out[ref.asset] = amount
		}
	}
	return out
}

// AccruedFees returns the fee accumulator for one asset.
func (v *Vault) AccruedFees(asset common.Address) FeeAccrual {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.fees[asset]
}

// SumAvailable totals every user's available balance for one asset.
// Used by conservation checks and diagnostics, not by the hot path.
func (v *Vault) SumAvailable(asset common.Address) int64 {
	v.mu.RLock()
	defer v.mu.RUnlock()

	var sum int64
	for ref, amount := range v.balances {
		if ref.asset == asset {
			sum += amount
		}
	}
	return sum
}

// persistBalances writes the given refs (and nothing else) to disk.
// Callers hold v.mu.
func (v *Vault) persistBalances(refs ...balanceRef) error {
	dirty := make(map[balanceRef]int64, len(refs))
	for _, ref := range refs {
		dirty[ref] = v.balances[ref]
	}
	return v.store.writeBatch(dirty, nil)
}

// Entry is one leg of a settlement batch. Positive amounts credit the
// user, negative amounts debit.
type Entry struct {
	User   common.Address
	Asset  common.Address
	Amount int64
}

// Ledger is the capability handle for privileged balance mutation. Only
// the holder (the matching engine) can reserve, refund and settle.
type Ledger struct {
	v *Vault
}

// Debit removes amount from a user's available balance, failing without
// any mutation if the balance is short. This is the reservation primitive.
func (l *Ledger) Debit(user, asset common.Address, amount int64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}

	v := l.v
	v.mu.Lock()
	defer v.mu.Unlock()

	ref := balanceRef{user, asset}
	if v.balances[ref] < amount {
		return ErrInsufficientBalance
	}
	v.balances[ref] -= amount
	return v.persistBalances(ref)
}

// Credit adds amount to a user's available balance. Used for cancellation
// refunds and settlement proceeds.
func (l *Ledger) Credit(user, asset common.Address, amount int64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}

	v := l.v
	v.mu.Lock()
	defer v.mu.Unlock()

	ref := balanceRef{user, asset}
	if v.balances[ref] > math.MaxInt64-amount {
		return fmt.Errorf("%w: credit would overflow balance", ErrInvalidAmount)
	}
	v.balances[ref] += amount
	return v.persistBalances(ref)
}

// AccrueFee adds maker/taker revenue for one asset to the accumulator.
func (l *Ledger) AccrueFee(asset common.Address, maker, taker int64) error {
	if maker < 0 || taker < 0 {
		return ErrInvalidAmount
	}

	v := l.v
	v.mu.Lock()
	defer v.mu.Unlock()

	acc := v.fees[asset]
	acc.Maker += maker
	acc.Taker += taker
	v.fees[asset] = acc
	return v.store.writeBatch(nil, map[common.Address]FeeAccrual{asset: acc})
}

// WithdrawFees moves the full accrual for an asset into a user's available
// balance and zeroes the accumulator. Returns what was withdrawn.
func (l *Ledger) WithdrawFees(asset, to common.Address) (FeeAccrual, error) {
	v := l.v
	v.mu.Lock()
	defer v.mu.Unlock()

	acc := v.fees[asset]
	if acc.Total() == 0 {
		return FeeAccrual{}, nil
	}

	ref := balanceRef{to, asset}
	v.balances[ref] += acc.Total()
	v.fees[asset] = FeeAccrual{}

	err := v.store.writeBatch(
		map[balanceRef]int64{ref: v.balances[ref]},
		map[common.Address]FeeAccrual{asset: {}},
	)
	if err != nil {
		return FeeAccrual{}, err
	}
	return acc, nil
}

// ExecuteBatch applies a settlement batch atomically: every entry is
// validated against the projected balances first, so either the whole
// batch lands or none of it does.
func (l *Ledger) ExecuteBatch(entries []Entry) error {
	return l.Settle(entries, nil)
}

// Settle applies a settlement batch and its fee accruals in one durable
// write. Every entry is validated against the projected balances first,
// so either the whole settlement - balance legs and fees together - lands
// or none of it does, and a crash can never persist one without the
// other. All internal bookkeeping completes before anything outside the
// vault can observe the new state.
func (l *Ledger) Settle(entries []Entry, fees map[common.Address]FeeAccrual) error {
	if len(entries) == 0 && len(fees) == 0 {
		return nil
	}

	v := l.v
	v.mu.Lock()
	defer v.mu.Unlock()

	// Project the net effect before touching anything.
	projected := make(map[balanceRef]int64, len(entries))
	for _, e := range entries {
		ref := balanceRef{e.User, e.Asset}
		if _, ok := projected[ref]; !ok {
			projected[ref] = v.balances[ref]
		}
		projected[ref] += e.Amount
		if projected[ref] < 0 {
			return fmt.Errorf("%w: %s would go negative on %s",
				ErrInsufficientBalance, e.User.Hex(), e.Asset.Hex())
		}
	}

	accruals := make(map[common.Address]FeeAccrual, len(fees))
	for asset, delta := range fees {
		if delta.Maker < 0 || delta.Taker < 0 {
			return ErrInvalidAmount
		}
		acc := v.fees[asset]
		acc.Maker += delta.Maker
		acc.Taker += delta.Taker
		accruals[asset] = acc
	}

	for ref, amount := range projected {
		v.balances[ref] = amount
	}
	for asset, acc := range accruals {
		v.fees[asset] = acc
	}
	return v.store.writeBatch(projected, accruals)
}
