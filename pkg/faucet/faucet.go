// Package faucet hands out test funds through the engine's deposit path,
// rate-limited per (user, asset).
package faucet

import (
	"errors"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/jwhyun/limitbook/pkg/engine"
	"github.com/jwhyun/limitbook/pkg/util"
)

var (
	ErrCooldown  = errors.New("faucet cooldown active")
	ErrOverLimit = errors.New("faucet amount over limit")
)

type dripKey struct {
	user  common.Address
	asset common.Address
}

type Faucet struct {
	mu sync.Mutex

	eng      *engine.Engine
	clock    util.Clock
	cooldown time.Duration
	maxDrip  int64

	last map[dripKey]time.Time
}

func New(eng *engine.Engine, cooldown time.Duration, maxDrip int64, clock util.Clock) *Faucet {
	if clock == nil {
		clock = util.RealClock{}
	}
	return &Faucet{
		eng:      eng,
		clock:    clock,
		cooldown: cooldown,
		maxDrip:  maxDrip,
		last:     make(map[dripKey]time.Time),
	}
}

// Drip deposits amount of asset to user, at most once per cooldown per
// (user, asset).
func (f *Faucet) Drip(user, asset common.Address, amount int64) error {
	if amount <= 0 || amount > f.maxDrip {
		return ErrOverLimit
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	key := dripKey{user, asset}
	now := f.clock.Now()
	if at, ok := f.last[key]; ok && now.Sub(at) < f.cooldown {
		return ErrCooldown
	}

	if err := f.eng.Deposit(user, asset, amount); err != nil {
		return err
	}
	f.last[key] = now
	return nil
}

// NextDrip returns when the given (user, asset) may drip again.
func (f *Faucet) NextDrip(user, asset common.Address) time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.last[dripKey{user, asset}].Add(f.cooldown)
}
