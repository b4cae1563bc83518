package faucet

import (
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwhyun/limitbook/pkg/engine"
	"github.com/jwhyun/limitbook/pkg/engine/vault"
	"github.com/jwhyun/limitbook/pkg/util"
)

var (
	user = common.HexToAddress("0x01")
	gold = common.HexToAddress("0x02")
	usd  = common.HexToAddress("0x03")
)

func newFaucet(t *testing.T, clock util.Clock) (*Faucet, *engine.Engine) {
	t.Helper()
	v, err := vault.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { v.Close() })

	eng, err := engine.New(engine.Config{}, v, nil, 0, nil, clock)
	require.NoError(t, err)
	return New(eng, time.Hour, 1_000, clock), eng
}

func TestDripCooldown(t *testing.T) {
	clock := &util.ManualClock{T: time.Unix(1_700_000_000, 0)}
	f, eng := newFaucet(t, clock)

	require.NoError(t, f.Drip(user, gold, 500))
	assert.EqualValues(t, 500, eng.Vault().Balance(user, gold))

	assert.ErrorIs(t, f.Drip(user, gold, 500), ErrCooldown)
	// other asset has its own cooldown
	require.NoError(t, f.Drip(user, usd, 500))

	clock.Advance(time.Hour)
	require.NoError(t, f.Drip(user, gold, 500))
	assert.EqualValues(t, 1_000, eng.Vault().Balance(user, gold))
}

func TestDripLimits(t *testing.T) {
	clock := &util.ManualClock{T: time.Unix(1_700_000_000, 0)}
	f, _ := newFaucet(t, clock)

	assert.ErrorIs(t, f.Drip(user, gold, 1_001), ErrOverLimit)
	assert.ErrorIs(t, f.Drip(user, gold, 0), ErrOverLimit)
	assert.ErrorIs(t, f.Drip(user, gold, -5), ErrOverLimit)
}
