package api

import (
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/jwhyun/limitbook/pkg/crypto"
	"github.com/jwhyun/limitbook/pkg/engine"
	"github.com/jwhyun/limitbook/pkg/engine/book"
	"github.com/jwhyun/limitbook/pkg/engine/vault"
	"github.com/jwhyun/limitbook/pkg/events"
)

var (
	testAdmin = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	testUser  = common.HexToAddress("0x0000000000000000000000000000000000000a11")
	testGold  = common.HexToAddress("0x0000000000000000000000000000000000000001")
	testUSD   = common.HexToAddress("0x0000000000000000000000000000000000000002")
)

// The server joins the engine's event fanout, so Publish runs while the
// engine lock is held. Placements and cancels must still return promptly:
// the depth broadcast may not call back into the engine synchronously.
func TestPublishDoesNotBlockEngine(t *testing.T) {
	v, err := vault.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { v.Close() })

	sinks := events.Fanout{}
	eng, err := engine.New(engine.Config{Admin: testAdmin}, v, &sinks, 0, nil, nil)
	require.NoError(t, err)

	srv := NewServer(eng, crypto.NewTypedSigner(crypto.DefaultDomain()), nil, nil, nil)
	sinks = append(sinks, srv)

	p, err := eng.AddPair(testAdmin, testGold, testUSD, 8, 6)
	require.NoError(t, err)
	require.NoError(t, eng.Deposit(testUser, testUSD, 1_000))

	done := make(chan error, 1)
	go func() {
		_, err := eng.PlaceOrder(engine.PlaceRequest{
			Owner: testUser, PairID: p.ID, Side: book.Buy, Price: 100, Amount: 5,
		})
		done <- err
	}()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("placement blocked while the server published its events")
	}

	// the queued depth push must eventually read the book without issue
	require.Eventually(t, func() bool {
		bids, err := eng.Depth(p.ID, book.Buy, 0, 1)
		return err == nil && len(bids) == 1
	}, time.Second, 10*time.Millisecond)
}
