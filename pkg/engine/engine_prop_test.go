package engine

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/jwhyun/limitbook/pkg/engine/book"
	"github.com/jwhyun/limitbook/pkg/engine/vault"
)

// Random walks over the public surface must preserve two invariants after
// every operation: asset conservation (available + reserved + fees ==
// deposited - withdrawn) and an uncrossed book (best bid < best ask).
func TestEngineInvariantsRandomWalk(t *testing.T) {
	users := []common.Address{alice, bob, admin}

	rapid.Check(t, func(rt *rapid.T) {
		v, err := vault.Open(t.TempDir())
		require.NoError(t, err)
		defer v.Close()

		e, err := New(Config{Admin: admin, MakerBps: 30, TakerBps: 70}, v, &memSink{}, 0, nil, nil)
		require.NoError(t, err)
		p, err := e.AddPair(admin, gold, usd, 8, 6)
		require.NoError(t, err)

		deposited := map[common.Address]int64{}
		var placed []uint64

		steps := rapid.IntRange(1, 60).Draw(rt, "steps")
		for i := 0; i < steps; i++ {
			user := users[rapid.IntRange(0, len(users)-1).Draw(rt, "user")]

			switch rapid.IntRange(0, 4).Draw(rt, "op") {
			case 0:
				asset := gold
				if rapid.Bool().Draw(rt, "quote") {
					asset = usd
				}
				amt := rapid.Int64Range(1, 100_000).Draw(rt, "dep")
				require.NoError(t, e.Deposit(user, asset, amt))
				deposited[asset] += amt

			case 1:
				asset := gold
				if rapid.Bool().Draw(rt, "quote") {
					asset = usd
				}
				amt := rapid.Int64Range(1, 50_000).Draw(rt, "wd")
				if err := e.Withdraw(user, asset, amt); err == nil {
					deposited[asset] -= amt
				}

			case 2, 3:
				side := book.Buy
				if rapid.Bool().Draw(rt, "sell") {
					side = book.Sell
				}
				tif := book.GTC
				if rapid.Bool().Draw(rt, "ioc") {
					tif = book.IOC
				}
				res, err := e.PlaceOrder(PlaceRequest{
					Owner:  user,
					PairID: p.ID,
					Side:   side,
					TIF:    tif,
					Price:  rapid.Int64Range(90, 110).Draw(rt, "price"),
					Amount: rapid.Int64Range(1, 500).Draw(rt, "amount"),
				})
				if err == nil && res.Rested {
					placed = append(placed, res.OrderID)
				}

			case 4:
				if len(placed) > 0 {
					id := placed[rapid.IntRange(0, len(placed)-1).Draw(rt, "cancel")]
					// wrong owner and already-terminal are fine rejections
					_ = e.CancelOrder(user, id)
				}
			}

			for _, asset := range []common.Address{gold, usd} {
				total := v.SumAvailable(asset) + e.BookReserves(asset) + v.AccruedFees(asset).Total()
				require.Equal(rt, deposited[asset], total, "conservation broken for %s", asset.Hex())
			}

			bid, bidOK, err := e.BestPrice(p.ID, book.Buy)
			require.NoError(t, err)
			ask, askOK, err := e.BestPrice(p.ID, book.Sell)
			require.NoError(t, err)
			if bidOK && askOK {
				require.Less(rt, bid, ask, "book is crossed")
			}
		}
	})
}
