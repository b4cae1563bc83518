package tests

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/jwhyun/limitbook/pkg/engine"
	"github.com/jwhyun/limitbook/pkg/engine/book"
	"github.com/jwhyun/limitbook/pkg/engine/vault"
)

// Placement throughput with a deep resting book. Pebble persistence is on
// the hot path, so this measures the full place-and-settle cost, not just
// the matching walk.
func BenchmarkPlaceOrderResting(b *testing.B) {
	eng, pairID := benchEngine(b)
	user := common.HexToAddress("0x1111")
	if err := eng.Deposit(user, usd, int64(b.N)*200+1_000_000); err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		// spread prices so levels accumulate in the tree
		price := int64(1 + i%1024)
		if _, err := eng.PlaceOrder(engine.PlaceRequest{
			Owner: user, PairID: pairID, Side: book.Buy, Price: price, Amount: 1,
		}); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkPlaceOrderCrossing(b *testing.B) {
	eng, pairID := benchEngine(b)
	maker := common.HexToAddress("0x1111")
	taker := common.HexToAddress("0x2222")
	if err := eng.Deposit(maker, gold, int64(b.N)+1); err != nil {
		b.Fatal(err)
	}
	if err := eng.Deposit(taker, usd, int64(b.N)*100+1_000); err != nil {
		b.Fatal(err)
	}
	for i := 0; i < b.N; i++ {
		if _, err := eng.PlaceOrder(engine.PlaceRequest{
			Owner: maker, PairID: pairID, Side: book.Sell, Price: 100, Amount: 1,
		}); err != nil {
			b.Fatal(err)
		}
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := eng.PlaceOrder(engine.PlaceRequest{
			Owner: taker, PairID: pairID, Side: book.Buy, Price: 100, Amount: 1,
		}); err != nil {
			b.Fatal(err)
		}
	}
}

func benchEngine(b *testing.B) (*engine.Engine, common.Hash) {
	b.Helper()
	v, err := vault.Open(b.TempDir())
	if err != nil {
		b.Fatal(err)
	}
	b.Cleanup(func() { v.Close() })

	eng, err := engine.New(engine.Config{Admin: admin}, v, nil, 0, nil, nil)
	if err != nil {
		b.Fatal(err)
	}
	p, err := eng.AddPair(admin, gold, usd, 8, 6)
	if err != nil {
		b.Fatal(err)
	}
	return eng, p.ID
}
