package tests

import (
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/jwhyun/limitbook/pkg/crypto"
	"github.com/jwhyun/limitbook/pkg/engine"
	"github.com/jwhyun/limitbook/pkg/engine/book"
	"github.com/jwhyun/limitbook/pkg/engine/vault"
	"github.com/jwhyun/limitbook/pkg/events"
	"github.com/jwhyun/limitbook/pkg/storage"
)

var (
	admin = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	gold  = common.HexToAddress("0x0000000000000000000000000000000000000001")
	usd   = common.HexToAddress("0x0000000000000000000000000000000000000002")
)

type node struct {
	vault   *vault.Vault
	journal *storage.EventLog
	eng     *engine.Engine
	stopped bool
}

func startNode(t *testing.T, dir string) *node {
	t.Helper()

	v, err := vault.Open(filepath.Join(dir, "vault"))
	if err != nil {
		t.Fatalf("open vault: %v", err)
	}
	journal, err := storage.OpenEventLog(filepath.Join(dir, "events"))
	if err != nil {
		t.Fatalf("open journal: %v", err)
	}
	eng, err := engine.New(engine.Config{Admin: admin, MakerBps: 10, TakerBps: 20},
		v, journal, journal.LastSeq(), nil, nil)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	if err := eng.Restore(journal); err != nil {
		t.Fatalf("restore: %v", err)
	}

	n := &node{vault: v, journal: journal, eng: eng}
	t.Cleanup(func() { n.stopQuiet() })
	return n
}

func (n *node) stop(t *testing.T) {
	t.Helper()
	n.stopped = true
	if err := n.journal.Close(); err != nil {
		t.Fatalf("close journal: %v", err)
	}
	if err := n.vault.Close(); err != nil {
		t.Fatalf("close vault: %v", err)
	}
}

func (n *node) stopQuiet() {
	if n.stopped {
		return
	}
	n.stopped = true
	n.journal.Close()
	n.vault.Close()
}

// Full lifecycle against durable storage: fund, trade, cancel, collect
// fees, then restart the node and verify books and balances survive.
func TestExchangeLifecycleAcrossRestart(t *testing.T) {
	dir := t.TempDir()
	n := startNode(t, dir)

	maker, err := crypto.GenerateKey()
	if err != nil {
		t.Fatal(err)
	}
	taker, err := crypto.GenerateKey()
	if err != nil {
		t.Fatal(err)
	}

	p, err := n.eng.AddPair(admin, gold, usd, 8, 6)
	if err != nil {
		t.Fatalf("add pair: %v", err)
	}
	if err := n.eng.Deposit(maker.Address(), gold, 1_000); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if err := n.eng.Deposit(taker.Address(), usd, 100_000); err != nil {
		t.Fatalf("deposit: %v", err)
	}

	// maker asks 500@100, taker lifts 200 of it
	ask, err := n.eng.PlaceOrder(engine.PlaceRequest{
		Owner: maker.Address(), PairID: p.ID, Side: book.Sell, Price: 100, Amount: 500,
	})
	if err != nil {
		t.Fatalf("place ask: %v", err)
	}
	buy, err := n.eng.PlaceOrder(engine.PlaceRequest{
		Owner: taker.Address(), PairID: p.ID, Side: book.Buy, Price: 100, Amount: 200,
	})
	if err != nil {
		t.Fatalf("place buy: %v", err)
	}
	if len(buy.Fills) != 1 || buy.Fills[0].Amount != 200 {
		t.Fatalf("unexpected fills: %+v", buy.Fills)
	}

	// notional 20000: taker fee 20bps = 40 usd, maker fee 10bps = 20 usd
	if got := n.vault.Balance(taker.Address(), usd); got != 100_000-20_000-40 {
		t.Fatalf("taker usd = %d", got)
	}
	if got := n.vault.Balance(maker.Address(), usd); got != 20_000-20 {
		t.Fatalf("maker usd = %d", got)
	}
	if got := n.vault.Balance(taker.Address(), gold); got != 200 {
		t.Fatalf("taker gold = %d", got)
	}

	if _, err := n.eng.WithdrawFees(admin, usd); err != nil {
		t.Fatalf("withdraw fees: %v", err)
	}
	if got := n.vault.Balance(admin, usd); got != 60 {
		t.Fatalf("admin fee balance = %d", got)
	}

	lastSeq := n.journal.LastSeq()
	n.stop(t)

	// restart over the same directory
	n2 := startNode(t, dir)
	if got := n2.journal.LastSeq(); got != lastSeq {
		t.Fatalf("journal lastSeq = %d, want %d", got, lastSeq)
	}

	// the ask's unfilled 300 is back in the book
	o, err := n2.eng.GetOrder(ask.OrderID)
	if err != nil {
		t.Fatalf("get order: %v", err)
	}
	if !o.Active || o.Remaining != 300 {
		t.Fatalf("restored ask = %+v", o)
	}
	best, ok, err := n2.eng.BestPrice(p.ID, book.Sell)
	if err != nil || !ok || best != 100 {
		t.Fatalf("restored best ask = %d ok=%v err=%v", best, ok, err)
	}

	// balances came from the vault's own persistence
	if got := n2.vault.Balance(taker.Address(), gold); got != 200 {
		t.Fatalf("restored taker gold = %d", got)
	}

	// the book still trades
	if err := n2.eng.CancelOrder(maker.Address(), ask.OrderID); err != nil {
		t.Fatalf("cancel after restart: %v", err)
	}
	if got := n2.vault.Balance(maker.Address(), gold); got != 1_000-200 {
		t.Fatalf("maker gold after refund = %d", got)
	}
}

// The journal's hash chain must reproduce exactly across a replay.
func TestJournalReplayMatchesLive(t *testing.T) {
	dir := t.TempDir()
	n := startNode(t, dir)

	user, _ := crypto.GenerateKey()
	p, err := n.eng.AddPair(admin, gold, usd, 8, 6)
	if err != nil {
		t.Fatal(err)
	}
	if err := n.eng.Deposit(user.Address(), usd, 10_000); err != nil {
		t.Fatal(err)
	}
	if _, err := n.eng.PlaceOrder(engine.PlaceRequest{
		Owner: user.Address(), PairID: p.ID, Side: book.Buy, Price: 50, Amount: 10,
	}); err != nil {
		t.Fatal(err)
	}

	var seqs []uint64
	var kinds []events.Kind
	if err := n.journal.Replay(0, func(e events.Event) error {
		seqs = append(seqs, e.Seq)
		kinds = append(kinds, e.Kind)
		return nil
	}); err != nil {
		t.Fatalf("replay: %v", err)
	}

	want := []events.Kind{events.KindPairAdded, events.KindDeposit, events.KindOrderPlaced}
	if len(kinds) != len(want) {
		t.Fatalf("got %d events, want %d", len(kinds), len(want))
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Fatalf("event %d = %s, want %s", i, kinds[i], want[i])
		}
		if seqs[i] != uint64(i+1) {
			t.Fatalf("seq %d = %d", i, seqs[i])
		}
	}
}

// Signed-message round trip the way the API does it: hash, sign, recover,
// then run the recovered owner's order through the engine.
func TestSignedOrderFlow(t *testing.T) {
	n := startNode(t, t.TempDir())

	user, _ := crypto.GenerateKey()
	p, err := n.eng.AddPair(admin, gold, usd, 8, 6)
	if err != nil {
		t.Fatal(err)
	}
	if err := n.eng.Deposit(user.Address(), usd, 5_000); err != nil {
		t.Fatal(err)
	}

	typed := crypto.NewTypedSigner(crypto.DefaultDomain())
	msg := &crypto.PlaceOrderMsg{
		PairID: p.ID,
		Side:   0,
		TIF:    0,
		Price:  100,
		Amount: 10,
		Nonce:  1,
		Owner:  user.Address(),
	}
	digest, err := typed.HashPlaceOrder(msg)
	if err != nil {
		t.Fatal(err)
	}
	sig, err := user.Sign(digest)
	if err != nil {
		t.Fatal(err)
	}

	recovered, err := typed.RecoverPlaceOrder(msg, sig)
	if err != nil {
		t.Fatal(err)
	}
	if recovered != user.Address() {
		t.Fatalf("recovered %s, want %s", recovered.Hex(), user.Address().Hex())
	}

	res, err := n.eng.PlaceOrder(engine.PlaceRequest{
		Owner:  recovered,
		PairID: msg.PairID,
		Side:   book.Side(msg.Side),
		TIF:    book.TimeInForce(msg.TIF),
		Price:  msg.Price,
		Amount: msg.Amount,
	})
	if err != nil {
		t.Fatalf("place: %v", err)
	}
	if !res.Rested {
		t.Fatal("order should rest in an empty book")
	}
	if got := n.vault.Balance(user.Address(), usd); got != 4_000 {
		t.Fatalf("reserved balance = %d", got)
	}
}
