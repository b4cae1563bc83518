package book

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

var owner = common.HexToAddress("0xAA00000000000000000000000000000000000000")

func newOrder(id uint64, side Side, price, amount int64) *Order {
	return &Order{
		ID:        id,
		Owner:     owner,
		Side:      side,
		Price:     price,
		Original:  amount,
		Remaining: amount,
		Active:    true,
	}
}

func TestBookBestPrice(t *testing.T) {
	b := New()

	if _, ok := b.BestPrice(Buy); ok {
		t.Fatal("empty bid side must report no best price")
	}

	b.Insert(newOrder(1, Buy, 100, 10))
	b.Insert(newOrder(2, Buy, 120, 10))
	b.Insert(newOrder(3, Buy, 110, 10))
	b.Insert(newOrder(4, Sell, 130, 10))
	b.Insert(newOrder(5, Sell, 125, 10))

	if p, _ := b.BestPrice(Buy); p != 120 {
		t.Fatalf("best bid = %d, want 120", p)
	}
	if p, _ := b.BestPrice(Sell); p != 125 {
		t.Fatalf("best ask = %d, want 125", p)
	}
}

func TestBookFIFOWithinLevel(t *testing.T) {
	b := New()
	b.Insert(newOrder(7, Buy, 100, 5))
	b.Insert(newOrder(9, Buy, 100, 5))
	b.Insert(newOrder(11, Buy, 100, 5))

	lvl := b.Best(Buy)
	if lvl.Count != 3 || lvl.Total != 15 {
		t.Fatalf("level count/total = %d/%d, want 3/15", lvl.Count, lvl.Total)
	}

	var ids []uint64
	for o := lvl.Head(); o != nil; o = o.Next() {
		ids = append(ids, o.ID)
	}
	want := []uint64{7, 9, 11}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("FIFO order = %v, want %v", ids, want)
		}
	}
}

func TestBookRemoveInterior(t *testing.T) {
	b := New()
	a := newOrder(1, Sell, 50, 5)
	m := newOrder(2, Sell, 50, 5)
	z := newOrder(3, Sell, 50, 5)
	b.Insert(a)
	b.Insert(m)
	b.Insert(z)

	b.Remove(m)
	lvl := b.Best(Sell)
	if lvl.Count != 2 || lvl.Total != 10 {
		t.Fatalf("after interior remove: count/total = %d/%d", lvl.Count, lvl.Total)
	}
	if lvl.Head() != a || lvl.Head().Next() != z {
		t.Fatal("queue links broken after interior remove")
	}
	if b.Resting(2) != nil {
		t.Fatal("removed order still indexed")
	}
}

func TestBookLevelDestroyedWhenEmpty(t *testing.T) {
	b := New()
	o := newOrder(1, Buy, 100, 10)
	b.Insert(o)
	b.Insert(newOrder(2, Buy, 90, 10))

	b.Remove(o)
	if b.Levels(Buy) != 1 {
		t.Fatalf("levels = %d, want 1", b.Levels(Buy))
	}
	if p, _ := b.BestPrice(Buy); p != 90 {
		t.Fatalf("best bid = %d, want 90", p)
	}
}

func TestBookReduceToZeroRemoves(t *testing.T) {
	b := New()
	o := newOrder(1, Sell, 75, 10)
	b.Insert(o)

	b.Reduce(o, 4)
	if o.Remaining != 6 || b.Best(Sell).Total != 6 {
		t.Fatalf("after partial reduce: remaining=%d total=%d", o.Remaining, b.Best(Sell).Total)
	}

	b.Reduce(o, 6)
	if !b.Empty() {
		t.Fatal("book must be empty once the only order hits zero")
	}
	if o.Resting() {
		t.Fatal("fully reduced order still linked to a level")
	}
}

func TestBookDepthSnapshot(t *testing.T) {
	b := New()
	b.Insert(newOrder(1, Buy, 100, 10))
	b.Insert(newOrder(2, Buy, 100, 5))
	b.Insert(newOrder(3, Buy, 110, 7))
	b.Insert(newOrder(4, Buy, 90, 1))

	depth := b.DepthSnapshot(Buy, 0, 2)
	if len(depth) != 2 {
		t.Fatalf("depth len = %d, want 2", len(depth))
	}
	if depth[0].Price != 110 || depth[1].Price != 100 || depth[1].Amount != 15 {
		t.Fatalf("unexpected depth: %+v", depth)
	}

	rest := b.DepthSnapshot(Buy, 2, 0)
	if len(rest) != 1 || rest[0].Price != 90 {
		t.Fatalf("offset depth wrong: %+v", rest)
	}
}
