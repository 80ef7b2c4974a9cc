package orderbook

import (
	"testing"

	"galois/internal/decimal"
	"galois/internal/domain"
)

func sym() domain.SymbolID { return domain.SymbolID{Base: 101, Quote: 100} }

func mkOrder(id uint64, side domain.Side, price, qty string, seq uint64) *Order {
	return &Order{
		ID:        id,
		Side:      side,
		Kind:      domain.Limit,
		Price:     decimal.MustFromString(price),
		Unfilled:  decimal.MustFromString(qty),
		CreatedAt: seq,
	}
}

func TestInsertAndPeekBest(t *testing.T) {
	b := NewBook(sym())

	if err := b.InsertResting(domain.Bid, mkOrder(1, domain.Bid, "10", "2", 1)); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := b.InsertResting(domain.Bid, mkOrder(2, domain.Bid, "11", "1", 2)); err != nil {
		t.Fatalf("insert: %v", err)
	}

	best := b.PeekBest(domain.Bid)
	if best == nil || best.ID != 2 {
		t.Fatalf("expected best bid to be order 2 (price 11), got %+v", best)
	}
}

func TestDuplicateOrderIDRejected(t *testing.T) {
	b := NewBook(sym())
	o := mkOrder(1, domain.Ask, "10", "1", 1)
	if err := b.InsertResting(domain.Ask, o); err != nil {
		t.Fatalf("insert: %v", err)
	}
	dup := mkOrder(1, domain.Ask, "11", "1", 2)
	if err := b.InsertResting(domain.Ask, dup); err == nil {
		t.Fatalf("expected duplicate order id error")
	}
}

func TestPriceTimePriority(t *testing.T) {
	b := NewBook(sym())
	// two asks at the same price; a (seq 1) must be FIFO-before b (seq 2).
	a := mkOrder(1, domain.Ask, "10", "1", 1)
	b2 := mkOrder(2, domain.Ask, "10", "1", 2)
	_ = b.InsertResting(domain.Ask, a)
	_ = b.InsertResting(domain.Ask, b2)

	lvl := b.BestLevel(domain.Ask)
	if lvl.Head().ID != 1 {
		t.Fatalf("expected order 1 (earlier) to be at the head, got %d", lvl.Head().ID)
	}
	if lvl.Head().Next().ID != 2 {
		t.Fatalf("expected order 2 to follow order 1 in FIFO order")
	}
}

func TestCancelEmptiesLevel(t *testing.T) {
	b := NewBook(sym())
	o := mkOrder(1, domain.Bid, "10", "2", 1)
	_ = b.InsertResting(domain.Bid, o)

	got := b.Cancel(1)
	if got == nil || got.ID != 1 {
		t.Fatalf("expected to cancel order 1")
	}
	if b.PeekBest(domain.Bid) != nil {
		t.Fatalf("expected book to be empty after cancel")
	}
	if b.Cancel(1) != nil {
		t.Fatalf("expected second cancel to be a no-op")
	}
}

func TestBestBidLessThanBestAskUnlessCrossed(t *testing.T) {
	b := NewBook(sym())
	_ = b.InsertResting(domain.Bid, mkOrder(1, domain.Bid, "9", "1", 1))
	_ = b.InsertResting(domain.Ask, mkOrder(2, domain.Ask, "10", "1", 2))

	bestBid := b.PeekBest(domain.Bid)
	bestAsk := b.PeekBest(domain.Ask)
	if !bestBid.Price.LessThan(bestAsk.Price) {
		t.Fatalf("expected best bid < best ask, got %s >= %s", bestBid.Price, bestAsk.Price)
	}
}
