package memory

import (
	"testing"

	"galois/internal/orderbook"
)

func TestPoolReusesReleasedObjects(t *testing.T) {
	pool := NewOrderPool()
	o := pool.Get()
	o.ID = 42
	pool.Put(ResetOrder(o))

	got := pool.Get()
	if got.ID != 0 {
		t.Fatalf("expected a reused Order to have been reset, got ID=%d", got.ID)
	}
}

func TestAdvanceEpochAndReclaimWaitsForActiveReader(t *testing.T) {
	pool := NewOrderPool()
	ring := NewRetireRing(4)
	reader := &ReaderEpoch{}

	reader.Enter()
	ring.Enqueue(&orderbook.Order{ID: 7})

	AdvanceEpochAndReclaim(ring, pool, reader)
	if ring.Dequeue() == nil {
		t.Fatalf("expected the retired order to still be in the ring while the reader is active")
	}

	reader.Exit()
	ring.Enqueue(&orderbook.Order{ID: 7})
	AdvanceEpochAndReclaim(ring, pool, reader)
	if v := ring.Dequeue(); v != nil {
		t.Fatalf("expected the ring to be drained once the reader exited, got %v", v)
	}
}

func TestRetireRingFIFOOrder(t *testing.T) {
	ring := NewRetireRing(4)
	ring.Enqueue(1)
	ring.Enqueue(2)
	if got := ring.Dequeue(); got != 1 {
		t.Fatalf("expected FIFO order, got %v first", got)
	}
	if got := ring.Dequeue(); got != 2 {
		t.Fatalf("expected FIFO order, got %v second", got)
	}
	if ring.Dequeue() != nil {
		t.Fatalf("expected an empty ring to dequeue nil")
	}
}
