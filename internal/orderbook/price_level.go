package orderbook

import "galois/internal/decimal"

// PriceLevel is a FIFO queue of resting orders at a single price,
// ported from the teacher's price_level.go and generalized from int64
// quantities to Decimal.
type PriceLevel struct {
	Price decimal.Decimal

	head, tail *Order
	count      int
}

// Head returns the oldest (next-to-match) order at this level, or nil.
func (p *PriceLevel) Head() *Order { return p.head }

// Count is the number of resting orders at this level.
func (p *PriceLevel) Count() int { return p.count }

// Empty reports whether the level has no resting orders.
func (p *PriceLevel) Empty() bool { return p.head == nil }

// Enqueue appends o to the tail of this level's FIFO queue.
func (p *PriceLevel) Enqueue(o *Order) {
	if p.tail != nil {
		p.tail.next = o
		o.prev = p.tail
	} else {
		p.head = o
	}
	p.tail = o
	p.count++
}

// Remove unlinks o from this level's queue. o must currently be a
// member of this level.
func (p *PriceLevel) Remove(o *Order) {
	if o.prev != nil {
		o.prev.next = o.next
	} else {
		p.head = o.next
	}
	if o.next != nil {
		o.next.prev = o.prev
	} else {
		p.tail = o.prev
	}
	o.next, o.prev = nil, nil
	p.count--
}

// TotalQty sums the unfilled amount of every resting order at this
// level.
func (p *PriceLevel) TotalQty() decimal.Decimal {
	total := decimal.Zero
	for o := p.head; o != nil; o = o.next {
		total, _ = total.Add(o.Unfilled)
	}
	return total
}
