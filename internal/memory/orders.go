package memory

import (
	"galois/internal/decimal"
	"galois/internal/orderbook"
)

// NewOrderPool constructs the pool the sequencer draws resting/taker
// Order allocations from instead of a bare composite literal on every
// command.
func NewOrderPool() *Pool[orderbook.Order] {
	return NewPool(func() *orderbook.Order { return &orderbook.Order{} })
}

// ResetOrder zeroes every field a pooled Order must not leak between
// uses — FIFO linkage most of all, since a stale next/prev pointer
// into a price level the order no longer belongs to would corrupt the
// book on its next insert.
func ResetOrder(o *orderbook.Order) *orderbook.Order {
	*o = orderbook.Order{
		Price:       decimal.Zero,
		Unfilled:    decimal.Zero,
		Frozen:      decimal.Zero,
		QuoteBudget: decimal.Zero,
		Filled:      decimal.Zero,
	}
	return o
}
