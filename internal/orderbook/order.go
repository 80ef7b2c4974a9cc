// Package orderbook implements the per-symbol price-time-priority
// ladder: two price-ordered red-black trees (bids descending, asks
// ascending), each price mapping to a FIFO queue of resting orders,
// plus an order_id index for O(log P + 1) cancel. It owns no
// balances and performs no I/O — matching and clearing live one layer
// up so the ladder itself stays allocation-lean and synchronous,
// matching the teacher's separation of domain/orderbook from
// service/infra.
package orderbook

import (
	"galois/internal/decimal"
	"galois/internal/domain"
)

// Order is a single resting or in-flight order (§3).
type Order struct {
	ID     uint64
	UserID domain.UserID
	Side   domain.Side
	Kind   domain.OrderKind

	Price decimal.Decimal // scale = quote_scale; meaningless for Market

	Unfilled decimal.Decimal // remaining base amount, scale = base_scale
	Frozen   decimal.Decimal // currency-side amount locked against this order

	// QuoteBudget is only meaningful for a BID_MARKET taker: the
	// remaining quote it may still spend. BID_MARKET is specified by
	// a quote budget rather than a base amount (§6), so it cannot
	// share Unfilled's bookkeeping with every other order kind.
	QuoteBudget decimal.Decimal

	// Filled accumulates the base amount traded so far, for clearing
	// rows and QUERY_ORDER responses.
	Filled decimal.Decimal

	CreatedAt uint64 // event_id at which this order was accepted

	next, prev *Order // FIFO linkage inside a PriceLevel
}

// Next returns the next order in FIFO order at the same price level,
// or nil at the tail. Read-only traversal helper for snapshots.
func (o *Order) Next() *Order { return o.next }

// Resting reports whether the order still has a positive unfilled
// amount (the invariant every book entry must satisfy, §3).
func (o *Order) Resting() bool { return o.Unfilled.IsPos() }
