package orderbook

import (
	"galois/internal/decimal"
	"galois/internal/domain"

	"github.com/cockroachdb/errors"
)

// ErrDuplicateOrderID is returned by InsertResting when order_id
// already resides in the book (§4.2).
var ErrDuplicateOrderID = errors.New("orderbook: duplicate order id")

type orderLocation struct {
	side  domain.Side
	price decimal.Decimal
}

// Book is a single symbol's order book: two price-ordered ladders
// (bids descending, asks ascending) plus an order_id -> location index
// for O(log P + 1) cancel, matching §3/§4.2 exactly. Book owns no
// accounts and performs no I/O. The matcher applies fills and
// self-trade cancels to it; the sequencer rests takers, cancels
// orders and restores snapshot orders into it.
type Book struct {
	Symbol domain.SymbolID

	bids *ladder
	asks *ladder

	byID map[uint64]orderLocation
}

// NewBook constructs an empty book for the given symbol.
func NewBook(symbol domain.SymbolID) *Book {
	return &Book{
		Symbol: symbol,
		bids:   newLadder(),
		asks:   newLadder(),
		byID:   make(map[uint64]orderLocation),
	}
}

func (b *Book) ladderFor(side domain.Side) *ladder {
	if side == domain.Bid {
		return b.bids
	}
	return b.asks
}

// InsertResting appends o to the tail of its price's queue on side.
func (b *Book) InsertResting(side domain.Side, o *Order) error {
	if _, exists := b.byID[o.ID]; exists {
		return errors.Wrapf(ErrDuplicateOrderID, "order %d", o.ID)
	}
	lvl := b.ladderFor(side).UpsertLevel(o.Price)
	lvl.Enqueue(o)
	b.byID[o.ID] = orderLocation{side: side, price: o.Price}
	return nil
}

// Cancel removes and returns the order identified by orderID, or nil
// if it is not resident.
func (b *Book) Cancel(orderID uint64) *Order {
	loc, ok := b.byID[orderID]
	if !ok {
		return nil
	}
	return b.removeAt(loc.side, loc.price, orderID)
}

// removeAt unlinks the order with orderID from the level at price on
// side, deleting the level if it empties.
func (b *Book) removeAt(side domain.Side, price decimal.Decimal, orderID uint64) *Order {
	l := b.ladderFor(side)
	lvl := l.FindLevel(price)
	if lvl == nil {
		delete(b.byID, orderID)
		return nil
	}
	var found *Order
	for o := lvl.Head(); o != nil; o = o.Next() {
		if o.ID == orderID {
			found = o
			break
		}
	}
	if found == nil {
		delete(b.byID, orderID)
		return nil
	}
	lvl.Remove(found)
	if lvl.Empty() {
		l.DeleteLevel(price)
	}
	delete(b.byID, orderID)
	return found
}

// RemoveResting is used by the matcher to pop a fully-filled maker
// without going through the order_id index lookup (the maker is
// already in hand as best-of-book).
func (b *Book) RemoveResting(side domain.Side, o *Order) {
	b.removeAt(side, o.Price, o.ID)
}

// PeekBest returns the best resting order on side (highest bid price,
// lowest ask price), or nil if that side is empty.
func (b *Book) PeekBest(side domain.Side) *Order {
	lvl := b.ladderFor(side).Best(side)
	if lvl == nil {
		return nil
	}
	return lvl.Head()
}

// BestLevel exposes the whole best level on side, or nil if that side
// is empty.
func (b *Book) BestLevel(side domain.Side) *PriceLevel {
	return b.ladderFor(side).Best(side)
}

// Lookup returns the resting order with orderID and its side, if any.
func (b *Book) Lookup(orderID uint64) (*Order, domain.Side, bool) {
	loc, ok := b.byID[orderID]
	if !ok {
		return nil, 0, false
	}
	lvl := b.ladderFor(loc.side).FindLevel(loc.price)
	if lvl == nil {
		return nil, 0, false
	}
	for o := lvl.Head(); o != nil; o = o.Next() {
		if o.ID == orderID {
			return o, loc.side, true
		}
	}
	return nil, 0, false
}

// ForEachResting walks every resting order on side, best price first,
// FIFO within a level — used by snapshot and query handlers.
func (b *Book) ForEachResting(side domain.Side, fn func(*Order) bool) {
	keepGoing := true
	b.ladderFor(side).ForEach(side, func(lvl *PriceLevel) bool {
		for o := lvl.Head(); o != nil && keepGoing; o = o.Next() {
			if !fn(o) {
				keepGoing = false
				return false
			}
		}
		return keepGoing
	})
}
