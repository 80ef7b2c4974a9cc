// Package domain holds the types shared across every layer of the
// engine: currencies, symbols, the command envelope, and the reason
// codes a validation failure can carry. Nothing here owns state or
// performs I/O — it is the vocabulary the rest of the packages share.
package domain

import "galois/internal/decimal"

// CurrencyID identifies a currency (asset) by a stable 32-bit id.
type CurrencyID uint32

// UserID is an opaque 32-byte account identifier.
type UserID [32]byte

// FeeAccount is the reserved, non-tradable user id that maker/taker
// fees accrue into. It is not a configurable per-symbol field: the
// original implementation this spec was distilled from uses a single
// global fee sink, and we keep that shape.
var FeeAccount = UserID{0xFE} // 0xFE0...0, reserved

// SymbolState is the lifecycle state of a trading pair.
type SymbolState uint8

const (
	Open SymbolState = iota
	Closed
)

func (s SymbolState) String() string {
	if s == Open {
		return "Open"
	}
	return "Closed"
}

// SymbolID names a trading pair by its (base, quote) currency ids.
type SymbolID struct {
	Base  CurrencyID
	Quote CurrencyID
}

// Symbol carries the per-pair parameters declared by NEW_SYMBOL and
// mutated by UPDATE_SYMBOL / OPEN / CLOSE.
type Symbol struct {
	ID SymbolID

	BaseScale  int32 // digits after the point for base amounts, <= decimal.MaxScale
	QuoteScale int32 // digits after the point for quote amounts (and price)

	TakerFee decimal.Decimal
	MakerFee decimal.Decimal

	MinAmount decimal.Decimal // minimum base amount for a taker's original request
	MinVol    decimal.Decimal // minimum quote volume for a taker's original request

	EnableMarketOrder bool

	State SymbolState
}

// Tradable reports whether new orders may be accepted against this
// symbol.
func (s *Symbol) Tradable() bool { return s.State == Open }
