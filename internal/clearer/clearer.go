// Package clearer implements §4.4: it takes a matcher.Report and turns
// it into ledger mutations and per-participant clearing rows — fee
// computation, frozen-balance settlement, and the residual-refund rule
// that keeps ceiling-rounded reserves from leaking dust. It never
// decides whether two orders cross; that is the matcher's job. Clearer
// only ever runs after a match, so like matcher and orderbook it is
// synchronous and does no I/O.
package clearer

import (
	"galois/internal/accounts"
	"galois/internal/decimal"
	"galois/internal/domain"
	"galois/internal/matcher"
	"galois/internal/orderbook"
)

// Role distinguishes the two sides of a single Match: the maker whose
// resting order was hit, and the taker whose incoming order did the
// hitting.
type Role uint8

const (
	Maker Role = iota
	Taker
)

func (r Role) String() string {
	if r == Maker {
		return "maker"
	}
	return "taker"
}

// Status is the clearing row's disposition for the order it reports on.
type Status uint8

const (
	PartiallyFilled Status = iota
	OrderFilled
	OrderCanceled
)

func (s Status) String() string {
	switch s {
	case OrderFilled:
		return "filled"
	case OrderCanceled:
		return "canceled"
	default:
		return "partially_filled"
	}
}

// Row is one participant's record of one event: a single match leg or
// a cancellation. base_delta/quote_delta are signed (positive credit,
// negative debit) from that participant's point of view. The four
// *After fields report the participant's post-mutation balance in both
// of the symbol's currencies, since a single match always moves both
// legs for both counterparties and spec.md leaves the exact currency of
// "available_after/frozen_after" unstated — reporting both removes the
// ambiguity.
type Row struct {
	EventID uint64
	OrderID uint64
	UserID  domain.UserID
	Role    Role
	Side    domain.Side
	Status  Status

	Price      decimal.Decimal
	BaseDelta  decimal.Decimal
	QuoteDelta decimal.Decimal
	BaseCharge decimal.Decimal // fee charged, denominated in base
	QuoteCharge decimal.Decimal // fee charged, denominated in quote

	BaseAvailableAfter  decimal.Decimal
	BaseFrozenAfter     decimal.Decimal
	QuoteAvailableAfter decimal.Decimal
	QuoteFrozenAfter    decimal.Decimal
}

func snapshotAfter(ledger *accounts.Ledger, user domain.UserID, sym *domain.Symbol) (base, quote accounts.Balance) {
	return ledger.Get(user, sym.ID.Base), ledger.Get(user, sym.ID.Quote)
}

func rowFor(eventID uint64, orderID uint64, user domain.UserID, role Role, side domain.Side, status Status, price, baseDelta, quoteDelta, baseCharge, quoteCharge decimal.Decimal, ledger *accounts.Ledger, sym *domain.Symbol) Row {
	base, quote := snapshotAfter(ledger, user, sym)
	return Row{
		EventID: eventID, OrderID: orderID, UserID: user, Role: role, Side: side, Status: status,
		Price: price, BaseDelta: baseDelta, QuoteDelta: quoteDelta,
		BaseCharge: baseCharge, QuoteCharge: quoteCharge,
		BaseAvailableAfter: base.Available, BaseFrozenAfter: base.Frozen,
		QuoteAvailableAfter: quote.Available, QuoteFrozenAfter: quote.Frozen,
	}
}

// Apply settles every match and self-trade cancel in report against
// ledger, charging maker/taker fees with the asymmetric ceil-toward-
// positive rounding §4.1 mandates, and returns one row per participant
// per event. maker/taker *orderbook.Order are needed (not just the IDs
// in the report) because Order.Frozen is the running frozen-remaining
// counter the residual-refund rule depends on; callers pass the same
// Order values they handed to matcher.Run.
func Apply(eventID uint64, report *matcher.Report, sym *domain.Symbol, ledger *accounts.Ledger, taker *orderbook.Order, lookupMaker func(orderID uint64) *orderbook.Order) ([]Row, error) {
	var rows []Row

	for _, c := range report.Cancels {
		// matcher.Run already unfroze the maker's reserve inline
		// (self-trade prevention is a same-call ledger effect, unlike
		// ordinary fills); clearer only needs to record the row.
		rows = append(rows, rowFor(eventID, c.OrderID, c.UserID, Maker, c.Side, OrderCanceled,
			decimal.Zero, decimal.Zero, decimal.Zero, decimal.Zero, decimal.Zero, ledger, sym))
	}

	for _, m := range report.Matches {
		maker := lookupMaker(m.MakerID)
		makerRow, err := settleLeg(eventID, sym, ledger, maker, m, Maker)
		if err != nil {
			return nil, err
		}
		rows = append(rows, makerRow)

		takerRow, err := settleLeg(eventID, sym, ledger, taker, m, Taker)
		if err != nil {
			return nil, err
		}
		rows = append(rows, takerRow)
	}

	return rows, nil
}

// settleLeg charges fees and moves balances for one side (maker or
// taker) of a single match, returning its clearing row.
func settleLeg(eventID uint64, sym *domain.Symbol, ledger *accounts.Ledger, o *orderbook.Order, m matcher.Match, role Role) (Row, error) {
	feeRate := sym.TakerFee
	if role == Maker {
		feeRate = sym.MakerFee
	}

	var status Status
	if role == Maker && m.MakerFilled {
		status = OrderFilled
	} else {
		status = PartiallyFilled
	}

	if o.Side == domain.Ask {
		return settleAskLeg(eventID, sym, ledger, o, m, role, feeRate, status)
	}
	return settleBidLeg(eventID, sym, ledger, o, m, role, feeRate, status)
}

// settleAskLeg handles the side that gives up base and receives quote
// (the seller), whether it is acting as maker or taker.
func settleAskLeg(eventID uint64, sym *domain.Symbol, ledger *accounts.Ledger, o *orderbook.Order, m matcher.Match, role Role, feeRate decimal.Decimal, status Status) (Row, error) {
	user := o.UserID
	if role == Maker {
		if err := ledger.SettleFrozen(user, sym.ID.Base, m.Amount); err != nil {
			return Row{}, err
		}
		o.Frozen, _ = o.Frozen.Sub(m.Amount)
	} else {
		if err := ledger.Debit(user, sym.ID.Base, m.Amount); err != nil {
			return Row{}, err
		}
	}

	fee, err := m.Vol.MulRescale(feeRate, sym.QuoteScale, decimal.CeilAbs)
	if err != nil {
		return Row{}, err
	}
	netQuote, err := m.Vol.Sub(fee)
	if err != nil {
		return Row{}, err
	}
	if err := ledger.Credit(user, sym.ID.Quote, netQuote); err != nil {
		return Row{}, err
	}
	if fee.IsPos() {
		if err := ledger.Credit(domain.FeeAccount, sym.ID.Quote, fee); err != nil {
			return Row{}, err
		}
	}

	if role == Maker && m.MakerFilled && o.Frozen.IsPos() {
		if err := ledger.Unfreeze(user, sym.ID.Base, o.Frozen); err != nil {
			return Row{}, err
		}
		o.Frozen = decimal.Zero
	}

	return rowFor(eventID, o.ID, user, role, domain.Ask, status, m.Price,
		m.Amount.Neg(), netQuote, decimal.Zero, fee, ledger, sym), nil
}

// settleBidLeg handles the side that gives up quote and receives base
// (the buyer), whether it is acting as maker or taker.
func settleBidLeg(eventID uint64, sym *domain.Symbol, ledger *accounts.Ledger, o *orderbook.Order, m matcher.Match, role Role, feeRate decimal.Decimal, status Status) (Row, error) {
	user := o.UserID
	if role == Maker {
		quoteRelease, err := m.Price.MulRescale(m.Amount, sym.QuoteScale, decimal.CeilAbs)
		if err != nil {
			return Row{}, err
		}
		if quoteRelease.GreaterThan(o.Frozen) {
			quoteRelease = o.Frozen // never release more than is actually reserved
		}
		if err := ledger.SettleFrozen(user, sym.ID.Quote, quoteRelease); err != nil {
			return Row{}, err
		}
		o.Frozen, _ = o.Frozen.Sub(quoteRelease)
	} else {
		if err := ledger.Debit(user, sym.ID.Quote, m.Vol); err != nil {
			return Row{}, err
		}
	}

	fee, err := m.Amount.MulRescale(feeRate, sym.BaseScale, decimal.CeilAbs)
	if err != nil {
		return Row{}, err
	}
	netBase, err := m.Amount.Sub(fee)
	if err != nil {
		return Row{}, err
	}
	if err := ledger.Credit(user, sym.ID.Base, netBase); err != nil {
		return Row{}, err
	}
	if fee.IsPos() {
		if err := ledger.Credit(domain.FeeAccount, sym.ID.Base, fee); err != nil {
			return Row{}, err
		}
	}

	if role == Maker && m.MakerFilled && o.Frozen.IsPos() {
		if err := ledger.Unfreeze(user, sym.ID.Quote, o.Frozen); err != nil {
			return Row{}, err
		}
		o.Frozen = decimal.Zero
	}

	return rowFor(eventID, o.ID, user, role, domain.Bid, status, m.Price,
		netBase, m.Vol.Neg(), fee, decimal.Zero, ledger, sym), nil
}

// FreezeResting reserves the remaining funds for a Limit taker that
// matcher.Run reported as PartiallyFilledResting, before it is
// inserted into the book as a maker (§4.4: "when a Limit taker becomes
// resting, freeze its remaining funds atomically").
func FreezeResting(ledger *accounts.Ledger, sym *domain.Symbol, o *orderbook.Order) error {
	if o.Side == domain.Ask {
		if err := ledger.Freeze(o.UserID, sym.ID.Base, o.Unfilled); err != nil {
			return err
		}
		o.Frozen = o.Unfilled
		return nil
	}
	reserve, err := o.Price.MulRescale(o.Unfilled, sym.QuoteScale, decimal.CeilAbs)
	if err != nil {
		return err
	}
	if err := ledger.Freeze(o.UserID, sym.ID.Quote, reserve); err != nil {
		return err
	}
	o.Frozen = reserve
	return nil
}

// CancelResting releases whatever remains frozen against a resting
// order (an explicit CANCEL command, §6), returning the clearing row.
func CancelResting(eventID uint64, ledger *accounts.Ledger, sym *domain.Symbol, o *orderbook.Order) (Row, error) {
	currency := sym.ID.Base
	if o.Side == domain.Bid {
		currency = sym.ID.Quote
	}
	if o.Frozen.IsPos() {
		if err := ledger.Unfreeze(o.UserID, currency, o.Frozen); err != nil {
			return Row{}, err
		}
		o.Frozen = decimal.Zero
	}
	return rowFor(eventID, o.ID, o.UserID, Maker, o.Side, OrderCanceled,
		o.Price, decimal.Zero, decimal.Zero, decimal.Zero, decimal.Zero, ledger, sym), nil
}
