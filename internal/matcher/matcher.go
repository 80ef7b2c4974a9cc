// Package matcher implements §4.3: given a validated taker order and
// its symbol's book, walk the opposite side in price-time priority,
// filling or self-trade-cancelling resting makers until the taker is
// exhausted or the book stops crossing. It never touches I/O and never
// yields mid-event — the whole walk is one synchronous call, which is
// what makes a "partially executed event" impossible by construction
// (§5).
package matcher

import (
	"galois/internal/accounts"
	"galois/internal/decimal"
	"galois/internal/domain"
	"galois/internal/orderbook"
)

// Disposition is the taker's final state once matching stops.
type Disposition uint8

const (
	// Filled means the taker's unfilled amount (or, for a BID_MARKET
	// taker, its quote budget) reached zero.
	Filled Disposition = iota
	// PartiallyFilledResting means a Limit taker has unfilled > 0
	// remaining and becomes a resting maker at its own limit price.
	PartiallyFilledResting
	// CanceledRemainder means a Market taker (ASK_MARKET, or a
	// BID_MARKET whose remaining budget can no longer buy even the
	// smallest unit) still has capacity left; the remainder is
	// canceled and never rests.
	CanceledRemainder
)

// Match records one fill between a resting maker and the taker.
type Match struct {
	MakerID   uint64
	MakerUser domain.UserID
	MakerSide domain.Side

	TakerID   uint64
	TakerUser domain.UserID

	Price  decimal.Decimal
	Amount decimal.Decimal
	Vol    decimal.Decimal

	// MakerFilled is true when this match consumed the maker's last
	// unfilled unit, i.e. the maker was popped from the book.
	MakerFilled bool
}

// SelfTradeCancel is the synthetic cancel entry emitted when a maker
// would otherwise match against its own taker (§4.3 step 1).
type SelfTradeCancel struct {
	OrderID        uint64
	UserID         domain.UserID
	Side           domain.Side
	RefundCurrency domain.CurrencyID
	RefundAmount   decimal.Decimal
}

// Report is everything a single taker order produced.
type Report struct {
	Matches     []Match
	Cancels     []SelfTradeCancel
	Disposition Disposition
}

// CurrencyFor returns the currency an order's frozen amount is
// denominated in: base for Ask, quote for Bid.
func CurrencyFor(side domain.Side, sym *domain.Symbol) domain.CurrencyID {
	if side == domain.Ask {
		return sym.ID.Base
	}
	return sym.ID.Quote
}

// crosses reports whether a taker at takerPrice (ignored for Market)
// crosses a resting maker at makerPrice, given the taker's side and
// kind.
func crosses(takerSide domain.Side, takerKind domain.OrderKind, takerPrice, makerPrice decimal.Decimal) bool {
	if takerKind == domain.Market {
		return true
	}
	if takerSide == domain.Bid {
		return takerPrice.GreaterThanOrEqual(makerPrice)
	}
	return takerPrice.LessThanOrEqual(makerPrice)
}

// Run runs the taker against book's opposite side in price-time
// priority, mutating book in place, and returns the trade report.
// taker.Unfilled (or, for a BID_MARKET taker, taker.QuoteBudget) is
// decremented as it fills. Callers are responsible for enqueuing the
// taker as a resting maker when Disposition is PartiallyFilledResting,
// and for applying every Match/SelfTradeCancel to the ledger (that is
// the clearer's job, §4.4 — Run itself only touches the book so a
// self-trade's Unfreeze is the sole ledger effect it performs inline).
func Run(book *orderbook.Book, ledger *accounts.Ledger, sym *domain.Symbol, taker *orderbook.Order) (*Report, error) {
	budgeted := taker.Side == domain.Bid && taker.Kind == domain.Market
	if budgeted {
		return matchBudgeted(book, ledger, sym, taker)
	}
	return matchUnfilled(book, ledger, sym, taker)
}

func matchUnfilled(book *orderbook.Book, ledger *accounts.Ledger, sym *domain.Symbol, taker *orderbook.Order) (*Report, error) {
	report := &Report{}
	opposite := taker.Side.Opposite()

	for taker.Unfilled.IsPos() {
		maker := book.PeekBest(opposite)
		if maker == nil {
			break
		}
		if !crosses(taker.Side, taker.Kind, taker.Price, maker.Price) {
			break
		}

		if maker.UserID == taker.UserID {
			if err := selfTradeCancel(book, ledger, sym, opposite, maker, report); err != nil {
				return nil, err
			}
			continue
		}

		tradeAmount := decimal.Min(taker.Unfilled, maker.Unfilled)
		if err := applyTrade(book, sym, opposite, taker, maker, tradeAmount, report); err != nil {
			return nil, err
		}
	}

	switch {
	case taker.Unfilled.IsZero():
		report.Disposition = Filled
	case taker.Kind == domain.Market:
		report.Disposition = CanceledRemainder
	default:
		report.Disposition = PartiallyFilledResting
	}
	return report, nil
}

// matchBudgeted handles BID_MARKET: the taker carries a remaining
// quote budget (not a base amount) since it is specified by vol
// rather than amount (§6). Each candidate ask converts at its own
// price; the affordable quantity is floored to the base scale so the
// trade never overspends the budget.
func matchBudgeted(book *orderbook.Book, ledger *accounts.Ledger, sym *domain.Symbol, taker *orderbook.Order) (*Report, error) {
	report := &Report{}

	for taker.QuoteBudget.IsPos() {
		maker := book.PeekBest(domain.Ask)
		if maker == nil {
			break
		}

		if maker.UserID == taker.UserID {
			if err := selfTradeCancel(book, ledger, sym, domain.Ask, maker, report); err != nil {
				return nil, err
			}
			continue
		}

		maxAffordable, err := taker.QuoteBudget.Div(maker.Price, sym.BaseScale)
		if err != nil {
			return nil, err
		}
		if maxAffordable.IsZero() {
			break
		}

		tradeAmount := decimal.Min(maxAffordable, maker.Unfilled)
		if err := applyBudgetedTrade(book, sym, taker, maker, tradeAmount, report); err != nil {
			return nil, err
		}
	}

	if taker.QuoteBudget.IsZero() {
		report.Disposition = Filled
	} else {
		report.Disposition = CanceledRemainder
	}
	return report, nil
}

func selfTradeCancel(book *orderbook.Book, ledger *accounts.Ledger, sym *domain.Symbol, side domain.Side, maker *orderbook.Order, report *Report) error {
	refundCurrency := CurrencyFor(maker.Side, sym)
	if err := ledger.Unfreeze(maker.UserID, refundCurrency, maker.Frozen); err != nil {
		return err
	}
	report.Cancels = append(report.Cancels, SelfTradeCancel{
		OrderID:        maker.ID,
		UserID:         maker.UserID,
		Side:           maker.Side,
		RefundCurrency: refundCurrency,
		RefundAmount:   maker.Frozen,
	})
	book.RemoveResting(side, maker)
	return nil
}

func applyTrade(book *orderbook.Book, sym *domain.Symbol, opposite domain.Side, taker, maker *orderbook.Order, tradeAmount decimal.Decimal, report *Report) error {
	tradeVol, err := maker.Price.MulRescale(tradeAmount, sym.QuoteScale, decimal.Truncate)
	if err != nil {
		return err
	}

	newTakerUnfilled, err := taker.Unfilled.Sub(tradeAmount)
	if err != nil {
		return err
	}
	taker.Unfilled = newTakerUnfilled

	newMakerUnfilled, err := maker.Unfilled.Sub(tradeAmount)
	if err != nil {
		return err
	}
	maker.Unfilled = newMakerUnfilled

	takerFilled, err := taker.Filled.Add(tradeAmount)
	if err != nil {
		return err
	}
	taker.Filled = takerFilled
	makerFilledAmt, err := maker.Filled.Add(tradeAmount)
	if err != nil {
		return err
	}
	maker.Filled = makerFilledAmt

	makerFilled := maker.Unfilled.IsZero()
	report.Matches = append(report.Matches, Match{
		MakerID:     maker.ID,
		MakerUser:   maker.UserID,
		MakerSide:   maker.Side,
		TakerID:     taker.ID,
		TakerUser:   taker.UserID,
		Price:       maker.Price,
		Amount:      tradeAmount,
		Vol:         tradeVol,
		MakerFilled: makerFilled,
	})

	if makerFilled {
		book.RemoveResting(opposite, maker)
	}
	return nil
}

func applyBudgetedTrade(book *orderbook.Book, sym *domain.Symbol, taker, maker *orderbook.Order, tradeAmount decimal.Decimal, report *Report) error {
	tradeVol, err := maker.Price.MulRescale(tradeAmount, sym.QuoteScale, decimal.Truncate)
	if err != nil {
		return err
	}

	newBudget, err := taker.QuoteBudget.Sub(tradeVol)
	if err != nil {
		return err
	}
	taker.QuoteBudget = newBudget

	newMakerUnfilled, err := maker.Unfilled.Sub(tradeAmount)
	if err != nil {
		return err
	}
	maker.Unfilled = newMakerUnfilled

	takerFilled, err := taker.Filled.Add(tradeAmount)
	if err != nil {
		return err
	}
	taker.Filled = takerFilled
	makerFilledAmt, err := maker.Filled.Add(tradeAmount)
	if err != nil {
		return err
	}
	maker.Filled = makerFilledAmt

	makerFilled := maker.Unfilled.IsZero()
	report.Matches = append(report.Matches, Match{
		MakerID:     maker.ID,
		MakerUser:   maker.UserID,
		MakerSide:   maker.Side,
		TakerID:     taker.ID,
		TakerUser:   taker.UserID,
		Price:       maker.Price,
		Amount:      tradeAmount,
		Vol:         tradeVol,
		MakerFilled: makerFilled,
	})

	if makerFilled {
		book.RemoveResting(domain.Ask, maker)
	}
	return nil
}
