package sequencer

import (
	"fmt"

	"galois/internal/accounts"
	"galois/internal/clearer"
	"galois/internal/decimal"
	"galois/internal/domain"
	"galois/internal/matcher"
	"galois/internal/orderbook"
)

// checkFunds reports a non-mutating InsufficientBalance rejection if
// user's available holdings of currency are below need. It never
// freezes anything — a Limit taker's funds stay in available until it
// actually rests (§4.4), so pre-trade validation only has to bound the
// worst case, not reserve it.
func checkFunds(ledger *accounts.Ledger, user domain.UserID, currency domain.CurrencyID, need decimal.Decimal) *domain.ValidationError {
	bal := ledger.Get(user, currency)
	if bal.Available.LessThan(need) {
		return domain.NewValidationError(domain.InsufficientBalance, fmt.Sprintf("need %s, have %s", need, bal.Available))
	}
	return nil
}

func (e *Engine) handleLimit(cmd domain.Command) (Result, bool) {
	sym, book, verr := e.lookupSymbol(cmd)
	if verr != nil {
		return rejected(cmd, verr.Reason, verr.Detail), false
	}
	if !sym.Tradable() {
		return rejected(cmd, domain.SymbolClosed, ""), false
	}
	if cmd.Price.Scale() > sym.QuoteScale || cmd.Amount.Scale() > sym.BaseScale {
		return rejected(cmd, domain.BadScale, "price/amount scale exceeds symbol declaration"), false
	}
	if !cmd.Price.IsPos() || !cmd.Amount.IsPos() {
		return rejected(cmd, domain.BadScale, "price and amount must be positive"), false
	}
	if _, exists := e.orderIndex[cmd.OrderID]; exists {
		return rejected(cmd, domain.OrderIDExists, ""), false
	}
	if cmd.Amount.LessThan(sym.MinAmount) {
		return rejected(cmd, domain.BelowMinimum, "amount below symbol minimum"), false
	}
	vol, err := cmd.Price.MulRescale(cmd.Amount, sym.QuoteScale, decimal.CeilAbs)
	if err != nil {
		return rejected(cmd, domain.OverflowDecimal, err.Error()), false
	}
	if vol.LessThan(sym.MinVol) {
		return rejected(cmd, domain.BelowMinimum, "volume below symbol minimum"), false
	}

	side := cmd.Kind.SideOf()
	needCurrency, needAmount := sym.ID.Quote, vol
	if side == domain.Ask {
		needCurrency, needAmount = sym.ID.Base, cmd.Amount
	}
	if verr := checkFunds(e.ledger, cmd.UserID, needCurrency, needAmount); verr != nil {
		return rejected(cmd, verr.Reason, verr.Detail), false
	}

	order := e.newOrder()
	order.ID, order.UserID, order.Side, order.Kind = cmd.OrderID, cmd.UserID, side, domain.Limit
	order.Price, order.Unfilled = cmd.Price, cmd.Amount

	report, err := matcher.Run(book, e.ledger, sym, order)
	if err != nil {
		return rejected(cmd, domain.OverflowDecimal, err.Error()), false
	}

	eventID := e.ids.Current() + 1
	rows, err := clearer.Apply(eventID, report, sym, e.ledger, order, e.makerLookup(book))
	if err != nil {
		return rejected(cmd, domain.OverflowDecimal, err.Error()), false
	}
	e.forgetFilledMakers(sym.ID, report)

	if report.Disposition == matcher.PartiallyFilledResting {
		if err := clearer.FreezeResting(e.ledger, sym, order); err != nil {
			return rejected(cmd, domain.InsufficientBalance, err.Error()), false
		}
		if err := book.InsertResting(side, order); err != nil {
			return rejected(cmd, domain.OrderIDExists, err.Error()), false
		}
		e.orderIndex[order.ID] = sym.ID
	} else {
		// Filled or CanceledRemainder: the taker never entered the
		// book, so nothing else can reach this Order — safe to release
		// straight back to the pool.
		e.releaseOrder(order)
	}

	return Result{Command: cmd, Status: Accepted, Rows: rows}, true
}

func (e *Engine) handleMarket(cmd domain.Command) (Result, bool) {
	sym, book, verr := e.lookupSymbol(cmd)
	if verr != nil {
		return rejected(cmd, verr.Reason, verr.Detail), false
	}
	if !sym.Tradable() {
		return rejected(cmd, domain.SymbolClosed, ""), false
	}
	if !sym.EnableMarketOrder {
		return rejected(cmd, domain.MarketOrdersDisabled, ""), false
	}
	if _, exists := e.orderIndex[cmd.OrderID]; exists {
		return rejected(cmd, domain.OrderIDExists, ""), false
	}

	side := cmd.Kind.SideOf()
	order := e.newOrder()
	order.ID, order.UserID, order.Side, order.Kind = cmd.OrderID, cmd.UserID, side, domain.Market

	if side == domain.Ask {
		if cmd.Amount.Scale() > sym.BaseScale || !cmd.Amount.IsPos() {
			return rejected(cmd, domain.BadScale, "amount scale/sign invalid"), false
		}
		if cmd.Amount.LessThan(sym.MinAmount) {
			return rejected(cmd, domain.BelowMinimum, ""), false
		}
		if verr := checkFunds(e.ledger, cmd.UserID, sym.ID.Base, cmd.Amount); verr != nil {
			return rejected(cmd, verr.Reason, verr.Detail), false
		}
		order.Unfilled = cmd.Amount
	} else {
		if cmd.Vol.Scale() > sym.QuoteScale || !cmd.Vol.IsPos() {
			return rejected(cmd, domain.BadScale, "vol scale/sign invalid"), false
		}
		if cmd.Vol.LessThan(sym.MinVol) {
			return rejected(cmd, domain.BelowMinimum, ""), false
		}
		if verr := checkFunds(e.ledger, cmd.UserID, sym.ID.Quote, cmd.Vol); verr != nil {
			return rejected(cmd, verr.Reason, verr.Detail), false
		}
		order.QuoteBudget = cmd.Vol
	}

	report, err := matcher.Run(book, e.ledger, sym, order)
	if err != nil {
		return rejected(cmd, domain.OverflowDecimal, err.Error()), false
	}

	eventID := e.ids.Current() + 1
	rows, err := clearer.Apply(eventID, report, sym, e.ledger, order, e.makerLookup(book))
	if err != nil {
		return rejected(cmd, domain.OverflowDecimal, err.Error()), false
	}
	e.forgetFilledMakers(sym.ID, report)
	// Market orders never rest (§4.3): CanceledRemainder needs no
	// freeze or book insertion, the unmatched remainder is simply
	// discarded since it was never reserved in the first place — and
	// since it never entered a book, its Order can go straight back to
	// the pool.
	e.releaseOrder(order)

	return Result{Command: cmd, Status: Accepted, Rows: rows}, true
}

// makerLookup adapts a Book into the lookup function clearer.Apply
// needs to reach each match's maker Order by id.
func (e *Engine) makerLookup(book *orderbook.Book) func(uint64) *orderbook.Order {
	return func(id uint64) *orderbook.Order {
		o, _, ok := book.Lookup(id)
		if !ok {
			return nil
		}
		return o
	}
}

// forgetFilledMakers drops the order_id index entry for every maker
// clearer fully consumed or self-trade-cancelled, since Book itself
// already evicted them during matching.
func (e *Engine) forgetFilledMakers(sym domain.SymbolID, report *matcher.Report) {
	for _, c := range report.Cancels {
		delete(e.orderIndex, c.OrderID)
	}
	for _, m := range report.Matches {
		if m.MakerFilled {
			delete(e.orderIndex, m.MakerID)
		}
	}
}

func (e *Engine) handleCancel(cmd domain.Command) (Result, bool) {
	symID, ok := e.orderIndex[cmd.OrderID]
	if !ok {
		return rejected(cmd, domain.OrderIDUnknown, ""), false
	}
	sym := e.symbols[symID]
	book := e.books[symID]

	order, _, ok := book.Lookup(cmd.OrderID)
	if !ok {
		delete(e.orderIndex, cmd.OrderID)
		return rejected(cmd, domain.OrderIDUnknown, ""), false
	}
	if order.UserID != cmd.UserID {
		return rejected(cmd, domain.NotOwner, ""), false
	}

	eventID := e.ids.Current() + 1
	row, err := clearer.CancelResting(eventID, e.ledger, sym, order)
	if err != nil {
		return rejected(cmd, domain.OverflowDecimal, err.Error()), false
	}
	book.Cancel(cmd.OrderID)
	delete(e.orderIndex, cmd.OrderID)
	e.retireOrder(order)

	return Result{Command: cmd, Status: Accepted, Rows: []clearer.Row{row}}, true
}

func (e *Engine) handleSetState(cmd domain.Command, state domain.SymbolState) (Result, bool) {
	sym, ok := e.symbols[e.symbolID(cmd)]
	if !ok {
		return rejected(cmd, domain.UnknownSymbol, ""), false
	}
	sym.State = state
	return Result{Command: cmd, Status: Accepted}, true
}

func (e *Engine) handleTransferIn(cmd domain.Command) (Result, bool) {
	if !cmd.Transfer.IsPos() {
		return rejected(cmd, domain.BadScale, "transfer amount must be positive"), false
	}
	if err := e.ledger.Credit(cmd.UserID, cmd.Currency, cmd.Transfer); err != nil {
		return rejected(cmd, domain.OverflowDecimal, err.Error()), false
	}
	return Result{Command: cmd, Status: Accepted}, true
}

func (e *Engine) handleTransferOut(cmd domain.Command) (Result, bool) {
	if !cmd.Transfer.IsPos() {
		return rejected(cmd, domain.BadScale, "transfer amount must be positive"), false
	}
	if verr := checkFunds(e.ledger, cmd.UserID, cmd.Currency, cmd.Transfer); verr != nil {
		return rejected(cmd, verr.Reason, verr.Detail), false
	}
	if err := e.ledger.Debit(cmd.UserID, cmd.Currency, cmd.Transfer); err != nil {
		return rejected(cmd, domain.InsufficientBalance, err.Error()), false
	}
	return Result{Command: cmd, Status: Accepted}, true
}

// handleNewSymbol upserts a symbol: declaring an id that already
// exists applies the same field-by-field update UPDATE_SYMBOL would,
// since NEW_SYMBOL's payload is a strict superset of UPDATE_SYMBOL's
// optional fields (DESIGN.md).
func (e *Engine) handleNewSymbol(cmd domain.Command) (Result, bool) {
	if cmd.Base == cmd.Quote {
		return rejected(cmd, domain.DuplicateCurrency, ""), false
	}
	if cmd.BaseScale == nil || cmd.QuoteScale == nil || cmd.TakerFee == nil || cmd.MakerFee == nil ||
		cmd.MinAmount == nil || cmd.MinVol == nil || cmd.EnableMarketOrder == nil {
		return rejected(cmd, domain.BadScale, "NEW_SYMBOL requires every symbol parameter"), false
	}
	if *cmd.BaseScale < 0 || *cmd.BaseScale > decimal.MaxScale || *cmd.QuoteScale < 0 || *cmd.QuoteScale > decimal.MaxScale {
		return rejected(cmd, domain.BadScale, "scale out of range"), false
	}

	id := e.symbolID(cmd)
	sym := &domain.Symbol{
		ID: id, BaseScale: *cmd.BaseScale, QuoteScale: *cmd.QuoteScale,
		TakerFee: *cmd.TakerFee, MakerFee: *cmd.MakerFee,
		MinAmount: *cmd.MinAmount, MinVol: *cmd.MinVol,
		EnableMarketOrder: *cmd.EnableMarketOrder, State: domain.Open,
	}
	e.symbols[id] = sym
	if _, ok := e.books[id]; !ok {
		e.books[id] = orderbook.NewBook(id)
	}
	return Result{Command: cmd, Status: Accepted}, true
}

// handleUpdateSymbol resolves Open Question (b): a scale change is
// rejected outright while the book still holds open orders, since
// resting orders were validated and frozen against the old scale.
func (e *Engine) handleUpdateSymbol(cmd domain.Command) (Result, bool) {
	sym, ok := e.symbols[e.symbolID(cmd)]
	if !ok {
		return rejected(cmd, domain.UnknownSymbol, ""), false
	}
	book := e.books[sym.ID]

	scaleChanging := (cmd.BaseScale != nil && *cmd.BaseScale != sym.BaseScale) ||
		(cmd.QuoteScale != nil && *cmd.QuoteScale != sym.QuoteScale)
	if scaleChanging && bookHasOpenOrders(book) {
		return rejected(cmd, domain.BadScale, "cannot change scale while open orders exist"), false
	}

	if cmd.BaseScale != nil {
		if *cmd.BaseScale < 0 || *cmd.BaseScale > decimal.MaxScale {
			return rejected(cmd, domain.BadScale, "base scale out of range"), false
		}
		sym.BaseScale = *cmd.BaseScale
	}
	if cmd.QuoteScale != nil {
		if *cmd.QuoteScale < 0 || *cmd.QuoteScale > decimal.MaxScale {
			return rejected(cmd, domain.BadScale, "quote scale out of range"), false
		}
		sym.QuoteScale = *cmd.QuoteScale
	}
	if cmd.TakerFee != nil {
		sym.TakerFee = *cmd.TakerFee
	}
	if cmd.MakerFee != nil {
		sym.MakerFee = *cmd.MakerFee
	}
	if cmd.MinAmount != nil {
		sym.MinAmount = *cmd.MinAmount
	}
	if cmd.MinVol != nil {
		sym.MinVol = *cmd.MinVol
	}
	if cmd.EnableMarketOrder != nil {
		sym.EnableMarketOrder = *cmd.EnableMarketOrder
	}
	return Result{Command: cmd, Status: Accepted}, true
}

func bookHasOpenOrders(book *orderbook.Book) bool {
	if book == nil {
		return false
	}
	any := false
	stop := func(*orderbook.Order) bool { any = true; return false }
	book.ForEachResting(domain.Bid, stop)
	if any {
		return true
	}
	book.ForEachResting(domain.Ask, stop)
	return any
}

// handleDump invokes the committer/snapshotter hook, if wired, and
// always succeeds — DUMP has no validation surface of its own.
func (e *Engine) handleDump(cmd domain.Command) (Result, bool) {
	eventID := e.ids.Current() + 1
	if e.OnDump != nil {
		e.OnDump(eventID)
	}
	e.reclaim()
	return Result{Command: cmd, Status: Accepted}, true
}

func (e *Engine) handleQueryOrder(cmd domain.Command) Result {
	symID, ok := e.orderIndex[cmd.OrderID]
	if !ok {
		return rejected(cmd, domain.OrderIDUnknown, "")
	}
	book := e.books[symID]
	order, _, ok := book.Lookup(cmd.OrderID)
	if !ok {
		return rejected(cmd, domain.OrderIDUnknown, "")
	}
	view := &OrderView{
		Symbol: symID, ID: order.ID, UserID: order.UserID, Side: order.Side, Kind: order.Kind,
		Price: order.Price, Unfilled: order.Unfilled, Filled: order.Filled, Frozen: order.Frozen,
	}
	return Result{Command: cmd, Status: Accepted, Query: &QueryResult{Order: view}}
}

func (e *Engine) handleQueryBalance(cmd domain.Command) Result {
	bal := e.ledger.Get(cmd.UserID, cmd.Currency)
	return Result{Command: cmd, Status: Accepted, Query: &QueryResult{Balance: &bal}}
}

func (e *Engine) handleQueryAccount(cmd domain.Command) Result {
	out := make(map[domain.CurrencyID]accounts.Balance)
	e.ledger.ForEach(func(k accounts.Key, b accounts.Balance) {
		if k.User == cmd.UserID {
			out[k.Currency] = b
		}
	})
	return Result{Command: cmd, Status: Accepted, Query: &QueryResult{Account: out}}
}
