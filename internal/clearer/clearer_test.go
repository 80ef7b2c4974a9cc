package clearer

import (
	"testing"

	"galois/internal/accounts"
	"galois/internal/decimal"
	"galois/internal/domain"
	"galois/internal/matcher"
	"galois/internal/orderbook"
)

func testSymbol() *domain.Symbol {
	return &domain.Symbol{
		ID:         domain.SymbolID{Base: 1, Quote: 0},
		BaseScale:  8,
		QuoteScale: 4,
		TakerFee:   decimal.MustFromString("0.001"),
		MakerFee:   decimal.MustFromString("0.0005"),
	}
}

func u(b byte) domain.UserID {
	var id domain.UserID
	id[0] = b
	return id
}

// fundAndRest builds a resting ask maker with its base frozen, the way
// the sequencer would have done at order placement.
func fundAndRest(t *testing.T, ledger *accounts.Ledger, sym *domain.Symbol, book *orderbook.Book, id uint64, user domain.UserID, side domain.Side, price, qty string) *orderbook.Order {
	t.Helper()
	o := &orderbook.Order{
		ID: id, UserID: user, Side: side, Kind: domain.Limit,
		Price: decimal.MustFromString(price), Unfilled: decimal.MustFromString(qty),
	}
	currency := sym.ID.Base
	amount := o.Unfilled
	if side == domain.Bid {
		currency = sym.ID.Quote
		var err error
		amount, err = o.Price.MulRescale(o.Unfilled, sym.QuoteScale, decimal.CeilAbs)
		if err != nil {
			t.Fatal(err)
		}
	}
	if err := ledger.Credit(user, currency, amount); err != nil {
		t.Fatal(err)
	}
	if err := ledger.Freeze(user, currency, amount); err != nil {
		t.Fatal(err)
	}
	o.Frozen = amount
	if err := book.InsertResting(side, o); err != nil {
		t.Fatal(err)
	}
	return o
}

func TestApplyAskMakerVsBidTaker(t *testing.T) {
	sym := testSymbol()
	ledger := accounts.NewLedger()
	book := orderbook.NewBook(sym.ID)

	maker := fundAndRest(t, ledger, sym, book, 1, u(1), domain.Ask, "100", "2")

	taker := &orderbook.Order{ID: 2, UserID: u(2), Side: domain.Bid, Kind: domain.Limit,
		Price: decimal.MustFromString("100"), Unfilled: decimal.MustFromString("2")}
	if err := ledger.Credit(u(2), sym.ID.Quote, decimal.MustFromString("200")); err != nil {
		t.Fatal(err)
	}

	report, err := matcher.Run(book, ledger, sym, taker)
	if err != nil {
		t.Fatal(err)
	}

	rows, err := Apply(1, report, sym, ledger, taker, func(id uint64) *orderbook.Order {
		if id == maker.ID {
			return maker
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows (maker+taker), got %d", len(rows))
	}

	makerBase := ledger.Get(u(1), sym.ID.Base)
	if !makerBase.Frozen.IsZero() {
		t.Fatalf("expected maker's frozen base fully settled, got %s", makerBase.Frozen)
	}
	makerQuote := ledger.Get(u(1), sym.ID.Quote)
	// vol = 200, maker fee 0.0005 -> fee 0.1 (ceil), net 199.9
	if !makerQuote.Available.Equal(decimal.MustFromString("199.9")) {
		t.Fatalf("expected maker net quote 199.9, got %s", makerQuote.Available)
	}

	takerBase := ledger.Get(u(2), sym.ID.Base)
	// amount = 2, taker fee 0.001 -> fee 0.002, net base 1.998
	if !takerBase.Available.Equal(decimal.MustFromString("1.998")) {
		t.Fatalf("expected taker net base 1.998, got %s", takerBase.Available)
	}
	takerQuote := ledger.Get(u(2), sym.ID.Quote)
	if !takerQuote.Available.IsZero() {
		t.Fatalf("expected taker quote fully spent, got %s", takerQuote.Available)
	}

	feeQuote := ledger.Get(domain.FeeAccount, sym.ID.Quote)
	if !feeQuote.Available.Equal(decimal.MustFromString("0.1")) {
		t.Fatalf("expected fee account to hold 0.1 quote, got %s", feeQuote.Available)
	}
	feeBase := ledger.Get(domain.FeeAccount, sym.ID.Base)
	if !feeBase.Available.Equal(decimal.MustFromString("0.002")) {
		t.Fatalf("expected fee account to hold 0.002 base, got %s", feeBase.Available)
	}
}

func TestFreezeRestingThenCancelRefundsResidual(t *testing.T) {
	sym := testSymbol()
	ledger := accounts.NewLedger()

	o := &orderbook.Order{ID: 1, UserID: u(1), Side: domain.Bid, Kind: domain.Limit,
		Price: decimal.MustFromString("3"), Unfilled: decimal.MustFromString("1")}
	if err := ledger.Credit(u(1), sym.ID.Quote, decimal.MustFromString("3")); err != nil {
		t.Fatal(err)
	}
	if err := FreezeResting(ledger, sym, o); err != nil {
		t.Fatal(err)
	}
	bal := ledger.Get(u(1), sym.ID.Quote)
	if !bal.Frozen.Equal(decimal.MustFromString("3")) {
		t.Fatalf("expected 3 frozen, got %s", bal.Frozen)
	}

	row, err := CancelResting(2, ledger, sym, o)
	if err != nil {
		t.Fatal(err)
	}
	if row.Status != OrderCanceled {
		t.Fatalf("expected OrderCanceled status, got %v", row.Status)
	}
	bal = ledger.Get(u(1), sym.ID.Quote)
	if !bal.Available.Equal(decimal.MustFromString("3")) || !bal.Frozen.IsZero() {
		t.Fatalf("expected full refund to available, got available=%s frozen=%s", bal.Available, bal.Frozen)
	}
}
