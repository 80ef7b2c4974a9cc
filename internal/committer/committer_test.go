package committer

import (
	"testing"

	"galois/internal/accounts"
	"galois/internal/decimal"
	"galois/internal/domain"
	"galois/internal/orderbook"
)

func user(b byte) domain.UserID {
	var u domain.UserID
	u[0] = b
	return u
}

func TestCommitChangesRootAndVerifiesPath(t *testing.T) {
	c := New()
	emptyRoot := c.Root()

	ledger := accounts.NewLedger()
	if err := ledger.Credit(user(1), 0, decimal.MustFromString("100")); err != nil {
		t.Fatal(err)
	}

	books := map[domain.SymbolID]BookState{}
	bundle, err := c.Commit(1, ledger, []accounts.Key{{User: user(1), Currency: 0}}, books, nil)
	if err != nil {
		t.Fatal(err)
	}
	if bundle.OldRoot != emptyRoot {
		t.Fatalf("expected OldRoot to match the empty tree's root")
	}
	if bundle.NewRoot == bundle.OldRoot {
		t.Fatalf("expected the root to change after a balance commit")
	}
	if len(bundle.Entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(bundle.Entries))
	}

	entry := bundle.Entries[0]
	if entry.OldValue != nil {
		t.Fatalf("expected no prior value for a fresh account leaf")
	}
	if !VerifyPath(bundle.OldRoot, entry.Key, entry.OldValue, entry.Path) {
		t.Fatalf("expected old value to verify against OldRoot")
	}
	if !VerifyPath(bundle.NewRoot, entry.Key, entry.NewValue, entry.Path) {
		t.Fatalf("expected new value to verify against NewRoot using the same path")
	}
}

func TestCommitBundleRoundTripsThroughLZ4(t *testing.T) {
	c := New()
	ledger := accounts.NewLedger()
	_ = ledger.Credit(user(2), 1, decimal.MustFromString("5"))
	bundle, err := c.Commit(7, ledger, []accounts.Key{{User: user(2), Currency: 1}}, nil, nil)
	if err != nil {
		t.Fatal(err)
	}

	encoded, err := EncodeBundle(bundle)
	if err != nil {
		t.Fatal(err)
	}
	decoded, err := DecodeBundle(encoded)
	if err != nil {
		t.Fatal(err)
	}
	if decoded.EventID != bundle.EventID || decoded.NewRoot != bundle.NewRoot {
		t.Fatalf("expected round trip to preserve event id and root")
	}
}

func TestBookSummaryLeafValueReflectsRestingOrders(t *testing.T) {
	symID := domain.SymbolID{Base: 1, Quote: 0}
	book := orderbook.NewBook(symID)
	_ = book.InsertResting(domain.Bid, &orderbook.Order{ID: 1, Side: domain.Bid,
		Price: decimal.MustFromString("10"), Unfilled: decimal.MustFromString("2")})
	_ = book.InsertResting(domain.Ask, &orderbook.Order{ID: 2, Side: domain.Ask,
		Price: decimal.MustFromString("11"), Unfilled: decimal.MustFromString("3")})

	sym := domain.Symbol{
		ID:       symID,
		MakerFee: decimal.MustFromString("0.0005"),
		TakerFee: decimal.MustFromString("0.001"),
	}

	val, err := BookSummaryLeafValue(book, sym)
	if err != nil {
		t.Fatal(err)
	}

	width, err := decimal.Zero.MarshalBinary()
	if err != nil {
		t.Fatal(err)
	}
	decimalWidth := len(width)
	wantLen := 6 * decimalWidth // bid price, bid qty, ask price, ask qty, maker fee, taker fee
	if len(val) != wantLen {
		t.Fatalf("expected %d bytes, got %d", wantLen, len(val))
	}

	field := func(i int) decimal.Decimal {
		var d decimal.Decimal
		if err := d.UnmarshalBinary(val[i*decimalWidth : (i+1)*decimalWidth]); err != nil {
			t.Fatal(err)
		}
		return d
	}

	if bidPrice := field(0); !bidPrice.Equal(decimal.MustFromString("10")) {
		t.Fatalf("expected best bid price 10, got %s", bidPrice)
	}
	if bidQty := field(1); !bidQty.Equal(decimal.MustFromString("2")) {
		t.Fatalf("expected best bid size 2, got %s", bidQty)
	}
	if askPrice := field(2); !askPrice.Equal(decimal.MustFromString("11")) {
		t.Fatalf("expected best ask price 11, got %s", askPrice)
	}
	if askQty := field(3); !askQty.Equal(decimal.MustFromString("3")) {
		t.Fatalf("expected best ask size 3, got %s", askQty)
	}
	if makerFee := field(4); !makerFee.Equal(sym.MakerFee) {
		t.Fatalf("expected maker fee %s to round-trip, got %s", sym.MakerFee, makerFee)
	}
	if takerFee := field(5); !takerFee.Equal(sym.TakerFee) {
		t.Fatalf("expected taker fee %s to round-trip, got %s", sym.TakerFee, takerFee)
	}
}

func TestBookSummaryLeafValueEmptyBookEncodesZeroLevels(t *testing.T) {
	symID := domain.SymbolID{Base: 1, Quote: 0}
	book := orderbook.NewBook(symID)
	sym := domain.Symbol{ID: symID, MakerFee: decimal.MustFromString("0.0002"), TakerFee: decimal.MustFromString("0.0007")}

	val, err := BookSummaryLeafValue(book, sym)
	if err != nil {
		t.Fatal(err)
	}

	width, err := decimal.Zero.MarshalBinary()
	if err != nil {
		t.Fatal(err)
	}
	decimalWidth := len(width)
	if len(val) != 6*decimalWidth {
		t.Fatalf("expected a fixed-width summary even for an empty book, got %d bytes", len(val))
	}

	var bidPrice decimal.Decimal
	if err := bidPrice.UnmarshalBinary(val[:decimalWidth]); err != nil {
		t.Fatal(err)
	}
	if !bidPrice.Equal(decimal.Zero) {
		t.Fatalf("expected a zero best-bid price on an empty book, got %s", bidPrice)
	}
}
