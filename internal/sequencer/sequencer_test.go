package sequencer

import (
	"testing"

	"galois/internal/decimal"
	"galois/internal/domain"
)

func ptr[T any](v T) *T { return &v }

func user(b byte) domain.UserID {
	var u domain.UserID
	u[0] = b
	return u
}

func newSymbolCmd() domain.Command {
	return domain.Command{
		Kind: domain.NewSymbolCmd, Base: 1, Quote: 0,
		BaseScale: ptr(int32(8)), QuoteScale: ptr(int32(4)),
		TakerFee: ptr(decimal.MustFromString("0.001")), MakerFee: ptr(decimal.MustFromString("0.0005")),
		MinAmount: ptr(decimal.MustFromString("0.001")), MinVol: ptr(decimal.MustFromString("0.01")),
		EnableMarketOrder: ptr(true),
	}
}

func TestEngineRoundTripLimitOrdersFillEachOther(t *testing.T) {
	e := New(nil, 0)

	res := e.Submit(newSymbolCmd())
	if res.Status != Accepted {
		t.Fatalf("NEW_SYMBOL rejected: %v %s", res.Reason, res.Detail)
	}

	buyer, seller := user(1), user(2)
	depositRes := e.Submit(domain.Command{Kind: domain.TransferIn, UserID: buyer, Currency: 0, Transfer: decimal.MustFromString("1000")})
	if depositRes.Status != Accepted {
		t.Fatalf("deposit rejected: %v", depositRes.Reason)
	}
	e.Submit(domain.Command{Kind: domain.TransferIn, UserID: seller, Currency: 1, Transfer: decimal.MustFromString("10")})

	bidRes := e.Submit(domain.Command{
		Kind: domain.BidLimit, Base: 1, Quote: 0, UserID: buyer, OrderID: 100,
		Price: decimal.MustFromString("10"), Amount: decimal.MustFromString("5"),
	})
	if bidRes.Status != Accepted {
		t.Fatalf("bid rejected: %v %s", bidRes.Reason, bidRes.Detail)
	}
	if bidRes.EventID == 0 {
		t.Fatalf("expected a nonzero event id for an accepted command")
	}

	askRes := e.Submit(domain.Command{
		Kind: domain.AskLimit, Base: 1, Quote: 0, UserID: seller, OrderID: 101,
		Price: decimal.MustFromString("10"), Amount: decimal.MustFromString("5"),
	})
	if askRes.Status != Accepted {
		t.Fatalf("ask rejected: %v %s", askRes.Reason, askRes.Detail)
	}
	if len(askRes.Rows) != 2 {
		t.Fatalf("expected 2 clearing rows (maker+taker), got %d", len(askRes.Rows))
	}

	balRes := e.Submit(domain.Command{Kind: domain.QueryBalance, UserID: seller, Currency: 0})
	if balRes.Query == nil || balRes.Query.Balance == nil {
		t.Fatalf("expected a balance query result")
	}
	if !balRes.Query.Balance.Available.Equal(decimal.MustFromString("49.95")) {
		t.Fatalf("expected seller (taker) to have received 49.95 quote net of taker fee, got %s", balRes.Query.Balance.Available)
	}

	queryOrder := e.Submit(domain.Command{Kind: domain.QueryOrder, OrderID: 100})
	if queryOrder.Status != Rejected || queryOrder.Reason != domain.OrderIDUnknown {
		t.Fatalf("expected fully filled order 100 to have left the index, got %v", queryOrder.Status)
	}
}

func TestEngineCancelRefundsFrozenFunds(t *testing.T) {
	e := New(nil, 0)
	e.Submit(newSymbolCmd())
	buyer := user(3)
	e.Submit(domain.Command{Kind: domain.TransferIn, UserID: buyer, Currency: 0, Transfer: decimal.MustFromString("100")})

	res := e.Submit(domain.Command{
		Kind: domain.BidLimit, Base: 1, Quote: 0, UserID: buyer, OrderID: 200,
		Price: decimal.MustFromString("5"), Amount: decimal.MustFromString("10"),
	})
	if res.Status != Accepted {
		t.Fatalf("bid rejected: %v", res.Reason)
	}

	cancelRes := e.Submit(domain.Command{Kind: domain.Cancel, UserID: buyer, OrderID: 200})
	if cancelRes.Status != Accepted {
		t.Fatalf("cancel rejected: %v %s", cancelRes.Reason, cancelRes.Detail)
	}

	balRes := e.Submit(domain.Command{Kind: domain.QueryBalance, UserID: buyer, Currency: 0})
	if !balRes.Query.Balance.Available.Equal(decimal.MustFromString("100")) {
		t.Fatalf("expected full refund to available, got %s", balRes.Query.Balance.Available)
	}
	if !balRes.Query.Balance.Frozen.IsZero() {
		t.Fatalf("expected nothing left frozen, got %s", balRes.Query.Balance.Frozen)
	}
}

func TestEngineCancelRejectsWrongOwner(t *testing.T) {
	e := New(nil, 0)
	e.Submit(newSymbolCmd())
	owner, impostor := user(4), user(5)
	e.Submit(domain.Command{Kind: domain.TransferIn, UserID: owner, Currency: 0, Transfer: decimal.MustFromString("100")})
	e.Submit(domain.Command{
		Kind: domain.BidLimit, Base: 1, Quote: 0, UserID: owner, OrderID: 300,
		Price: decimal.MustFromString("5"), Amount: decimal.MustFromString("10"),
	})

	res := e.Submit(domain.Command{Kind: domain.Cancel, UserID: impostor, OrderID: 300})
	if res.Status != Rejected || res.Reason != domain.NotOwner {
		t.Fatalf("expected NotOwner rejection, got %v %v", res.Status, res.Reason)
	}
}

func TestEngineRejectsUnknownSymbol(t *testing.T) {
	e := New(nil, 0)
	res := e.Submit(domain.Command{Kind: domain.BidLimit, Base: 9, Quote: 9, UserID: user(1), OrderID: 1,
		Price: decimal.MustFromString("1"), Amount: decimal.MustFromString("1")})
	if res.Status != Rejected || res.Reason != domain.UnknownSymbol {
		t.Fatalf("expected UnknownSymbol, got %v %v", res.Status, res.Reason)
	}
}

func TestEngineInvokesOnRejectedForRejectedCommand(t *testing.T) {
	e := New(nil, 0)
	var gotReason domain.Reason
	calls := 0
	e.OnRejected = func(cmd domain.Command, reason domain.Reason) {
		calls++
		gotReason = reason
	}

	res := e.Submit(domain.Command{Kind: domain.BidLimit, Base: 9, Quote: 9, UserID: user(1), OrderID: 1,
		Price: decimal.MustFromString("1"), Amount: decimal.MustFromString("1")})
	if res.Status != Rejected {
		t.Fatalf("expected rejection, got %v", res.Status)
	}
	if calls != 1 {
		t.Fatalf("expected OnRejected to fire exactly once, got %d", calls)
	}
	if gotReason != domain.UnknownSymbol {
		t.Fatalf("expected OnRejected to see UnknownSymbol, got %v", gotReason)
	}
}

func TestEngineDoesNotInvokeOnRejectedForAcceptedCommand(t *testing.T) {
	e := New(nil, 0)
	calls := 0
	e.OnRejected = func(cmd domain.Command, reason domain.Reason) { calls++ }

	res := e.Submit(newSymbolCmd())
	if res.Status != Accepted {
		t.Fatalf("expected acceptance, got %v %v", res.Status, res.Reason)
	}
	if calls != 0 {
		t.Fatalf("expected OnRejected not to fire for an accepted command, got %d calls", calls)
	}
}

func TestEngineUpdateSymbolRejectsScaleChangeWithOpenOrders(t *testing.T) {
	e := New(nil, 0)
	e.Submit(newSymbolCmd())
	buyer := user(6)
	e.Submit(domain.Command{Kind: domain.TransferIn, UserID: buyer, Currency: 0, Transfer: decimal.MustFromString("100")})
	e.Submit(domain.Command{
		Kind: domain.BidLimit, Base: 1, Quote: 0, UserID: buyer, OrderID: 400,
		Price: decimal.MustFromString("5"), Amount: decimal.MustFromString("10"),
	})

	res := e.Submit(domain.Command{Kind: domain.UpdateSymbol, Base: 1, Quote: 0, BaseScale: ptr(int32(6))})
	if res.Status != Rejected || res.Reason != domain.BadScale {
		t.Fatalf("expected BadScale rejection for scale change with open orders, got %v %v", res.Status, res.Reason)
	}
}
