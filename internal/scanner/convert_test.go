package scanner

import (
	"testing"

	"galois/internal/domain"
)

func TestToCommandDeposit(t *testing.T) {
	ev := ChainEvent{Kind: Deposit, Currency: 7, Amount: "12.5"}
	cmd, err := ev.toCommand()
	if err != nil {
		t.Fatal(err)
	}
	if cmd.Kind != domain.TransferIn {
		t.Fatalf("expected TRANSFER_IN, got %v", cmd.Kind)
	}
	if cmd.Currency != 7 {
		t.Fatalf("expected currency 7, got %d", cmd.Currency)
	}
	if cmd.Transfer.String() != "12.5" {
		t.Fatalf("expected transfer amount 12.5, got %s", cmd.Transfer.String())
	}
}

func TestToCommandWithdraw(t *testing.T) {
	ev := ChainEvent{Kind: Withdraw, Currency: 3, Amount: "1"}
	cmd, err := ev.toCommand()
	if err != nil {
		t.Fatal(err)
	}
	if cmd.Kind != domain.TransferOut {
		t.Fatalf("expected TRANSFER_OUT, got %v", cmd.Kind)
	}
}

func TestToCommandMarketListed(t *testing.T) {
	ev := ChainEvent{
		Kind: MarketListed, Base: 1, Quote: 0,
		BaseScale: 8, QuoteScale: 4,
		TakerFee: "0.001", MakerFee: "0.0005",
		MinAmount: "0.001", MinVol: "0.01",
		MarketOn: true,
	}
	cmd, err := ev.toCommand()
	if err != nil {
		t.Fatal(err)
	}
	if cmd.Kind != domain.NewSymbolCmd {
		t.Fatalf("expected NEW_SYMBOL, got %v", cmd.Kind)
	}
	if cmd.BaseScale == nil || *cmd.BaseScale != 8 {
		t.Fatalf("expected base_scale 8, got %v", cmd.BaseScale)
	}
	if cmd.EnableMarketOrder == nil || !*cmd.EnableMarketOrder {
		t.Fatalf("expected market orders enabled")
	}
}

func TestToCommandRejectsUnknownKind(t *testing.T) {
	ev := ChainEvent{Kind: "BOGUS"}
	if _, err := ev.toCommand(); err == nil {
		t.Fatal("expected an error for an unrecognized event kind")
	}
}

func TestToCommandRejectsBadAmount(t *testing.T) {
	ev := ChainEvent{Kind: Deposit, Currency: 1, Amount: "not-a-number"}
	if _, err := ev.toCommand(); err == nil {
		t.Fatal("expected an error for a malformed amount")
	}
}
