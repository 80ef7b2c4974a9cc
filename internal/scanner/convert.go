package scanner

import (
	"galois/internal/decimal"
	"galois/internal/domain"

	"github.com/cockroachdb/errors"
)

// toCommand maps one chain event onto the command shape the sequencer
// already knows how to apply — the scanner never invents a new
// command kind, it only originates TRANSFER_IN/TRANSFER_OUT/NEW_SYMBOL
// from a source other than a direct ingress line.
func (ev ChainEvent) toCommand() (domain.Command, error) {
	switch ev.Kind {
	case Deposit:
		amt, err := decimal.NewFromString(ev.Amount)
		if err != nil {
			return domain.Command{}, errors.Wrapf(err, "scanner: deposit amount %q", ev.Amount)
		}
		return domain.Command{
			Kind:     domain.TransferIn,
			UserID:   ev.UserID,
			Currency: ev.Currency,
			Transfer: amt,
		}, nil

	case Withdraw:
		amt, err := decimal.NewFromString(ev.Amount)
		if err != nil {
			return domain.Command{}, errors.Wrapf(err, "scanner: withdraw amount %q", ev.Amount)
		}
		return domain.Command{
			Kind:     domain.TransferOut,
			UserID:   ev.UserID,
			Currency: ev.Currency,
			Transfer: amt,
		}, nil

	case MarketListed:
		taker, err := decimal.NewFromString(ev.TakerFee)
		if err != nil {
			return domain.Command{}, errors.Wrapf(err, "scanner: taker fee %q", ev.TakerFee)
		}
		maker, err := decimal.NewFromString(ev.MakerFee)
		if err != nil {
			return domain.Command{}, errors.Wrapf(err, "scanner: maker fee %q", ev.MakerFee)
		}
		minAmount, err := decimal.NewFromString(ev.MinAmount)
		if err != nil {
			return domain.Command{}, errors.Wrapf(err, "scanner: min amount %q", ev.MinAmount)
		}
		minVol, err := decimal.NewFromString(ev.MinVol)
		if err != nil {
			return domain.Command{}, errors.Wrapf(err, "scanner: min vol %q", ev.MinVol)
		}
		baseScale, quoteScale, marketOn := ev.BaseScale, ev.QuoteScale, ev.MarketOn
		return domain.Command{
			Kind:              domain.NewSymbolCmd,
			Base:              ev.Base,
			Quote:             ev.Quote,
			BaseScale:         &baseScale,
			QuoteScale:        &quoteScale,
			TakerFee:          &taker,
			MakerFee:          &maker,
			MinAmount:         &minAmount,
			MinVol:            &minVol,
			EnableMarketOrder: &marketOn,
		}, nil

	default:
		return domain.Command{}, errors.Newf("scanner: unrecognized chain event kind %q", ev.Kind)
	}
}
