package config

import (
	"galois/internal/decimal"
	"galois/internal/domain"
)

// ToCommand renders a bootstrap symbol entry as the NEW_SYMBOL command
// the sequencer expects — kept in config rather than main so the
// parsing-decimal-strings concern stays next to the struct that owns
// the raw YAML fields.
func (sc SymbolConfig) ToCommand() (domain.Command, error) {
	taker, err := decimal.NewFromString(sc.TakerFee)
	if err != nil {
		return domain.Command{}, err
	}
	maker, err := decimal.NewFromString(sc.MakerFee)
	if err != nil {
		return domain.Command{}, err
	}
	minAmount, err := decimal.NewFromString(sc.MinAmount)
	if err != nil {
		return domain.Command{}, err
	}
	minVol, err := decimal.NewFromString(sc.MinVol)
	if err != nil {
		return domain.Command{}, err
	}

	baseScale, quoteScale, marketOn := sc.BaseScale, sc.QuoteScale, sc.EnableMarketOrder
	return domain.Command{
		Kind:              domain.NewSymbolCmd,
		Base:              domain.CurrencyID(sc.Base),
		Quote:             domain.CurrencyID(sc.Quote),
		BaseScale:         &baseScale,
		QuoteScale:        &quoteScale,
		TakerFee:          &taker,
		MakerFee:          &maker,
		MinAmount:         &minAmount,
		MinVol:            &minVol,
		EnableMarketOrder: &marketOn,
	}, nil
}
