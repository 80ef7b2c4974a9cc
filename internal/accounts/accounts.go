// Package accounts owns the per-(user, currency) balance ledger: the
// available/frozen split, freeze/unfreeze, and the credit/debit
// primitives the clearer composes into fee-aware settlement. Like
// orderbook, it performs no I/O and is mutated only by the sequencer's
// single writer.
package accounts

import (
	"galois/internal/decimal"
	"galois/internal/domain"

	"github.com/cockroachdb/errors"
)

// ErrInsufficientBalance is returned by Freeze/Debit when available
// does not cover the requested amount.
var ErrInsufficientBalance = errors.New("accounts: insufficient balance")

// Key identifies one (user, currency) ledger entry.
type Key struct {
	User     domain.UserID
	Currency domain.CurrencyID
}

// Balance is one user's holdings of one currency: available (free to
// use) and frozen (reserved against live orders), both always >= 0.
// available + frozen is the user's total holdings of that currency.
type Balance struct {
	Available decimal.Decimal
	Frozen    decimal.Decimal
}

// Ledger is the full balance map, keyed by (user, currency).
type Ledger struct {
	balances map[Key]*Balance
}

// NewLedger constructs an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{balances: make(map[Key]*Balance)}
}

func (l *Ledger) entry(k Key) *Balance {
	b, ok := l.balances[k]
	if !ok {
		b = &Balance{Available: decimal.Zero, Frozen: decimal.Zero}
		l.balances[k] = b
	}
	return b
}

// Get returns a copy of the balance for (user, currency); zero value
// if the account has never been touched.
func (l *Ledger) Get(user domain.UserID, currency domain.CurrencyID) Balance {
	b, ok := l.balances[Key{User: user, Currency: currency}]
	if !ok {
		return Balance{Available: decimal.Zero, Frozen: decimal.Zero}
	}
	return *b
}

// Credit increases available by amount (amount must be >= 0). Used
// for deposits and match proceeds.
func (l *Ledger) Credit(user domain.UserID, currency domain.CurrencyID, amount decimal.Decimal) error {
	if amount.IsNeg() {
		return errors.Newf("accounts: credit amount %s is negative", amount)
	}
	b := l.entry(Key{User: user, Currency: currency})
	sum, err := b.Available.Add(amount)
	if err != nil {
		return err
	}
	b.Available = sum
	return nil
}

// Debit decreases available by amount. Fails with
// ErrInsufficientBalance if available < amount.
func (l *Ledger) Debit(user domain.UserID, currency domain.CurrencyID, amount decimal.Decimal) error {
	if amount.IsNeg() {
		return errors.Newf("accounts: debit amount %s is negative", amount)
	}
	b := l.entry(Key{User: user, Currency: currency})
	if b.Available.LessThan(amount) {
		return errors.Wrapf(ErrInsufficientBalance, "user has %s available, needs %s", b.Available, amount)
	}
	diff, err := b.Available.Sub(amount)
	if err != nil {
		return err
	}
	b.Available = diff
	return nil
}

// Freeze moves amount from available to frozen, reserving it against
// a live order.
func (l *Ledger) Freeze(user domain.UserID, currency domain.CurrencyID, amount decimal.Decimal) error {
	if amount.IsNeg() {
		return errors.Newf("accounts: freeze amount %s is negative", amount)
	}
	b := l.entry(Key{User: user, Currency: currency})
	if b.Available.LessThan(amount) {
		return errors.Wrapf(ErrInsufficientBalance, "user has %s available, needs %s", b.Available, amount)
	}
	avail, err := b.Available.Sub(amount)
	if err != nil {
		return err
	}
	frozen, err := b.Frozen.Add(amount)
	if err != nil {
		return err
	}
	b.Available, b.Frozen = avail, frozen
	return nil
}

// Unfreeze moves amount from frozen back to available — e.g. a
// cancel's full refund, or the residual ceiling-rounding refund a
// maker receives when it is fully removed (DESIGN.md Open Question a).
func (l *Ledger) Unfreeze(user domain.UserID, currency domain.CurrencyID, amount decimal.Decimal) error {
	if amount.IsNeg() {
		return errors.Newf("accounts: unfreeze amount %s is negative", amount)
	}
	b := l.entry(Key{User: user, Currency: currency})
	if b.Frozen.LessThan(amount) {
		return errors.Newf("accounts: unfreeze %s exceeds frozen %s", amount, b.Frozen)
	}
	frozen, err := b.Frozen.Sub(amount)
	if err != nil {
		return err
	}
	avail, err := b.Available.Add(amount)
	if err != nil {
		return err
	}
	b.Available, b.Frozen = avail, frozen
	return nil
}

// SettleFrozen consumes amount from frozen without returning it to
// available — the frozen funds have been spent (a maker's ask base
// actually sold, or a maker bid's quote actually paid to the taker).
func (l *Ledger) SettleFrozen(user domain.UserID, currency domain.CurrencyID, amount decimal.Decimal) error {
	if amount.IsNeg() {
		return errors.Newf("accounts: settle amount %s is negative", amount)
	}
	b := l.entry(Key{User: user, Currency: currency})
	if b.Frozen.LessThan(amount) {
		return errors.Newf("accounts: settle %s exceeds frozen %s", amount, b.Frozen)
	}
	frozen, err := b.Frozen.Sub(amount)
	if err != nil {
		return err
	}
	b.Frozen = frozen
	return nil
}

// Total returns available+frozen, the conservation-invariant
// quantity for (user, currency).
func (b Balance) Total() decimal.Decimal {
	t, _ := b.Available.Add(b.Frozen)
	return t
}

// ForEach iterates every (key, balance) pair — used by snapshot and
// the conservation-invariant test helper. Iteration order is the Go
// map's, which is not deterministic; callers that need a stable order
// sort the keys themselves (the committer always does, since leaf
// ordering is normative).
func (l *Ledger) ForEach(fn func(Key, Balance)) {
	for k, b := range l.balances {
		fn(k, *b)
	}
}

// Snapshot returns a copy of every ledger entry ever touched (zero
// balances included) as a map keyed by (user, currency), for
// full-state dumps.
func (l *Ledger) Snapshot() map[Key]Balance {
	out := make(map[Key]Balance, len(l.balances))
	for k, b := range l.balances {
		out[k] = *b
	}
	return out
}

// Restore replaces the ledger's contents wholesale — used by snapshot
// load / replay.
func (l *Ledger) Restore(entries map[Key]Balance) {
	l.balances = make(map[Key]*Balance, len(entries))
	for k, b := range entries {
		cp := b
		l.balances[k] = &cp
	}
}
