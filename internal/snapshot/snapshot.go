// Package snapshot implements §4.7's full-state dump and recovery:
// a Dump captures every balance, every resting order and every
// registered symbol at a given event_id alongside the committer root
// that state hashes to, gob-encoded the same way the teacher's
// snapshot package persists its own order-book dumps. Recovery loads
// a Dump, rebuilds the ledger/books/committer from it, checks the
// rebuilt root against the one the dump declares, and then replays
// whatever commands were logged after the dump's event_id.
package snapshot

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"encoding/json"
	"sort"

	"galois/internal/accounts"
	"galois/internal/committer"
	"galois/internal/decimal"
	"galois/internal/domain"
	"galois/internal/orderbook"
	"galois/internal/sequencer"
	"galois/internal/store"

	"github.com/cockroachdb/errors"
)

// OrderRecord is the persisted shape of one resting order, independent
// of the in-memory Order's FIFO linkage pointers.
type OrderRecord struct {
	Symbol    domain.SymbolID
	ID        uint64
	UserID    domain.UserID
	Side      domain.Side
	Kind      domain.OrderKind
	Price     decimal.Decimal
	Unfilled  decimal.Decimal
	Frozen    decimal.Decimal
	Filled    decimal.Decimal
	CreatedAt uint64
}

// Dump is the complete engine state as of EventID, plus the root it
// commits to — the unit the store's FamilySnapshot family holds.
type Dump struct {
	EventID uint64
	Root    committer.Hash
	Symbols []domain.Symbol
	Balances map[accounts.Key]accounts.Balance
	Orders   []OrderRecord
}

// Build walks engine and c to produce a Dump as of eventID (the
// event_id of the last command applied before the dump was taken).
func Build(eventID uint64, c *committer.Committer, engine *sequencer.Engine) Dump {
	d := Dump{
		EventID:  eventID,
		Root:     c.Root(),
		Balances: engine.Ledger().Snapshot(),
	}

	syms := engine.Symbols()
	sort.Slice(syms, func(i, j int) bool {
		if syms[i].ID.Base != syms[j].ID.Base {
			return syms[i].ID.Base < syms[j].ID.Base
		}
		return syms[i].ID.Quote < syms[j].ID.Quote
	})
	for _, s := range syms {
		d.Symbols = append(d.Symbols, *s)
		book, ok := engine.Book(s.ID)
		if !ok {
			continue
		}
		for _, side := range []domain.Side{domain.Bid, domain.Ask} {
			book.ForEachResting(side, func(o *orderbook.Order) bool {
				d.Orders = append(d.Orders, OrderRecord{
					Symbol:    s.ID,
					ID:        o.ID,
					UserID:    o.UserID,
					Side:      o.Side,
					Kind:      o.Kind,
					Price:     o.Price,
					Unfilled:  o.Unfilled,
					Frozen:    o.Frozen,
					Filled:    o.Filled,
					CreatedAt: o.CreatedAt,
				})
				return true
			})
		}
	}
	return d
}

// Encode gob-encodes a Dump, matching the teacher's snapshot codec
// choice.
func Encode(d Dump) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(d); err != nil {
		return nil, errors.Wrap(err, "snapshot: gob encode dump")
	}
	return buf.Bytes(), nil
}

// Decode reverses Encode.
func Decode(raw []byte) (Dump, error) {
	var d Dump
	if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(&d); err != nil {
		return Dump{}, errors.Wrap(err, "snapshot: gob decode dump")
	}
	return d, nil
}

// Restore rebuilds a fresh Engine and Committer from d and verifies
// the rebuilt root matches d.Root — a corrupt or hand-edited snapshot
// is caught here rather than silently diverging from the rest of the
// log.
func Restore(d Dump) (*sequencer.Engine, *committer.Committer, error) {
	ledger := accounts.NewLedger()
	ledger.Restore(d.Balances)

	engine := sequencer.New(ledger, d.EventID)
	for _, sym := range d.Symbols {
		engine.RestoreSymbol(sym)
	}
	for _, rec := range d.Orders {
		o := &orderbook.Order{
			ID:        rec.ID,
			UserID:    rec.UserID,
			Side:      rec.Side,
			Kind:      rec.Kind,
			Price:     rec.Price,
			Unfilled:  rec.Unfilled,
			Frozen:    rec.Frozen,
			Filled:    rec.Filled,
			CreatedAt: rec.CreatedAt,
		}
		if err := engine.RestoreOrder(rec.Symbol, o); err != nil {
			return nil, nil, errors.Wrap(err, "snapshot: restore order")
		}
	}

	c := committer.New()
	for k, bal := range d.Balances {
		val, err := committer.AccountLeafValue(bal)
		if err != nil {
			return nil, nil, err
		}
		c.SetLeaf(committer.AccountLeafKey(k.User, k.Currency), val)
	}
	for _, sym := range d.Symbols {
		book, ok := engine.Book(sym.ID)
		if !ok {
			continue
		}
		val, err := committer.BookSummaryLeafValue(book, sym)
		if err != nil {
			return nil, nil, err
		}
		c.SetLeaf(committer.BookSummaryLeafKey(sym.ID), val)
	}
	root := c.RecomputeRoot()
	if root != d.Root {
		return nil, nil, errors.Newf("snapshot: rebuilt root %x does not match dump root %x at event %d", root, d.Root, d.EventID)
	}
	return engine, c, nil
}

// Persist gob-encodes d and writes it into the store's snapshot
// family, then advances the latest_snapshot_event meta pointer — the
// two writes a periodic snapshot job needs after a DUMP command. It
// returns the encoded size so a caller can record it as a metric
// without re-encoding.
func Persist(s *store.Store, d Dump) (int, error) {
	blob, err := Encode(d)
	if err != nil {
		return 0, err
	}
	if err := s.Put(store.FamilySnapshot, d.EventID, blob); err != nil {
		return 0, err
	}
	var meta [8]byte
	binary.BigEndian.PutUint64(meta[:], d.EventID)
	if err := s.PutMeta("latest_snapshot_event", meta[:]); err != nil {
		return 0, err
	}
	return len(blob), nil
}

// Recover loads the latest snapshot from s (if any) and replays every
// JSON-encoded command logged after its event_id, returning the
// engine/committer pair ready to accept new commands. With no
// snapshot present it starts from a fresh engine and replays the
// entire seq family from event_id 0.
func Recover(s *store.Store) (*sequencer.Engine, *committer.Committer, error) {
	engine, c, highWater, err := loadLatestSnapshot(s)
	if err != nil {
		return nil, nil, err
	}

	replayErr := s.ScanFrom(store.FamilySeq, highWater, func(id uint64, value []byte) error {
		var cmd domain.Command
		if err := json.Unmarshal(value, &cmd); err != nil {
			return errors.Wrapf(err, "snapshot: decode logged command %d", id)
		}
		res := engine.Submit(cmd)
		if res.Status == sequencer.Accepted {
			if _, err := c.Commit(res.EventID, engine.Ledger(), AccountKeysTouched(res), BooksTouched(engine, res), SymbolsTouched(res)); err != nil {
				return errors.Wrapf(err, "snapshot: recommit replayed event %d", id)
			}
		}
		return nil
	})
	if replayErr != nil {
		return nil, nil, replayErr
	}
	return engine, c, nil
}

func loadLatestSnapshot(s *store.Store) (*sequencer.Engine, *committer.Committer, uint64, error) {
	raw, ok, err := s.GetMeta("latest_snapshot_event")
	if err != nil {
		return nil, nil, 0, err
	}
	if !ok {
		return sequencer.New(nil, 0), committer.New(), 0, nil
	}
	if len(raw) != 8 {
		return nil, nil, 0, errors.Newf("snapshot: latest_snapshot_event meta has bad length %d", len(raw))
	}
	highWater := binary.BigEndian.Uint64(raw)
	blob, ok, err := s.Get(store.FamilySnapshot, highWater)
	if err != nil {
		return nil, nil, 0, err
	}
	if !ok {
		return nil, nil, 0, errors.Newf("snapshot: meta points at missing snapshot %d", highWater)
	}
	d, err := Decode(blob)
	if err != nil {
		return nil, nil, 0, err
	}
	engine, c, err := Restore(d)
	if err != nil {
		return nil, nil, 0, err
	}
	return engine, c, d.EventID, nil
}

// AccountKeysTouched/BooksTouched/SymbolsTouched derive the committer
// inputs a command needs to commit, from the rows and symbol the
// engine's own Submit already resolved for us. Recover uses these to
// re-commit a replayed event; the live ingress path (wired from main)
// uses the exact same three functions to commit as it runs, so replay
// and live operation can never disagree about what a given command
// touched.
func AccountKeysTouched(res sequencer.Result) []accounts.Key {
	seen := make(map[accounts.Key]bool)
	var out []accounts.Key
	add := func(u domain.UserID, c domain.CurrencyID) {
		k := accounts.Key{User: u, Currency: c}
		if !seen[k] {
			seen[k] = true
			out = append(out, k)
		}
	}
	if len(res.Rows) > 0 {
		base, quote := res.Command.Base, res.Command.Quote
		for _, row := range res.Rows {
			add(row.UserID, base)
			add(row.UserID, quote)
		}
		add(domain.FeeAccount, base)
		add(domain.FeeAccount, quote)
	}
	if res.Command.Kind == domain.TransferIn || res.Command.Kind == domain.TransferOut {
		add(res.Command.UserID, res.Command.Currency)
	}
	return out
}

func SymbolsTouched(res sequencer.Result) []domain.SymbolID {
	switch res.Command.Kind {
	case domain.AskLimit, domain.BidLimit, domain.AskMarket, domain.BidMarket,
		domain.OpenCmd, domain.CloseCmd, domain.NewSymbolCmd, domain.UpdateSymbol:
		return []domain.SymbolID{{Base: res.Command.Base, Quote: res.Command.Quote}}
	default:
		return nil
	}
}

func BooksTouched(engine *sequencer.Engine, res sequencer.Result) map[domain.SymbolID]committer.BookState {
	out := make(map[domain.SymbolID]committer.BookState)
	for _, sid := range SymbolsTouched(res) {
		book, ok := engine.Book(sid)
		if !ok {
			continue
		}
		sym, ok := engine.Symbol(sid)
		if !ok {
			continue
		}
		out[sid] = committer.BookState{Book: book, Symbol: *sym}
	}
	return out
}
