// Package sequencer is the single write entry point into the engine
// (§4.5): all coordination between accounts, order books, the matcher
// and the clearer happens here, behind one dispatch switch over the
// 17 domain.CommandKind shapes. Submit must only ever be called from
// one goroutine at a time — like the teacher's OrderService, it keeps
// no internal lock, relying on the caller (the ingress pump) to honor
// the single-writer contract rather than paying for synchronization
// the architecture already guarantees away.
package sequencer

import (
	"fmt"

	"galois/internal/accounts"
	"galois/internal/clearer"
	"galois/internal/decimal"
	"galois/internal/domain"
	"galois/internal/eventid"
	"galois/internal/memory"
	"galois/internal/orderbook"

	"github.com/cockroachdb/errors"
)

func errNoSuchBookForRestore(id domain.SymbolID) error {
	return errors.Newf("sequencer: restore order for unregistered symbol base=%d quote=%d", id.Base, id.Quote)
}

// Status is whether a command was accepted and applied, or rejected
// without touching state.
type Status uint8

const (
	Accepted Status = iota
	Rejected
)

func (s Status) String() string {
	if s == Accepted {
		return "Accepted"
	}
	return "Rejected"
}

// MarshalJSON renders Status as its name rather than its numeric tag —
// the wire protocol is JSON precisely so a human or a thin client can
// read it directly.
func (s Status) MarshalJSON() ([]byte, error) {
	return []byte(`"` + s.String() + `"`), nil
}

// OrderView is a read-only snapshot of a resting or just-processed
// order, returned by QUERY_ORDER and embedded in Dump.
type OrderView struct {
	Symbol   domain.SymbolID
	ID       uint64
	UserID   domain.UserID
	Side     domain.Side
	Kind     domain.OrderKind
	Price    decimal.Decimal
	Unfilled decimal.Decimal
	Filled   decimal.Decimal
	Frozen   decimal.Decimal
}

// QueryResult carries the payload of a query command. Only the field
// matching the originating Kind is populated.
type QueryResult struct {
	Order   *OrderView
	Balance *accounts.Balance
	Account map[domain.CurrencyID]accounts.Balance
}

// Result is what Submit returns for every command, query or not.
type Result struct {
	EventID uint64 // 0 for queries, which never consume the log
	Command domain.Command
	Status  Status
	Reason  domain.Reason
	Detail  string

	Rows  []clearer.Row
	Query *QueryResult
}

func rejected(cmd domain.Command, reason domain.Reason, detail string) Result {
	return Result{Command: cmd, Status: Rejected, Reason: reason, Detail: detail}
}

// Engine owns every piece of mutable state in the matching engine:
// balances, one order book per symbol, and the symbol registry. It is
// the thing the committer hashes and the snapshotter dumps.
type Engine struct {
	ids *eventid.Counter

	ledger  *accounts.Ledger
	symbols map[domain.SymbolID]*domain.Symbol
	books   map[domain.SymbolID]*orderbook.Book

	// orderIndex resolves a bare order_id (as carried by CANCEL and
	// QUERY_ORDER, which name no symbol) to the book it lives in.
	orderIndex map[uint64]domain.SymbolID

	// orderPool/retireRing back every Order allocation: consumed
	// orders are retired rather than dropped, and reclaimed back into
	// the pool only while SnapshotReader is outside a read section.
	orderPool      *memory.Pool[orderbook.Order]
	retireRing     *memory.RetireRing
	snapshotReader *memory.ReaderEpoch

	// OnDump, if set, is invoked synchronously for a DUMP command
	// before it is acknowledged — the committer/snapshotter wires
	// itself in here rather than the sequencer importing either.
	OnDump func(eventID uint64)

	// OnRejected, if set, is invoked synchronously whenever Submit
	// returns a non-Accepted status for a mutating command — main
	// wires the metrics registry in here rather than the sequencer
	// importing prometheus itself.
	OnRejected func(cmd domain.Command, reason domain.Reason)
}

// New constructs an Engine around an existing ledger (nil creates a
// fresh one) — recovery paths pass in a ledger already restored from a
// snapshot.
func New(ledger *accounts.Ledger, startEventID uint64) *Engine {
	if ledger == nil {
		ledger = accounts.NewLedger()
	}
	reader := &memory.ReaderEpoch{}
	reader.Exit() // outside a read section until a dumper calls Enter
	return &Engine{
		ids:            eventid.New(startEventID),
		ledger:         ledger,
		symbols:        make(map[domain.SymbolID]*domain.Symbol),
		books:          make(map[domain.SymbolID]*orderbook.Book),
		orderIndex:     make(map[uint64]domain.SymbolID),
		orderPool:      memory.NewOrderPool(),
		retireRing:     memory.NewRetireRing(1024),
		snapshotReader: reader,
	}
}

// SnapshotReader is the ReaderEpoch a concurrent snapshot dumper must
// bracket its book traversal with (Enter before, Exit after) so the
// writer's reclamation pass never hands back an Order the dumper is
// still reading.
func (e *Engine) SnapshotReader() *memory.ReaderEpoch { return e.snapshotReader }

// newOrder draws a reset Order from the pool rather than allocating —
// the single-writer loop's steady-state path never touches the heap
// for an Order once the pool has warmed up.
func (e *Engine) newOrder() *orderbook.Order {
	return memory.ResetOrder(e.orderPool.Get())
}

// releaseOrder returns an Order straight to the pool, bypassing the
// retirement ring — only valid for an Order that never entered a book,
// since nothing else could ever have observed it.
func (e *Engine) releaseOrder(o *orderbook.Order) {
	e.orderPool.Put(o)
}

// retireOrder hands a fully-consumed Order to the retirement ring
// instead of letting it go straight back to the pool, so a concurrent
// snapshot reader that took its ReaderEpoch before this order was
// removed from the book can't observe it mid-reuse.
func (e *Engine) retireOrder(o *orderbook.Order) {
	if !e.retireRing.Enqueue(o) {
		// Ring saturated: reclaim eagerly to make room rather than
		// leak the order entirely.
		e.reclaim()
		e.retireRing.Enqueue(o)
	}
}

// reclaim advances the epoch and returns every retirement-safe Order
// to the pool — called from the DUMP handler, which is already
// Galois's periodic maintenance hook.
func (e *Engine) reclaim() {
	memory.AdvanceEpochAndReclaim(e.retireRing, e.orderPool, e.snapshotReader)
}

// Ledger exposes the balance ledger for read paths (query handlers,
// the committer, the snapshotter) that are not themselves commands.
func (e *Engine) Ledger() *accounts.Ledger { return e.ledger }

// EventCounter exposes the underlying id generator so the recovery
// path can confirm it advanced exactly as far as the replayed log.
func (e *Engine) EventCounter() uint64 { return e.ids.Current() }

// RestoreSymbol installs sym directly, bypassing NEW_SYMBOL's
// validation and upsert-always-Open semantics — used only by snapshot
// load, which must reproduce the symbol's exact persisted state
// (including Closed).
func (e *Engine) RestoreSymbol(sym domain.Symbol) {
	cp := sym
	e.symbols[cp.ID] = &cp
	if _, ok := e.books[cp.ID]; !ok {
		e.books[cp.ID] = orderbook.NewBook(cp.ID)
	}
}

// RestoreOrder re-inserts a resting order into its symbol's book and
// the order_id index — used only by snapshot load.
func (e *Engine) RestoreOrder(symID domain.SymbolID, o *orderbook.Order) error {
	book, ok := e.books[symID]
	if !ok {
		return errNoSuchBookForRestore(symID)
	}
	if err := book.InsertResting(o.Side, o); err != nil {
		return err
	}
	e.orderIndex[o.ID] = symID
	return nil
}

// Symbol returns the registered symbol for id, if any.
func (e *Engine) Symbol(id domain.SymbolID) (*domain.Symbol, bool) {
	s, ok := e.symbols[id]
	return s, ok
}

// Symbols returns every registered symbol, in no particular order —
// callers that need determinism (the committer) sort themselves.
func (e *Engine) Symbols() []*domain.Symbol {
	out := make([]*domain.Symbol, 0, len(e.symbols))
	for _, s := range e.symbols {
		out = append(out, s)
	}
	return out
}

// Book returns the order book for id, if the symbol exists.
func (e *Engine) Book(id domain.SymbolID) (*orderbook.Book, bool) {
	b, ok := e.books[id]
	return b, ok
}

// Submit dispatches cmd to its handler and returns the outcome. Query
// kinds never advance the event id (§4.5: "queries bypass the log").
func (e *Engine) Submit(cmd domain.Command) Result {
	if cmd.Kind.IsQuery() {
		return e.dispatchQuery(cmd)
	}

	res, mutated := e.dispatchCommand(cmd)
	if mutated {
		res.EventID = e.ids.Next()
	} else if res.Status != Accepted && e.OnRejected != nil {
		e.OnRejected(cmd, res.Reason)
	}
	return res
}

func (e *Engine) dispatchCommand(cmd domain.Command) (Result, bool) {
	switch cmd.Kind {
	case domain.AskLimit, domain.BidLimit:
		return e.handleLimit(cmd)
	case domain.AskMarket, domain.BidMarket:
		return e.handleMarket(cmd)
	case domain.Cancel:
		return e.handleCancel(cmd)
	case domain.OpenCmd:
		return e.handleSetState(cmd, domain.Open)
	case domain.CloseCmd:
		return e.handleSetState(cmd, domain.Closed)
	case domain.TransferIn:
		return e.handleTransferIn(cmd)
	case domain.TransferOut:
		return e.handleTransferOut(cmd)
	case domain.NewSymbolCmd:
		return e.handleNewSymbol(cmd)
	case domain.UpdateSymbol:
		return e.handleUpdateSymbol(cmd)
	case domain.Dump:
		return e.handleDump(cmd)
	default:
		return rejected(cmd, domain.BadScale, "unrecognized command kind"), false
	}
}

func (e *Engine) dispatchQuery(cmd domain.Command) Result {
	switch cmd.Kind {
	case domain.QueryOrder:
		return e.handleQueryOrder(cmd)
	case domain.QueryBalance:
		return e.handleQueryBalance(cmd)
	case domain.QueryAccount:
		return e.handleQueryAccount(cmd)
	default:
		return rejected(cmd, domain.BadScale, "unrecognized query kind")
	}
}

func (e *Engine) symbolID(cmd domain.Command) domain.SymbolID {
	return domain.SymbolID{Base: cmd.Base, Quote: cmd.Quote}
}

func (e *Engine) lookupSymbol(cmd domain.Command) (*domain.Symbol, *orderbook.Book, *domain.ValidationError) {
	id := e.symbolID(cmd)
	sym, ok := e.symbols[id]
	if !ok {
		return nil, nil, domain.NewValidationError(domain.UnknownSymbol, fmt.Sprintf("base=%d quote=%d", id.Base, id.Quote))
	}
	return sym, e.books[id], nil
}
