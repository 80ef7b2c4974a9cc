package committer

import (
	"bytes"
	"encoding/gob"
	"sort"

	"galois/internal/accounts"
	"galois/internal/decimal"
	"galois/internal/domain"
	"galois/internal/orderbook"

	"github.com/cockroachdb/errors"
	"github.com/pierrec/lz4/v4"
)

// BookSummaryDepth is how many price levels per side topLevels walks
// to find the single best (price, qty) pair for the summary leaf —
// Non-goal in scope: a summary, not the full depth of book.
const BookSummaryDepth = 1

// ProofEntry is one leaf's before/after state plus the Merkle path
// that verifies OldValue against OldRoot.
//
// Every path in a bundle is computed against the pre-event tree. Any
// two keys share at least the root's subtree, so in a bundle with more
// than one entry a sibling hash on one entry's path still reflects the
// other entries' old values: applying NewValue along that path alone
// reproduces NewRoot only for a single-entry bundle. NewRoot is the
// root of the pre-event tree with every entry's NewValue applied.
type ProofEntry struct {
	Key      Hash
	OldValue []byte
	NewValue []byte
	Path     [Depth]Hash
}

// ProofBundle is everything the committer produced for one event.
type ProofBundle struct {
	EventID uint64
	OldRoot Hash
	NewRoot Hash
	Entries []ProofEntry
}

// Committer holds the full sparse Merkle tree as a leaf map (only
// touched leaves are ever stored; untouched subtrees are the
// precomputed emptyHash table) and the cached current root.
type Committer struct {
	leaves map[Hash][]byte
	root   Hash
}

// New constructs an empty committer (root = the all-empty tree's
// root).
func New() *Committer {
	c := &Committer{leaves: make(map[Hash][]byte)}
	c.root = c.computeRoot()
	return c
}

// Root returns the current committed root hash.
func (c *Committer) Root() Hash { return c.root }

// SetLeaf installs value directly under key, bypassing proof
// generation — used only when rebuilding a committer from a snapshot
// dump, where there is no prior root to produce a proof against.
func (c *Committer) SetLeaf(key Hash, value []byte) {
	c.leaves[key] = value
}

// RecomputeRoot recomputes and caches the root from the current leaf
// set — the counterpart to SetLeaf during snapshot restore.
func (c *Committer) RecomputeRoot() Hash {
	c.root = c.computeRoot()
	return c.root
}

func (c *Committer) sortedLeaves() []leafEntry {
	out := make([]leafEntry, 0, len(c.leaves))
	for k, v := range c.leaves {
		out = append(out, leafEntry{key: k, value: v})
	}
	sort.Slice(out, func(i, j int) bool { return bytes.Compare(out[i].key[:], out[j].key[:]) < 0 })
	return out
}

func (c *Committer) computeRoot() Hash {
	return subtreeRoot(c.sortedLeaves(), 0)
}

func (c *Committer) pathTo(key Hash) [Depth]Hash {
	var path [Depth]Hash
	subtreePath(c.sortedLeaves(), 0, key, &path)
	return path
}

// AccountLeafKey addresses the leaf holding one (user, currency)
// balance.
func AccountLeafKey(user domain.UserID, currency domain.CurrencyID) Hash {
	return LeafKey("galois:account", user[:], currencyBytes(currency))
}

// BookSummaryLeafKey addresses the leaf holding one symbol's top-of-
// book summary.
func BookSummaryLeafKey(sym domain.SymbolID) Hash {
	return LeafKey("galois:book", currencyBytes(sym.Base), currencyBytes(sym.Quote))
}

func currencyBytes(c domain.CurrencyID) []byte {
	return []byte{byte(c >> 24), byte(c >> 16), byte(c >> 8), byte(c)}
}

// AccountLeafValue encodes a balance using Decimal's normative 14-byte
// binary layout: available then frozen, 28 bytes total.
func AccountLeafValue(bal accounts.Balance) ([]byte, error) {
	avail, err := bal.Available.MarshalBinary()
	if err != nil {
		return nil, err
	}
	frozen, err := bal.Frozen.MarshalBinary()
	if err != nil {
		return nil, err
	}
	return append(avail, frozen...), nil
}

// BookSummaryLeafValue encodes a symbol's top-of-book summary as
// best_bid_price, best_bid_size, best_ask_price, best_ask_size,
// maker_fee, taker_fee — six 14-byte Decimals, 84 bytes total. A side
// with no resting orders encodes as a zero price/size pair rather than
// being omitted, so the leaf's layout is fixed-width regardless of
// book depth.
func BookSummaryLeafValue(book *orderbook.Book, sym domain.Symbol) ([]byte, error) {
	var buf bytes.Buffer
	for _, side := range []domain.Side{domain.Bid, domain.Ask} {
		levels, err := topLevels(book, side, BookSummaryDepth)
		if err != nil {
			return nil, err
		}
		if len(levels) == 0 {
			zero, err := decimal.Zero.MarshalBinary()
			if err != nil {
				return nil, err
			}
			buf.Write(zero)
			buf.Write(zero)
			continue
		}
		buf.Write(levels[0])
	}
	makerFee, err := sym.MakerFee.MarshalBinary()
	if err != nil {
		return nil, err
	}
	takerFee, err := sym.TakerFee.MarshalBinary()
	if err != nil {
		return nil, err
	}
	buf.Write(makerFee)
	buf.Write(takerFee)
	return buf.Bytes(), nil
}

// topLevels walks the n best price levels on side, collapsing each
// level's FIFO queue into one (price, total qty) row.
func topLevels(book *orderbook.Book, side domain.Side, n int) ([][]byte, error) {
	var out [][]byte
	var lastPrice decimal.Decimal
	havePrice := false
	var qty decimal.Decimal
	flush := func() error {
		if !havePrice {
			return nil
		}
		priceBytes, err := lastPrice.MarshalBinary()
		if err != nil {
			return err
		}
		qtyBytes, err := qty.MarshalBinary()
		if err != nil {
			return err
		}
		out = append(out, append(priceBytes, qtyBytes...))
		return nil
	}
	var innerErr error
	book.ForEachResting(side, func(o *orderbook.Order) bool {
		if len(out) >= n {
			return false
		}
		if !havePrice || !o.Price.Equal(lastPrice) {
			if err := flush(); err != nil {
				innerErr = err
				return false
			}
			lastPrice, havePrice, qty = o.Price, true, decimal.Zero
		}
		sum, err := qty.Add(o.Unfilled)
		if err != nil {
			innerErr = err
			return false
		}
		qty = sum
		return true
	})
	if innerErr != nil {
		return nil, innerErr
	}
	if len(out) < n {
		if err := flush(); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// BookState is what Commit needs to derive one symbol's book-summary
// leaf: the live book plus the symbol record holding its current fee
// rates.
type BookState struct {
	Book   *orderbook.Book
	Symbol domain.Symbol
}

// Commit sets the leaf of every (user, currency) pair in accountKeys to
// its current balance and the leaf of every symbol in symbols to its
// current book summary, recomputes the root, and returns the event's
// ProofBundle.
func (c *Committer) Commit(eventID uint64, ledger *accounts.Ledger, accountKeys []accounts.Key, books map[domain.SymbolID]BookState, symbols []domain.SymbolID) (*ProofBundle, error) {
	oldRoot := c.root
	entries := make([]ProofEntry, 0, len(accountKeys)+len(symbols))

	for _, ak := range accountKeys {
		key := AccountLeafKey(ak.User, ak.Currency)
		entries = append(entries, ProofEntry{Key: key, OldValue: c.leaves[key], Path: c.pathTo(key)})
	}
	for _, sid := range symbols {
		key := BookSummaryLeafKey(sid)
		entries = append(entries, ProofEntry{Key: key, OldValue: c.leaves[key], Path: c.pathTo(key)})
	}

	for i, ak := range accountKeys {
		val, err := AccountLeafValue(ledger.Get(ak.User, ak.Currency))
		if err != nil {
			return nil, err
		}
		entries[i].NewValue = val
		c.leaves[entries[i].Key] = val
	}
	offset := len(accountKeys)
	for i, sid := range symbols {
		state, ok := books[sid]
		if !ok {
			return nil, errors.Newf("committer: no book for symbol %+v", sid)
		}
		val, err := BookSummaryLeafValue(state.Book, state.Symbol)
		if err != nil {
			return nil, err
		}
		entries[offset+i].NewValue = val
		c.leaves[entries[offset+i].Key] = val
	}

	c.root = c.computeRoot()
	return &ProofBundle{EventID: eventID, OldRoot: oldRoot, NewRoot: c.root, Entries: entries}, nil
}

// EncodeBundle gob-encodes a ProofBundle and LZ4-frames it, matching
// the teacher's gob-based persistence format extended with LZ4 since
// proof bundles (unlike the teacher's order snapshots) are written
// once per event and read rarely, making compression worth the CPU.
func EncodeBundle(b *ProofBundle) ([]byte, error) {
	var raw bytes.Buffer
	if err := gob.NewEncoder(&raw).Encode(b); err != nil {
		return nil, errors.Wrap(err, "committer: gob encode proof bundle")
	}
	var framed bytes.Buffer
	w := lz4.NewWriter(&framed)
	if _, err := w.Write(raw.Bytes()); err != nil {
		return nil, errors.Wrap(err, "committer: lz4 compress proof bundle")
	}
	if err := w.Close(); err != nil {
		return nil, errors.Wrap(err, "committer: lz4 close")
	}
	return framed.Bytes(), nil
}

// DecodeBundle reverses EncodeBundle.
func DecodeBundle(framed []byte) (*ProofBundle, error) {
	r := lz4.NewReader(bytes.NewReader(framed))
	var b ProofBundle
	if err := gob.NewDecoder(r).Decode(&b); err != nil {
		return nil, errors.Wrap(err, "committer: decode proof bundle")
	}
	return &b, nil
}
