// Package store is the append-only persistence layer (§4.7): a single
// pebble database with five logical column families — seq (the
// command log, keyed by event_id), status (accepted/rejected outcome
// per event_id), proof (committer proof bundles per event_id),
// snapshot (full-state dumps, keyed by their high-water event_id), and
// meta (singleton bookkeeping keys) — each mapped to its own key
// prefix, the same technique the teacher's exit WAL uses to keep one
// pebble instance scannable by record kind.
package store

import (
	"encoding/binary"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/pebble"
)

// Family is a logical column family, implemented as a key prefix byte
// — pebble has no native column family concept, so (like the teacher's
// `order/` key prefix) every family gets a one-byte tag ahead of a
// big-endian event_id.
type Family byte

const (
	FamilySeq      Family = 's'
	FamilyStatus   Family = 't'
	FamilyProof    Family = 'p'
	FamilySnapshot Family = 'n'
	FamilyMeta     Family = 'm'
)

// Store wraps a single pebble.DB keyed as family || big-endian-uint64.
type Store struct {
	db *pebble.DB
}

// Open opens (creating if absent) a pebble database at dir with its
// own WAL enabled — durability is the entire point of this layer, so
// unlike a read-replica cache we never disable it.
func Open(dir string) (*Store, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, errors.Wrapf(err, "store: open %s", dir)
	}
	return &Store{db: db}, nil
}

// Close flushes and closes the underlying database.
func (s *Store) Close() error {
	return errors.Wrap(s.db.Close(), "store: close")
}

func key(f Family, id uint64) []byte {
	k := make([]byte, 9)
	k[0] = byte(f)
	binary.BigEndian.PutUint64(k[1:], id)
	return k
}

// Put writes value under (family, id), fsyncing before returning —
// every write here is on the critical path of "the event is durably
// committed," so like the teacher's ExitWAL every Set uses
// pebble.Sync.
func (s *Store) Put(f Family, id uint64, value []byte) error {
	if err := s.db.Set(key(f, id), value, pebble.Sync); err != nil {
		return errors.Wrapf(err, "store: put %c/%d", f, id)
	}
	return nil
}

// Get reads the value at (family, id). ok is false if absent.
func (s *Store) Get(f Family, id uint64) (value []byte, ok bool, err error) {
	v, closer, err := s.db.Get(key(f, id))
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrapf(err, "store: get %c/%d", f, id)
	}
	defer closer.Close()
	out := make([]byte, len(v))
	copy(out, v)
	return out, true, nil
}

// PutMeta/GetMeta address the meta family by a string key rather than
// a numeric id (singleton bookkeeping values like "high_water_event").
func (s *Store) PutMeta(name string, value []byte) error {
	k := append([]byte{byte(FamilyMeta)}, []byte(name)...)
	if err := s.db.Set(k, value, pebble.Sync); err != nil {
		return errors.Wrapf(err, "store: put meta %s", name)
	}
	return nil
}

func (s *Store) GetMeta(name string) ([]byte, bool, error) {
	k := append([]byte{byte(FamilyMeta)}, []byte(name)...)
	v, closer, err := s.db.Get(k)
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrapf(err, "store: get meta %s", name)
	}
	defer closer.Close()
	out := make([]byte, len(v))
	copy(out, v)
	return out, true, nil
}

// ScanFrom iterates every (id, value) in family f with id > after, in
// ascending id order — the shape replay uses to walk the seq family
// forward from a snapshot's high-water mark.
func (s *Store) ScanFrom(f Family, after uint64, fn func(id uint64, value []byte) error) error {
	lower := key(f, after+1)
	upper := []byte{byte(f) + 1}
	iter, err := s.db.NewIter(&pebble.IterOptions{LowerBound: lower, UpperBound: upper})
	if err != nil {
		return errors.Wrap(err, "store: scan")
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		id := binary.BigEndian.Uint64(iter.Key()[1:])
		val := make([]byte, len(iter.Value()))
		copy(val, iter.Value())
		if err := fn(id, val); err != nil {
			return err
		}
	}
	return errors.Wrap(iter.Error(), "store: scan iterator")
}
