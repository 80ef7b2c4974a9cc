// Package memory provides the low-level primitives for safe object
// reuse across the single-writer/concurrent-reader boundary: a typed
// pool of orderbook.Order, a lock-free SPSC retirement ring, and
// epoch-based reclamation so a retired Order is only returned to the
// pool once no in-flight reader (the snapshot dumper) can still be
// looking at it.
//
// The sequencer's Submit loop is the only writer and never blocks on
// any of this; readers (snapshot.Build walking a live book) bracket
// their traversal with ReaderEpoch.Enter/Exit, and the writer advances
// the global epoch and drains the retirement ring on its own schedule
// (the DUMP handler, in Galois's case).
//
// pool.go, epoch.go and retire_ring.go carry the mechanism essentially
// unchanged from where it came from: it was already generic (Pool[T
// any], an any-typed ring) and needed no adaptation to bind to
// orderbook.Order. orders.go is what actually does that binding.
package memory
