package memory

import "sync/atomic"

// GlobalEpoch monotonically increases every time the writer reclaims.
var GlobalEpoch atomic.Uint64

const inactive = ^uint64(0)

// ReaderEpoch marks when a reader entered a read section — a snapshot
// dumper calls Enter before walking a book and Exit once it has copied
// everything it needs, so the writer reuses retired objects only while
// no reader is inside a read section. A zero ReaderEpoch counts as
// active at epoch 0 until Exit is called.
type ReaderEpoch struct {
	epoch atomic.Uint64
}

// Enter records the current global epoch as this reader's watermark.
func (r *ReaderEpoch) Enter() {
	r.epoch.Store(GlobalEpoch.Load())
}

// Exit marks the reader as no longer active.
func (r *ReaderEpoch) Exit() {
	r.epoch.Store(inactive)
}

// Value returns the reader's current watermark.
func (r *ReaderEpoch) Value() uint64 {
	return r.epoch.Load()
}

// ReclaimablePool is the only requirement AdvanceEpochAndReclaim has of
// a pool — intentionally type-erased so this package never needs to
// know what it's pooling.
type ReclaimablePool interface {
	PutAny(any)
}

// AdvanceEpochAndReclaim advances the epoch and, when no reader is
// inside a read section, returns every retired object to pool.
// Retired objects carry no epoch of their own, so while any reader is
// active nothing is reclaimed: the first object is put back and the
// pass stops.
func AdvanceEpochAndReclaim(ring *RetireRing, pool ReclaimablePool, readers ...*ReaderEpoch) {
	GlobalEpoch.Add(1)
	min := minReaderEpoch(readers...)

	for {
		obj := ring.Dequeue()
		if obj == nil {
			return
		}

		if min == inactive {
			pool.PutAny(obj)
			continue
		}

		// A reader is active: put it back and stop this pass.
		_ = ring.Enqueue(obj)
		return
	}
}

func minReaderEpoch(rs ...*ReaderEpoch) uint64 {
	min := inactive
	for _, r := range rs {
		if r == nil {
			continue
		}
		if v := r.Value(); v < min {
			min = v
		}
	}
	return min
}
