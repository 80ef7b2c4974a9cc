package memory

import "sync"

// Pool is a typed object pool. It is type-safe for normal use, but can
// also participate in epoch-based reclamation via PutAny.
type Pool[T any] struct {
	p *sync.Pool
}

// NewPool constructs a pool whose objects are produced by ctor when
// empty.
func NewPool[T any](ctor func() *T) *Pool[T] {
	return &Pool[T]{
		p: &sync.Pool{
			New: func() any { return ctor() },
		},
	}
}

// Get returns an object from the pool, constructing one if empty.
func (p *Pool[T]) Get() *T {
	return p.p.Get().(*T)
}

// Put returns v to the pool for reuse.
func (p *Pool[T]) Put(v *T) {
	p.p.Put(v)
}

// PutAny allows Pool[T] to satisfy ReclaimablePool — the explicit,
// checked adapter between the typed and type-erased worlds that lets
// AdvanceEpochAndReclaim hand a *T back in without importing T.
func (p *Pool[T]) PutAny(v any) {
	obj, ok := v.(*T)
	if !ok {
		panic("memory.Pool: PutAny received wrong type")
	}
	p.Put(obj)
}
