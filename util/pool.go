package util

import "sync"

// Pool is a typed wrapper over sync.Pool.
type Pool[T any] struct {
	p    sync.Pool
	keep func(T) bool
}

// NewPool returns a pool that allocates with fn. keep, if non-nil,
// decides whether a returned item is fit for reuse.
func NewPool[T any](fn func() T, keep func(T) bool) *Pool[T] {
	return &Pool[T]{
		p:    sync.Pool{New: func() any { return fn() }},
		keep: keep,
	}
}

func (p *Pool[T]) Get() T { return p.p.Get().(T) }

func (p *Pool[T]) Put(v T) {
	if p.keep != nil && !p.keep(v) {
		return
	}
	p.p.Put(v)
}

// readBufs backs the transport read loops; a session that reconnects
// picks up the buffer its previous connection released.
var readBufs = NewPool(
	func() *[]byte {
		b := make([]byte, DefaultBufSize)
		return &b
	},
	func(b *[]byte) bool { return b != nil && cap(*b) == DefaultBufSize },
)

// GetBuf returns a DefaultBufSize read buffer. Hand it back with
// [PutBuf].
func GetBuf() *[]byte {
	b := readBufs.Get()
	*b = (*b)[:DefaultBufSize]
	return b
}

// PutBuf releases a buffer from [GetBuf]. Nil and foreign-sized
// buffers are dropped.
func PutBuf(b *[]byte) { readBufs.Put(b) }
