// Package bufpool recycles the fixed-size buffers connections read their
// request into, so a burst of short-lived connections does not turn into a
// burst of garbage.
//
// Usage:
//
//	pool := bufpool.New(1024)
//	buf := pool.Get()
//	defer pool.Put(buf)
package bufpool

import (
	"sync"
)

// Pool hands out byte slices of one fixed length. It is safe for concurrent
// use.
type Pool struct {
	size int
	pool sync.Pool
}

// New creates a Pool of size-byte buffers. size must be positive.
func New(size int) *Pool {
	if size <= 0 {
		panic("bufpool: size must be positive")
	}

	p := &Pool{size: size}
	p.pool.New = func() any {
		buf := make([]byte, size)
		return &buf
	}
	return p
}

// Size returns the length of the buffers handed out by Get.
func (p *Pool) Size() int {
	return p.size
}

// Get returns a buffer of exactly Size() bytes. Its contents are whatever
// the previous user left in it.
func (p *Pool) Get() []byte {
	return (*p.pool.Get().(*[]byte))[:p.size]
}

// Put returns buf to the pool. Buffers that did not come from this pool
// (by capacity) are dropped and left to the garbage collector. buf must
// not be used after Put.
func (p *Pool) Put(buf []byte) {
	if cap(buf) != p.size {
		return
	}
	buf = buf[:p.size]
	p.pool.Put(&buf)
}
