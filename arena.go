package hpgp

import (
	"fmt"
	"sync"
	"unsafe"
)

// alignment is the bump-allocation granularity, matching mem_pool.c's use of
// sizeof(void*) as ALIGNMENT_SIZE.
const alignment = unsafe.Sizeof(uintptr(0))

// Arena is a single contiguous preallocated buffer handed out via
// bump-pointer allocation. There is no per-allocation free: callers release
// everything at once by discarding the Arena (ClearCurrent only removes it
// as the process-wide current arena, if it was installed there).
//
// Grounded on source/lib/mem_pool/src/mem_pool.c (memory_pool_init/
// memory_pool_alloc/memory_pool_get_usage/memory_pool_destroy).
type Arena struct {
	mu      sync.Mutex
	buf     []byte
	current int // offset of the next free byte
}

// NewArena wraps buf as a bump allocator. The caller retains ownership of
// buf's backing memory; the Arena never grows or reallocates it.
func NewArena(buf []byte) *Arena {
	return &Arena{buf: buf}
}

// Alloc reserves size bytes, aligned to the platform pointer width, and
// returns a slice over them. It returns ErrNoMemory if the arena's capacity
// would be exceeded, mirroring memory_pool_alloc's capacity check.
func (a *Arena) Alloc(size int) ([]byte, error) {
	if size < 0 {
		return nil, fmt.Errorf("%w: negative size", ErrBadParameter)
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	pad := 0
	if rem := a.current % int(alignment); rem != 0 {
		pad = int(alignment) - rem
	}
	start := a.current + pad
	end := start + size
	if end > len(a.buf) {
		return nil, ErrNoMemory
	}
	a.current = end
	return a.buf[start:end:end], nil
}

// Usage returns the number of bytes handed out so far, including alignment
// padding.
func (a *Arena) Usage() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.current
}

// Capacity returns the arena's total size in bytes.
func (a *Arena) Capacity() int {
	return len(a.buf)
}

// Remaining returns the number of bytes still available to Alloc.
func (a *Arena) Remaining() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.buf) - a.current
}

// process-wide current arena. Matching the Design Notes' allowance for a
// convenience global: callers that want it use SetCurrent/Current, but every
// component in this module takes an explicit *Arena and never reaches for
// this global itself.
var (
	currentMu sync.Mutex
	current   *Arena
)

// SetCurrent installs a as the process-wide current arena.
func SetCurrent(a *Arena) {
	currentMu.Lock()
	defer currentMu.Unlock()
	current = a
}

// Current returns the process-wide current arena, or nil if none is set.
func Current() *Arena {
	currentMu.Lock()
	defer currentMu.Unlock()
	return current
}

// ClearCurrent resets the process-wide current arena to nil. Session
// teardown calls this when it owned the global, so a torn-down session's
// arena is never reachable through Current after Deinit.
func ClearCurrent(a *Arena) {
	currentMu.Lock()
	defer currentMu.Unlock()
	if current == a {
		current = nil
	}
}
