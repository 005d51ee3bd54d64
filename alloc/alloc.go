// Package alloc holds the process-wide, replaceable allocator pair used to
// obtain and release segment payload storage.
package alloc

import "sync/atomic"

// AllocFunc returns n bytes of storage, or nil if none is available. Unlike
// C's malloc, a default Go allocator never fails; AllocFunc is allowed to
// return nil so a caller can install a bounded/pooled allocator and
// genuinely exercise a control block's allocation-failure path.
type AllocFunc func(n int) []byte

// FreeFunc releases storage previously returned by an AllocFunc. The default
// is a no-op: Go's garbage collector reclaims unreferenced slices without
// help, but a pooled allocator can use FreeFunc to return storage to a pool.
type FreeFunc func([]byte)

type pair struct {
	alloc AllocFunc
	free  FreeFunc
}

var current atomic.Pointer[pair]

func init() {
	current.Store(&pair{alloc: defaultAlloc, free: defaultFree})
}

func defaultAlloc(n int) []byte { return make([]byte, n) }

func defaultFree(b []byte) {}

// SetAllocator installs a new {alloc, free} pair for the remainder of
// the process's lifetime. There is no protection against calling it more
// than once or concurrently with in-flight Alloc/Free calls landing on the
// old pair mid-use. Callers that need a stable allocator should set it once
// during process init before any control block is created.
func SetAllocator(a AllocFunc, f FreeFunc) {
	current.Store(&pair{alloc: a, free: f})
}

// Alloc returns n bytes from the currently installed allocator.
func Alloc(n int) []byte {
	return current.Load().alloc(n)
}

// Free returns b to the currently installed allocator.
func Free(b []byte) {
	current.Load().free(b)
}
