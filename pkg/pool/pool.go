// Package pool provides object pooling to reduce GC pressure on the
// recall engine's per-call scratch allocations.
package pool

import (
	"sync"
)

// StringSlicePool pools []string scratch buffers used for id lists that
// are built, consumed, and discarded within a single Recall call.
var StringSlicePool = sync.Pool{
	New: func() interface{} {
		return make([]string, 0, 16)
	},
}

// GetStringSlice gets a []string from the pool, reset to length 0.
func GetStringSlice() []string {
	s := StringSlicePool.Get().([]string)
	return s[:0]
}

// PutStringSlice returns a []string to the pool. Callers must not retain
// or return the slice to their own caller afterward — it may be handed
// out again and overwritten concurrently.
func PutStringSlice(s []string) {
	StringSlicePool.Put(s)
}
