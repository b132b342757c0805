package util

import "sync"

// DefaultBufSize is the standard buffer size for pump I/O (32 KiB).
const DefaultBufSize = 32 * 1024

// BufPool provides reusable byte buffers for the copy loops, reducing
// GC pressure while a route is under load.
var BufPool = sync.Pool{
	New: func() interface{} {
		buf := make([]byte, DefaultBufSize)
		return &buf
	},
}

// GetBuf retrieves a buffer from the pool.  Callers must return it
// with [PutBuf] when finished.
func GetBuf() *[]byte {
	return BufPool.Get().(*[]byte)
}

// PutBuf returns a buffer to the pool for reuse.
func PutBuf(buf *[]byte) {
	if buf == nil {
		return
	}
	BufPool.Put(buf)
}
