package engine

import (
	"bytes"
	"runtime"
	"strconv"
)

// curGoroutineID parses the current goroutine id from the runtime stack
// header. Used only for the debug-time ownership checks; never on a hot
// path that matters more than catching cross-goroutine misuse early.
func curGoroutineID() uint64 {
	buf := make([]byte, 64)
	buf = buf[:runtime.Stack(buf, false)]
	buf = bytes.TrimPrefix(buf, []byte("goroutine "))
	if i := bytes.IndexByte(buf, ' '); i > 0 {
		if id, err := strconv.ParseUint(string(buf[:i]), 10, 64); err == nil {
			return id
		}
	}
	return 0
}
