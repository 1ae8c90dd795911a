package relay

import (
	"bytes"
	"fmt"
)

// accumulator reassembles newline-terminated command lines from reads
// split at arbitrary byte boundaries. A cap bounds memory held for a
// connection that never completes a line.
type accumulator struct {
	buf []byte
	max int
}

func newAccumulator(max int) *accumulator {
	return &accumulator{max: max}
}

// push appends one read chunk. It fails when the pending unterminated
// data would exceed the cap.
func (a *accumulator) push(chunk []byte) error {
	if len(a.buf)+len(chunk) > a.max {
		return fmt.Errorf("%w: %d bytes pending", ErrAccumulationCap, len(a.buf)+len(chunk))
	}
	a.buf = append(a.buf, chunk...)
	return nil
}

// next pops one complete line, without its terminator. A trailing \r
// is stripped so both \n and \r\n clients parse identically.
func (a *accumulator) next() (string, bool) {
	idx := bytes.IndexByte(a.buf, '\n')
	if idx < 0 {
		return "", false
	}
	line := a.buf[:idx]
	a.buf = a.buf[idx+1:]
	if n := len(line); n > 0 && line[n-1] == '\r' {
		line = line[:n-1]
	}
	return string(line), true
}
