package util

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net"
	"os"
	"strings"
)

// DefaultBufSize is the read buffer size for network I/O. IRC lines are
// short; one read usually carries a burst of several.
const DefaultBufSize = 4 * 1024

// MaxLineLen bounds a single line read by ReadLines.
const MaxLineLen = 64 * 1024

// ReadLines calls fn for every line read from r, without its line
// terminator, until r is exhausted, fn returns an error, or ctx is
// cancelled. A cancelled ctx does not interrupt a blocked Read; the
// caller closes r for that.
func ReadLines(ctx context.Context, r io.Reader, fn func(line string) error) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, DefaultBufSize), MaxLineLen)
	for sc.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(strings.TrimRight(sc.Text(), "\r")); err != nil {
			return err
		}
	}
	if err := sc.Err(); err != nil && !IsHarmless(err) {
		return err
	}
	return nil
}

// IsHarmless reports whether err is expected while a connection or pipe
// is being torn down.
func IsHarmless(err error) bool {
	if err == nil {
		return true
	}
	if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) ||
		errors.Is(err, io.ErrClosedPipe) || errors.Is(err, os.ErrClosed) {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return errors.Is(opErr.Err, net.ErrClosed)
	}
	return false
}
