package protocol

import (
	"bytes"

	ircerr "ircsess/internal/errors"
)

// DefaultMaxFrame caps the undelimited remainder a session's framer
// holds: room for the 8191-byte IRCv3 tag section plus a 512-byte line,
// rounded up.
const DefaultMaxFrame = 16 * 1024

// Framer reassembles a byte stream into protocol lines.
//
// Lines end in CR-LF; a bare LF is accepted from non-conformant peers.
// Both terminators end in LF, so a line always ends at the earliest LF
// left in the accumulator and any CR before it is trimmed with the rest
// of the surrounding whitespace. Bytes are consumed exactly once, which
// makes the emitted sequence independent of how the stream was chunked.
type Framer struct {
	buf []byte

	// Max caps the undelimited remainder held between feeds.
	// Zero means no cap.
	Max int

	// discarding is set after an overflow until the oversized line's
	// terminator has gone by.
	discarding bool
}

// NewFramer returns a Framer holding at most max undelimited bytes.
func NewFramer(max int) *Framer {
	return &Framer{Max: max}
}

// Feed appends p to the accumulator and calls emit once for every
// complete, non-empty line, in stream order. The slice passed to emit
// is only valid for the duration of the call.
//
// When the remainder left after extraction exceeds Max it is discarded
// and ErrFrameOverflow is returned; lines emitted before that point
// were delivered normally. The rest of the oversized line, up to its
// LF, is dropped by the following feeds.
func (f *Framer) Feed(p []byte, emit func(line []byte)) error {
	if f.discarding {
		i := bytes.IndexByte(p, '\n')
		if i < 0 {
			return nil
		}
		p = p[i+1:]
		f.discarding = false
	}
	f.buf = append(f.buf, p...)

	for {
		i := bytes.IndexByte(f.buf, '\n')
		if i < 0 {
			break
		}
		line := bytes.TrimSpace(f.buf[:i])
		f.buf = f.buf[i+1:]
		if len(line) > 0 {
			emit(line)
		}
	}

	if len(f.buf) == 0 {
		f.buf = nil
		return nil
	}
	if f.Max > 0 && len(f.buf) > f.Max {
		f.buf = nil
		f.discarding = true
		return ircerr.ErrFrameOverflow
	}
	return nil
}

// Buffered returns the number of undelimited bytes being held.
func (f *Framer) Buffered() int { return len(f.buf) }

// Reset drops any partial line, e.g. when the connection is replaced.
func (f *Framer) Reset() {
	f.buf = nil
	f.discarding = false
}
