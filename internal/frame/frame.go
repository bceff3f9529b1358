// Package frame reassembles newline-terminated text lines from an
// arbitrarily chunked byte stream.
//
// Accumulation happens at the byte level rather than with a line-buffered
// text reader: a single line may carry a large inline payload (for example a
// base64-encoded image) that arrives split across many reads, and it must be
// reassembled before it is decoded as text.
package frame

import (
	"bytes"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/wagiedev/agentbridge/internal/errors"
)

// DefaultMaxBufferSize is the ceiling for unterminated buffered bytes.
const DefaultMaxBufferSize = 10 * 1024 * 1024 // 10MB

// Stats counts what an Assembler has done since it was created.
type Stats struct {
	Lines     int // lines returned to the caller
	Empty     int // terminated lines that were empty after trimming
	Dropped   int // lines dropped because they were not valid UTF-8
	Overflows int // times the buffer was discarded
}

// Assembler turns byte chunks into complete lines.
//
// An Assembler is not safe for concurrent use; each stream owns one.
type Assembler struct {
	buf   []byte
	max   int
	stats Stats
}

// New creates an Assembler whose unterminated buffer may hold at most
// maxBuffer bytes. A non-positive value selects DefaultMaxBufferSize.
func New(maxBuffer int) *Assembler {
	if maxBuffer <= 0 {
		maxBuffer = DefaultMaxBufferSize
	}

	return &Assembler{max: maxBuffer}
}

// Feed appends chunk and returns every line completed by it, in order.
//
// Lines are right-trimmed of whitespace; empty lines and lines that are not
// valid UTF-8 are dropped. If, after extracting lines, more than the
// configured ceiling of unterminated bytes remains, the buffer is cleared and
// a *errors.BufferOverflowError is returned alongside any lines already
// extracted from this chunk.
func (a *Assembler) Feed(chunk []byte) ([]string, error) {
	a.buf = append(a.buf, chunk...)

	var lines []string

	start := 0

	for {
		idx := bytes.IndexByte(a.buf[start:], '\n')
		if idx < 0 {
			break
		}

		raw := a.buf[start : start+idx]
		start += idx + 1

		if !utf8.Valid(raw) {
			a.stats.Dropped++

			continue
		}

		line := strings.TrimRightFunc(string(raw), unicode.IsSpace)
		if line == "" {
			a.stats.Empty++

			continue
		}

		a.stats.Lines++
		lines = append(lines, line)
	}

	if start > 0 {
		// Shift the unterminated tail to the front, reusing the backing array.
		n := copy(a.buf, a.buf[start:])
		a.buf = a.buf[:n]
	}

	if len(a.buf) > a.max {
		discarded := len(a.buf)
		a.Reset()
		a.stats.Overflows++

		return lines, &errors.BufferOverflowError{Discarded: discarded, Limit: a.max}
	}

	return lines, nil
}

// Len returns the number of buffered bytes not yet terminated.
func (a *Assembler) Len() int {
	return len(a.buf)
}

// Reset discards any buffered bytes and releases the backing array.
func (a *Assembler) Reset() {
	a.buf = nil
}

// Stats returns a snapshot of the assembler's counters.
func (a *Assembler) Stats() Stats {
	return a.stats
}

// Limit returns the configured buffer ceiling.
func (a *Assembler) Limit() int {
	return a.max
}
