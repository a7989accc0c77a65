// Package drain consumes a diagnostic stream line by line.
package drain

import (
	"bufio"
	"errors"
	"io"
	"os"
	"strings"

	dterrors "github.com/five82/dovetail/internal/errors"
	"github.com/five82/dovetail/internal/logging"
)

// DefaultExcerptLines is the number of trailing lines kept for failure reports.
const DefaultExcerptLines = 20

// Options control a drain.
type Options struct {
	// ExcerptLines bounds the retained tail. Zero means DefaultExcerptLines.
	ExcerptLines int
	// OnLine, if set, sees every line after it is written.
	OnLine func(line string)
	// Logger receives the one-time diagnostic write fault.
	Logger *logging.Logger
	// Name labels dst in the fault message.
	Name string
}

// Result summarizes a finished drain.
type Result struct {
	Lines   int
	Excerpt []string
	// WriteErr is the first write failure on dst, as a KindDiagnosticIO error.
	WriteErr error
}

// ExcerptText joins the excerpt with newlines.
func (r Result) ExcerptText() string {
	return strings.Join(r.Excerpt, "\n")
}

type flusher interface {
	Flush() error
}

// Drain reads src until EOF or close, writing each line to dst as soon as it
// is complete. Both '\n' and '\r' end a line; empty lines are dropped.
// After the first failed write to dst, further writes are skipped but src is
// still read to the end so the producer never blocks on a full pipe.
// dst may be nil.
func Drain(src io.Reader, dst io.Writer, opts Options) Result {
	n := opts.ExcerptLines
	if n <= 0 {
		n = DefaultExcerptLines
	}
	ring := newRing(n)
	var res Result

	r := bufio.NewReader(src)
	var line []byte
	emit := func() {
		if len(line) == 0 {
			return
		}
		text := string(line)
		line = line[:0]
		res.Lines++
		ring.add(text)
		if dst != nil && res.WriteErr == nil {
			if err := writeLine(dst, text); err != nil {
				res.WriteErr = dterrors.NewDiagnosticIOError(opts.Name, err)
				opts.Logger.Debug("%v", res.WriteErr)
			}
		}
		if opts.OnLine != nil {
			opts.OnLine(text)
		}
	}

	for {
		b, err := r.ReadByte()
		if err != nil {
			emit()
			if !errors.Is(err, io.EOF) && !errors.Is(err, os.ErrClosed) {
				opts.Logger.Debug("drain %s: read stopped: %v", opts.Name, err)
			}
			break
		}
		if b == '\n' || b == '\r' {
			emit()
			continue
		}
		line = append(line, b)
	}

	res.Excerpt = ring.lines()
	return res
}

func writeLine(dst io.Writer, text string) error {
	if _, err := io.WriteString(dst, text+"\n"); err != nil {
		return err
	}
	if f, ok := dst.(flusher); ok {
		return f.Flush()
	}
	return nil
}

// ring keeps the most recent len(buf) lines.
type ring struct {
	buf  []string
	next int
	full bool
}

func newRing(n int) *ring {
	return &ring{buf: make([]string, n)}
}

func (r *ring) add(s string) {
	r.buf[r.next] = s
	r.next = (r.next + 1) % len(r.buf)
	if r.next == 0 {
		r.full = true
	}
}

func (r *ring) lines() []string {
	if !r.full {
		return append([]string(nil), r.buf[:r.next]...)
	}
	out := make([]string, 0, len(r.buf))
	out = append(out, r.buf[r.next:]...)
	return append(out, r.buf[:r.next]...)
}
