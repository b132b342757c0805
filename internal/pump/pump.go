// Package pump implements the unidirectional copy loop at the heart of
// a route: read a chunk from one stream, write it to the other, repeat
// until cancelled or the stream fails.
//
// A pump borrows its endpoints from the owning session.  It never
// opens or closes them.  Reads are bounded so that cancellation is
// observed within one poll interval even when no data is flowing.
package pump

import (
	"context"
	"io"
	"time"

	cberr "combridge/internal/errors"
	"combridge/util"
)

// DefaultPollInterval is the longest a pump will sit in a blocking
// read before re-checking for cancellation.
const DefaultPollInterval = 200 * time.Millisecond

// Cause reports why a pump terminated.
type Cause int

const (
	// Cancelled means the owner requested termination.
	Cancelled Cause = iota
	// SourceClosed means the readable side reached EOF or was closed.
	SourceClosed
	// SinkClosed means the writable side was closed or reset.
	SinkClosed
	// IOError means an unexpected read or write fault.
	IOError
)

func (c Cause) String() string {
	switch c {
	case Cancelled:
		return "cancelled"
	case SourceClosed:
		return "source closed"
	case SinkClosed:
		return "sink closed"
	case IOError:
		return "io error"
	default:
		return "unknown"
	}
}

// Result is the terminal outcome of a pump run.
type Result struct {
	Cause Cause
	Err   error // underlying fault for SinkClosed/SourceClosed/IOError
}

// Failure reports whether the pump died for a reason other than an
// owner-initiated cancel.
func (r Result) Failure() bool { return r.Cause != Cancelled }

// deadlineReader is satisfied by net.Conn and net.Pipe endpoints.
// Sources without deadline support must bound their own reads (the
// serial wrapper is opened with an equivalent read timeout).
type deadlineReader interface {
	SetReadDeadline(t time.Time) error
}

// Pump copies bytes from a source to a sink in strict arrival order.
type Pump struct {
	Name         string        // direction label for logs, e.g. "COM7 serial→net"
	PollInterval time.Duration // cancellation latency bound; 0 = DefaultPollInterval
	Logger       *util.Logger
	Count        func(n int64) // optional byte accounting, invoked after each forwarded chunk
}

// Run copies from src to dst until ctx is cancelled or either stream
// fails.  A chunk already read when the cancel arrives is always
// forwarded before the pump exits; failed I/O is never retried.
func (p *Pump) Run(ctx context.Context, src io.Reader, dst io.Writer) Result {
	buf := util.GetBuf()
	defer util.PutBuf(buf)
	b := *buf

	poll := p.PollInterval
	if poll <= 0 {
		poll = DefaultPollInterval
	}
	dr, bounded := src.(deadlineReader)

	for {
		select {
		case <-ctx.Done():
			return Result{Cause: Cancelled}
		default:
		}

		if bounded {
			dr.SetReadDeadline(time.Now().Add(poll)) //nolint:errcheck
		}

		n, rerr := src.Read(b)
		if n > 0 {
			if _, werr := dst.Write(b[:n]); werr != nil {
				return p.writeResult(ctx, werr)
			}
			if p.Count != nil {
				p.Count(int64(n))
			}
			if p.Logger != nil {
				p.Logger.Debug("%s: forwarded %d bytes", p.Name, n)
			}
		}
		if rerr == nil {
			continue
		}

		switch {
		case cberr.IsTimeout(rerr):
			// Poll expiry is the cancellation check point, not a failure.
			continue
		case ctx.Err() != nil:
			// A handle closed out from under us during teardown is an
			// ordinary stop, not a fault.
			return Result{Cause: Cancelled}
		case cberr.IsClosed(rerr):
			return Result{Cause: SourceClosed, Err: rerr}
		default:
			return Result{Cause: IOError, Err: rerr}
		}
	}
}

func (p *Pump) writeResult(ctx context.Context, werr error) Result {
	switch {
	case ctx.Err() != nil && cberr.IsClosed(werr):
		return Result{Cause: Cancelled}
	case cberr.IsClosed(werr):
		return Result{Cause: SinkClosed, Err: werr}
	default:
		return Result{Cause: IOError, Err: werr}
	}
}
