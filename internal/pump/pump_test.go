package pump

import (
	"bytes"
	"context"
	"io"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"combridge/util"
)

// pipes returns a pump wired between two in-memory duplex pairs:
// the test writes into srcPeer and reads from dstPeer.
func pipes() (src, srcPeer, dst, dstPeer net.Conn) {
	src, srcPeer = net.Pipe()
	dst, dstPeer = net.Pipe()
	return
}

func startPump(ctx context.Context, p *Pump, src io.Reader, dst io.Writer) chan Result {
	resCh := make(chan Result, 1)
	go func() { resCh <- p.Run(ctx, src, dst) }()
	return resCh
}

func waitResult(t *testing.T, resCh chan Result, within time.Duration) Result {
	t.Helper()
	select {
	case res := <-resCh:
		return res
	case <-time.After(within):
		t.Fatal("pump did not terminate in time")
		return Result{}
	}
}

func TestPump_ForwardsInOrder(t *testing.T) {
	src, srcPeer, dst, dstPeer := pipes()
	defer srcPeer.Close()
	defer dstPeer.Close()
	defer src.Close()
	defer dst.Close()

	p := &Pump{Name: "test", PollInterval: 50 * time.Millisecond, Logger: util.NewLogger(0)}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	resCh := startPump(ctx, p, src, dst)

	chunks := [][]byte{
		[]byte("hello "),
		[]byte("serial "),
		[]byte("world"),
		{0x00, 0xFF, 0x7E, 0x7D}, // binary payloads pass through verbatim
	}
	var want bytes.Buffer
	go func() {
		for _, c := range chunks {
			srcPeer.Write(c) //nolint:errcheck
		}
	}()
	for _, c := range chunks {
		want.Write(c)
	}

	got := make([]byte, want.Len())
	if _, err := io.ReadFull(dstPeer, got); err != nil {
		t.Fatalf("reading forwarded bytes: %v", err)
	}
	if !bytes.Equal(got, want.Bytes()) {
		t.Errorf("forwarded %q, want %q", got, want.Bytes())
	}

	// Closing the source terminates the pump with SourceClosed.
	srcPeer.Close()
	res := waitResult(t, resCh, time.Second)
	if res.Cause != SourceClosed {
		t.Errorf("cause = %v, want %v", res.Cause, SourceClosed)
	}
}

func TestPump_CancelWhileIdle(t *testing.T) {
	src, srcPeer, dst, dstPeer := pipes()
	defer srcPeer.Close()
	defer dstPeer.Close()
	defer src.Close()
	defer dst.Close()

	p := &Pump{Name: "idle", PollInterval: 20 * time.Millisecond}
	ctx, cancel := context.WithCancel(context.Background())
	resCh := startPump(ctx, p, src, dst)

	cancel()

	// The cancel must be observed within roughly one poll interval.
	res := waitResult(t, resCh, 500*time.Millisecond)
	if res.Cause != Cancelled {
		t.Errorf("cause = %v, want %v", res.Cause, Cancelled)
	}
}

func TestPump_CancelFlushesChunkInFlight(t *testing.T) {
	src, srcPeer, dst, dstPeer := pipes()
	defer srcPeer.Close()
	defer dstPeer.Close()
	defer src.Close()
	defer dst.Close()

	p := &Pump{Name: "flush", PollInterval: 20 * time.Millisecond}
	ctx, cancel := context.WithCancel(context.Background())
	resCh := startPump(ctx, p, src, dst)

	// The pump reads the chunk, then blocks writing to the unread
	// sink.  Cancelling now must not drop the chunk.
	go srcPeer.Write([]byte("tail")) //nolint:errcheck
	time.Sleep(50 * time.Millisecond)
	cancel()

	got := make([]byte, 4)
	if _, err := io.ReadFull(dstPeer, got); err != nil {
		t.Fatalf("chunk in flight was dropped: %v", err)
	}
	if string(got) != "tail" {
		t.Errorf("got %q, want %q", got, "tail")
	}

	res := waitResult(t, resCh, time.Second)
	if res.Cause != Cancelled {
		t.Errorf("cause = %v, want %v", res.Cause, Cancelled)
	}
}

func TestPump_SinkClosed(t *testing.T) {
	src, srcPeer, dst, dstPeer := pipes()
	defer srcPeer.Close()
	defer src.Close()
	defer dst.Close()

	p := &Pump{Name: "sink", PollInterval: 20 * time.Millisecond}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	resCh := startPump(ctx, p, src, dst)

	dstPeer.Close()
	go srcPeer.Write([]byte("doomed")) //nolint:errcheck

	res := waitResult(t, resCh, time.Second)
	if res.Cause != SinkClosed {
		t.Errorf("cause = %v, want %v (err=%v)", res.Cause, SinkClosed, res.Err)
	}
	if res.Err == nil {
		t.Error("SinkClosed should carry the underlying error")
	}
}

func TestPump_SourceClosedLocally(t *testing.T) {
	src, srcPeer, dst, dstPeer := pipes()
	defer srcPeer.Close()
	defer dstPeer.Close()
	defer dst.Close()

	p := &Pump{Name: "local-close", PollInterval: 20 * time.Millisecond}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	resCh := startPump(ctx, p, src, dst)

	// Closing the handle the pump reads from (without cancelling)
	// looks like a dead source.
	time.Sleep(30 * time.Millisecond)
	src.Close()

	res := waitResult(t, resCh, time.Second)
	if res.Cause != SourceClosed {
		t.Errorf("cause = %v, want %v", res.Cause, SourceClosed)
	}
}

func TestPump_CountsForwardedBytes(t *testing.T) {
	src, srcPeer, dst, dstPeer := pipes()
	defer srcPeer.Close()
	defer dstPeer.Close()
	defer src.Close()
	defer dst.Close()

	var total atomic.Int64
	p := &Pump{
		Name:         "count",
		PollInterval: 20 * time.Millisecond,
		Count:        func(n int64) { total.Add(n) },
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	resCh := startPump(ctx, p, src, dst)

	go srcPeer.Write([]byte("0123456789")) //nolint:errcheck
	got := make([]byte, 10)
	if _, err := io.ReadFull(dstPeer, got); err != nil {
		t.Fatal(err)
	}

	srcPeer.Close()
	waitResult(t, resCh, time.Second)

	if total.Load() != 10 {
		t.Errorf("counted %d bytes, want 10", total.Load())
	}
}

func TestCause_String(t *testing.T) {
	tests := []struct {
		c    Cause
		want string
	}{
		{Cancelled, "cancelled"},
		{SourceClosed, "source closed"},
		{SinkClosed, "sink closed"},
		{IOError, "io error"},
		{Cause(99), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.c.String(); got != tt.want {
			t.Errorf("Cause(%d).String() = %q, want %q", tt.c, got, tt.want)
		}
	}
}

func TestResult_Failure(t *testing.T) {
	if (Result{Cause: Cancelled}).Failure() {
		t.Error("cancelled is not a failure")
	}
	if !(Result{Cause: IOError}).Failure() {
		t.Error("io error is a failure")
	}
}
