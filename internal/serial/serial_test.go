package serial

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/creack/pty"
	"github.com/stretchr/testify/require"

	cberr "combridge/internal/errors"
	"combridge/internal/pump"
)

func TestDeviceOpener_ReadWrite(t *testing.T) {
	master, slave, err := pty.Open()
	require.NoError(t, err)
	t.Cleanup(func() { master.Close(); slave.Close() })

	port, err := DeviceOpener{}.Open(Config{
		Name:         slave.Name(),
		Baud:         115200,
		PollInterval: 100 * time.Millisecond,
	})
	require.NoError(t, err)
	t.Cleanup(func() { port.Close() })

	// Device → port
	_, err = master.Write([]byte("ping"))
	require.NoError(t, err)

	buf := make([]byte, 16)
	n := readWithRetry(t, port, buf, time.Second)
	require.Equal(t, "ping", string(buf[:n]))

	// Port → device
	_, err = port.Write([]byte("pong"))
	require.NoError(t, err)

	n, err = master.Read(buf)
	require.NoError(t, err)
	require.Equal(t, "pong", string(buf[:n]))
}

func TestDeviceOpener_ReadTimeoutIsNotEOF(t *testing.T) {
	master, slave, err := pty.Open()
	require.NoError(t, err)
	t.Cleanup(func() { master.Close(); slave.Close() })

	port, err := DeviceOpener{}.Open(Config{
		Name:         slave.Name(),
		Baud:         9600,
		PollInterval: 100 * time.Millisecond,
	})
	require.NoError(t, err)
	t.Cleanup(func() { port.Close() })

	start := time.Now()
	buf := make([]byte, 8)
	n, err := port.Read(buf)

	require.Zero(t, n)
	require.Error(t, err)
	require.True(t, cberr.IsTimeout(err), "quiet line should read as a timeout, got %v", err)
	require.False(t, cberr.IsClosed(err), "a timeout must not look like a closed handle")
	require.Less(t, time.Since(start), time.Second, "bounded read took too long")
}

func TestDevPort_CloseIdempotent(t *testing.T) {
	master, slave, err := pty.Open()
	require.NoError(t, err)
	t.Cleanup(func() { master.Close(); slave.Close() })

	port, err := DeviceOpener{}.Open(Config{Name: slave.Name(), Baud: 9600})
	require.NoError(t, err)

	require.NoError(t, port.Close())
	require.NoError(t, port.Close(), "second close must be a no-op")
}

// TestDeviceOpener_FeedsPump pumps from a pty-backed port into an
// in-memory sink, covering the bounded-read path the session relies on.
func TestDeviceOpener_FeedsPump(t *testing.T) {
	master, slave, err := pty.Open()
	require.NoError(t, err)
	t.Cleanup(func() { master.Close(); slave.Close() })

	port, err := DeviceOpener{}.Open(Config{
		Name:         slave.Name(),
		Baud:         115200,
		PollInterval: 50 * time.Millisecond,
	})
	require.NoError(t, err)
	t.Cleanup(func() { port.Close() })

	sink, sinkPeer := net.Pipe()
	t.Cleanup(func() { sink.Close(); sinkPeer.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	resCh := make(chan pump.Result, 1)
	p := &pump.Pump{Name: "pty serial→net", PollInterval: 50 * time.Millisecond}
	go func() { resCh <- p.Run(ctx, port, sink) }()

	_, err = master.Write([]byte("telemetry"))
	require.NoError(t, err)

	got := make([]byte, 9)
	sinkPeer.SetReadDeadline(time.Now().Add(2 * time.Second)) //nolint:errcheck
	_, err = sinkPeer.Read(got)
	require.NoError(t, err)
	require.Equal(t, "telemetry", string(got))

	cancel()
	select {
	case res := <-resCh:
		require.Equal(t, pump.Cancelled, res.Cause)
	case <-time.After(time.Second):
		t.Fatal("pump did not observe cancellation")
	}
}

func readWithRetry(t *testing.T, port Port, buf []byte, within time.Duration) int {
	t.Helper()
	deadline := time.Now().Add(within)
	for {
		n, err := port.Read(buf)
		if n > 0 {
			return n
		}
		if err != nil && !cberr.IsTimeout(err) {
			t.Fatalf("read failed: %v", err)
		}
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for data")
		}
	}
}
