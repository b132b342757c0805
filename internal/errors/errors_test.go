package errors

import (
	"fmt"
	"io"
	"net"
	"os"
	"syscall"
	"testing"
)

func TestProvisionError_Format(t *testing.T) {
	tests := []struct {
		name string
		err  ProvisionError
		want string
	}{
		{
			name: "with-output",
			err: ProvisionError{
				Op: "install", Port: "COM7",
				Output: "ComDB: can't open key\n",
				Err:    fmt.Errorf("exit status 1"),
			},
			want: "provision install COM7: exit status 1: ComDB: can't open key",
		},
		{
			name: "no-output",
			err:  ProvisionError{Op: "remove", Port: "COM9", Err: fmt.Errorf("exit status 2")},
			want: "provision remove COM9: exit status 2",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestProvisionError_Unwrap(t *testing.T) {
	inner := fmt.Errorf("exec: not found")
	err := WrapProvision("install", "COM7", "", inner)
	if !Is(err, inner) {
		t.Error("should unwrap to inner error")
	}
}

func TestStartError_Format(t *testing.T) {
	err := &StartError{Port: "COM10", Err: fmt.Errorf("connection refused")}
	want := "start session COM10: connection refused"
	if got := err.Error(); got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestNetworkError_Unwrap(t *testing.T) {
	err := Wrap("dial", "192.168.1.100:5000", io.EOF)
	if !Is(err, io.EOF) {
		t.Error("should unwrap to io.EOF")
	}
	want := "dial 192.168.1.100:5000: EOF"
	if got := err.Error(); got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestIsClosed(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"eof", io.EOF, true},
		{"closed-pipe", io.ErrClosedPipe, true},
		{"net-closed", net.ErrClosed, true},
		{"file-closed", os.ErrClosed, true},
		{"epipe", syscall.EPIPE, true},
		{"conn-reset", syscall.ECONNRESET, true},
		{"op-error", &net.OpError{Op: "read", Err: net.ErrClosed}, true},
		{"wrapped", fmt.Errorf("read: %w", net.ErrClosed), true},
		{"other", fmt.Errorf("boom"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsClosed(tt.err); got != tt.want {
				t.Errorf("IsClosed(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestIsTimeout(t *testing.T) {
	if !IsTimeout(os.ErrDeadlineExceeded) {
		t.Error("deadline exceeded should be a timeout")
	}
	if !IsTimeout(fmt.Errorf("read: %w", os.ErrDeadlineExceeded)) {
		t.Error("wrapped deadline exceeded should be a timeout")
	}
	if IsTimeout(io.EOF) {
		t.Error("EOF is not a timeout")
	}
	if IsTimeout(nil) {
		t.Error("nil is not a timeout")
	}
}

func TestSentinels(t *testing.T) {
	wrapped := fmt.Errorf("create: %w", ErrAlreadyExists)
	if !Is(wrapped, ErrAlreadyExists) {
		t.Error("wrapped sentinel should match")
	}
	if Is(ErrNotFound, ErrAlreadyExists) {
		t.Error("distinct sentinels should not match")
	}
}
