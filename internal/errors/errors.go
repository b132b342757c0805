// Package errors provides domain-specific error types for combridge.
//
// These types carry structured context (operation, port, captured
// output) that helps callers decide how to handle failures and provides
// better diagnostics than plain string wrapping.
package errors

import (
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strings"
	"syscall"
)

// ── Sentinel errors ──────────────────────────────────────────────────

var (
	// ErrAlreadyExists is returned by the registry when a route is
	// created under a port name that is already in use.
	ErrAlreadyExists = errors.New("route already exists")

	// ErrNotFound is returned by the registry when the named route is
	// not registered.
	ErrNotFound = errors.New("route not found")

	// ErrTimeout indicates a bounded wait expired.
	ErrTimeout = errors.New("operation timed out")
)

// ── Structured error types ───────────────────────────────────────────

// ProvisionError represents a failure of the external port-pair
// provisioning tool.
type ProvisionError struct {
	Op     string // "install" or "remove"
	Port   string // the user-facing port name involved
	Output string // captured tool output, if any
	Err    error  // underlying error (exec failure, non-zero exit)
}

func (e *ProvisionError) Error() string {
	s := fmt.Sprintf("provision %s %s: %v", e.Op, e.Port, e.Err)
	if out := strings.TrimSpace(e.Output); out != "" {
		s += ": " + out
	}
	return s
}

func (e *ProvisionError) Unwrap() error { return e.Err }

// StartError represents a session that failed to reach its running
// state (serial open or target dial failed).
type StartError struct {
	Port string // the user-facing port name
	Err  error
}

func (e *StartError) Error() string {
	return fmt.Sprintf("start session %s: %v", e.Port, e.Err)
}

func (e *StartError) Unwrap() error { return e.Err }

// NetworkError represents a failure in a network or serial I/O
// operation.
type NetworkError struct {
	Op   string // operation: "open", "dial", "read", "write"
	Addr string // device name or network address involved
	Err  error  // underlying error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Addr, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// ── Constructors ─────────────────────────────────────────────────────

// Wrap creates a NetworkError.
func Wrap(op, addr string, err error) *NetworkError {
	return &NetworkError{Op: op, Addr: addr, Err: err}
}

// WrapProvision creates a ProvisionError.
func WrapProvision(op, port, output string, err error) *ProvisionError {
	return &ProvisionError{Op: op, Port: port, Output: output, Err: err}
}

// ── Classification helpers ───────────────────────────────────────────

// IsClosed reports whether err indicates a handle that was closed or a
// peer that went away, as opposed to an unexpected I/O fault.
func IsClosed(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrClosedPipe) ||
		errors.Is(err, net.ErrClosed) ||
		errors.Is(err, os.ErrClosed) ||
		errors.Is(err, syscall.EPIPE) ||
		errors.Is(err, syscall.ECONNRESET) {
		return true
	}
	// net.OpError wrapping "use of closed network connection"
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return errors.Is(opErr.Err, net.ErrClosed)
	}
	return false
}

// IsTimeout reports whether err is a deadline expiry from a bounded
// read or write.
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, os.ErrDeadlineExceeded) || errors.Is(err, ErrTimeout) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// ── Re-exports for convenience ───────────────────────────────────────
//
// These allow callers to use combridge/internal/errors as a drop-in
// replacement for the standard library in common operations.

// As is [errors.As].
func As(err error, target interface{}) bool { return errors.As(err, target) }

// Is is [errors.Is].
func Is(err, target error) bool { return errors.Is(err, target) }

// New is [errors.New].
func New(text string) error { return errors.New(text) }

// Unwrap is [errors.Unwrap].
func Unwrap(err error) error { return errors.Unwrap(err) }

// Join is [errors.Join].
func Join(errs ...error) error { return errors.Join(errs...) }
