// Package serial opens the serial side of a route.
//
// Ports are opened with 8-N-1 framing at the requested baud rate and a
// read timeout matching the route's poll interval, so a pump blocked
// on a quiet line still observes cancellation promptly.
package serial

import (
	"io"
	"sync"
	"time"

	tarm "github.com/tarm/serial"

	cberr "combridge/internal/errors"
)

// DefaultPollInterval bounds a single blocking read on the device.
const DefaultPollInterval = 200 * time.Millisecond

// Config describes how to open one serial port.
type Config struct {
	Name         string        // device name, e.g. "COM7" or "/dev/ttyUSB0"
	Baud         int           // line speed; framing is always 8-N-1
	PollInterval time.Duration // bounded-read interval; 0 = DefaultPollInterval
}

// Port is an open serial handle.  Close is idempotent.
type Port interface {
	io.ReadWriteCloser
}

// Opener materializes serial handles.  Tests substitute an in-memory
// implementation; production code uses [DeviceOpener].
type Opener interface {
	Open(cfg Config) (Port, error)
}

// DeviceOpener opens real devices through the OS serial driver.
type DeviceOpener struct{}

// Open opens cfg.Name at cfg.Baud with 8-N-1 framing.
func (DeviceOpener) Open(cfg Config) (Port, error) {
	poll := cfg.PollInterval
	if poll <= 0 {
		poll = DefaultPollInterval
	}
	dev, err := tarm.OpenPort(&tarm.Config{
		Name:        cfg.Name,
		Baud:        cfg.Baud,
		Size:        8,
		Parity:      tarm.ParityNone,
		StopBits:    tarm.Stop1,
		ReadTimeout: poll,
	})
	if err != nil {
		return nil, cberr.Wrap("open", cfg.Name, err)
	}
	return &devPort{dev: dev}, nil
}

// devPort adapts the driver handle: poll expiries are reported as
// timeouts rather than EOF, and Close is idempotent.
type devPort struct {
	dev      *tarm.Port
	once     sync.Once
	closeErr error
}

func (p *devPort) Read(b []byte) (int, error) {
	n, err := p.dev.Read(b)
	// The driver reports an expired ReadTimeout as io.EOF.  A serial
	// line has no EOF of its own, so surface it as a timeout and let
	// the caller poll again.
	if err == io.EOF {
		return n, timeoutError{}
	}
	return n, err
}

func (p *devPort) Write(b []byte) (int, error) {
	return p.dev.Write(b)
}

func (p *devPort) Close() error {
	p.once.Do(func() { p.closeErr = p.dev.Close() })
	return p.closeErr
}

// timeoutError satisfies net.Error so the generic timeout
// classification recognizes it.
type timeoutError struct{}

func (timeoutError) Error() string   { return "serial read timed out" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }
