// Package session binds one serial handle and one network connection
// into a managed lifecycle unit: two byte pumps, one per direction,
// started together and torn down together.
//
// A session owns its two handles exclusively.  Nothing outside this
// package touches them; they are borrowed by the pumps while the
// session runs and closed exactly once on teardown.
package session

import (
	"context"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	cberr "combridge/internal/errors"
	"combridge/internal/metrics"
	"combridge/internal/pump"
	"combridge/internal/serial"
	"combridge/internal/transport"
	"combridge/util"
)

// DefaultStopTimeout bounds the join phase of a teardown before the
// handles are force-closed to unblock a stuck pump.
const DefaultStopTimeout = 2 * time.Second

// State is a session's lifecycle phase.  Transitions are monotonic:
// Starting → Running → Stopping → Stopped, no state is re-entered.
type State int32

const (
	Starting State = iota
	Running
	Stopping
	Stopped
)

func (s State) String() string {
	switch s {
	case Starting:
		return "Starting"
	case Running:
		return "Running"
	case Stopping:
		return "Stopping"
	case Stopped:
		return "Stopped"
	default:
		return "Unknown"
	}
}

// Config describes one route.
type Config struct {
	PortName     string // user-facing serial identifier, registry key
	InternalName string // the other end of the provisioned pair
	TargetAddr   string // network peer, "host:port"
	Baud         int
	PollInterval time.Duration // cancellation latency bound for both pumps
	StopTimeout  time.Duration // join bound during teardown; 0 = DefaultStopTimeout
}

// Session routes bytes between one serial port and one TCP peer.
type Session struct {
	cfg    Config
	opener serial.Opener
	dialer transport.Dialer
	logger *util.Logger
	stats  *metrics.Collector

	state atomic.Int32

	cancel    context.CancelFunc
	port      serial.Port
	conn      net.Conn
	closePort sync.Once
	closeConn sync.Once

	wg       sync.WaitGroup
	exits    chan pumpExit
	tearOnce sync.Once
	done     chan struct{}

	onFailure func(res pump.Result)
}

type pumpExit struct {
	dir string
	res pump.Result
}

// New creates a session in the Starting state.  Call [Session.Start]
// to open the handles and begin routing.
func New(cfg Config, opener serial.Opener, dialer transport.Dialer, logger *util.Logger) *Session {
	if cfg.StopTimeout <= 0 {
		cfg.StopTimeout = DefaultStopTimeout
	}
	s := &Session{
		cfg:    cfg,
		opener: opener,
		dialer: dialer,
		logger: logger,
		stats:  metrics.New(),
		done:   make(chan struct{}),
	}
	s.state.Store(int32(Starting))
	return s
}

// OnFailure registers a callback invoked after an autonomous teardown,
// i.e. a pump died while the session was Running.  Must be set before
// Start.
func (s *Session) OnFailure(fn func(res pump.Result)) { s.onFailure = fn }

// PortName returns the user-facing serial identifier.
func (s *Session) PortName() string { return s.cfg.PortName }

// Target returns the network peer address.
func (s *Session) Target() string { return s.cfg.TargetAddr }

// Baud returns the configured line speed.
func (s *Session) Baud() int { return s.cfg.Baud }

// State returns the current lifecycle phase.
func (s *Session) State() State { return State(s.state.Load()) }

// Stats returns the session's byte counters.
func (s *Session) Stats() metrics.Snapshot { return s.stats.Snapshot() }

// Done is closed once the session has fully stopped and both handles
// are released.
func (s *Session) Done() <-chan struct{} { return s.done }

// Start opens the serial handle, dials the target, and launches both
// pumps.  If either open fails the successful handle is released and
// the session never reaches Running.
func (s *Session) Start(ctx context.Context) error {
	port, err := s.opener.Open(serial.Config{
		Name:         s.cfg.PortName,
		Baud:         s.cfg.Baud,
		PollInterval: s.cfg.PollInterval,
	})
	if err != nil {
		s.abortStart()
		return err
	}

	conn, err := s.dialer.Dial(ctx, "tcp", s.cfg.TargetAddr)
	if err != nil {
		port.Close() //nolint:errcheck
		s.abortStart()
		return cberr.Wrap("dial", s.cfg.TargetAddr, err)
	}

	s.port = port
	s.conn = conn

	// Pumps outlive the Start call; their lifetime is ended by Stop
	// or by an autonomous teardown, not by the creation context.
	pumpCtx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.exits = make(chan pumpExit, 2)

	s.launch(pumpCtx, "serial→net", s.port, s.conn, s.stats.AddToNet)
	s.launch(pumpCtx, "net→serial", s.conn, s.port, s.stats.AddFromNet)
	go s.supervise()

	s.state.Store(int32(Running))
	s.logger.Info("session %s: routing to %s at %d baud",
		s.cfg.PortName, s.cfg.TargetAddr, s.cfg.Baud)
	return nil
}

// Stop cancels both pumps, joins them, and closes both handles.
// Idempotent: a second call while Stopping or Stopped returns
// immediately.
func (s *Session) Stop() {
	if !s.state.CompareAndSwap(int32(Running), int32(Stopping)) {
		return
	}
	s.teardown()
}

// ── internals ────────────────────────────────────────────────────────

func (s *Session) launch(ctx context.Context, dir string, src io.Reader, dst io.Writer, count func(int64)) {
	p := &pump.Pump{
		Name:         s.cfg.PortName + " " + dir,
		PollInterval: s.cfg.PollInterval,
		Logger:       s.logger,
		Count:        count,
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		res := p.Run(ctx, src, dst)
		s.logger.Debug("session %s: %s pump exited: %s", s.cfg.PortName, dir, res.Cause)
		s.exits <- pumpExit{dir: dir, res: res}
	}()
}

// supervise watches both pump exits.  The first failure while Running
// triggers the same teardown as Stop, then reports upward.
func (s *Session) supervise() {
	for i := 0; i < 2; i++ {
		ex := <-s.exits
		if !ex.res.Failure() {
			continue
		}
		if !s.state.CompareAndSwap(int32(Running), int32(Stopping)) {
			continue // owner-initiated stop already in progress
		}
		s.stats.RecordError(ex.res.Cause.String())
		s.logger.Warn("session %s: %s pump terminated (%s): %v",
			s.cfg.PortName, ex.dir, ex.res.Cause, ex.res.Err)
		s.teardown()
		if s.onFailure != nil {
			s.onFailure(ex.res)
		}
	}
}

// teardown runs the fixed shutdown sequence: cancel both pumps, join
// both (bounded), then close serial before socket.  A pump that misses
// the join deadline is unblocked by the forced handle close.
func (s *Session) teardown() {
	s.tearOnce.Do(func() {
		s.cancel()

		joined := make(chan struct{})
		go func() { s.wg.Wait(); close(joined) }()

		select {
		case <-joined:
		case <-time.After(s.cfg.StopTimeout):
			s.logger.Warn("session %s: pumps still running after %v, forcing handle close",
				s.cfg.PortName, s.cfg.StopTimeout)
			s.closeHandles()
			<-joined
		}

		s.closeHandles()
		s.state.Store(int32(Stopped))
		st := s.stats.Snapshot()
		s.logger.Info("session %s: stopped (%d B to net, %d B from net)",
			s.cfg.PortName, st.BytesToNet, st.BytesFromNet)
		close(s.done)
	})
}

func (s *Session) closeHandles() {
	s.closePort.Do(func() {
		if err := s.port.Close(); err != nil {
			s.logger.Debug("session %s: serial close: %v", s.cfg.PortName, err)
		}
	})
	s.closeConn.Do(func() {
		if err := s.conn.Close(); err != nil {
			s.logger.Debug("session %s: socket close: %v", s.cfg.PortName, err)
		}
	})
}

// abortStart marks a session that never reached Running as terminal.
func (s *Session) abortStart() {
	s.state.Store(int32(Stopped))
	close(s.done)
}
