// Package registry is the process-wide table of active routes and the
// only control surface for creating, enumerating, and destroying them.
//
// The backing map is never exposed; all structural mutation happens
// under one mutex, so at most one insert or remove proceeds at a time
// and enumeration never observes the table mid-mutation.
package registry

import (
	"context"
	"fmt"
	"sync"
	"time"

	cberr "combridge/internal/errors"
	"combridge/internal/provision"
	"combridge/internal/pump"
	"combridge/internal/serial"
	"combridge/internal/session"
	"combridge/internal/transport"
	"combridge/util"
)

// CreateRequest carries everything needed to set up one route.
type CreateRequest struct {
	PortName     string // user-facing serial identifier, unique key
	InternalName string // the paired endpoint handed to the provisioner
	TargetAddr   string // network peer, "host:port"
	Baud         int
}

// Route is a point-in-time snapshot of one registered route.
type Route struct {
	PortName     string
	Target       string
	Baud         int
	State        session.State
	BytesToNet   int64
	BytesFromNet int64
}

// Options configures a Registry.
type Options struct {
	Provisioner  provision.Provisioner
	Opener       serial.Opener
	Dialer       transport.Dialer
	Logger       *util.Logger
	PollInterval time.Duration // passed through to every session
	StopTimeout  time.Duration
}

// Registry maps user port names to live sessions.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*session.Session
	pending  map[string]struct{} // names reserved by an in-flight create
	order    []string            // insertion order, for deterministic listing

	prov   provision.Provisioner
	opener serial.Opener
	dialer transport.Dialer
	logger *util.Logger

	pollInterval time.Duration
	stopTimeout  time.Duration
}

// New creates an empty registry.
func New(opts Options) *Registry {
	return &Registry{
		sessions:     make(map[string]*session.Session),
		pending:      make(map[string]struct{}),
		prov:         opts.Provisioner,
		opener:       opts.Opener,
		dialer:       opts.Dialer,
		logger:       opts.Logger,
		pollInterval: opts.PollInterval,
		stopTimeout:  opts.StopTimeout,
	}
}

// Create provisions the port pair, starts a session for it, and
// registers it under req.PortName.  The route becomes visible to
// Delete, List, and Len only once its session is running.
//
// Failure modes, in order: ErrAlreadyExists if the key is taken,
// ProvisionError if the pair cannot be materialized (no session is
// constructed), StartError if the serial open or target dial fails;
// in which case the just-created pair is destroyed best-effort so no
// orphaned OS state is left behind.
func (r *Registry) Create(ctx context.Context, req CreateRequest) error {
	s := session.New(session.Config{
		PortName:     req.PortName,
		InternalName: req.InternalName,
		TargetAddr:   req.TargetAddr,
		Baud:         req.Baud,
		PollInterval: r.pollInterval,
		StopTimeout:  r.stopTimeout,
	}, r.opener, r.dialer, r.logger)
	s.OnFailure(func(res pump.Result) { r.evict(s, res) })

	// Reserve the key first so a concurrent create for the same name
	// fails fast instead of racing the provisioner.  The reservation
	// is not a route yet: until the session is running, Delete and
	// List do not see it.
	r.mu.Lock()
	if _, ok := r.sessions[req.PortName]; ok {
		r.mu.Unlock()
		return fmt.Errorf("create %s: %w", req.PortName, cberr.ErrAlreadyExists)
	}
	r.sessions[req.PortName] = s
	r.pending[req.PortName] = struct{}{}
	r.order = append(r.order, req.PortName)
	r.mu.Unlock()

	if err := r.prov.CreatePair(ctx, req.PortName, req.InternalName); err != nil {
		r.remove(req.PortName)
		return err
	}

	if err := s.Start(ctx); err != nil {
		r.remove(req.PortName)
		// Best-effort cleanup of the pair created above.
		if derr := r.prov.DestroyPair(ctx, req.PortName); derr != nil {
			r.logger.Warn("cleanup of pair %s after failed start: %v", req.PortName, derr)
		}
		return &cberr.StartError{Port: req.PortName, Err: err}
	}

	// Publish the route.  The reservation may already be gone if the
	// session died right after starting and evicted itself.
	r.mu.Lock()
	delete(r.pending, req.PortName)
	r.mu.Unlock()

	r.logger.Info("route %s → %s registered", req.PortName, req.TargetAddr)
	return nil
}

// Delete stops the named route, removes it from the table, and asks
// the provisioner to destroy the pair.  A destroy failure is degraded
// to a warning: the in-process bookkeeping is authoritative for what
// this application is still routing.
func (r *Registry) Delete(ctx context.Context, portName string) error {
	r.mu.Lock()
	s, ok := r.sessions[portName]
	// A name held by an in-flight create is not a route yet; stopping
	// a session that has not reached Running would strand it half
	// built, so the reservation stays with its creator.
	if _, creating := r.pending[portName]; !ok || creating {
		r.mu.Unlock()
		return fmt.Errorf("delete %s: %w", portName, cberr.ErrNotFound)
	}
	// Claim the entry while still holding the lock so a concurrent
	// delete of the same name reports NotFound instead of stopping
	// the session twice.
	r.removeLocked(portName)
	r.mu.Unlock()

	s.Stop()

	if err := r.prov.DestroyPair(ctx, portName); err != nil {
		r.logger.Warn("destroy pair %s: %v", portName, err)
	}

	r.logger.Info("route %s removed", portName)
	return nil
}

// List returns a point-in-time snapshot of every registered route, in
// insertion order.  Entries are individually consistent; routes
// created or deleted mid-call may or may not appear, and a route whose
// create has not yet completed is never listed.
func (r *Registry) List() []Route {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Route, 0, len(r.order))
	for _, name := range r.order {
		if _, creating := r.pending[name]; creating {
			continue
		}
		s, ok := r.sessions[name]
		if !ok {
			continue
		}
		st := s.Stats()
		out = append(out, Route{
			PortName:     name,
			Target:       s.Target(),
			Baud:         s.Baud(),
			State:        s.State(),
			BytesToNet:   st.BytesToNet,
			BytesFromNet: st.BytesFromNet,
		})
	}
	return out
}

// Len returns the number of registered routes.  Reservations held by
// in-flight creates are not counted.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions) - len(r.pending)
}

// ShutdownAll deletes every registered route.  Order across routes is
// unspecified; each individual delete follows the full Delete path.
func (r *Registry) ShutdownAll(ctx context.Context) error {
	r.mu.Lock()
	names := append([]string(nil), r.order...)
	r.mu.Unlock()

	var errs []error
	for _, name := range names {
		err := r.Delete(ctx, name)
		// A session may have evicted itself between the snapshot and
		// the delete.
		if err != nil && !cberr.Is(err, cberr.ErrNotFound) {
			errs = append(errs, err)
		}
	}
	return cberr.Join(errs...)
}

// ── internals ────────────────────────────────────────────────────────

// evict handles a session that tore itself down after a pump failure:
// drop the table entry and clean up the pair.
func (r *Registry) evict(s *session.Session, res pump.Result) {
	name := s.PortName()

	r.mu.Lock()
	cur, ok := r.sessions[name]
	if !ok || cur != s {
		r.mu.Unlock()
		return // already deleted through the normal path
	}
	r.removeLocked(name)
	r.mu.Unlock()

	r.logger.Warn("route %s failed (%s): %v, removed from registry",
		name, res.Cause, res.Err)

	if err := r.prov.DestroyPair(context.Background(), name); err != nil {
		r.logger.Warn("destroy pair %s: %v", name, err)
	}
}

func (r *Registry) remove(portName string) {
	r.mu.Lock()
	r.removeLocked(portName)
	r.mu.Unlock()
}

func (r *Registry) removeLocked(portName string) {
	delete(r.sessions, portName)
	delete(r.pending, portName)
	for i, n := range r.order {
		if n == portName {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}
