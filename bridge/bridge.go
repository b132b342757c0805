// Package bridge wires the registry, provisioner, and transport
// together and executes one CLI verb: create, delete, or list.
package bridge

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"combridge/config"
	cberr "combridge/internal/errors"
	"combridge/internal/provision"
	"combridge/internal/registry"
	"combridge/internal/serial"
	"combridge/internal/transport"
	"combridge/util"
)

// Bridge orchestrates a single combridge invocation.
type Bridge struct {
	Config      *config.Config
	Logger      *util.Logger
	Registry    *registry.Registry
	Provisioner provision.Provisioner
	Dialer      transport.Dialer
	Out         io.Writer // route listing output; default os.Stdout
}

// New builds a Bridge with production collaborators: the external
// provisioning tool, a real serial opener, and a TCP or SSH-gateway
// dialer depending on the configuration.
func New(cfg *config.Config, logger *util.Logger) *Bridge {
	prov := &provision.ExecProvisioner{
		Command: cfg.ProvisionCmd,
		Timeout: cfg.ProvisionTimeout,
		Logger:  logger,
	}

	var dialer transport.Dialer = &transport.TCPDialer{Timeout: 10 * time.Second}
	if cfg.GatewayEnabled {
		dialer = transport.NewSSHDialer(&transport.SSHConfig{
			User:          cfg.GatewayUser,
			Host:          cfg.GatewayHost,
			Port:          cfg.GatewayPort,
			KeyPath:       cfg.SSHKeyPath,
			PromptPass:    cfg.SSHPassword,
			UseAgent:      cfg.UseSSHAgent,
			StrictHostKey: cfg.StrictHostKey,
			KnownHosts:    cfg.KnownHostsPath,
		}, logger)
	}

	reg := registry.New(registry.Options{
		Provisioner:  prov,
		Opener:       serial.DeviceOpener{},
		Dialer:       dialer,
		Logger:       logger,
		PollInterval: cfg.PollInterval,
		StopTimeout:  cfg.StopTimeout,
	})

	return &Bridge{
		Config:      cfg,
		Logger:      logger,
		Registry:    reg,
		Provisioner: prov,
		Dialer:      dialer,
		Out:         os.Stdout,
	}
}

// Run executes the given verb and blocks until it completes.  For
// "create" that means until the context is cancelled or every route
// has stopped on its own.
func (b *Bridge) Run(ctx context.Context, verb string) error {
	defer b.Dialer.Close() //nolint:errcheck

	switch verb {
	case "create":
		return b.createRoute(ctx)
	case "delete":
		return b.deleteRoute(ctx)
	case "list":
		return b.listRoutes()
	default:
		return fmt.Errorf("unknown command %q", verb)
	}
}

// createRoute provisions and starts the route, then stays in the
// foreground pumping until interrupted.
func (b *Bridge) createRoute(ctx context.Context) error {
	cfg := b.Config
	err := b.Registry.Create(ctx, registry.CreateRequest{
		PortName:     cfg.UserPort,
		InternalName: cfg.InternalPort,
		TargetAddr:   cfg.Target(),
		Baud:         cfg.Baud,
	})
	if err != nil {
		return err
	}

	b.Logger.Info("routing %s (baud %d) → %s; press Ctrl+C to stop",
		cfg.UserPort, cfg.Baud, cfg.Target())

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			b.Logger.Info("shutting down")
			return b.Registry.ShutdownAll(context.Background())
		case <-ticker.C:
			if b.Registry.Len() == 0 {
				b.Logger.Info("all routes stopped, exiting")
				return nil
			}
		}
	}
}

// deleteRoute stops a route registered in this process.  If none is
// known under that name, the port pair is removed directly; the pair
// may have been left behind by an earlier run.
func (b *Bridge) deleteRoute(ctx context.Context) error {
	name := b.Config.UserPort
	err := b.Registry.Delete(ctx, name)
	if err == nil {
		return nil
	}
	if !cberr.Is(err, cberr.ErrNotFound) {
		return err
	}

	b.Logger.Info("no active route for %s in this process, removing the pair directly", name)
	return b.Provisioner.DestroyPair(ctx, name)
}

// listRoutes prints a snapshot of the routes this process manages.
func (b *Bridge) listRoutes() error {
	routes := b.Registry.List()
	if len(routes) == 0 {
		fmt.Fprintln(b.Out, "no active routes")
		return nil
	}
	for _, rt := range routes {
		fmt.Fprintf(b.Out, "%-10s (baud %d) -> %s [%s] %d B out / %d B in\n",
			rt.PortName, rt.Baud, rt.Target, rt.State, rt.BytesToNet, rt.BytesFromNet)
	}
	return nil
}
