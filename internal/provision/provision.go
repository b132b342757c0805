// Package provision wraps the external virtual-port-pair tool behind a
// narrow interface so the registry never depends on a particular
// command-line format.
//
// The default implementation shells out to com0com's setupc, the tool
// this bridge was built around.  Note that setupc may address an
// existing pair by its internal index rather than by port name, so a
// successful remove is not guaranteed to have hit the intended pair;
// removal failures are reported honestly rather than papered over.
package provision

import (
	"context"
	"fmt"
	"os/exec"
	"time"

	cberr "combridge/internal/errors"
	"combridge/util"
)

// DefaultTimeout bounds a single invocation of the external tool.
const DefaultTimeout = 10 * time.Second

// Provisioner creates and destroys linked pairs of serial endpoints at
// the OS level.
type Provisioner interface {
	// CreatePair materializes the pair (userPort, internalPort).
	CreatePair(ctx context.Context, userPort, internalPort string) error

	// DestroyPair removes the pair that userPort belongs to.
	// Best-effort: callers must tolerate failure without crashing.
	DestroyPair(ctx context.Context, userPort string) error
}

// ExecProvisioner invokes an external command synchronously:
//
//	<cmd> install PortName=<user>,EmuBR=yes PortName=<internal>,EmuBR=yes
//	<cmd> remove <user>
//
// Non-zero exit, exec failure, or a missing binary all surface as a
// ProvisionError carrying the captured output.
type ExecProvisioner struct {
	Command string        // tool binary; "" = "setupc"
	Timeout time.Duration // per-invocation bound; 0 = DefaultTimeout
	Logger  *util.Logger
}

// CreatePair runs the tool's install verb for the two port names.
func (p *ExecProvisioner) CreatePair(ctx context.Context, userPort, internalPort string) error {
	args := []string{
		"install",
		fmt.Sprintf("PortName=%s,EmuBR=yes", userPort),
		fmt.Sprintf("PortName=%s,EmuBR=yes", internalPort),
	}
	if err := p.run(ctx, "install", userPort, args); err != nil {
		return err
	}
	p.Logger.Verbose("provisioned pair %s <=> %s", userPort, internalPort)
	return nil
}

// DestroyPair runs the tool's remove verb for the user-facing name.
func (p *ExecProvisioner) DestroyPair(ctx context.Context, userPort string) error {
	if err := p.run(ctx, "remove", userPort, []string{"remove", userPort}); err != nil {
		return err
	}
	p.Logger.Verbose("destroyed pair for %s", userPort)
	return nil
}

func (p *ExecProvisioner) run(ctx context.Context, op, port string, args []string) error {
	command := p.Command
	if command == "" {
		command = "setupc"
	}
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, command, args...)
	p.Logger.Debug("provision: %s", cmd.String())

	out, err := cmd.CombinedOutput()
	if err != nil {
		return cberr.WrapProvision(op, port, string(out), err)
	}
	return nil
}
