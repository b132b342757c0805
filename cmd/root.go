// Package cmd wires up the CLI flags and dispatches to the bridge core.
package cmd

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	flag "github.com/spf13/pflag"

	"combridge/bridge"
	"combridge/config"
	"combridge/util"
)

// version is overridable at link time:
//
//	go build -ldflags "-X combridge/cmd.version=2.0.0"
var version = "1.0.0" //nolint:gochecknoglobals

// Execute parses args and runs the requested combridge command.
func Execute(ctx context.Context, args []string) error {
	// Settings resolve lowest to highest: defaults, config file,
	// environment, then flags.
	cfg := config.Default()
	if path := configPathFrom(args); path != "" {
		if err := config.LoadFile(cfg, path); err != nil {
			return err
		}
	}
	config.LoadFromEnv(cfg)

	fs := flag.NewFlagSet("combridge", flag.ContinueOnError)

	var configPath string
	fs.StringVarP(&configPath, "config", "f", "", "TOML config file")

	// ── route ────────────────────────────────────────────────────
	fs.IntVarP(&cfg.Baud, "baud", "b", cfg.Baud, "Serial baud rate")

	var pollMs, stopMs int
	fs.IntVar(&pollMs, "poll-interval-ms", 0, "Pump cancellation latency bound in ms")
	fs.IntVar(&stopMs, "stop-timeout-ms", 0, "Teardown join bound in ms")

	// ── provisioner ──────────────────────────────────────────────
	fs.StringVar(&cfg.ProvisionCmd, "provision-cmd", cfg.ProvisionCmd, "Port-pair tool binary")

	// ── SSH gateway ──────────────────────────────────────────────
	fs.StringVarP(&cfg.GatewaySpec, "via", "T", cfg.GatewaySpec, "Reach the target via SSH gateway [user@]host[:port]")
	fs.StringVar(&cfg.SSHKeyPath, "ssh-key", cfg.SSHKeyPath, "SSH private key file")
	fs.BoolVar(&cfg.SSHPassword, "ssh-password", cfg.SSHPassword, "Prompt for SSH password")
	fs.BoolVar(&cfg.UseSSHAgent, "ssh-agent", cfg.UseSSHAgent, "Use SSH agent")
	fs.BoolVar(&cfg.StrictHostKey, "strict-hostkey", cfg.StrictHostKey, "Verify SSH host keys")
	fs.StringVar(&cfg.KnownHostsPath, "known-hosts", cfg.KnownHostsPath, "Custom known_hosts path")

	// ── output ───────────────────────────────────────────────────
	fs.CountVarP(&cfg.Verbose, "verbose", "v", "Increase verbosity (repeatable)")

	var showVersion, showHelp, dryRun bool
	fs.BoolVar(&dryRun, "dry-run", false, "Validate configuration and exit")
	fs.BoolVar(&showVersion, "version", false, "Print version and exit")
	fs.BoolVarP(&showHelp, "help", "h", false, "Show this help")

	fs.Usage = func() { printUsage(fs) }

	// ── parse ────────────────────────────────────────────────────
	if err := fs.Parse(args); err != nil {
		return err
	}

	if showHelp || len(args) == 0 {
		printUsage(fs)
		return nil
	}
	if showVersion {
		fmt.Printf("combridge %s\n", version)
		return nil
	}

	if pollMs > 0 {
		cfg.PollInterval = time.Duration(pollMs) * time.Millisecond
	}
	if stopMs > 0 {
		cfg.StopTimeout = time.Duration(stopMs) * time.Millisecond
	}

	// ── positional arguments ─────────────────────────────────────
	verb, err := parsePositional(cfg, fs.Args())
	if err != nil {
		return err
	}

	// ── gateway spec ─────────────────────────────────────────────
	if cfg.GatewaySpec != "" {
		user, host, port, err := config.ParseGatewaySpec(cfg.GatewaySpec)
		if err != nil {
			return fmt.Errorf("gateway: %w", err)
		}
		cfg.GatewayEnabled = true
		cfg.GatewayUser = user
		cfg.GatewayHost = host
		cfg.GatewayPort = port
	}

	// ── validate ─────────────────────────────────────────────────
	if err := cfg.Validate(verb); err != nil {
		return err
	}
	if dryRun {
		return nil
	}

	// ── build components ─────────────────────────────────────────
	logger := util.NewLogger(cfg.Verbose)

	return bridge.New(cfg, logger).Run(ctx, verb)
}

// ── helpers ──────────────────────────────────────────────────────────

// parsePositional consumes "<command> [args…]" and fills the route
// fields for the command.
func parsePositional(cfg *config.Config, remaining []string) (string, error) {
	if len(remaining) == 0 {
		return "", fmt.Errorf("command required: create, delete, or list (use --help for usage)")
	}
	verb := remaining[0]
	args := remaining[1:]

	switch verb {
	case "create":
		if len(args) != 4 {
			return "", fmt.Errorf("create takes <port> <internal-port> <host> <tcp-port>, got %d arguments", len(args))
		}
		cfg.UserPort = args[0]
		cfg.InternalPort = args[1]
		cfg.TargetHost = args[2]
		port, err := strconv.Atoi(args[3])
		if err != nil {
			return "", fmt.Errorf("tcp port %q: %w", args[3], err)
		}
		cfg.TargetPort = port
	case "delete":
		if len(args) != 1 {
			return "", fmt.Errorf("delete takes exactly one port name, got %d arguments", len(args))
		}
		cfg.UserPort = args[0]
	case "list":
		if len(args) != 0 {
			return "", fmt.Errorf("list takes no arguments")
		}
	default:
		return "", fmt.Errorf("unknown command %q (use --help for usage)", verb)
	}
	return verb, nil
}

// configPathFrom pre-scans raw args for --config/-f so the file can be
// loaded before flag defaults are registered.
func configPathFrom(args []string) string {
	for i, arg := range args {
		switch {
		case arg == "--config" || arg == "-f":
			if i+1 < len(args) {
				return args[i+1]
			}
		case len(arg) > len("--config=") && arg[:len("--config=")] == "--config=":
			return arg[len("--config="):]
		case len(arg) > len("-f=") && arg[:len("-f=")] == "-f=":
			return arg[len("-f="):]
		}
	}
	return ""
}

func printUsage(fs *flag.FlagSet) {
	fmt.Fprintf(os.Stderr, `combridge – Serial-over-TCP Bridge v%s

Pairs a virtual serial port with a TCP endpoint and pumps bytes
between them until interrupted.

Usage:
  combridge create <port> <internal-port> <host> <tcp-port>   Provision and run a route
  combridge delete <port>                                     Remove a route / port pair
  combridge list                                              Show active routes

Options:
`, version)
	fs.PrintDefaults()
	fmt.Fprintf(os.Stderr, `
Examples:
  combridge create COM7 CNCB7 plc.example.com 4001            Bridge COM7 to a device server
  combridge -b 115200 create COM7 CNCB7 10.0.0.5 9000         Custom baud rate
  combridge -T admin@bastion create COM7 CNCB7 plc 4001       Dial through an SSH gateway
  combridge delete COM7                                       Tear the pair down
`)
}
