// Package config defines the runtime configuration for combridge and
// provides helpers for parsing gateway specifications and validating
// route parameters.
package config

import (
	"fmt"
	"regexp"
	"strconv"
	"time"

	"combridge/util"
)

// Config holds every tuneable for a single combridge invocation.
type Config struct {
	// ── Route ────────────────────────────────────────────────────────
	UserPort     string // user-facing serial name, e.g. "COM7"
	InternalPort string // paired endpoint, e.g. "CNCB7"
	TargetHost   string
	TargetPort   int
	Baud         int

	// ── Engine ───────────────────────────────────────────────────────
	PollInterval time.Duration // cancellation latency bound for pumps
	StopTimeout  time.Duration // join bound during session teardown

	// ── Provisioner ──────────────────────────────────────────────────
	ProvisionCmd     string // external pair tool binary
	ProvisionTimeout time.Duration

	// ── SSH gateway ──────────────────────────────────────────────────
	GatewaySpec    string // raw [user@]host[:port] from --via
	GatewayEnabled bool
	GatewayUser    string
	GatewayHost    string
	GatewayPort    int
	SSHKeyPath     string
	SSHPassword    bool // true → prompt interactively
	UseSSHAgent    bool
	StrictHostKey  bool
	KnownHostsPath string

	// ── Output ───────────────────────────────────────────────────────
	Verbose int
}

// Target returns the network peer address as "host:port".
func (c *Config) Target() string {
	return util.FormatAddr(c.TargetHost, c.TargetPort)
}

// ── Gateway-spec parser ──────────────────────────────────────────────

// gatewayRe matches [user@]host[:port].
var gatewayRe = regexp.MustCompile(`^(?:([^@]+)@)?([^:]+)(?::(\d+))?$`)

// ParseGatewaySpec extracts user, host, and port from a string such as
// "admin@bastion.example.com:2222".  Port defaults to 22.
func ParseGatewaySpec(spec string) (user, host string, port int, err error) {
	m := gatewayRe.FindStringSubmatch(spec)
	if m == nil {
		return "", "", 0, fmt.Errorf("invalid gateway spec %q, expected [user@]host[:port]", spec)
	}
	user = m[1]
	host = m[2]
	port = 22
	if m[3] != "" {
		port, err = strconv.Atoi(m[3])
		if err != nil || port < 1 || port > 65535 {
			return "", "", 0, fmt.Errorf("invalid gateway port %q", m[3])
		}
	}
	if host == "" {
		return "", "", 0, fmt.Errorf("gateway host is required")
	}
	return user, host, port, nil
}

// ── Validation ───────────────────────────────────────────────────────

// Validate checks that the configuration is sufficient for the given
// verb ("create", "delete", or "list").
func (c *Config) Validate(verb string) error {
	switch verb {
	case "create":
		if c.UserPort == "" {
			return fmt.Errorf("create requires a user-facing port name")
		}
		if c.InternalPort == "" {
			return fmt.Errorf("create requires an internal port name")
		}
		if c.UserPort == c.InternalPort {
			return fmt.Errorf("user and internal port names must differ")
		}
		if c.TargetHost == "" {
			return fmt.Errorf("create requires a target host")
		}
		if c.TargetPort < 1 || c.TargetPort > 65535 {
			return fmt.Errorf("target port %d out of range 1-65535", c.TargetPort)
		}
		if c.Baud <= 0 {
			return fmt.Errorf("baud rate must be positive, got %d", c.Baud)
		}
	case "delete":
		if c.UserPort == "" {
			return fmt.Errorf("delete requires a port name")
		}
	case "list":
		// No required parameters.
	default:
		return fmt.Errorf("unknown command %q", verb)
	}

	if c.GatewayEnabled && c.GatewayHost == "" {
		return fmt.Errorf("gateway host is required")
	}
	return nil
}
