package config

// loader.go - configuration loading from a TOML file and environment
// variables.
//
// Precedence order (highest wins):
//   1. CLI flags   (handled by cmd/root.go)
//   2. Environment variables   (this file)
//   3. TOML config file        (this file)
//   4. Defaults    (defaults.go)

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// ── TOML file ────────────────────────────────────────────────────────

// fileConfig mirrors the on-disk layout:
//
//	baud = 115200
//	poll_interval_ms = 200
//	stop_timeout_ms = 2000
//	verbose = 1
//
//	[provision]
//	command = "setupc"
//	timeout_ms = 10000
//
//	[gateway]
//	spec = "admin@bastion:2222"
//	key = "/home/op/.ssh/id_ed25519"
//	strict_hostkey = true
type fileConfig struct {
	Baud           int `toml:"baud"`
	PollIntervalMS int `toml:"poll_interval_ms"`
	StopTimeoutMS  int `toml:"stop_timeout_ms"`
	Verbose        int `toml:"verbose"`

	Provision struct {
		Command   string `toml:"command"`
		TimeoutMS int    `toml:"timeout_ms"`
	} `toml:"provision"`

	Gateway struct {
		Spec          string `toml:"spec"`
		Key           string `toml:"key"`
		Agent         bool   `toml:"agent"`
		StrictHostKey bool   `toml:"strict_hostkey"`
		KnownHosts    string `toml:"known_hosts"`
	} `toml:"gateway"`
}

// LoadFile overlays values from a TOML file onto cfg.  Zero values in
// the file leave the existing configuration untouched.
func LoadFile(cfg *Config, path string) error {
	var fc fileConfig
	if _, err := toml.DecodeFile(path, &fc); err != nil {
		return fmt.Errorf("config file %s: %w", path, err)
	}

	if fc.Baud > 0 {
		cfg.Baud = fc.Baud
	}
	if fc.PollIntervalMS > 0 {
		cfg.PollInterval = time.Duration(fc.PollIntervalMS) * time.Millisecond
	}
	if fc.StopTimeoutMS > 0 {
		cfg.StopTimeout = time.Duration(fc.StopTimeoutMS) * time.Millisecond
	}
	if fc.Verbose > 0 {
		cfg.Verbose = fc.Verbose
	}

	if fc.Provision.Command != "" {
		cfg.ProvisionCmd = fc.Provision.Command
	}
	if fc.Provision.TimeoutMS > 0 {
		cfg.ProvisionTimeout = time.Duration(fc.Provision.TimeoutMS) * time.Millisecond
	}

	if fc.Gateway.Spec != "" {
		cfg.GatewaySpec = fc.Gateway.Spec
	}
	if fc.Gateway.Key != "" {
		cfg.SSHKeyPath = fc.Gateway.Key
	}
	if fc.Gateway.Agent {
		cfg.UseSSHAgent = true
	}
	if fc.Gateway.StrictHostKey {
		cfg.StrictHostKey = true
	}
	if fc.Gateway.KnownHosts != "" {
		cfg.KnownHostsPath = fc.Gateway.KnownHosts
	}
	return nil
}

// ── Environment variables ────────────────────────────────────────────
//
// Every supported env var uses the COMBRIDGE_ prefix.  Boolean values
// accept "1", "true", "yes" (case-insensitive).

// LoadFromEnv overlays environment variables onto cfg.  Only non-empty
// env vars override the existing value.  This should be called BEFORE
// CLI flag parsing so that flags take precedence.
func LoadFromEnv(cfg *Config) {
	if v := envInt("COMBRIDGE_BAUD"); v > 0 {
		cfg.Baud = v
	}
	if v := envInt("COMBRIDGE_POLL_INTERVAL_MS"); v > 0 {
		cfg.PollInterval = time.Duration(v) * time.Millisecond
	}
	if v := envInt("COMBRIDGE_STOP_TIMEOUT_MS"); v > 0 {
		cfg.StopTimeout = time.Duration(v) * time.Millisecond
	}

	if v := os.Getenv("COMBRIDGE_PROVISION_CMD"); v != "" {
		cfg.ProvisionCmd = v
	}
	if v := envInt("COMBRIDGE_PROVISION_TIMEOUT_MS"); v > 0 {
		cfg.ProvisionTimeout = time.Duration(v) * time.Millisecond
	}

	// SSH gateway
	if v := os.Getenv("COMBRIDGE_GATEWAY"); v != "" {
		cfg.GatewaySpec = v
	}
	if v := os.Getenv("COMBRIDGE_SSH_KEY"); v != "" {
		cfg.SSHKeyPath = v
	}
	if envBool("COMBRIDGE_SSH_PASSWORD") {
		cfg.SSHPassword = true
	}
	if envBool("COMBRIDGE_SSH_AGENT") {
		cfg.UseSSHAgent = true
	}
	if envBool("COMBRIDGE_STRICT_HOSTKEY") {
		cfg.StrictHostKey = true
	}
	if v := os.Getenv("COMBRIDGE_KNOWN_HOSTS"); v != "" {
		cfg.KnownHostsPath = v
	}

	// Output
	if v := envInt("COMBRIDGE_VERBOSE"); v > 0 {
		cfg.Verbose = v
	}
}

// ── helpers ──────────────────────────────────────────────────────────

func envInt(key string) int {
	v := os.Getenv(key)
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return n
}

func envBool(key string) bool {
	v := strings.ToLower(os.Getenv(key))
	return v == "1" || v == "true" || v == "yes"
}
