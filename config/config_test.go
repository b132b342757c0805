package config

import (
	"strings"
	"testing"
	"time"
)

func TestParseGatewaySpec(t *testing.T) {
	tests := []struct {
		spec     string
		wantUser string
		wantHost string
		wantPort int
		wantErr  bool
	}{
		{"admin@bastion.example.com:2222", "admin", "bastion.example.com", 2222, false},
		{"admin@bastion", "admin", "bastion", 22, false},
		{"bastion", "", "bastion", 22, false},
		{"bastion:2200", "", "bastion", 2200, false},
		{"user@host:99999", "", "", 0, true},
		{"user@host:0", "", "", 0, true},
		{"", "", "", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.spec, func(t *testing.T) {
			user, host, port, err := ParseGatewaySpec(tt.spec)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error for %q", tt.spec)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if user != tt.wantUser || host != tt.wantHost || port != tt.wantPort {
				t.Errorf("got (%q, %q, %d), want (%q, %q, %d)",
					user, host, port, tt.wantUser, tt.wantHost, tt.wantPort)
			}
		})
	}
}

func TestValidate_Create(t *testing.T) {
	valid := func() *Config {
		c := Default()
		c.UserPort = "COM7"
		c.InternalPort = "CNCB7"
		c.TargetHost = "192.168.1.100"
		c.TargetPort = 5000
		return c
	}

	if err := valid().Validate("create"); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantMsg string
	}{
		{"missing-user-port", func(c *Config) { c.UserPort = "" }, "user-facing port"},
		{"missing-internal-port", func(c *Config) { c.InternalPort = "" }, "internal port"},
		{"same-names", func(c *Config) { c.InternalPort = "COM7" }, "must differ"},
		{"missing-host", func(c *Config) { c.TargetHost = "" }, "target host"},
		{"port-too-high", func(c *Config) { c.TargetPort = 70000 }, "out of range"},
		{"port-zero", func(c *Config) { c.TargetPort = 0 }, "out of range"},
		{"bad-baud", func(c *Config) { c.Baud = -1 }, "baud"},
		{"gateway-no-host", func(c *Config) { c.GatewayEnabled = true }, "gateway host"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			err := c.Validate("create")
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("error %q does not mention %q", err, tt.wantMsg)
			}
		})
	}
}

func TestValidate_DeleteAndList(t *testing.T) {
	c := Default()
	if err := c.Validate("delete"); err == nil {
		t.Error("delete without a port name should fail")
	}
	c.UserPort = "COM7"
	if err := c.Validate("delete"); err != nil {
		t.Errorf("delete with a port name: %v", err)
	}
	if err := Default().Validate("list"); err != nil {
		t.Errorf("list needs no parameters: %v", err)
	}
	if err := Default().Validate("frobnicate"); err == nil {
		t.Error("unknown verb should fail validation")
	}
}

func TestDefault(t *testing.T) {
	c := Default()
	if c.Baud != 9600 {
		t.Errorf("default baud = %d, want 9600", c.Baud)
	}
	if c.PollInterval != 200*time.Millisecond {
		t.Errorf("default poll interval = %v", c.PollInterval)
	}
	if c.ProvisionCmd != "setupc" {
		t.Errorf("default provision command = %q", c.ProvisionCmd)
	}
}

func TestTarget(t *testing.T) {
	c := &Config{TargetHost: "192.168.1.100", TargetPort: 5000}
	if got := c.Target(); got != "192.168.1.100:5000" {
		t.Errorf("Target() = %q", got)
	}
}
