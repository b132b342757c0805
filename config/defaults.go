package config

import "time"

// Defaults applied before file, environment, and flag overlays.
const (
	// DefaultBaud matches the most common instrument line speed.
	DefaultBaud = 9600

	// DefaultPollInterval is the documented upper bound on how long a
	// pump may take to notice a cancellation request.
	DefaultPollInterval = 200 * time.Millisecond

	// DefaultStopTimeout bounds the join phase of a session teardown.
	DefaultStopTimeout = 2 * time.Second

	// DefaultProvisionCmd is com0com's pair management tool.
	DefaultProvisionCmd = "setupc"

	// DefaultProvisionTimeout bounds one invocation of the tool.
	DefaultProvisionTimeout = 10 * time.Second
)

// Default returns a Config populated with the built-in defaults.
func Default() *Config {
	return &Config{
		Baud:             DefaultBaud,
		PollInterval:     DefaultPollInterval,
		StopTimeout:      DefaultStopTimeout,
		ProvisionCmd:     DefaultProvisionCmd,
		ProvisionTimeout: DefaultProvisionTimeout,
	}
}
