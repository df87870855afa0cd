package config

import (
	"fmt"
	"strings"
	"time"
)

type ConnectivityConfig struct {
	Interval time.Duration `koanf:"interval"`
	Timeout  time.Duration `koanf:"timeout"`
}

// String returns a string representation of the connectivity configuration.
func (c *ConnectivityConfig) String() string {
	var b strings.Builder
	b.WriteString("\n--- Connectivity ---\n")
	b.WriteString(fmt.Sprintf("  interval: %s\n", c.Interval))
	b.WriteString(fmt.Sprintf("  timeout: %s\n", c.Timeout))
	return b.String()
}

func (c *ConnectivityConfig) Validate() error {
	if c.Interval <= 0 {
		return fmt.Errorf("connectivity interval must be greater than zero")
	}
	if c.Timeout <= 0 || c.Timeout > c.Interval {
		return fmt.Errorf("connectivity timeout must be positive and not exceed the interval")
	}
	return nil
}
