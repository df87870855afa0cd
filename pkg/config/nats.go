package config

import (
	"fmt"
	"strings"
	"time"
)

// NATSConfig enables publishing sync failures to a JetStream stream.
// MaxAge bounds how long failures are retained; zero keeps them until the stream limits apply.
type NATSConfig struct {
	Enabled  bool          `koanf:"enabled"`
	Url      string        `koanf:"url"`
	Timeout  time.Duration `koanf:"timeout"`
	Stream   string        `koanf:"stream"`
	MaxAge   time.Duration `koanf:"maxage"`
	Replicas int           `koanf:"replicas"`
}

func (c *NATSConfig) String() string {
	var b strings.Builder
	b.WriteString("\n--- NATS ---\n")
	b.WriteString(fmt.Sprintf("  enabled: %t\n", c.Enabled))
	if !c.Enabled {
		return b.String()
	}
	b.WriteString(fmt.Sprintf("  url: %s\n", c.Url))
	b.WriteString(fmt.Sprintf("  timeout: %s\n", c.Timeout))
	b.WriteString(fmt.Sprintf("  stream: %s (maxage=%s, replicas=%d)\n", c.Stream, c.MaxAge, c.Replicas))
	return b.String()
}

func (c *NATSConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	switch {
	case c.Url == "":
		return fmt.Errorf("nats.url is required when nats is enabled")
	case c.Timeout <= 0:
		return fmt.Errorf("nats.timeout must be greater than 0")
	case c.Stream == "":
		return fmt.Errorf("nats.stream is required when nats is enabled")
	case c.MaxAge < 0:
		return fmt.Errorf("nats.maxage must not be negative")
	case c.Replicas < 0 || c.Replicas > 5:
		return fmt.Errorf("nats.replicas must be between 0 and 5, got %d", c.Replicas)
	}
	return nil
}
