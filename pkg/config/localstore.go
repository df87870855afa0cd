package config

import (
	"fmt"
	"strings"
	"time"
)

const (
	LocalStoreMemory = "memory"
	LocalStoreRedis  = "redis"
	LocalStoreSQLite = "sqlite"
)

// LocalStoreConfig selects where session documents (guest carts, sync queues) live.
type LocalStoreConfig struct {
	Driver    string        `koanf:"driver"`
	Path      string        `koanf:"path"`
	KeyPrefix string        `koanf:"keyprefix"`
	TTL       time.Duration `koanf:"ttl"`
	Redis     RedisConfig   `koanf:"redis"`
}

// String returns a string representation of the local store configuration.
func (c *LocalStoreConfig) String() string {
	var b strings.Builder
	b.WriteString("\n--- Local Store ---\n")
	b.WriteString(fmt.Sprintf("  driver: %s\n", c.Driver))
	b.WriteString(fmt.Sprintf("  path: %s\n", c.Path))
	b.WriteString(fmt.Sprintf("  keyprefix: %s\n", c.KeyPrefix))
	b.WriteString(fmt.Sprintf("  ttl: %s\n", c.TTL))
	if c.Driver == LocalStoreRedis {
		b.WriteString(c.Redis.String())
	}
	return b.String()
}

func (c *LocalStoreConfig) Validate() error {
	switch c.Driver {
	case LocalStoreMemory:
		return nil
	case LocalStoreSQLite:
		if c.Path == "" {
			return fmt.Errorf("local store path is required for sqlite")
		}
		return nil
	case LocalStoreRedis:
		if c.TTL < 0 {
			return fmt.Errorf("local store ttl must not be negative")
		}
		return c.Redis.Validate()
	default:
		return fmt.Errorf("unknown local store driver %q", c.Driver)
	}
}
