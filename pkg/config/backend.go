package config

import (
	"fmt"
	"strings"
)

const (
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

// BackendConfig selects the source of catalog, cart and wishlist data.
// The memory driver serves the bundled mock catalog and keeps carts in process.
type BackendConfig struct {
	Driver string `koanf:"driver"`
}

// String returns a string representation of the backend configuration.
func (c *BackendConfig) String() string {
	var b strings.Builder
	b.WriteString("\n--- Backend ---\n")
	b.WriteString(fmt.Sprintf("  driver: %s\n", c.Driver))
	return b.String()
}

func (c *BackendConfig) Validate() error {
	switch c.Driver {
	case BackendPostgres, BackendMemory:
		return nil
	default:
		return fmt.Errorf("unknown backend driver %q", c.Driver)
	}
}
