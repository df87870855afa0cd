package config

import (
	"fmt"
	"strings"
	"time"
)

type CatalogConfig struct {
	RefreshTTL time.Duration `koanf:"refreshttl"`
	PageSize   int           `koanf:"pagesize"`
}

// String returns a string representation of the catalog configuration.
func (c *CatalogConfig) String() string {
	var b strings.Builder
	b.WriteString("\n--- Catalog ---\n")
	b.WriteString(fmt.Sprintf("  refreshttl: %s\n", c.RefreshTTL))
	b.WriteString(fmt.Sprintf("  pagesize: %d\n", c.PageSize))
	return b.String()
}

func (c *CatalogConfig) Validate() error {
	if c.RefreshTTL <= 0 {
		return fmt.Errorf("catalog refresh TTL must be greater than zero")
	}
	if c.PageSize <= 0 || c.PageSize > 1000 {
		return fmt.Errorf("catalog page size must be between 1 and 1000")
	}
	return nil
}
