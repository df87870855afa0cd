package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// DatabaseConfig points at the Postgres backend. MaxConns of zero keeps the pgx default.
type DatabaseConfig struct {
	URL      string        `koanf:"url"`
	Timeout  time.Duration `koanf:"timeout"`
	MaxConns int32         `koanf:"maxconns"`
	Migrate  bool          `koanf:"migrate"`
}

func (c *DatabaseConfig) String() string {
	var b strings.Builder
	b.WriteString("\n--- Database ---\n")
	b.WriteString(fmt.Sprintf("  url: %s\n", MaskURL(c.URL)))
	b.WriteString(fmt.Sprintf("  timeout: %s\n", c.Timeout))
	b.WriteString(fmt.Sprintf("  maxconns: %d\n", c.MaxConns))
	b.WriteString(fmt.Sprintf("  migrate: %t\n", c.Migrate))
	return b.String()
}

func (c *DatabaseConfig) Validate() error {
	if c.URL == "" {
		return fmt.Errorf("database.url is required by the postgres backend")
	}
	u, err := url.Parse(c.URL)
	if err != nil || (u.Scheme != "postgres" && u.Scheme != "postgresql") {
		return fmt.Errorf("database.url must be a postgres:// URL: %s", MaskURL(c.URL))
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("database.timeout must be greater than 0")
	}
	if c.MaxConns < 0 {
		return fmt.Errorf("database.maxconns must not be negative")
	}
	return nil
}

// MaskURL hides the password of a connection URL. Unparseable URLs are hidden entirely.
func MaskURL(raw string) string {
	if raw == "" {
		return "<not configured>"
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "****"
	}
	return u.Redacted()
}
