package config

import (
	"fmt"
	"log"
	"strings"
	"time"
)

// SessionsConfig bounds how long an idle session stays in memory.
type SessionsConfig struct {
	IdleTimeout   time.Duration `koanf:"idletimeout"`
	SweepInterval time.Duration `koanf:"sweepinterval"`
}

func (c *SessionsConfig) String() string {
	var b strings.Builder
	b.WriteString("\n--- Sessions ---\n")
	b.WriteString(fmt.Sprintf("  idletimeout: %s\n", c.IdleTimeout))
	b.WriteString(fmt.Sprintf("  sweepinterval: %s\n", c.SweepInterval))
	return b.String()
}

// Validate fills in the defaults of unset session settings.
func (c *SessionsConfig) Validate() error {
	if c.IdleTimeout < 0 || c.SweepInterval < 0 {
		return fmt.Errorf("session timeouts must not be negative")
	}
	if c.IdleTimeout == 0 {
		log.Println("Using default value for sessions.idletimeout")
		c.IdleTimeout = 30 * time.Minute
	}
	if c.SweepInterval == 0 {
		log.Println("Using default value for sessions.sweepinterval")
		c.SweepInterval = time.Minute
	}
	if c.SweepInterval > c.IdleTimeout {
		return fmt.Errorf("session sweep interval must not exceed the idle timeout")
	}
	return nil
}
