package config

import (
	"fmt"
	"log"
	"net"
	"slices"
	"strings"
	"time"
)

const (
	LogFormatJSON = "json"
	LogFormatText = "text"
)

var logLevels = []string{"debug", "info", "warn", "error"}

// LogConfig selects the level and encoding of the process logger. Empty values mean info and json.
type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

func (c *LogConfig) String() string {
	return fmt.Sprintf("\n--- Log ---\n  level: %s\n  format: %s\n", c.Level, c.Format)
}

func (c *LogConfig) Validate() error {
	if c.Level != "" && !slices.Contains(logLevels, strings.ToLower(c.Level)) {
		return fmt.Errorf("log.level must be one of %s, got %q", strings.Join(logLevels, ", "), c.Level)
	}
	switch c.Format {
	case "", LogFormatJSON, LogFormatText:
		return nil
	default:
		return fmt.Errorf("log.format must be %s or %s, got %q", LogFormatJSON, LogFormatText, c.Format)
	}
}

type PProfConfig struct {
	Enabled bool   `koanf:"enabled"`
	Addr    string `koanf:"addr"`
}

func (c *PProfConfig) String() string {
	return fmt.Sprintf("\n--- PProf ---\n  enabled: %t\n  address: %s\n", c.Enabled, c.Addr)
}

func (c *PProfConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	if _, _, err := net.SplitHostPort(c.Addr); err != nil {
		return fmt.Errorf("pprof.addr %q is not a host:port address: %w", c.Addr, err)
	}
	return nil
}

// ShutdownConfig bounds how long servers and telemetry exporters get to stop.
type ShutdownConfig struct {
	Timeout time.Duration `koanf:"timeout"`
}

func (c *ShutdownConfig) String() string {
	return fmt.Sprintf("\n--- Shutdown ---\n  timeout: %s\n", c.Timeout)
}

func (c *ShutdownConfig) Validate() error {
	if c.Timeout <= 0 {
		return fmt.Errorf("shutdown.timeout must be greater than 0")
	}
	return nil
}

// ProbesConfig names the files kubelet exec probes look for.
type ProbesConfig struct {
	ReadinessFileName string        `koanf:"readinessfilename"`
	LivenessFileName  string        `koanf:"livenessfilename"`
	LivenessInterval  time.Duration `koanf:"livenessinterval"`
}

func (c *ProbesConfig) String() string {
	var b strings.Builder
	b.WriteString("\n--- Probes ---\n")
	b.WriteString(fmt.Sprintf("  readinessfilename: %s\n", c.ReadinessFileName))
	b.WriteString(fmt.Sprintf("  livenessfilename: %s\n", c.LivenessFileName))
	b.WriteString(fmt.Sprintf("  livenessinterval: %s\n", c.LivenessInterval))
	return b.String()
}

// Validate fills in the defaults of unset probe settings.
func (c *ProbesConfig) Validate() error {
	defaultString(&c.ReadinessFileName, "/tmp/ready", "probes.readinessfilename")
	defaultString(&c.LivenessFileName, "/tmp/live", "probes.livenessfilename")
	if c.LivenessInterval <= 0 {
		log.Println("Using default value for probes.livenessinterval")
		c.LivenessInterval = 20 * time.Second
	}
	return nil
}

func defaultString(v *string, def, key string) {
	if *v == "" {
		log.Printf("Using default value for %s", key)
		*v = def
	}
}
