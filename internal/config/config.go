package config

import (
	"fmt"
	"strings"

	"github.com/abgdnv/bazaar/pkg/config"
	"github.com/abgdnv/bazaar/pkg/config/configloader"
)

var _ configloader.Validator = (*Config)(nil)

type Config struct {
	HTTPServer   config.HTTPConfig         `koanf:"server"`
	GRPC         config.GrpcServerConfig   `koanf:"grpc"`
	Backend      config.BackendConfig      `koanf:"backend"`
	Database     config.DatabaseConfig     `koanf:"database"`
	LocalStore   config.LocalStoreConfig   `koanf:"localstore"`
	Catalog      config.CatalogConfig      `koanf:"catalog"`
	Connectivity config.ConnectivityConfig `koanf:"connectivity"`
	Sessions     config.SessionsConfig     `koanf:"sessions"`
	Resilience   config.ResilienceConfig   `koanf:"resilience"`
	IdP          config.IdP                `koanf:"idp"`
	Nats         config.NATSConfig         `koanf:"nats"`
	Telemetry    config.TelemetryConfig    `koanf:"telemetry"`
	Log          config.LogConfig          `koanf:"log"`
	PProf        config.PProfConfig        `koanf:"pprof"`
	Probes       config.ProbesConfig       `koanf:"probes"`
	Shutdown     config.ShutdownConfig     `koanf:"shutdown"`
}

func (c *Config) String() string {
	var b strings.Builder

	b.WriteString(c.HTTPServer.String())
	b.WriteString(c.GRPC.String())
	b.WriteString(c.Backend.String())
	if c.Backend.Driver == config.BackendPostgres {
		b.WriteString(c.Database.String())
	}
	b.WriteString(c.LocalStore.String())
	b.WriteString(c.Catalog.String())
	b.WriteString(c.Connectivity.String())
	b.WriteString(c.Sessions.String())
	b.WriteString(c.Resilience.String())
	b.WriteString(c.IdP.String())
	b.WriteString(c.Nats.String())
	b.WriteString(c.Telemetry.String())
	b.WriteString(c.Log.String())
	b.WriteString(c.PProf.String())
	b.WriteString(c.Probes.String())
	b.WriteString(c.Shutdown.String())

	return b.String()
}

// Validate checks if the configuration values are valid
func (c *Config) Validate() error {
	validators := []configloader.Validator{
		&c.HTTPServer,
		&c.GRPC,
		&c.Backend,
		&c.LocalStore,
		&c.Catalog,
		&c.Connectivity,
		&c.Sessions,
		&c.Resilience,
		&c.IdP,
		&c.Nats,
		&c.Telemetry,
		&c.Log,
		&c.PProf,
		&c.Probes,
		&c.Shutdown,
	}
	if c.Backend.Driver == config.BackendPostgres {
		validators = append(validators, &c.Database)
	}
	for _, v := range validators {
		if err := v.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}
	}
	return nil
}
