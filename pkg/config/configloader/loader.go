// Package configloader layers a YAML file, a .env file and the process environment into a
// validated configuration. Later sources override earlier ones.
package configloader

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	defaultConfigFile = "config.yaml"
	dotEnvFile        = ".env"
)

type Validator interface {
	Validate() error
}

// Load builds the configuration of serviceName. Environment keys are prefixed with the upper-cased
// service name and use "_" as the path separator, so STOREFRONT_LOG_LEVEL sets log.level.
// <PREFIX>_CONFIG points at another YAML file than config.yaml.
func Load[T Validator](serviceName string) (T, error) {
	var cfg T
	prefix := strings.ToUpper(serviceName) + "_"
	toKey := func(name string) string {
		name = strings.TrimPrefix(strings.ToLower(name), strings.ToLower(prefix))
		return strings.ReplaceAll(name, "_", ".")
	}

	configFile := os.Getenv(prefix + "CONFIG")
	if configFile == "" {
		configFile = defaultConfigFile
	}

	k := koanf.New(".")
	loadYAML(k, configFile)
	loadDotEnv(k, toKey)
	if err := k.Load(env.Provider(prefix, ".", toKey), nil); err != nil {
		log.Printf("WARN: error loading system env vars: %v", err)
	}

	if err := k.Unmarshal("", &cfg); err != nil {
		return cfg, fmt.Errorf("error unmarshalling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// loadYAML reads path if it exists; a missing file leaves the defaults to the other sources.
func loadYAML(k *koanf.Koanf, path string) {
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Printf("WARN: error loading YAML config file '%s': %v", path, err)
	}
}

func loadDotEnv(k *koanf.Koanf, toKey func(string) string) {
	values, err := godotenv.Read(dotEnvFile)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			log.Printf("WARN: error reading %s file: %v", dotEnvFile, err)
		}
		return
	}
	m := make(map[string]any, len(values))
	for name, value := range values {
		m[toKey(name)] = value
	}
	if err := k.Load(confmap.Provider(m, "."), nil); err != nil {
		log.Printf("WARN: error loading %s config: %v", dotEnvFile, err)
	}
}
