package goGate

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// LoadConfigFromEnv builds a [Config] from the process environment. A .env
// file in the working directory is loaded first when present; variables
// already set win over it.
func LoadConfigFromEnv() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	cfg := defaultConfig()
	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

// LoadConfigFile reads a YAML configuration file. Fields absent from the
// file keep their defaults and environment variables override the file.
func LoadConfigFile(path string) (Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config file: %w", err)
	}
	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: "GOGATE_"}); err != nil {
		return fmt.Errorf("parse environment: %w", err)
	}
	// The service key keeps its unprefixed name for compatibility with
	// existing deployments.
	if key, ok := os.LookupEnv("INTERNAL_SERVICE_KEY"); ok {
		cfg.Service.InternalKey = key
	}
	return nil
}
