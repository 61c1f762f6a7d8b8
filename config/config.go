package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/trafiklab-tools/realtime/model"
)

const (
	DefaultBaseURL     = "https://realtime-api.trafiklab.se/v1"
	DefaultDBPath      = "warehouse/trafiklab_realtime.duckdb"
	DefaultDestination = "duckdb"
	DefaultDisposition = "append"
	DefaultTimeout     = 30 * time.Second
)

// Environment variables. These take precedence over the YAML file.
const (
	EnvAPIKey      = "REALTIME_API_KEY"
	EnvBaseURL     = "TRAFIKLAB_BASE_URL"
	EnvDBPath      = "TRAFIKLAB_DB_PATH"
	EnvDestination = "TRAFIKLAB_DESTINATION"
	EnvPostgresURL = "TRAFIKLAB_POSTGRES_URL"
)

type Config struct {
	// Never read from file. Validated by the client, not here, so
	// that commands not talking to the API work without one.
	APIKey string `yaml:"-"`

	BaseURL     string        `yaml:"base_url" validate:"required,url"`
	AreaID      string        `yaml:"area_id"`
	Timeout     time.Duration `yaml:"timeout" validate:"gte=0"`
	Destination string        `yaml:"destination" validate:"oneof=duckdb sqlite postgres"`
	DBPath      string        `yaml:"db_path" validate:"required_unless=Destination postgres"`
	PostgresURL string        `yaml:"postgres_url" validate:"required_if=Destination postgres"`
	Disposition string        `yaml:"disposition" validate:"oneof=append replace merge"`
}

func Default() *Config {
	return &Config{
		BaseURL:     DefaultBaseURL,
		AreaID:      model.DefaultAreaID,
		Timeout:     DefaultTimeout,
		Destination: DefaultDestination,
		DBPath:      DefaultDBPath,
		Disposition: DefaultDisposition,
	}
}

// Loads configuration. Defaults are overridden by the YAML file at
// path (if path isn't blank), which is overridden by the environment.
// A .env file in the working directory is loaded into the
// environment first, without replacing variables already set.
//
// Errors are *model.ConfigError.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, &model.ConfigError{Err: fmt.Errorf("reading %s: %w", path, err)}
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, &model.ConfigError{Err: fmt.Errorf("parsing %s: %w", path, err)}
		}
	}

	cfg.APIKey = os.Getenv(EnvAPIKey)
	if v := os.Getenv(EnvBaseURL); v != "" {
		cfg.BaseURL = v
	}
	if v := os.Getenv(EnvDBPath); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv(EnvDestination); v != "" {
		cfg.Destination = v
	}
	if v := os.Getenv(EnvPostgresURL); v != "" {
		cfg.PostgresURL = v
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return &model.ConfigError{Err: fmt.Errorf("invalid configuration: %w", err)}
	}
	return nil
}
