package config

import (
	"encoding/json"
	"fmt"
	"os"
	"reflect"
	"time"

	"github.com/go-playground/validator/v10"
)

// Config holds the client configuration.
type Config struct {
	BaseURL        string   `json:"base_url" validate:"required,url"`
	RequestTimeout Duration `json:"request_timeout" validate:"min=1s"`
	LogLevel       string   `json:"log_level" validate:"oneof=debug info warn error"`

	Secrets struct {
		Backend string `json:"backend" validate:"oneof=memory fs env keychain redis"`
		Path    string `json:"path"`       // fs backend
		Redis   string `json:"redis_addr"` // redis backend
	} `json:"secrets"`
}

// Duration is a wrapper around time.Duration that accepts "10s"-style
// strings in JSON.
type Duration struct {
	time.Duration
}

// UnmarshalJSON implements json.Unmarshaler
func (d *Duration) UnmarshalJSON(b []byte) error {
	var v interface{}
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch value := v.(type) {
	case float64:
		d.Duration = time.Duration(value)
		return nil
	case string:
		var err error
		d.Duration, err = time.ParseDuration(value)
		if err != nil {
			return err
		}
		return nil
	default:
		return fmt.Errorf("invalid duration")
	}
}

// MarshalJSON implements json.Marshaler
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// Default returns the configuration used when no config file is given.
func Default() *Config {
	cfg := &Config{
		BaseURL:        "https://api.aido.app",
		RequestTimeout: Duration{10 * time.Second},
		LogLevel:       "info",
	}
	cfg.Secrets.Backend = "fs"
	return cfg
}

// Load reads configuration from a file, then applies environment
// overrides and validates. An empty path starts from defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// applyEnvOverrides overrides config fields with environment variables.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("AIDO_BASE_URL"); v != "" {
		c.BaseURL = v
	}
	if v := os.Getenv("AIDO_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("AIDO_SECRETS_BACKEND"); v != "" {
		c.Secrets.Backend = v
	}
	if v := os.Getenv("AIDO_SECRETS_PATH"); v != "" {
		c.Secrets.Path = v
	}
	if v := os.Getenv("AIDO_REDIS_ADDR"); v != "" {
		c.Secrets.Redis = v
	}
	if v := os.Getenv("AIDO_REQUEST_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.RequestTimeout = Duration{d}
		}
	}
}

// validate checks the configuration for errors.
func (c *Config) validate() error {
	validate := validator.New()

	validate.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if duration, ok := field.Interface().(Duration); ok {
			return duration.Duration
		}
		return nil
	}, Duration{})

	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	if c.Secrets.Backend == "redis" && c.Secrets.Redis == "" {
		return fmt.Errorf("secrets backend %q requires redis_addr", c.Secrets.Backend)
	}

	return nil
}
