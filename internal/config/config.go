// Package config loads the API service configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Default values applied after loading.
const (
	DefaultHost     = "127.0.0.1"
	DefaultPort     = 8080
	DefaultDSN      = "sqlite:///fin.meta.db.sqlite"
	DefaultPageSize = 500
)

// Config is the api serve configuration file.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Dolt     DoltConfig     `yaml:"dolt"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port" validate:"min=1,max=65535"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	PageSize        int           `yaml:"page_size" validate:"min=1,max=10000"`
}

// Addr returns host:port.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// DatabaseConfig selects the quote and symbol store.
type DatabaseConfig struct {
	DSN string `yaml:"dsn" validate:"required"`
}

// DoltConfig describes the local dolt repository served by the API.
type DoltConfig struct {
	Repository DoltRepository `yaml:"repository"`
}

// DoltRepository is a dolt working directory and an optional server command.
type DoltRepository struct {
	Path        string `yaml:"path"`
	StartServer string `yaml:"start_server"` // e.g. "dolt sql-server --config server.yaml"
}

// Load reads the YAML file at path. ${VAR} and ${VAR:default} references
// are replaced from the environment before parsing.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse decodes, defaults and validates a configuration document.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal([]byte(ExpandEnv(string(data))), &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = DefaultHost
	}
	if c.Server.Port == 0 {
		c.Server.Port = DefaultPort
	}
	if c.Server.ShutdownTimeout <= 0 {
		c.Server.ShutdownTimeout = 30 * time.Second
	}
	if c.Server.PageSize == 0 {
		c.Server.PageSize = DefaultPageSize
	}
	if c.Database.DSN == "" {
		c.Database.DSN = DefaultDSN
	}
	if c.Dolt.Repository.Path == "" {
		c.Dolt.Repository.Path = "."
	}
}

var validate = validator.New()

// Validate checks field constraints.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s: failed %q", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// ExpandEnv replaces ${VAR} and ${VAR:default} with environment values.
func ExpandEnv(s string) string {
	return os.Expand(s, func(key string) string {
		name, def, hasDefault := strings.Cut(key, ":")
		if v, ok := os.LookupEnv(name); ok {
			return v
		}
		if hasDefault {
			return def
		}
		return ""
	})
}

// LoadEnvFile sets variables from a .env file without overriding ones
// already present. A missing file is not an error.
func LoadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	return nil
}
