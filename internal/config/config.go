package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	CORS     CORSConfig     `yaml:"cors"`
	Audit    AuditConfig    `yaml:"audit"`
	Messages MessagesConfig `yaml:"messages"`
}

type ServerConfig struct {
	Port int    `yaml:"port" env:"PORT"`
	Host string `yaml:"host" env:"HOST"`
}

type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins" env:"CORS_ORIGIN" envSeparator:","`
}

// AuditConfig controls the local relay audit trail. An empty DBPath disables
// it and a zero Retention keeps events forever.
type AuditConfig struct {
	DBPath     string        `yaml:"db_path" env:"DB_PATH"`
	BufferSize int           `yaml:"buffer_size" env:"AUDIT_BUFFER_SIZE"`
	Retention  time.Duration `yaml:"retention" env:"AUDIT_RETENTION"`
}

type MessagesConfig struct {
	KickReason  string `yaml:"kick_reason" env:"KICK_REASON"`
	BlockReason string `yaml:"block_reason" env:"BLOCK_REASON"`
}

// Default returns the configuration used when nothing overrides it.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port: 3001,
			Host: "0.0.0.0",
		},
		CORS: CORSConfig{
			AllowedOrigins: []string{"http://localhost:3000"},
		},
		Audit: AuditConfig{
			BufferSize: 1024,
		},
		Messages: MessagesConfig{
			KickReason:  "Anda telah dikeluarkan dari ujian oleh pengawas",
			BlockReason: "Anda telah diblokir dari ujian oleh pengawas",
		},
	}
}

// Load reads path over the defaults, then applies environment overrides.
// A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("failed to read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config: %w", err)
			}
		}
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse env: %w", err)
	}

	cfg.CORS.AllowedOrigins = cleanOrigins(cfg.CORS.AllowedOrigins)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that would prevent the server from starting.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Server.Port)
	}
	if c.Audit.BufferSize <= 0 {
		return fmt.Errorf("invalid audit buffer size %d", c.Audit.BufferSize)
	}
	if c.Audit.Retention < 0 {
		return fmt.Errorf("invalid audit retention %s", c.Audit.Retention)
	}
	return nil
}

// Addr returns the listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// AllowsAnyOrigin reports whether the origin list contains the wildcard.
func (c *Config) AllowsAnyOrigin() bool {
	for _, o := range c.CORS.AllowedOrigins {
		if o == "*" {
			return true
		}
	}
	return false
}

func cleanOrigins(origins []string) []string {
	cleaned := make([]string, 0, len(origins))
	for _, o := range origins {
		if o = strings.TrimSpace(o); o != "" {
			cleaned = append(cleaned, o)
		}
	}
	return cleaned
}
