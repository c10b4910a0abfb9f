// Package config handles loading and validating gateway configuration.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config is the top-level configuration for the deepgate gateway. Unlike a
// static provider list, providers/models/composites live in the persisted
// repository (internal/store) — this struct only owns process topology.
type Config struct {
	Server  ServerConfig  `koanf:"server"`
	Store   StoreConfig   `koanf:"store"`
	Auth    AuthConfig    `koanf:"auth"`
	Metrics MetricsConfig `koanf:"metrics"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port         int           `koanf:"port"`
	ReadTimeout  time.Duration `koanf:"read_timeout"`
	WriteTimeout time.Duration `koanf:"write_timeout"`
}

// StoreConfig points at the sqlite-backed repository.
type StoreConfig struct {
	Datasource string `koanf:"datasource"`
}

// AuthConfig mirrors original_source/app/utils/auth.py's JWT environment
// contract for the admin surface's cookie session.
type AuthConfig struct {
	JWTSecretKey            string        `koanf:"jwt_secret_key"`
	JWTAlgorithm             string        `koanf:"jwt_algorithm"`
	JWTAccessTokenExpire     time.Duration `koanf:"jwt_access_token_expire"`
	AdminCORSAllowedOrigins  []string      `koanf:"admin_cors_allowed_origins"`
}

// MetricsConfig toggles the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `koanf:"enabled"`
	Path    string `koanf:"path"`
}

// Load reads configuration from a YAML file, layers environment variable
// overrides on top, and returns a fully populated Config.
func Load(path string) (*Config, error) {
	// Load .env file into the process environment (ignored if not present).
	_ = godotenv.Load()

	// Create a new koanf instance. The "." delimiter tells koanf how to
	// separate nested keys internally (e.g., "server.port").
	k := koanf.New(".")

	// Load the YAML config file. file.Provider reads the file,
	// yaml.Parser() decodes the YAML format into koanf's internal map.
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("loading config file: %w", err)
	}

	// Layer environment variables on top. Any env var starting with
	// "DEEPGATE_" can override a config value. The callback transforms
	// the env var name into a koanf key path:
	//   DEEPGATE_SERVER_PORT -> server.port
	if err := k.Load(env.Provider("DEEPGATE_", ".", func(s string) string {
		return strings.ReplaceAll(
			strings.ToLower(strings.TrimPrefix(s, "DEEPGATE_")),
			"_", ".",
		)
	}), nil); err != nil {
		return nil, fmt.Errorf("loading env vars: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	// Expand ${VAR_NAME} placeholders, same convention the teacher used for
	// provider API keys — here it applies to the JWT secret, the one
	// process-level secret config still owns.
	if strings.HasPrefix(cfg.Auth.JWTSecretKey, "${") && strings.HasSuffix(cfg.Auth.JWTSecretKey, "}") {
		envVar := cfg.Auth.JWTSecretKey[2 : len(cfg.Auth.JWTSecretKey)-1]
		cfg.Auth.JWTSecretKey = os.Getenv(envVar)
	}

	applyDefaults(&cfg)

	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 30 * time.Second
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 600 * time.Second
	}
	if cfg.Store.Datasource == "" {
		cfg.Store.Datasource = "deepgate.db"
	}
	if cfg.Auth.JWTAlgorithm == "" {
		cfg.Auth.JWTAlgorithm = "HS256"
	}
	if cfg.Auth.JWTAccessTokenExpire == 0 {
		cfg.Auth.JWTAccessTokenExpire = 7 * 24 * time.Hour
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}
}
