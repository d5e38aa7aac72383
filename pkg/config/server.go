package config

import "fmt"

// ServerConfig configures the local mock Angles server.
type ServerConfig struct {
	Listen      string          `yaml:"listen" mapstructure:"listen"`
	CORSOrigins []string        `yaml:"cors_origins,omitempty" mapstructure:"cors_origins"`
	RateLimit   RateLimitConfig `yaml:"rate_limit,omitempty" mapstructure:"rate_limit"`
	Database    DatabaseConfig  `yaml:"database" mapstructure:"database"`
	Versions    VersionsConfig  `yaml:"versions,omitempty" mapstructure:"versions"`
}

// RateLimitConfig configures per-IP rate limiting.
type RateLimitConfig struct {
	Enabled           bool `yaml:"enabled" mapstructure:"enabled"`
	RequestsPerMinute int  `yaml:"requests_per_minute" mapstructure:"requests_per_minute"`
}

// VersionsConfig is reported by GET angles/versions.
type VersionsConfig struct {
	Angles string `yaml:"angles,omitempty" mapstructure:"angles"`
	Node   string `yaml:"node,omitempty" mapstructure:"node"`
	Mongo  string `yaml:"mongo,omitempty" mapstructure:"mongo"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Driver   string               `yaml:"driver" mapstructure:"driver"`
	SQLite   SQLiteDatabaseConfig `yaml:"sqlite,omitempty" mapstructure:"sqlite"`
	Postgres PostgresConfig       `yaml:"postgres,omitempty" mapstructure:"postgres"`
}

// SQLiteDatabaseConfig contains SQLite-specific settings.
type SQLiteDatabaseConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// PostgresConfig contains PostgreSQL connection settings.
type PostgresConfig struct {
	Host     string `yaml:"host" mapstructure:"host"`
	Port     int    `yaml:"port" mapstructure:"port"`
	User     string `yaml:"user" mapstructure:"user"`
	Password string `yaml:"password" mapstructure:"password"`
	Database string `yaml:"database" mapstructure:"database"`
	SSLMode  string `yaml:"ssl_mode,omitempty" mapstructure:"ssl_mode"`
}

const defaultRequestsPerMinute = 600

func (s *ServerConfig) applyDefaults() {
	if s.Listen == "" {
		s.Listen = DefaultServerListen
	}

	if s.Database.Driver == "" {
		s.Database.Driver = DefaultDatabaseDriver
	}

	if s.Database.Driver == "sqlite" && s.Database.SQLite.Path == "" {
		s.Database.SQLite.Path = DefaultSQLitePath
	}

	if s.Database.Postgres.Port == 0 {
		s.Database.Postgres.Port = 5432
	}

	if s.Database.Postgres.SSLMode == "" {
		s.Database.Postgres.SSLMode = "disable"
	}

	if s.RateLimit.Enabled && s.RateLimit.RequestsPerMinute <= 0 {
		s.RateLimit.RequestsPerMinute = defaultRequestsPerMinute
	}

	if s.Versions.Angles == "" {
		s.Versions.Angles = "mock"
	}
}

// ValidateServer checks the server section for errors.
func (c *Config) ValidateServer() error {
	switch c.Server.Database.Driver {
	case "sqlite":
		if c.Server.Database.SQLite.Path == "" {
			return fmt.Errorf("server.database.sqlite.path is required")
		}
	case "postgres":
		if c.Server.Database.Postgres.Host == "" {
			return fmt.Errorf("server.database.postgres.host is required")
		}
	default:
		return fmt.Errorf("server.database.driver: unsupported driver %q", c.Server.Database.Driver)
	}

	return nil
}
