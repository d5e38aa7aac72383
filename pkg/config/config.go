package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

const (
	// EnvPrefix is the prefix of environment variable overrides, e.g.
	// ANGLES_CLIENT_BASE_URL.
	EnvPrefix = "ANGLES"

	// DefaultLogLevel is the default logging level.
	DefaultLogLevel = "info"

	// DefaultBaseURL is the default Angles REST API root.
	DefaultBaseURL = "http://127.0.0.1:3000/rest/api/v1.0/"

	// DefaultTimeout is the default per-request timeout.
	DefaultTimeout = 10 * time.Second

	// DefaultArchiveConcurrency is the default number of parallel
	// screenshot downloads when archiving a build.
	DefaultArchiveConcurrency = 4

	// DefaultArchiveMaxScreenshots is the default cap on screenshots
	// archived from one build.
	DefaultArchiveMaxScreenshots = 10000

	// DefaultArchivePrefix is the default key prefix for archived builds.
	DefaultArchivePrefix = "angles/builds"

	// DefaultServerListen is the default listen address of the mock server.
	DefaultServerListen = "127.0.0.1:3000"

	// DefaultDatabaseDriver is the default mock server database driver.
	DefaultDatabaseDriver = "sqlite"

	// DefaultSQLitePath is the default sqlite database path.
	DefaultSQLitePath = "angles-mock.db"
)

// Config is the root configuration.
type Config struct {
	Global   GlobalConfig   `yaml:"global" mapstructure:"global"`
	Client   ClientConfig   `yaml:"client" mapstructure:"client"`
	Reporter ReporterConfig `yaml:"reporter" mapstructure:"reporter"`
	Archive  ArchiveConfig  `yaml:"archive,omitempty" mapstructure:"archive"`
	Server   ServerConfig   `yaml:"server,omitempty" mapstructure:"server"`
}

// GlobalConfig contains global application settings.
type GlobalConfig struct {
	LogLevel string `yaml:"log_level" mapstructure:"log_level"`
}

// ClientConfig configures the HTTP transport to the Angles API.
type ClientConfig struct {
	BaseURL   string            `yaml:"base_url" mapstructure:"base_url"`
	Timeout   time.Duration     `yaml:"timeout" mapstructure:"timeout"`
	Headers   map[string]string `yaml:"headers,omitempty" mapstructure:"headers"`
	RateLimit ClientRateLimit   `yaml:"rate_limit,omitempty" mapstructure:"rate_limit"`
	Debug     bool              `yaml:"debug,omitempty" mapstructure:"debug"`
}

// ClientRateLimit throttles outgoing requests on the client side.
type ClientRateLimit struct {
	Enabled           bool    `yaml:"enabled" mapstructure:"enabled"`
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	Burst             int     `yaml:"burst" mapstructure:"burst"`
}

// ReporterConfig holds defaults used when the CLI starts a build.
type ReporterConfig struct {
	Team        string `yaml:"team,omitempty" mapstructure:"team"`
	Environment string `yaml:"environment,omitempty" mapstructure:"environment"`
	Component   string `yaml:"component,omitempty" mapstructure:"component"`
	Phase       string `yaml:"phase,omitempty" mapstructure:"phase"`
	BuildName   string `yaml:"build_name,omitempty" mapstructure:"build_name"`
}

// ArchiveConfig configures where build screenshots are archived. Only one
// sink (S3 or local) may be enabled at a time. Archiving a build with more
// than MaxScreenshots screenshots fails rather than writing a partial
// archive.
type ArchiveConfig struct {
	Concurrency    int                 `yaml:"concurrency,omitempty" mapstructure:"concurrency"`
	Prefix         string              `yaml:"prefix,omitempty" mapstructure:"prefix"`
	MaxScreenshots int                 `yaml:"max_screenshots,omitempty" mapstructure:"max_screenshots"`
	Local          *LocalArchiveConfig `yaml:"local,omitempty" mapstructure:"local"`
	S3             *S3ArchiveConfig    `yaml:"s3,omitempty" mapstructure:"s3"`
}

// LocalArchiveConfig writes archives below a local directory.
type LocalArchiveConfig struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	Dir     string `yaml:"dir" mapstructure:"dir"`
}

// S3ArchiveConfig writes archives to S3-compatible storage.
type S3ArchiveConfig struct {
	Enabled         bool   `yaml:"enabled" mapstructure:"enabled"`
	EndpointURL     string `yaml:"endpoint_url,omitempty" mapstructure:"endpoint_url"`
	Region          string `yaml:"region,omitempty" mapstructure:"region"`
	Bucket          string `yaml:"bucket" mapstructure:"bucket"`
	AccessKeyID     string `yaml:"access_key_id,omitempty" mapstructure:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key,omitempty" mapstructure:"secret_access_key"`
	ForcePathStyle  bool   `yaml:"force_path_style" mapstructure:"force_path_style"`
	StorageClass    string `yaml:"storage_class,omitempty" mapstructure:"storage_class"`
	ACL             string `yaml:"acl,omitempty" mapstructure:"acl"`
}

// Load reads the configuration file at path, applies ANGLES_* environment
// overrides and fills in defaults. An empty path loads defaults and the
// environment only.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Register every key so AutomaticEnv can override keys missing from
	// the file.
	for key, value := range flatDefaults() {
		v.SetDefault(key, value)
	}

	if path != "" {
		v.SetConfigFile(path)

		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &cfg,
		TagName:          "mapstructure",
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	})
	if err != nil {
		return nil, fmt.Errorf("creating config decoder: %w", err)
	}

	if err := decoder.Decode(v.AllSettings()); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.applyDefaults()

	return &cfg, nil
}

// Default returns a configuration populated with defaults only.
func Default() *Config {
	var cfg Config

	cfg.applyDefaults()

	return &cfg
}

// flatDefaults lists the scalar keys that may be overridden from the
// environment, keyed by their dotted viper path.
func flatDefaults() map[string]any {
	return map[string]any{
		"global.log_level":                      DefaultLogLevel,
		"client.base_url":                       DefaultBaseURL,
		"client.timeout":                        DefaultTimeout.String(),
		"client.debug":                          false,
		"client.rate_limit.enabled":             false,
		"client.rate_limit.requests_per_second": 0,
		"client.rate_limit.burst":               0,
		"reporter.team":                         "",
		"reporter.environment":                  "",
		"reporter.component":                    "",
		"reporter.phase":                        "",
		"reporter.build_name":                   "",
		"archive.concurrency":                   DefaultArchiveConcurrency,
		"archive.prefix":                        DefaultArchivePrefix,
		"archive.max_screenshots":               DefaultArchiveMaxScreenshots,
		"server.listen":                         DefaultServerListen,
		"server.database.driver":                DefaultDatabaseDriver,
		"server.database.sqlite.path":           DefaultSQLitePath,
	}
}

// applyDefaults sets default values for unspecified configuration options.
func (c *Config) applyDefaults() {
	if c.Global.LogLevel == "" {
		c.Global.LogLevel = DefaultLogLevel
	}

	if c.Client.BaseURL == "" {
		c.Client.BaseURL = DefaultBaseURL
	}

	if c.Client.Timeout <= 0 {
		c.Client.Timeout = DefaultTimeout
	}

	if c.Client.RateLimit.Enabled && c.Client.RateLimit.Burst <= 0 {
		c.Client.RateLimit.Burst = 1
	}

	if c.Archive.Concurrency <= 0 {
		c.Archive.Concurrency = DefaultArchiveConcurrency
	}

	if c.Archive.Prefix == "" {
		c.Archive.Prefix = DefaultArchivePrefix
	}

	if c.Archive.MaxScreenshots <= 0 {
		c.Archive.MaxScreenshots = DefaultArchiveMaxScreenshots
	}

	c.Server.applyDefaults()
}

// Validate checks the client configuration for errors.
func (c *Config) Validate() error {
	u, err := url.Parse(c.Client.BaseURL)
	if err != nil {
		return fmt.Errorf("client.base_url: %w", err)
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("client.base_url must be an http(s) URL, got %q", c.Client.BaseURL)
	}

	if u.Host == "" {
		return fmt.Errorf("client.base_url %q has no host", c.Client.BaseURL)
	}

	if c.Client.RateLimit.Enabled && c.Client.RateLimit.RequestsPerSecond <= 0 {
		return fmt.Errorf("client.rate_limit.requests_per_second must be positive when enabled")
	}

	return nil
}

// ValidateArchive checks the archive section for errors.
func (c *Config) ValidateArchive() error {
	local := c.Archive.Local != nil && c.Archive.Local.Enabled
	s3 := c.Archive.S3 != nil && c.Archive.S3.Enabled

	switch {
	case local && s3:
		return fmt.Errorf("archive: cannot enable both local and s3")
	case !local && !s3:
		return fmt.Errorf("archive: no sink enabled (set archive.local or archive.s3)")
	case local && c.Archive.Local.Dir == "":
		return fmt.Errorf("archive.local.dir is required")
	case s3 && c.Archive.S3.Bucket == "":
		return fmt.Errorf("archive.s3.bucket is required")
	}

	return nil
}
