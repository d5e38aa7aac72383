package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_EnvVarOverrides(t *testing.T) {
	configContent := `
global:
  log_level: info
client:
  base_url: http://angles.example.com/rest/api/v1.0/
  timeout: 5s
  headers:
    x-team: qa
reporter:
  team: original-team
  environment: staging
  component: web
archive:
  concurrency: 2
  local:
    enabled: true
    dir: /tmp/original
`

	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte(configContent), 0o644))

	tests := []struct {
		name     string
		envVars  map[string]string
		validate func(t *testing.T, cfg *Config)
	}{
		{
			name:    "no env vars uses yaml values",
			envVars: map[string]string{},
			validate: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "info", cfg.Global.LogLevel)
				assert.Equal(t, "http://angles.example.com/rest/api/v1.0/", cfg.Client.BaseURL)
				assert.Equal(t, 5*time.Second, cfg.Client.Timeout)
				assert.Equal(t, "qa", cfg.Client.Headers["x-team"])
				assert.Equal(t, "original-team", cfg.Reporter.Team)
				assert.Equal(t, 2, cfg.Archive.Concurrency)
				require.NotNil(t, cfg.Archive.Local)
				assert.Equal(t, "/tmp/original", cfg.Archive.Local.Dir)
			},
		},
		{
			name: "string override - log_level",
			envVars: map[string]string{
				"ANGLES_GLOBAL_LOG_LEVEL": "debug",
			},
			validate: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "debug", cfg.Global.LogLevel)
			},
		},
		{
			name: "string override - base_url",
			envVars: map[string]string{
				"ANGLES_CLIENT_BASE_URL": "http://other:3000/rest/api/v1.0/",
			},
			validate: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "http://other:3000/rest/api/v1.0/", cfg.Client.BaseURL)
			},
		},
		{
			name: "duration override - timeout",
			envVars: map[string]string{
				"ANGLES_CLIENT_TIMEOUT": "30s",
			},
			validate: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 30*time.Second, cfg.Client.Timeout)
			},
		},
		{
			name: "boolean override - rate_limit.enabled",
			envVars: map[string]string{
				"ANGLES_CLIENT_RATE_LIMIT_ENABLED":             "true",
				"ANGLES_CLIENT_RATE_LIMIT_REQUESTS_PER_SECOND": "2.5",
			},
			validate: func(t *testing.T, cfg *Config) {
				assert.True(t, cfg.Client.RateLimit.Enabled)
				assert.InDelta(t, 2.5, cfg.Client.RateLimit.RequestsPerSecond, 0.0001)
				assert.Equal(t, 1, cfg.Client.RateLimit.Burst)
			},
		},
		{
			name: "reporter override - component",
			envVars: map[string]string{
				"ANGLES_REPORTER_COMPONENT": "api",
			},
			validate: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "api", cfg.Reporter.Component)
				assert.Equal(t, "original-team", cfg.Reporter.Team)
			},
		},
		{
			name: "nested field override - server.database.driver",
			envVars: map[string]string{
				"ANGLES_SERVER_DATABASE_DRIVER": "postgres",
			},
			validate: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "postgres", cfg.Server.Database.Driver)
			},
		},
		{
			name: "multiple overrides",
			envVars: map[string]string{
				"ANGLES_GLOBAL_LOG_LEVEL":     "trace",
				"ANGLES_REPORTER_TEAM":        "env-team",
				"ANGLES_ARCHIVE_CONCURRENCY":  "8",
				"ANGLES_REPORTER_ENVIRONMENT": "prod",
			},
			validate: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "trace", cfg.Global.LogLevel)
				assert.Equal(t, "env-team", cfg.Reporter.Team)
				assert.Equal(t, "prod", cfg.Reporter.Environment)
				assert.Equal(t, 8, cfg.Archive.Concurrency)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for key, value := range tt.envVars {
				t.Setenv(key, value)
			}

			cfg, err := Load(configPath)
			require.NoError(t, err)

			tt.validate(t, cfg)
		})
	}
}

func TestLoad_DefaultsAppliedWhenEmpty(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("reporter:\n  team: qa\n"), 0o644))

	cfg, err := Load(configPath)
	require.NoError(t, err)

	assert.Equal(t, DefaultLogLevel, cfg.Global.LogLevel)
	assert.Equal(t, DefaultBaseURL, cfg.Client.BaseURL)
	assert.Equal(t, DefaultTimeout, cfg.Client.Timeout)
	assert.Equal(t, DefaultArchiveConcurrency, cfg.Archive.Concurrency)
	assert.Equal(t, DefaultArchivePrefix, cfg.Archive.Prefix)
	assert.Equal(t, DefaultArchiveMaxScreenshots, cfg.Archive.MaxScreenshots)
	assert.Equal(t, DefaultServerListen, cfg.Server.Listen)
	assert.Equal(t, DefaultDatabaseDriver, cfg.Server.Database.Driver)
	assert.Equal(t, DefaultSQLitePath, cfg.Server.Database.SQLite.Path)
}

func TestLoad_EmptyPathUsesEnvironment(t *testing.T) {
	t.Setenv("ANGLES_CLIENT_BASE_URL", "http://env-only:3000/rest/api/v1.0/")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "http://env-only:3000/rest/api/v1.0/", cfg.Client.BaseURL)
	assert.Equal(t, DefaultTimeout, cfg.Client.Timeout)
}

func TestLoad_FileNotFound(t *testing.T) {
	_, err := Load("/nonexistent/config.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reading config file")
}

func TestLoad_InvalidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("invalid: yaml: content:"), 0o644))

	_, err := Load(configPath)
	require.Error(t, err)
}

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, DefaultBaseURL, cfg.Client.BaseURL)
	assert.Equal(t, DefaultTimeout, cfg.Client.Timeout)
	require.NoError(t, cfg.Validate())
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(cfg *Config)
		wantErr   bool
		errSubstr string
	}{
		{
			name:   "defaults are valid",
			mutate: func(*Config) {},
		},
		{
			name: "non http scheme",
			mutate: func(cfg *Config) {
				cfg.Client.BaseURL = "ftp://angles/rest"
			},
			wantErr:   true,
			errSubstr: "must be an http(s) URL",
		},
		{
			name: "missing host",
			mutate: func(cfg *Config) {
				cfg.Client.BaseURL = "http:///rest/api"
			},
			wantErr:   true,
			errSubstr: "has no host",
		},
		{
			name: "rate limit without rate",
			mutate: func(cfg *Config) {
				cfg.Client.RateLimit.Enabled = true
			},
			wantErr:   true,
			errSubstr: "requests_per_second must be positive",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errSubstr)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestConfig_ValidateArchive(t *testing.T) {
	tests := []struct {
		name      string
		archive   ArchiveConfig
		wantErr   bool
		errSubstr string
	}{
		{
			name:      "nothing enabled",
			archive:   ArchiveConfig{},
			wantErr:   true,
			errSubstr: "no sink enabled",
		},
		{
			name: "valid local",
			archive: ArchiveConfig{
				Local: &LocalArchiveConfig{Enabled: true, Dir: "/tmp/archive"},
			},
		},
		{
			name: "valid s3",
			archive: ArchiveConfig{
				S3: &S3ArchiveConfig{Enabled: true, Bucket: "screens"},
			},
		},
		{
			name: "both enabled",
			archive: ArchiveConfig{
				Local: &LocalArchiveConfig{Enabled: true, Dir: "/tmp/archive"},
				S3:    &S3ArchiveConfig{Enabled: true, Bucket: "screens"},
			},
			wantErr:   true,
			errSubstr: "cannot enable both",
		},
		{
			name: "local missing dir",
			archive: ArchiveConfig{
				Local: &LocalArchiveConfig{Enabled: true},
			},
			wantErr:   true,
			errSubstr: "archive.local.dir is required",
		},
		{
			name: "s3 missing bucket",
			archive: ArchiveConfig{
				S3: &S3ArchiveConfig{Enabled: true},
			},
			wantErr:   true,
			errSubstr: "archive.s3.bucket is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.Archive = tt.archive

			err := cfg.ValidateArchive()
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errSubstr)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestConfig_ValidateServer(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.ValidateServer())

	cfg.Server.Database.Driver = "mysql"
	err := cfg.ValidateServer()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported driver")

	cfg.Server.Database.Driver = "postgres"
	err = cfg.ValidateServer()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "postgres.host is required")
}
