package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetEnvHelpers(t *testing.T) {
	t.Setenv("DPE_TEST_STRING", "value")
	t.Setenv("DPE_TEST_INT", "42")
	t.Setenv("DPE_TEST_BAD_INT", "forty")
	t.Setenv("DPE_TEST_FLOAT", "0.25")
	t.Setenv("DPE_TEST_BOOL", "Yes")

	assert.Equal(t, "value", GetEnv("DPE_TEST_STRING", "default"))
	assert.Equal(t, "default", GetEnv("DPE_TEST_UNSET", "default"))
	assert.Equal(t, 42, GetEnvInt("DPE_TEST_INT", 1))
	assert.Equal(t, 1, GetEnvInt("DPE_TEST_BAD_INT", 1))
	assert.Equal(t, 0.25, GetEnvFloat("DPE_TEST_FLOAT", 0.1))
	assert.True(t, GetEnvBool("DPE_TEST_BOOL", false))
	assert.False(t, GetEnvBool("DPE_TEST_UNSET", false))
}

func TestLoadDefaults(t *testing.T) {
	chdir(t, t.TempDir())
	for _, key := range []string{
		"PGHOST", "PGPORT", "PGSSLMODE", "DB_MAX_CONNECTIONS", "WEB_HOST", "WEB_PORT",
		"MATCH_MAX_CANDIDATES", "MATCH_MAX_LINKS", "MATCH_SURFACE_TOLERANCE", "MATCH_LINK_WORKERS",
		"LOG_LEVEL", "DEBUG",
	} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "localhost", cfg.Database.Host)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, 20, cfg.Database.MaxConnections)
	assert.Equal(t, "localhost:8080", cfg.Web.Addr())
	assert.Equal(t, MatchConfig{MaxCandidates: 50, MaxLinks: 5, SurfaceTolerance: 0.10, LinkWorkers: 4}, cfg.Match)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.False(t, cfg.Debug)
	assert.Contains(t, cfg.Database.DSN(), "sslmode=disable")
}

func TestLoadReadsDotEnvWithoutOverriding(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"),
		[]byte("# local settings\nPGDATABASE=dpe_local\nMATCH_MAX_LINKS=3\n"), 0o600))

	t.Setenv("PGDATABASE", "")
	t.Setenv("MATCH_MAX_LINKS", "4")
	// godotenv only fills variables that are absent
	require.NoError(t, os.Unsetenv("PGDATABASE"))

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "dpe_local", cfg.Database.Name)
	assert.Equal(t, 4, cfg.Match.MaxLinks)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Database: DatabaseConfig{MaxConnections: 20},
			Web:      WebConfig{Host: "localhost", Port: 8080},
			Match:    MatchConfig{MaxCandidates: 50, MaxLinks: 5, SurfaceTolerance: 0.1, LinkWorkers: 4},
		}
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "zero links", mutate: func(c *Config) { c.Match.MaxLinks = 0 }, errMsg: "MATCH_MAX_LINKS must be positive"},
		{name: "links above candidates", mutate: func(c *Config) { c.Match.MaxLinks = 60 }, errMsg: "exceeds MATCH_MAX_CANDIDATES"},
		{name: "tolerance of one", mutate: func(c *Config) { c.Match.SurfaceTolerance = 1 }, errMsg: "MATCH_SURFACE_TOLERANCE"},
		{name: "port", mutate: func(c *Config) { c.Web.Port = 70000 }, errMsg: "WEB_PORT"},
		{name: "workers", mutate: func(c *Config) { c.Match.LinkWorkers = 0 }, errMsg: "MATCH_LINK_WORKERS"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.errMsg == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

// chdir changes the working directory for the duration of the test
// (equivalent of testing.T.Chdir, which requires Go 1.24).
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(prev) })
}
