package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "car_log_input.xlsx", cfg.Input)
	assert.Equal(t, "Submission_Log.csv", cfg.Output)
	assert.Len(t, cfg.Fields, 9)
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Site.URL, cfg.Site.URL)
}

func TestLoadMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "carlog.yaml")
	require.NoError(t, os.WriteFile(path, []byte("fields: {not: a list"), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "carlog.yaml")
	body := `
input: trips.csv
output: audit.csv
site:
  url: https://example.test/form
fields:
  - column: Name
    locator: "#name"
    kind: text
    required: true
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "trips.csv", cfg.Input)
	assert.Equal(t, "audit.csv", cfg.Output)
	assert.Equal(t, "https://example.test/form", cfg.Site.URL)
	require.Len(t, cfg.Fields, 1)
	assert.Equal(t, KindText, cfg.Fields[0].Kind)
	require.NoError(t, cfg.Validate())
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("CARLOG_INPUT", "env.xlsx")
	t.Setenv("CARLOG_HEADLESS", "true")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "env.xlsx", cfg.Input)
	assert.True(t, cfg.Browser.Headless)
}

func TestValidateRejectsBadMappings(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"no url", func(c *Config) { c.Site.URL = "" }},
		{"no output", func(c *Config) { c.Output = "" }},
		{"no fields", func(c *Config) { c.Fields = nil }},
		{"missing column", func(c *Config) { c.Fields[0].Column = "" }},
		{"missing locator", func(c *Config) { c.Fields[0].Locator = "" }},
		{"unknown kind", func(c *Config) { c.Fields[0].Kind = "slider" }},
		{"duplicate column", func(c *Config) { c.Fields[1].Column = c.Fields[0].Column }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestDurationFallbacks(t *testing.T) {
	site := SiteConfig{LocateTimeout: "bogus", SettleDelay: ""}
	assert.Equal(t, DefaultConfig().Site.GetLocateTimeout(), site.GetLocateTimeout())
	assert.Equal(t, DefaultConfig().Site.GetSettleDelay(), site.GetSettleDelay())
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "carlog.yaml")
	cfg := DefaultConfig()
	cfg.Input = "saved.xlsx"
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "saved.xlsx", loaded.Input)
	assert.Equal(t, cfg.Columns(), loaded.Columns())
}
