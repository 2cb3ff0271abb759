package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadFile_Defaults(t *testing.T) {
	cfg, err := LoadFile(writeConfig(t, ""))
	require.NoError(t, err)

	assert.Equal(t, "labelprint", cfg.App.Name)
	assert.Equal(t, "development", cfg.App.Env)
	assert.Equal(t, ":8080", cfg.App.Addr())
	assert.Equal(t, 3, cfg.Registration.MaxAttempts)
	assert.Equal(t, time.Second, cfg.Registration.BaseDelay)
	assert.Equal(t, 15*time.Second, cfg.Registration.Timeout)
	assert.True(t, cfg.Printer.AutoPrint)
	assert.Equal(t, "file://", cfg.Printer.Destination)
	assert.Equal(t, 300.0, cfg.Printer.DPI)
	assert.Equal(t, "gofpdf", cfg.Printer.Encoder)
	assert.Equal(t, "1g", cfg.Store.DefaultTier)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr())
	assert.Equal(t, 5*time.Second, cfg.Images.Timeout)
	assert.Equal(t, "labels", cfg.Storage.Prefix)
}

func TestLoadFile_FromTOML(t *testing.T) {
	path := writeConfig(t, `
[store]
id = "store-9"
name = "Flora"
compliance_lines = ["Keep out of reach of children", "For use by adults 21+"]

[printer]
destination = "tcp://10.0.0.5:9100"
auto_print = false
start_position = 4
encoder = "chromedp"

[registration]
endpoint = "https://api.example.com/labels"
base_delay = "250ms"
`)

	cfg, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, "store-9", cfg.Store.ID)
	assert.Len(t, cfg.Store.ComplianceLines, 2)
	assert.False(t, cfg.Printer.AutoPrint)
	assert.Equal(t, 4, cfg.Printer.StartPosition)
	assert.Equal(t, "chromedp", cfg.Printer.Encoder)
	assert.Equal(t, 250*time.Millisecond, cfg.Registration.BaseDelay)
}

func TestLoadFile_EnvOverrides(t *testing.T) {
	t.Setenv("LABELPRINT_REGISTRATION_API_KEY", "secret")
	t.Setenv("LABELPRINT_PRINTER_START_POSITION", "7")
	t.Setenv("LABELPRINT_PRINTER_AUTO_PRINT", "false")

	cfg, err := LoadFile(writeConfig(t, "[printer]\nstart_position = 2\n"))
	require.NoError(t, err)

	assert.Equal(t, "secret", cfg.Registration.APIKey)
	assert.Equal(t, 7, cfg.Printer.StartPosition)
	assert.False(t, cfg.Printer.AutoPrint)
}

func TestLoadFile_MissingExplicitFile(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "nope.toml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"negative start", func(c *Config) { c.Printer.StartPosition = -1 }, "start_position"},
		{"start too large", func(c *Config) { c.Printer.StartPosition = 100 }, "start_position"},
		{"unknown encoder", func(c *Config) { c.Printer.Encoder = "wkhtml" }, "printer.encoder"},
		{"unknown driver", func(c *Config) { c.Database.Driver = "mysql" }, "database.driver"},
		{"postgres without dsn", func(c *Config) { c.Database.Driver = "postgres" }, "database.dsn"},
		{"storage without bucket", func(c *Config) { c.Storage.Enabled = true }, "storage.bucket"},
		{"sampling ratio", func(c *Config) { c.Telemetry.SamplingRatio = 2 }, "sampling_ratio"},
		{"production without endpoint", func(c *Config) { c.App.Env = "production" }, "registration.endpoint"},
		{"production http tracking base", func(c *Config) {
			c.App.Env = "production"
			c.Registration.Endpoint = "https://api.example.com"
			c.Registration.APIKey = "k"
			c.Registration.TrackingBaseURL = "http://track.example.com"
		}, "https"},
		{"valid production", func(c *Config) {
			c.App.Env = "production"
			c.Registration.Endpoint = "https://api.example.com"
			c.Registration.APIKey = "k"
			c.Registration.TrackingBaseURL = "https://track.example.com/q"
		}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{}
			applyDefaults(cfg)
			tt.mutate(cfg)

			err := cfg.validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
