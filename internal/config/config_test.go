// File: internal/config/config_test.go
package config

import (
	"bytes"
	"testing"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// -- Constructor and Defaults Tests --

func TestNewDefaultConfig(t *testing.T) {
	cfg := NewDefaultConfig()

	assert.Equal(t, "info", cfg.Logger.Level)
	assert.Equal(t, "zonecheck", cfg.Logger.ServiceName)
	assert.Equal(t, DriverChromedp, cfg.Browser.Driver)
	assert.Equal(t, EngineChromium, cfg.Browser.Engine)
	assert.False(t, cfg.Browser.Headless)
	assert.Equal(t, 100*time.Millisecond, cfg.Browser.SlowMo)
	assert.Equal(t, 1366, cfg.Browser.Viewport.Width)
	assert.Equal(t, 768, cfg.Browser.Viewport.Height)
	assert.Equal(t, 30*time.Second, cfg.Browser.DefaultTimeout)
	assert.Equal(t, time.Second, cfg.Interaction.ActionTimeout)
	assert.Equal(t, 2*time.Second, cfg.Interaction.LongActionTimeout)
	assert.Equal(t, 5*time.Second, cfg.Interaction.VisibilityTimeout)
	assert.Equal(t, "/login", cfg.App.LoginPath)
	assert.Equal(t, 18, cfg.Scenario.TravelTime)
	assert.Equal(t, 200, cfg.Scenario.EditedDistance)
	assert.Equal(t, 5, cfg.Scenario.DrawVertices)
	assert.Equal(t, 300*time.Millisecond, cfg.Scenario.DrawPause)
}

func validConfig() *Config {
	cfg := NewDefaultConfig()
	cfg.App.BaseURL = "https://stores.example.com"
	cfg.Credentials = CredentialsConfig{Username: "ops@example.com", Password: "secret"}
	return cfg
}

// -- Validation Logic Tests --

func TestConfigValidation(t *testing.T) {
	t.Run("Valid Config", func(t *testing.T) {
		assert.NoError(t, validConfig().Validate())
	})

	t.Run("Missing Base URL", func(t *testing.T) {
		cfg := validConfig()
		cfg.App.BaseURL = ""
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "app.base_url is a required configuration field")
	})

	t.Run("Missing Credentials", func(t *testing.T) {
		cfg := validConfig()
		cfg.Credentials.Password = ""
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "ZONECHECK_PASSWORD")
	})

	t.Run("Errors Are Aggregated", func(t *testing.T) {
		cfg := validConfig()
		cfg.App.BaseURL = ""
		cfg.Scenario.DrawVertices = 2
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "app.base_url")
		assert.Contains(t, err.Error(), "scenario.draw_vertices must be at least 3")
	})

	t.Run("Browser Validation", func(t *testing.T) {
		cfg := validConfig()
		cfg.Browser.Engine = EngineFirefox
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "only supports the \"chromium\" engine")

		cfg.Browser.Driver = DriverPlaywright
		assert.NoError(t, cfg.Validate(), "playwright drives firefox")

		cfg.Browser.Driver = "selenium"
		err = cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown driver \"selenium\"")

		bad := validConfig().Browser
		bad.Viewport.Width = 0
		assert.ErrorContains(t, bad.Validate(), "viewport must have positive dimensions")
	})

	t.Run("Interaction Validation", func(t *testing.T) {
		i := validConfig().Interaction
		i.PollInterval = 0
		assert.ErrorContains(t, i.Validate(), "poll_interval must be a positive duration")

		i = validConfig().Interaction
		i.ActionTimeout = -time.Second
		assert.ErrorContains(t, i.Validate(), "timeouts must be positive")
	})
}

// -- Factory Function Tests --

func TestNewConfigFromViper(t *testing.T) {
	t.Run("Successful Load from YAML", func(t *testing.T) {
		yamlBytes := []byte(`
app:
  base_url: "https://stores.example.com"
browser:
  headless: true
  slow_mo: 0s
interaction:
  action_timeout: 1500ms
`)
		v := viper.New()
		SetDefaults(v)
		v.SetConfigType("yaml")
		require.NoError(t, v.ReadConfig(bytes.NewBuffer(yamlBytes)))

		var cfg Config
		require.NoError(t, v.Unmarshal(&cfg))

		assert.Equal(t, "https://stores.example.com", cfg.App.BaseURL)
		assert.True(t, cfg.Browser.Headless)
		assert.Zero(t, cfg.Browser.SlowMo)
		assert.Equal(t, 1500*time.Millisecond, cfg.Interaction.ActionTimeout)
		// Defaults survive alongside file values.
		assert.Equal(t, "info", cfg.Logger.Level)
	})

	t.Run("Validation Failure", func(t *testing.T) {
		v := viper.New()
		SetDefaults(v)
		v.Set("app.base_url", "https://stores.example.com")
		t.Setenv("ZONECHECK_USERNAME", "")
		t.Setenv("ZONECHECK_PASSWORD", "")

		cfg, err := NewConfigFromViper(v)
		assert.Error(t, err)
		assert.Nil(t, cfg)
		assert.Contains(t, err.Error(), "invalid configuration")
		assert.Contains(t, err.Error(), "credentials are required")
	})

	t.Run("Environment Variable Binding", func(t *testing.T) {
		v := viper.New()
		SetDefaults(v)
		v.Set("app.base_url", "https://stores.example.com")

		yamlConfig := []byte(`
credentials:
  username: "file-user@example.com"
`)
		v.SetConfigType("yaml")
		require.NoError(t, v.ReadConfig(bytes.NewBuffer(yamlConfig)))

		t.Setenv("ZONECHECK_USERNAME", "env-user@example.com")
		t.Setenv("ZONECHECK_PASSWORD", "env-secret")

		cfg, err := NewConfigFromViper(v)
		require.NoError(t, err)
		require.NotNil(t, cfg)

		assert.Equal(t, "env-user@example.com", cfg.Credentials.Username, "env overrides the config file")
		assert.Equal(t, "env-secret", cfg.Credentials.Password)
	})

	t.Run("Home Directory Expansion", func(t *testing.T) {
		homedir.DisableCache = true
		t.Cleanup(func() { homedir.DisableCache = false })
		t.Setenv("HOME", "/home/operator")
		t.Setenv("ZONECHECK_USERNAME", "ops@example.com")
		t.Setenv("ZONECHECK_PASSWORD", "secret")
		v := viper.New()
		SetDefaults(v)
		v.Set("app.base_url", "https://stores.example.com")
		v.Set("paths.downloads", "~/zonecheck/downloads")

		cfg, err := NewConfigFromViper(v)
		require.NoError(t, err)
		assert.Equal(t, "/home/operator/zonecheck/downloads", cfg.Paths.Downloads)
	})
}

func TestDerivedPaths(t *testing.T) {
	cfg := validConfig()
	cfg.App.BaseURL = "https://stores.example.com/"
	assert.Equal(t, "https://stores.example.com/login", cfg.App.LoginURL())

	cfg.Paths.TestData = "testData/"
	assert.Equal(t, "testData/lat_long_coordinates.csv", cfg.CoordinatesPath())

	cfg.Scenario.CoordinatesFile = "/srv/coords.csv"
	assert.Equal(t, "/srv/coords.csv", cfg.CoordinatesPath())
}
