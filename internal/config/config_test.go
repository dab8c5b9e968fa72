package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, Version, cfg.Version)
	assert.Equal(t, DefaultLatinID(), cfg.Sources.LatinID)
	assert.True(t, cfg.Gesture.TapEnabled)
	assert.True(t, cfg.Gesture.EscapeEnabled)
	assert.Equal(t, 500, cfg.Gesture.TapWindowMs)
	assert.Equal(t, 20, cfg.Switcher.SettleMs)
	assert.Equal(t, "deny", cfg.Apps.Mode)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{"empty latin id", func(c *Config) { c.Sources.LatinID = "" }, ErrEmptyLatinID},
		{"tap window too small", func(c *Config) { c.Gesture.TapWindowMs = 10 }, ErrBadTapWindow},
		{"tap window too large", func(c *Config) { c.Gesture.TapWindowMs = 5000 }, ErrBadTapWindow},
		{"settle zero", func(c *Config) { c.Switcher.SettleMs = 0 }, ErrBadSettle},
		{"settle too large", func(c *Config) { c.Switcher.SettleMs = 500 }, ErrBadSettle},
		{"escalation slower than tap window", func(c *Config) {
			c.Switcher.SettleMs = 100
			c.Gesture.TapWindowMs = 500
		}, ErrSettleTooSlow},
		{"bad policy mode", func(c *Config) { c.Apps.Mode = "blocklist" }, ErrBadPolicyMode},
		{"empty store path", func(c *Config) { c.Store.Path = "" }, ErrEmptyStorePath},
		{"bad log level", func(c *Config) { c.Logging.Level = "verbose" }, ErrBadLogLevel},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }, ErrBadLogFormat},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.ErrorIs(t, cfg.Validate(), tt.wantErr)
		})
	}
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	require.NoError(t, err)
	assert.Equal(t, Default().Sources.LatinID, cfg.Sources.LatinID)
}

func TestLoadOverlaysDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	data := `
version = 1

[sources]
latin_id = "com.apple.keylayout.US"

[gesture]
tap_window_ms = 300
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "com.apple.keylayout.US", cfg.Sources.LatinID)
	assert.Equal(t, 300, cfg.Gesture.TapWindowMs)
	// Untouched sections keep their defaults.
	assert.Equal(t, 20, cfg.Switcher.SettleMs)
	assert.True(t, cfg.Gesture.TapEnabled)
}

func TestLoadRejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	data := `
[gesture]
tap_window_ms = 7
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	_, err := Load(path)
	assert.ErrorIs(t, err, ErrBadTapWindow)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "config.toml")

	cfg := Default()
	cfg.Sources.LatinID = "xkb:de::ger"
	cfg.Gesture.TapEnabled = false
	cfg.Apps.Mode = "allow"
	cfg.Apps.List = []string{"com.apple.Terminal"}
	require.NoError(t, Save(cfg, path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg.Sources.LatinID, loaded.Sources.LatinID)
	assert.Equal(t, cfg.Gesture.TapEnabled, loaded.Gesture.TapEnabled)
	assert.Equal(t, cfg.Apps.Mode, loaded.Apps.Mode)
	assert.Equal(t, cfg.Apps.List, loaded.Apps.List)
}

func TestTapWindowDuration(t *testing.T) {
	g := GestureConfig{TapWindowMs: 350}
	assert.Equal(t, int64(350), g.TapWindow().Milliseconds())
}
