// Package config handles configuration loading, validation, and management
// for imeswitchd.
package config

import (
	"time"
)

// Version is the current configuration schema version.
const Version = 1

// Config holds the complete daemon configuration.
type Config struct {
	// Version is the configuration schema version for migrations.
	Version int `toml:"version"`

	// Sources configures the input source targets.
	Sources SourcesConfig `toml:"sources"`

	// Gesture configures gesture detection.
	Gesture GestureConfig `toml:"gesture"`

	// Switcher configures activation timing.
	Switcher SwitcherConfig `toml:"switcher"`

	// Apps configures the per-application switching policy.
	Apps AppsConfig `toml:"apps"`

	// Store configures the settings store.
	Store StoreConfig `toml:"store"`

	// Logging configuration.
	Logging LoggingConfig `toml:"logging"`

	// IPC configuration for the control socket.
	IPC IPCConfig `toml:"ipc"`
}

// SourcesConfig holds the input source targets.
type SourcesConfig struct {
	// LatinID is the input source activated by the escape gesture.
	// Defaults to the platform's plain Latin keyboard layout.
	LatinID string `toml:"latin_id"`
}

// GestureConfig holds gesture detection configuration.
type GestureConfig struct {
	// TapEnabled enables the short modifier tap gesture.
	TapEnabled bool `toml:"tap_enabled"`

	// TapWindowMs is the maximum hold duration for a tap, in milliseconds.
	TapWindowMs int `toml:"tap_window_ms"`

	// EscapeEnabled enables the escape-key gesture.
	EscapeEnabled bool `toml:"escape_enabled"`
}

// TapWindow returns the tap window as a duration.
func (g GestureConfig) TapWindow() time.Duration {
	return time.Duration(g.TapWindowMs) * time.Millisecond
}

// SwitcherConfig holds activation timing configuration.
type SwitcherConfig struct {
	// SettleMs is the wait after an activation call before verifying it
	// took effect, in milliseconds.
	SettleMs int `toml:"settle_ms"`
}

// Settle returns the settle interval as a duration.
func (s SwitcherConfig) Settle() time.Duration {
	return time.Duration(s.SettleMs) * time.Millisecond
}

// AppsConfig holds the per-application switching policy.
type AppsConfig struct {
	// Mode is "allow" (switch only for listed apps) or "deny" (switch for
	// everything except listed apps).
	Mode string `toml:"mode"`

	// List is a list of application identifiers (bundle IDs on macOS,
	// executable names elsewhere).
	List []string `toml:"list"`
}

// StoreConfig holds the settings store configuration.
type StoreConfig struct {
	// Path is the path to the settings database file.
	Path string `toml:"path"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error.
	Level string `toml:"level"`

	// Format is "text" or "json".
	Format string `toml:"format"`

	// Output is "stdout", "stderr", "file", or "both".
	Output string `toml:"output"`

	// FilePath is the log file path when Output includes "file".
	FilePath string `toml:"file_path"`
}

// IPCConfig holds control socket configuration.
type IPCConfig struct {
	// SocketPath is the Unix socket path for imeswitchctl.
	SocketPath string `toml:"socket_path"`
}
