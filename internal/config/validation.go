package config

import (
	"errors"
	"fmt"
)

// Validation errors.
var (
	ErrEmptyLatinID   = errors.New("sources.latin_id must not be empty")
	ErrBadTapWindow   = errors.New("gesture.tap_window_ms must be between 50 and 2000")
	ErrBadSettle      = errors.New("switcher.settle_ms must be between 1 and 200")
	ErrBadPolicyMode  = errors.New(`apps.mode must be "allow" or "deny"`)
	ErrSettleTooSlow  = errors.New("switcher worst case exceeds the tap window")
	ErrBadLogLevel    = errors.New("logging.level must be debug, info, warn, or error")
	ErrBadLogFormat   = errors.New(`logging.format must be "text" or "json"`)
	ErrEmptyStorePath = errors.New("store.path must not be empty")
)

// escalationSettles is the number of settle-length waits in the worst-case
// CJKV escalation (tier 1 + tier 2 bridge + tier 3 double wait).
const escalationSettles = 6

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	if c.Sources.LatinID == "" {
		return ErrEmptyLatinID
	}
	if c.Gesture.TapWindowMs < 50 || c.Gesture.TapWindowMs > 2000 {
		return ErrBadTapWindow
	}
	if c.Switcher.SettleMs < 1 || c.Switcher.SettleMs > 200 {
		return ErrBadSettle
	}
	// A full escalation must finish well inside the tap window so rapid
	// repeated gestures cannot pile up.
	if c.Switcher.SettleMs*escalationSettles >= c.Gesture.TapWindowMs {
		return ErrSettleTooSlow
	}
	switch c.Apps.Mode {
	case "allow", "deny":
	default:
		return ErrBadPolicyMode
	}
	if c.Store.Path == "" {
		return ErrEmptyStorePath
	}
	switch c.Logging.Level {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		return ErrBadLogLevel
	}
	switch c.Logging.Format {
	case "", "text", "json":
	default:
		return ErrBadLogFormat
	}
	return nil
}

// String implements fmt.Stringer for diagnostics without dumping paths.
func (c *Config) String() string {
	return fmt.Sprintf("config{latin=%s tap=%v window=%dms settle=%dms apps=%s/%d}",
		c.Sources.LatinID, c.Gesture.TapEnabled, c.Gesture.TapWindowMs,
		c.Switcher.SettleMs, c.Apps.Mode, len(c.Apps.List))
}
