package config

import (
	"os"
	"path/filepath"
	"runtime"
)

// DefaultLatinID returns the platform's plain Latin keyboard layout id.
//
// Platform identifiers:
//   - macOS:   com.apple.keylayout.ABC (Text Input Sources id)
//   - Linux:   xkb:us::eng (IBus engine name)
//   - Windows: 00000409 (US English keyboard layout, KLID)
func DefaultLatinID() string {
	switch runtime.GOOS {
	case "darwin":
		return "com.apple.keylayout.ABC"
	case "windows":
		return "00000409"
	default:
		return "xkb:us::eng"
	}
}

// PlatformDataDir returns the platform-specific data directory.
//
// Platform paths:
//   - macOS:   ~/Library/Application Support/imeswitchd/
//   - Linux:   ~/.local/share/imeswitchd/
//   - Windows: %APPDATA%\imeswitchd\
//
// Falls back to ~/.imeswitchd if platform detection fails.
func PlatformDataDir() string {
	switch runtime.GOOS {
	case "darwin":
		home, _ := os.UserHomeDir()
		return filepath.Join(home, "Library", "Application Support", "imeswitchd")
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData == "" {
			home, _ := os.UserHomeDir()
			return filepath.Join(home, ".imeswitchd")
		}
		return filepath.Join(appData, "imeswitchd")
	case "linux":
		dataHome := os.Getenv("XDG_DATA_HOME")
		if dataHome == "" {
			home, _ := os.UserHomeDir()
			dataHome = filepath.Join(home, ".local", "share")
		}
		return filepath.Join(dataHome, "imeswitchd")
	default:
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".imeswitchd")
	}
}

// PlatformConfigDir returns the platform-specific config directory.
//
// Platform paths:
//   - macOS:   ~/Library/Application Support/imeswitchd/
//   - Linux:   ~/.config/imeswitchd/
//   - Windows: %APPDATA%\imeswitchd\
func PlatformConfigDir() string {
	switch runtime.GOOS {
	case "linux":
		configHome := os.Getenv("XDG_CONFIG_HOME")
		if configHome == "" {
			home, _ := os.UserHomeDir()
			configHome = filepath.Join(home, ".config")
		}
		return filepath.Join(configHome, "imeswitchd")
	default:
		// macOS and Windows use the same dir for config and data.
		return PlatformDataDir()
	}
}

// PlatformRuntimeDir returns the platform-specific runtime directory for
// the control socket.
func PlatformRuntimeDir() string {
	switch runtime.GOOS {
	case "linux":
		if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
			return filepath.Join(dir, "imeswitchd")
		}
	}
	return filepath.Join(os.TempDir(), "imeswitchd")
}

// DefaultConfigPath returns the default config file location.
func DefaultConfigPath() string {
	return filepath.Join(PlatformConfigDir(), "config.toml")
}

// Default returns a Config populated with defaults for this platform.
func Default() *Config {
	return &Config{
		Version: Version,
		Sources: SourcesConfig{
			LatinID: DefaultLatinID(),
		},
		Gesture: GestureConfig{
			TapEnabled:    true,
			TapWindowMs:   500,
			EscapeEnabled: true,
		},
		Switcher: SwitcherConfig{
			SettleMs: 20,
		},
		Apps: AppsConfig{
			Mode: "deny",
			List: nil,
		},
		Store: StoreConfig{
			Path: filepath.Join(PlatformDataDir(), "settings.db"),
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
		IPC: IPCConfig{
			SocketPath: filepath.Join(PlatformRuntimeDir(), "imeswitchd.sock"),
		},
	}
}
