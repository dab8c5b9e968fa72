// Package source enumerates and activates OS keyboard input sources.
//
// A Source is an immutable snapshot of one OS-level input source (keyboard
// layout or IME). Sources requiring ideographic or contextual composition
// (Chinese, Japanese, Korean, Vietnamese) are classified as CJKV from their
// declared language tags; activating those reliably needs the escalation
// logic in the switcher package.
//
// Platform support:
//   - macOS: Text Input Sources (TIS) API, via cgo
//   - Linux: IBus global engine, via D-Bus
//   - Windows: keyboard layouts (HKL), via user32
package source

import (
	"errors"
	"strings"
)

// Source represents one OS-level input source. Immutable snapshot value;
// equality is defined solely by ID.
type Source struct {
	// ID is the opaque stable identifier the OS uses for this source.
	ID string

	// DisplayName is the localized name shown to users.
	DisplayName string

	// Languages are the declared language tags, primary first.
	Languages []string

	// Selectable reports whether the OS allows selecting this source.
	// Only selectable keyboard-category sources participate.
	Selectable bool
}

// CJKV reports whether the source's primary language tag marks it as
// Chinese, Japanese, Korean, or Vietnamese. Sources with no language tag
// are treated as non-CJKV.
func (s Source) CJKV() bool {
	if len(s.Languages) == 0 {
		return false
	}
	tag := s.Languages[0]
	switch tag {
	case "ko", "ja", "vi":
		return true
	}
	return strings.HasPrefix(tag, "zh")
}

// Equal reports whether two sources identify the same OS source.
func (s Source) Equal(o Source) bool {
	return s.ID == o.ID
}

// Errors returned by backends and the registry.
var (
	// ErrNotAvailable is returned when no input source backend exists on
	// this platform or the text-input subsystem cannot be reached.
	ErrNotAvailable = errors.New("input source control not available on this platform")

	// ErrQueryFailed is returned when the OS enumeration call failed.
	// Non-fatal: the registry keeps its last good snapshot.
	ErrQueryFailed = errors.New("input source query failed")

	// ErrUnknownSource is returned when an id does not resolve to an
	// installed source.
	ErrUnknownSource = errors.New("unknown input source")
)

// Backend is the platform interface for input source control.
type Backend interface {
	// List enumerates the installed, selectable keyboard input sources.
	List() ([]Source, error)

	// Current returns the OS-reported active source. The OS guarantees
	// exactly one active source.
	Current() (Source, error)

	// Select issues the OS activation call for the source with the given
	// id. Returning nil does not guarantee the switch took effect; callers
	// verify through Current.
	Select(id string) error

	// PulseNeutralKey presses and releases a key with no bound action, to
	// nudge the text-input subsystem into refreshing its focused state.
	PulseNeutralKey() error

	// Available reports whether this backend can operate, with a
	// description of the availability status.
	Available() (bool, string)
}

// New creates the Backend for the current platform.
func New() (Backend, error) {
	return newPlatformBackend()
}
