// Package hook captures global keyboard events.
//
// The hook observes and never consumes: every event continues down the
// normal OS dispatch chain unmodified. Raw platform events are normalized
// to KeyEvent so the gesture layer is platform-independent.
//
// Events are delivered in strict arrival order on a single goroutine.
// Consumers must drain quickly; switching work belongs on a separate
// worker, never on the delivery path (a slow hook callback gets the whole
// hook disabled by the OS watchdog).
package hook

import (
	"context"
	"errors"
	"sync"
	"time"
)

// Kind is the kind of key transition.
type Kind uint8

const (
	// KeyDown is a key press.
	KeyDown Kind = iota + 1
	// KeyUp is a key release.
	KeyUp
	// KeyHold is an autorepeat of a held key.
	KeyHold
)

// Key identifies the normalized keys the gesture layer cares about.
// Everything else is KeyOther.
type Key uint8

const (
	KeyOther Key = iota
	KeyEscape
	KeyLeftBracket
)

// Mask is a bitset of held modifiers.
type Mask uint16

const (
	ModShift Mask = 1 << iota
	ModControl
	ModOption
	ModCommand
	ModFn
)

// Has reports whether all bits in m2 are set.
func (m Mask) Has(m2 Mask) bool { return m&m2 == m2 }

// Without returns the mask with the bits in m2 cleared.
func (m Mask) Without(m2 Mask) Mask { return m &^ m2 }

// KeyEvent is one normalized keyboard transition.
type KeyEvent struct {
	// Kind is the transition kind.
	Kind Kind

	// Key is the normalized key, KeyOther for unmapped keys.
	Key Key

	// Raw is the platform key code, for diagnostics.
	Raw uint16

	// Mask is the modifier state after this event.
	Mask Mask

	// Modifier reports whether the key itself is a modifier key.
	Modifier bool

	// When is the event timestamp.
	When time.Time
}

// Errors.
var (
	// ErrInstallFailed is returned when the keyboard hook could not be
	// installed, commonly a permissions problem. Fatal: without the hook
	// no gesture can ever be detected.
	ErrInstallFailed = errors.New("keyboard hook installation failed")

	// ErrAlreadyRunning is returned when Start is called twice.
	ErrAlreadyRunning = errors.New("hook already running")
)

// Hook is the global keyboard hook.
type Hook interface {
	// Start installs the hook and begins delivering events.
	Start(ctx context.Context) error

	// Stop removes the hook and closes the event channel.
	Stop() error

	// Events returns the ordered event stream.
	Events() <-chan KeyEvent

	// Available reports whether hooking is possible on this platform
	// with current permissions.
	Available() (bool, string)
}

// New creates the keyboard hook for the current platform.
func New() Hook {
	return newGlobalHook()
}

// Simulated is a hook for tests that delivers injected events.
type Simulated struct {
	mu      sync.Mutex
	running bool
	events  chan KeyEvent
}

// NewSimulated creates a simulated hook.
func NewSimulated() *Simulated {
	return &Simulated{events: make(chan KeyEvent, 64)}
}

// Start marks the hook running.
func (s *Simulated) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return ErrAlreadyRunning
	}
	s.running = true
	return nil
}

// Stop closes the event channel.
func (s *Simulated) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}
	s.running = false
	close(s.events)
	return nil
}

// Events returns the event channel.
func (s *Simulated) Events() <-chan KeyEvent { return s.events }

// Available always reports true.
func (s *Simulated) Available() (bool, string) {
	return true, "simulated hook (for testing)"
}

// Inject delivers an event as if the OS produced it.
func (s *Simulated) Inject(ev KeyEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		s.events <- ev
	}
}

var _ Hook = (*Simulated)(nil)
