// Package gesture classifies raw keyboard transitions into the two
// switching gestures: an escape-like key press and an isolated short tap
// of a modifier key.
//
// The detector is a pure observer fed synchronously from the hook
// goroutine. It never consumes events; the original event always
// continues down the OS dispatch chain.
package gesture

import (
	"time"

	"imeswitchd/internal/hook"
)

// Type identifies a detected gesture.
type Type uint8

const (
	// EscapeLike is an escape key press, or Control+[ which carries the
	// same intent.
	EscapeLike Type = iota + 1

	// ShortModifierTap is an isolated press-and-release of the tracked
	// modifier with nothing else touched in between.
	ShortModifierTap
)

// String returns the gesture name.
func (t Type) String() string {
	switch t {
	case EscapeLike:
		return "escape-like"
	case ShortModifierTap:
		return "short-modifier-tap"
	default:
		return "unknown"
	}
}

// Event is one detected gesture.
type Event struct {
	Type Type
	When time.Time
}

// DefaultTapWindow is the maximum hold duration for a tap.
const DefaultTapWindow = 500 * time.Millisecond

// state is the detector state.
type state uint8

const (
	stateIdle state = iota
	stateModifierHeld
)

// Config configures a Detector.
type Config struct {
	// Tracked is the modifier whose isolated tap triggers the toggle
	// gesture. Defaults to Shift.
	Tracked hook.Mask

	// TapWindow is the maximum hold duration for a tap. Defaults to
	// DefaultTapWindow.
	TapWindow time.Duration

	// TapEnabled gates emission of ShortModifierTap. Consulted at
	// release time so the flag can change while a hold is in progress.
	// Nil means always enabled.
	TapEnabled func() bool

	// EscapeEnabled gates emission of EscapeLike. Nil means always
	// enabled.
	EscapeEnabled func() bool

	// Now is the clock, injectable for tests.
	Now func() time.Time
}

// Detector is the gesture state machine. Not safe for concurrent use;
// feed it from a single goroutine in event order.
type Detector struct {
	cfg      Config
	emit     func(Event)
	state    state
	lastMask hook.Mask

	pressedAt   time.Time
	interrupted bool
}

// New creates a Detector that calls emit synchronously for each detected
// gesture.
func New(cfg Config, emit func(Event)) *Detector {
	if cfg.Tracked == 0 {
		cfg.Tracked = hook.ModShift
	}
	if cfg.TapWindow <= 0 {
		cfg.TapWindow = DefaultTapWindow
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if emit == nil {
		emit = func(Event) {}
	}
	return &Detector{cfg: cfg, emit: emit}
}

// Feed processes one keyboard transition.
func (d *Detector) Feed(ev hook.KeyEvent) {
	now := ev.When
	if now.IsZero() {
		now = d.cfg.Now()
	}

	// Escape intent is recognized on any key-down, independent of the
	// tap state machine. Policy gating happens in the coordinator.
	if ev.Kind == hook.KeyDown && d.escapeEnabled() {
		if ev.Key == hook.KeyEscape ||
			(ev.Key == hook.KeyLeftBracket && ev.Mask.Has(hook.ModControl)) {
			d.emit(Event{Type: EscapeLike, When: now})
		}
	}

	d.feedTap(ev, now)
	d.lastMask = ev.Mask
}

// feedTap advances the modifier tap state machine.
func (d *Detector) feedTap(ev hook.KeyEvent, now time.Time) {
	tracked := d.cfg.Tracked
	prev, cur := d.lastMask, ev.Mask

	heldPrev := prev.Has(tracked)
	heldCur := cur.Has(tracked)
	othersPrev := prev.Without(tracked) != 0
	othersCur := cur.Without(tracked) != 0

	switch d.state {
	case stateIdle:
		// A hold begins only on a clean press: tracked modifier newly
		// set, no other modifier in the previous or current mask.
		if heldCur && !heldPrev {
			if othersPrev || othersCur {
				return
			}
			d.state = stateModifierHeld
			d.pressedAt = now
			d.interrupted = false
		}

	case stateModifierHeld:
		// A chord forming around the hold (Shift+Cmd and friends)
		// invalidates it immediately.
		if othersPrev || othersCur {
			d.interrupted = true
			d.state = stateIdle
			return
		}

		// Any other key pressed during the hold marks it interrupted;
		// the hold itself continues.
		if ev.Kind == hook.KeyDown && !ev.Modifier {
			d.interrupted = true
			return
		}

		if heldPrev && !heldCur {
			duration := now.Sub(d.pressedAt)
			if d.tapEnabled() && !d.interrupted && duration < d.cfg.TapWindow {
				d.emit(Event{Type: ShortModifierTap, When: now})
			}
			d.state = stateIdle
		}
	}
}

func (d *Detector) tapEnabled() bool {
	return d.cfg.TapEnabled == nil || d.cfg.TapEnabled()
}

func (d *Detector) escapeEnabled() bool {
	return d.cfg.EscapeEnabled == nil || d.cfg.EscapeEnabled()
}
