// Package switcher performs input source activation with verification,
// retries, and the indirect escalation CJKV sources need.
//
// The OS text-input subsystem is asynchronous and flaky: an activation
// call can return success while the switch silently never happens. Every
// attempt is therefore verified by re-querying the active source after a
// short settle interval, and CJKV targets get a three-tier escalation
// where each tier encodes a distinct OS workaround. The tiers are kept as
// linear, explicit sequences rather than a generic retry loop on purpose.
//
// All waits are blocking sleeps on the calling goroutine; callers must
// keep this off the keyboard hook's delivery path.
package switcher

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"imeswitchd/internal/source"
)

// DefaultSettle is the wait after an activation call before verifying it
// took effect.
const DefaultSettle = 20 * time.Millisecond

// ErrVerificationFailed is returned when activation was issued but the OS
// never confirmed the target became active within the escalation budget.
// Non-fatal: the input context is still force-refreshed and the caller
// proceeds best-effort.
var ErrVerificationFailed = errors.New("input source switch did not verify")

// Switcher activates input sources through a registry's backend.
type Switcher struct {
	reg    *source.Registry
	log    *slog.Logger
	settle time.Duration
	sleep  func(time.Duration)
}

// Option configures a Switcher.
type Option func(*Switcher)

// WithSettle overrides the settle interval.
func WithSettle(d time.Duration) Option {
	return func(s *Switcher) {
		if d > 0 {
			s.settle = d
		}
	}
}

// WithSleep overrides the sleep function. Tests inject a no-op.
func WithSleep(fn func(time.Duration)) Option {
	return func(s *Switcher) {
		if fn != nil {
			s.sleep = fn
		}
	}
}

// New creates a Switcher over the registry's backend.
func New(reg *source.Registry, log *slog.Logger, opts ...Option) *Switcher {
	if log == nil {
		log = slog.Default()
	}
	s := &Switcher{
		reg:    reg,
		log:    log,
		settle: DefaultSettle,
		sleep:  time.Sleep,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Activate makes target the active input source.
//
// Returns nil immediately, without any OS activation call, when the
// target is already active. Otherwise it runs the non-CJKV retry or the
// CJKV escalation, force-refreshes the input context regardless of the
// outcome, and returns ErrVerificationFailed if the OS never confirmed
// the switch.
func (s *Switcher) Activate(target source.Source) error {
	cur, err := s.reg.Current()
	if err == nil && cur.ID == target.ID {
		return nil
	}

	var verified bool
	if target.CJKV() {
		verified = s.activateCJKV(target)
	} else {
		verified = s.activateDirect(target)
	}

	// The input context goes stale after activation attempts whether or
	// not they verified; refresh unconditionally.
	s.ForceRefresh()

	if !verified {
		s.log.Warn("switch did not verify", "target", target.ID)
		return fmt.Errorf("%w: %s", ErrVerificationFailed, target.ID)
	}
	s.log.Debug("switched input source", "target", target.ID)
	return nil
}

// activateDirect issues the activation call and verifies, retrying once.
func (s *Switcher) activateDirect(target source.Source) bool {
	for attempt := 0; attempt < 2; attempt++ {
		s.selectAndSettle(target.ID)
		if s.verify(target.ID) {
			return true
		}
	}
	return false
}

// activateCJKV runs the three-tier escalation. Each tier runs only if the
// previous one failed verification.
func (s *Switcher) activateCJKV(target source.Source) bool {
	// Tier 1: direct activation, single attempt.
	s.selectAndSettle(target.ID)
	if s.verify(target.ID) {
		return true
	}

	// Tier 2: bounce through a non-CJKV bridging source. Some IME
	// categories only engage when entered from a plain layout.
	if bridge, ok := s.reg.FirstNonCJKV(); ok {
		s.log.Debug("escalating via bridge source", "bridge", bridge.ID, "target", target.ID)
		s.selectAndSettle(bridge.ID)
		s.selectAndSettle(target.ID)
		if s.verify(target.ID) {
			return true
		}
	}

	// Tier 3: give the subsystem extra time, then one last activation.
	s.sleep(2 * s.settle)
	s.selectAndSettle(target.ID)
	return s.verify(target.ID)
}

// selectAndSettle issues one activation call and waits the settle
// interval. Activation errors are logged, not returned: verification is
// what decides the outcome.
func (s *Switcher) selectAndSettle(id string) {
	if err := s.reg.Backend().Select(id); err != nil {
		s.log.Warn("activation call failed", "target", id, "error", err)
	}
	s.sleep(s.settle)
}

// verify re-queries the active source and compares ids.
func (s *Switcher) verify(id string) bool {
	cur, err := s.reg.Current()
	return err == nil && cur.ID == id
}

// ForceRefresh re-asserts the active source twice with short waits, then
// pulses a neutral key. Workaround for the OS leaving the input context
// visually and functionally stale after a switch.
func (s *Switcher) ForceRefresh() {
	backend := s.reg.Backend()

	for i := 0; i < 2; i++ {
		cur, err := s.reg.Current()
		if err != nil {
			break
		}
		if err := backend.Select(cur.ID); err != nil {
			s.log.Debug("re-assert failed", "source", cur.ID, "error", err)
		}
		s.sleep(s.settle / 2)
	}

	if err := backend.PulseNeutralKey(); err != nil {
		s.log.Debug("neutral key pulse failed", "error", err)
	}
}
