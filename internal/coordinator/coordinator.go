// Package coordinator owns the switching state and maps detected
// gestures onto input source activations.
//
// The coordinator is the only writer of the latin id and the remembered
// non-Latin id. All entry points serialize on one mutex, so at most one
// switch sequence is in flight at a time; gestures arriving meanwhile
// queue at the caller.
package coordinator

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"

	"imeswitchd/internal/source"
	"imeswitchd/internal/store"
	"imeswitchd/internal/switcher"
)

// ErrUnknownSource is returned when an id cannot be resolved against the
// installed source snapshot.
var ErrUnknownSource = errors.New("unknown input source")

// AllowFunc gates escape-gesture switching on the active application.
// Nil means always allowed.
type AllowFunc func() bool

// Observer is notified after the switching state changes. Notification
// happens outside the state mutex.
type Observer interface {
	SwitchStateChanged()
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func()

// SwitchStateChanged calls the function.
func (f ObserverFunc) SwitchStateChanged() { f() }

// Status is a snapshot of the coordinator state.
type Status struct {
	LatinSourceID  string `json:"latin_source_id"`
	LastNonLatinID string `json:"last_non_latin_source_id"`
	TapEnabled     bool   `json:"tap_enabled"`
	CurrentID      string `json:"current_source_id,omitempty"`
}

// Coordinator drives switches in response to gestures and exposes the
// control surface the IPC layer uses.
type Coordinator struct {
	reg *source.Registry
	sw  *switcher.Switcher
	st  store.Store
	log *slog.Logger

	allow    AllowFunc
	observer Observer

	mu         sync.Mutex
	latinID    string
	lastID     string
	tapEnabled bool
}

// Config wires a Coordinator.
type Config struct {
	Registry *source.Registry
	Switcher *switcher.Switcher
	Store    store.Store
	Log      *slog.Logger

	// LatinID is the configured Latin source id.
	LatinID string

	// TapEnabled is the configured initial tap-gesture state; a persisted
	// runtime override takes precedence.
	TapEnabled bool

	// Allow gates escape switching per active application. Optional.
	Allow AllowFunc

	// Observer receives state change notifications. Optional.
	Observer Observer
}

// New creates a Coordinator and runs startup reconciliation: the
// remembered non-Latin id is loaded from the store, and if the OS reports
// a non-Latin source already active it becomes the remembered one.
func New(cfg Config) (*Coordinator, error) {
	if cfg.Registry == nil || cfg.Switcher == nil || cfg.Store == nil {
		return nil, errors.New("coordinator: registry, switcher and store are required")
	}
	log := cfg.Log
	if log == nil {
		log = slog.Default()
	}

	c := &Coordinator{
		reg:        cfg.Registry,
		sw:         cfg.Switcher,
		st:         cfg.Store,
		log:        log,
		allow:      cfg.Allow,
		observer:   cfg.Observer,
		latinID:    cfg.LatinID,
		tapEnabled: cfg.TapEnabled,
	}

	if err := c.reconcile(); err != nil {
		return nil, err
	}
	return c, nil
}

// reconcile loads persisted state and aligns it with what the OS reports
// as active right now.
func (c *Coordinator) reconcile() error {
	latin, err := store.GetDefault(c.st, store.KeyLatinSourceID, c.latinID)
	if err != nil {
		return fmt.Errorf("load latin source: %w", err)
	}
	c.latinID = latin

	last, err := store.GetDefault(c.st, store.KeyLastNonLatinID, "")
	if err != nil {
		return fmt.Errorf("load remembered source: %w", err)
	}
	c.lastID = last

	tap, err := store.GetDefault(c.st, store.KeyTapEnabled, strconv.FormatBool(c.tapEnabled))
	if err != nil {
		return fmt.Errorf("load tap setting: %w", err)
	}
	if v, perr := strconv.ParseBool(tap); perr == nil {
		c.tapEnabled = v
	}

	cur, err := c.reg.Current()
	if err != nil {
		// Query failures are absorbed; the persisted state stands.
		c.log.Warn("active source query failed during startup", "error", err)
		return nil
	}

	// A non-Latin source active at startup supersedes whatever was
	// remembered in a previous run.
	if cur.ID != c.latinID {
		if cur.ID != c.lastID {
			c.lastID = cur.ID
			if err := c.st.Set(store.KeyLastNonLatinID, cur.ID); err != nil {
				return fmt.Errorf("persist remembered source: %w", err)
			}
		}
	}

	c.log.Info("switching state reconciled",
		"latin", c.latinID, "remembered", c.lastID, "current", cur.ID)
	return nil
}

// OnEscapeLike handles the escape-like gesture: remember the current
// source if it is not the Latin one, then activate the Latin source.
// Blocked entirely when the application policy denies switching.
func (c *Coordinator) OnEscapeLike() {
	if c.allow != nil && !c.allow() {
		c.log.Debug("escape switch suppressed by application policy")
		return
	}

	c.mu.Lock()
	changed := c.switchToLatin()
	c.mu.Unlock()

	if changed {
		c.notify()
	}
}

// switchToLatin is the escape sequence body. Caller holds c.mu.
func (c *Coordinator) switchToLatin() bool {
	latin, ok := c.resolveLatin()
	if !ok {
		return false
	}

	cur, err := c.reg.Current()
	if err != nil {
		c.log.Warn("active source query failed, switching blind", "error", err)
	} else if cur.ID != c.latinID && cur.ID != "" {
		// Remember before switching: a crash mid-switch must not lose
		// the id the user will want back.
		if cur.ID != c.lastID {
			if err := c.st.Set(store.KeyLastNonLatinID, cur.ID); err != nil {
				c.log.Error("persisting remembered source failed", "source", cur.ID, "error", err)
				return false
			}
			c.lastID = cur.ID
		}
	}

	if err := c.sw.Activate(latin); err != nil {
		c.log.Warn("latin activation incomplete", "error", err)
	}
	return true
}

// OnShortModifierTap handles the toggle gesture: from the Latin source,
// return to the remembered non-Latin source; from anywhere else, behave
// like the escape gesture without the policy gate.
func (c *Coordinator) OnShortModifierTap() {
	c.mu.Lock()
	defer func() {
		c.mu.Unlock()
		c.notify()
	}()

	cur, err := c.reg.Current()
	if err != nil {
		c.log.Warn("active source query failed, tap ignored", "error", err)
		return
	}

	if cur.ID != c.latinID {
		c.switchToLatin()
		return
	}

	if c.lastID == "" {
		c.log.Debug("tap with no remembered source, nothing to restore")
		return
	}
	target, ok := c.reg.Resolve(c.lastID)
	if !ok {
		// The remembered source was uninstalled since it was recorded.
		c.log.Warn("remembered source no longer installed", "source", c.lastID)
		return
	}
	if err := c.sw.Activate(target); err != nil {
		c.log.Warn("restore activation incomplete", "error", err)
	}
}

// resolveLatin resolves the configured Latin id, falling back to a
// synthetic entry when the snapshot has not seen it. Caller holds c.mu.
func (c *Coordinator) resolveLatin() (source.Source, bool) {
	if c.latinID == "" {
		c.log.Error("no latin source configured")
		return source.Source{}, false
	}
	if s, ok := c.reg.Resolve(c.latinID); ok {
		return s, true
	}
	// Activation by id can still succeed for sources the enumeration
	// missed, so do not refuse outright.
	c.log.Warn("configured latin source not in snapshot, activating by id", "id", c.latinID)
	return source.Source{ID: c.latinID}, true
}

// RefreshRegistry re-enumerates installed sources.
func (c *Coordinator) RefreshRegistry() error {
	return c.reg.Refresh()
}

// SetLatinSource changes the configured Latin source id.
func (c *Coordinator) SetLatinSource(id string) error {
	if id == "" {
		return fmt.Errorf("%w: empty id", ErrUnknownSource)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.reg.Resolve(id); !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSource, id)
	}
	c.latinID = id
	if err := c.st.Set(store.KeyLatinSourceID, id); err != nil {
		return fmt.Errorf("persist latin source: %w", err)
	}
	c.log.Info("latin source changed", "id", id)
	return nil
}

// UpdateLatinID replaces the Latin source id in memory without
// validation or persistence. Used when the config file is reloaded; the
// file, not the store, is authoritative for config-driven changes.
func (c *Coordinator) UpdateLatinID(id string) {
	if id == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if id != c.latinID {
		c.latinID = id
		c.log.Info("latin source updated from config", "id", id)
	}
}

// SetLastSource overrides the remembered non-Latin source.
func (c *Coordinator) SetLastSource(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if id != "" {
		if _, ok := c.reg.Resolve(id); !ok {
			return fmt.Errorf("%w: %s", ErrUnknownSource, id)
		}
	}
	if err := c.st.Set(store.KeyLastNonLatinID, id); err != nil {
		return fmt.Errorf("persist remembered source: %w", err)
	}
	c.lastID = id
	c.log.Info("remembered source changed", "id", id)
	return nil
}

// SetTapEnabled toggles the tap gesture at runtime and persists the
// choice across restarts.
func (c *Coordinator) SetTapEnabled(enabled bool) error {
	c.mu.Lock()
	if err := c.st.Set(store.KeyTapEnabled, strconv.FormatBool(enabled)); err != nil {
		c.mu.Unlock()
		return fmt.Errorf("persist tap setting: %w", err)
	}
	c.tapEnabled = enabled
	c.mu.Unlock()

	c.log.Info("tap gesture toggled", "enabled", enabled)
	c.notify()
	return nil
}

// TapEnabled reports whether the tap gesture is enabled. Safe to call
// from the hook goroutine.
func (c *Coordinator) TapEnabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tapEnabled
}

// LatinSourceID returns the configured Latin source id.
func (c *Coordinator) LatinSourceID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.latinID
}

// LastNonLatinID returns the remembered non-Latin source id.
func (c *Coordinator) LastNonLatinID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastID
}

// Status returns a state snapshot, including the OS-reported active
// source when it can be queried.
func (c *Coordinator) Status() Status {
	c.mu.Lock()
	st := Status{
		LatinSourceID:  c.latinID,
		LastNonLatinID: c.lastID,
		TapEnabled:     c.tapEnabled,
	}
	c.mu.Unlock()

	if cur, err := c.reg.Current(); err == nil {
		st.CurrentID = cur.ID
	}
	return st
}

func (c *Coordinator) notify() {
	if c.observer != nil {
		c.observer.SwitchStateChanged()
	}
}
