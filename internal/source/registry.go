package source

import (
	"fmt"
	"log/slog"
	"sync"
)

// Registry holds an atomic snapshot of the selectable input sources.
// Refresh replaces the snapshot; lookups run against the last good one.
type Registry struct {
	backend Backend
	log     *slog.Logger

	mu      sync.RWMutex
	sources []Source
}

// NewRegistry creates a registry over the given backend. The snapshot is
// empty until the first Refresh.
func NewRegistry(backend Backend, log *slog.Logger) *Registry {
	if log == nil {
		log = slog.Default()
	}
	return &Registry{backend: backend, log: log}
}

// Refresh re-queries the OS for installed, selectable keyboard input
// sources and atomically replaces the snapshot. On failure the previous
// snapshot is kept; the error is logged and returned wrapped in
// ErrQueryFailed, but callers treat it as non-fatal.
func (r *Registry) Refresh() error {
	listed, err := r.backend.List()
	if err != nil {
		r.log.Warn("input source enumeration failed, keeping previous snapshot", "error", err)
		return fmt.Errorf("%w: %v", ErrQueryFailed, err)
	}

	selectable := make([]Source, 0, len(listed))
	for _, s := range listed {
		if s.Selectable {
			selectable = append(selectable, s)
		}
	}

	r.mu.Lock()
	r.sources = selectable
	r.mu.Unlock()

	r.log.Debug("input source snapshot refreshed", "count", len(selectable))
	return nil
}

// Current returns the OS-reported active source.
func (r *Registry) Current() (Source, error) {
	cur, err := r.backend.Current()
	if err != nil {
		return Source{}, fmt.Errorf("%w: %v", ErrQueryFailed, err)
	}
	return cur, nil
}

// Resolve looks up a source by id against the last snapshot.
func (r *Registry) Resolve(id string) (Source, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, s := range r.sources {
		if s.ID == id {
			return s, true
		}
	}
	return Source{}, false
}

// FirstNonCJKV returns the first non-CJKV source in the snapshot. Used as
// a bridging source during indirect CJKV activation.
func (r *Registry) FirstNonCJKV() (Source, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, s := range r.sources {
		if !s.CJKV() {
			return s, true
		}
	}
	return Source{}, false
}

// List returns a copy of the current snapshot.
func (r *Registry) List() []Source {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Source, len(r.sources))
	copy(out, r.sources)
	return out
}

// Backend exposes the underlying backend for the switcher's activation
// and refresh primitives.
func (r *Registry) Backend() Backend {
	return r.backend
}
