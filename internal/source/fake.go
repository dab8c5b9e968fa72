package source

import (
	"fmt"
	"sync"
)

// FakeBackend is an in-memory backend for tests. Select calls are
// recorded, and per-source failure schedules model the flaky OS behavior
// the switcher has to tolerate: a scheduled failure makes Select return
// nil without changing the current source, which is exactly how a silent
// switch failure looks from outside.
type FakeBackend struct {
	mu sync.Mutex

	Sources   []Source
	CurrentID string

	// IgnoreSelects maps a source id to the number of Select calls that
	// are silently ignored before one finally takes effect.
	IgnoreSelects map[string]int

	// SelectErr, when set, is returned by every Select call.
	SelectErr error

	// ListErr, when set, is returned by List.
	ListErr error

	selects []string
	pulses  int
}

// NewFakeBackend creates a fake with the given sources, active one first.
func NewFakeBackend(sources ...Source) *FakeBackend {
	f := &FakeBackend{
		Sources:       sources,
		IgnoreSelects: make(map[string]int),
	}
	if len(sources) > 0 {
		f.CurrentID = sources[0].ID
	}
	return f
}

// List returns the configured sources.
func (f *FakeBackend) List() ([]Source, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.ListErr != nil {
		return nil, f.ListErr
	}
	out := make([]Source, len(f.Sources))
	copy(out, f.Sources)
	return out, nil
}

// Current returns the currently active source.
func (f *FakeBackend) Current() (Source, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, s := range f.Sources {
		if s.ID == f.CurrentID {
			return s, nil
		}
	}
	return Source{}, fmt.Errorf("%w: %q", ErrUnknownSource, f.CurrentID)
}

// Select records the call and, unless a failure is scheduled, makes the
// target current.
func (f *FakeBackend) Select(id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.selects = append(f.selects, id)
	if f.SelectErr != nil {
		return f.SelectErr
	}
	if n := f.IgnoreSelects[id]; n > 0 {
		f.IgnoreSelects[id] = n - 1
		return nil
	}
	f.CurrentID = id
	return nil
}

// PulseNeutralKey records the pulse.
func (f *FakeBackend) PulseNeutralKey() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.pulses++
	return nil
}

// Available always reports true.
func (f *FakeBackend) Available() (bool, string) {
	return true, "fake backend (for testing)"
}

// Selects returns the ids passed to Select, in order.
func (f *FakeBackend) Selects() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]string, len(f.selects))
	copy(out, f.selects)
	return out
}

// SelectCount returns the number of Select calls targeting id.
func (f *FakeBackend) SelectCount(id string) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	n := 0
	for _, s := range f.selects {
		if s == id {
			n++
		}
	}
	return n
}

// TotalSelects returns the total number of Select calls.
func (f *FakeBackend) TotalSelects() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.selects)
}

// Pulses returns the number of neutral key pulses.
func (f *FakeBackend) Pulses() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pulses
}

// SetCurrent forces the active source, bypassing Select bookkeeping.
func (f *FakeBackend) SetCurrent(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.CurrentID = id
}

var _ Backend = (*FakeBackend)(nil)
