package switcher

import (
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"imeswitchd/internal/source"
)

var (
	abc    = source.Source{ID: "com.apple.keylayout.ABC", DisplayName: "ABC", Languages: []string{"en"}, Selectable: true}
	pinyin = source.Source{ID: "com.apple.inputmethod.SCIM.ITABC", DisplayName: "Pinyin", Languages: []string{"zh-Hans"}, Selectable: true}
	korean = source.Source{ID: "com.apple.inputmethod.Korean.2SetKorean", DisplayName: "2-Set Korean", Languages: []string{"ko"}, Selectable: true}
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestSwitcher(t *testing.T, fake *source.FakeBackend) (*Switcher, *source.Registry) {
	t.Helper()

	reg := source.NewRegistry(fake, discard())
	if err := reg.Refresh(); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	sw := New(reg, discard(), WithSleep(func(time.Duration) {}))
	return sw, reg
}

func current(t *testing.T, fake *source.FakeBackend) string {
	t.Helper()

	cur, err := fake.Current()
	if err != nil {
		t.Fatalf("current: %v", err)
	}
	return cur.ID
}

func TestActivateNoopWhenAlreadyActive(t *testing.T) {
	fake := source.NewFakeBackend(abc, pinyin)
	sw, _ := newTestSwitcher(t, fake)

	if err := sw.Activate(abc); err != nil {
		t.Fatalf("activate: %v", err)
	}
	if fake.TotalSelects() != 0 {
		t.Errorf("no activation call expected, got %d", fake.TotalSelects())
	}
	if fake.Pulses() != 0 {
		t.Errorf("no refresh expected, got %d pulses", fake.Pulses())
	}
}

func TestActivateDirect(t *testing.T) {
	fake := source.NewFakeBackend(abc, pinyin)
	fake.SetCurrent(pinyin.ID)
	sw, _ := newTestSwitcher(t, fake)

	if err := sw.Activate(abc); err != nil {
		t.Fatalf("activate: %v", err)
	}
	if got := current(t, fake); got != abc.ID {
		t.Errorf("expected %s active, got %s", abc.ID, got)
	}
	if fake.Pulses() != 1 {
		t.Errorf("force refresh should pulse once, got %d", fake.Pulses())
	}
}

func TestActivateDirectRetriesOnce(t *testing.T) {
	fake := source.NewFakeBackend(abc, pinyin)
	fake.SetCurrent(pinyin.ID)
	fake.IgnoreSelects[abc.ID] = 1
	sw, _ := newTestSwitcher(t, fake)

	if err := sw.Activate(abc); err != nil {
		t.Fatalf("activate should succeed on the retry: %v", err)
	}
	if got := current(t, fake); got != abc.ID {
		t.Errorf("expected %s active, got %s", abc.ID, got)
	}
}

func TestActivateDirectFailureReported(t *testing.T) {
	fake := source.NewFakeBackend(abc, pinyin)
	fake.SetCurrent(pinyin.ID)
	fake.IgnoreSelects[abc.ID] = 5
	sw, _ := newTestSwitcher(t, fake)

	err := sw.Activate(abc)
	if !errors.Is(err, ErrVerificationFailed) {
		t.Fatalf("expected ErrVerificationFailed, got %v", err)
	}
	// The input context is refreshed even after a failed switch.
	if fake.Pulses() != 1 {
		t.Errorf("force refresh should run on failure, got %d pulses", fake.Pulses())
	}
}

func TestActivateCJKVFirstTier(t *testing.T) {
	fake := source.NewFakeBackend(abc, pinyin)
	sw, _ := newTestSwitcher(t, fake)

	if err := sw.Activate(pinyin); err != nil {
		t.Fatalf("activate: %v", err)
	}
	if got := current(t, fake); got != pinyin.ID {
		t.Errorf("expected %s active, got %s", pinyin.ID, got)
	}
	// No bridge detour when the direct activation verifies.
	if n := fake.SelectCount(abc.ID); n != 0 {
		t.Errorf("bridge must not be used on first-tier success, got %d selects", n)
	}
}

func TestActivateCJKVUsesBridge(t *testing.T) {
	fake := source.NewFakeBackend(abc, pinyin)
	fake.IgnoreSelects[pinyin.ID] = 1
	sw, _ := newTestSwitcher(t, fake)

	if err := sw.Activate(pinyin); err != nil {
		t.Fatalf("activate: %v", err)
	}
	if got := current(t, fake); got != pinyin.ID {
		t.Errorf("expected %s active, got %s", pinyin.ID, got)
	}
	if n := fake.SelectCount(abc.ID); n != 1 {
		t.Errorf("expected exactly 1 bridge activation, got %d", n)
	}
}

func TestActivateCJKVFinalTier(t *testing.T) {
	fake := source.NewFakeBackend(abc, pinyin)
	fake.IgnoreSelects[pinyin.ID] = 2

	var sleeps []time.Duration
	reg := source.NewRegistry(fake, discard())
	if err := reg.Refresh(); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	sw := New(reg, discard(), WithSleep(func(d time.Duration) { sleeps = append(sleeps, d) }))

	if err := sw.Activate(pinyin); err != nil {
		t.Fatalf("activate: %v", err)
	}
	if got := current(t, fake); got != pinyin.ID {
		t.Errorf("expected %s active, got %s", pinyin.ID, got)
	}

	// The final tier waits twice the settle interval before its attempt,
	// then settles once more so verification sees the result.
	idx := -1
	for i, d := range sleeps {
		if d == 2*DefaultSettle {
			idx = i
		}
	}
	if idx == -1 {
		t.Fatalf("expected a %v wait in the final tier, sleeps: %v", 2*DefaultSettle, sleeps)
	}
	if idx+1 >= len(sleeps) || sleeps[idx+1] != DefaultSettle {
		t.Errorf("expected a settle wait after the final activation, sleeps: %v", sleeps)
	}
}

func TestActivateCJKVExhausted(t *testing.T) {
	fake := source.NewFakeBackend(abc, pinyin, korean)
	fake.IgnoreSelects[pinyin.ID] = 10
	sw, _ := newTestSwitcher(t, fake)

	err := sw.Activate(pinyin)
	if !errors.Is(err, ErrVerificationFailed) {
		t.Fatalf("expected ErrVerificationFailed, got %v", err)
	}
	if fake.Pulses() != 1 {
		t.Errorf("force refresh should run on failure, got %d pulses", fake.Pulses())
	}
}

func TestForceRefresh(t *testing.T) {
	fake := source.NewFakeBackend(abc, pinyin)
	sw, _ := newTestSwitcher(t, fake)

	sw.ForceRefresh()

	if n := fake.SelectCount(abc.ID); n != 2 {
		t.Errorf("expected the active source re-asserted twice, got %d", n)
	}
	if fake.Pulses() != 1 {
		t.Errorf("expected 1 neutral key pulse, got %d", fake.Pulses())
	}
}
