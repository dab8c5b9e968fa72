package daemon

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"imeswitchd/internal/config"
	"imeswitchd/internal/hook"
	"imeswitchd/internal/ipc"
	"imeswitchd/internal/source"
	"imeswitchd/internal/store"
)

var (
	abc    = source.Source{ID: "com.apple.keylayout.ABC", Languages: []string{"en"}, Selectable: true}
	pinyin = source.Source{ID: "com.apple.inputmethod.SCIM.ITABC", Languages: []string{"zh-Hans"}, Selectable: true}
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fixture struct {
	daemon *Daemon
	hk     *hook.Simulated
	fake   *source.FakeBackend
	st     *store.Memory
	cancel context.CancelFunc
	done   chan error
}

func startDaemon(t *testing.T, currentID string) *fixture {
	t.Helper()

	cfg := config.Default()
	cfg.Sources.LatinID = abc.ID
	cfg.IPC.SocketPath = filepath.Join(t.TempDir(), "d.sock")

	f := &fixture{
		hk:   hook.NewSimulated(),
		fake: source.NewFakeBackend(abc, pinyin),
		st:   store.NewMemory(),
		done: make(chan error, 1),
	}
	if currentID != "" {
		f.fake.SetCurrent(currentID)
	}

	d, err := New(cfg, "", Options{
		Hook:    f.hk,
		Backend: f.fake,
		Store:   f.st,
		Log:     discard(),
	})
	if err != nil {
		t.Fatalf("new daemon: %v", err)
	}
	f.daemon = d

	ctx, cancel := context.WithCancel(context.Background())
	f.cancel = cancel
	go func() { f.done <- d.Run(ctx) }()

	t.Cleanup(func() {
		cancel()
		select {
		case <-f.done:
		case <-time.After(5 * time.Second):
			t.Error("daemon did not shut down")
		}
	})

	// Wait for the control socket so the daemon is fully up.
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if c, err := ipc.Dial(cfg.IPC.SocketPath); err == nil {
			c.Close()
			return f
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("daemon never opened its control socket")
	return nil
}

func (f *fixture) waitForCurrent(t *testing.T, id string) {
	t.Helper()

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cur, err := f.fake.Current(); err == nil && cur.ID == id {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	cur, _ := f.fake.Current()
	t.Fatalf("expected %s active, still %s", id, cur.ID)
}

func TestEscapeKeySwitchesToLatin(t *testing.T) {
	f := startDaemon(t, pinyin.ID)

	f.hk.Inject(hook.KeyEvent{Kind: hook.KeyDown, Key: hook.KeyEscape, When: time.Now()})

	f.waitForCurrent(t, abc.ID)
	if got := f.daemon.Coordinator().LastNonLatinID(); got != pinyin.ID {
		t.Errorf("expected %s remembered, got %q", pinyin.ID, got)
	}
}

func TestModifierTapTogglesBack(t *testing.T) {
	f := startDaemon(t, pinyin.ID)

	f.hk.Inject(hook.KeyEvent{Kind: hook.KeyDown, Key: hook.KeyEscape, When: time.Now()})
	f.waitForCurrent(t, abc.ID)

	now := time.Now()
	f.hk.Inject(hook.KeyEvent{Kind: hook.KeyDown, Mask: hook.ModShift, Modifier: true, When: now})
	f.hk.Inject(hook.KeyEvent{Kind: hook.KeyUp, Mask: 0, Modifier: true, When: now.Add(100 * time.Millisecond)})

	f.waitForCurrent(t, pinyin.ID)
}

func TestTypingDoesNotSwitch(t *testing.T) {
	f := startDaemon(t, pinyin.ID)

	// Shifted typing: shift down, letter, shift up.
	now := time.Now()
	f.hk.Inject(hook.KeyEvent{Kind: hook.KeyDown, Mask: hook.ModShift, Modifier: true, When: now})
	f.hk.Inject(hook.KeyEvent{Kind: hook.KeyDown, Raw: 4, Mask: hook.ModShift, When: now.Add(30 * time.Millisecond)})
	f.hk.Inject(hook.KeyEvent{Kind: hook.KeyUp, Raw: 4, Mask: hook.ModShift, When: now.Add(60 * time.Millisecond)})
	f.hk.Inject(hook.KeyEvent{Kind: hook.KeyUp, Mask: 0, Modifier: true, When: now.Add(90 * time.Millisecond)})

	// Give the pipeline time to misbehave.
	time.Sleep(200 * time.Millisecond)
	if cur, _ := f.fake.Current(); cur.ID != pinyin.ID {
		t.Errorf("typing must not switch, now on %s", cur.ID)
	}
	if f.fake.TotalSelects() != 0 {
		t.Errorf("no activation expected, got %d selects", f.fake.TotalSelects())
	}
}

func TestGestureBurstAllDelivered(t *testing.T) {
	f := startDaemon(t, pinyin.ID)

	// Inject gestures far faster than the worker's settle sleeps let it
	// drain them, so a deep backlog builds up. Alternating escape and tap
	// flips the active source on every gesture, so a lost or reordered
	// gesture breaks the refresh count below.
	const pairs = 15
	now := time.Now()
	for i := 0; i < pairs; i++ {
		f.hk.Inject(hook.KeyEvent{Kind: hook.KeyDown, Key: hook.KeyEscape, When: now})
		now = now.Add(time.Millisecond)
		f.hk.Inject(hook.KeyEvent{Kind: hook.KeyDown, Mask: hook.ModShift, Modifier: true, When: now})
		f.hk.Inject(hook.KeyEvent{Kind: hook.KeyUp, Mask: 0, Modifier: true, When: now.Add(80 * time.Millisecond)})
		now = now.Add(81 * time.Millisecond)
	}

	// Every gesture switches, and every switch refreshes the input
	// context exactly once.
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		if f.fake.Pulses() == 2*pairs {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if got := f.fake.Pulses(); got != 2*pairs {
		t.Fatalf("expected all %d gestures processed, got %d refreshes", 2*pairs, got)
	}
	f.waitForCurrent(t, pinyin.ID)
}

func TestControlSocketDrivesDaemon(t *testing.T) {
	f := startDaemon(t, "")
	client, err := ipc.Dial(f.daemon.cfg.IPC.SocketPath)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer client.Close()

	if err := client.SetLast(pinyin.ID); err != nil {
		t.Fatalf("set-last: %v", err)
	}

	// Tap from the latin layout restores the remembered source.
	now := time.Now()
	f.hk.Inject(hook.KeyEvent{Kind: hook.KeyDown, Mask: hook.ModShift, Modifier: true, When: now})
	f.hk.Inject(hook.KeyEvent{Kind: hook.KeyUp, Mask: 0, Modifier: true, When: now.Add(80 * time.Millisecond)})

	f.waitForCurrent(t, pinyin.ID)
}

func TestTapDisabledViaSocket(t *testing.T) {
	f := startDaemon(t, "")
	client, err := ipc.Dial(f.daemon.cfg.IPC.SocketPath)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer client.Close()

	if err := client.SetLast(pinyin.ID); err != nil {
		t.Fatalf("set-last: %v", err)
	}
	if err := client.SetTap(false); err != nil {
		t.Fatalf("tap off: %v", err)
	}

	now := time.Now()
	f.hk.Inject(hook.KeyEvent{Kind: hook.KeyDown, Mask: hook.ModShift, Modifier: true, When: now})
	f.hk.Inject(hook.KeyEvent{Kind: hook.KeyUp, Mask: 0, Modifier: true, When: now.Add(80 * time.Millisecond)})

	time.Sleep(200 * time.Millisecond)
	if cur, _ := f.fake.Current(); cur.ID != abc.ID {
		t.Errorf("disabled tap must not switch, now on %s", cur.ID)
	}
}
