package hook

import (
	"context"
	"sync"
	"time"

	gohook "github.com/robotn/gohook"
)

// libuiohook modifier masks carried in gohook's Event.Mask.
const (
	maskShiftL Mask = 1 << 0
	maskCtrlL  Mask = 1 << 1
	maskMetaL  Mask = 1 << 2
	maskAltL   Mask = 1 << 3
	maskShiftR Mask = 1 << 4
	maskCtrlR  Mask = 1 << 5
	maskMetaR  Mask = 1 << 6
	maskAltR   Mask = 1 << 7
)

// normalizeMask folds the left/right libuiohook mask bits into Mask bits.
func normalizeMask(raw uint16) Mask {
	m := Mask(raw)
	var out Mask
	if m&(maskShiftL|maskShiftR) != 0 {
		out |= ModShift
	}
	if m&(maskCtrlL|maskCtrlR) != 0 {
		out |= ModControl
	}
	if m&(maskAltL|maskAltR) != 0 {
		out |= ModOption
	}
	if m&(maskMetaL|maskMetaR) != 0 {
		out |= ModCommand
	}
	return out
}

// globalHook delivers OS keyboard events through gohook (libuiohook).
// The library installs a listen-only hook: events are observed and passed
// through, never consumed.
type globalHook struct {
	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
	events  chan KeyEvent
}

func newGlobalHook() Hook {
	return &globalHook{}
}

// Start installs the global hook and begins translating events.
func (h *globalHook) Start(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.running {
		return ErrAlreadyRunning
	}

	raw := gohook.Start()
	if raw == nil {
		return ErrInstallFailed
	}

	ctx, cancel := context.WithCancel(ctx)
	h.cancel = cancel
	h.done = make(chan struct{})
	h.events = make(chan KeyEvent, 128)
	h.running = true

	go h.translate(ctx, raw)
	return nil
}

// translate forwards raw gohook events as normalized KeyEvents, in
// arrival order, on a single goroutine.
func (h *globalHook) translate(ctx context.Context, raw chan gohook.Event) {
	defer close(h.done)
	defer close(h.events)
	defer gohook.End()

	for {
		select {
		case <-ctx.Done():
			return

		case ev, ok := <-raw:
			if !ok {
				return
			}

			var kind Kind
			switch ev.Kind {
			case gohook.KeyDown:
				kind = KeyDown
			case gohook.KeyHold:
				kind = KeyHold
			case gohook.KeyUp:
				kind = KeyUp
			default:
				continue
			}

			when := ev.When
			if when.IsZero() {
				when = time.Now()
			}

			h.events <- KeyEvent{
				Kind:     kind,
				Key:      normalizeKey(ev.Rawcode),
				Raw:      ev.Rawcode,
				Mask:     normalizeMask(ev.Mask),
				Modifier: isModifierKey(ev.Rawcode),
				When:     when,
			}
		}
	}
}

// Stop removes the hook and waits for the translator to drain.
func (h *globalHook) Stop() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.running {
		return nil
	}
	h.running = false
	h.cancel()
	<-h.done
	return nil
}

// Events returns the normalized event stream.
func (h *globalHook) Events() <-chan KeyEvent {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.events
}

// Available reports hook availability. gohook only reports failure at
// Start, so this is optimistic until then.
func (h *globalHook) Available() (bool, string) {
	return true, "global keyboard hook (libuiohook)"
}

var _ Hook = (*globalHook)(nil)
