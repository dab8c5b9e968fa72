// Package daemon wires the keyboard hook, gesture detector, switching
// coordinator and control surfaces into the running imeswitchd process.
//
// Event flow: the hook goroutine feeds the detector synchronously;
// detected gestures land on an unbounded FIFO queue and are consumed by
// a single worker that drives the coordinator. Switching never runs on
// the hook's delivery path, and no gesture is ever merged or dropped.
package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"imeswitchd/internal/config"
	"imeswitchd/internal/coordinator"
	"imeswitchd/internal/gesture"
	"imeswitchd/internal/hook"
	"imeswitchd/internal/ipc"
	"imeswitchd/internal/policy"
	"imeswitchd/internal/source"
	"imeswitchd/internal/store"
	"imeswitchd/internal/switcher"
)

// Options carries injectable collaborators. Zero-value fields get the
// platform implementation.
type Options struct {
	Hook    hook.Hook
	Backend source.Backend
	Store   store.Store
	Log     *slog.Logger
}

// Daemon is the assembled imeswitchd process.
type Daemon struct {
	cfg     *config.Config
	cfgPath string
	log     *slog.Logger

	hk    hook.Hook
	st    store.Store
	reg   *source.Registry
	coord *coordinator.Coordinator
	pol   *policy.AppPolicy
	ipcSv *ipc.Server

	det      *gesture.Detector
	gestures *gesture.Queue

	tapConfigured    atomic.Bool
	escapeConfigured atomic.Bool

	wg sync.WaitGroup
}

// New assembles a daemon from config. The hook is not installed yet;
// Run does that.
func New(cfg *config.Config, cfgPath string, opts Options) (*Daemon, error) {
	log := opts.Log
	if log == nil {
		log = slog.Default()
	}

	st := opts.Store
	if st == nil {
		var err error
		st, err = store.Open(cfg.Store.Path)
		if err != nil {
			return nil, fmt.Errorf("open settings store: %w", err)
		}
	}

	backend := opts.Backend
	if backend == nil {
		var err error
		backend, err = source.New()
		if err != nil {
			st.Close()
			return nil, fmt.Errorf("init source backend: %w", err)
		}
	}
	reg := source.NewRegistry(backend, log.With("component", "source"))
	if err := reg.Refresh(); err != nil {
		// Enumeration can come up later; switching by id still works.
		log.Warn("initial source enumeration failed", "error", err)
	}

	sw := switcher.New(reg, log.With("component", "switcher"),
		switcher.WithSettle(cfg.Switcher.Settle()))

	pol := policy.New(policy.Mode(cfg.Apps.Mode), cfg.Apps.List, nil)

	coord, err := coordinator.New(coordinator.Config{
		Registry:   reg,
		Switcher:   sw,
		Store:      st,
		Log:        log.With("component", "coordinator"),
		LatinID:    cfg.Sources.LatinID,
		TapEnabled: cfg.Gesture.TapEnabled,
		Allow:      pol.MaySwitch,
	})
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("init coordinator: %w", err)
	}

	hk := opts.Hook
	if hk == nil {
		hk = hook.New()
	}

	d := &Daemon{
		cfg:      cfg,
		cfgPath:  cfgPath,
		log:      log,
		hk:       hk,
		st:       st,
		reg:      reg,
		coord:    coord,
		pol:      pol,
		gestures: gesture.NewQueue(),
	}
	d.tapConfigured.Store(cfg.Gesture.TapEnabled)
	d.escapeConfigured.Store(cfg.Gesture.EscapeEnabled)

	d.det = gesture.New(gesture.Config{
		TapWindow:     cfg.Gesture.TapWindow(),
		TapEnabled:    d.tapEnabled,
		EscapeEnabled: d.escapeConfigured.Load,
	}, d.gestures.Push)

	d.ipcSv = ipc.NewServer(cfg.IPC.SocketPath, coord, reg, log.With("component", "ipc"))
	return d, nil
}

// tapEnabled combines the config flag with the runtime toggle.
func (d *Daemon) tapEnabled() bool {
	return d.tapConfigured.Load() && d.coord.TapEnabled()
}

// Coordinator exposes the coordinator for tests and embedding callers.
func (d *Daemon) Coordinator() *coordinator.Coordinator { return d.coord }

// Run installs the hook, starts the control socket and the config
// watcher, and blocks until the context is canceled.
// hook.ErrInstallFailed is returned as-is so the caller can distinguish
// the permission failure mode.
func (d *Daemon) Run(ctx context.Context) error {
	if err := d.hk.Start(ctx); err != nil {
		return err
	}

	if err := d.ipcSv.Start(); err != nil {
		d.hk.Stop()
		return fmt.Errorf("start control socket: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	d.wg.Add(2)
	go d.pump(ctx)
	go d.work(ctx)

	if d.cfgPath != "" {
		if w, err := config.NewWatcher(d.cfgPath); err != nil {
			d.log.Warn("config watcher unavailable", "error", err)
		} else {
			d.wg.Add(1)
			go func() {
				defer d.wg.Done()
				defer w.Close()
				go w.Run(ctx)
				for {
					select {
					case <-ctx.Done():
						return
					case cfg := <-w.Reloads():
						d.applyConfig(cfg)
					}
				}
			}()
		}
	}

	d.log.Info("daemon running",
		"latin", d.coord.LatinSourceID(), "socket", d.cfg.IPC.SocketPath)

	<-ctx.Done()
	return d.shutdown()
}

// pump feeds hook events to the detector in arrival order.
func (d *Daemon) pump(ctx context.Context) {
	defer d.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-d.hk.Events():
			if !ok {
				return
			}
			d.det.Feed(ev)
		}
	}
}

// work consumes queued gestures in arrival order and drives the
// coordinator. One gesture at a time; the coordinator's activation
// sequence blocks here, never on the pump, and the queue absorbs any
// backlog that builds up meanwhile.
func (d *Daemon) work(ctx context.Context) {
	defer d.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-d.gestures.Wake():
		}

		for {
			select {
			case <-ctx.Done():
				return
			default:
			}
			ev, ok := d.gestures.Pop()
			if !ok {
				break
			}
			switch ev.Type {
			case gesture.EscapeLike:
				d.coord.OnEscapeLike()
			case gesture.ShortModifierTap:
				d.coord.OnShortModifierTap()
			}
		}
	}
}

// applyConfig applies a reloaded config. Only settings that can change
// safely at runtime are applied: the Latin source, gesture enable flags
// and the application policy. Timing and path changes need a restart.
func (d *Daemon) applyConfig(cfg *config.Config) {
	d.log.Info("config reloaded", "path", d.cfgPath)

	d.coord.UpdateLatinID(cfg.Sources.LatinID)
	d.tapConfigured.Store(cfg.Gesture.TapEnabled)
	d.escapeConfigured.Store(cfg.Gesture.EscapeEnabled)
	d.pol.Update(policy.Mode(cfg.Apps.Mode), cfg.Apps.List)
}

func (d *Daemon) shutdown() error {
	d.log.Info("daemon shutting down")

	if err := d.hk.Stop(); err != nil {
		d.log.Warn("hook stop failed", "error", err)
	}
	d.ipcSv.Stop()
	d.wg.Wait()

	if err := d.st.Close(); err != nil {
		d.log.Warn("store close failed", "error", err)
	}
	return nil
}
