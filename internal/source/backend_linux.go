//go:build linux

package source

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/godbus/dbus/v5"
)

// IBus D-Bus constants.
const (
	ibusService   = "org.freedesktop.IBus"
	ibusPath      = "/org/freedesktop/IBus"
	ibusInterface = "org.freedesktop.IBus"
)

// IBusBackend controls input sources through the IBus global engine.
// Engine names (e.g. "xkb:us::eng", "pinyin", "hangul") serve as source
// ids; the engine's declared language tag drives CJKV classification.
type IBusBackend struct {
	mu   sync.Mutex
	conn *dbus.Conn
}

func newPlatformBackend() (Backend, error) {
	return &IBusBackend{}, nil
}

// connect lazily establishes the connection to the IBus private bus.
func (b *IBusBackend) connect() (*dbus.Conn, error) {
	if b.conn != nil {
		return b.conn, nil
	}

	addr, err := ibusAddress()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotAvailable, err)
	}

	conn, err := dbus.Connect(addr)
	if err != nil {
		return nil, fmt.Errorf("connect to ibus bus: %w", err)
	}
	b.conn = conn
	return conn, nil
}

// ibusAddress locates the IBus daemon's bus address: IBUS_ADDRESS in the
// environment, or the socket files ibus-daemon writes under
// ~/.config/ibus/bus/.
func ibusAddress() (string, error) {
	if addr := os.Getenv("IBUS_ADDRESS"); addr != "" {
		return addr, nil
	}

	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		configHome = filepath.Join(home, ".config")
	}

	busDir := filepath.Join(configHome, "ibus", "bus")
	entries, err := os.ReadDir(busDir)
	if err != nil {
		return "", fmt.Errorf("read ibus bus directory: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		addr, err := parseAddressFile(filepath.Join(busDir, entry.Name()))
		if err == nil && addr != "" {
			return addr, nil
		}
	}
	return "", fmt.Errorf("no ibus address file in %s", busDir)
}

func parseAddressFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if rest, ok := strings.CutPrefix(line, "IBUS_ADDRESS="); ok {
			return rest, nil
		}
	}
	return "", scanner.Err()
}

// engineDesc is the subset of IBusEngineDesc fields we use. The wire form
// is an IBusSerializable struct: type name, attachment dict, then the
// fields name, longname, description, language in order.
type engineDesc struct {
	name     string
	longname string
	language string
}

func parseEngineDesc(v any) (engineDesc, bool) {
	if variant, ok := v.(dbus.Variant); ok {
		v = variant.Value()
	}
	fields, ok := v.([]any)
	if !ok || len(fields) < 6 {
		return engineDesc{}, false
	}

	str := func(i int) string {
		s, _ := fields[i].(string)
		return s
	}
	return engineDesc{
		name:     str(2),
		longname: str(3),
		language: str(5),
	}, true
}

func (d engineDesc) source() Source {
	var langs []string
	if d.language != "" {
		langs = []string{d.language}
	}
	name := d.longname
	if name == "" {
		name = d.name
	}
	return Source{
		ID:          d.name,
		DisplayName: name,
		Languages:   langs,
		Selectable:  true,
	}
}

// List enumerates the registered IBus engines.
func (b *IBusBackend) List() ([]Source, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	conn, err := b.connect()
	if err != nil {
		return nil, err
	}

	var raw []dbus.Variant
	obj := conn.Object(ibusService, ibusPath)
	if err := obj.Call(ibusInterface+".ListEngines", 0).Store(&raw); err != nil {
		b.reset()
		return nil, fmt.Errorf("ListEngines: %w", err)
	}

	sources := make([]Source, 0, len(raw))
	for _, v := range raw {
		if desc, ok := parseEngineDesc(v); ok && desc.name != "" {
			sources = append(sources, desc.source())
		}
	}
	return sources, nil
}

// Current returns the IBus global engine.
func (b *IBusBackend) Current() (Source, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	conn, err := b.connect()
	if err != nil {
		return Source{}, err
	}

	obj := conn.Object(ibusService, ibusPath)
	variant, err := obj.GetProperty(ibusInterface + ".GlobalEngine")
	if err != nil {
		b.reset()
		return Source{}, fmt.Errorf("get GlobalEngine: %w", err)
	}

	desc, ok := parseEngineDesc(variant)
	if !ok || desc.name == "" {
		return Source{}, fmt.Errorf("%w: unparseable GlobalEngine reply", ErrQueryFailed)
	}
	return desc.source(), nil
}

// Select sets the IBus global engine.
func (b *IBusBackend) Select(id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	conn, err := b.connect()
	if err != nil {
		return err
	}

	obj := conn.Object(ibusService, ibusPath)
	if err := obj.Call(ibusInterface+".SetGlobalEngine", 0, id).Err; err != nil {
		b.reset()
		return fmt.Errorf("SetGlobalEngine %q: %w", id, err)
	}
	return nil
}

// PulseNeutralKey is a no-op on Linux: IBus re-reads the engine state on
// SetGlobalEngine, so the staleness workaround is not needed.
func (b *IBusBackend) PulseNeutralKey() error {
	return nil
}

// Available reports whether the IBus daemon can be reached.
func (b *IBusBackend) Available() (bool, string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, err := b.connect(); err != nil {
		return false, fmt.Sprintf("IBus not reachable: %v", err)
	}
	return true, "IBus daemon reachable"
}

// reset drops a broken connection so the next call reconnects.
func (b *IBusBackend) reset() {
	if b.conn != nil {
		b.conn.Close()
		b.conn = nil
	}
}

var _ Backend = (*IBusBackend)(nil)
