// Package policy decides whether escape-gesture switching is permitted
// for the currently active application.
package policy

import "sync"

// Mode selects how the application list is interpreted.
type Mode string

const (
	// ModeAllow permits switching only for listed applications.
	ModeAllow Mode = "allow"

	// ModeDeny permits switching for everything except listed
	// applications.
	ModeDeny Mode = "deny"
)

// AppProvider reports the identifier of the frontmost application
// (bundle id on macOS, executable name elsewhere). An empty string means
// the active application could not be determined.
type AppProvider interface {
	ActiveApp() string
}

// AppProviderFunc adapts a function to AppProvider.
type AppProviderFunc func() string

// ActiveApp calls the function.
func (f AppProviderFunc) ActiveApp() string { return f() }

// AppPolicy is a list-based switching policy over the active application.
type AppPolicy struct {
	provider AppProvider

	mu   sync.RWMutex
	mode Mode
	list map[string]bool
}

// New creates a policy. A nil provider uses the platform's frontmost-app
// lookup.
func New(mode Mode, apps []string, provider AppProvider) *AppPolicy {
	if provider == nil {
		provider = systemAppProvider()
	}
	p := &AppPolicy{provider: provider}
	p.Update(mode, apps)
	return p
}

// Update replaces the mode and application list. Called on config reload.
func (p *AppPolicy) Update(mode Mode, apps []string) {
	list := make(map[string]bool, len(apps))
	for _, app := range apps {
		list[app] = true
	}

	p.mu.Lock()
	p.mode = mode
	p.list = list
	p.mu.Unlock()
}

// MaySwitch reports whether escape-gesture switching is permitted for the
// active application. When the active application cannot be determined,
// switching is permitted: the escape gesture degrading to a no-op in
// unknown apps would be worse than an occasional unwanted switch.
func (p *AppPolicy) MaySwitch() bool {
	app := p.provider.ActiveApp()
	if app == "" {
		return true
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	listed := p.list[app]
	if p.mode == ModeAllow {
		return listed
	}
	return !listed
}
