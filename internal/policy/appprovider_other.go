//go:build !darwin || !cgo

package policy

// nullAppProvider is used where frontmost-app detection is not wired up.
// It reports an unknown application, which the policy treats as permitted.
type nullAppProvider struct{}

func systemAppProvider() AppProvider {
	return nullAppProvider{}
}

func (nullAppProvider) ActiveApp() string { return "" }
