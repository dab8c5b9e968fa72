//go:build !darwin && !linux && !windows

package source

// stubBackend is used on platforms without input source control.
type stubBackend struct{}

func newPlatformBackend() (Backend, error) {
	return stubBackend{}, nil
}

func (stubBackend) List() ([]Source, error)  { return nil, ErrNotAvailable }
func (stubBackend) Current() (Source, error) { return Source{}, ErrNotAvailable }
func (stubBackend) Select(string) error      { return ErrNotAvailable }
func (stubBackend) PulseNeutralKey() error   { return nil }
func (stubBackend) Available() (bool, string) {
	return false, "input source control not supported"
}

var _ Backend = stubBackend{}
