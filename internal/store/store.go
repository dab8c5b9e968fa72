// Package store provides the persisted settings collaborator: a small
// key-value store with get/set by named key.
//
// The switching core treats its state as in-memory and calls the store
// synchronously at well-defined points (startup load, before every switch
// away from a remembered source), so writes must be durable when Set
// returns.
package store

import "errors"

// Well-known setting keys.
const (
	KeyLatinSourceID  = "latin_source_id"
	KeyLastNonLatinID = "last_non_latin_source_id"
	KeyTapEnabled     = "tap_enabled"
)

// ErrNotFound is returned by Get for a key that was never set.
var ErrNotFound = errors.New("setting not found")

// Store is the key-value settings store.
type Store interface {
	// Get returns the value for key, or ErrNotFound.
	Get(key string) (string, error)

	// Set durably stores value under key.
	Set(key, value string) error

	// Delete removes key. Deleting an absent key is not an error.
	Delete(key string) error

	// Close releases the store.
	Close() error
}

// GetDefault returns the value for key, or def when the key is absent.
// Errors other than absence are returned as-is.
func GetDefault(s Store, key, def string) (string, error) {
	v, err := s.Get(key)
	if errors.Is(err, ErrNotFound) {
		return def, nil
	}
	if err != nil {
		return "", err
	}
	return v, nil
}
