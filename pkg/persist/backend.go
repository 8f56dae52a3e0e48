// Package persist provides a generic persisted value that is kept in sync
// across every process or browser tab sharing the same storage key.
//
// A Value reads its key once from a Backend, writes through on every update
// and announces each write on a Bus. Other Values subscribed to the same key
// re-read the backend when they hear about a foreign write. Conflicts resolve
// as last-write-wins over the whole value; a concurrent edit made elsewhere
// between a read and a write is silently overwritten.
package persist

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound is returned by a Backend when the key has never been written.
var ErrNotFound = errors.New("persist: key not found")

// Backend is a durable byte store addressed by key.
type Backend interface {
	// Read returns the stored bytes or ErrNotFound.
	Read(key string) ([]byte, error)
	// Write replaces the stored bytes.
	Write(key string, data []byte) error
	// Close releases the backend.
	Close() error
}

// validateKey rejects keys that cannot be used as a single file name.
func validateKey(key string) error {
	if key == "" {
		return fmt.Errorf("persist: empty key")
	}
	if strings.ContainsAny(key, `/\`) || key == "." || key == ".." {
		return fmt.Errorf("persist: invalid key %q", key)
	}
	return nil
}
