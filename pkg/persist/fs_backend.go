package persist

import (
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/hack-pad/hackpadfs"
	hackos "github.com/hack-pad/hackpadfs/os"
)

// FileExt is appended to the key to form the file name.
const FileExt = ".json"

// FSBackend stores each key as <dir>/<key>.json on a hackpadfs filesystem.
// The browser build hands it an IndexedDB FS, the CLI an OS FS and tests
// the in-memory FS.
type FSBackend struct {
	mu  sync.Mutex
	fs  hackpadfs.FS
	dir string
}

// NewFSBackend creates a backend rooted at dir ("." for the FS root).
// The directory is created if missing.
func NewFSBackend(fs hackpadfs.FS, dir string) (*FSBackend, error) {
	if dir == "" {
		dir = "."
	}
	if dir != "." {
		if err := hackpadfs.MkdirAll(fs, dir, 0o755); err != nil {
			return nil, fmt.Errorf("persist: failed to create %s: %w", dir, err)
		}
	}
	return &FSBackend{fs: fs, dir: dir}, nil
}

// NewOSBackend creates an FSBackend over the host filesystem at osDir.
func NewOSBackend(osDir string) (*FSBackend, error) {
	abs, err := filepath.Abs(osDir)
	if err != nil {
		return nil, fmt.Errorf("persist: failed to resolve %s: %w", osDir, err)
	}
	// hackpadfs paths are unrooted, slash separated.
	rel := strings.TrimPrefix(filepath.ToSlash(abs), "/")
	if rel == "" {
		rel = "."
	}
	return NewFSBackend(hackos.NewFS(), rel)
}

// Path returns the file path used for key.
func (b *FSBackend) Path(key string) string {
	return path.Join(b.dir, key+FileExt)
}

// Read returns the file contents for key.
func (b *FSBackend) Read(key string) ([]byte, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	data, err := hackpadfs.ReadFile(b.fs, b.Path(key))
	if errors.Is(err, hackpadfs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("persist: failed to read %s: %w", key, err)
	}
	return data, nil
}

// Write replaces the file contents for key.
func (b *FSBackend) Write(key string, data []byte) error {
	if err := validateKey(key); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if err := hackpadfs.WriteFullFile(b.fs, b.Path(key), data, 0o644); err != nil {
		return fmt.Errorf("persist: failed to write %s: %w", key, err)
	}
	return nil
}

// Close is a no-op; the filesystem is owned by the caller.
func (b *FSBackend) Close() error {
	return nil
}

var _ Backend = (*FSBackend)(nil)
