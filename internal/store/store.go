package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
)

var (
	// ErrNotFound is returned by Get when the key does not exist.
	ErrNotFound = errors.New("store: not found")

	// ErrConflict is returned by AtomicCommit when an expected version does
	// not match. Nothing is applied.
	ErrConflict = errors.New("store: version conflict")
)

// Record is a stored value with its version. Versions start at 1 and grow
// by one on every write.
type Record struct {
	Key     string
	Value   []byte
	Version uint64
}

// Write is one element of an atomic commit.
type Write struct {
	Key   string
	Value []byte

	// Version is the version the key must currently have. 0 means the key
	// must not exist.
	Version uint64

	// Delete removes the key instead of writing Value.
	Delete bool
}

// KV is the durable store used by the engine. Implementations must apply
// every write of a commit or none of them.
type KV interface {
	Get(ctx context.Context, key string) (Record, error)

	// Scan returns all records whose key starts with prefix, ordered by key.
	Scan(ctx context.Context, prefix string) ([]Record, error)

	AtomicCommit(ctx context.Context, writes []Write) error

	Close() error
}

// Backend names a KV implementation.
type Backend string

const (
	BackendMemory Backend = "memory"
	BackendSQLite Backend = "sqlite"
	BackendBadger Backend = "badger"
)

// Config selects and configures the backend.
type Config struct {
	Backend Backend `yaml:"backend" validate:"oneof=memory sqlite badger"`

	// Path is the SQLite file or the Badger directory. Empty uses
	// DefaultDBPath.
	Path string `yaml:"path"`

	// SyncWrites makes Badger fsync every commit.
	SyncWrites bool `yaml:"sync_writes"`
}

// DefaultConfig stores data in SQLite under the user's data directory.
func DefaultConfig() Config {
	return Config{
		Backend:    BackendSQLite,
		SyncWrites: true,
	}
}

// Open creates the configured backend.
func Open(cfg Config, logger *zap.Logger) (KV, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	path := cfg.Path
	if path == "" && cfg.Backend != BackendMemory {
		p, err := DefaultDBPath(cfg.Backend)
		if err != nil {
			return nil, err
		}
		path = p
	} else if cfg.Backend != BackendMemory {
		if err := ensureDir(path); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}

	switch cfg.Backend {
	case BackendMemory:
		return NewMemory(), nil
	case BackendSQLite, "":
		return OpenSQLite(path)
	case BackendBadger:
		return OpenBadger(BadgerConfig{
			Path:       path,
			SyncWrites: cfg.SyncWrites,
			Logger:     logger,
		})
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}

// DefaultDBPath resolves the data location in priority order:
// 1. ADAPTEST_DB environment variable
// 2. $XDG_DATA_HOME/adaptest/adaptest.db (or adaptest.badger)
// 3. ~/.local/share/adaptest/adaptest.db
func DefaultDBPath(backend Backend) (string, error) {
	if p := os.Getenv("ADAPTEST_DB"); p != "" {
		return p, ensureDir(p)
	}

	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		dataHome = filepath.Join(home, ".local", "share")
	}

	name := "adaptest.db"
	if backend == BackendBadger {
		name = "adaptest.badger"
	}
	p := filepath.Join(dataHome, "adaptest", name)
	return p, ensureDir(p)
}

// ensureDir creates the parent directory of path if it doesn't exist.
func ensureDir(path string) error {
	dir := filepath.Dir(path)
	return os.MkdirAll(dir, 0o755)
}

// checkWrites rejects malformed commits before they reach a backend.
func checkWrites(writes []Write) error {
	seen := make(map[string]bool, len(writes))
	for _, w := range writes {
		if w.Key == "" {
			return errors.New("store: empty key")
		}
		if seen[w.Key] {
			return fmt.Errorf("store: key %q written twice in one commit", w.Key)
		}
		if w.Delete && w.Version == 0 {
			return fmt.Errorf("store: delete of %q needs a version", w.Key)
		}
		seen[w.Key] = true
	}
	return nil
}

func conflict(key string, want, have uint64) error {
	return fmt.Errorf("%w: key %q at version %d, expected %d", ErrConflict, key, have, want)
}
