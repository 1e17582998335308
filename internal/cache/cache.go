package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
)

// Store is a content-addressed file cache. A nil *Store is valid and caches nothing.
type Store struct {
	dir string
}

// DefaultDir returns ~/.contractscan/cache.
func DefaultDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".contractscan", "cache"), nil
}

// Open returns a Store rooted at dir, creating it if needed.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &Store{dir: dir}, nil
}

func (s *Store) Dir() string {
	if s == nil {
		return ""
	}
	return s.dir
}

// Key computes a unique key filename using inputs (e.g., file hash + tool tag)
func Key(parts ...string) string {
	h := sha256.New()
	for _, p := range parts {
		h.Write([]byte(p))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

func (s *Store) Load(key string) ([]byte, bool) {
	if s == nil {
		return nil, false
	}
	b, err := os.ReadFile(filepath.Join(s.dir, key))
	if err != nil {
		return nil, false
	}
	return b, true
}

func (s *Store) Store(key string, data []byte) error {
	if s == nil {
		return nil
	}
	return os.WriteFile(filepath.Join(s.dir, key), data, 0o644)
}
