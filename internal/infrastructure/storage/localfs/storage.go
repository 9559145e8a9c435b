package localfs

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

// Storage is a flat file cache for downloaded regulation documents. Entries
// older than the TTL read as missing so callers download a fresh copy.
type Storage struct {
	basePath string
	ttl      time.Duration
	now      func() time.Time
}

// New creates the cache directory. A non-positive ttl keeps entries forever.
func New(basePath string, ttl time.Duration) (*Storage, error) {
	if basePath == "" {
		basePath = "./data/regulations"
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	return &Storage{basePath: basePath, ttl: ttl, now: time.Now}, nil
}

// KeyFor maps a regulation URL to a file name safe for the cache.
func KeyFor(sourceURL string) string {
	sum := sha256.Sum256([]byte(sourceURL))
	return hex.EncodeToString(sum[:])
}

// Save writes through a temporary file so readers never see partial documents.
func (s *Storage) Save(_ context.Context, key string, data io.Reader) error {
	tmp, err := os.CreateTemp(s.basePath, key+".*.tmp")
	if err != nil {
		return fmt.Errorf("create cache file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write cache file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close cache file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path(key)); err != nil {
		return fmt.Errorf("commit cache file: %w", err)
	}
	return nil
}

// Open returns an error wrapping fs.ErrNotExist for missing and expired entries.
func (s *Storage) Open(_ context.Context, key string) (io.ReadCloser, error) {
	path := s.path(key)
	if s.ttl > 0 {
		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("stat cache file: %w", err)
		}
		if age := s.now().Sub(info.ModTime()); age > s.ttl {
			return nil, fmt.Errorf("cache entry %s expired %s ago: %w", key, (age - s.ttl).Round(time.Second), fs.ErrNotExist)
		}
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open cache file: %w", err)
	}
	return f, nil
}

func (s *Storage) path(key string) string {
	return filepath.Join(s.basePath, key)
}
