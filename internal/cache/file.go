package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// FileTier is the durable fallback tier. Entries live under a directory
// tree sharded by the first two hex characters of the hashed key. Filenames
// are content hashes, so the logical key cannot be recovered from the path;
// Clear instead reads the key field every envelope carries.
type FileTier struct {
	dir string
}

// NewFileTier creates the durable tier rooted at dir.
func NewFileTier(dir string) (*FileTier, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	return &FileTier{dir: dir}, nil
}

func (t *FileTier) path(key string) string {
	sum := sha256.Sum256([]byte(key))
	name := hex.EncodeToString(sum[:])

	return filepath.Join(t.dir, name[:2], name+".json")
}

func (t *FileTier) Get(_ context.Context, key string) ([]byte, error) {
	path := t.path(key)

	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrCacheMiss
		}

		return nil, err
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		// Corrupt entry, drop it.
		_ = os.Remove(path)

		return nil, ErrCacheMiss
	}

	if time.Now().After(env.ExpiresAt) {
		_ = os.Remove(path)

		return nil, ErrCacheMiss
	}

	return raw, nil
}

// Set stores the envelope bytes. The TTL argument is ignored: expiry is
// carried inside the envelope and enforced on read.
func (t *FileTier) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	path := t.path(key)

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, value, 0o644); err != nil {
		return err
	}

	return os.Rename(tmp, path)
}

func (t *FileTier) Delete(_ context.Context, key string) error {
	err := os.Remove(t.path(key))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}

	return nil
}

// Clear walks the tree and removes every entry whose logical key has the
// prefix. Entries of other types are never touched.
func (t *FileTier) Clear(_ context.Context, prefix string) error {
	return filepath.WalkDir(t.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() || !strings.HasSuffix(path, ".json") {
			return nil
		}

		raw, err := os.ReadFile(path)
		if err != nil {
			return nil
		}

		var env envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			log.Printf("cache: skipping unreadable entry %s: %v", path, err)

			return nil
		}

		if strings.HasPrefix(env.Key, prefix) {
			return os.Remove(path)
		}

		return nil
	})
}

func (t *FileTier) Close() error {
	return nil
}
