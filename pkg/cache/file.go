package cache

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/xlog"
)

const fileExt = ".json"

// FileCache stores each entry as `<dir>/<key>.json`
type FileCache struct {
	dir string
}

// NewFileCache returns the file cache in dir, the folder is created if needed
func NewFileCache(dir string) (*FileCache, error) {
	if dir == "" {
		return nil, errors.New("cache folder is not specified")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "failed to create cache folder")
	}
	return &FileCache{dir: dir}, nil
}

// Dir returns the cache folder
func (c *FileCache) Dir() string {
	return c.dir
}

func (c *FileCache) path(key string) string {
	// keys are file names, separators are not allowed
	key = strings.NewReplacer("/", "_", "\\", "_", "..", "_").Replace(key)
	return filepath.Join(c.dir, key+fileExt)
}

// Get returns the entry, expired and corrupt files are removed
func (c *FileCache) Get(ctx context.Context, key string, out any) (bool, error) {
	fn := c.path(key)
	e, err := readEntry(fn)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		logger.ContextKV(ctx, xlog.WARNING, "status", "corrupt_entry", "key", key, "err", err.Error())
		_ = os.Remove(fn)
		return false, nil
	}

	if e.Expired(NowFunc()) {
		logger.ContextKV(ctx, xlog.DEBUG, "status", "expired", "key", key)
		_ = os.Remove(fn)
		return false, nil
	}

	if out != nil {
		if err = json.Unmarshal(e.Data, out); err != nil {
			return false, errors.Wrapf(err, "failed to decode cache entry")
		}
	}
	return true, nil
}

// Set writes the entry to a temp file and renames it,
// so readers never observe a partial write.
func (c *FileCache) Set(ctx context.Context, key string, val any, ttl time.Duration) error {
	e, err := newEntry(key, val, ttl)
	if err != nil {
		return err
	}
	js, err := json.Marshal(e)
	if err != nil {
		return errors.WithStack(err)
	}

	f, err := os.CreateTemp(c.dir, ".tmp-*")
	if err != nil {
		return errors.Wrap(err, "failed to create temp file")
	}
	tmp := f.Name()
	_, err = f.Write(js)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(tmp)
		return errors.Wrap(err, "failed to write cache entry")
	}

	if err = os.Rename(tmp, c.path(key)); err != nil {
		_ = os.Remove(tmp)
		return errors.Wrap(err, "failed to store cache entry")
	}
	return nil
}

// Delete removes the entry
func (c *FileCache) Delete(_ context.Context, key string) error {
	err := os.Remove(c.path(key))
	if err != nil && !os.IsNotExist(err) {
		return errors.WithStack(err)
	}
	return nil
}

// Purge removes expired and corrupt entries, and returns the number of removed files
func (c *FileCache) Purge(ctx context.Context) (int, error) {
	list, err := os.ReadDir(c.dir)
	if err != nil {
		return 0, errors.WithStack(err)
	}

	now := NowFunc()
	count := 0
	for _, de := range list {
		if ctx.Err() != nil {
			return count, ctx.Err()
		}
		if de.IsDir() || !strings.HasSuffix(de.Name(), fileExt) {
			continue
		}
		fn := filepath.Join(c.dir, de.Name())
		e, err := readEntry(fn)
		if err == nil && !e.Expired(now) {
			continue
		}
		if err := os.Remove(fn); err == nil {
			count++
		}
	}

	logger.ContextKV(ctx, xlog.DEBUG, "status", "purged", "dir", c.dir, "count", count)
	return count, nil
}

func readEntry(fn string) (*Entry, error) {
	js, err := os.ReadFile(fn)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	e := new(Entry)
	if err = json.Unmarshal(js, e); err != nil {
		return nil, errors.Wrapf(err, "failed to parse %s", filepath.Base(fn))
	}
	return e, nil
}
