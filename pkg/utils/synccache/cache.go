// Package synccache persists the state of the last successful ingestion run
// as a single JSON record on disk. The write is atomic (tmp + rename) so a
// crashed writer never leaves a partial record behind; a partial or
// unparsable file is treated as if no prior sync happened.
package synccache

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/m-mizutani/fennec/pkg/model"
	"github.com/m-mizutani/fennec/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
)

// Cache reads and writes the sync cache record at a fixed path.
type Cache struct {
	path string
}

// New creates a Cache for the given file path.
func New(path string) *Cache {
	return &Cache{path: path}
}

// Load returns the stored record, or nil if no usable record exists.
func (c *Cache) Load(ctx context.Context) (*model.SyncCacheRecord, error) {
	data, err := os.ReadFile(c.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, goerr.Wrap(err, "failed to read sync cache", goerr.V("path", c.path))
	}

	var rec model.SyncCacheRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		logging.From(ctx).Warn("sync cache is corrupt, treating as absent",
			"path", c.path, "error", err)
		return nil, nil
	}
	if rec.LastSyncTime == "" || rec.FileCount < 0 {
		logging.From(ctx).Warn("sync cache is incomplete, treating as absent",
			"path", c.path)
		return nil, nil
	}

	return &rec, nil
}

// Save writes the record atomically.
func (c *Cache) Save(ctx context.Context, rec *model.SyncCacheRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return goerr.Wrap(err, "failed to marshal sync cache record")
	}

	dir := filepath.Dir(c.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return goerr.Wrap(err, "failed to create sync cache directory", goerr.V("dir", dir))
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(c.path)+".*")
	if err != nil {
		return goerr.Wrap(err, "failed to create temp file", goerr.V("dir", dir))
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return goerr.Wrap(err, "failed to write sync cache", goerr.V("path", tmpPath))
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return goerr.Wrap(err, "failed to close sync cache", goerr.V("path", tmpPath))
	}

	if err := os.Rename(tmpPath, c.path); err != nil {
		_ = os.Remove(tmpPath)
		return goerr.Wrap(err, "failed to replace sync cache", goerr.V("path", c.path))
	}

	return nil
}
