// Package ingest brings the vector store into agreement with the current
// state of a drive folder tree: new files are added, modified files are
// replaced, vanished files are removed. Per-file failures never abort a run;
// the next run re-drives whatever is still missing from the store.
package ingest

import (
	"context"
	"sync"
	"time"

	"github.com/m-mizutani/fennec/pkg/adapter"
	"github.com/m-mizutani/fennec/pkg/model"
	"github.com/m-mizutani/fennec/pkg/repository"
	"github.com/m-mizutani/fennec/pkg/service/extract"
	"github.com/m-mizutani/fennec/pkg/utils/logging"
	"github.com/m-mizutani/fennec/pkg/utils/synccache"
	"github.com/m-mizutani/goerr/v2"
)

// batchSize is the flow-control knob of the pipeline: files are processed in
// groups of this size with aggregate progress logged after each group.
const batchSize = 50

// rootLocks serializes pipeline runs per root folder id.
var (
	rootLocksMu sync.Mutex
	rootLocks   = make(map[string]*sync.Mutex)
)

func lockRoot(rootFolderID string) *sync.Mutex {
	rootLocksMu.Lock()
	defer rootLocksMu.Unlock()

	mu, ok := rootLocks[rootFolderID]
	if !ok {
		mu = &sync.Mutex{}
		rootLocks[rootFolderID] = mu
	}
	return mu
}

// Pipeline synchronizes one drive folder tree into the vector store.
type Pipeline struct {
	drive     adapter.Drive
	store     repository.Repository
	extractor *extract.Extractor
	cache     *synccache.Cache

	rootFolderID string
	maxFolders   int
}

// Config holds the pipeline construction parameters.
type Config struct {
	Drive     adapter.Drive
	Store     repository.Repository
	Extractor *extract.Extractor
	Cache     *synccache.Cache

	RootFolderID string
	MaxFolders   int
}

// New constructs a Pipeline.
func New(cfg Config) (*Pipeline, error) {
	if cfg.Drive == nil {
		return nil, goerr.New("drive client is required")
	}
	if cfg.Store == nil {
		return nil, goerr.New("vector store is required")
	}
	if cfg.Extractor == nil {
		return nil, goerr.New("extractor is required")
	}
	if cfg.Cache == nil {
		return nil, goerr.New("sync cache is required")
	}
	if cfg.RootFolderID == "" {
		return nil, goerr.New("root folder id is required")
	}
	if cfg.MaxFolders <= 0 {
		cfg.MaxFolders = adapter.DefaultMaxFolders
	}

	return &Pipeline{
		drive:        cfg.Drive,
		store:        cfg.Store,
		extractor:    cfg.Extractor,
		cache:        cfg.Cache,
		rootFolderID: cfg.RootFolderID,
		maxFolders:   cfg.MaxFolders,
	}, nil
}

// Run executes one sync. At most one run is active per root folder id.
func (p *Pipeline) Run(ctx context.Context) (*model.SyncReport, error) {
	mu := lockRoot(p.rootFolderID)
	mu.Lock()
	defer mu.Unlock()

	logger := logging.From(ctx)
	syncStart := time.Now().UTC().Format(time.RFC3339)

	prev, err := p.cache.Load(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to load sync cache")
	}
	if prev != nil {
		logger.Info("previous sync", "lastSyncTime", prev.LastSyncTime, "fileCount", prev.FileCount)
	}

	driveFiles, err := p.drive.ListTree(ctx, p.rootFolderID, p.maxFolders)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list drive tree")
	}

	stored, err := p.store.GetAll(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read stored documents")
	}

	toAdd, toUpdate, toDelete := diff(driveFiles, stored)
	report := &model.SyncReport{Total: len(driveFiles)}

	if len(toAdd) == 0 && len(toUpdate) == 0 && len(toDelete) == 0 {
		logger.Info("drive and store are in agreement", "files", len(driveFiles))
		if err := p.writeCache(ctx, syncStart, len(driveFiles)); err != nil {
			return nil, err
		}
		return report, nil
	}

	// Old versions must be gone before the replacement AddMany so the run
	// reads its own writes.
	removeIDs := make([]string, 0, len(toDelete)+len(toUpdate))
	removeIDs = append(removeIDs, toDelete...)
	for _, f := range toUpdate {
		removeIDs = append(removeIDs, f.ID)
	}
	if len(removeIDs) > 0 {
		if err := p.store.DeleteMany(ctx, removeIDs); err != nil {
			return nil, goerr.Wrap(err, "failed to delete stale documents")
		}
	}
	report.Deleted = len(toDelete)

	work := make([]workItem, 0, len(toAdd)+len(toUpdate))
	for _, f := range toAdd {
		work = append(work, workItem{file: f, update: false})
	}
	for _, f := range toUpdate {
		work = append(work, workItem{file: f, update: true})
	}

	p.processAll(ctx, work, report)

	logger.Info("sync finished",
		"total", report.Total,
		"added", report.Added,
		"updated", report.Updated,
		"deleted", report.Deleted,
		"skipped", report.Skipped,
		"failed", report.Failed)

	// The cache is written even with per-file failures: failed files are not
	// in the store, so the next run picks them up again.
	if err := p.writeCache(ctx, syncStart, len(driveFiles)); err != nil {
		return nil, err
	}

	return report, nil
}

func (p *Pipeline) writeCache(ctx context.Context, syncStart string, fileCount int) error {
	rec := &model.SyncCacheRecord{
		LastSyncTime: syncStart,
		FileCount:    fileCount,
	}
	if err := p.cache.Save(ctx, rec); err != nil {
		return goerr.Wrap(err, "failed to save sync cache")
	}
	return nil
}

// diff splits the drive listing against the stored documents into the three
// disjoint change sets.
func diff(driveFiles []model.DriveFile, stored []model.Document) (toAdd, toUpdate []model.DriveFile, toDelete []string) {
	storedByID := make(map[string]model.Document, len(stored))
	for _, doc := range stored {
		storedByID[doc.ID] = doc
	}

	seen := make(map[string]bool, len(driveFiles))
	for _, f := range driveFiles {
		seen[f.ID] = true

		doc, ok := storedByID[f.ID]
		if !ok {
			toAdd = append(toAdd, f)
			continue
		}
		if doc.Metadata.ModifiedTime != f.ModifiedTime {
			toUpdate = append(toUpdate, f)
		}
	}

	for _, doc := range stored {
		if !seen[doc.ID] {
			toDelete = append(toDelete, doc.ID)
		}
	}

	return toAdd, toUpdate, toDelete
}
