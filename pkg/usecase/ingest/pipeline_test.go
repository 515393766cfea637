package ingest_test

import (
	"context"
	"io"
	"path/filepath"
	"testing"

	"github.com/m-mizutani/fennec/pkg/model"
	"github.com/m-mizutani/fennec/pkg/repository"
	"github.com/m-mizutani/fennec/pkg/service/extract"
	"github.com/m-mizutani/fennec/pkg/usecase/ingest"
	"github.com/m-mizutani/fennec/pkg/utils/synccache"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"
	"google.golang.org/genai"
)

// fakeDrive serves a fixed listing with plain text content per file id.
type fakeDrive struct {
	files   []model.DriveFile
	content map[string]string
	sheets  map[string]string
}

func (d *fakeDrive) ListTree(ctx context.Context, rootFolderID string, maxFolders int) ([]model.DriveFile, error) {
	return d.files, nil
}

func (d *fakeDrive) Download(ctx context.Context, fileID, mimeType string, dst io.Writer) error {
	content, ok := d.content[fileID]
	if !ok {
		return goerr.New("file not found", goerr.V("fileID", fileID))
	}
	_, err := io.WriteString(dst, content)
	return err
}

func (d *fakeDrive) ReadSheet(ctx context.Context, fileID string) (string, error) {
	if text, ok := d.sheets[fileID]; ok {
		return text, nil
	}
	return "", goerr.New("sheet API unavailable", goerr.V("fileID", fileID))
}

// constGemini embeds everything to the same vector; the pipeline tests only
// care about store contents, not ranking.
type constGemini struct{}

func (constGemini) GenerateContent(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	return nil, goerr.New("not scripted")
}

func (constGemini) Embedding(ctx context.Context, text string) ([]float32, error) {
	return []float32{1, 0}, nil
}

// recordingStore wraps a Repository and counts mutations.
type recordingStore struct {
	repository.Repository
	addCalls    int
	added       []string
	deleteCalls int
	deleted     []string
}

func (r *recordingStore) AddMany(ctx context.Context, docs []model.Document) error {
	r.addCalls++
	for _, d := range docs {
		r.added = append(r.added, d.ID)
	}
	return r.Repository.AddMany(ctx, docs)
}

func (r *recordingStore) DeleteMany(ctx context.Context, ids []string) error {
	r.deleteCalls++
	r.deleted = append(r.deleted, ids...)
	return r.Repository.DeleteMany(ctx, ids)
}

func contains(list []string, want string) bool {
	for _, v := range list {
		if v == want {
			return true
		}
	}
	return false
}

func file(id, name, folder, modified string) model.DriveFile {
	return model.DriveFile{
		ID:           id,
		Name:         name,
		MimeType:     "text/plain",
		FolderPath:   folder,
		ModifiedTime: modified,
	}
}

type testEnv struct {
	drive    *fakeDrive
	store    *recordingStore
	cache    *synccache.Cache
	pipeline *ingest.Pipeline
}

func newEnv(t *testing.T, drive *fakeDrive) *testEnv {
	t.Helper()

	store := &recordingStore{
		Repository: repository.NewMemory(constGemini{}, "documents", "Drive"),
	}
	cache := synccache.New(filepath.Join(t.TempDir(), "sync-cache.json"))

	pipeline, err := ingest.New(ingest.Config{
		Drive:        drive,
		Store:        store,
		Extractor:    extract.New(),
		Cache:        cache,
		RootFolderID: "root1",
	})
	gt.NoError(t, err)

	return &testEnv{drive: drive, store: store, cache: cache, pipeline: pipeline}
}

func TestInitialSync(t *testing.T) {
	ctx := context.Background()
	env := newEnv(t, &fakeDrive{
		files: []model.DriveFile{
			file("f1", "doc one", "", "2025-06-01T10:00:00Z"),
			file("f2", "doc two", "sub", "2025-06-01T11:00:00Z"),
		},
		content: map[string]string{
			"f1": "content one",
			"f2": "content two",
		},
	})

	report, err := env.pipeline.Run(ctx)
	gt.NoError(t, err)
	gt.Equal(t, report.Total, 2)
	gt.Equal(t, report.Added, 2)
	gt.Equal(t, report.Failed, 0)

	all, err := env.store.GetAll(ctx)
	gt.NoError(t, err)
	gt.Equal(t, len(all), 2)

	rec, err := env.cache.Load(ctx)
	gt.NoError(t, err)
	gt.NotNil(t, rec)
	gt.Equal(t, rec.FileCount, 2)
	gt.NotEqual(t, rec.LastSyncTime, "")
}

func TestIdempotentSync(t *testing.T) {
	ctx := context.Background()
	env := newEnv(t, &fakeDrive{
		files: []model.DriveFile{
			file("f1", "doc one", "", "2025-06-01T10:00:00Z"),
		},
		content: map[string]string{"f1": "content one"},
	})

	_, err := env.pipeline.Run(ctx)
	gt.NoError(t, err)

	addCalls, deleteCalls := env.store.addCalls, env.store.deleteCalls

	report, err := env.pipeline.Run(ctx)
	gt.NoError(t, err)
	gt.Equal(t, report.Added, 0)
	gt.Equal(t, report.Updated, 0)
	gt.Equal(t, report.Deleted, 0)

	// The second run touches the store for neither adds nor deletes.
	gt.Equal(t, env.store.addCalls, addCalls)
	gt.Equal(t, env.store.deleteCalls, deleteCalls)

	rec, err := env.cache.Load(ctx)
	gt.NoError(t, err)
	gt.Equal(t, rec.FileCount, 1)
}

func TestDeltaSync(t *testing.T) {
	ctx := context.Background()
	drive := &fakeDrive{
		files: []model.DriveFile{
			file("keep", "stays", "", "2025-06-01T10:00:00Z"),
			file("gone", "vanishes", "", "2025-06-01T10:00:00Z"),
			file("mod", "changes", "", "2025-06-01T10:00:00Z"),
		},
		content: map[string]string{
			"keep": "keep content",
			"gone": "gone content",
			"mod":  "old content",
		},
	}
	env := newEnv(t, drive)

	_, err := env.pipeline.Run(ctx)
	gt.NoError(t, err)

	// F appears, G disappears, H's modifiedTime changes.
	drive.files = []model.DriveFile{
		file("keep", "stays", "", "2025-06-01T10:00:00Z"),
		file("mod", "changes", "", "2025-06-02T09:00:00Z"),
		file("new", "appears", "", "2025-06-02T09:00:00Z"),
	}
	drive.content["mod"] = "new content"
	drive.content["new"] = "new file content"

	env.store.added = nil
	env.store.deleted = nil

	report, err := env.pipeline.Run(ctx)
	gt.NoError(t, err)
	gt.Equal(t, report.Added, 1)
	gt.Equal(t, report.Updated, 1)
	gt.Equal(t, report.Deleted, 1)

	gt.True(t, contains(env.store.deleted, "gone"))
	gt.True(t, contains(env.store.deleted, "mod"))
	gt.True(t, contains(env.store.added, "new"))
	gt.True(t, contains(env.store.added, "mod"))

	all, err := env.store.GetAll(ctx)
	gt.NoError(t, err)
	gt.Equal(t, len(all), 3)

	byID := make(map[string]model.Document)
	for _, d := range all {
		byID[d.ID] = d
	}
	gt.Equal(t, byID["mod"].Text, "new content")
	gt.Equal(t, byID["mod"].Metadata.ModifiedTime, "2025-06-02T09:00:00Z")
}

func TestZeroByteFileIsSkipped(t *testing.T) {
	ctx := context.Background()
	env := newEnv(t, &fakeDrive{
		files: []model.DriveFile{
			file("empty", "empty file", "", "2025-06-01T10:00:00Z"),
			file("full", "full file", "", "2025-06-01T10:00:00Z"),
		},
		content: map[string]string{
			"empty": "",
			"full":  "something",
		},
	})

	report, err := env.pipeline.Run(ctx)
	gt.NoError(t, err)
	gt.Equal(t, report.Added, 1)
	gt.Equal(t, report.Skipped, 1)
	gt.Equal(t, report.Failed, 0)

	all, err := env.store.GetAll(ctx)
	gt.NoError(t, err)
	gt.Equal(t, len(all), 1)
	gt.Equal(t, all[0].ID, "full")
}

func TestPerFileFailureDoesNotAbort(t *testing.T) {
	ctx := context.Background()
	env := newEnv(t, &fakeDrive{
		files: []model.DriveFile{
			file("broken", "broken file", "", "2025-06-01T10:00:00Z"),
			file("ok", "ok file", "", "2025-06-01T10:00:00Z"),
		},
		// "broken" has no content entry, so its download fails.
		content: map[string]string{"ok": "fine"},
	})

	report, err := env.pipeline.Run(ctx)
	gt.NoError(t, err)
	gt.Equal(t, report.Added, 1)
	gt.Equal(t, report.Failed, 1)

	// The cache is written anyway; the next run re-drives the failure.
	rec, err := env.cache.Load(ctx)
	gt.NoError(t, err)
	gt.NotNil(t, rec)
	gt.Equal(t, rec.FileCount, 2)
}

func TestNativeSpreadsheetPrefersSheetAPI(t *testing.T) {
	ctx := context.Background()
	env := newEnv(t, &fakeDrive{
		files: []model.DriveFile{{
			ID:           "sheet1",
			Name:         "budget",
			MimeType:     model.MimeGoogleSpreadsheet,
			ModifiedTime: "2025-06-01T10:00:00Z",
		}},
		sheets: map[string]string{"sheet1": "[Sheet: Q1]\n100\t200"},
	})

	report, err := env.pipeline.Run(ctx)
	gt.NoError(t, err)
	gt.Equal(t, report.Added, 1)

	all, err := env.store.GetAll(ctx)
	gt.NoError(t, err)
	gt.Equal(t, len(all), 1)
	gt.S(t, all[0].Text).Contains("[Sheet: Q1]")
	gt.Equal(t, all[0].Metadata.Extension, ".xlsx")
	gt.Equal(t, all[0].Metadata.GoogleLink, "https://docs.google.com/spreadsheets/d/sheet1")
}

func TestDocumentMetadata(t *testing.T) {
	ctx := context.Background()
	env := newEnv(t, &fakeDrive{
		files: []model.DriveFile{
			file("f1", "notes", "team/docs", "2025-06-01T10:00:00Z"),
		},
		content: map[string]string{"f1": "note content"},
	})

	_, err := env.pipeline.Run(ctx)
	gt.NoError(t, err)

	all, err := env.store.GetAll(ctx)
	gt.NoError(t, err)
	gt.Equal(t, len(all), 1)

	meta := all[0].Metadata
	gt.Equal(t, meta.Name, "notes")
	gt.Equal(t, meta.MimeType, "text/plain")
	gt.Equal(t, meta.FolderPath, "team/docs")
	gt.Equal(t, meta.ModifiedTime, "2025-06-01T10:00:00Z")
	gt.Equal(t, meta.Extension, ".txt")
	gt.Equal(t, meta.GoogleLink, "https://drive.google.com/file/d/f1")
}
