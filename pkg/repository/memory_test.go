package repository_test

import (
	"context"
	"testing"

	"github.com/m-mizutani/fennec/pkg/model"
	"github.com/m-mizutani/fennec/pkg/repository"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"
	"google.golang.org/genai"
)

// mockGemini returns scripted embeddings by exact text match.
type mockGemini struct {
	vectors map[string][]float32
}

func (m *mockGemini) GenerateContent(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	return nil, goerr.New("not scripted")
}

func (m *mockGemini) Embedding(ctx context.Context, text string) ([]float32, error) {
	if vec, ok := m.vectors[text]; ok {
		return vec, nil
	}
	return []float32{1, 0}, nil
}

func newTestStore(t *testing.T) repository.Repository {
	t.Helper()

	gemini := &mockGemini{vectors: map[string][]float32{
		// Unit vectors at increasing angles from the query; cosine distance
		// grows in the same order.
		"near":    {1, 0},
		"close":   {0.866, 0.5},
		"distant": {0.5, 0.866},
	}}
	return repository.NewMemory(gemini, "documents", "Drive")
}

func doc(id, text, name, folder string) model.Document {
	return model.Document{
		ID:   id,
		Text: text,
		Metadata: model.Metadata{
			Name:         name,
			MimeType:     model.MimeGoogleDocument,
			FolderPath:   folder,
			ModifiedTime: "2025-06-01T10:00:00Z",
			Extension:    ".docx",
		},
	}
}

func TestAddManyGetAllRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	docs := []model.Document{
		doc("a", "near", "Doc A", "folder1"),
		doc("b", "close", "Doc B", "folder2"),
		doc("c", "distant", "Doc C", ""),
	}
	gt.NoError(t, store.AddMany(ctx, docs))

	all, err := store.GetAll(ctx)
	gt.NoError(t, err)
	gt.Equal(t, len(all), 3)

	byID := make(map[string]model.Document)
	for _, d := range all {
		byID[d.ID] = d
	}
	for _, want := range docs {
		got, ok := byID[want.ID]
		gt.True(t, ok)
		gt.Equal(t, got.Text, want.Text)
		gt.Equal(t, got.Metadata, want.Metadata)
	}
}

func TestAddManyReplacesSameID(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	gt.NoError(t, store.AddMany(ctx, []model.Document{doc("a", "near", "Doc A", "")}))
	gt.NoError(t, store.AddMany(ctx, []model.Document{doc("a", "close", "Doc A v2", "")}))

	all, err := store.GetAll(ctx)
	gt.NoError(t, err)
	gt.Equal(t, len(all), 1)
	gt.Equal(t, all[0].Text, "close")
	gt.Equal(t, all[0].Metadata.Name, "Doc A v2")
}

func TestDeleteMany(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	gt.NoError(t, store.AddMany(ctx, []model.Document{
		doc("a", "near", "Doc A", ""),
		doc("b", "close", "Doc B", ""),
	}))
	gt.NoError(t, store.DeleteMany(ctx, []string{"a", "missing"}))

	all, err := store.GetAll(ctx)
	gt.NoError(t, err)
	gt.Equal(t, len(all), 1)
	gt.Equal(t, all[0].ID, "b")
}

func TestResetAndStats(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	gt.NoError(t, store.AddMany(ctx, []model.Document{doc("a", "near", "Doc A", "")}))

	stats, err := store.GetStats(ctx)
	gt.NoError(t, err)
	gt.Equal(t, stats.Count, 1)
	gt.Equal(t, stats.Name, "documents")

	gt.NoError(t, store.Reset(ctx))
	stats, err = store.GetStats(ctx)
	gt.NoError(t, err)
	gt.Equal(t, stats.Count, 0)
}

func TestSearchOrderedByDistance(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	gt.NoError(t, store.AddMany(ctx, []model.Document{
		doc("c", "distant", "Doc C", ""),
		doc("a", "near", "Doc A", ""),
		doc("b", "close", "Doc B", ""),
	}))

	results, err := store.Search(ctx, repository.SearchInput{Query: "near", Limit: 10})
	gt.NoError(t, err)
	gt.Equal(t, len(results), 3)
	gt.Equal(t, results[0].ID, "a")
	gt.Equal(t, results[1].ID, "b")
	gt.Equal(t, results[2].ID, "c")
	gt.True(t, results[0].Distance <= results[1].Distance)
	gt.True(t, results[1].Distance <= results[2].Distance)
}

func TestSearchLimit(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	gt.NoError(t, store.AddMany(ctx, []model.Document{
		doc("a", "near", "Doc A", ""),
		doc("b", "close", "Doc B", ""),
		doc("c", "distant", "Doc C", ""),
	}))

	results, err := store.Search(ctx, repository.SearchInput{Query: "near", Limit: 2})
	gt.NoError(t, err)
	gt.Equal(t, len(results), 2)
}

func TestSearchMaxDistance(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	gt.NoError(t, store.AddMany(ctx, []model.Document{
		doc("a", "near", "Doc A", ""),
		doc("c", "distant", "Doc C", ""),
	}))

	cutoff := 0.3
	results, err := store.Search(ctx, repository.SearchInput{
		Query:       "near",
		Limit:       10,
		MaxDistance: &cutoff,
	})
	gt.NoError(t, err)
	gt.Equal(t, len(results), 1)
	gt.Equal(t, results[0].ID, "a")
	gt.True(t, results[0].Distance <= cutoff)
}

func TestSearchKeywordOrdering(t *testing.T) {
	ctx := context.Background()

	// "distant" has the most keyword hits but the worst distance; keyword
	// count must win.
	gemini := &mockGemini{vectors: map[string][]float32{
		"jelena jelena jelena distant": {0.5, 0.866},
		"Jelena close":                 {0.866, 0.5},
		"near":                         {1, 0},
	}}
	store := repository.NewMemory(gemini, "documents", "Drive")
	gt.NoError(t, store.AddMany(ctx, []model.Document{
		{ID: "a", Text: "near", Metadata: model.Metadata{Name: "A"}},
		{ID: "b", Text: "Jelena close", Metadata: model.Metadata{Name: "B"}},
		{ID: "c", Text: "jelena jelena jelena distant", Metadata: model.Metadata{Name: "C"}},
	}))

	results, err := store.Search(ctx, repository.SearchInput{
		Query:   "near",
		Limit:   10,
		Keyword: "Jelena",
	})
	gt.NoError(t, err)
	gt.Equal(t, len(results), 2)
	gt.Equal(t, results[0].ID, "c")
	gt.Equal(t, results[0].KeywordCount, 3)
	gt.Equal(t, results[1].ID, "b")
	gt.Equal(t, results[1].KeywordCount, 1)
}

func TestSearchMetadataFilter(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	gt.NoError(t, store.AddMany(ctx, []model.Document{
		doc("a", "near", "OPENAI VS CLAUDE", "ai"),
		doc("b", "close", "Other doc", "ai"),
	}))

	results, err := store.Search(ctx, repository.SearchInput{
		Query:    "near",
		Limit:    10,
		Metadata: map[string]string{"name": "OPENAI VS CLAUDE"},
	})
	gt.NoError(t, err)
	gt.Equal(t, len(results), 1)
	gt.Equal(t, results[0].ID, "a")
}

func TestSearchResultPathAndLink(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	gt.NoError(t, store.AddMany(ctx, []model.Document{
		doc("id42", "near", "Nested doc 2", "jelena subfolder"),
	}))

	results, err := store.Search(ctx, repository.SearchInput{Query: "near", Limit: 1})
	gt.NoError(t, err)
	gt.Equal(t, len(results), 1)
	gt.Equal(t, results[0].Path, "Drive/jelena subfolder/Nested doc 2.docx")
	gt.Equal(t, results[0].Metadata.GoogleLink, "https://docs.google.com/document/d/id42")
}
