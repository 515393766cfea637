package repository

import (
	"context"
	"math"
	"sort"
	"sync"

	"github.com/m-mizutani/fennec/pkg/adapter"
	"github.com/m-mizutani/fennec/pkg/model"
	"github.com/m-mizutani/goerr/v2"
)

// memoryRepo is a brute-force in-memory Repository. It backs tests and small
// deployments that have no Qdrant instance.
type memoryRepo struct {
	mu       sync.RWMutex
	gemini   adapter.Gemini
	name     string
	rootName string
	docs     map[string]model.Document
	vectors  map[string][]float32
}

// NewMemory creates an in-memory Repository.
func NewMemory(gemini adapter.Gemini, name, rootName string) Repository {
	return &memoryRepo{
		gemini:   gemini,
		name:     name,
		rootName: rootName,
		docs:     make(map[string]model.Document),
		vectors:  make(map[string][]float32),
	}
}

func (r *memoryRepo) AddMany(ctx context.Context, docs []model.Document) error {
	for _, doc := range docs {
		vec, err := r.gemini.Embedding(ctx, doc.Text)
		if err != nil {
			return goerr.Wrap(err, "failed to embed document", goerr.V("id", doc.ID))
		}

		r.mu.Lock()
		r.docs[doc.ID] = doc
		r.vectors[doc.ID] = vec
		r.mu.Unlock()
	}
	return nil
}

func (r *memoryRepo) Search(ctx context.Context, input SearchInput) ([]model.SearchResult, error) {
	if input.Limit <= 0 {
		return nil, goerr.New("search limit must be positive", goerr.V("limit", input.Limit))
	}

	queryVec, err := r.gemini.Embedding(ctx, input.Query)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to embed query")
	}

	r.mu.RLock()
	rows := make([]model.SearchResult, 0, len(r.docs))
	for id, doc := range r.docs {
		if !matchMetadata(doc.Metadata, input.Metadata) {
			continue
		}
		rows = append(rows, model.SearchResult{
			Document: doc,
			Distance: cosineDistance(queryVec, r.vectors[id]),
		})
	}
	r.mu.RUnlock()

	sort.Slice(rows, func(i, j int) bool { return rows[i].Distance < rows[j].Distance })
	if n := backendLimit(input); len(rows) > n {
		rows = rows[:n]
	}

	return refine(rows, input, r.rootName), nil
}

func (r *memoryRepo) GetAll(ctx context.Context) ([]model.Document, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	docs := make([]model.Document, 0, len(r.docs))
	for _, doc := range r.docs {
		docs = append(docs, doc)
	}
	return docs, nil
}

func (r *memoryRepo) DeleteMany(ctx context.Context, ids []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, id := range ids {
		delete(r.docs, id)
		delete(r.vectors, id)
	}
	return nil
}

func (r *memoryRepo) GetStats(ctx context.Context) (*model.Stats, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return &model.Stats{Count: len(r.docs), Name: r.name}, nil
}

func (r *memoryRepo) Reset(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.docs = make(map[string]model.Document)
	r.vectors = make(map[string][]float32)
	return nil
}

// cosineDistance is 1 - cosine similarity; lower means more similar.
func cosineDistance(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return math.MaxFloat64
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return math.MaxFloat64
	}

	return 1 - dot/(math.Sqrt(normA)*math.Sqrt(normB))
}
