package repository

import (
	"context"
	"sort"
	"strings"

	"github.com/m-mizutani/fennec/pkg/model"
	"github.com/m-mizutani/goerr/v2"
)

// TagUnavailable marks retryable backend failures.
var TagUnavailable = goerr.NewTag("unavailable")

// ErrUnavailable marks backend failures that the caller may retry. The sync
// pipeline relies on at-least-once semantics and re-drives failed documents
// on its next run.
var ErrUnavailable = goerr.New("vector store unavailable", goerr.T(TagUnavailable))

// SearchInput describes one nearest-neighbor query against the store.
type SearchInput struct {
	// Query is the natural language query to embed.
	Query string

	// Limit is the maximum number of rows to return.
	Limit int

	// Keyword, when set, restricts results to documents whose text contains
	// it case-insensitively, and promotes rows by match count.
	Keyword string

	// MaxDistance, when set, drops rows with a larger distance.
	MaxDistance *float64

	// Metadata, when set, keeps only rows whose metadata matches every given
	// field exactly.
	Metadata map[string]string
}

// Repository is the vector store facade the agent and the sync pipeline
// depend on. AddMany on an existing id replaces its prior content; that is
// the only idempotence guarantee.
type Repository interface {
	// AddMany embeds and upserts the given documents.
	AddMany(ctx context.Context, docs []model.Document) error

	// Search embeds the query and returns the nearest rows after keyword,
	// metadata and distance refinement.
	Search(ctx context.Context, input SearchInput) ([]model.SearchResult, error)

	// GetAll returns every stored document. Intended for sync
	// reconciliation, not user queries.
	GetAll(ctx context.Context) ([]model.Document, error)

	// DeleteMany removes the documents with the given ids.
	DeleteMany(ctx context.Context, ids []string) error

	// GetStats returns the collection size and name.
	GetStats(ctx context.Context) (*model.Stats, error)

	// Reset empties the collection.
	Reset(ctx context.Context) error
}

// keywordFetchFactor widens the backend fetch when a keyword refinement will
// discard rows afterwards.
const keywordFetchFactor = 3

// backendLimit returns how many rows to request from the backend for the
// given input.
func backendLimit(input SearchInput) int {
	if input.Keyword != "" {
		return input.Limit * keywordFetchFactor
	}
	return input.Limit
}

// refine applies the metadata, keyword and distance filters to backend rows,
// sorts them, and truncates to the requested limit. Rows arrive ordered by
// ascending distance.
func refine(rows []model.SearchResult, input SearchInput, rootName string) []model.SearchResult {
	out := make([]model.SearchResult, 0, len(rows))

	for _, row := range rows {
		if !matchMetadata(row.Metadata, input.Metadata) {
			continue
		}
		if input.Keyword != "" {
			count := countKeyword(row.Text, input.Keyword)
			if count == 0 {
				continue
			}
			row.KeywordCount = count
		}
		if input.MaxDistance != nil && row.Distance > *input.MaxDistance {
			continue
		}
		row.Path = model.DocumentPath(rootName, row.Metadata)
		row.Metadata.GoogleLink = row.Metadata.Link(row.ID)
		out = append(out, row)
	}

	if input.Keyword != "" {
		sort.SliceStable(out, func(i, j int) bool {
			if out[i].KeywordCount != out[j].KeywordCount {
				return out[i].KeywordCount > out[j].KeywordCount
			}
			return out[i].Distance < out[j].Distance
		})
	}

	if len(out) > input.Limit {
		out = out[:input.Limit]
	}
	return out
}

func countKeyword(text, keyword string) int {
	if keyword == "" {
		return 0
	}
	return strings.Count(strings.ToLower(text), strings.ToLower(keyword))
}

func matchMetadata(meta model.Metadata, filter map[string]string) bool {
	for field, want := range filter {
		var got string
		switch field {
		case "name":
			got = meta.Name
		case "mimeType":
			got = meta.MimeType
		case "folderPath":
			got = meta.FolderPath
		case "modifiedTime":
			got = meta.ModifiedTime
		case "extension":
			got = meta.Extension
		case "googleLink":
			got = meta.GoogleLink
		default:
			return false
		}
		if got != want {
			return false
		}
	}
	return true
}
