package docs

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/m-mizutani/fennec/pkg/repository"
	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/genai"
)

type searchInput struct {
	Query    string `json:"query"`
	Keyword  string `json:"keyword"`
	NResults int    `json:"nResults"`
}

func (t *Tool) executeSearch(ctx context.Context, fc genai.FunctionCall) (*genai.FunctionResponse, error) {
	params, err := json.Marshal(fc.Args)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to marshal function arguments")
	}

	var input searchInput
	if err := json.Unmarshal(params, &input); err != nil {
		return nil, goerr.Wrap(err, "failed to parse search arguments")
	}
	if input.Query == "" {
		return nil, goerr.New("query is required")
	}
	if input.NResults <= 0 {
		input.NResults = defaultSearchResults
	}

	results, err := t.store.Search(ctx, repository.SearchInput{
		Query:       input.Query,
		Limit:       input.NResults,
		Keyword:     input.Keyword,
		MaxDistance: t.distanceCutoff,
	})
	if err != nil {
		return nil, goerr.Wrap(err, "document search failed")
	}

	rows := make([]map[string]any, 0, len(results))
	for _, r := range results {
		rows = append(rows, map[string]any{
			"googleLink": r.Metadata.Link(r.ID),
			"fileName":   r.Metadata.FileName(),
			"folderPath": r.Metadata.FolderPath,
			"path":       r.Path,
			"distance":   strconv.FormatFloat(r.Distance, 'f', 4, 64),
		})
	}

	directive := "No documents matched: tell the user nothing was found, in the user's language. Do not call tools again."
	if len(rows) > 0 {
		directive = "Documents found: present them to the user in the user's language. Do not call tools again."
	}

	return &genai.FunctionResponse{
		Name: fc.Name,
		Response: map[string]any{
			"success":   true,
			"count":     len(rows),
			"results":   rows,
			"directive": directive,
		},
	}, nil
}
