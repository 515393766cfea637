package docs

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/m-mizutani/fennec/pkg/model"
	"github.com/m-mizutani/fennec/pkg/repository"
	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/genai"
)

type summarizeInput struct {
	DocumentName string `json:"documentName"`
	Query        string `json:"query"`
	MaxLength    int    `json:"maxLength"`
}

// knownExtensions are stripped from a document name before the fallback
// keyword search, so "report.pdf" still matches a document named "report".
var knownExtensions = []string{".pdf", ".docx", ".doc", ".xlsx", ".xls", ".txt", ".md", ".csv"}

func (t *Tool) executeSummarize(ctx context.Context, fc genai.FunctionCall) (*genai.FunctionResponse, error) {
	params, err := json.Marshal(fc.Args)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to marshal function arguments")
	}

	var input summarizeInput
	if err := json.Unmarshal(params, &input); err != nil {
		return nil, goerr.Wrap(err, "failed to parse summarize arguments")
	}
	if input.DocumentName == "" {
		return nil, goerr.New("documentName is required")
	}
	if input.Query == "" {
		return nil, goerr.New("query is required")
	}
	if input.MaxLength <= 0 {
		input.MaxLength = defaultSummaryMaxLength
	}

	match, err := t.findDocument(ctx, input)
	if err != nil {
		return nil, err
	}
	if match == nil {
		return &genai.FunctionResponse{
			Name: fc.Name,
			Response: map[string]any{
				"success":   false,
				"message":   fmt.Sprintf("document %q was not found in the database", input.DocumentName),
				"directive": "The document was not found: tell the user courteously, in the user's language. Do not call tools again.",
			},
		}, nil
	}

	summary, err := t.summarize(ctx, match.Text, input.MaxLength)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to summarize document",
			goerr.V("documentName", input.DocumentName))
	}

	return &genai.FunctionResponse{
		Name: fc.Name,
		Response: map[string]any{
			"success":          true,
			"documentName":     match.Metadata.Name,
			"folderPath":       match.Metadata.FolderPath,
			"googleLink":       match.Metadata.Link(match.ID),
			"extension":        match.Metadata.Extension,
			"summary":          summary,
			"originalLength":   len(match.Text),
			"summaryWordCount": len(strings.Fields(summary)),
			"directive":        "Summary created: present it to the user in the user's language. Do not call tools again.",
		},
	}, nil
}

// findDocument locates the named document: first by exact metadata match on
// the name, then by keyword search with common extensions stripped.
func (t *Tool) findDocument(ctx context.Context, input summarizeInput) (*model.SearchResult, error) {
	exact, err := t.store.Search(ctx, repository.SearchInput{
		Query:    input.Query,
		Limit:    1,
		Metadata: map[string]string{"name": input.DocumentName},
	})
	if err != nil {
		return nil, goerr.Wrap(err, "exact document lookup failed")
	}
	if len(exact) > 0 {
		return &exact[0], nil
	}

	keyword := stripExtension(input.DocumentName)
	fallback, err := t.store.Search(ctx, repository.SearchInput{
		Query:   input.Query,
		Limit:   1,
		Keyword: keyword,
	})
	if err != nil {
		return nil, goerr.Wrap(err, "keyword document lookup failed")
	}
	if len(fallback) > 0 {
		return &fallback[0], nil
	}

	return nil, nil
}

// summarize issues a separate plain generation call for the document text.
func (t *Tool) summarize(ctx context.Context, text string, maxWords int) (string, error) {
	prompt := fmt.Sprintf(
		"Create a summary of the following document in at most %d words. Keep the summary factual and in the document's language.\n\nDocument:\n%s",
		maxWords, text)

	resp, err := t.gemini.GenerateContent(ctx, []*genai.Content{
		genai.NewContentFromText(prompt, genai.RoleUser),
	}, nil)
	if err != nil {
		return "", goerr.Wrap(err, "summary generation failed")
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", goerr.New("summary response is empty")
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part.Text != "" {
			sb.WriteString(part.Text)
		}
	}
	if sb.Len() == 0 {
		return "", goerr.New("summary response contains no text")
	}

	return sb.String(), nil
}

func stripExtension(name string) string {
	lower := strings.ToLower(name)
	for _, ext := range knownExtensions {
		if strings.HasSuffix(lower, ext) {
			return name[:len(name)-len(ext)]
		}
	}
	return name
}
