// Package docs provides the document tools backed by the vector store:
// semantic search, per-document summarization, and corpus statistics.
package docs

import (
	"context"

	"github.com/m-mizutani/fennec/pkg/adapter"
	"github.com/m-mizutani/fennec/pkg/repository"
	"github.com/m-mizutani/fennec/pkg/tool"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
	"google.golang.org/genai"
)

const (
	defaultSearchResults    = 10
	defaultSummaryMaxLength = 200
)

// Tool exposes searchDocuments, summarizeDocument and getDocumentStats.
type Tool struct {
	store          repository.Repository
	gemini         adapter.Gemini
	rootName       string
	distanceCutoff *float64
}

// New creates the document tool.
func New() *Tool {
	return &Tool{}
}

// Flags returns CLI flags for this tool
func (t *Tool) Flags() []cli.Flag {
	return nil // configured through the shared client
}

// Init captures the shared resources. The tool is always enabled; a missing
// store is a construction error upstream.
func (t *Tool) Init(ctx context.Context, client *tool.Client) (bool, error) {
	if client.Store == nil {
		return false, goerr.New("vector store is required for document tools")
	}
	if client.Gemini == nil {
		return false, goerr.New("gemini is required for document tools")
	}

	t.store = client.Store
	t.gemini = client.Gemini
	t.rootName = client.RootName
	t.distanceCutoff = client.DistanceCutoff
	return true, nil
}

// Prompt returns additional information to be added to the system prompt
func (t *Tool) Prompt(ctx context.Context) string {
	return `You can search the document corpus with searchDocuments, summarize a single document with summarizeDocument, and report corpus size with getDocumentStats. Prefer searchDocuments for "where is X mentioned" questions and summarizeDocument when the user names a specific document.`
}

// Spec returns the tool specification for Gemini function calling
func (t *Tool) Spec() *genai.Tool {
	return &genai.Tool{
		FunctionDeclarations: []*genai.FunctionDeclaration{
			{
				Name:        "searchDocuments",
				Description: "Semantic search over the synchronized document corpus. Returns the most relevant documents with their folder, path and link.",
				Parameters: &genai.Schema{
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"query": {
							Type:        genai.TypeString,
							Description: "Natural language search query",
						},
						"keyword": {
							Type:        genai.TypeString,
							Description: "Optional keyword that must literally appear in the document text (case-insensitive). Use for names and exact terms.",
						},
						"nResults": {
							Type:        genai.TypeInteger,
							Description: "Maximum number of results (default: 10)",
						},
					},
					Required: []string{"query"},
				},
			},
			{
				Name:        "summarizeDocument",
				Description: "Summarize one document from the corpus, located by its name.",
				Parameters: &genai.Schema{
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"documentName": {
							Type:        genai.TypeString,
							Description: "Name of the document to summarize, as stored in the corpus",
						},
						"query": {
							Type:        genai.TypeString,
							Description: "What the user wants from the summary",
						},
						"maxLength": {
							Type:        genai.TypeInteger,
							Description: "Maximum summary length in words (default: 200)",
						},
					},
					Required: []string{"documentName", "query"},
				},
			},
			{
				Name:        "getDocumentStats",
				Description: "Report how many documents are currently stored in the corpus.",
				Parameters: &genai.Schema{
					Type:       genai.TypeObject,
					Properties: map[string]*genai.Schema{},
				},
			},
		},
	}
}

// Execute runs the tool with the given function call
func (t *Tool) Execute(ctx context.Context, fc genai.FunctionCall) (*genai.FunctionResponse, error) {
	switch fc.Name {
	case "searchDocuments":
		return t.executeSearch(ctx, fc)
	case "summarizeDocument":
		return t.executeSummarize(ctx, fc)
	case "getDocumentStats":
		return t.executeStats(ctx, fc)
	}
	return nil, goerr.New("unknown function", goerr.V("name", fc.Name))
}

func (t *Tool) executeStats(ctx context.Context, fc genai.FunctionCall) (*genai.FunctionResponse, error) {
	stats, err := t.store.GetStats(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get document stats")
	}

	return &genai.FunctionResponse{
		Name: fc.Name,
		Response: map[string]any{
			"success":   true,
			"count":     stats.Count,
			"name":      stats.Name,
			"directive": "Report the document count to the user in the user's language. Do not call tools again.",
		},
	}, nil
}
