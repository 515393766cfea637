package docs_test

import (
	"context"
	"strings"
	"testing"

	"github.com/m-mizutani/fennec/pkg/model"
	"github.com/m-mizutani/fennec/pkg/repository"
	"github.com/m-mizutani/fennec/pkg/tool"
	"github.com/m-mizutani/fennec/pkg/tool/docs"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"
	"google.golang.org/genai"
)

// mockStore records search inputs and returns scripted results.
type mockStore struct {
	repository.Repository
	searches []repository.SearchInput
	results  map[string][]model.SearchResult // keyed by metadata name or keyword
	fallback []model.SearchResult
}

func (m *mockStore) Search(ctx context.Context, input repository.SearchInput) ([]model.SearchResult, error) {
	m.searches = append(m.searches, input)

	if name, ok := input.Metadata["name"]; ok {
		return m.results[name], nil
	}
	if input.Keyword != "" {
		return m.results[input.Keyword], nil
	}
	return m.fallback, nil
}

func (m *mockStore) GetStats(ctx context.Context) (*model.Stats, error) {
	return &model.Stats{Count: 7, Name: "documents"}, nil
}

// mockGemini answers summarize calls with a fixed summary.
type mockGemini struct {
	summary string
	prompts []string
}

func (m *mockGemini) GenerateContent(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	for _, c := range contents {
		for _, p := range c.Parts {
			if p.Text != "" {
				m.prompts = append(m.prompts, p.Text)
			}
		}
	}

	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{
				Role:  genai.RoleModel,
				Parts: []*genai.Part{{Text: m.summary}},
			},
		}},
	}, nil
}

func (m *mockGemini) Embedding(ctx context.Context, text string) ([]float32, error) {
	return nil, goerr.New("not scripted")
}

func newTool(t *testing.T, store *mockStore, gemini *mockGemini) *docs.Tool {
	t.Helper()

	tl := docs.New()
	enabled, err := tl.Init(context.Background(), &tool.Client{
		Store:    store,
		Gemini:   gemini,
		RootName: "Drive",
	})
	gt.NoError(t, err)
	gt.True(t, enabled)
	return tl
}

func TestSpec(t *testing.T) {
	spec := docs.New().Spec()
	gt.NotNil(t, spec)
	gt.Equal(t, len(spec.FunctionDeclarations), 3)

	byName := make(map[string]*genai.FunctionDeclaration)
	for _, fd := range spec.FunctionDeclarations {
		byName[fd.Name] = fd
	}

	search := byName["searchDocuments"]
	gt.NotNil(t, search)
	gt.Map(t, search.Parameters.Properties).HasKey("query")
	gt.Map(t, search.Parameters.Properties).HasKey("keyword")
	gt.Map(t, search.Parameters.Properties).HasKey("nResults")
	gt.Equal(t, search.Parameters.Required, []string{"query"})

	summarize := byName["summarizeDocument"]
	gt.NotNil(t, summarize)
	gt.Map(t, summarize.Parameters.Properties).HasKey("documentName")
	gt.Map(t, summarize.Parameters.Properties).HasKey("maxLength")
	gt.Equal(t, len(summarize.Parameters.Required), 2)

	gt.NotNil(t, byName["getDocumentStats"])
}

func TestInitRequiresStore(t *testing.T) {
	_, err := docs.New().Init(context.Background(), &tool.Client{Gemini: &mockGemini{}})
	gt.Error(t, err)
}

func TestSearchDocuments(t *testing.T) {
	ctx := context.Background()
	store := &mockStore{
		fallback: []model.SearchResult{{
			Document: model.Document{
				ID: "id1",
				Metadata: model.Metadata{
					Name:       "Nested doc 2",
					MimeType:   model.MimeGoogleDocument,
					FolderPath: "jelena subfolder",
					Extension:  ".docx",
				},
			},
			Distance: 0.25,
			Path:     "Drive/jelena subfolder/Nested doc 2.docx",
		}},
	}
	tl := newTool(t, store, &mockGemini{})

	resp, err := tl.Execute(ctx, genai.FunctionCall{
		Name: "searchDocuments",
		Args: map[string]any{"query": "Jelena"},
	})
	gt.NoError(t, err)
	gt.Equal(t, resp.Response["success"], true)
	gt.Equal(t, resp.Response["count"], 1)

	rows := resp.Response["results"].([]map[string]any)
	gt.Equal(t, len(rows), 1)
	gt.Equal(t, rows[0]["fileName"], "Nested doc 2.docx")
	gt.Equal(t, rows[0]["folderPath"], "jelena subfolder")
	gt.Equal(t, rows[0]["googleLink"], "https://docs.google.com/document/d/id1")
	gt.Equal(t, rows[0]["distance"], "0.2500")

	// Default limit applies when nResults is omitted.
	gt.Equal(t, len(store.searches), 1)
	gt.Equal(t, store.searches[0].Limit, 10)

	directive := resp.Response["directive"].(string)
	gt.S(t, directive).Contains("Do not call tools again")
}

func TestSearchDocumentsEmpty(t *testing.T) {
	ctx := context.Background()
	tl := newTool(t, &mockStore{}, &mockGemini{})

	resp, err := tl.Execute(ctx, genai.FunctionCall{
		Name: "searchDocuments",
		Args: map[string]any{"query": "nothing", "nResults": float64(3)},
	})
	gt.NoError(t, err)
	gt.Equal(t, resp.Response["count"], 0)
	gt.S(t, resp.Response["directive"].(string)).Contains("nothing was found")
}

func TestSearchDocumentsRequiresQuery(t *testing.T) {
	ctx := context.Background()
	tl := newTool(t, &mockStore{}, &mockGemini{})

	_, err := tl.Execute(ctx, genai.FunctionCall{
		Name: "searchDocuments",
		Args: map[string]any{},
	})
	gt.Error(t, err)
}

func TestSummarizeDocumentExactMatch(t *testing.T) {
	ctx := context.Background()
	store := &mockStore{
		results: map[string][]model.SearchResult{
			"OPENAI VS CLAUDE": {{
				Document: model.Document{
					ID:   "doc9",
					Text: strings.Repeat("comparison text ", 50),
					Metadata: model.Metadata{
						Name:       "OPENAI VS CLAUDE",
						MimeType:   model.MimeGoogleDocument,
						FolderPath: "ai",
						Extension:  ".docx",
					},
				},
			}},
		},
	}
	gemini := &mockGemini{summary: "A short comparison of two assistants."}
	tl := newTool(t, store, gemini)

	resp, err := tl.Execute(ctx, genai.FunctionCall{
		Name: "summarizeDocument",
		Args: map[string]any{
			"documentName": "OPENAI VS CLAUDE",
			"query":        "summary of OPENAI VS CLAUDE",
		},
	})
	gt.NoError(t, err)
	gt.Equal(t, resp.Response["success"], true)
	gt.Equal(t, resp.Response["documentName"], "OPENAI VS CLAUDE")
	gt.Equal(t, resp.Response["folderPath"], "ai")
	gt.Equal(t, resp.Response["googleLink"], "https://docs.google.com/document/d/doc9")
	gt.Equal(t, resp.Response["summary"], "A short comparison of two assistants.")
	gt.Equal(t, resp.Response["summaryWordCount"], 6)

	// The exact-name lookup must be tried first.
	gt.Equal(t, store.searches[0].Metadata["name"], "OPENAI VS CLAUDE")

	// The summary prompt carries the word limit and the document text.
	gt.Equal(t, len(gemini.prompts), 1)
	gt.S(t, gemini.prompts[0]).Contains("at most 200 words")
	gt.S(t, gemini.prompts[0]).Contains("comparison text")
}

func TestSummarizeDocumentKeywordFallback(t *testing.T) {
	ctx := context.Background()
	store := &mockStore{
		results: map[string][]model.SearchResult{
			"report": {{
				Document: model.Document{
					ID:       "doc2",
					Text:     "quarterly numbers",
					Metadata: model.Metadata{Name: "report", Extension: ".pdf", MimeType: model.MimePDF},
				},
			}},
		},
	}
	tl := newTool(t, store, &mockGemini{summary: "Numbers went up."})

	resp, err := tl.Execute(ctx, genai.FunctionCall{
		Name: "summarizeDocument",
		Args: map[string]any{
			"documentName": "report.pdf",
			"query":        "summarize the report",
		},
	})
	gt.NoError(t, err)
	gt.Equal(t, resp.Response["success"], true)

	// Exact lookup by full name misses, then the keyword search runs with
	// the extension stripped.
	gt.Equal(t, len(store.searches), 2)
	gt.Equal(t, store.searches[0].Metadata["name"], "report.pdf")
	gt.Equal(t, store.searches[1].Keyword, "report")
}

func TestSummarizeDocumentNotFound(t *testing.T) {
	ctx := context.Background()
	tl := newTool(t, &mockStore{}, &mockGemini{})

	resp, err := tl.Execute(ctx, genai.FunctionCall{
		Name: "summarizeDocument",
		Args: map[string]any{
			"documentName": "ghost.docx",
			"query":        "summarize",
		},
	})
	gt.NoError(t, err)
	gt.Equal(t, resp.Response["success"], false)
	gt.S(t, resp.Response["message"].(string)).Contains("not found")
}

func TestGetDocumentStats(t *testing.T) {
	ctx := context.Background()
	tl := newTool(t, &mockStore{}, &mockGemini{})

	resp, err := tl.Execute(ctx, genai.FunctionCall{Name: "getDocumentStats"})
	gt.NoError(t, err)
	gt.Equal(t, resp.Response["success"], true)
	gt.Equal(t, resp.Response["count"], 7)
}

func TestUnknownFunction(t *testing.T) {
	ctx := context.Background()
	tl := newTool(t, &mockStore{}, &mockGemini{})

	_, err := tl.Execute(ctx, genai.FunctionCall{Name: "nope"})
	gt.Error(t, err)
}
