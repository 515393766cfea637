// Package agent drives a bounded tool-calling conversation with the model
// until it produces a final answer.
package agent

import (
	"github.com/m-mizutani/fennec/pkg/adapter"
	"github.com/m-mizutani/fennec/pkg/tool"
	"github.com/m-mizutani/goerr/v2"
)

// Error tags let callers map failures to their error kind without matching
// sentinels one by one.
var (
	TagBadRequest    = goerr.NewTag("bad_request")
	TagModelFailure  = goerr.NewTag("model_failure")
	TagMaxIterations = goerr.NewTag("max_iterations")
)

var (
	// ErrBadRequest marks invalid task input (empty prompt, out-of-range
	// iteration limit). Safe to show to the user verbatim.
	ErrBadRequest = goerr.New("bad request", goerr.T(TagBadRequest))

	// ErrModelFailure marks a model response that violates the tool-use
	// contract (neither text nor tool calls). Fatal to the request.
	ErrModelFailure = goerr.New("model failure", goerr.T(TagModelFailure))

	// ErrMaxIterations marks loop exhaustion before a final answer.
	ErrMaxIterations = goerr.New("task too complex; maximum tool usage reached", goerr.T(TagMaxIterations))
)

const (
	// DefaultMaxIterations bounds the loop when the caller does not choose.
	DefaultMaxIterations = 5

	// MaxIterationsLimit is the hard ceiling a caller may request.
	MaxIterationsLimit = 10
)

const systemInstruction = `You are a document assistant with access to tools over a synchronized document corpus.
Use the tools to answer the user's task; do not invent documents or links.
Always respond in the same language the user wrote in.`

// Orchestrator executes agent tasks. One Orchestrator may serve many
// concurrent tasks; all per-task state lives in the execution.
type Orchestrator struct {
	gemini   adapter.Gemini
	registry *tool.Registry
	archive  adapter.Storage
}

type Option func(*Orchestrator)

// WithArchive enables best-effort archiving of finished task records.
func WithArchive(storage adapter.Storage) Option {
	return func(o *Orchestrator) {
		o.archive = storage
	}
}

// New creates an Orchestrator.
func New(gemini adapter.Gemini, registry *tool.Registry, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		gemini:   gemini,
		registry: registry,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}
