package tool

import (
	"context"
	"strings"

	"github.com/m-mizutani/fennec/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
	"google.golang.org/genai"
)

var errToolNotFound = goerr.New("tool not found")

// Registry manages available tools for the LLM
type Registry struct {
	tools    map[string]Tool
	allTools []Tool
	enabled  []Tool
}

// New creates a new tool registry with the given tools. Init must be called
// before the registry serves specs or executions.
func New(tools ...Tool) *Registry {
	return &Registry{
		tools:    make(map[string]Tool),
		allTools: tools,
	}
}

// Init initializes every tool and indexes the function names of the enabled
// ones. Tools without an Initializer are always enabled.
func (r *Registry) Init(ctx context.Context, client *Client) error {
	for _, t := range r.allTools {
		if init, ok := t.(Initializer); ok {
			enabled, err := init.Init(ctx, client)
			if err != nil {
				return goerr.Wrap(err, "failed to initialize tool")
			}
			if !enabled {
				continue
			}
		}

		spec := t.Spec()
		if spec == nil || len(spec.FunctionDeclarations) == 0 {
			continue
		}

		r.enabled = append(r.enabled, t)
		for _, fd := range spec.FunctionDeclarations {
			if _, exists := r.tools[fd.Name]; exists {
				logging.From(ctx).Warn("duplicate tool name, keeping first", "name", fd.Name)
				continue
			}
			r.tools[fd.Name] = t
		}
	}

	return nil
}

// Specs returns all tool specifications for Gemini function calling
func (r *Registry) Specs() []*genai.Tool {
	specs := make([]*genai.Tool, 0, len(r.enabled))
	for _, t := range r.enabled {
		specs = append(specs, t.Spec())
	}
	return specs
}

// Has reports whether a function name is served by a registered tool.
func (r *Registry) Has(name string) bool {
	_, ok := r.tools[name]
	return ok
}

// Prompts returns all tool prompts concatenated
func (r *Registry) Prompts(ctx context.Context) string {
	var prompts []string
	for _, t := range r.enabled {
		if prompt := t.Prompt(ctx); prompt != "" {
			prompts = append(prompts, prompt)
		}
	}
	return strings.Join(prompts, "\n\n")
}

// Flags returns all tool flags combined
func (r *Registry) Flags() []cli.Flag {
	var flags []cli.Flag
	for _, t := range r.allTools {
		if toolFlags := t.Flags(); toolFlags != nil {
			flags = append(flags, toolFlags...)
		}
	}
	return flags
}

// Execute runs the tool with the given function call
func (r *Registry) Execute(ctx context.Context, fc genai.FunctionCall) (*genai.FunctionResponse, error) {
	tool, ok := r.tools[fc.Name]
	if !ok {
		return nil, goerr.Wrap(errToolNotFound, "tool not found", goerr.V("name", fc.Name))
	}

	return tool.Execute(ctx, fc)
}
