package mcp

import (
	"context"
	"encoding/json"
	"regexp"
	"strings"

	"github.com/m-mizutani/fennec/pkg/tool"
	"github.com/m-mizutani/fennec/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/urfave/cli/v3"
	"google.golang.org/genai"
)

// maxResultLen caps the text of a remote tool result before it enters the
// conversation; runaway outputs would crowd out the rest of the context.
const maxResultLen = 16 * 1024

// functionNamePattern is what the Gemini API accepts as a function name.
var functionNamePattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_.-]{0,63}$`)

// Provider exposes the tools of all connected MCP servers as one agent tool.
type Provider struct {
	client   *Client
	reserved map[string]bool
	remotes  map[string]*remoteTool
	decls    []*genai.FunctionDeclaration
}

// remoteTool binds a declared function name to the server that owns it.
type remoteTool struct {
	server   string
	toolName string
}

// NewProvider creates a Provider. The reserved names are function names the
// remote tools may not take over (the first-party tools).
func NewProvider(client *Client, reserved ...string) *Provider {
	p := &Provider{
		client:   client,
		reserved: make(map[string]bool, len(reserved)),
		remotes:  make(map[string]*remoteTool),
	}
	for _, name := range reserved {
		p.reserved[name] = true
	}
	return p
}

// Flags returns CLI flags for this tool
func (p *Provider) Flags() []cli.Flag {
	return nil // the config file is the whole configuration
}

// Init converts every remote tool into a function declaration, dropping the
// ones with invalid names, reserved names, or names already taken by another
// server. On a collision the server visited first keeps the name; servers are
// visited in the map order of Client.Servers, so which one that is is not
// defined.
func (p *Provider) Init(ctx context.Context, client *tool.Client) (bool, error) {
	if p.client == nil {
		return false, nil
	}

	logger := logging.From(ctx)

	for _, serverName := range p.client.Servers() {
		tools, err := p.client.Tools(serverName)
		if err != nil {
			return false, goerr.Wrap(err, "failed to read tools from server",
				goerr.V("server", serverName))
		}

		for _, t := range tools {
			switch {
			case !functionNamePattern.MatchString(t.Name):
				logger.Warn("MCP tool name is not a valid function name, skipping",
					"server", serverName, "tool", t.Name)
				continue
			case p.reserved[t.Name]:
				logger.Warn("MCP tool shadows a built-in tool, skipping",
					"server", serverName, "tool", t.Name)
				continue
			case p.remotes[t.Name] != nil:
				logger.Warn("MCP tool name already taken by another server, skipping",
					"server", serverName, "tool", t.Name,
					"takenBy", p.remotes[t.Name].server)
				continue
			}

			decl, err := declarationFor(t)
			if err != nil {
				logger.Warn("failed to convert MCP tool schema, skipping",
					"server", serverName, "tool", t.Name, "error", err)
				continue
			}

			p.remotes[t.Name] = &remoteTool{server: serverName, toolName: t.Name}
			p.decls = append(p.decls, decl)
		}
	}

	return len(p.decls) > 0, nil
}

// declarationFor converts an MCP tool declaration into a Gemini function
// declaration. The input schema travels MCP as loose JSON, so it is
// round-tripped through the jsonschema type before conversion.
func declarationFor(t *mcp.Tool) (*genai.FunctionDeclaration, error) {
	decl := &genai.FunctionDeclaration{
		Name:        t.Name,
		Description: t.Description,
	}

	if t.InputSchema == nil {
		return decl, nil
	}

	raw, err := json.Marshal(t.InputSchema)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to marshal input schema")
	}

	params, err := parseSchema(raw)
	if err != nil {
		return nil, err
	}
	decl.Parameters = params

	return decl, nil
}

// Spec returns the tool specification for Gemini function calling
func (p *Provider) Spec() *genai.Tool {
	if len(p.decls) == 0 {
		return nil
	}
	return &genai.Tool{FunctionDeclarations: p.decls}
}

// Prompt returns additional information to be added to the system prompt
func (p *Provider) Prompt(ctx context.Context) string {
	if len(p.decls) == 0 {
		return ""
	}

	names := make([]string, 0, len(p.decls))
	for _, decl := range p.decls {
		names = append(names, decl.Name)
	}
	return "Additional tools from external servers are available: " +
		strings.Join(names, ", ") + ". Use them only when the built-in document tools do not cover the task."
}

// Execute runs the remote tool and renders its content blocks as text.
func (p *Provider) Execute(ctx context.Context, fc genai.FunctionCall) (*genai.FunctionResponse, error) {
	remote, ok := p.remotes[fc.Name]
	if !ok {
		return nil, goerr.New("unknown MCP tool", goerr.V("name", fc.Name))
	}

	result, err := p.client.CallTool(ctx, remote.server, remote.toolName, fc.Args)
	if err != nil {
		return nil, err
	}

	text := renderContent(result)
	if result.IsError {
		return &genai.FunctionResponse{
			Name:     fc.Name,
			Response: map[string]any{"error": text},
		}, nil
	}

	return &genai.FunctionResponse{
		Name:     fc.Name,
		Response: map[string]any{"result": text},
	}, nil
}

// renderContent flattens a tool result into text, keeping only text blocks
// and capping the total length.
func renderContent(result *mcp.CallToolResult) string {
	var sb strings.Builder
	for _, content := range result.Content {
		text, ok := content.(*mcp.TextContent)
		if !ok {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(text.Text)
	}

	out := sb.String()
	if len(out) > maxResultLen {
		out = out[:maxResultLen] + "\n[result truncated]"
	}
	return out
}
