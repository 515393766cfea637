// Package mcp connects external MCP tool servers to the agent's tool
// registry. Servers are declared in a YAML file; their tools are filtered
// against the per-server allow-list and the names of first-party tools
// before the model ever sees them.
package mcp

import (
	"context"
	"os"
	"os/exec"
	"time"

	"github.com/m-mizutani/fennec/pkg/tool"
	"github.com/m-mizutani/fennec/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// callTimeout bounds a single remote tool call.
const callTimeout = 30 * time.Second

// Client holds the sessions of all connected MCP servers.
type Client struct {
	servers map[string]*server
}

type server struct {
	cfg     ServerConfig
	session *mcp.ClientSession
	tools   []*mcp.Tool
}

// NewClient creates an empty Client.
func NewClient() *Client {
	return &Client{servers: make(map[string]*server)}
}

// Connect dials one server, lists its tools, and keeps the ones the config
// allows. Tools named in the allow-list but absent on the server are warned
// about; they usually indicate a typo in the config.
func (c *Client) Connect(ctx context.Context, cfg ServerConfig) error {
	if err := cfg.validate(); err != nil {
		return err
	}
	if _, exists := c.servers[cfg.Name]; exists {
		return goerr.New("server already connected", goerr.V("name", cfg.Name))
	}

	transport, err := cfg.transport()
	if err != nil {
		return err
	}

	mcpClient := mcp.NewClient(&mcp.Implementation{
		Name:    "fennec",
		Version: "0.1.0",
	}, nil)

	session, err := mcpClient.Connect(ctx, transport, nil)
	if err != nil {
		return goerr.Wrap(err, "failed to connect to MCP server", goerr.V("server", cfg.Name))
	}

	listed, err := session.ListTools(ctx, nil)
	if err != nil {
		_ = session.Close()
		return goerr.Wrap(err, "failed to list tools", goerr.V("server", cfg.Name))
	}

	available := make(map[string]bool, len(listed.Tools))
	tools := make([]*mcp.Tool, 0, len(listed.Tools))
	for _, t := range listed.Tools {
		available[t.Name] = true
		if cfg.allows(t.Name) {
			tools = append(tools, t)
		}
	}
	for _, want := range cfg.Tools {
		if !available[want] {
			logging.From(ctx).Warn("allow-listed tool not provided by MCP server",
				"server", cfg.Name, "tool", want)
		}
	}

	c.servers[cfg.Name] = &server{cfg: cfg, session: session, tools: tools}
	return nil
}

// transport builds the wire transport for this server config.
func (c ServerConfig) transport() (mcp.Transport, error) {
	switch c.Transport {
	case "stdio":
		cmd := exec.Command(c.Command[0], c.Command[1:]...)
		env := os.Environ()
		for k, v := range c.Env {
			env = append(env, k+"="+v)
		}
		cmd.Env = env
		return &mcp.CommandTransport{Command: cmd}, nil

	case "http":
		return &mcp.StreamableClientTransport{Endpoint: c.URL}, nil
	}

	return nil, goerr.New("unsupported transport", goerr.V("transport", c.Transport))
}

// Servers returns the names of all connected servers.
func (c *Client) Servers() []string {
	names := make([]string, 0, len(c.servers))
	for name := range c.servers {
		names = append(names, name)
	}
	return names
}

// Tools returns the allowed tools of one connected server.
func (c *Client) Tools(serverName string) ([]*mcp.Tool, error) {
	srv, ok := c.servers[serverName]
	if !ok {
		return nil, goerr.New("server not connected", goerr.V("name", serverName))
	}
	return srv.tools, nil
}

// CallTool invokes a tool on one server, bounded by callTimeout.
func (c *Client) CallTool(ctx context.Context, serverName, toolName string, arguments map[string]any) (*mcp.CallToolResult, error) {
	srv, ok := c.servers[serverName]
	if !ok {
		return nil, goerr.New("server not connected", goerr.V("name", serverName))
	}

	callCtx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	result, err := srv.session.CallTool(callCtx, &mcp.CallToolParams{
		Name:      toolName,
		Arguments: arguments,
	})
	if err != nil {
		return nil, goerr.Wrap(err, "MCP tool call failed",
			goerr.V("server", serverName), goerr.V("tool", toolName))
	}

	return result, nil
}

// Close shuts down every session. All sessions are attempted; the first
// error is returned.
func (c *Client) Close() error {
	var firstErr error
	for name, srv := range c.servers {
		if err := srv.session.Close(); err != nil && firstErr == nil {
			firstErr = goerr.Wrap(err, "failed to close MCP session", goerr.V("server", name))
		}
	}
	c.servers = make(map[string]*server)
	return firstErr
}

// LoadAndConnect loads the config file and connects every listed server.
// Missing path means MCP is not in use. Servers that fail to connect are
// skipped with a warning; the agent runs with whatever connected. The
// reserved names are first-party tool names a remote tool may not shadow.
func LoadAndConnect(ctx context.Context, configPath string, reserved ...string) (tool.Tool, error) {
	if configPath == "" {
		return nil, nil
	}

	cfg, err := LoadConfig(configPath)
	if err != nil {
		return nil, err
	}

	logger := logging.From(ctx)
	if len(cfg.Servers) == 0 {
		logger.Debug("MCP config lists no servers", "path", configPath)
		return nil, nil
	}

	client := NewClient()
	connected := 0
	for _, srv := range cfg.Servers {
		if err := client.Connect(ctx, srv); err != nil {
			logger.Warn("failed to connect to MCP server", "server", srv.Name, "error", err)
			continue
		}
		logger.Info("connected to MCP server", "server", srv.Name)
		connected++
	}

	if connected == 0 {
		logger.Warn("no MCP servers connected", "configured", len(cfg.Servers))
		return nil, nil
	}

	return NewProvider(client, reserved...), nil
}
