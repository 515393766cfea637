package mcp

import (
	"os"

	"github.com/m-mizutani/goerr/v2"
	"gopkg.in/yaml.v3"
)

// Config is the YAML file listing external MCP tool servers.
type Config struct {
	Servers []ServerConfig `yaml:"servers"`
}

// ServerConfig describes one MCP server connection.
type ServerConfig struct {
	Name      string            `yaml:"name"`
	Transport string            `yaml:"transport"` // "stdio" or "http"
	Command   []string          `yaml:"command"`
	URL       string            `yaml:"url"`
	Env       map[string]string `yaml:"env"`

	// Tools restricts which of the server's tools are exposed to the agent.
	// Empty exposes everything the server declares.
	Tools []string `yaml:"tools"`
}

// LoadConfig reads and validates an MCP configuration file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read MCP config file", goerr.V("path", path))
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, goerr.Wrap(err, "failed to parse MCP config file", goerr.V("path", path))
	}

	for _, srv := range cfg.Servers {
		if err := srv.validate(); err != nil {
			return nil, goerr.Wrap(err, "invalid MCP server config", goerr.V("path", path))
		}
	}

	return &cfg, nil
}

func (c ServerConfig) validate() error {
	if c.Name == "" {
		return goerr.New("server name is required")
	}
	switch c.Transport {
	case "stdio":
		if len(c.Command) == 0 {
			return goerr.New("command is required for stdio transport", goerr.V("server", c.Name))
		}
	case "http":
		if c.URL == "" {
			return goerr.New("url is required for http transport", goerr.V("server", c.Name))
		}
	default:
		return goerr.New("unsupported transport",
			goerr.V("server", c.Name),
			goerr.V("transport", c.Transport),
			goerr.V("supported", []string{"stdio", "http"}))
	}
	return nil
}

// allows reports whether the server exposes the named tool to the agent.
func (c ServerConfig) allows(toolName string) bool {
	if len(c.Tools) == 0 {
		return true
	}
	for _, name := range c.Tools {
		if name == toolName {
			return true
		}
	}
	return false
}
