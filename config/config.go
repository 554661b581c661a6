// Package config loads the startup agent catalog and runtime settings from a
// JSON or YAML file, chosen by file extension. The agent list is loaded once
// at process start; changing it requires a restart.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/rundex/agentrelay/catalog"
)

// Runtime holds the tunable settings of the orchestration runtime.
type Runtime struct {
	// Provider selects the decision model: openai, anthropic or keyword.
	Provider string `json:"provider" yaml:"provider"`

	// Model overrides the provider's default model id.
	Model string `json:"model,omitempty" yaml:"model,omitempty"`

	// ListenAddr is the HTTP server bind address.
	ListenAddr string `json:"listen_addr" yaml:"listen_addr"`

	// MaxDecisionRounds bounds the engine's decision loop.
	MaxDecisionRounds int `json:"max_decision_rounds" yaml:"max_decision_rounds"`

	// MaxFallbackAgents caps keyword-fallback selection. 0 means no cap.
	MaxFallbackAgents int `json:"max_fallback_agents,omitempty" yaml:"max_fallback_agents,omitempty"`

	// AgentTimeoutSeconds bounds each individual agent HTTP call.
	AgentTimeoutSeconds int `json:"agent_timeout_seconds" yaml:"agent_timeout_seconds"`

	// Verbose attaches execution traces to composed replies.
	Verbose bool `json:"verbose,omitempty" yaml:"verbose,omitempty"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `json:"log_level,omitempty" yaml:"log_level,omitempty"`

	// LogFormat is json or text.
	LogFormat string `json:"log_format,omitempty" yaml:"log_format,omitempty"`
}

// AgentTimeout returns the per-call agent timeout as a duration.
func (r Runtime) AgentTimeout() time.Duration {
	return time.Duration(r.AgentTimeoutSeconds) * time.Second
}

// Config is the full startup configuration.
type Config struct {
	Agents  []catalog.Descriptor `json:"agents" yaml:"agents"`
	Runtime Runtime              `json:"runtime" yaml:"runtime"`
}

// Default returns a configuration suitable for local development with no
// agents registered.
func Default() *Config {
	return &Config{
		Runtime: Runtime{
			Provider:            "openai",
			ListenAddr:          ":5003",
			MaxDecisionRounds:   5,
			AgentTimeoutSeconds: 30,
			LogLevel:            "info",
			LogFormat:           "json",
		},
	}
}

// Load reads a configuration file. Files ending in .yaml or .yml are parsed
// as YAML, everything else as JSON. Missing runtime settings fall back to the
// defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	default:
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse JSON config: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks structural invariants: unique agent ids, mandatory fields,
// a known provider and sane numeric settings.
func (c *Config) Validate() error {
	seen := make(map[string]bool, len(c.Agents))
	for i, a := range c.Agents {
		if a.ID == "" {
			return fmt.Errorf("agent %d: id must not be empty", i)
		}
		if a.Endpoint == "" {
			return fmt.Errorf("agent %s: endpoint must not be empty", a.ID)
		}
		if seen[a.ID] {
			return fmt.Errorf("agent %s: duplicate id", a.ID)
		}
		seen[a.ID] = true
	}

	switch c.Runtime.Provider {
	case "", "openai", "anthropic", "keyword":
	default:
		return fmt.Errorf("unknown provider %q", c.Runtime.Provider)
	}
	if c.Runtime.MaxDecisionRounds < 0 {
		return fmt.Errorf("max_decision_rounds must not be negative")
	}
	if c.Runtime.AgentTimeoutSeconds < 0 {
		return fmt.Errorf("agent_timeout_seconds must not be negative")
	}
	return nil
}

// BuildCatalog registers all configured agents into a fresh catalog.
func (c *Config) BuildCatalog() (*catalog.Catalog, error) {
	cat := catalog.New()
	for _, d := range c.Agents {
		if err := cat.Register(d); err != nil {
			return nil, err
		}
	}
	return cat, nil
}
