// Package catalog holds the set of registered external agents and derives
// the tool specifications the decision model selects from. The catalog is
// populated once at startup and is read-only afterwards; reload requires a
// process restart.
package catalog

import (
	"strings"
	"sync"

	"github.com/rundex/agentrelay/core"
	"github.com/rundex/agentrelay/model"
)

// Descriptor describes one registered external agent. Description is used
// verbatim in the tool specification shown to the decision model;
// Capabilities double as the keyword vocabulary for degraded-mode routing.
type Descriptor struct {
	ID           string   `json:"id" yaml:"id"`
	Name         string   `json:"name" yaml:"name"`
	Description  string   `json:"description" yaml:"description"`
	Capabilities []string `json:"capabilities" yaml:"capabilities"`
	Endpoint     string   `json:"endpoint" yaml:"endpoint"`
}

// ToolName returns the function-spec name for the agent. Agent ids contain
// hyphens, which LLM providers reject in function names, so the tool spec
// uses the underscore form.
func (d Descriptor) ToolName() string {
	return strings.ReplaceAll(d.ID, "-", "_")
}

// Catalog is an insertion-ordered registry of agent descriptors. Register is
// only called during startup; all other methods are safe for concurrent use.
type Catalog struct {
	mu     sync.RWMutex
	agents map[string]Descriptor
	order  []string
}

// New constructs an empty catalog.
func New() *Catalog {
	return &Catalog{agents: make(map[string]Descriptor)}
}

// Register adds a descriptor. Ids are unique within a catalog; registering
// an existing id fails with DuplicateAgentIDError.
func (c *Catalog) Register(d Descriptor) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.agents[d.ID]; exists {
		return &core.DuplicateAgentIDError{ID: d.ID}
	}
	c.agents[d.ID] = d
	c.order = append(c.order, d.ID)
	return nil
}

// Get returns the descriptor for an agent id, or UnknownAgentError.
func (c *Catalog) Get(id string) (Descriptor, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	d, ok := c.agents[id]
	if !ok {
		return Descriptor{}, &core.UnknownAgentError{ID: id}
	}
	return d, nil
}

// ResolveToolName maps a tool-spec name (underscore form) back to its
// descriptor. Raw agent ids are accepted too so the keyword router and
// providers that echo ids verbatim both resolve.
func (c *Catalog) ResolveToolName(name string) (Descriptor, error) {
	id := strings.ReplaceAll(name, "_", "-")
	if d, err := c.Get(id); err == nil {
		return d, nil
	}
	return c.Get(name)
}

// List returns all descriptors in insertion order. The returned slice is a
// copy; callers may not mutate catalog state through it.
func (c *Catalog) List() []Descriptor {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Descriptor, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.agents[id])
	}
	return out
}

// Len returns the number of registered agents.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.order)
}

// ToolSpecs builds one tool definition per registered agent, in insertion
// order. The parameter schema is fixed: every agent accepts a single query
// string.
func (c *Catalog) ToolSpecs() []model.ToolDefinition {
	list := c.List()
	specs := make([]model.ToolDefinition, 0, len(list))
	for _, d := range list {
		specs = append(specs, model.ToolDefinition{
			Name:        d.ToolName(),
			Description: d.Description,
			Parameters: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"query": map[string]interface{}{
						"type":        "string",
						"description": "The query to send to the agent",
					},
				},
				"required": []string{"query"},
			},
		})
	}
	return specs
}

// Routes derives the keyword routing table for degraded mode from each
// descriptor's capabilities.
func (c *Catalog) Routes() []model.Route {
	list := c.List()
	routes := make([]model.Route, 0, len(list))
	for _, d := range list {
		routes = append(routes, model.Route{ToolName: d.ToolName(), Keywords: d.Capabilities})
	}
	return routes
}
