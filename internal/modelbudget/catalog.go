// Package modelbudget holds the embedded per-model token-budget catalog the
// Context Builder consults when sizing a turn's prompt.
package modelbudget

import (
	"embed"
	"fmt"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed config/budgets.yaml
var configFiles embed.FS

// Budget is the pair of limits the Context Builder applies for a model.
type Budget struct {
	MaxContextTokens int `yaml:"max_context_tokens"`
	MaxMessageTokens int `yaml:"max_message_tokens"`
}

type catalogFile struct {
	Models map[string]Budget `yaml:"models"`
}

// Catalog resolves a model identifier to its Budget, falling back to the
// "default" entry for anything not explicitly listed.
type Catalog struct {
	mu     sync.RWMutex
	models map[string]Budget
}

// Load parses the embedded budgets.yaml.
func Load() (*Catalog, error) {
	data, err := configFiles.ReadFile("config/budgets.yaml")
	if err != nil {
		return nil, fmt.Errorf("modelbudget: read embedded catalog: %w", err)
	}
	var cf catalogFile
	if err := yaml.Unmarshal(data, &cf); err != nil {
		return nil, fmt.Errorf("modelbudget: parse embedded catalog: %w", err)
	}
	if _, ok := cf.Models["default"]; !ok {
		return nil, fmt.Errorf("modelbudget: embedded catalog missing required 'default' entry")
	}
	return &Catalog{models: cf.Models}, nil
}

// For returns the budget for model, stripping any local/remote routing
// prefix first since the catalog is keyed by bare model id.
func (c *Catalog) For(model string) Budget {
	bare := model
	if idx := strings.IndexByte(model, '/'); idx >= 0 {
		bare = model[idx+1:]
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	if b, ok := c.models[bare]; ok {
		return b
	}
	return c.models["default"]
}

// Set registers or overrides a model's budget at runtime. No HTTP endpoint
// calls it; budgets otherwise come only from the embedded catalog.
func (c *Catalog) Set(model string, b Budget) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.models[model] = b
}
