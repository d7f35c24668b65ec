package llmprovider

import (
	"fmt"
	"strings"
)

// Route describes which backend kind a model identifier resolves to.
type Route struct {
	Kind  string // "local" or "remote"
	Model string // model identifier with any routing prefix stripped
}

// ParseModel applies the spec §4.1 "/" convention: a model string containing
// "/" names its backend explicitly ("local/llama3", "remote/claude-opus-4-6");
// one without a "/" is inferred from its prefix.
func ParseModel(modelStr string) (Route, error) {
	if modelStr == "" {
		return Route{}, fmt.Errorf("model string must not be empty")
	}

	if strings.Contains(modelStr, "/") {
		parts := strings.SplitN(modelStr, "/", 2)
		kind, model := parts[0], parts[1]
		if kind == "" || model == "" {
			return Route{}, fmt.Errorf("invalid model format %q, expected backend/model", modelStr)
		}
		if kind != "local" && kind != "remote" {
			return Route{}, fmt.Errorf("unknown backend %q in model %q, expected local or remote", kind, modelStr)
		}
		return Route{Kind: kind, Model: model}, nil
	}

	return Route{Kind: inferKind(modelStr), Model: modelStr}, nil
}

// inferKind guesses a backend from common hosted-model name prefixes,
// defaulting to local for everything else (the co-located daemon's own
// catalog, e.g. llama3, mistral, qwen).
func inferKind(model string) string {
	lower := strings.ToLower(model)
	switch {
	case strings.HasPrefix(lower, "claude-"),
		strings.HasPrefix(lower, "gpt-"),
		strings.HasPrefix(lower, "o1-"),
		strings.HasPrefix(lower, "gemini-"):
		return "remote"
	default:
		return "local"
	}
}
