// Package llmprovider defines the uniform contract the Turn Executor and
// Summary Generator drive every backend through, plus the registry that
// resolves a model identifier to a concrete implementation.
package llmprovider

import "context"

// Provider is implemented by every backend (local daemon, remote API,
// test fixture). A single Provider instance may serve several models.
type Provider interface {
	// Name identifies the provider for logging and error messages.
	Name() string

	// SupportsModel reports whether this provider can serve model.
	SupportsModel(model string) bool

	// ListModels returns the model identifiers currently reachable through
	// this provider. Local providers probe a daemon; remote providers
	// return their configured catalog.
	ListModels(ctx context.Context) ([]string, error)

	// Health reports whether the provider is currently reachable.
	Health(ctx context.Context) error

	// Complete performs a blocking, non-streaming generation.
	Complete(ctx context.Context, req GenerateRequest) (*GenerateResponse, error)

	// CompleteStream performs a streaming generation. The returned channel
	// emits StreamEvent values and is closed when generation completes or
	// fails; a terminal StreamEvent.Err is sent before close on failure.
	CompleteStream(ctx context.Context, req GenerateRequest) (<-chan StreamEvent, error)
}

// GenerateRequest is the provider-agnostic input to a single turn.
type GenerateRequest struct {
	Model        string
	SystemPrompt string
	Messages     []ChatMessage
	MaxTokens    int
	Temperature  float64
}

// ChatMessage is one entry of the conversation handed to a provider; Role is
// "user" or "assistant".
type ChatMessage struct {
	Role    string
	Content string
}

// GenerateResponse is the result of a blocking Complete call.
type GenerateResponse struct {
	Content      string
	Model        string
	InputTokens  int
	OutputTokens int
	StopReason   string
}

// StreamEvent is one increment of a streaming generation. Exactly one of
// Delta, Metadata or Err is set per event.
type StreamEvent struct {
	Delta    string
	Metadata *StreamMetadata
	Err      error
}

// StreamMetadata is emitted as the final event of a successful stream.
type StreamMetadata struct {
	Model        string
	InputTokens  int
	OutputTokens int
	StopReason   string
}
