// Package remote implements the Remote provider: hosted APIs reached through
// github.com/mozilla-ai/any-llm-go's Anthropic and OpenAI backends, selected
// by model name prefix the same way the co-located daemon is addressed by
// backend kind.
package remote

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/anthropics/anthropic-sdk-go"
	anthropicoption "github.com/anthropics/anthropic-sdk-go/option"
	anyllmlib "github.com/mozilla-ai/any-llm-go"
	anyllmanthropic "github.com/mozilla-ai/any-llm-go/providers/anthropic"
	anyllmopenai "github.com/mozilla-ai/any-llm-go/providers/openai"

	"symposium/internal/domain"
	"symposium/internal/llmprovider"
)

// Provider multiplexes hosted backends by model prefix. Only backends with a
// non-empty API key are registered; SupportsModel returns false for the
// rest so the registry's resolution error names the actual gap.
type Provider struct {
	anthropicKey string
	openaiKey    string

	mu        sync.Mutex
	anthropic anyllmlib.Provider
	openai    anyllmlib.Provider

	// healthClient pings Anthropic directly for Health(), independent of
	// any-llm-go's lazy backend construction, so a misconfigured key is
	// reported before the first real turn is attempted.
	healthClient *anthropic.Client
}

// New constructs a Remote provider. Either key may be empty; that backend
// is simply never selected.
func New(anthropicKey, openaiKey string) *Provider {
	p := &Provider{anthropicKey: anthropicKey, openaiKey: openaiKey}
	if anthropicKey != "" {
		c := anthropic.NewClient(anthropicoption.WithAPIKey(anthropicKey))
		p.healthClient = &c
	}
	return p
}

func (p *Provider) Name() string { return "remote" }

func (p *Provider) SupportsModel(model string) bool {
	lower := strings.ToLower(model)
	switch {
	case strings.HasPrefix(lower, "claude-"):
		return p.anthropicKey != ""
	case strings.HasPrefix(lower, "gpt-"), strings.HasPrefix(lower, "o1-"), strings.HasPrefix(lower, "o3-"):
		return p.openaiKey != ""
	default:
		return false
	}
}

func (p *Provider) backendFor(model string) (anyllmlib.Provider, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	lower := strings.ToLower(model)
	switch {
	case strings.HasPrefix(lower, "claude-"):
		if p.anthropicKey == "" {
			return nil, fmt.Errorf("remote: no Anthropic API key configured")
		}
		if p.anthropic == nil {
			backend, err := anyllmanthropic.New(anyllmlib.WithAPIKey(p.anthropicKey))
			if err != nil {
				return nil, fmt.Errorf("remote: init anthropic backend: %w", err)
			}
			p.anthropic = backend
		}
		return p.anthropic, nil
	case strings.HasPrefix(lower, "gpt-"), strings.HasPrefix(lower, "o1-"), strings.HasPrefix(lower, "o3-"):
		if p.openaiKey == "" {
			return nil, fmt.Errorf("remote: no OpenAI API key configured")
		}
		if p.openai == nil {
			backend, err := anyllmopenai.New(anyllmlib.WithAPIKey(p.openaiKey))
			if err != nil {
				return nil, fmt.Errorf("remote: init openai backend: %w", err)
			}
			p.openai = backend
		}
		return p.openai, nil
	default:
		return nil, fmt.Errorf("remote: no backend for model %q", model)
	}
}

func (p *Provider) ListModels(ctx context.Context) ([]string, error) {
	var models []string
	if p.anthropicKey != "" {
		models = append(models,
			"claude-opus-4-6", "claude-sonnet-4-8", "claude-haiku-4-5")
	}
	if p.openaiKey != "" {
		models = append(models, "gpt-5", "gpt-5-mini")
	}
	return models, nil
}

// Health pings Anthropic's API with a minimal request since any-llm-go has
// no dedicated health endpoint; OpenAI's key presence is trusted as-is.
func (p *Provider) Health(ctx context.Context) error {
	if p.healthClient == nil {
		if p.openaiKey == "" {
			return fmt.Errorf("remote: no API keys configured")
		}
		return nil
	}
	_, err := p.healthClient.Models.Get(ctx, "claude-haiku-4-5")
	if err != nil {
		return fmt.Errorf("%w: remote: anthropic health check: %v", domain.ErrProvider, err)
	}
	return nil
}

func (p *Provider) Complete(ctx context.Context, req llmprovider.GenerateRequest) (*llmprovider.GenerateResponse, error) {
	backend, err := p.backendFor(req.Model)
	if err != nil {
		return nil, err
	}
	params := buildParams(req)

	resp, err := backend.Completion(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("%w: remote: %v", domain.ErrProvider, err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: remote: empty choices", domain.ErrProvider)
	}
	choice := resp.Choices[0]
	out := &llmprovider.GenerateResponse{
		Content:    choice.Message.ContentString(),
		Model:      req.Model,
		StopReason: choice.FinishReason,
	}
	if resp.Usage != nil {
		out.InputTokens = resp.Usage.PromptTokens
		out.OutputTokens = resp.Usage.CompletionTokens
	}
	return out, nil
}

func (p *Provider) CompleteStream(ctx context.Context, req llmprovider.GenerateRequest) (<-chan llmprovider.StreamEvent, error) {
	backend, err := p.backendFor(req.Model)
	if err != nil {
		return nil, err
	}
	params := buildParams(req)

	chunks, errs := backend.CompletionStream(ctx, params)
	out := make(chan llmprovider.StreamEvent, 16)

	go func() {
		defer close(out)
		var inputTokens, outputTokens int
		var stopReason string

		for chunk := range chunks {
			if len(chunk.Choices) == 0 {
				continue
			}
			choice := chunk.Choices[0]
			if choice.FinishReason != "" {
				stopReason = choice.FinishReason
			}
			if chunk.Usage != nil {
				inputTokens = chunk.Usage.PromptTokens
				outputTokens = chunk.Usage.CompletionTokens
			}
			if choice.Delta.Content != "" {
				select {
				case out <- llmprovider.StreamEvent{Delta: choice.Delta.Content}:
				case <-ctx.Done():
					return
				}
			}
		}

		if err := <-errs; err != nil {
			select {
			case out <- llmprovider.StreamEvent{Err: fmt.Errorf("%w: remote: %v", domain.ErrProvider, err)}:
			case <-ctx.Done():
			}
			return
		}

		select {
		case out <- llmprovider.StreamEvent{Metadata: &llmprovider.StreamMetadata{
			Model:        req.Model,
			InputTokens:  inputTokens,
			OutputTokens: outputTokens,
			StopReason:   stopReason,
		}}:
		case <-ctx.Done():
		}
	}()

	return out, nil
}

func buildParams(req llmprovider.GenerateRequest) anyllmlib.CompletionParams {
	var messages []anyllmlib.Message
	if req.SystemPrompt != "" {
		messages = append(messages, anyllmlib.Message{Role: anyllmlib.RoleSystem, Content: req.SystemPrompt})
	}
	for _, m := range req.Messages {
		messages = append(messages, anyllmlib.Message{Role: m.Role, Content: m.Content})
	}

	params := anyllmlib.CompletionParams{Model: req.Model, Messages: messages}
	if req.Temperature != 0 {
		t := req.Temperature
		params.Temperature = &t
	}
	if req.MaxTokens > 0 {
		mt := req.MaxTokens
		params.MaxTokens = &mt
	}
	return params
}
