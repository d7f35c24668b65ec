// Package local implements the Local provider: the co-located inference
// daemon probed over a small set of candidate ports, reached through
// github.com/mozilla-ai/any-llm-go's Ollama backend.
package local

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	anyllmlib "github.com/mozilla-ai/any-llm-go"
	"github.com/mozilla-ai/any-llm-go/providers/ollama"

	"symposium/internal/domain"
	"symposium/internal/llmprovider"
)

// Provider wraps an any-llm-go Ollama backend, choosing its base URL by
// probing LocalProviderHost:port for each candidate port in order.
type Provider struct {
	host  string
	ports []string

	mu      sync.Mutex
	backend anyllmlib.Provider
	baseURL string
}

// New returns a Local provider that has not yet probed for a daemon; the
// probe runs lazily on first use so startup never blocks on an absent
// daemon.
func New(host string, ports []string) *Provider {
	return &Provider{host: host, ports: ports}
}

func (p *Provider) Name() string { return "local" }

// SupportsModel accepts any non-empty model name; the daemon itself is the
// source of truth and rejects unknown models at request time.
func (p *Provider) SupportsModel(model string) bool {
	return strings.TrimSpace(model) != ""
}

func (p *Provider) ensureBackend(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.backend != nil {
		return nil
	}

	for _, port := range p.ports {
		url := fmt.Sprintf("http://%s:%s", p.host, port)
		if probeOllama(ctx, url) {
			backend, err := ollama.New(anyllmlib.WithBaseURL(url))
			if err != nil {
				continue
			}
			p.backend = backend
			p.baseURL = url
			return nil
		}
	}
	return fmt.Errorf("local: no inference daemon reachable on %s, ports %v", p.host, p.ports)
}

func probeOllama(ctx context.Context, baseURL string) bool {
	ctx, cancel := context.WithTimeout(ctx, 800*time.Millisecond)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/api/tags", nil)
	if err != nil {
		return false
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

func (p *Provider) ListModels(ctx context.Context) ([]string, error) {
	if err := p.ensureBackend(ctx); err != nil {
		return nil, err
	}
	p.mu.Lock()
	baseURL := p.baseURL
	p.mu.Unlock()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/api/tags", nil)
	if err != nil {
		return nil, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("local: list models: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("local: list models: daemon returned %d", resp.StatusCode)
	}
	return decodeTags(resp)
}

func decodeTags(resp *http.Response) ([]string, error) {
	var body struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("local: decode tags: %w", err)
	}
	names := make([]string, 0, len(body.Models))
	for _, m := range body.Models {
		names = append(names, m.Name)
	}
	return names, nil
}

func (p *Provider) Health(ctx context.Context) error {
	return p.ensureBackend(ctx)
}

func (p *Provider) Complete(ctx context.Context, req llmprovider.GenerateRequest) (*llmprovider.GenerateResponse, error) {
	if err := p.ensureBackend(ctx); err != nil {
		return nil, err
	}
	params := buildParams(req)

	resp, err := p.backend.Completion(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("%w: local: %v", domain.ErrProvider, err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: local: empty choices", domain.ErrProvider)
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
	if err := p.ensureBackend(ctx); err != nil {
		return nil, err
	}
	params := buildParams(req)

	chunks, errs := p.backend.CompletionStream(ctx, params)
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
			case out <- llmprovider.StreamEvent{Err: fmt.Errorf("%w: local: %v", domain.ErrProvider, err)}:
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
