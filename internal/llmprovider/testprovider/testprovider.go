// Package testprovider implements a scriptable fixture Provider used by
// package tests that exercise the turn executor, context builder and
// orchestrator without a real backend.
package testprovider

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"symposium/internal/llmprovider"
)

// Provider answers Complete/CompleteStream from a configurable script keyed
// by model name; each call consumes the next scripted response, repeating
// the last one once the script is exhausted.
type Provider struct {
	name string

	mu        sync.Mutex
	responses map[string][]Response
	calls     map[string]int
	healthErr error
}

// Response is one scripted turn.
type Response struct {
	Content string
	Err     error
	// ChunkSize splits Content into streamed deltas of this many runes;
	// zero streams the whole content as one delta.
	ChunkSize int
}

// New returns an empty fixture provider named name ("local" or "remote" to
// stand in for a real backend kind, or anything else for a dedicated test
// model prefix).
func New(name string) *Provider {
	return &Provider{
		name:      name,
		responses: make(map[string][]Response),
		calls:     make(map[string]int),
	}
}

// Script appends responses to be returned, in order, for model.
func (p *Provider) Script(model string, responses ...Response) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.responses[model] = append(p.responses[model], responses...)
}

// SetHealthErr makes Health return err until changed.
func (p *Provider) SetHealthErr(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.healthErr = err
}

// Calls returns how many times model has been invoked.
func (p *Provider) Calls(model string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[model]
}

func (p *Provider) Name() string { return p.name }

func (p *Provider) SupportsModel(model string) bool {
	return strings.TrimSpace(model) != ""
}

func (p *Provider) ListModels(ctx context.Context) ([]string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	models := make([]string, 0, len(p.responses))
	for m := range p.responses {
		models = append(models, m)
	}
	return models, nil
}

func (p *Provider) Health(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.healthErr
}

func (p *Provider) next(model string) Response {
	p.mu.Lock()
	defer p.mu.Unlock()
	idx := p.calls[model]
	p.calls[model]++
	script := p.responses[model]
	if len(script) == 0 {
		return Response{Content: fmt.Sprintf("fixture response for %s", model)}
	}
	if idx >= len(script) {
		idx = len(script) - 1
	}
	return script[idx]
}

func (p *Provider) Complete(ctx context.Context, req llmprovider.GenerateRequest) (*llmprovider.GenerateResponse, error) {
	r := p.next(req.Model)
	if r.Err != nil {
		return nil, r.Err
	}
	return &llmprovider.GenerateResponse{
		Content:      r.Content,
		Model:        req.Model,
		InputTokens:  len(strings.Fields(req.SystemPrompt)),
		OutputTokens: len(strings.Fields(r.Content)),
		StopReason:   "end_turn",
	}, nil
}

func (p *Provider) CompleteStream(ctx context.Context, req llmprovider.GenerateRequest) (<-chan llmprovider.StreamEvent, error) {
	r := p.next(req.Model)
	out := make(chan llmprovider.StreamEvent, 8)

	go func() {
		defer close(out)
		if r.Err != nil {
			select {
			case out <- llmprovider.StreamEvent{Err: r.Err}:
			case <-ctx.Done():
			}
			return
		}

		chunkSize := r.ChunkSize
		if chunkSize <= 0 {
			chunkSize = len(r.Content)
			if chunkSize == 0 {
				chunkSize = 1
			}
		}
		runes := []rune(r.Content)
		for i := 0; i < len(runes); i += chunkSize {
			end := i + chunkSize
			if end > len(runes) {
				end = len(runes)
			}
			select {
			case out <- llmprovider.StreamEvent{Delta: string(runes[i:end])}:
			case <-ctx.Done():
				return
			}
		}

		select {
		case out <- llmprovider.StreamEvent{Metadata: &llmprovider.StreamMetadata{
			Model:        req.Model,
			OutputTokens: len(strings.Fields(r.Content)),
			StopReason:   "end_turn",
		}}:
		case <-ctx.Done():
		}
	}()

	return out, nil
}
