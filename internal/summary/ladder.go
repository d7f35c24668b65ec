// Package summary implements the Summary Generator (C7): a ladder of
// increasingly simple attempts to synthesize a finished discussion, each
// bounded by its own wall-clock deadline, falling back to a system-generated
// summary if every rung fails.
package summary

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"symposium/internal/contextbuilder"
	"symposium/internal/domain/discussion"
	"symposium/internal/eventbus"
	"symposium/internal/llmprovider"
)

// minSuccessLength is the content-length floor a rung's output must clear
// to be accepted (spec §4.7: "content is non-empty and length > 20
// characters").
const minSuccessLength = 20

// rung deadlines, in ladder order (spec §4.7).
var rungDeadlines = [4]time.Duration{
	60 * time.Second,
	45 * time.Second,
	30 * time.Second,
	20 * time.Second,
}

// streamingSnapshotInterval paces the summary_streaming periodic snapshot,
// mirroring turnexecutor's message_streaming cadence (spec §4.2).
const streamingSnapshotInterval = 500 * time.Millisecond

// Generator drives one discussion's summary model through the ladder.
type Generator struct {
	builder *contextbuilder.Builder
	bus     *eventbus.Bus
}

// New returns a Generator backed by builder for context assembly, publishing
// summary_token/summary_streaming events (spec §4.2) from the streaming rung
// to bus.
func New(builder *contextbuilder.Builder, bus *eventbus.Bus) *Generator {
	return &Generator{builder: builder, bus: bus}
}

// Generate runs the ladder against d using provider (already resolved for
// d.SummaryModel) and returns the resulting Summary. It never returns an
// error: total failure produces the documented fallback summary instead.
func (g *Generator) Generate(ctx context.Context, d *discussion.Discussion, provider llmprovider.Provider) *discussion.Summary {
	rungs := []func(context.Context, *discussion.Discussion, llmprovider.Provider) (string, error){
		g.streamingRung,
		g.nonStreamingRung,
		g.simpleRung,
		g.minimalRung,
	}

	for i, rung := range rungs {
		rungCtx, cancel := context.WithTimeout(ctx, rungDeadlines[i])
		content, err := rung(rungCtx, d, provider)
		cancel()
		if err == nil && len(content) > minSuccessLength {
			return &discussion.Summary{
				GeneratedBy: d.SummaryModel,
				Content:     content,
				GeneratedAt: time.Now(),
				TokenCount:  contextbuilder.EstimateTokens(content),
				Fallback:    false,
			}
		}
	}

	return g.Fallback(d)
}

// Fallback constructs the system-generated summary directly, for callers
// that already know no provider can serve the ladder (e.g. an unroutable
// summary model) and want to skip straight to it.
func (g *Generator) Fallback(d *discussion.Discussion) *discussion.Summary {
	return g.fallback(d)
}

func (g *Generator) streamingRung(ctx context.Context, d *discussion.Discussion, provider llmprovider.Provider) (string, error) {
	turns := g.builder.FullSummaryContext(d, d.SummaryModel)
	req := summaryRequest(d.SummaryModel, turns)

	events, err := provider.CompleteStream(ctx, req)
	if err != nil {
		return "", err
	}

	summaryID := uuid.New().String()
	var buf strings.Builder
	var pending strings.Builder
	throttle := eventbus.NewTokenThrottle(0, 0)

	snapshot := time.NewTicker(streamingSnapshotInterval)
	defer snapshot.Stop()

	for {
		select {
		case event, open := <-events:
			if !open {
				return buf.String(), nil
			}
			if event.Err != nil {
				return buf.String(), event.Err
			}
			if event.Delta != "" {
				buf.WriteString(event.Delta)
				pending.WriteString(event.Delta)
				if throttle.Tick() {
					g.publishToken(d.ID, summaryID, pending.String(), buf.String(), false)
					pending.Reset()
					throttle.Reset()
				}
			}
			if event.Metadata != nil {
				g.publishToken(d.ID, summaryID, pending.String(), buf.String(), true)
				g.publishStreaming(d.ID, summaryID, buf.String(), true)
				return buf.String(), nil
			}
		case <-snapshot.C:
			g.publishStreaming(d.ID, summaryID, buf.String(), false)
		}
	}
}

func (g *Generator) publishToken(discussionID, summaryID, token, content string, done bool) {
	if g.bus == nil {
		return
	}
	g.bus.Publish(eventbus.Event{Type: eventbus.EventSummaryToken, DiscussionID: discussionID, Payload: map[string]any{
		"summary_id": summaryID,
		"token":      token,
		"content":    content,
		"count":      contextbuilder.EstimateTokens(content),
		"done":       done,
	}})
}

func (g *Generator) publishStreaming(discussionID, summaryID, content string, isComplete bool) {
	if g.bus == nil {
		return
	}
	g.bus.Publish(eventbus.Event{Type: eventbus.EventSummaryStreaming, DiscussionID: discussionID, Payload: map[string]any{
		"summary_id":  summaryID,
		"content":     content,
		"is_complete": isComplete,
	}})
}

func (g *Generator) nonStreamingRung(ctx context.Context, d *discussion.Discussion, provider llmprovider.Provider) (string, error) {
	turns := g.builder.FullSummaryContext(d, d.SummaryModel)
	resp, err := provider.Complete(ctx, summaryRequest(d.SummaryModel, turns))
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}

func (g *Generator) simpleRung(ctx context.Context, d *discussion.Discussion, provider llmprovider.Provider) (string, error) {
	turns := contextbuilder.SimpleSummaryContext(d)
	resp, err := provider.Complete(ctx, summaryRequest(d.SummaryModel, turns))
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}

func (g *Generator) minimalRung(ctx context.Context, d *discussion.Discussion, provider llmprovider.Provider) (string, error) {
	turns := contextbuilder.MinimalSummaryContext(d)
	resp, err := provider.Complete(ctx, summaryRequest(d.SummaryModel, turns))
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}

func summaryRequest(model string, turns []contextbuilder.Turn) llmprovider.GenerateRequest {
	bare := model
	if route, err := llmprovider.ParseModel(model); err == nil {
		bare = route.Model
	}
	req := llmprovider.GenerateRequest{Model: bare, MaxTokens: 1024}
	for _, t := range turns {
		if t.Role == "system" {
			req.SystemPrompt = t.Content
			continue
		}
		req.Messages = append(req.Messages, llmprovider.ChatMessage{Role: "user", Content: t.Content})
	}
	return req
}

// fallback constructs the system-generated summary used when every rung
// fails (spec §4.7).
func (g *Generator) fallback(d *discussion.Discussion) *discussion.Summary {
	content := fmt.Sprintf(
		"Discussion about %q completed with %d messages from models: %s. Summary generation encountered technical difficulties.",
		d.Topic, len(d.Messages), strings.Join(d.Models, ", "),
	)
	return &discussion.Summary{
		GeneratedBy: "system",
		Content:     content,
		GeneratedAt: time.Now(),
		TokenCount:  contextbuilder.EstimateTokens(content),
		Fallback:    true,
	}
}
