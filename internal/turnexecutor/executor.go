// Package turnexecutor implements the Turn Executor (C5): drives one
// (model, context, placeholder message) tuple through the streaming-
// primary, non-streaming-fallback, retry/validation protocol of spec §4.5.
package turnexecutor

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"symposium/internal/contextbuilder"
	"symposium/internal/domain/discussion"
	"symposium/internal/eventbus"
	"symposium/internal/llmprovider"
)

const (
	// DefaultMinResponseLength is the validation gate's content-length floor.
	DefaultMinResponseLength = 20

	// DefaultMaxRetries is how many additional attempts follow the first.
	DefaultMaxRetries = 2

	// DefaultTurnDeadline bounds one provider call's wall-clock time.
	DefaultTurnDeadline = 5 * time.Minute

	errorSentinelFormat = "[Error: %s failed to respond after %d attempts]"
)

// Options configures one Executor; zero values fall back to the documented
// defaults, except MaxRetries, where 0 means no retries and only a negative
// value selects DefaultMaxRetries.
type Options struct {
	MinResponseLength int
	MaxRetries        int
	TurnDeadline      time.Duration
	TokenEveryN       int
	TokenInterval     time.Duration

	// DisableStreaming skips the streaming path entirely (spec §6
	// "enableStreaming: when false, Turn Executor skips the streaming
	// path"), inverted so the zero value keeps streaming on.
	DisableStreaming bool
}

func (o Options) withDefaults() Options {
	if o.MinResponseLength <= 0 {
		o.MinResponseLength = DefaultMinResponseLength
	}
	if o.MaxRetries < 0 {
		o.MaxRetries = DefaultMaxRetries
	}
	if o.TurnDeadline <= 0 {
		o.TurnDeadline = DefaultTurnDeadline
	}
	return o
}

// Result is the Turn Executor's output; the caller (the Orchestrator) also
// observes the message mutated in place.
type Result struct {
	Content    string
	TokenCount int
	Success    bool
}

// Executor fills one placeholder message via provider, publishing streaming
// progress on bus.
type Executor struct {
	provider llmprovider.Provider
	bus      *eventbus.Bus
	logger   *slog.Logger
	opts     Options
}

// New returns an Executor bound to provider and bus.
func New(provider llmprovider.Provider, bus *eventbus.Bus, logger *slog.Logger, opts Options) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{provider: provider, bus: bus, logger: logger, opts: opts.withDefaults()}
}

// Execute fills msg's content by driving provider through the streaming/
// fallback/retry protocol, mutating msg in place and returning the summary
// Result the orchestrator persists.
func (e *Executor) Execute(ctx context.Context, discussionID string, msg *discussion.Message, turns []contextbuilder.Turn, phase discussion.Phase, topic string) Result {
	attempt := 0
	for {
		attempt++
		attemptCtx, cancel := context.WithTimeout(ctx, e.opts.TurnDeadline)
		content, streamed, ok := e.attempt(attemptCtx, discussionID, msg, turns, attempt)
		cancel()

		if ok && e.passesValidation(content) && !e.isRepetitive(content) {
			return e.finish(discussionID, msg, content, streamed, true)
		}

		if attempt > e.opts.MaxRetries {
			if content != "" && ok {
				// Retry budget exhausted but we have *some* content from the
				// last attempt: spec §4.5 step 4 says accept repetitive text
				// rather than discard it once the budget runs out.
				return e.finish(discussionID, msg, content, streamed, true)
			}
			return e.terminalFailure(discussionID, msg, attempt)
		}

		e.logger.Warn("turn attempt failed validation, retrying",
			"discussion_id", discussionID, "model", msg.ModelName, "attempt", attempt)
		time.Sleep(time.Duration(attempt) * time.Second)

		// Retries drop the rich history prompt for a terse, phase-generic one.
		turns = []contextbuilder.Turn{
			turns[0],
			{Role: "user", Content: phase.FallbackPrompt(topic)},
		}
	}
}

// attempt runs exactly one streaming-then-fallback pass and reports the
// content produced, whether it was streamed, and whether a usable response
// was obtained at all (a hard provider error returns ok=false).
func (e *Executor) attempt(ctx context.Context, discussionID string, msg *discussion.Message, turns []contextbuilder.Turn, attemptNum int) (content string, streamed bool, ok bool) {
	req := buildRequest(msg.ModelName, turns)

	if !e.opts.DisableStreaming {
		streamContent, streamErr := e.streamAttempt(ctx, discussionID, msg, req)
		if streamErr == nil && len(streamContent) >= e.opts.MinResponseLength {
			return streamContent, true, true
		}
		if streamErr != nil {
			e.logger.Warn("streaming attempt failed, falling back to non-streaming",
				"discussion_id", discussionID, "model", msg.ModelName, "error", streamErr)
		}
	}

	nonStreamContent, err := e.nonStreamAttempt(ctx, req)
	if err != nil {
		e.logger.Warn("non-streaming attempt failed",
			"discussion_id", discussionID, "model", msg.ModelName, "error", err)
		return "", false, false
	}
	return nonStreamContent, false, true
}

func buildRequest(model string, turns []contextbuilder.Turn) llmprovider.GenerateRequest {
	req := llmprovider.GenerateRequest{Model: bareModel(model), MaxTokens: 2048}
	for _, t := range turns {
		switch t.Role {
		case "system":
			req.SystemPrompt = t.Content
		default:
			req.Messages = append(req.Messages, llmprovider.ChatMessage{Role: "user", Content: t.Content})
		}
	}
	return req
}

// streamingSnapshotInterval paces the message_streaming periodic snapshot
// (spec §4.2), distinct from the K-tokens-or-T-ms message_token throttle.
const streamingSnapshotInterval = 500 * time.Millisecond

func (e *Executor) streamAttempt(ctx context.Context, discussionID string, msg *discussion.Message, req llmprovider.GenerateRequest) (string, error) {
	events, err := e.provider.CompleteStream(ctx, req)
	if err != nil {
		return "", err
	}

	var buf strings.Builder
	var pending strings.Builder
	throttle := eventbus.NewTokenThrottle(e.opts.TokenEveryN, e.opts.TokenInterval)

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
					e.publishToken(discussionID, msg.ID, pending.String(), buf.String(), false)
					pending.Reset()
					throttle.Reset()
				}
			}
			if event.Metadata != nil {
				e.publishToken(discussionID, msg.ID, pending.String(), buf.String(), true)
				e.publish(discussionID, eventbus.EventTurnStreaming, map[string]any{
					"message_id":  msg.ID,
					"content":     buf.String(),
					"is_complete": true,
				})
				return buf.String(), nil
			}
		case <-snapshot.C:
			e.publish(discussionID, eventbus.EventTurnStreaming, map[string]any{
				"message_id":  msg.ID,
				"content":     buf.String(),
				"is_complete": false,
			})
		}
	}
}

// publishToken emits a throttled message_token event. token is the delta
// accumulated since the previous emission (spec §4.2: "token fragment");
// content is the cumulative body so far; count is its token estimate.
func (e *Executor) publishToken(discussionID, messageID, token, content string, done bool) {
	e.publish(discussionID, eventbus.EventTurnToken, map[string]any{
		"message_id": messageID,
		"token":      token,
		"content":    content,
		"count":      contextbuilder.EstimateTokens(content),
		"done":       done,
	})
}

func (e *Executor) nonStreamAttempt(ctx context.Context, req llmprovider.GenerateRequest) (string, error) {
	resp, err := e.provider.Complete(ctx, req)
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}

// bareModel strips the "local/"/"remote/" routing prefix so the request
// carries the model identifier the backend SDK itself expects; msg.ModelName
// keeps the routed form for display and history attribution.
func bareModel(model string) string {
	if route, err := llmprovider.ParseModel(model); err == nil {
		return route.Model
	}
	return model
}

func (e *Executor) passesValidation(content string) bool {
	return len(content) >= e.opts.MinResponseLength
}

func (e *Executor) finish(discussionID string, msg *discussion.Message, content string, streamed bool, success bool) Result {
	msg.Content = content
	msg.TokenCount = contextbuilder.EstimateTokens(content)
	msg.Timestamp = time.Now()

	e.publish(discussionID, eventbus.EventTurnCompleted, map[string]any{
		"message_id": msg.ID,
		"content":    content,
		"streamed":   streamed,
		"success":    success,
	})
	return Result{Content: content, TokenCount: msg.TokenCount, Success: success}
}

func (e *Executor) terminalFailure(discussionID string, msg *discussion.Message, attempts int) Result {
	content := fmt.Sprintf(errorSentinelFormat, msg.ModelName, attempts)
	msg.Content = content
	msg.TokenCount = 0
	msg.Timestamp = time.Now()

	e.publish(discussionID, eventbus.EventTurnFailed, map[string]any{
		"message_id": msg.ID,
		"content":    content,
	})
	return Result{Content: content, TokenCount: 0, Success: false}
}

func (e *Executor) publish(discussionID string, eventType eventbus.EventType, payload any) {
	if e.bus == nil {
		return
	}
	e.bus.Publish(eventbus.Event{Type: eventType, DiscussionID: discussionID, Payload: payload})
}
