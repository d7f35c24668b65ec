package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"symposium/internal/domain/discussion"
	"symposium/internal/eventbus"
	"symposium/internal/turnexecutor"
)

// defaultModelDelay is the inter-turn pause (spec §4.6 step 11).
const defaultModelDelay = 50 * time.Millisecond

// runLoop drives one discussion's turn-by-turn execution until it stops
// being runnable, then hands off to the summary ladder. It is always
// started in its own goroutine by Start, never on the caller's thread.
func (o *Orchestrator) runLoop(ctx context.Context, id string) {
	for {
		o.mu.Lock()
		d, ok := o.memory[id]
		if !ok {
			o.mu.Unlock()
			return
		}
		runnable := d.Status == discussion.StatusRunning && d.CurrentRound < d.MaxRounds
		o.mu.Unlock()
		if !runnable {
			break
		}

		if !o.runOneTurn(ctx, id) {
			break
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(o.modelDelay()):
		}
	}

	o.mu.Lock()
	d, ok := o.memory[id]
	status := discussion.Status("")
	if ok {
		status = d.Status
	}
	o.mu.Unlock()
	if !ok {
		return
	}

	if status == discussion.StatusRunning {
		o.finishWithSummary(ctx, id)
	}
	// Stopped/error statuses were already persisted and broadcast by
	// whichever call (Stop, or the fatal path in runOneTurn) changed them.
}

func (o *Orchestrator) modelDelay() time.Duration {
	t := o.tunables.Get()
	if t.ModelDelayMS <= 0 {
		return defaultModelDelay
	}
	return time.Duration(t.ModelDelayMS) * time.Millisecond
}

// runOneTurn executes spec §4.6 steps 1-10 for the current model and
// reports whether the loop should continue (false on a fatal/stop
// condition it has already handled and persisted).
func (o *Orchestrator) runOneTurn(ctx context.Context, id string) bool {
	o.mu.Lock()
	d, ok := o.memory[id]
	if !ok {
		o.mu.Unlock()
		return false
	}
	model := d.CurrentModel()
	singleModelMode := o.tunables.Get().SingleModelMode
	o.mu.Unlock()

	if model == "" {
		o.fail(id, fmt.Errorf("no model at index"))
		return false
	}

	if !o.running.acquire(ctx, model, singleModelMode) {
		return false
	}
	defer o.running.release(model)

	o.mu.Lock()
	d, ok = o.memory[id]
	if !ok {
		o.mu.Unlock()
		return false
	}
	turns := o.builder.BuildWithParams(d, model, o.contextParams())
	nextRound := d.CurrentRound + 1
	phase := discussion.PhaseFor(nextRound, d.MaxRounds)
	o.mu.Unlock()

	o.bus.Publish(eventbus.Event{Type: eventbus.EventModelThinking, DiscussionID: id, Payload: map[string]any{"model": model, "round": nextRound}})

	msg := discussion.Message{
		ID:        uuid.New().String(),
		Role:      discussion.RoleAssistant,
		ModelName: model,
		Round:     &nextRound,
		Timestamp: time.Now(),
	}

	o.mu.Lock()
	d, ok = o.memory[id]
	if !ok {
		o.mu.Unlock()
		return false
	}
	d.Messages = append(d.Messages, msg)
	msgIdx := len(d.Messages) - 1
	o.store.Save(d)
	o.mu.Unlock()

	o.bus.Publish(eventbus.Event{Type: eventbus.EventTurnStarted, DiscussionID: id, Payload: msg})

	provider, _, err := o.registry.Resolve(model)
	if err != nil {
		o.mu.Lock()
		d, ok = o.memory[id]
		if ok {
			d.Messages[msgIdx].Content = fmt.Sprintf("[Error: %s failed to respond: no provider available]", model)
			d.Messages[msgIdx].TokenCount = 0
			o.store.Save(d)
		}
		o.mu.Unlock()
		o.bus.Publish(eventbus.Event{Type: eventbus.EventTurnFailed, DiscussionID: id, Payload: map[string]any{"message_id": msg.ID}})
	} else {
		executor := turnexecutor.New(provider, o.bus, o.logger, o.turnExecutorOptions())
		result := executor.Execute(ctx, id, &msg, turns, phase, d.Topic)
		if !result.Success {
			o.logger.Warn("turn failed after exhausting retries", "discussion_id", id, "model", model)
		}

		o.mu.Lock()
		d, ok = o.memory[id]
		if ok {
			d.Messages[msgIdx] = msg
			o.store.Save(d)
		}
		o.mu.Unlock()
	}

	o.mu.Lock()
	d, ok = o.memory[id]
	if !ok {
		o.mu.Unlock()
		return false
	}
	d.CurrentModelIndex = (d.CurrentModelIndex + 1) % len(d.Models)
	wrapped := d.CurrentModelIndex == 0
	if wrapped {
		d.CurrentRound++
	}
	d.UpdatedAt = time.Now()
	o.store.Save(d)
	roundJustCompleted := d.CurrentRound
	o.mu.Unlock()

	if wrapped {
		o.bus.Publish(eventbus.Event{Type: eventbus.EventRoundCompleted, DiscussionID: id, Payload: map[string]any{"round": roundJustCompleted, "total_rounds": d.MaxRounds}})
	}

	return true
}

// fail moves a discussion to the error status, used for conditions outside
// the Turn Executor's own retry/fallback handling (spec §4.6's "fatal"
// category, e.g. an unroutable model).
func (o *Orchestrator) fail(id string, cause error) {
	o.mu.Lock()
	d, ok := o.memory[id]
	if !ok {
		o.mu.Unlock()
		return
	}
	d.Status = discussion.StatusError
	d.Error = cause.Error()
	d.UpdatedAt = time.Now()
	delete(o.active, id)
	clone := d.Clone()
	o.mu.Unlock()

	o.store.Save(d)
	o.bus.Publish(eventbus.Event{Type: eventbus.EventDiscussionError, DiscussionID: id, Payload: clone})
}

// finishWithSummary runs the summary ladder and transitions the discussion
// to completed, dropping it from memory once done (spec §4.7: "drop from
// memory").
func (o *Orchestrator) finishWithSummary(ctx context.Context, id string) {
	o.mu.Lock()
	d, ok := o.memory[id]
	if !ok {
		o.mu.Unlock()
		return
	}
	d.Status = discussion.StatusSummarizing
	d.UpdatedAt = time.Now()
	o.store.Save(d)
	o.mu.Unlock()

	o.bus.Publish(eventbus.Event{Type: eventbus.EventSummaryStarted, DiscussionID: id})

	provider, _, err := o.registry.Resolve(d.SummaryModel)
	var s *discussion.Summary
	if err != nil {
		o.logger.Warn("no provider for summary model, skipping straight to fallback summary", "discussion_id", id, "model", d.SummaryModel, "error", err)
		s = o.summaries.Fallback(d)
	} else {
		s = o.summaries.Generate(ctx, d, provider)
	}

	o.mu.Lock()
	d, ok = o.memory[id]
	if !ok {
		o.mu.Unlock()
		return
	}
	d.Summary = s
	if s.Fallback {
		d.Error = "summary generation encountered technical difficulties"
	}
	d.Status = discussion.StatusCompleted
	now := time.Now()
	d.CompletedAt = &now
	d.UpdatedAt = now
	delete(o.active, id)
	delete(o.memory, id)
	clone := d.Clone()
	o.mu.Unlock()

	o.store.Save(clone)
	o.bus.Publish(eventbus.Event{Type: eventbus.EventSummaryCompleted, DiscussionID: id, Payload: s})
	o.bus.Publish(eventbus.Event{Type: eventbus.EventDiscussionCompleted, DiscussionID: id, Payload: clone})
}
