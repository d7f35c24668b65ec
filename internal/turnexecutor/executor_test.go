package turnexecutor_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"symposium/internal/contextbuilder"
	"symposium/internal/domain/discussion"
	"symposium/internal/eventbus"
	"symposium/internal/llmprovider/testprovider"
	"symposium/internal/turnexecutor"
)

func newTestTurns() []contextbuilder.Turn {
	return []contextbuilder.Turn{
		{Role: "system", Content: "You are a participant in a discussion about free will."},
		{Role: "user", Content: "Share your initial viewpoint on: free will"},
	}
}

func TestExecuteSucceedsOnFirstStream(t *testing.T) {
	p := testprovider.New("test")
	p.Script("a", testprovider.Response{
		Content:   "Free will is a coherent concept once you separate it from pure indeterminism.",
		ChunkSize: 6,
	})

	bus := eventbus.New()
	e := turnexecutor.New(p, bus, nil, turnexecutor.Options{})
	msg := &discussion.Message{ID: "m1", Role: discussion.RoleAssistant, ModelName: "local/a"}

	res := e.Execute(context.Background(), "d1", msg, newTestTurns(), discussion.PhaseInitial, "free will")

	if !res.Success {
		t.Fatalf("Execute should succeed on a valid first stream, got %+v", res)
	}
	if p.Calls("a") != 1 {
		t.Errorf("Calls = %d, want 1 (single streaming attempt, no fallback)", p.Calls("a"))
	}
	if msg.Content != res.Content {
		t.Error("msg.Content should be mutated in place to match the result")
	}
}

func TestExecuteFallsBackToNonStreamingOnStreamError(t *testing.T) {
	p := testprovider.New("test")
	p.Script("a",
		testprovider.Response{Err: errors.New("stream transport closed")},
		testprovider.Response{Content: "A perfectly serviceable non-streaming fallback answer."},
	)

	e := turnexecutor.New(p, eventbus.New(), nil, turnexecutor.Options{})
	msg := &discussion.Message{ID: "m2", Role: discussion.RoleAssistant, ModelName: "local/a"}

	res := e.Execute(context.Background(), "d1", msg, newTestTurns(), discussion.PhaseInitial, "free will")

	if !res.Success {
		t.Fatalf("Execute should succeed via non-streaming fallback, got %+v", res)
	}
	if !strings.Contains(res.Content, "non-streaming fallback") {
		t.Errorf("expected fallback content, got %q", res.Content)
	}
	if p.Calls("a") != 2 {
		t.Errorf("Calls = %d, want 2 (stream attempt + fallback)", p.Calls("a"))
	}
}

func TestExecuteRetriesShortResponsesThenSucceeds(t *testing.T) {
	p := testprovider.New("test")
	p.Script("a",
		testprovider.Response{Content: "short"},
		testprovider.Response{Content: "short2"},
		testprovider.Response{Content: "A sufficiently long and substantive response that clears the validation floor."},
	)

	opts := turnexecutor.Options{MinResponseLength: 20, MaxRetries: 2, TurnDeadline: time.Second}
	e := turnexecutor.New(p, eventbus.New(), nil, opts)
	msg := &discussion.Message{ID: "m3", Role: discussion.RoleAssistant, ModelName: "local/a"}

	res := e.Execute(context.Background(), "d1", msg, newTestTurns(), discussion.PhaseInitial, "free will")

	if !res.Success {
		t.Fatalf("Execute should eventually succeed after retries, got %+v", res)
	}
	if !strings.Contains(res.Content, "validation floor") {
		t.Errorf("expected the third scripted response to win out, got %q", res.Content)
	}
}

func TestExecuteTerminalFailureAfterExhaustingRetries(t *testing.T) {
	p := testprovider.New("test")
	p.Script("a", testprovider.Response{Err: errors.New("backend unreachable")})

	opts := turnexecutor.Options{MaxRetries: 1, TurnDeadline: time.Second}
	e := turnexecutor.New(p, eventbus.New(), nil, opts)
	msg := &discussion.Message{ID: "m4", Role: discussion.RoleAssistant, ModelName: "local/a"}

	res := e.Execute(context.Background(), "d1", msg, newTestTurns(), discussion.PhaseInitial, "free will")

	if res.Success {
		t.Fatalf("Execute should fail terminally when every attempt errors, got %+v", res)
	}
	if !strings.Contains(res.Content, "failed to respond") {
		t.Errorf("expected error-sentinel content, got %q", res.Content)
	}
	if res.TokenCount != 0 {
		t.Errorf("TokenCount = %d, want 0 on terminal failure", res.TokenCount)
	}
}

func TestExecutePublishesTokenAndCompletionEvents(t *testing.T) {
	p := testprovider.New("test")
	p.Script("a", testprovider.Response{
		Content:   "Streaming deltas should trigger throttled token events and a final completion event.",
		ChunkSize: 4,
	})

	bus := eventbus.New()
	sub, unsubscribe := bus.Subscribe("d1")
	defer unsubscribe()

	opts := turnexecutor.Options{TokenEveryN: 1, TokenInterval: time.Millisecond}
	e := turnexecutor.New(p, bus, nil, opts)
	msg := &discussion.Message{ID: "m5", Role: discussion.RoleAssistant, ModelName: "local/a"}

	res := e.Execute(context.Background(), "d1", msg, newTestTurns(), discussion.PhaseInitial, "free will")
	if !res.Success {
		t.Fatalf("Execute should succeed, got %+v", res)
	}

	var sawToken, sawCompleted bool
	timeout := time.After(time.Second)
	for !sawCompleted {
		select {
		case ev := <-sub:
			switch ev.Type {
			case eventbus.EventTurnToken:
				sawToken = true
			case eventbus.EventTurnCompleted:
				sawCompleted = true
			}
		case <-timeout:
			t.Fatal("timed out waiting for turn events")
		}
	}
	if !sawToken {
		t.Error("expected at least one turn.token event")
	}
}
