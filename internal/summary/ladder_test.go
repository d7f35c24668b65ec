package summary_test

import (
	"context"
	"errors"
	"testing"

	"symposium/internal/contextbuilder"
	"symposium/internal/domain/discussion"
	"symposium/internal/llmprovider/testprovider"
	"symposium/internal/modelbudget"
	"symposium/internal/summary"
)

func mustBuilder(t *testing.T) *contextbuilder.Builder {
	t.Helper()
	c, err := modelbudget.Load()
	if err != nil {
		t.Fatalf("modelbudget.Load: %v", err)
	}
	return contextbuilder.New(c, 0)
}

func sampleDiscussion() *discussion.Discussion {
	round := 1
	return &discussion.Discussion{
		ID: "d1", Topic: "Is coffee healthy?", Models: []string{"local/a", "local/b"},
		SummaryModel: "local/a", MaxRounds: 2, CurrentRound: 2,
		Messages: []discussion.Message{
			{ID: "m1", Role: discussion.RoleAssistant, ModelName: "local/a", Round: &round, Content: "Coffee has antioxidants that may offer health benefits."},
			{ID: "m2", Role: discussion.RoleAssistant, ModelName: "local/b", Round: &round, Content: "But excess caffeine can disrupt sleep and raise anxiety."},
		},
	}
}

func TestGenerateSucceedsOnStreamingRung(t *testing.T) {
	p := testprovider.New("test")
	p.Script("a", testprovider.Response{
		Content:   "Both models agree coffee has tradeoffs: antioxidant benefits versus sleep and anxiety risks from caffeine.",
		ChunkSize: 8,
	})

	g := summary.New(mustBuilder(t), nil)
	s := g.Generate(context.Background(), sampleDiscussion(), p)

	if s.Fallback {
		t.Fatalf("expected a successful streaming summary, got fallback: %+v", s)
	}
	if s.GeneratedBy != "local/a" {
		t.Errorf("GeneratedBy = %q, want local/a", s.GeneratedBy)
	}
}

func TestGenerateFallsThroughLadderToSimpleRung(t *testing.T) {
	p := testprovider.New("test")
	p.Script("a",
		testprovider.Response{Err: errors.New("stream unavailable")}, // streaming rung fails
		testprovider.Response{Err: errors.New("still unavailable")}, // non-streaming rung fails
		testprovider.Response{Content: "Coffee's health effects are mixed depending on consumption levels."}, // simple rung succeeds
	)

	g := summary.New(mustBuilder(t), nil)
	s := g.Generate(context.Background(), sampleDiscussion(), p)

	if s.Fallback {
		t.Fatalf("expected the simple rung to succeed before falling back, got fallback: %+v", s)
	}
}

func TestGenerateFallsBackWhenEveryRungFails(t *testing.T) {
	p := testprovider.New("test")
	p.Script("a", testprovider.Response{Err: errors.New("backend down")})

	g := summary.New(mustBuilder(t), nil)
	d := sampleDiscussion()
	s := g.Generate(context.Background(), d, p)

	if !s.Fallback {
		t.Fatalf("expected a fallback summary when every rung fails, got %+v", s)
	}
	if s.GeneratedBy != "system" {
		t.Errorf("GeneratedBy = %q, want system", s.GeneratedBy)
	}
	if len(s.Content) <= minSuccessLengthForTest {
		t.Errorf("fallback content should be substantive, got %q", s.Content)
	}
}

const minSuccessLengthForTest = 20
