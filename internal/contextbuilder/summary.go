package contextbuilder

import (
	"fmt"
	"strings"

	"symposium/internal/domain/discussion"
)

// Summary token budget floors (spec §4.7).
const (
	summaryContextFloor = 1000
	summaryMessageFloor = 800
	summaryMinimalFloor = 100

	summaryMaxHistoryMessages = 5
)

// SummaryBudget derives the summary ladder's token limits from a model's
// normal turn budget: 40% of maxContextTokens, 60% of maxMessageTokens,
// floored per spec §4.7.
func (b *Builder) SummaryBudget(model string) (maxContextTokens, maxMessageTokens int) {
	budget := b.catalog.For(model)
	maxContextTokens = int(float64(budget.MaxContextTokens) * 0.4)
	if maxContextTokens < summaryContextFloor {
		maxContextTokens = summaryContextFloor
	}
	maxMessageTokens = int(float64(budget.MaxMessageTokens) * 0.6)
	if maxMessageTokens < summaryMessageFloor {
		maxMessageTokens = summaryMessageFloor
	}
	if maxMessageTokens < summaryMinimalFloor {
		maxMessageTokens = summaryMinimalFloor
	}
	return maxContextTokens, maxMessageTokens
}

// FullSummaryContext builds the ladder's rung 1/2 context: the discussion
// history, capped at the 5 most recent valid messages and the summary
// token budget.
func (b *Builder) FullSummaryContext(d *discussion.Discussion, summaryModel string) []Turn {
	maxContextTokens, maxMessageTokens := b.SummaryBudget(summaryModel)
	selected := b.selectHistory(d.Messages, maxContextTokens, maxMessageTokens, summaryMaxHistoryMessages)

	system := fmt.Sprintf(
		"You are synthesizing a multi-model discussion about %q between %s across %d rounds.",
		d.Topic, strings.Join(d.Models, ", "), d.MaxRounds,
	)

	if len(selected) == 0 {
		return SimpleSummaryContext(d)
	}

	user := fmt.Sprintf(
		"Here is the discussion:\n\n%s\n\nWrite a synthesis of the key points, areas of agreement, and remaining tensions.",
		strings.Join(selected, "\n\n"),
	)
	return []Turn{
		{Role: "system", Content: system},
		{Role: "user", Content: user},
	}
}

// SimpleSummaryContext is rung 3: a two-message context naming the topic
// and participants, no history.
func SimpleSummaryContext(d *discussion.Discussion) []Turn {
	return []Turn{
		{Role: "system", Content: fmt.Sprintf("Summarize the discussion about %q in 2-3 sentences.", d.Topic)},
		{Role: "user", Content: fmt.Sprintf("The participants were: %s.", strings.Join(d.Models, ", "))},
	}
}

// MinimalSummaryContext is rung 4: a single bare user message.
func MinimalSummaryContext(d *discussion.Discussion) []Turn {
	return []Turn{
		{Role: "user", Content: fmt.Sprintf("Summarize: %s. Keep it brief.", d.Topic)},
	}
}
