// Package contextbuilder produces the provider input for a discussion's
// next turn: a token-budgeted, phase-aware [system, user] message pair
// assembled from the discussion's history.
package contextbuilder

import (
	"fmt"
	"regexp"
	"strings"

	"symposium/internal/domain/discussion"
	"symposium/internal/modelbudget"
)

// Turn is one entry of the provider-facing message list; Role is "system"
// or "user".
type Turn struct {
	Role    string
	Content string
}

// userPromptReserve is the token budget set aside for the wrapping user
// prompt itself, so history selection leaves room for it (spec §4.4 step 3).
const userPromptReserve = 200

// adaptiveShrinkThreshold and adaptiveShrinkStep implement spec §4.4's
// "once currentRound >= threshold, shrink by 0.8^floor((round-threshold)/5)".
const (
	adaptiveShrinkThreshold = 5
	adaptiveShrinkFactor    = 0.8
	adaptiveShrinkStep      = 5
	minHistoryMessages      = 3
)

// hardErrorMarker and hasUnclosedReasoning flag messages the history
// selection must drop outright (spec §4.4 step 1).
var hardErrorMarker = regexp.MustCompile(`^\[Error:`)

// hasUnclosedReasoning reports whether content opens a <thinking> block
// that is never closed.
func hasUnclosedReasoning(content string) bool {
	open := strings.LastIndex(content, "<thinking>")
	return open >= 0 && !strings.Contains(content[open:], "</thinking>")
}

// Builder assembles turn context, caching both token estimates and
// assembled prompts.
type Builder struct {
	catalog *modelbudget.Catalog
	tokens  *tokenCache
	prompts *promptCache
}

// New returns a Builder backed by catalog, with caches sized cacheSize
// (config.Tunables.Performance.MaxCacheSize; 0 uses the default).
func New(catalog *modelbudget.Catalog, cacheSize int) *Builder {
	return &Builder{
		catalog: catalog,
		tokens:  newTokenCache(cacheSize),
		prompts: newPromptCache(cacheSize),
	}
}

// otherModel names a message's speaker for the "<model> contributed: ..."
// formatting in spec §4.4 step 3.
func otherModel(m discussion.Message) string {
	if m.ModelName != "" {
		return m.ModelName
	}
	return "a participant"
}

// Params carries the operator-tunable knobs from config.Tunables that this
// package's adaptive shrinkage and message-cap logic consult (spec §6:
// maxContextMessages, performance.adaptiveContextSize,
// performance.contextReductionFactor, performance.maxRoundsBeforeReduction).
type Params struct {
	MaxHistoryMessages int
	AdaptiveShrink     bool
	ShrinkFactor       float64
	ShrinkThreshold    int
}

// DefaultParams returns the documented defaults (spec §4.4), used by Build
// for callers that don't thread live tunables through.
func DefaultParams() Params {
	return Params{
		MaxHistoryMessages: defaultMaxHistoryMessages,
		AdaptiveShrink:     true,
		ShrinkFactor:       adaptiveShrinkFactor,
		ShrinkThreshold:    adaptiveShrinkThreshold,
	}
}

func (p Params) withDefaults() Params {
	if p.MaxHistoryMessages <= 0 {
		p.MaxHistoryMessages = defaultMaxHistoryMessages
	}
	if p.ShrinkFactor <= 0 {
		p.ShrinkFactor = adaptiveShrinkFactor
	}
	if p.ShrinkThreshold <= 0 {
		p.ShrinkThreshold = adaptiveShrinkThreshold
	}
	return p
}

// Build produces the [system, user] pair for d's next turn against model
// using the documented default Params; callers that thread live
// config.Tunables through (the Orchestrator's turn loop) should call
// BuildWithParams instead.
func (b *Builder) Build(d *discussion.Discussion, model string) []Turn {
	return b.BuildWithParams(d, model, DefaultParams())
}

// BuildWithParams is Build, with the adaptive-shrinkage and history-cap
// knobs sourced from params instead of the compiled-in defaults.
func (b *Builder) BuildWithParams(d *discussion.Discussion, model string, params Params) []Turn {
	params = params.withDefaults()
	key := promptCacheKey(d.ID, model, d.CurrentRound, len(d.Messages))
	if cached, ok := b.prompts.get(key); ok {
		return cached
	}

	turns := b.build(d, model, params)
	b.prompts.put(key, turns)
	return turns
}

func (b *Builder) build(d *discussion.Discussion, model string, params Params) []Turn {
	phase := discussion.PhaseFor(d.CurrentRound, d.MaxRounds)
	budget := b.catalog.For(model)
	maxContextTokens, maxMessages := b.adaptiveLimits(d.CurrentRound, budget, params)

	system := systemPrompt(d, model, phase)

	if d.CurrentRound == 0 {
		return []Turn{
			{Role: "system", Content: system},
			{Role: "user", Content: phase.FallbackPrompt(d.Topic)},
		}
	}

	selected := b.selectHistory(d.Messages, maxContextTokens, budget.MaxMessageTokens, maxMessages)
	if len(selected) == 0 {
		return []Turn{
			{Role: "system", Content: system},
			{Role: "user", Content: phase.FallbackPrompt(d.Topic)},
		}
	}

	var block strings.Builder
	for i, line := range selected {
		if i > 0 {
			block.WriteString("\n\n")
		}
		block.WriteString(line)
	}

	user := fmt.Sprintf("Here is the discussion so far:\n\n%s\n\n%s", block.String(), phase.Guideline())
	return []Turn{
		{Role: "system", Content: system},
		{Role: "user", Content: user},
	}
}

func systemPrompt(d *discussion.Discussion, model string, phase discussion.Phase) string {
	var others []string
	for _, m := range d.Models {
		if m != model {
			others = append(others, m)
		}
	}
	return fmt.Sprintf(
		"You are participating in a discussion about %q alongside %s. This is round %d of %d, currently in the %s phase. %s",
		d.Topic, strings.Join(others, ", "), d.CurrentRound+1, d.MaxRounds, phase, phase.Guideline(),
	)
}

// adaptiveLimits applies spec §4.4's adaptive shrinkage once currentRound
// reaches params.ShrinkThreshold, using params.MaxHistoryMessages as the
// unshrunk message cap. Shrinkage is skipped entirely when
// params.AdaptiveShrink is false (performance.adaptiveContextSize=false).
func (b *Builder) adaptiveLimits(currentRound int, budget modelbudget.Budget, params Params) (maxContextTokens, maxMessages int) {
	maxContextTokens = budget.MaxContextTokens
	maxMessages = params.MaxHistoryMessages

	if !params.AdaptiveShrink || currentRound < params.ShrinkThreshold {
		return maxContextTokens, maxMessages
	}

	steps := (currentRound - params.ShrinkThreshold) / adaptiveShrinkStep
	factor := 1.0
	for i := 0; i < steps; i++ {
		factor *= params.ShrinkFactor
	}

	maxContextTokens = int(float64(maxContextTokens) * factor)
	maxMessages = int(float64(maxMessages) * factor)
	if maxMessages < minHistoryMessages {
		maxMessages = minHistoryMessages
	}
	return maxContextTokens, maxMessages
}

// defaultMaxHistoryMessages mirrors config.Tunables.MaxContextMessages'
// documented default; callers that need the operator-tunable value should
// prefer passing it through rather than relying on this constant.
const defaultMaxHistoryMessages = 20

// selectHistory implements spec §4.4's 5-step algorithm and returns the
// formatted, chronologically-ordered lines ready to join into a block.
func (b *Builder) selectHistory(messages []discussion.Message, maxContextTokens, maxMessageTokens, maxMessages int) []string {
	// Step 1: filter.
	type candidate struct {
		msg discussion.Message
	}
	var filtered []candidate
	for _, m := range messages {
		if m.Role == discussion.RoleSystem {
			continue
		}
		if strings.TrimSpace(m.Content) == "" {
			continue
		}
		if hardErrorMarker.MatchString(m.Content) || hasUnclosedReasoning(m.Content) {
			continue
		}
		filtered = append(filtered, candidate{msg: m})
	}
	if len(filtered) == 0 {
		return nil
	}

	// Step 2: de-duplicate.
	contents := make([]string, len(filtered))
	for i, c := range filtered {
		contents[i] = c.msg.Content
	}
	keep := dedupeMessages(contents)

	// Step 3: iterate newest -> oldest, format, truncate, budget-stop.
	maxMessageChars := int(float64(maxMessageTokens) * charsPerToken)
	var selected []string
	runningTokens := 0
	count := 0
	for i := len(filtered) - 1; i >= 0; i-- {
		if !keep[i] {
			continue
		}
		if count >= maxMessages {
			break
		}
		content := filtered[i].msg.Content
		if len(content) > maxMessageChars {
			content = content[:maxMessageChars] + "…"
		}
		line := fmt.Sprintf("%s contributed: %s", otherModel(filtered[i].msg), content)
		lineTokens := b.tokens.estimate(line)
		if runningTokens+lineTokens+userPromptReserve > maxContextTokens {
			break
		}
		selected = append(selected, line)
		runningTokens += lineTokens
		count++
	}

	// Step 4: assemble chronologically (selected was built newest-first).
	for i, j := 0, len(selected)-1; i < j; i, j = i+1, j-1 {
		selected[i], selected[j] = selected[j], selected[i]
	}
	return selected
}
