package contextbuilder

import (
	"math"
	"strings"
)

const (
	charsPerToken = 2.8
	tokensPerWord = 1.4
	safetyMargin  = 1.10
)

// EstimateTokens implements spec §4.4's no-tokenizer estimate:
// max(ceil(chars/2.8), ceil(words/1.4)) * 1.10, floored to a minimum of 1.
func EstimateTokens(text string) int {
	if text == "" {
		return 1
	}
	byChars := math.Ceil(float64(len(text)) / charsPerToken)
	byWords := math.Ceil(float64(len(strings.Fields(text))) / tokensPerWord)
	estimate := math.Max(byChars, byWords) * safetyMargin
	n := int(math.Ceil(estimate))
	if n < 1 {
		return 1
	}
	return n
}
