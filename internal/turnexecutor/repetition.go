package turnexecutor

import (
	"regexp"
	"strings"

	"github.com/agext/levenshtein"
)

const (
	repetitionWordShareThreshold = 0.15
	repetitionWordMinLength      = 3
	repetitionSentenceMinLength  = 10
	repetitionSimilarity         = 0.8
)

var sentenceSplit = regexp.MustCompile(`[.!?]+\s+`)

// isRepetitive flags a response as degenerate when either a single word
// (longer than repetitionWordMinLength runes) accounts for more than 15% of
// its total word count, or two sentences (each longer than
// repetitionSentenceMinLength runes) exceed repetitionSimilarity, per
// spec §4.5 step 4. It reuses the same normalized-Levenshtein-ratio
// primitive the context builder uses for near-duplicate history pruning.
func (e *Executor) isRepetitive(content string) bool {
	words := strings.Fields(content)
	if len(words) > 0 {
		counts := make(map[string]int, len(words))
		for _, w := range words {
			w = strings.ToLower(strings.Trim(w, ".,!?;:\"'"))
			if len([]rune(w)) <= repetitionWordMinLength {
				continue
			}
			counts[w]++
		}
		for _, n := range counts {
			if float64(n)/float64(len(words)) > repetitionWordShareThreshold {
				return true
			}
		}
	}

	sentences := sentenceSplit.Split(content, -1)
	var long []string
	for _, s := range sentences {
		s = strings.TrimSpace(s)
		if len([]rune(s)) > repetitionSentenceMinLength {
			long = append(long, s)
		}
	}
	for i := 0; i < len(long); i++ {
		for j := i + 1; j < len(long); j++ {
			if levenshtein.Match(strings.ToLower(long[i]), strings.ToLower(long[j]), nil) > repetitionSimilarity {
				return true
			}
		}
	}
	return false
}
