package contextbuilder

import (
	"regexp"
	"strings"

	"github.com/agext/levenshtein"
)

// similarityThreshold is the normalized-similarity cutoff above which two
// messages are treated as duplicates (spec §4.4 step 2) or two sentences as
// repetitive (spec §4.5 step 4).
const similarityThreshold = 0.8

var punctuation = regexp.MustCompile(`[^\w\s]`)
var whitespace = regexp.MustCompile(`\s+`)

// normalize lowercases, strips punctuation and collapses whitespace so
// surface-level formatting differences don't defeat duplicate detection.
func normalize(s string) string {
	s = strings.ToLower(s)
	s = punctuation.ReplaceAllString(s, "")
	s = whitespace.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// similar reports whether a and b's normalized forms exceed
// similarityThreshold, using agext/levenshtein's ratio match with early
// termination on long inputs.
func similar(a, b string) bool {
	na, nb := normalize(a), normalize(b)
	if na == "" || nb == "" {
		return na == nb
	}
	return levenshtein.Match(na, nb, nil) > similarityThreshold
}

// dedupeMessages drops any message whose normalized content is similar to
// one already kept, preferring the earliest occurrence in the input order.
func dedupeMessages(contents []string) []bool {
	keep := make([]bool, len(contents))
	var kept []string
	for i, c := range contents {
		dup := false
		for _, k := range kept {
			if similar(c, k) {
				dup = true
				break
			}
		}
		if !dup {
			keep[i] = true
			kept = append(kept, c)
		}
	}
	return keep
}
