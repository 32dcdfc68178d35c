package triage

import "strings"

// Match tests each vocabulary term for case-insensitive substring
// containment in the transcript and returns the matched terms in
// vocabulary order, each at most once.
//
// This is exact containment only: no stemming, no fuzzy matching, and no
// negation handling ("no fever" still matches "fever").
func Match(transcript string, vocab Vocabulary) []string {
	lowered := strings.ToLower(transcript)
	matched := make([]string, 0, len(vocab.Terms))
	for _, term := range vocab.Terms {
		if strings.Contains(lowered, term) {
			matched = append(matched, term)
		}
	}
	return matched
}
