package ai

// EstimateTokens estimates token count using the ~4 chars/token heuristic.
// Good enough for budget comparison. Not billing-accurate.
func EstimateTokens(text string) int {
	if len(text) == 0 {
		return 0
	}
	// Round up: (len + 3) / 4
	return (len(text) + 3) / 4
}

// FitToBudget returns the longest prefix of notes whose estimated size stays
// within budget tokens. A budget <= 0 means unlimited. Notes are kept in
// order, so callers put the most relevant first.
func FitToBudget(notes []string, budget int) []string {
	if budget <= 0 {
		return notes
	}

	total := 0
	for i, n := range notes {
		total += EstimateTokens(n)
		if total > budget {
			return notes[:i]
		}
	}
	return notes
}
