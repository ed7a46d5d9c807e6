package search

import (
	"sort"
	"strings"

	"github.com/khanglvm/smartfix/internal/models"
)

// Matches reports whether any token occurs in the record's problem text or symptoms.
// Tokens must already be lowercased. An empty token list matches every record.
func Matches(tokens []string, rec models.ProblemRecord) bool {
	if len(tokens) == 0 {
		return true
	}
	problem := strings.ToLower(rec.ProblemText)
	symptoms := strings.ToLower(rec.Symptoms)
	for _, tok := range tokens {
		if strings.Contains(problem, tok) || strings.Contains(symptoms, tok) {
			return true
		}
	}
	return false
}

// ExactMatch reports whether the record's problem text contains the whole query.
func ExactMatch(query string, rec models.ProblemRecord) bool {
	q := strings.ToLower(strings.TrimSpace(query))
	return strings.Contains(strings.ToLower(rec.ProblemText), q)
}

// RankList returns the candidates ordered for listing:
// exact-substring matches first, then confidence, success rate and usage count
// (all descending), then ascending id. The input slice is not modified.
func RankList(query string, candidates []models.ProblemRecord) []models.ProblemRecord {
	ranked := make([]models.ProblemRecord, len(candidates))
	copy(ranked, candidates)

	exact := make(map[int64]bool, len(ranked))
	for _, rec := range ranked {
		exact[rec.ID] = ExactMatch(query, rec)
	}

	sort.Slice(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if exact[a.ID] != exact[b.ID] {
			return exact[a.ID]
		}
		if a.ConfidenceScore != b.ConfidenceScore {
			return a.ConfidenceScore > b.ConfidenceScore
		}
		if a.SuccessRate != b.SuccessRate {
			return a.SuccessRate > b.SuccessRate
		}
		if a.UsageCount != b.UsageCount {
			return a.UsageCount > b.UsageCount
		}
		return a.ID < b.ID
	})

	return ranked
}

// Best picks the single answer: highest (confidence, success rate), lowest id on ties.
// Usage count and exact-match pinning play no part here.
func Best(candidates []models.ProblemRecord) (models.ProblemRecord, bool) {
	if len(candidates) == 0 {
		return models.ProblemRecord{}, false
	}

	best := candidates[0]
	for _, rec := range candidates[1:] {
		switch {
		case rec.ConfidenceScore > best.ConfidenceScore:
			best = rec
		case rec.ConfidenceScore < best.ConfidenceScore:
		case rec.SuccessRate > best.SuccessRate:
			best = rec
		case rec.SuccessRate < best.SuccessRate:
		case rec.ID < best.ID:
			best = rec
		}
	}
	return best, true
}
