package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/khanglvm/smartfix/internal/models"
)

func rec(id int64, text string, conf, success float64, usage int64) models.ProblemRecord {
	return models.ProblemRecord{
		ID:              id,
		ProblemText:     text,
		ConfidenceScore: conf,
		SuccessRate:     success,
		UsageCount:      usage,
	}
}

func ids(records []models.ProblemRecord) []int64 {
	out := make([]int64, len(records))
	for i, r := range records {
		out[i] = r.ID
	}
	return out
}

func TestTokenize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"empty", "   ", nil},
		{"short tokens dropped", "My TV is on", []string{}},
		{"punctuation and case", "Screen is BLACK, power light is on!", []string{"screen", "black", "power", "light"}},
		{"duplicates removed", "wifi WiFi wifi router", []string{"wifi", "router"}},
		{"hyphenated codes kept whole", "E-04 wi-fi", []string{"e-04", "wi-fi"}},
		{"code with trailing punctuation", "HDMI-2 port (ARC).", []string{"hdmi-2", "port", "arc"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Tokenize(tt.in)
			if tt.want == nil {
				assert.Nil(t, got)
				return
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMatches(t *testing.T) {
	r := models.ProblemRecord{ProblemText: "TV has no sound", Symptoms: "audio not working, silent"}

	assert.True(t, Matches([]string{"sound"}, r))
	assert.True(t, Matches([]string{"silent"}, r), "symptoms should be searched")
	assert.True(t, Matches([]string{"work"}, r), "substring of a word matches")
	assert.False(t, Matches([]string{"battery"}, r))
	assert.True(t, Matches(nil, r), "no tokens matches everything")
}

func TestMatches_HyphenatedCode(t *testing.T) {
	router := models.ProblemRecord{ProblemText: "Router shows error e-04 on boot"}
	phone := models.ProblemRecord{ProblemText: "Phone battery drains quickly"}

	tokens := Tokenize("E-04 wi-fi")
	assert.True(t, Matches(tokens, router))
	assert.False(t, Matches(tokens, phone))
}

func TestRankList_ExactMatchPinned(t *testing.T) {
	candidates := []models.ProblemRecord{
		rec(1, "Phone battery drains quickly", 0.99, 0.99, 100),
		rec(2, "TV has no sound", 0.50, 0.50, 0),
	}

	ranked := RankList("no sound", candidates)
	assert.Equal(t, []int64{2, 1}, ids(ranked))
}

func TestRankList_TieBreakers(t *testing.T) {
	candidates := []models.ProblemRecord{
		rec(5, "a", 0.8, 0.5, 1),
		rec(4, "b", 0.8, 0.5, 3),
		rec(3, "c", 0.8, 0.7, 0),
		rec(2, "d", 0.9, 0.1, 0),
		rec(1, "e", 0.8, 0.5, 1),
	}

	ranked := RankList("zzz", candidates)
	assert.Equal(t, []int64{2, 3, 4, 1, 5}, ids(ranked))
	// input untouched
	assert.Equal(t, int64(5), candidates[0].ID)
}

func TestRankList_Deterministic(t *testing.T) {
	candidates := []models.ProblemRecord{
		rec(3, "x", 0.5, 0.5, 0),
		rec(1, "x", 0.5, 0.5, 0),
		rec(2, "x", 0.5, 0.5, 0),
	}
	first := ids(RankList("x", candidates))
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, ids(RankList("x", candidates)))
	}
	assert.Equal(t, []int64{1, 2, 3}, first)
}

func TestBest(t *testing.T) {
	_, ok := Best(nil)
	assert.False(t, ok)

	t.Run("ignores usage and exact match", func(t *testing.T) {
		best, ok := Best([]models.ProblemRecord{
			rec(1, "q", 0.7, 0.9, 1000),
			rec(2, "other", 0.9, 0.1, 0),
		})
		require.True(t, ok)
		assert.Equal(t, int64(2), best.ID)
	})

	t.Run("success rate breaks confidence tie", func(t *testing.T) {
		best, _ := Best([]models.ProblemRecord{
			rec(1, "a", 0.9, 0.5, 0),
			rec(2, "b", 0.9, 0.6, 0),
		})
		assert.Equal(t, int64(2), best.ID)
	})

	t.Run("lowest id on full tie", func(t *testing.T) {
		best, _ := Best([]models.ProblemRecord{
			rec(7, "a", 0.9, 0.5, 0),
			rec(3, "b", 0.9, 0.5, 0),
			rec(5, "c", 0.9, 0.5, 0),
		})
		assert.Equal(t, int64(3), best.ID)
	})
}
