package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/khanglvm/smartfix/internal/models"
)

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name  string
		reply string
		want  string
	}{
		{"plain", ` {"a":1} `, `{"a":1}`},
		{"json fence", "Here you go:\n```json\n{\"a\":1}\n```\nthanks", `{"a":1}`},
		{"bare fence", "```\n{\"a\":1}\n```", `{"a":1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, extractJSON(tt.reply))
		})
	}
}

func TestParseAnalysis_NormalizesSteps(t *testing.T) {
	reply := "```json\n" + `{
		"issue": "Router overheating",
		"possible_causes": ["Dust", "Poor ventilation"],
		"confidence_score": 0.82,
		"recommended_steps": [
			"Unplug the router",
			{"step_number": 7, "description": "Clean the vents"},
			{"title": "ignored"},
			"   "
		],
		"additional_info": "Consider a cooling stand"
	}` + "\n```"

	analysis, err := parseAnalysis(reply)
	require.NoError(t, err)
	assert.Equal(t, "Router overheating", analysis.Issue)
	assert.Equal(t, []string{"Dust", "Poor ventilation"}, analysis.PossibleCauses)
	assert.InDelta(t, 0.82, analysis.ConfidenceScore, 1e-9)
	assert.Equal(t, []models.Step{
		{StepNumber: 1, Description: "Unplug the router"},
		{StepNumber: 2, Description: "Clean the vents"},
	}, analysis.RecommendedSteps)
	assert.Equal(t, "Consider a cooling stand", analysis.AdditionalInfo)
}

func TestParseAnalysis_Defaults(t *testing.T) {
	analysis, err := parseAnalysis(`{"issue": "X", "possible_causes": "single cause", "confidence_score": 4}`)
	require.NoError(t, err)
	assert.Equal(t, []string{"single cause"}, analysis.PossibleCauses)
	assert.Equal(t, 1.0, analysis.ConfidenceScore)
	assert.Empty(t, analysis.RecommendedSteps)

	analysis, err = parseAnalysis(`{"issue": "X"}`)
	require.NoError(t, err)
	assert.Equal(t, 0.5, analysis.ConfidenceScore)
}

func TestParseAnalysis_Errors(t *testing.T) {
	_, err := parseAnalysis("I think your TV is broken.")
	assert.Error(t, err)

	_, err = parseAnalysis(`{"possible_causes": []}`)
	assert.Error(t, err)
}

func TestParseImageExtraction(t *testing.T) {
	got, err := parseImageExtraction(`{"extracted_text": " E-201 overheating ", "error_codes": ["E-201"]}`)
	require.NoError(t, err)
	assert.Equal(t, "E-201 overheating", got.Text)
	assert.Equal(t, []string{"E-201"}, got.ErrorCodes)

	got, err = parseImageExtraction(`{"extracted_text": "nothing"}`)
	require.NoError(t, err)
	assert.NotNil(t, got.ErrorCodes)
}
