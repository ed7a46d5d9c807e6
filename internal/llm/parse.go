package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/khanglvm/smartfix/internal/models"
)

// extractJSON returns the JSON object in a model reply, stripping markdown fences.
func extractJSON(reply string) string {
	text := strings.TrimSpace(reply)

	if _, after, ok := strings.Cut(text, "```json"); ok {
		body, _, _ := strings.Cut(after, "```")
		return strings.TrimSpace(body)
	}
	if _, after, ok := strings.Cut(text, "```"); ok {
		body, _, _ := strings.Cut(after, "```")
		return strings.TrimSpace(body)
	}
	return text
}

// rawAnalysis accepts the loose shapes models produce.
type rawAnalysis struct {
	Issue            string            `json:"issue"`
	PossibleCauses   json.RawMessage   `json:"possible_causes"`
	RecommendedSteps []json.RawMessage `json:"recommended_steps"`
	ConfidenceScore  *float64          `json:"confidence_score"`
	AdditionalInfo   json.RawMessage   `json:"additional_info"`
}

// parseAnalysis decodes a model reply into an Analysis.
// Steps may be plain strings or objects; they are renumbered from 1 in order.
func parseAnalysis(reply string) (models.Analysis, error) {
	var raw rawAnalysis
	if err := json.Unmarshal([]byte(extractJSON(reply)), &raw); err != nil {
		return models.Analysis{}, fmt.Errorf("malformed analysis JSON: %w", err)
	}
	if strings.TrimSpace(raw.Issue) == "" {
		return models.Analysis{}, errors.New("analysis has no issue")
	}

	analysis := models.Analysis{
		Issue:            strings.TrimSpace(raw.Issue),
		PossibleCauses:   stringList(raw.PossibleCauses),
		RecommendedSteps: []models.Step{},
		ConfidenceScore:  0.5,
		AdditionalInfo:   looseString(raw.AdditionalInfo),
	}
	if raw.ConfidenceScore != nil {
		analysis.ConfidenceScore = models.ClampScore(*raw.ConfidenceScore)
	}

	for _, step := range raw.RecommendedSteps {
		description := stepDescription(step)
		if description == "" {
			continue
		}
		analysis.RecommendedSteps = append(analysis.RecommendedSteps, models.Step{
			StepNumber:  len(analysis.RecommendedSteps) + 1,
			Description: description,
		})
	}

	return analysis, nil
}

// parseImageExtraction decodes a vision reply.
func parseImageExtraction(reply string) (models.ImageExtraction, error) {
	var extraction models.ImageExtraction
	if err := json.Unmarshal([]byte(extractJSON(reply)), &extraction); err != nil {
		return models.ImageExtraction{}, fmt.Errorf("malformed image extraction JSON: %w", err)
	}
	extraction.Text = strings.TrimSpace(extraction.Text)
	if extraction.ErrorCodes == nil {
		extraction.ErrorCodes = []string{}
	}
	return extraction, nil
}

func stepDescription(raw json.RawMessage) string {
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return strings.TrimSpace(text)
	}
	var step struct {
		Description string `json:"description"`
	}
	if err := json.Unmarshal(raw, &step); err == nil {
		return strings.TrimSpace(step.Description)
	}
	return ""
}

// stringList accepts a JSON list of strings or a single string.
func stringList(raw json.RawMessage) []string {
	out := []string{}
	if len(raw) == 0 {
		return out
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		for _, s := range list {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
		return out
	}
	if s := looseString(raw); s != "" {
		out = append(out, s)
	}
	return out
}

// looseString accepts a JSON string, or a list of strings joined by spaces.
func looseString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		return strings.TrimSpace(strings.Join(list, " "))
	}
	return ""
}
