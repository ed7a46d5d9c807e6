package brain

import (
	"strings"

	"github.com/khanglvm/smartfix/internal/models"
)

// Defaults for manually added records.
const (
	DefaultRecordTag        = "unknown"
	DefaultRecordConfidence = 0.5
	DefaultRecordSuccess    = 0.5
)

// RecordInput is a manually submitted solution. Omitted scores and tags take
// the defaults above.
type RecordInput struct {
	ProblemText     string   `json:"problem_text"`
	Symptoms        string   `json:"symptoms"`
	ProblemType     string   `json:"problem_type"`
	DeviceCategory  string   `json:"device_category"`
	ErrorCodes      []string `json:"error_codes"`
	SolutionSteps   []string `json:"solution_steps"`
	ConfidenceScore *float64 `json:"confidence_score"`
	SuccessRate     *float64 `json:"success_rate"`
}

// Record converts the input to a ProblemRecord.
func (in RecordInput) Record() models.ProblemRecord {
	rec := models.ProblemRecord{
		ProblemText:     strings.TrimSpace(in.ProblemText),
		Symptoms:        strings.TrimSpace(in.Symptoms),
		ProblemType:     orDefault(in.ProblemType, DefaultRecordTag),
		DeviceCategory:  orDefault(in.DeviceCategory, DefaultRecordTag),
		ErrorCodes:      []string{},
		SolutionSteps:   []string{},
		ConfidenceScore: DefaultRecordConfidence,
		SuccessRate:     DefaultRecordSuccess,
	}
	for _, code := range in.ErrorCodes {
		if code = strings.TrimSpace(code); code != "" {
			rec.ErrorCodes = append(rec.ErrorCodes, code)
		}
	}
	for _, step := range in.SolutionSteps {
		if step = strings.TrimSpace(step); step != "" {
			rec.SolutionSteps = append(rec.SolutionSteps, step)
		}
	}
	if in.ConfidenceScore != nil {
		rec.ConfidenceScore = *in.ConfidenceScore
	}
	if in.SuccessRate != nil {
		rec.SuccessRate = *in.SuccessRate
	}
	return rec
}

func orDefault(v, def string) string {
	if v = strings.TrimSpace(v); v != "" {
		return v
	}
	return def
}
