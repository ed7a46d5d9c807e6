package brain

import (
	"github.com/khanglvm/smartfix/internal/learning"
	"github.com/khanglvm/smartfix/internal/models"
	"github.com/khanglvm/smartfix/internal/search"
)

// Response is the answer to one query.
type Response struct {
	QueryID   string `json:"query_id"`
	QueryText string `json:"query_text"`

	// Source is learning.SourceMemory, learning.SourceFreshAnalysis or learning.SourceError.
	Source string `json:"source"`

	Solution Solution `json:"solution"`

	// Related lists similar stored problems. It never affects the answer.
	Related []search.RelatedResult `json:"related,omitempty"`
}

// Solution is the troubleshooting answer.
type Solution struct {
	Issue            string             `json:"issue"`
	PossibleCauses   []string           `json:"possible_causes"`
	ConfidenceScore  float64            `json:"confidence_score"`
	RecommendedSteps []models.Step      `json:"recommended_steps"`
	ExternalSources  []models.WebResult `json:"external_sources"`
	AdditionalInfo   string             `json:"additional_info"`

	// Memory is set when the answer came from, or was informed by, a stored record.
	Memory *MemoryInfo `json:"memory,omitempty"`

	// Error carries the triggering error for error responses.
	Error string `json:"error,omitempty"`
}

// MemoryInfo describes the stored record behind an answer.
type MemoryInfo struct {
	RecordID       int64    `json:"record_id"`
	SuccessRate    float64  `json:"success_rate"`
	UsageCount     int64    `json:"usage_count"`
	ProblemType    string   `json:"problem_type"`
	DeviceCategory string   `json:"device_category"`
	ErrorCodes     []string `json:"error_codes"`
}

const unknownIssue = "Unknown issue"

func memoryInfo(rec models.ProblemRecord) *MemoryInfo {
	codes := rec.ErrorCodes
	if codes == nil {
		codes = []string{}
	}
	return &MemoryInfo{
		RecordID:       rec.ID,
		SuccessRate:    rec.SuccessRate,
		UsageCount:     rec.UsageCount,
		ProblemType:    rec.ProblemType,
		DeviceCategory: rec.DeviceCategory,
		ErrorCodes:     codes,
	}
}

// formatMemory renders a stored record as a memory-sourced response.
func formatMemory(queryID, queryText string, rec models.ProblemRecord) Response {
	causes := []string{}
	if rec.Symptoms != "" {
		causes = append(causes, rec.Symptoms)
	}
	return Response{
		QueryID:   queryID,
		QueryText: queryText,
		Source:    learning.SourceMemory,
		Solution: Solution{
			Issue:            rec.ProblemText,
			PossibleCauses:   causes,
			ConfidenceScore:  rec.ConfidenceScore,
			RecommendedSteps: models.NumberSteps(rec.SolutionSteps),
			ExternalSources:  []models.WebResult{},
			Memory:           memoryInfo(rec),
		},
	}
}

// combine merges fresh results into a response. A stored record above the
// combine threshold stays primary and only gains external sources and
// additional info; otherwise the analysis is primary.
func combine(queryID, queryText string, stored *models.ProblemRecord, analysis models.Analysis, web []models.WebResult, threshold float64) Response {
	if stored != nil && stored.ConfidenceScore > threshold {
		resp := formatMemory(queryID, queryText, *stored)
		if len(web) > 0 {
			resp.Solution.ExternalSources = web
		}
		if analysis.AdditionalInfo != "" {
			resp.Solution.AdditionalInfo = analysis.AdditionalInfo
		}
		return resp
	}

	resp := Response{
		QueryID:   queryID,
		QueryText: queryText,
		Source:    learning.SourceFreshAnalysis,
		Solution: Solution{
			Issue:            analysis.Issue,
			PossibleCauses:   nonNilStrings(analysis.PossibleCauses),
			ConfidenceScore:  analysis.ConfidenceScore,
			RecommendedSteps: models.NumberSteps(models.StepDescriptions(analysis.RecommendedSteps)),
			ExternalSources:  nonNilWeb(web),
			AdditionalInfo:   analysis.AdditionalInfo,
		},
	}
	if stored != nil {
		resp.Solution.Memory = memoryInfo(*stored)
	}
	return resp
}

// errorResponse is the fixed low-confidence answer for failed requests.
func errorResponse(queryID, queryText string, err error) Response {
	return Response{
		QueryID:   queryID,
		QueryText: queryText,
		Source:    learning.SourceError,
		Solution: Solution{
			Issue:           "System Error",
			PossibleCauses:  []string{"Technical issue in processing", "Service unavailable"},
			ConfidenceScore: 0.1,
			RecommendedSteps: models.NumberSteps([]string{
				"Please try again later",
				"Contact support if the issue persists",
			}),
			ExternalSources: []models.WebResult{},
			Error:          err.Error(),
		},
	}
}

// neutralAnalysis stands in for a failed analysis branch.
func neutralAnalysis() models.Analysis {
	return models.Analysis{
		Issue:            unknownIssue,
		PossibleCauses:   []string{},
		RecommendedSteps: []models.Step{},
		ConfidenceScore:  0.5,
	}
}

// interaction describes the answer for the learner.
func (r Response) interaction(in models.Input) learning.Interaction {
	inputType := in.Type
	if inputType == "" {
		inputType = models.InputText
	}
	it := learning.Interaction{
		QueryID:        r.QueryID,
		QueryText:      r.QueryText,
		InputType:      inputType,
		DeviceCategory: in.DeviceCategory,
		Source:         r.Source,
		Issue:          r.Solution.Issue,
		Confidence:     r.Solution.ConfidenceScore,
		Steps:          models.StepDescriptions(r.Solution.RecommendedSteps),
	}
	if r.Source == learning.SourceMemory && r.Solution.Memory != nil {
		it.MatchedRecordID = models.Int64Ptr(r.Solution.Memory.RecordID)
	}
	return it
}

func nonNilStrings(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}


func nonNilWeb(s []models.WebResult) []models.WebResult {
	if s == nil {
		return []models.WebResult{}
	}
	return s
}
