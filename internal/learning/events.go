/*
Package learning records interaction outcomes and feeds them back into the
knowledge store.

Every answered query is logged so feedback can find the record it resolved
to. Interactions are written as optimistic learning events, confident fresh
analyses are promoted to new records, and explicit feedback appends a
corrected event before the record's success rate is recomputed.
*/
package learning

import (
	"github.com/khanglvm/smartfix/internal/models"
)

// Response sources, as reported to callers and stored in the query log.
const (
	SourceMemory        = "memory"
	SourceFreshAnalysis = "fresh_analysis"
	SourceError         = "error"
)

// Interaction describes one answered query.
type Interaction struct {
	QueryID        string
	QueryText      string
	InputType      string
	DeviceCategory string

	// Source is the response source tag.
	Source string

	// MatchedRecordID is the record whose stored solution was the primary answer.
	MatchedRecordID *int64

	// Issue, Confidence and Steps describe the primary answer.
	Issue      string
	Confidence float64
	Steps      []string
}

func (in Interaction) queryRecord() models.QueryRecord {
	return models.QueryRecord{
		QueryID:         in.QueryID,
		QueryText:       in.QueryText,
		InputType:       in.InputType,
		DeviceCategory:  in.DeviceCategory,
		Source:          in.Source,
		MatchedRecordID: in.MatchedRecordID,
		Confidence:      in.Confidence,
	}
}

// interactionEvent is written optimistically as a success; feedback corrects it later.
func (in Interaction) interactionEvent() models.LearningEvent {
	return models.LearningEvent{
		QueryText:       in.QueryText,
		MatchedRecordID: in.MatchedRecordID,
		SolutionUsed:    in.Issue,
		Success:         true,
	}
}

// promotedRecord converts a fresh analysis into a new knowledge record.
func (in Interaction) promotedRecord() models.ProblemRecord {
	steps := make([]string, len(in.Steps))
	copy(steps, in.Steps)

	return models.ProblemRecord{
		ProblemText:     in.Issue,
		ProblemType:     "ai_generated",
		DeviceCategory:  "unknown",
		ErrorCodes:      []string{},
		Symptoms:        in.QueryText,
		SolutionSteps:   steps,
		ConfidenceScore: in.Confidence,
		SuccessRate:     PromotedSuccessPrior,
	}
}
