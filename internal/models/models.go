/*
Package models defines the records shared by the knowledge store, the ranker
and the learning loop.

A ProblemRecord is one unit of stored troubleshooting knowledge. LearningEvents
form an append-only log that is the sole input to success-rate recomputation,
and QueryRecords remember which record a processed query resolved to so that
later feedback can find it.
*/
package models

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

// ProblemRecord is a stored problem with its ordered solution steps.
type ProblemRecord struct {
	// ID is assigned by the store on insert and never changes.
	ID int64 `json:"id"`

	// Fingerprint is the digest of the normalized problem text; unique per store.
	Fingerprint string `json:"fingerprint"`

	// ProblemText describes the problem.
	ProblemText string `json:"problem_text"`

	// Symptoms lists observable symptoms as free text.
	Symptoms string `json:"symptoms"`

	// ProblemType is a coarse classification tag (e.g. "display", "network").
	ProblemType string `json:"problem_type"`

	// DeviceCategory is a coarse device tag (e.g. "television", "smartphone").
	DeviceCategory string `json:"device_category"`

	// ErrorCodes are tokens associated with the problem.
	ErrorCodes []string `json:"error_codes"`

	// SolutionSteps are instructions in execution order.
	SolutionSteps []string `json:"solution_steps"`

	// ConfidenceScore is the a priori trust in the record, in [0,1].
	ConfidenceScore float64 `json:"confidence_score"`

	// SuccessRate is the empirical outcome trust, in [0,1].
	SuccessRate float64 `json:"success_rate"`

	// UsageCount counts how often the record was selected as best match.
	UsageCount int64 `json:"usage_count"`

	// LastUsed is when the record was last selected, nil if never.
	LastUsed *time.Time `json:"last_used,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// LearningEvent is one immutable interaction outcome.
type LearningEvent struct {
	ID int64 `json:"id"`

	// QueryText is the normalized query the event belongs to.
	QueryText string `json:"query_text"`

	// MatchedRecordID references the record the outcome applies to, nil when no record matched.
	MatchedRecordID *int64 `json:"matched_record_id,omitempty"`

	// SolutionUsed is a short description of the answer given.
	SolutionUsed string `json:"solution_used"`

	// Success is the outcome. Interaction events are written optimistically as true.
	Success bool `json:"success"`

	// UserFeedbackScore is an optional 1-5 rating.
	UserFeedbackScore *int `json:"user_feedback_score,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// QueryRecord remembers how a processed query was answered.
type QueryRecord struct {
	// QueryID is the identifier handed back to callers for feedback.
	QueryID string `json:"query_id"`

	QueryText      string `json:"query_text"`
	InputType      string `json:"input_type"`
	DeviceCategory string `json:"device_category,omitempty"`

	// Source is the response source tag (memory, fresh_analysis, error).
	Source string `json:"source"`

	// MatchedRecordID is the record whose stored solution was returned as primary.
	MatchedRecordID *int64 `json:"matched_record_id,omitempty"`

	Confidence float64 `json:"confidence"`
	CreatedAt  time.Time `json:"created_at"`

	// FeedbackAt is set once feedback has been accepted for the query.
	FeedbackAt *time.Time `json:"feedback_at,omitempty"`
}

// Stats aggregates counters over the store.
type Stats struct {
	TotalProblems            int64   `json:"total_problems"`
	AverageConfidence        float64 `json:"average_confidence"`
	AverageSuccessRate       float64 `json:"average_success_rate"`
	TotalLearningEvents      int64   `json:"total_learning_events"`
	SuccessfulLearningEvents int64   `json:"successful_learning_events"`
	LearningSuccessRate      float64 `json:"learning_success_rate"`
	TotalQueries             int64   `json:"total_queries"`
	QueriesWithFeedback      int64   `json:"queries_with_feedback"`
}

// Fingerprint returns the uniqueness key for a problem text.
// Matching is case-insensitive and ignores surrounding whitespace.
func Fingerprint(problemText string) string {
	normalized := strings.ToLower(strings.TrimSpace(problemText))
	hash := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(hash[:])
}

// ClampScore limits a score to [0,1].
func ClampScore(v float64) float64 {
	switch {
	case v != v: // NaN
		return 0
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}

// Int64Ptr returns a pointer to v.
func Int64Ptr(v int64) *int64 {
	return &v
}
