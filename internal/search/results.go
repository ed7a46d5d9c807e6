/*
Package search ranks stored problem records against a query.

It provides the tokenizer used for candidate matching, the two ordering rules
(ranked listing and single best pick), and a BM25 index over problem records
for related-problem suggestions.
*/
package search

// RelatedResult is a BM25 hit from the related-problems index.
type RelatedResult struct {
	RecordID       int64   `json:"record_id"`
	ProblemText    string  `json:"problem_text"`
	DeviceCategory string  `json:"device_category"`
	Score          float64 `json:"score"`
}

// problemDocument is a record as stored in the index.
type problemDocument struct {
	ProblemText    string `json:"problem_text"`
	Symptoms       string `json:"symptoms"`
	ProblemType    string `json:"problem_type"`
	DeviceCategory string `json:"device_category"`
}
