package types

import (
	"encoding/json"
	"maps"
)

// Marker fields appended to each reranked document
const (
	ResultFieldScore         = "_rerankScore"
	ResultFieldIndex         = "_originalIndex"
	ResultFieldOriginalScore = "_originalScore"
)

// ScoredResult is a caller document annotated with the relevance score
// the backend assigned to it and its position in the input list.
type ScoredResult struct {
	Document      Document
	Score         float64
	Index         int
	// OriginalScore is the document's prior "score" value, nil when absent
	OriginalScore any
}

// Clone returns a copy of the result. Like the document fields, the prior
// score value is copied shallowly.
func (r ScoredResult) Clone() ScoredResult {
	return r
}

// Fields returns the shallow-copied document fields merged with the marker fields
func (r ScoredResult) Fields() map[string]any {
	var out map[string]any
	if r.Document.Kind() == DocumentRecord {
		out = make(map[string]any, len(r.Document.Fields())+3)
		maps.Copy(out, r.Document.Fields())
	} else {
		out = map[string]any{FieldDocument: r.Document.Value()}
	}

	out[ResultFieldScore] = r.Score
	out[ResultFieldIndex] = r.Index
	if r.OriginalScore != nil {
		out[ResultFieldOriginalScore] = r.OriginalScore
	}
	return out
}

// MarshalJSON flattens the result into a single JSON object
func (r ScoredResult) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.Fields())
}

// CloneResults copies a result list so that callers never share entries
func CloneResults(results []ScoredResult) []ScoredResult {
	if results == nil {
		return nil
	}
	out := make([]ScoredResult, len(results))
	for i, r := range results {
		out[i] = r.Clone()
	}
	return out
}
