// Package processor turns a raw backend response into the ordered, filtered
// list of scored caller documents.
package processor

import (
	"fmt"
	"math"
	"sort"

	"github.com/lk2023060901/rerank-gateway/internal/pkg/logger"
	"github.com/lk2023060901/rerank-gateway/internal/rerank/types"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

// NoLimit disables topK truncation in Apply
const NoLimit = -1

// Normalize parses the raw response body of any supported backend and maps
// every valid entry back to its caller document. The score is relevance_score,
// then score, then 0; a literal 0 is treated like a missing value. Entries with
// a missing, non-integer, negative or out-of-range index are skipped. The prior
// "score" field of each document is kept as OriginalScore. The result is sorted
// by descending score, ties keep response order.
func Normalize(raw []byte, docs []types.Document, lgr *logger.Logger) ([]types.ScoredResult, error) {
	if lgr == nil {
		lgr = logger.L()
	}

	if !gjson.ValidBytes(raw) {
		return nil, fmt.Errorf("%w: response is not valid JSON", types.ErrInvalidResults)
	}

	entries := gjson.GetBytes(raw, "results")
	if !entries.IsArray() {
		return nil, fmt.Errorf("%w: response has no results array", types.ErrInvalidResults)
	}

	items := entries.Array()
	results := make([]types.ScoredResult, 0, len(items))
	for pos, item := range items {
		index, ok := parseIndex(item.Get("index"), len(docs))
		if !ok {
			lgr.Warn("skipping rerank result with invalid index",
				zap.Int("position", pos),
				zap.String("index", item.Get("index").Raw),
				zap.Int("documents", len(docs)))
			continue
		}

		result := types.ScoredResult{
			Document: docs[index],
			Score:    parseScore(item),
			Index:    index,
		}
		if prior, ok := docs[index].PriorScore(); ok {
			result.OriginalScore = prior
		}
		results = append(results, result)
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	return results, nil
}

// Apply filters results below threshold, truncates to topK and returns copies.
// OriginalScore is only kept when includeOriginalScores is set.
func Apply(results []types.ScoredResult, threshold float64, topK int, includeOriginalScores bool) []types.ScoredResult {
	out := make([]types.ScoredResult, 0, len(results))
	for _, r := range results {
		if r.Score < threshold {
			continue
		}
		if topK != NoLimit && len(out) >= topK {
			break
		}

		c := r.Clone()
		if !includeOriginalScores {
			c.OriginalScore = nil
		}
		out = append(out, c)
	}
	return out
}

// Process normalizes a raw response and applies the threshold without topK
func Process(raw []byte, docs []types.Document, threshold float64, includeOriginalScores bool, lgr *logger.Logger) ([]types.ScoredResult, error) {
	results, err := Normalize(raw, docs, lgr)
	if err != nil {
		return nil, err
	}
	return Apply(results, threshold, NoLimit, includeOriginalScores), nil
}

func parseIndex(v gjson.Result, count int) (int, bool) {
	if v.Type != gjson.Number {
		return 0, false
	}
	f := v.Float()
	if math.IsNaN(f) || f != math.Trunc(f) || f < 0 || f >= float64(count) {
		return 0, false
	}
	return int(f), true
}

func parseScore(item gjson.Result) float64 {
	for _, field := range []string{"relevance_score", "score"} {
		v := item.Get(field)
		if v.Type != gjson.Number {
			continue
		}
		if f := v.Float(); f != 0 && !math.IsNaN(f) {
			return f
		}
	}
	return 0
}
