package types

import "time"

// BackendID identifies a remote reranking service
type BackendID string

const (
	// BackendOpenAICompatible is any endpoint speaking the /rerank JSON contract
	// with relevance_score results (vLLM, TEI, Jina, SiliconFlow, ...)
	BackendOpenAICompatible BackendID = "openai-compatible"
	// BackendCohere is the Cohere rerank API
	BackendCohere BackendID = "cohere"
)

// Valid reports whether the backend ID is a known backend
func (b BackendID) Valid() bool {
	return b == BackendOpenAICompatible || b == BackendCohere
}

// DefaultMaxCacheEntries is the bound of the result cache
const DefaultMaxCacheEntries = 1000

// Policy holds the per-call filtering and caching parameters.
// None of them are part of the cache key.
type Policy struct {
	TopK                  int     `json:"top_k" mapstructure:"top_k"`
	Threshold             float64 `json:"threshold" mapstructure:"threshold"`
	IncludeOriginalScores bool    `json:"include_original_scores" mapstructure:"include_original_scores"`
	EnableCache           bool    `json:"enable_cache" mapstructure:"enable_cache"`
	// CacheTTL is expressed in minutes
	CacheTTL int `json:"cache_ttl" mapstructure:"cache_ttl"`
}

// DefaultPolicy returns the policy used when a caller does not override it
func DefaultPolicy() Policy {
	return Policy{
		TopK:        10,
		Threshold:   0,
		EnableCache: true,
		CacheTTL:    60,
	}
}

// TTL returns the cache time-to-live as a duration
func (p Policy) TTL() time.Duration {
	return time.Duration(p.CacheTTL) * time.Minute
}

// Validate validates the policy values
func (p Policy) Validate() error {
	if p.TopK < 0 {
		return NewValidationError("top_k", "must be greater than or equal to 0")
	}
	if p.EnableCache && p.CacheTTL <= 0 {
		return NewValidationError("cache_ttl", "must be a positive number of minutes when caching is enabled")
	}
	return nil
}
