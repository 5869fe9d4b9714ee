package reranker

import (
	"fmt"

	"github.com/pkoukk/tiktoken-go"
)

// DefaultTokenEncoding is used when a token budget is set without an encoding
const DefaultTokenEncoding = "cl100k_base"

// TokenLimiter cuts document texts down to a token budget.
// A nil limiter leaves texts untouched.
type TokenLimiter struct {
	encoding  *tiktoken.Tiktoken
	maxTokens int
}

// NewTokenLimiter creates a limiter; maxTokens <= 0 disables it and returns nil
func NewTokenLimiter(encodingName string, maxTokens int) (*TokenLimiter, error) {
	if maxTokens <= 0 {
		return nil, nil
	}
	if encodingName == "" {
		encodingName = DefaultTokenEncoding
	}

	encoding, err := tiktoken.GetEncoding(encodingName)
	if err != nil {
		return nil, fmt.Errorf("failed to get encoding %s: %w", encodingName, err)
	}

	return &TokenLimiter{
		encoding:  encoding,
		maxTokens: maxTokens,
	}, nil
}

// Truncate returns text limited to the token budget
func (l *TokenLimiter) Truncate(text string) string {
	if l == nil || text == "" {
		return text
	}

	tokens := l.encoding.Encode(text, nil, nil)
	if len(tokens) <= l.maxTokens {
		return text
	}
	return l.encoding.Decode(tokens[:l.maxTokens])
}
