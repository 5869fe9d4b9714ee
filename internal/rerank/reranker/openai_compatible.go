package reranker

import (
	"context"
	"fmt"

	"github.com/lk2023060901/rerank-gateway/internal/pkg/logger"
	"github.com/lk2023060901/rerank-gateway/internal/rerank/types"
	"go.uber.org/zap"
)

// OpenAICompatibleBackend talks to any endpoint that accepts
// {model, query, documents, top_n} and answers with relevance_score results
type OpenAICompatibleBackend struct {
	*BaseBackend
	template *Template
	limiter  *TokenLimiter
}

// NewOpenAICompatibleBackend creates a new OpenAI-compatible backend
func NewOpenAICompatibleBackend(cfg *Config, lgr *logger.Logger) (Backend, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	cfg.ID = types.BackendOpenAICompatible
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	template, err := NewTemplate(cfg.Template)
	if err != nil {
		return nil, err
	}

	limiter, err := NewTokenLimiter(cfg.TokenEncoding, cfg.MaxDocumentTokens)
	if err != nil {
		return nil, err
	}

	base := NewBaseBackend(types.BackendOpenAICompatible, cfg.Endpoint, cfg.Model, cfg.RequestTimeout(), lgr)
	base.SetAPIKeys(cfg.APIKey)

	return &OpenAICompatibleBackend{
		BaseBackend: base,
		template:    template,
		limiter:     limiter,
	}, nil
}

// Rerank implements Backend
func (b *OpenAICompatibleBackend) Rerank(ctx context.Context, query string, texts []string, topN int) ([]byte, error) {
	documents := make([]string, len(texts))
	for i, text := range texts {
		documents[i] = b.template.FormatDocument(b.limiter.Truncate(text))
	}

	b.logger.Debug("sending rerank request",
		zap.String("model", b.model),
		zap.Int("documents", len(documents)),
		zap.Int("top_n", topN))

	return b.postJSON(ctx, b.NextAPIKey(), rerankRequest{
		Model:     b.model,
		Query:     b.template.FormatQuery(query),
		Documents: documents,
		TopN:      topN,
	})
}
