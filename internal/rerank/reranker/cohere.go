package reranker

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/lk2023060901/rerank-gateway/internal/pkg/logger"
	"github.com/lk2023060901/rerank-gateway/internal/rerank/types"
	"go.uber.org/zap"
)

const (
	// CohereEndpoint is the Cohere rerank API
	CohereEndpoint = "https://api.cohere.ai/v1/rerank"
	// DefaultCohereModel is used when no model is configured
	DefaultCohereModel = "rerank-english-v3.0"
	// CohereModelCustom selects CustomModel
	CohereModelCustom = "custom"
)

// CohereModels are the preset model choices
var CohereModels = []string{
	"rerank-english-v3.0",
	"rerank-multilingual-v3.0",
	"rerank-english-v2.0",
	"rerank-multilingual-v2.0",
}

// ResolveCohereModel returns the model name to send. An empty model means
// the default, "custom" means customModel, anything else is used as is.
func ResolveCohereModel(model, customModel string) (string, error) {
	model = strings.TrimSpace(model)
	switch model {
	case "":
		return DefaultCohereModel, nil
	case CohereModelCustom:
		customModel = strings.TrimSpace(customModel)
		if customModel == "" {
			return "", fmt.Errorf("%w: custom_model is required when model is %q", ErrMissingModel, CohereModelCustom)
		}
		return customModel, nil
	default:
		return model, nil
	}
}

// CohereBackend implements the Cohere rerank API
type CohereBackend struct {
	*BaseBackend
	credentials CredentialStore
}

// NewCohereBackend creates a new Cohere backend
func NewCohereBackend(cfg *Config, lgr *logger.Logger) (Backend, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	cfg.ID = types.BackendCohere
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	model, _ := ResolveCohereModel(cfg.Model, cfg.CustomModel)

	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = CohereEndpoint
	}

	credentials := cfg.Credentials
	if credentials == nil {
		credentials = ChainCredentials{
			StaticCredentials{
				CredentialCohere:       cfg.APIKey,
				CredentialCohereLegacy: cfg.LegacyAPIKey,
			},
			EnvCredentials{},
		}
	}

	base := NewBaseBackend(types.BackendCohere, endpoint, model, cfg.RequestTimeout(), lgr)
	if !slices.Contains(CohereModels, model) {
		base.logger.Info("using custom cohere model", zap.String("model", model))
	}

	return &CohereBackend{
		BaseBackend: base,
		credentials: credentials,
	}, nil
}

// Rerank implements Backend. The credential is resolved on every call so that
// a rotated secret is picked up without a restart.
func (b *CohereBackend) Rerank(ctx context.Context, query string, texts []string, topN int) ([]byte, error) {
	apiKey, err := ResolveCredential(b.credentials, CredentialCohere, CredentialCohereLegacy)
	if err != nil {
		b.logger.Error("cohere credential unavailable", zap.Error(err))
		return nil, err
	}

	// a binding may hold several comma-separated keys
	b.SetAPIKeys(apiKey)

	return b.postJSON(ctx, b.NextAPIKey(), rerankRequest{
		Model:     b.model,
		Query:     query,
		Documents: texts,
		TopN:      topN,
	})
}
