package reranker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/lk2023060901/rerank-gateway/internal/pkg/logger"
	"github.com/lk2023060901/rerank-gateway/internal/rerank/types"
	"go.uber.org/zap"
)

// BaseBackend provides the HTTP plumbing shared by all backends
type BaseBackend struct {
	id         types.BackendID
	endpoint   string
	model      string
	httpClient *http.Client
	logger     *logger.Logger

	mu       sync.Mutex
	rawKeys  string
	apiKeys  []string // Support multiple API keys for rotation
	keyIndex int
}

// NewBaseBackend creates a new base backend
func NewBaseBackend(id types.BackendID, endpoint, model string, timeout time.Duration, lgr *logger.Logger) *BaseBackend {
	if lgr == nil {
		lgr = logger.L()
	}

	return &BaseBackend{
		id:       id,
		endpoint: endpoint,
		model:    model,
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		logger: lgr.With(zap.String("backend", string(id))),
	}
}

// ID returns the backend ID
func (b *BaseBackend) ID() types.BackendID {
	return b.id
}

// Model returns the model name
func (b *BaseBackend) Model() string {
	return b.model
}

// Endpoint returns the rerank endpoint URL
func (b *BaseBackend) Endpoint() string {
	return b.endpoint
}

// SetAPIKeys sets the rotation list from a comma-separated key string.
// Setting the same string again keeps the rotation position.
func (b *BaseBackend) SetAPIKeys(raw string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if raw == b.rawKeys && b.apiKeys != nil {
		return
	}
	b.rawKeys = raw
	b.apiKeys = splitAPIKeys(raw)
	b.keyIndex = 0
}

// NextAPIKey returns the current API key and advances the rotation
func (b *BaseBackend) NextAPIKey() string {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.apiKeys) == 0 {
		return ""
	}

	key := b.apiKeys[b.keyIndex]
	b.keyIndex = (b.keyIndex + 1) % len(b.apiKeys)
	return key
}

func splitAPIKeys(raw string) []string {
	var keys []string
	for _, k := range strings.Split(raw, ",") {
		if k = strings.TrimSpace(k); k != "" {
			keys = append(keys, k)
		}
	}
	return keys
}

// postJSON sends body to the endpoint once and returns the raw response body.
// A non-2xx status yields *types.UpstreamError, any failure before a status
// was read yields *types.TransportError.
func (b *BaseBackend) postJSON(ctx context.Context, apiKey string, body any) ([]byte, error) {
	reqBody, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, b.endpoint, bytes.NewReader(reqBody))
	if err != nil {
		return nil, &types.TransportError{Backend: b.id, Err: fmt.Errorf("failed to create request: %w", err)}
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("User-Agent", "rerank-gateway/1.0")
	if apiKey != "" {
		httpReq.Header.Set("Authorization", fmt.Sprintf("Bearer %s", apiKey))
	}

	start := time.Now()
	resp, err := b.httpClient.Do(httpReq)
	if err != nil {
		b.logger.Warn("rerank request failed",
			zap.String("model", b.model),
			zap.Error(err))
		return nil, &types.TransportError{Backend: b.id, Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &types.TransportError{Backend: b.id, Err: fmt.Errorf("failed to read response: %w", err)}
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		b.logger.Warn("rerank API returned error status",
			zap.String("model", b.model),
			zap.Int("status", resp.StatusCode))
		return nil, &types.UpstreamError{
			Backend:    b.id,
			StatusCode: resp.StatusCode,
			Body:       string(respBody),
		}
	}

	b.logger.Debug("rerank request completed",
		zap.String("model", b.model),
		zap.Int("status", resp.StatusCode),
		zap.Duration("took", time.Since(start)))

	return respBody, nil
}
