package biz

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/lk2023060901/rerank-gateway/internal/pkg/logger"
	"github.com/lk2023060901/rerank-gateway/internal/pkg/workerpool"
	"github.com/lk2023060901/rerank-gateway/internal/rerank/cache"
	"github.com/lk2023060901/rerank-gateway/internal/rerank/document"
	"github.com/lk2023060901/rerank-gateway/internal/rerank/processor"
	"github.com/lk2023060901/rerank-gateway/internal/rerank/reranker"
	"github.com/lk2023060901/rerank-gateway/internal/rerank/types"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// ErrItemNotRun marks a batch item that never completed
var ErrItemNotRun = errors.New("batch item was not run")

// BackendResolver selects the backend of a call; an empty ID selects the default
type BackendResolver interface {
	Get(id types.BackendID) (reranker.Backend, error)
}

// ResultCache stores fully processed result lists by fingerprint
type ResultCache interface {
	Get(key string, ttl time.Duration) ([]types.ScoredResult, bool)
	Peek(key string, ttl time.Duration) ([]types.ScoredResult, bool)
	Put(key string, results []types.ScoredResult)
	Clear()
	Stats() cache.Stats
}

// RerankRequest is a single rerank call
type RerankRequest struct {
	Query     string
	Documents []types.Document
	Backend   types.BackendID
	Policy    types.Policy
}

// Validate validates the request before any network activity
func (r *RerankRequest) Validate() error {
	if strings.TrimSpace(r.Query) == "" {
		return types.NewValidationError("query", "must not be empty")
	}
	if r.Documents == nil {
		return types.NewValidationError("documents", "must be a list")
	}
	if r.Backend != "" && !r.Backend.Valid() {
		return types.NewValidationError("backend", fmt.Sprintf("unknown backend %q", r.Backend))
	}
	return r.Policy.Validate()
}

// BatchResult is the outcome of one batch item
type BatchResult struct {
	Index   int
	Results []types.ScoredResult
	Err     error
}

// Options configures a RerankUseCase
type Options struct {
	// SingleFlight collapses concurrent identical cache-enabled calls into one remote call
	SingleFlight bool
}

// RerankUseCase contains the rerank orchestration: cache lookup, remote call,
// normalization, cache store and per-call filtering
type RerankUseCase struct {
	backends BackendResolver
	cache    ResultCache
	pool     *workerpool.Pool
	flight   singleflight.Group
	opts     Options
	logger   *logger.Logger
}

// NewRerankUseCase creates a new rerank use case
func NewRerankUseCase(backends BackendResolver, resultCache ResultCache, pool *workerpool.Pool, opts Options, lgr *logger.Logger) *RerankUseCase {
	if lgr == nil {
		lgr = logger.L()
	}
	return &RerankUseCase{
		backends: backends,
		cache:    resultCache,
		pool:     pool,
		opts:     opts,
		logger:   lgr,
	}
}

// Rerank scores, sorts, filters and truncates the request documents
func (uc *RerankUseCase) Rerank(ctx context.Context, req *RerankRequest) ([]types.ScoredResult, error) {
	if req == nil {
		return nil, types.NewValidationError("query", "must not be empty")
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	backend, err := uc.backends.Get(req.Backend)
	if err != nil {
		if errors.Is(err, types.ErrUnknownBackend) {
			return nil, types.NewValidationError("backend", err.Error())
		}
		return nil, err
	}

	if len(req.Documents) == 0 {
		return []types.ScoredResult{}, nil
	}

	lgr := uc.logger.WithContext(ctx).With(
		zap.String("backend", string(backend.ID())),
		zap.String("model", backend.Model()))
	policy := req.Policy

	if !policy.EnableCache {
		results, err := uc.fetch(ctx, backend, req, lgr)
		if err != nil {
			return nil, err
		}
		return uc.finish(results, policy, lgr), nil
	}

	key := cache.Fingerprint(backend.ID(), backend.Model(), req.Query, req.Documents)
	if cached, ok := uc.cache.Get(key, policy.TTL()); ok {
		lgr.Debug("rerank cache hit", zap.String("cache_key", key))
		return uc.finish(cached, policy, lgr), nil
	}

	var results []types.ScoredResult
	if uc.opts.SingleFlight {
		results, err = uc.fetchShared(ctx, key, backend, req, lgr)
	} else {
		results, err = uc.fetchAndStore(ctx, key, backend, req, lgr)
	}
	if err != nil {
		return nil, err
	}

	return uc.finish(results, policy, lgr), nil
}

// fetchShared lets one caller per key and top_n do the remote call; the
// others wait for it unless their own context ends first. The shared call is
// not cancelled with the caller that started it, the backend's HTTP timeout
// bounds it instead.
func (uc *RerankUseCase) fetchShared(ctx context.Context, key string, backend reranker.Backend, req *RerankRequest, lgr *logger.Logger) ([]types.ScoredResult, error) {
	topN := reranker.TopN(req.Policy.TopK, len(req.Documents))
	flightKey := key + ":" + strconv.Itoa(topN)

	ch := uc.flight.DoChan(flightKey, func() (interface{}, error) {
		// a flight for the same key may have completed since our miss
		if cached, ok := uc.cache.Peek(key, req.Policy.TTL()); ok {
			return cached, nil
		}
		return uc.fetchAndStore(context.WithoutCancel(ctx), key, backend, req, lgr)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		if res.Shared {
			lgr.Debug("joined in-flight rerank request", zap.String("cache_key", key))
		}
		return res.Val.([]types.ScoredResult), nil
	}
}

func (uc *RerankUseCase) fetchAndStore(ctx context.Context, key string, backend reranker.Backend, req *RerankRequest, lgr *logger.Logger) ([]types.ScoredResult, error) {
	results, err := uc.fetch(ctx, backend, req, lgr)
	if err != nil {
		return nil, err
	}
	uc.cache.Put(key, results)
	return results, nil
}

// fetch performs the remote call and normalizes its response
func (uc *RerankUseCase) fetch(ctx context.Context, backend reranker.Backend, req *RerankRequest, lgr *logger.Logger) ([]types.ScoredResult, error) {
	texts := document.ExtractTexts(req.Documents)
	topN := reranker.TopN(req.Policy.TopK, len(texts))

	start := time.Now()
	raw, err := backend.Rerank(ctx, req.Query, texts, topN)
	if err != nil {
		lgr.Error("rerank request failed", zap.Error(err))
		return nil, fmt.Errorf("failed to rerank documents: %w", err)
	}

	results, err := processor.Normalize(raw, req.Documents, lgr)
	if err != nil {
		lgr.Error("invalid rerank response", zap.Error(err))
		return nil, err
	}

	lgr.Info("reranked documents",
		zap.Int("original_count", len(req.Documents)),
		zap.Int("reranked_count", len(results)),
		zap.Int("top_n", topN),
		zap.Duration("took", time.Since(start)))

	return results, nil
}

func (uc *RerankUseCase) finish(results []types.ScoredResult, policy types.Policy, lgr *logger.Logger) []types.ScoredResult {
	out := processor.Apply(results, policy.Threshold, policy.TopK, policy.IncludeOriginalScores)
	lgr.Debug("applied rerank policy",
		zap.Float64("threshold", policy.Threshold),
		zap.Int("top_k", policy.TopK),
		zap.Int("returned", len(out)))
	return out
}

// RerankBatch reranks every request on the worker pool. A failing item only
// affects its own BatchResult; the returned error is the context error, if any.
func (uc *RerankUseCase) RerankBatch(ctx context.Context, reqs []*RerankRequest) ([]*BatchResult, error) {
	return uc.RerankBatchEach(ctx, reqs, nil)
}

// RerankBatchEach is RerankBatch with a callback invoked once per item as soon
// as it is finished. onItem may be called concurrently from pool workers.
func (uc *RerankUseCase) RerankBatchEach(ctx context.Context, reqs []*RerankRequest, onItem func(*BatchResult)) ([]*BatchResult, error) {
	out := make([]*BatchResult, len(reqs))
	report := func(r *BatchResult) {
		if onItem != nil {
			onItem(r)
		}
	}

	run := func(ctx context.Context, i int) {
		results, err := uc.Rerank(ctx, reqs[i])
		if err != nil {
			err = fmt.Errorf("item %d: %w", i, err)
		}
		out[i] = &BatchResult{Index: i, Results: results, Err: err}
		report(out[i])
	}

	var runErr error
	if uc.pool == nil {
		for i := range reqs {
			if runErr = ctx.Err(); runErr != nil {
				break
			}
			run(ctx, i)
		}
	} else {
		runErr = uc.pool.Run(ctx, len(reqs), run)
	}

	for i := range out {
		if out[i] != nil {
			continue
		}
		err := runErr
		if err == nil {
			err = ErrItemNotRun
		}
		out[i] = &BatchResult{Index: i, Err: fmt.Errorf("item %d: %w", i, err)}
		report(out[i])
	}

	return out, runErr
}

// ClearCache drops every cached result list
func (uc *RerankUseCase) ClearCache() {
	uc.cache.Clear()
	uc.logger.Info("rerank cache cleared")
}

// CacheStats returns the cache counters
func (uc *RerankUseCase) CacheStats() cache.Stats {
	return uc.cache.Stats()
}
