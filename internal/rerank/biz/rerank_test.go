package biz

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/lk2023060901/rerank-gateway/internal/pkg/workerpool"
	"github.com/lk2023060901/rerank-gateway/internal/rerank/cache"
	"github.com/lk2023060901/rerank-gateway/internal/rerank/reranker"
	"github.com/lk2023060901/rerank-gateway/internal/rerank/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBackend struct {
	id       types.BackendID
	model    string
	response []byte
	err      error
	delay    time.Duration

	mu        sync.Mutex
	calls     int
	lastTexts []string
	lastTopN  int
}

func (f *fakeBackend) ID() types.BackendID { return f.id }
func (f *fakeBackend) Model() string       { return f.model }

func (f *fakeBackend) Rerank(ctx context.Context, query string, texts []string, topN int) ([]byte, error) {
	f.mu.Lock()
	f.calls++
	f.lastTexts = texts
	f.lastTopN = topN
	response, err := f.response, f.err
	f.mu.Unlock()

	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return response, err
}

func (f *fakeBackend) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeBackend) set(response []byte, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.response, f.err = response, err
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

const threeResults = `{"results":[{"index":1,"relevance_score":0.9},{"index":0,"relevance_score":0.4},{"index":2,"relevance_score":0.1}]}`

func threeDocs() []types.Document {
	return []types.Document{
		types.NewRecord(map[string]any{"content": "Machine learning basics", "score": 0.2}),
		types.NewRecord(map[string]any{"content": "Artificial intelligence overview"}),
		types.NewRecord(map[string]any{"content": "Cooking recipes"}),
	}
}

func newTestUseCase(t *testing.T, backend *fakeBackend, opts Options) (*RerankUseCase, *clock, *cache.ResultCache) {
	t.Helper()

	registry, err := reranker.NewRegistry(backend.id, backend)
	require.NoError(t, err)

	clk := &clock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	resultCache := cache.New(cache.WithClock(clk.Now))

	return NewRerankUseCase(registry, resultCache, nil, opts, nil), clk, resultCache
}

func newRequest(policy types.Policy) *RerankRequest {
	return &RerankRequest{
		Query:     "artificial intelligence",
		Documents: threeDocs(),
		Policy:    policy,
	}
}

func indexes(results []types.ScoredResult) []int {
	out := make([]int, len(results))
	for i, r := range results {
		out[i] = r.Index
	}
	return out
}

func TestRerank_EndToEnd(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(threeResults))
	}))
	defer server.Close()

	backend, err := reranker.NewOpenAICompatibleBackend(&reranker.Config{
		Endpoint: server.URL,
		Model:    "bge-reranker-v2-m3",
	}, nil)
	require.NoError(t, err)
	registry, err := reranker.NewRegistry(types.BackendOpenAICompatible, backend)
	require.NoError(t, err)

	uc := NewRerankUseCase(registry, cache.New(), nil, Options{SingleFlight: true}, nil)

	policy := types.DefaultPolicy()
	policy.Threshold = 0.3

	results, err := uc.Rerank(context.Background(), newRequest(policy))
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, 1, results[0].Index)
	assert.Equal(t, 0.9, results[0].Score)
	assert.Equal(t, "Artificial intelligence overview", results[0].Document.Fields()["content"])
	assert.Equal(t, 0, results[1].Index)
	assert.Equal(t, 0.4, results[1].Score)
	assert.Nil(t, results[1].OriginalScore)

	again, err := uc.Rerank(context.Background(), newRequest(policy))
	require.NoError(t, err)
	assert.Equal(t, results, again)
	assert.Equal(t, int32(1), calls.Load())
}

func TestRerank_CacheHitAvoidsRemoteCall(t *testing.T) {
	backend := &fakeBackend{id: types.BackendCohere, model: "rerank-english-v3.0", response: []byte(threeResults)}
	uc, _, _ := newTestUseCase(t, backend, Options{})

	first, err := uc.Rerank(context.Background(), newRequest(types.DefaultPolicy()))
	require.NoError(t, err)
	assert.Equal(t, []int{1, 0, 2}, indexes(first))

	strict := types.DefaultPolicy()
	strict.Threshold = 0.5
	second, err := uc.Rerank(context.Background(), newRequest(strict))
	require.NoError(t, err)
	assert.Equal(t, []int{1}, indexes(second))

	top1 := types.DefaultPolicy()
	top1.TopK = 1
	third, err := uc.Rerank(context.Background(), newRequest(top1))
	require.NoError(t, err)
	assert.Equal(t, []int{1}, indexes(third))

	assert.Equal(t, 1, backend.Calls())
	assert.Equal(t, int64(2), uc.CacheStats().Hits)
}

func TestRerank_TTLExpiryRefetchesOnce(t *testing.T) {
	backend := &fakeBackend{id: types.BackendCohere, model: "m", response: []byte(threeResults)}
	uc, clk, _ := newTestUseCase(t, backend, Options{})

	policy := types.DefaultPolicy()
	policy.CacheTTL = 1

	_, err := uc.Rerank(context.Background(), newRequest(policy))
	require.NoError(t, err)

	clk.Advance(30 * time.Second)
	_, err = uc.Rerank(context.Background(), newRequest(policy))
	require.NoError(t, err)
	assert.Equal(t, 1, backend.Calls())

	clk.Advance(31 * time.Second)
	_, err = uc.Rerank(context.Background(), newRequest(policy))
	require.NoError(t, err)
	assert.Equal(t, 2, backend.Calls())

	_, err = uc.Rerank(context.Background(), newRequest(policy))
	require.NoError(t, err)
	assert.Equal(t, 2, backend.Calls())
}

func TestRerank_CacheDisabled(t *testing.T) {
	backend := &fakeBackend{id: types.BackendCohere, model: "m", response: []byte(threeResults)}
	uc, _, resultCache := newTestUseCase(t, backend, Options{SingleFlight: true})

	policy := types.DefaultPolicy()
	policy.EnableCache = false
	policy.CacheTTL = 0

	for i := 0; i < 2; i++ {
		_, err := uc.Rerank(context.Background(), newRequest(policy))
		require.NoError(t, err)
	}

	assert.Equal(t, 2, backend.Calls())
	assert.Equal(t, 0, resultCache.Len())
}

func TestRerank_OriginalScoresPerCall(t *testing.T) {
	backend := &fakeBackend{id: types.BackendCohere, model: "m", response: []byte(threeResults)}
	uc, _, _ := newTestUseCase(t, backend, Options{})

	plain, err := uc.Rerank(context.Background(), newRequest(types.DefaultPolicy()))
	require.NoError(t, err)
	for _, r := range plain {
		assert.Nil(t, r.OriginalScore)
	}

	withScores := types.DefaultPolicy()
	withScores.IncludeOriginalScores = true
	scored, err := uc.Rerank(context.Background(), newRequest(withScores))
	require.NoError(t, err)

	require.Equal(t, 0, scored[1].Index)
	assert.Equal(t, 0.2, scored[1].OriginalScore)
	assert.Nil(t, scored[0].OriginalScore, "document without a prior score")
	assert.Equal(t, 1, backend.Calls())
}

func TestRerank_FailuresAreNotCached(t *testing.T) {
	tests := []struct {
		name     string
		response []byte
		err      error
		wantErr  error
	}{
		{
			name:    "upstream status",
			err:     &types.UpstreamError{Backend: types.BackendCohere, StatusCode: 500, Body: "boom"},
			wantErr: types.ErrUpstreamStatus,
		},
		{
			name:    "transport",
			err:     &types.TransportError{Backend: types.BackendCohere, Err: errors.New("connection reset")},
			wantErr: types.ErrUpstreamTransport,
		},
		{
			name:     "invalid results",
			response: []byte(`{"message":"ok"}`),
			wantErr:  types.ErrInvalidResults,
		},
		{
			name:    "credential",
			err:     types.ErrCredentialNotFound,
			wantErr: types.ErrCredentialNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := &fakeBackend{id: types.BackendCohere, model: "m", response: tt.response, err: tt.err}
			uc, _, resultCache := newTestUseCase(t, backend, Options{SingleFlight: true})

			_, err := uc.Rerank(context.Background(), newRequest(types.DefaultPolicy()))
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, 0, resultCache.Len())

			backend.set([]byte(threeResults), nil)
			results, err := uc.Rerank(context.Background(), newRequest(types.DefaultPolicy()))
			require.NoError(t, err)
			assert.Len(t, results, 3)
			assert.Equal(t, 2, backend.Calls())
		})
	}
}

func TestRerank_Validation(t *testing.T) {
	negativeTopK := types.DefaultPolicy()
	negativeTopK.TopK = -1

	zeroTTL := types.DefaultPolicy()
	zeroTTL.CacheTTL = 0

	tests := []struct {
		name      string
		req       *RerankRequest
		wantField string
		wantErr   error
	}{
		{
			name:      "blank query",
			req:       &RerankRequest{Query: "   ", Documents: threeDocs(), Policy: types.DefaultPolicy()},
			wantField: "query",
			wantErr:   types.ErrEmptyQuery,
		},
		{
			name:      "nil documents",
			req:       &RerankRequest{Query: "q", Policy: types.DefaultPolicy()},
			wantField: "documents",
			wantErr:   types.ErrInvalidDocuments,
		},
		{
			name:      "negative topK",
			req:       &RerankRequest{Query: "q", Documents: threeDocs(), Policy: negativeTopK},
			wantField: "top_k",
			wantErr:   types.ErrInvalidPolicy,
		},
		{
			name:      "non-positive ttl with cache",
			req:       &RerankRequest{Query: "q", Documents: threeDocs(), Policy: zeroTTL},
			wantField: "cache_ttl",
			wantErr:   types.ErrInvalidPolicy,
		},
		{
			name:      "unknown backend",
			req:       &RerankRequest{Query: "q", Documents: threeDocs(), Backend: "voyage", Policy: types.DefaultPolicy()},
			wantField: "backend",
			wantErr:   types.ErrUnknownBackend,
		},
		{
			name:      "valid but unconfigured backend",
			req:       &RerankRequest{Query: "q", Documents: threeDocs(), Backend: types.BackendOpenAICompatible, Policy: types.DefaultPolicy()},
			wantField: "backend",
			wantErr:   types.ErrUnknownBackend,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := &fakeBackend{id: types.BackendCohere, model: "m", response: []byte(threeResults)}
			uc, _, _ := newTestUseCase(t, backend, Options{})

			_, err := uc.Rerank(context.Background(), tt.req)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)

			var verr *types.ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Equal(t, tt.wantField, verr.Field)
			assert.Equal(t, 0, backend.Calls())
		})
	}
}

func TestRerank_EmptyDocuments(t *testing.T) {
	backend := &fakeBackend{id: types.BackendCohere, model: "m", response: []byte(threeResults)}
	uc, _, resultCache := newTestUseCase(t, backend, Options{})

	results, err := uc.Rerank(context.Background(), &RerankRequest{
		Query:     "q",
		Documents: []types.Document{},
		Policy:    types.DefaultPolicy(),
	})
	require.NoError(t, err)
	assert.NotNil(t, results)
	assert.Empty(t, results)
	assert.Equal(t, 0, backend.Calls())
	assert.Equal(t, 0, resultCache.Len())
}

func TestRerank_SendsExtractedTextsAndTopN(t *testing.T) {
	backend := &fakeBackend{id: types.BackendCohere, model: "m", response: []byte(threeResults)}
	uc, _, _ := newTestUseCase(t, backend, Options{})

	policy := types.DefaultPolicy()
	policy.TopK = 2
	_, err := uc.Rerank(context.Background(), newRequest(policy))
	require.NoError(t, err)

	assert.Equal(t, []string{"Machine learning basics", "Artificial intelligence overview", "Cooking recipes"}, backend.lastTexts)
	assert.Equal(t, 2, backend.lastTopN)
}

func TestRerank_SingleFlightCollapsesConcurrentMisses(t *testing.T) {
	backend := &fakeBackend{
		id:       types.BackendCohere,
		model:    "m",
		response: []byte(threeResults),
		delay:    50 * time.Millisecond,
	}
	uc, _, _ := newTestUseCase(t, backend, Options{SingleFlight: true})

	var wg sync.WaitGroup
	errs := make([]error, 10)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = uc.Rerank(context.Background(), newRequest(types.DefaultPolicy()))
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, 1, backend.Calls())
}

func TestRerank_SingleFlightSurvivesLeaderCancel(t *testing.T) {
	backend := &fakeBackend{
		id:       types.BackendCohere,
		model:    "m",
		response: []byte(threeResults),
		delay:    200 * time.Millisecond,
	}
	uc, _, resultCache := newTestUseCase(t, backend, Options{SingleFlight: true})

	leaderCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	leaderErr := make(chan error, 1)
	go func() {
		_, err := uc.Rerank(leaderCtx, newRequest(types.DefaultPolicy()))
		leaderErr <- err
	}()

	// let the leader start the remote call before the follower joins
	require.Eventually(t, func() bool { return backend.Calls() == 1 }, time.Second, 5*time.Millisecond)

	followerDone := make(chan struct{})
	var (
		followerResults []types.ScoredResult
		followerErr     error
	)
	go func() {
		defer close(followerDone)
		followerResults, followerErr = uc.Rerank(context.Background(), newRequest(types.DefaultPolicy()))
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	assert.ErrorIs(t, <-leaderErr, context.Canceled)

	<-followerDone
	require.NoError(t, followerErr)
	assert.Equal(t, []int{1, 0, 2}, indexes(followerResults))
	assert.Equal(t, 1, backend.Calls())
	assert.Equal(t, 1, resultCache.Len(), "the shared call still fills the cache")
}

func TestRerank_SingleFlightKeyedByTopN(t *testing.T) {
	backend := &fakeBackend{
		id:       types.BackendCohere,
		model:    "m",
		response: []byte(threeResults),
		delay:    50 * time.Millisecond,
	}
	uc, _, _ := newTestUseCase(t, backend, Options{SingleFlight: true})

	small := types.DefaultPolicy()
	small.TopK = 1
	large := types.DefaultPolicy()
	large.TopK = 3

	var wg sync.WaitGroup
	var smallResults, largeResults []types.ScoredResult
	var smallErr, largeErr error
	wg.Add(2)
	go func() {
		defer wg.Done()
		smallResults, smallErr = uc.Rerank(context.Background(), newRequest(small))
	}()
	go func() {
		defer wg.Done()
		largeResults, largeErr = uc.Rerank(context.Background(), newRequest(large))
	}()
	wg.Wait()

	require.NoError(t, smallErr)
	require.NoError(t, largeErr)
	assert.Len(t, smallResults, 1)
	assert.Len(t, largeResults, 3)
	assert.Equal(t, 2, backend.Calls())
}

func TestRerankBatch(t *testing.T) {
	backend := &fakeBackend{id: types.BackendCohere, model: "m", response: []byte(threeResults)}
	registry, err := reranker.NewRegistry(backend.id, backend)
	require.NoError(t, err)

	pool, err := workerpool.New(&workerpool.Config{Workers: 2}, nil)
	require.NoError(t, err)
	defer pool.Shutdown()

	uc := NewRerankUseCase(registry, cache.New(), pool, Options{SingleFlight: true}, nil)

	reqs := []*RerankRequest{
		newRequest(types.DefaultPolicy()),
		{Query: "", Documents: threeDocs(), Policy: types.DefaultPolicy()},
		newRequest(types.DefaultPolicy()),
	}

	out, err := uc.RerankBatch(context.Background(), reqs)
	require.NoError(t, err)
	require.Len(t, out, 3)

	assert.NoError(t, out[0].Err)
	assert.Len(t, out[0].Results, 3)

	assert.ErrorIs(t, out[1].Err, types.ErrEmptyQuery)
	assert.Contains(t, out[1].Err.Error(), "item 1")

	assert.NoError(t, out[2].Err)
	assert.Equal(t, indexes(out[0].Results), indexes(out[2].Results))

	for i, r := range out {
		assert.Equal(t, i, r.Index)
	}
}

func TestRerankBatch_WithoutPool(t *testing.T) {
	backend := &fakeBackend{id: types.BackendCohere, model: "m", response: []byte(threeResults)}
	uc, _, _ := newTestUseCase(t, backend, Options{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out, err := uc.RerankBatch(ctx, []*RerankRequest{newRequest(types.DefaultPolicy())})
	assert.ErrorIs(t, err, context.Canceled)
	require.Len(t, out, 1)
	assert.ErrorIs(t, out[0].Err, context.Canceled)
	assert.Equal(t, 0, backend.Calls())
}

func TestRerankBatchEach(t *testing.T) {
	backend := &fakeBackend{id: types.BackendCohere, model: "m", response: []byte(threeResults)}
	registry, err := reranker.NewRegistry(backend.id, backend)
	require.NoError(t, err)

	pool, err := workerpool.New(&workerpool.Config{Workers: 3}, nil)
	require.NoError(t, err)
	defer pool.Shutdown()

	uc := NewRerankUseCase(registry, cache.New(), pool, Options{}, nil)

	var (
		mu   sync.Mutex
		seen = map[int]bool{}
	)
	reqs := []*RerankRequest{
		newRequest(types.DefaultPolicy()),
		{Query: "", Documents: threeDocs(), Policy: types.DefaultPolicy()},
		newRequest(types.DefaultPolicy()),
	}

	out, err := uc.RerankBatchEach(context.Background(), reqs, func(r *BatchResult) {
		mu.Lock()
		defer mu.Unlock()
		assert.False(t, seen[r.Index], "reported twice")
		seen[r.Index] = true
	})
	require.NoError(t, err)
	require.Len(t, out, 3)
	assert.Equal(t, map[int]bool{0: true, 1: true, 2: true}, seen)
}

func TestRerankBatchEach_ReportsUnrunItems(t *testing.T) {
	backend := &fakeBackend{id: types.BackendCohere, model: "m", response: []byte(threeResults)}
	uc, _, _ := newTestUseCase(t, backend, Options{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var reported []int
	_, err := uc.RerankBatchEach(ctx, []*RerankRequest{
		newRequest(types.DefaultPolicy()),
		newRequest(types.DefaultPolicy()),
	}, func(r *BatchResult) {
		reported = append(reported, r.Index)
		assert.ErrorIs(t, r.Err, context.Canceled)
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []int{0, 1}, reported)
}

func TestClearCache(t *testing.T) {
	backend := &fakeBackend{id: types.BackendCohere, model: "m", response: []byte(threeResults)}
	uc, _, _ := newTestUseCase(t, backend, Options{})

	_, err := uc.Rerank(context.Background(), newRequest(types.DefaultPolicy()))
	require.NoError(t, err)
	assert.Equal(t, 1, uc.CacheStats().Size)

	uc.ClearCache()
	assert.Equal(t, 0, uc.CacheStats().Size)

	_, err = uc.Rerank(context.Background(), newRequest(types.DefaultPolicy()))
	require.NoError(t, err)
	assert.Equal(t, 2, backend.Calls())
}
