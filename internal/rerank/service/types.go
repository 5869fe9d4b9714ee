package service

import (
	"github.com/lk2023060901/rerank-gateway/internal/rerank/biz"
	"github.com/lk2023060901/rerank-gateway/internal/rerank/types"
)

// MaxBatchItems 单次批量请求的最大条目数
const MaxBatchItems = 100

// 流式批量接口的事件类型
const (
	EventItem = "item"
	EventDone = "done"
)

// RerankRequest 重排序请求，未提供的策略字段使用服务端默认值
type RerankRequest struct {
	Query                 string           `json:"query"`
	Documents             []types.Document `json:"documents"`
	Backend               string           `json:"backend,omitempty"`
	TopK                  *int             `json:"top_k,omitempty"`
	Threshold             *float64         `json:"threshold,omitempty"`
	IncludeOriginalScores *bool            `json:"include_original_scores,omitempty"`
	EnableCache           *bool            `json:"enable_cache,omitempty"`
	CacheTTL              *int             `json:"cache_ttl,omitempty"` // 分钟
}

// ToBiz 合并默认策略，转换为业务层请求
func (r *RerankRequest) ToBiz(defaults types.Policy) *biz.RerankRequest {
	policy := defaults
	if r.TopK != nil {
		policy.TopK = *r.TopK
	}
	if r.Threshold != nil {
		policy.Threshold = *r.Threshold
	}
	if r.IncludeOriginalScores != nil {
		policy.IncludeOriginalScores = *r.IncludeOriginalScores
	}
	if r.EnableCache != nil {
		policy.EnableCache = *r.EnableCache
	}
	if r.CacheTTL != nil {
		policy.CacheTTL = *r.CacheTTL
	}

	return &biz.RerankRequest{
		Query:     r.Query,
		Documents: r.Documents,
		Backend:   types.BackendID(r.Backend),
		Policy:    policy,
	}
}

// RerankResponse 重排序响应
type RerankResponse struct {
	Results []types.ScoredResult `json:"results"`
	Count   int                  `json:"count"`
}

func newRerankResponse(results []types.ScoredResult) *RerankResponse {
	if results == nil {
		results = []types.ScoredResult{}
	}
	return &RerankResponse{Results: results, Count: len(results)}
}

// BatchRerankRequest 批量重排序请求
type BatchRerankRequest struct {
	Items []RerankRequest `json:"items"`
}

// ItemError 单条批量结果的错误
type ItemError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// BatchItemResponse 单条批量结果
type BatchItemResponse struct {
	Index   int                  `json:"index"`
	Results []types.ScoredResult `json:"results"`
	Count   int                  `json:"count"`
	Error   *ItemError           `json:"error,omitempty"`
}

// BatchRerankResponse 批量重排序响应
type BatchRerankResponse struct {
	Items  []*BatchItemResponse `json:"items"`
	Failed int                  `json:"failed"`
}

// BatchDoneEvent 流式批量接口的结束事件
type BatchDoneEvent struct {
	Items  int    `json:"items"`
	Failed int    `json:"failed"`
	Error  string `json:"error,omitempty"`
}
