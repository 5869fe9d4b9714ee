package service

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	apperrors "github.com/lk2023060901/rerank-gateway/internal/pkg/errors"
	"github.com/lk2023060901/rerank-gateway/internal/pkg/logger"
	"github.com/lk2023060901/rerank-gateway/internal/pkg/response"
	"github.com/lk2023060901/rerank-gateway/internal/pkg/sse"
	"github.com/lk2023060901/rerank-gateway/internal/rerank/biz"
	"github.com/lk2023060901/rerank-gateway/internal/rerank/types"
	"go.uber.org/zap"
)

// DefaultHeartbeat 流式接口心跳间隔
const DefaultHeartbeat = 15 * time.Second

// RerankService 重排序 HTTP 服务
type RerankService struct {
	uc        *biz.RerankUseCase
	defaults  types.Policy
	heartbeat time.Duration
	logger    *logger.Logger
}

// NewRerankService 创建重排序服务
func NewRerankService(uc *biz.RerankUseCase, defaults types.Policy, logger *logger.Logger) *RerankService {
	return &RerankService{
		uc:        uc,
		defaults:  defaults,
		heartbeat: DefaultHeartbeat,
		logger:    logger,
	}
}

// RegisterRoutes 注册路由，admin 中间件仅作用于清空缓存
func (s *RerankService) RegisterRoutes(rg *gin.RouterGroup, admin ...gin.HandlerFunc) {
	g := rg.Group("/rerank")
	g.POST("", s.Rerank)
	g.POST("/batch", s.RerankBatch)
	g.POST("/batch/stream", s.RerankBatchStream)
	g.GET("/cache/stats", s.CacheStats)
	g.DELETE("/cache", append(admin, s.ClearCache)...)
}

// Rerank 对文档重排序
func (s *RerankService) Rerank(c *gin.Context) {
	var req RerankRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithCode(c, apperrors.ErrRerankInvalidParams, err.Error())
		return
	}

	results, err := s.uc.Rerank(c.Request.Context(), req.ToBiz(s.defaults))
	if err != nil {
		s.handleError(c, err)
		return
	}

	response.Success(c, newRerankResponse(results))
}

// RerankBatch 批量重排序，单条失败不影响其他条目
func (s *RerankService) RerankBatch(c *gin.Context) {
	reqs, ok := s.bindBatch(c)
	if !ok {
		return
	}

	results, err := s.uc.RerankBatch(c.Request.Context(), reqs)
	if err != nil {
		s.handleError(c, err)
		return
	}

	resp := NewBatchRerankResponse(results)
	if resp.Failed > 0 {
		s.logger.WithContext(c.Request.Context()).Warn("batch rerank finished with failures",
			zap.Int("items", len(results)),
			zap.Int("failed", resp.Failed))
	}

	response.Success(c, resp)
}

// RerankBatchStream 批量重排序，每完成一条推送一个 item 事件，最后推送 done 事件
func (s *RerankService) RerankBatchStream(c *gin.Context) {
	reqs, ok := s.bindBatch(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	lgr := s.logger.WithContext(ctx)
	stream := sse.NewStream(c, len(reqs)+1, s.heartbeat)

	go func() {
		defer stream.Close()

		results, err := s.uc.RerankBatchEach(ctx, reqs, func(r *biz.BatchResult) {
			if err := stream.Send(EventItem, newBatchItemResponse(r)); err != nil {
				lgr.Debug("dropped batch item event", zap.Int("index", r.Index), zap.Error(err))
			}
		})

		done := &BatchDoneEvent{Items: len(results)}
		for _, r := range results {
			if r.Err != nil {
				done.Failed++
			}
		}
		if err != nil {
			done.Error = err.Error()
		}
		_ = stream.Send(EventDone, done)
	}()

	if err := stream.Run(); err != nil {
		lgr.Info("batch stream ended early", zap.String("stream_id", stream.ID()), zap.Error(err))
	}
}

// bindBatch 解析并校验批量请求
func (s *RerankService) bindBatch(c *gin.Context) ([]*biz.RerankRequest, bool) {
	var req BatchRerankRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithCode(c, apperrors.ErrRerankInvalidParams, err.Error())
		return nil, false
	}

	if len(req.Items) == 0 {
		response.ErrorWithCode(c, apperrors.ErrRerankInvalidParams, "items must not be empty")
		return nil, false
	}
	if len(req.Items) > MaxBatchItems {
		response.ErrorWithCode(c, apperrors.ErrRerankInvalidParams,
			fmt.Sprintf("at most %d items per batch", MaxBatchItems))
		return nil, false
	}

	reqs := make([]*biz.RerankRequest, len(req.Items))
	for i := range req.Items {
		reqs[i] = req.Items[i].ToBiz(s.defaults)
	}
	return reqs, true
}

// NewBatchRerankResponse 将批量结果转换为响应，错误映射为业务错误码
func NewBatchRerankResponse(results []*biz.BatchResult) *BatchRerankResponse {
	resp := &BatchRerankResponse{Items: make([]*BatchItemResponse, len(results))}
	for i, r := range results {
		resp.Items[i] = newBatchItemResponse(r)
		if resp.Items[i].Error != nil {
			resp.Failed++
		}
	}
	return resp
}

func newBatchItemResponse(r *biz.BatchResult) *BatchItemResponse {
	item := &BatchItemResponse{Index: r.Index, Results: newRerankResponse(r.Results).Results}
	item.Count = len(item.Results)
	if r.Err != nil {
		appErr := toAppError(r.Err)
		item.Error = &ItemError{
			Code:    appErr.Code,
			Message: apperrors.FormatError(appErr.Code, apperrors.GetDetails(appErr)),
		}
	}
	return item
}

// ClearCache 清空结果缓存
func (s *RerankService) ClearCache(c *gin.Context) {
	s.uc.ClearCache()
	response.Success(c, nil)
}

// CacheStats 获取缓存统计
func (s *RerankService) CacheStats(c *gin.Context) {
	response.Success(c, s.uc.CacheStats())
}

// handleError 统一错误处理
func (s *RerankService) handleError(c *gin.Context, err error) {
	appErr := toAppError(err)
	if apperrors.IsServerError(appErr.Code) {
		s.logger.WithContext(c.Request.Context()).Error("rerank failed", zap.Error(err))
	}
	response.HandleError(c, appErr)
}
