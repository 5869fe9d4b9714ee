package service

import (
	"context"
	"errors"

	apperrors "github.com/lk2023060901/rerank-gateway/internal/pkg/errors"
	"github.com/lk2023060901/rerank-gateway/internal/pkg/workerpool"
	"github.com/lk2023060901/rerank-gateway/internal/rerank/types"
)

// toAppError 将重排序错误映射为业务错误码
func toAppError(err error) *apperrors.AppError {
	var validationErr *types.ValidationError
	switch {
	case errors.As(err, &validationErr):
		return apperrors.Wrap(err, apperrors.ErrRerankInvalidParams, validationErr.Error())
	case errors.Is(err, types.ErrCredentialNotFound):
		return apperrors.Wrap(err, apperrors.ErrRerankCredential)
	case errors.Is(err, types.ErrInvalidResults):
		return apperrors.Wrap(err, apperrors.ErrRerankInvalidResults)
	case errors.Is(err, types.ErrUpstreamStatus):
		return apperrors.Wrap(err, apperrors.ErrRerankUpstream)
	case errors.Is(err, types.ErrUpstreamTransport),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled):
		return apperrors.Wrap(err, apperrors.ErrRerankTransport)
	case errors.Is(err, workerpool.ErrPoolClosed):
		// 服务关闭中
		return apperrors.Wrap(err, apperrors.ErrServiceUnavail)
	default:
		return apperrors.Wrap(err, apperrors.ErrInternalServer)
	}
}
