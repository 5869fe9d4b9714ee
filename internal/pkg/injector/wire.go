//go:build wireinject
// +build wireinject

package injector

import (
	"github.com/google/wire"
	"github.com/lk2023060901/rerank-gateway/internal/conf"
	"github.com/lk2023060901/rerank-gateway/internal/pkg/logger"
	"github.com/lk2023060901/rerank-gateway/internal/rerank/biz"
	"github.com/lk2023060901/rerank-gateway/internal/rerank/cache"
	"github.com/lk2023060901/rerank-gateway/internal/rerank/reranker"
	"github.com/lk2023060901/rerank-gateway/internal/server"
)

// ProviderSet is the Wire provider set for all dependencies
var ProviderSet = wire.NewSet(
	rerankProviderSet,
	serviceProviderSet,
	serverProviderSet,
)

// Rerank core: cache, backends, worker pool and use case
var rerankProviderSet = wire.NewSet(
	provideResultCache,
	wire.Bind(new(biz.ResultCache), new(*cache.ResultCache)),
	provideRegistry,
	wire.Bind(new(biz.BackendResolver), new(*reranker.Registry)),
	provideWorkerPool,
	provideUseCaseOptions,
	biz.NewRerankUseCase,
)

// HTTP service providers
var serviceProviderSet = wire.NewSet(
	provideRerankService,
	provideJWTManager,
)

// Server providers
var serverProviderSet = wire.NewSet(
	server.NewHTTPServer,
)

// InitializeApp initializes the application with Wire
func InitializeApp(config *conf.Config, log *logger.Logger) (*App, func(), error) {
	wire.Build(ProviderSet, newApp)
	return nil, nil, nil
}

// InitializeUseCase builds only the rerank core, used by the batch CLI
func InitializeUseCase(config *conf.Config, log *logger.Logger) (*biz.RerankUseCase, func(), error) {
	wire.Build(rerankProviderSet)
	return nil, nil, nil
}
