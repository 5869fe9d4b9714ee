package injector

import (
	"fmt"
	"time"

	"github.com/lk2023060901/rerank-gateway/internal/auth"
	"github.com/lk2023060901/rerank-gateway/internal/conf"
	"github.com/lk2023060901/rerank-gateway/internal/pkg/logger"
	"github.com/lk2023060901/rerank-gateway/internal/pkg/workerpool"
	"github.com/lk2023060901/rerank-gateway/internal/rerank/biz"
	"github.com/lk2023060901/rerank-gateway/internal/rerank/cache"
	"github.com/lk2023060901/rerank-gateway/internal/rerank/reranker"
	"github.com/lk2023060901/rerank-gateway/internal/rerank/service"
	"github.com/lk2023060901/rerank-gateway/internal/rerank/types"
	"go.uber.org/zap"
)

func provideResultCache(config *conf.Config, log *logger.Logger) *cache.ResultCache {
	return cache.New(
		cache.WithMaxEntries(config.Rerank.MaxEntries),
		cache.WithLogger(log.Named("cache")),
	)
}

func provideRegistry(config *conf.Config, log *logger.Logger) (*reranker.Registry, error) {
	factory := reranker.NewFactory(log.Named("reranker"))

	var backends []reranker.Backend
	for _, cfg := range config.Rerank.Enabled() {
		backend, err := factory.Create(cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create %s backend: %w", cfg.ID, err)
		}
		log.Info("rerank backend ready",
			zap.String("backend", string(backend.ID())),
			zap.String("model", backend.Model()))
		backends = append(backends, backend)
	}

	return reranker.NewRegistry(types.BackendID(config.Rerank.Backend), backends...)
}

func provideWorkerPool(config *conf.Config, log *logger.Logger) (*workerpool.Pool, func(), error) {
	poolConfig := workerpool.DefaultConfig()
	if config.Rerank.Workers > 0 {
		poolConfig.Workers = config.Rerank.Workers
	}

	pool, err := workerpool.New(poolConfig, log.Named("workerpool"))
	if err != nil {
		return nil, nil, err
	}
	return pool, pool.Shutdown, nil
}

func provideUseCaseOptions(config *conf.Config) biz.Options {
	return biz.Options{SingleFlight: config.Rerank.SingleFlight}
}

func provideRerankService(uc *biz.RerankUseCase, config *conf.Config, log *logger.Logger) *service.RerankService {
	return service.NewRerankService(uc, config.Rerank.Policy, log.Named("rerank"))
}

// provideJWTManager returns nil when authentication is disabled
func provideJWTManager(config *conf.Config) *auth.JWTManager {
	if !config.Auth.Enabled() {
		return nil
	}
	return auth.NewJWTManager(
		config.Auth.JWTSecret,
		config.Auth.JWTIssuer,
		time.Duration(config.Auth.TokenTTL)*time.Hour,
	)
}
