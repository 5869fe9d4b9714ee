package injector

import (
	"github.com/lk2023060901/rerank-gateway/internal/conf"
	"github.com/lk2023060901/rerank-gateway/internal/pkg/logger"
	"github.com/lk2023060901/rerank-gateway/internal/pkg/workerpool"
	"github.com/lk2023060901/rerank-gateway/internal/rerank/biz"
	"github.com/lk2023060901/rerank-gateway/internal/server"
)

// App encapsulates all application dependencies
type App struct {
	Config     *conf.Config
	Logger     *logger.Logger
	HTTPServer *server.HTTPServer
	UseCase    *biz.RerankUseCase
	Pool       *workerpool.Pool
}

func newApp(
	config *conf.Config,
	log *logger.Logger,
	httpServer *server.HTTPServer,
	uc *biz.RerankUseCase,
	pool *workerpool.Pool,
) *App {
	return &App{
		Config:     config,
		Logger:     log,
		HTTPServer: httpServer,
		UseCase:    uc,
		Pool:       pool,
	}
}
