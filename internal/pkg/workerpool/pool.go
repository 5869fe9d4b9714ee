package workerpool

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/lk2023060901/rerank-gateway/internal/pkg/logger"
	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"
)

var (
	ErrPoolClosed = errors.New("worker pool is closed")
)

// Config Worker Pool 配置
type Config struct {
	Workers int `mapstructure:"workers"` // worker 数量
}

// DefaultConfig 默认配置
func DefaultConfig() *Config {
	return &Config{
		Workers: 16,
	}
}

// Statistics 统计信息
type Statistics struct {
	Submitted int64 `json:"submitted"` // 已提交
	Completed int64 `json:"completed"` // 已完成
	Panicked  int64 `json:"panicked"`  // panic
	Running   int64 `json:"running"`   // 运行中
}

type counters struct {
	submitted atomic.Int64
	completed atomic.Int64
	panicked  atomic.Int64
	running   atomic.Int64
}

// Pool 基于 ants 的 Worker Pool
type Pool struct {
	pool   *ants.Pool
	stats  counters
	closed atomic.Bool
	logger *logger.Logger
}

// New 创建 Worker Pool
func New(cfg *Config, lgr *logger.Logger) (*Pool, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.Workers <= 0 {
		return nil, fmt.Errorf("workers must be greater than 0, got %d", cfg.Workers)
	}
	if lgr == nil {
		lgr = logger.L()
	}

	antsPool, err := ants.NewPool(cfg.Workers)
	if err != nil {
		return nil, fmt.Errorf("failed to create ants pool: %w", err)
	}

	return &Pool{pool: antsPool, logger: lgr}, nil
}

// Submit 提交任务，池满时阻塞等待空闲 worker
func (p *Pool) Submit(task func()) error {
	return p.submit(task, nil)
}

// submit 在统计更新之后调用 done
func (p *Pool) submit(task func(), done func()) error {
	if p.closed.Load() {
		return ErrPoolClosed
	}

	p.stats.submitted.Add(1)
	err := p.pool.Submit(func() {
		p.stats.running.Add(1)
		defer func() {
			if r := recover(); r != nil {
				p.stats.panicked.Add(1)
				p.logger.Error("worker panic", zap.Any("error", r))
			}
			p.stats.running.Add(-1)
			p.stats.completed.Add(1)
			if done != nil {
				done()
			}
		}()
		task()
	})
	if errors.Is(err, ants.ErrPoolClosed) {
		return ErrPoolClosed
	}
	return err
}

// Run 并发执行 n 个任务并等待全部完成
//
// fn 收到任务下标；ctx 取消后尚未开始的任务不再执行，返回 ctx.Err()。
// 单个任务的失败由 fn 自行记录，不影响其他任务。
func (p *Pool) Run(ctx context.Context, n int, fn func(ctx context.Context, i int)) error {
	var wg sync.WaitGroup

	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			wg.Wait()
			return err
		}

		i := i
		wg.Add(1)
		if err := p.submit(func() {
			if ctx.Err() != nil {
				return
			}
			fn(ctx, i)
		}, wg.Done); err != nil {
			wg.Done()
			wg.Wait()
			return err
		}
	}

	wg.Wait()
	return ctx.Err()
}

// Running 获取运行中的 worker 数量
func (p *Pool) Running() int {
	return p.pool.Running()
}

// Cap 获取 worker 总数
func (p *Pool) Cap() int {
	return p.pool.Cap()
}

// Stats 获取统计信息
func (p *Pool) Stats() Statistics {
	return Statistics{
		Submitted: p.stats.submitted.Load(),
		Completed: p.stats.completed.Load(),
		Panicked:  p.stats.panicked.Load(),
		Running:   p.stats.running.Load(),
	}
}

// Shutdown 关闭
func (p *Pool) Shutdown() {
	if p.closed.Swap(true) {
		return
	}
	p.pool.Release()
}
