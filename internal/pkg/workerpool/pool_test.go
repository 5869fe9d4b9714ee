package workerpool

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	p, err := New(nil, nil)
	require.NoError(t, err)
	defer p.Shutdown()
	assert.Equal(t, DefaultConfig().Workers, p.Cap())

	_, err = New(&Config{Workers: 0}, nil)
	assert.Error(t, err)
}

func TestPool_Run(t *testing.T) {
	p, err := New(&Config{Workers: 4}, nil)
	require.NoError(t, err)
	defer p.Shutdown()

	results := make([]int, 20)
	err = p.Run(context.Background(), len(results), func(ctx context.Context, i int) {
		results[i] = i * i
	})
	require.NoError(t, err)

	for i, v := range results {
		assert.Equal(t, i*i, v)
	}

	stats := p.Stats()
	assert.Equal(t, int64(20), stats.Submitted)
	assert.Equal(t, int64(20), stats.Completed)
	assert.Equal(t, int64(0), stats.Running)
}

func TestPool_RunCanceled(t *testing.T) {
	p, err := New(&Config{Workers: 2}, nil)
	require.NoError(t, err)
	defer p.Shutdown()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var calls atomic.Int32
	err = p.Run(ctx, 10, func(ctx context.Context, i int) {
		calls.Add(1)
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, int32(0), calls.Load())
}

func TestPool_PanicIsContained(t *testing.T) {
	p, err := New(&Config{Workers: 2}, nil)
	require.NoError(t, err)
	defer p.Shutdown()

	var ok atomic.Int32
	err = p.Run(context.Background(), 3, func(ctx context.Context, i int) {
		if i == 1 {
			panic("boom")
		}
		ok.Add(1)
	})
	require.NoError(t, err)
	assert.Equal(t, int32(2), ok.Load())
	assert.Equal(t, int64(1), p.Stats().Panicked)
}

func TestPool_SubmitAfterShutdown(t *testing.T) {
	p, err := New(&Config{Workers: 1}, nil)
	require.NoError(t, err)

	p.Shutdown()
	p.Shutdown()

	assert.ErrorIs(t, p.Submit(func() {}), ErrPoolClosed)
}
