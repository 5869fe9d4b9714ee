package sse

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// 事件类型
const (
	EventConnected = "connected"
	EventError     = "error"
)

var ErrStreamClosed = errors.New("stream closed")

// Stream 单个请求的 SSE 流，所有写操作都在 Run 所在的 goroutine 完成
type Stream struct {
	ctx       *gin.Context
	reqCtx    context.Context
	id        string
	heartbeat time.Duration
	events    chan Event

	mu     sync.RWMutex
	closed bool
}

// NewStream 创建 SSE 流，heartbeat 为 0 表示禁用心跳
func NewStream(c *gin.Context, bufferSize int, heartbeat time.Duration) *Stream {
	if bufferSize <= 0 {
		bufferSize = 10
	}
	return &Stream{
		ctx:       c,
		reqCtx:    c.Request.Context(),
		id:        uuid.New().String(),
		heartbeat: heartbeat,
		events:    make(chan Event, bufferSize),
	}
}

// ID 流 ID
func (s *Stream) ID() string {
	return s.id
}

// Send 发送事件(并发安全)，客户端断开后返回错误
func (s *Stream) Send(eventType string, data interface{}) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return ErrStreamClosed
	}

	select {
	case s.events <- Event{Type: eventType, Data: data}:
		return nil
	case <-s.reqCtx.Done():
		return fmt.Errorf("%w: %w", ErrStreamClosed, s.reqCtx.Err())
	}
}

// Close 关闭流(幂等)，Run 写完剩余事件后返回
func (s *Stream) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.closed {
		s.closed = true
		close(s.events)
	}
}

// Run 开始流式传输，阻塞直到流关闭或客户端断开
func (s *Stream) Run() error {
	w := s.ctx.Writer
	s.ctx.Header("Content-Type", "text/event-stream")
	s.ctx.Header("Cache-Control", "no-cache")
	s.ctx.Header("Connection", "keep-alive")
	s.ctx.Header("X-Accel-Buffering", "no")

	if err := s.write(Event{Type: EventConnected, Data: map[string]string{"stream_id": s.id}}); err != nil {
		return err
	}

	var tick <-chan time.Time
	if s.heartbeat > 0 {
		ticker := time.NewTicker(s.heartbeat)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-s.reqCtx.Done():
			return s.reqCtx.Err()

		case event, ok := <-s.events:
			if !ok {
				return nil
			}
			if err := s.write(event); err != nil {
				return err
			}

		case <-tick:
			if _, err := fmt.Fprint(w, ": heartbeat\n\n"); err != nil {
				return err
			}
			w.Flush()
		}
	}
}

func (s *Stream) write(event Event) error {
	if _, err := fmt.Fprint(s.ctx.Writer, event.FormatSSE()); err != nil {
		return err
	}
	s.ctx.Writer.Flush()
	return nil
}
