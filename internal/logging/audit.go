package logging

import (
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/kingstatic/kingstatic/internal/pipeline"
)

// DefaultAuditBuffer 是审计队列的默认容量。
const DefaultAuditBuffer = 1024

// AuditSink 把请求路径上的审计事件交给单独的消费协程写日志。
// Emit 从不阻塞：队列满时丢弃事件并计数。
type AuditSink struct {
	logger  logrus.FieldLogger
	events  chan pipeline.AuditEvent
	done    chan struct{}
	dropped atomic.Int64

	mu     sync.RWMutex
	closed bool
}

// NewAuditSink 启动消费协程。buffer <= 0 时使用 DefaultAuditBuffer。
func NewAuditSink(logger logrus.FieldLogger, buffer int) *AuditSink {
	if buffer <= 0 {
		buffer = DefaultAuditBuffer
	}
	s := &AuditSink{
		logger: logger,
		events: make(chan pipeline.AuditEvent, buffer),
		done:   make(chan struct{}),
	}
	go s.consume()
	return s
}

// Emit 实现 pipeline.Auditor。
func (s *AuditSink) Emit(event pipeline.AuditEvent) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		s.dropped.Add(1)
		return
	}
	select {
	case s.events <- event:
	default:
		s.dropped.Add(1)
	}
}

// Dropped 返回因队列已满或已关闭而丢弃的事件数。
func (s *AuditSink) Dropped() int64 {
	return s.dropped.Load()
}

// Close 停止接收事件，等待队列写完后返回累计丢弃数。可重复调用。
func (s *AuditSink) Close() int64 {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.events)
	}
	s.mu.Unlock()

	<-s.done
	dropped := s.Dropped()
	if dropped > 0 {
		s.logger.WithFields(logrus.Fields{
			"action":  "audit_dropped",
			"dropped": dropped,
		}).Warn("审计队列已满，部分访问日志被丢弃")
	}
	return dropped
}

func (s *AuditSink) consume() {
	defer close(s.done)
	for event := range s.events {
		s.logger.WithFields(RequestFields(event)).Info(AccessLine(event))
	}
}

// AccessLine 渲染控制台可读的访问行，例如 "Client 10.0.0.2 GET /index.html (200 OK)"。
func AccessLine(event pipeline.AuditEvent) string {
	return fmt.Sprintf("Client %s %s %s (%d %s)",
		event.Client, event.Method, event.Path, event.Status, http.StatusText(event.Status))
}
