package progress

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Config controls buffering for the Hub.
//   - BufferSize: size of the internal channel (default 1024).
//   - SinkTimeout: per-sink timeout while dispatching (default 5s).
//   - BaseContext: parent context passed to sink calls (defaults to context.Background()).
//   - Logger: optional structured logger used for warnings.
type Config struct {
	BufferSize  int
	SinkTimeout time.Duration
	BaseContext context.Context
	Logger      *zap.Logger
}

const (
	defaultBufferSize  = 1024
	defaultSinkTimeout = 5 * time.Second
	dropLogInterval    = 5 * time.Second
)

// Hub receives Event streams and fans them out to registered sinks in order.
// It is safe for concurrent use by multiple goroutines and never blocks callers.
type Hub struct {
	cfg         Config
	sinks       []Sink
	events      chan Event
	stopCh      chan struct{}
	doneCh      chan struct{}
	logger      *zap.Logger
	dropLimiter rateLimiter
	dropped     atomic.Int64
	closed      atomic.Bool

	closeOnce sync.Once
	closeCtx  context.Context
}

// NewHub initializes a Hub and starts the background dispatch goroutine using
// the supplied sinks. The returned Hub is immediately ready to accept events.
func NewHub(cfg Config, sinks ...Sink) *Hub {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = defaultBufferSize
	}
	if cfg.SinkTimeout <= 0 {
		cfg.SinkTimeout = defaultSinkTimeout
	}
	if cfg.BaseContext == nil {
		cfg.BaseContext = context.Background()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &Hub{
		cfg:         cfg,
		sinks:       append([]Sink(nil), sinks...),
		events:      make(chan Event, cfg.BufferSize),
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
		logger:      logger,
		dropLimiter: rateLimiter{interval: dropLogInterval},
	}
	go h.run()
	return h
}

// Emit enqueues an Event for dispatch. It never blocks; if the buffer is full
// the event is dropped and a rate-limited warning is logged.
func (h *Hub) Emit(evt Event) {
	if h == nil {
		return
	}
	if h.closed.Load() {
		return
	}
	if err := evt.Validate(); err != nil {
		h.logger.Debug("discarding invalid progress event", zap.Error(err))
		return
	}
	select {
	case h.events <- evt:
	default:
		h.dropped.Add(1)
		if h.dropLimiter.Allow(time.Now()) {
			count := h.dropped.Swap(0)
			h.logger.Warn("progress events dropped due to backpressure", zap.Int64("dropped", count))
		}
	}
}

// Close drains remaining events, closes sinks, and blocks until the background
// goroutine exits. It is safe to call multiple times; subsequent calls are
// ignored once shutdown begins.
func (h *Hub) Close(ctx context.Context) error {
	if h == nil {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	h.closeOnce.Do(func() {
		h.closed.Store(true)
		h.closeCtx = ctx
		close(h.stopCh)
	})
	select {
	case <-h.doneCh:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("progress hub close wait: %w", ctx.Err())
	}
}

func (h *Hub) run() {
	defer close(h.doneCh)
	for {
		select {
		case evt := <-h.events:
			h.dispatch(evt)
		case <-h.stopCh:
			h.drain()
			return
		}
	}
}

func (h *Hub) drain() {
	for {
		select {
		case evt := <-h.events:
			h.dispatch(evt)
		default:
			h.closeSinks()
			return
		}
	}
}

func (h *Hub) dispatch(evt Event) {
	for _, sink := range h.sinks {
		if sink == nil {
			continue
		}
		ctx := h.cfg.BaseContext
		cancel := func() {}
		if h.cfg.SinkTimeout > 0 {
			ctx, cancel = context.WithTimeout(h.cfg.BaseContext, h.cfg.SinkTimeout)
		}
		if err := sink.Consume(ctx, evt); err != nil {
			h.logger.Warn("progress sink consume failed", zap.Error(err))
		}
		cancel()
	}
}

func (h *Hub) closeSinks() {
	ctx := h.closeCtx
	if ctx == nil {
		ctx = context.Background()
	}
	for _, sink := range h.sinks {
		if sink == nil {
			continue
		}
		if err := sink.Close(ctx); err != nil {
			h.logger.Warn("progress sink close failed", zap.Error(err))
		}
	}
}

type rateLimiter struct {
	interval time.Duration
	last     atomic.Int64
}

func (r *rateLimiter) Allow(now time.Time) bool {
	if r == nil || r.interval <= 0 {
		return true
	}
	nano := now.UnixNano()
	last := r.last.Load()
	if nano-last < r.interval.Nanoseconds() {
		return false
	}
	return r.last.CompareAndSwap(last, nano)
}
