package sinks

import (
	"context"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Kokosalah45/html-to-image/internal/progress"
)

// PrometheusSink exports pipeline progress metrics via Prometheus. It owns all
// collectors for runs started/completed/running and per-capture counters.
type PrometheusSink struct {
	runsStarted   prometheus.Counter
	runsCompleted *prometheus.CounterVec
	runsRunning   prometheus.Gauge
	runRuntime    *prometheus.HistogramVec
	pendingTags   prometheus.Gauge

	workersActive prometheus.Gauge

	captures        *prometheus.CounterVec
	captureBytes    prometheus.Counter
	captureDuration *prometheus.HistogramVec

	runs    *runTracker
	workers *workerTracker
}

// NewPrometheusSink registers the collectors against the provided registry.
func NewPrometheusSink(reg prometheus.Registerer) (*PrometheusSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PrometheusSink{
		runsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pricetag_runs_started_total",
			Help: "Total pipeline runs that have started.",
		}),
		runsCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pricetag_runs_completed_total",
			Help: "Total pipeline runs completed partitioned by result.",
		}, []string{"result"}),
		runsRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pricetag_runs_running",
			Help: "Current number of running pipeline runs.",
		}),
		runRuntime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pricetag_run_runtime_seconds",
			Help:    "Wall time per completed run.",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
		}, []string{"result"}),
		pendingTags: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pricetag_pending_products",
			Help: "Products awaiting capture in the current run.",
		}),
		workersActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pricetag_workers_active",
			Help: "Browser workers currently capturing.",
		}),
		captures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pricetag_captures_total",
			Help: "Capture completions partitioned by result.",
		}, []string{"result"}),
		captureBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pricetag_capture_bytes_total",
			Help: "Encoded screenshot bytes produced.",
		}),
		captureDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pricetag_capture_duration_seconds",
			Help:    "Capture duration partitioned by result.",
			Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 30},
		}, []string{"result"}),
		runs:    newRunTracker(),
		workers: newWorkerTracker(),
	}
	for _, collector := range []prometheus.Collector{
		s.runsStarted,
		s.runsCompleted,
		s.runsRunning,
		s.runRuntime,
		s.pendingTags,
		s.workersActive,
		s.captures,
		s.captureBytes,
		s.captureDuration,
	} {
		if err := reg.Register(collector); err != nil {
			return nil, fmt.Errorf("register progress collector: %w", err)
		}
	}
	return s, nil
}

// Consume updates the Prometheus collectors using the provided event. It is
// safe for concurrent use by multiple goroutines.
func (s *PrometheusSink) Consume(_ context.Context, evt progress.Event) error {
	switch evt.Stage {
	case progress.StageRunStart, progress.StageRunDone, progress.StageRunError:
		s.handleRunEvent(evt)
	case progress.StageWorkerStart, progress.StageWorkerDone:
		s.handleWorkerEvent(evt)
	case progress.StageCaptureDone, progress.StageCaptureError:
		s.handleCaptureEvent(evt)
	}
	return nil
}

func (s *PrometheusSink) handleRunEvent(evt progress.Event) {
	switch evt.Stage {
	case progress.StageRunStart:
		s.runsStarted.Inc()
		if s.runs.start(evt.RunID) {
			s.runsRunning.Inc()
		}
		s.pendingTags.Set(float64(evt.Pending))
	case progress.StageRunDone:
		s.runsCompleted.WithLabelValues("success").Inc()
		s.observeRuntime(evt, "success")
	case progress.StageRunError:
		s.runsCompleted.WithLabelValues("error").Inc()
		s.observeRuntime(evt, "error")
	}
	if evt.Stage != progress.StageRunStart && s.runs.complete(evt.RunID) {
		s.runsRunning.Dec()
	}
}

func (s *PrometheusSink) observeRuntime(evt progress.Event, label string) {
	if evt.Dur > 0 {
		s.runRuntime.WithLabelValues(label).Observe(evt.Dur.Seconds())
	}
}

func (s *PrometheusSink) handleWorkerEvent(evt progress.Event) {
	key := workerKey{run: evt.RunID, worker: evt.Worker}
	switch evt.Stage {
	case progress.StageWorkerStart:
		if s.workers.start(key) {
			s.workersActive.Inc()
		}
	case progress.StageWorkerDone:
		if s.workers.complete(key) {
			s.workersActive.Dec()
		}
	}
}

func (s *PrometheusSink) handleCaptureEvent(evt progress.Event) {
	result := "ok"
	if evt.Stage == progress.StageCaptureError {
		result = "error"
	}
	s.captures.WithLabelValues(result).Inc()
	if evt.Bytes > 0 {
		s.captureBytes.Add(float64(evt.Bytes))
	}
	if evt.Dur > 0 {
		s.captureDuration.WithLabelValues(result).Observe(evt.Dur.Seconds())
	}
}

// Close implements the Sink interface; it performs no action.
func (s *PrometheusSink) Close(context.Context) error {
	return nil
}

type runTracker struct {
	mu      sync.Mutex
	running map[[16]byte]struct{}
}

func newRunTracker() *runTracker {
	return &runTracker{running: make(map[[16]byte]struct{})}
}

func (t *runTracker) start(id [16]byte) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.running[id]; ok {
		return false
	}
	t.running[id] = struct{}{}
	return true
}

func (t *runTracker) complete(id [16]byte) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.running[id]; !ok {
		return false
	}
	delete(t.running, id)
	return true
}

type workerKey struct {
	run    [16]byte
	worker int
}

type workerTracker struct {
	mu      sync.Mutex
	running map[workerKey]struct{}
}

func newWorkerTracker() *workerTracker {
	return &workerTracker{running: make(map[workerKey]struct{})}
}

func (t *workerTracker) start(key workerKey) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.running[key]; ok {
		return false
	}
	t.running[key] = struct{}{}
	return true
}

func (t *workerTracker) complete(key workerKey) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.running[key]; !ok {
		return false
	}
	delete(t.running, key)
	return true
}
