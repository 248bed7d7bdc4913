// Package worker executes one chunk of a capture run.
package worker

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Kokosalah45/html-to-image/internal/progress"
	"github.com/Kokosalah45/html-to-image/internal/tag"
)

// Config wires a worker to its run.
type Config struct {
	// ID is the zero-based worker ordinal.
	ID int
	// BaseURL is the local tag server root, e.g. http://127.0.0.1:3000.
	BaseURL string
	// RunID identifies the run in progress events.
	RunID [16]byte
}

// Worker captures one chunk of pending products. It opens its own browser
// session through the factory and releases it when the chunk ends, on every
// exit path.
type Worker struct {
	cfg     Config
	factory tag.CapturerFactory
	sink    tag.ArtifactSink
	emitter progress.Emitter
	clock   tag.Clock
	logger  *zap.Logger
}

// Report is what a finished worker hands back to the run.
type Report struct {
	Worker   int
	Captured []tag.Key
	Err      error
}

// New constructs a Worker.
func New(
	cfg Config,
	factory tag.CapturerFactory,
	sink tag.ArtifactSink,
	emitter progress.Emitter,
	clock tag.Clock,
	logger *zap.Logger,
) *Worker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Worker{
		cfg:     cfg,
		factory: factory,
		sink:    sink,
		emitter: emitter,
		clock:   clock,
		logger:  logger,
	}
}

// Run captures every item of the chunk in order. The first failure stops the
// chunk; products already captured stay in the report so the run can still
// catch them up.
func (w *Worker) Run(ctx context.Context, items []tag.WorkItem) Report {
	report := Report{Worker: w.cfg.ID}
	if len(items) == 0 {
		return report
	}

	start := w.clock.Now()
	w.emit(progress.Event{Stage: progress.StageWorkerStart})
	w.logger.Debug("worker started",
		zap.Int("worker", w.cfg.ID),
		zap.Int("items", len(items)),
	)

	capturer, err := w.factory(ctx)
	if err != nil {
		report.Err = fmt.Errorf("open browser session: %w", err)
		w.finish(start, &report)
		return report
	}
	defer capturer.Close()

	for _, item := range items {
		if ctx.Err() != nil {
			report.Err = fmt.Errorf("worker canceled: %w", ctx.Err())
			break
		}
		if err := w.captureItem(ctx, capturer, item); err != nil {
			report.Err = err
			break
		}
		report.Captured = append(report.Captured, item.Key())
	}

	w.finish(start, &report)
	return report
}

func (w *Worker) captureItem(ctx context.Context, capturer tag.Capturer, item tag.WorkItem) error {
	pageURL := fmt.Sprintf("%s/product/%d", w.cfg.BaseURL, item.Index)
	name := item.ImageName(tag.CaptureExt)
	started := w.clock.Now()
	w.emit(progress.Event{
		Stage:   progress.StageCaptureStart,
		Product: item.Code,
		Index:   item.Index,
	})

	shot, err := capturer.Capture(ctx, pageURL)
	if err != nil {
		w.emitCaptureError(item, started, err)
		return fmt.Errorf("capture %s: %w", name, err)
	}

	uri, err := w.sink.Put(ctx, name, shot)
	if err != nil {
		w.emitCaptureError(item, started, err)
		return fmt.Errorf("store %s: %w", name, err)
	}

	w.emit(progress.Event{
		Stage:   progress.StageCaptureDone,
		Product: item.Code,
		Index:   item.Index,
		Bytes:   int64(len(shot)),
		Dur:     w.clock.Now().Sub(started),
	})
	w.logger.Debug("capture stored",
		zap.Int("worker", w.cfg.ID),
		zap.String("product", item.Code),
		zap.String("uri", uri),
		zap.Int("bytes", len(shot)),
	)
	return nil
}

func (w *Worker) emitCaptureError(item tag.WorkItem, started time.Time, err error) {
	w.emit(progress.Event{
		Stage:   progress.StageCaptureError,
		Product: item.Code,
		Index:   item.Index,
		Dur:     w.clock.Now().Sub(started),
		Note:    err.Error(),
	})
}

func (w *Worker) finish(start time.Time, report *Report) {
	note := ""
	if report.Err != nil {
		note = report.Err.Error()
		w.logger.Error("worker failed",
			zap.Int("worker", w.cfg.ID),
			zap.Int("captured", len(report.Captured)),
			zap.Error(report.Err),
		)
	} else {
		w.logger.Debug("worker finished",
			zap.Int("worker", w.cfg.ID),
			zap.Int("captured", len(report.Captured)),
		)
	}
	w.emit(progress.Event{
		Stage: progress.StageWorkerDone,
		Dur:   w.clock.Now().Sub(start),
		Note:  note,
	})
}

func (w *Worker) emit(evt progress.Event) {
	if w.emitter == nil {
		return
	}
	evt.RunID = w.cfg.RunID
	evt.TS = w.clock.Now()
	evt.Worker = w.cfg.ID
	w.emitter.Emit(evt)
}
