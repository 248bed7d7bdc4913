// Package runner coordinates one end-to-end capture run: load products,
// serve their tag pages, fan captures out over workers, then persist the
// caught-up collection and notify.
package runner

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"go.uber.org/zap"

	idgen "github.com/Kokosalah45/html-to-image/internal/id/uuid"
	"github.com/Kokosalah45/html-to-image/internal/partition"
	"github.com/Kokosalah45/html-to-image/internal/preflight"
	"github.com/Kokosalah45/html-to-image/internal/progress"
	"github.com/Kokosalah45/html-to-image/internal/server"
	"github.com/Kokosalah45/html-to-image/internal/tag"
	"github.com/Kokosalah45/html-to-image/internal/worker"
)

// Config controls a run.
type Config struct {
	// ServerAddr is the listen address for the tag page server. Workers
	// navigate against the address actually bound, so port 0 works.
	ServerAddr string
	// ImagesDir holds the source product images served under /images.
	ImagesDir string
	// StaticDir is the document root for template assets.
	StaticDir string
	// WorkerFraction sizes the worker pool as a share of logical CPUs.
	WorkerFraction float64
	// ConfirmOnly advances previous_price only for confirmed captures
	// instead of the whole collection.
	ConfirmOnly bool
	// ShutdownTimeout bounds the page server drain at the end of a run.
	ShutdownTimeout time.Duration
}

// Runner owns the run state machine. Collaborators are injected; the runner
// never closes them.
type Runner struct {
	cfg      Config
	store    tag.Store
	sink     tag.ArtifactSink
	factory  tag.CapturerFactory
	notifier tag.Notifier
	checker  *preflight.Checker
	emitter  progress.Emitter
	clock    tag.Clock
	ids      *idgen.Generator
	logger   *zap.Logger
}

// New constructs a Runner. The checker may be nil to skip preflight probes.
func New(
	cfg Config,
	store tag.Store,
	sink tag.ArtifactSink,
	factory tag.CapturerFactory,
	notifier tag.Notifier,
	checker *preflight.Checker,
	emitter progress.Emitter,
	clock tag.Clock,
	logger *zap.Logger,
) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		cfg:      cfg,
		store:    store,
		sink:     sink,
		factory:  factory,
		notifier: notifier,
		checker:  checker,
		emitter:  emitter,
		clock:    clock,
		ids:      idgen.NewUUIDGenerator(),
		logger:   logger,
	}
}

// Run executes one capture run. A run with no pending products exits before
// the server or any browser starts, and leaves the store untouched. Worker
// failures do not abort the run: captured products are still persisted and
// the summary still goes out, but the error comes back so callers can exit
// nonzero.
func (r *Runner) Run(ctx context.Context) (tag.RunSummary, error) {
	products, err := r.store.Load(ctx)
	if err != nil {
		return tag.RunSummary{}, fmt.Errorf("load products: %w", err)
	}

	pending := tag.Pending(products)
	if len(pending) == 0 {
		r.logger.Info("no price changes, nothing to capture",
			zap.Int("products", len(products)),
		)
		return tag.RunSummary{}, nil
	}

	rawID, err := r.ids.NewRawID()
	if err != nil {
		return tag.RunSummary{}, fmt.Errorf("generate run id: %w", err)
	}
	runID := progress.UUIDToBytes(rawID)
	started := r.clock.Now()
	summary := tag.RunSummary{
		RunID:     rawID.String(),
		Pending:   len(pending),
		StartedAt: started,
	}

	r.emit(progress.Event{
		RunID:   runID,
		Stage:   progress.StageRunStart,
		Pending: len(pending),
	})
	r.logger.Info("run started",
		zap.String("run_id", summary.RunID),
		zap.Int("products", len(products)),
		zap.Int("pending", len(pending)),
	)

	srv := server.New(server.Options{
		Addr:      r.cfg.ServerAddr,
		Products:  products,
		ImagesDir: r.cfg.ImagesDir,
		StaticDir: r.cfg.StaticDir,
		Logger:    r.logger,
	})
	if err := srv.Start(); err != nil {
		err = fmt.Errorf("start tag server: %w", err)
		r.fail(runID, started, err)
		return summary, err
	}
	baseURL := "http://" + srv.Addr()

	items := partition.Annotate(products, pending)
	if r.checker != nil {
		result := r.checker.Check(ctx, baseURL, items)
		if !result.Clean() {
			r.logger.Warn("preflight found problems",
				zap.Int("page_failures", len(result.PageFailures)),
				zap.Int("image_failures", len(result.ImageFailures)),
			)
		}
	}

	reports := r.runWorkers(ctx, runID, baseURL, items)
	r.shutdownServer(srv)

	confirmed := make(map[tag.Key]struct{})
	var runErr error
	for _, rep := range reports {
		for _, k := range rep.Captured {
			confirmed[k] = struct{}{}
		}
		if rep.Err != nil {
			runErr = errors.Join(runErr, fmt.Errorf("worker %d: %w", rep.Worker, rep.Err))
		}
	}
	summary.Captured = len(confirmed)
	summary.Failed = summary.Pending - summary.Captured

	updated := tag.CatchUp(products)
	if r.cfg.ConfirmOnly {
		updated = tag.CatchUpConfirmed(products, confirmed)
	}
	if err := r.store.Replace(ctx, updated); err != nil {
		runErr = errors.Join(runErr, fmt.Errorf("persist products: %w", err))
	}

	dur := r.clock.Now().Sub(started)
	summary.DurationMs = dur.Milliseconds()

	stage := progress.StageRunDone
	note := ""
	if runErr != nil {
		stage = progress.StageRunError
		note = runErr.Error()
	}
	r.emit(progress.Event{
		RunID: runID,
		Stage: stage,
		Dur:   dur,
		Note:  note,
	})

	if err := r.notifier.Publish(ctx, summary); err != nil {
		r.logger.Error("publish run summary failed", zap.Error(err))
	}

	r.logger.Info("run finished",
		zap.String("run_id", summary.RunID),
		zap.Int("pending", summary.Pending),
		zap.Int("captured", summary.Captured),
		zap.Int("failed", summary.Failed),
		zap.Int64("duration_ms", summary.DurationMs),
	)
	return summary, runErr
}

// runWorkers splits the items round-robin and joins every worker's report.
func (r *Runner) runWorkers(ctx context.Context, runID [16]byte, baseURL string, items []tag.WorkItem) []worker.Report {
	workers := partition.WorkerCount(runtime.NumCPU(), r.cfg.WorkerFraction)
	if workers > len(items) {
		workers = len(items)
	}
	chunks := partition.Split(items, workers)
	r.logger.Info("dispatching captures",
		zap.Int("workers", workers),
		zap.Int("items", len(items)),
	)

	reports := make([]worker.Report, len(chunks))
	var wg sync.WaitGroup
	for i, chunk := range chunks {
		wg.Add(1)
		go func(i int, chunk []tag.WorkItem) {
			defer wg.Done()
			w := worker.New(
				worker.Config{ID: i, BaseURL: baseURL, RunID: runID},
				r.factory,
				r.sink,
				r.emitter,
				r.clock,
				r.logger,
			)
			reports[i] = w.Run(ctx, chunk)
		}(i, chunk)
	}
	wg.Wait()
	return reports
}

// shutdownServer drains the page server on its own context so a canceled
// run still releases the port.
func (r *Runner) shutdownServer(srv *server.Server) {
	timeout := r.cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		r.logger.Warn("tag server shutdown failed", zap.Error(err))
	}
}

func (r *Runner) fail(runID [16]byte, started time.Time, err error) {
	r.emit(progress.Event{
		RunID: runID,
		Stage: progress.StageRunError,
		Dur:   r.clock.Now().Sub(started),
		Note:  err.Error(),
	})
	r.logger.Error("run failed", zap.Error(err))
}

func (r *Runner) emit(evt progress.Event) {
	if r.emitter == nil {
		return
	}
	evt.TS = r.clock.Now()
	r.emitter.Emit(evt)
}
