package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	sysclock "github.com/Kokosalah45/html-to-image/internal/clock/system"
	notifymem "github.com/Kokosalah45/html-to-image/internal/notify/memory"
	"github.com/Kokosalah45/html-to-image/internal/preflight"
	"github.com/Kokosalah45/html-to-image/internal/progress"
	sinkmem "github.com/Kokosalah45/html-to-image/internal/sink/memory"
	storemem "github.com/Kokosalah45/html-to-image/internal/store/memory"
	"github.com/Kokosalah45/html-to-image/internal/tag"
)

func TestRunner_Run_HappyPath(t *testing.T) {
	t.Parallel()

	store := storemem.New(sampleProducts())
	sink := sinkmem.New()
	notifier := notifymem.New()
	emitter := &recordingEmitter{}
	capturer := &httpCapturer{}

	r := New(
		Config{ServerAddr: "127.0.0.1:0", WorkerFraction: 0.75},
		store,
		sink,
		func(context.Context) (tag.Capturer, error) { return capturer, nil },
		notifier,
		nil,
		emitter,
		sysclock.New(),
		zap.NewNop(),
	)

	summary, err := r.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, summary.Pending)
	require.Equal(t, 2, summary.Captured)
	require.Equal(t, 0, summary.Failed)
	require.False(t, summary.StartedAt.IsZero())
	_, parseErr := uuid.Parse(summary.RunID)
	require.NoError(t, parseErr)

	shot, ok := sink.Object("X123.webp")
	require.True(t, ok)
	require.Contains(t, string(shot), "١٩.٩٠")
	_, ok = sink.Object("Y456_small.webp")
	require.True(t, ok)

	updated, loadErr := store.Load(context.Background())
	require.NoError(t, loadErr)
	for _, p := range updated {
		require.NotNil(t, p.PreviousPrice, "product %s not caught up", p.Code)
		require.True(t, p.PreviousPrice.Equal(p.CurrentPrice))
	}

	require.Equal(t, []tag.RunSummary{summary}, notifier.Summaries())

	stages := emitter.stages()
	require.NotEmpty(t, stages)
	require.Equal(t, progress.StageRunStart, stages[0])
	require.Equal(t, progress.StageRunDone, stages[len(stages)-1])
	require.Equal(t, 2, emitter.count(progress.StageCaptureDone))
	require.Equal(t, 0, emitter.count(progress.StageCaptureError))
	require.Equal(t, 2, emitter.all()[0].Pending)
}

func TestRunner_Run_NothingPending(t *testing.T) {
	t.Parallel()

	prev := tag.MustPrice("10.00")
	store := &spyStore{Store: storemem.New([]tag.Product{
		{Code: "S1", CurrentPrice: tag.MustPrice("10.00"), PreviousPrice: &prev},
	})}
	notifier := notifymem.New()
	emitter := &recordingEmitter{}

	r := New(
		Config{ServerAddr: "127.0.0.1:0", WorkerFraction: 0.75},
		store,
		sinkmem.New(),
		func(context.Context) (tag.Capturer, error) {
			t.Error("capturer opened for an empty run")
			return nil, errors.New("unreachable")
		},
		notifier,
		nil,
		emitter,
		sysclock.New(),
		zap.NewNop(),
	)

	summary, err := r.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, tag.RunSummary{}, summary)
	require.False(t, store.wasReplaced())
	require.Empty(t, notifier.Summaries())
	require.Empty(t, emitter.stages())
}

func TestRunner_Run_WorkerFailureStillPersists(t *testing.T) {
	t.Parallel()

	store := storemem.New(sampleProducts())
	sink := sinkmem.New()
	notifier := notifymem.New()
	emitter := &recordingEmitter{}
	capturer := &httpCapturer{failOn: "/product/2"}

	r := New(
		Config{ServerAddr: "127.0.0.1:0", WorkerFraction: 0.75},
		store,
		sink,
		func(context.Context) (tag.Capturer, error) { return capturer, nil },
		notifier,
		nil,
		emitter,
		sysclock.New(),
		zap.NewNop(),
	)

	summary, err := r.Run(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "worker")
	require.Equal(t, 2, summary.Pending)
	require.Equal(t, 1, summary.Captured)
	require.Equal(t, 1, summary.Failed)

	// Default persistence catches up the whole collection, failed captures
	// included.
	updated, loadErr := store.Load(context.Background())
	require.NoError(t, loadErr)
	for _, p := range updated {
		require.NotNil(t, p.PreviousPrice)
		require.True(t, p.PreviousPrice.Equal(p.CurrentPrice))
	}

	require.Len(t, notifier.Summaries(), 1)
	stages := emitter.stages()
	require.Equal(t, progress.StageRunError, stages[len(stages)-1])
	require.Equal(t, 1, emitter.count(progress.StageCaptureError))
}

func TestRunner_Run_ConfirmOnlyKeepsFailedPending(t *testing.T) {
	t.Parallel()

	store := storemem.New(sampleProducts())
	capturer := &httpCapturer{failOn: "/product/2"}

	r := New(
		Config{ServerAddr: "127.0.0.1:0", WorkerFraction: 0.75, ConfirmOnly: true},
		store,
		sinkmem.New(),
		func(context.Context) (tag.Capturer, error) { return capturer, nil },
		notifymem.New(),
		nil,
		&recordingEmitter{},
		sysclock.New(),
		zap.NewNop(),
	)

	summary, err := r.Run(context.Background())
	require.Error(t, err)
	require.Equal(t, 1, summary.Captured)

	updated, loadErr := store.Load(context.Background())
	require.NoError(t, loadErr)
	byKey := map[tag.Key]tag.Product{}
	for _, p := range updated {
		byKey[p.Key()] = p
	}

	caught := byKey[tag.Key{Code: "X123"}]
	require.NotNil(t, caught.PreviousPrice)
	require.True(t, caught.PreviousPrice.Equal(caught.CurrentPrice))

	failed := byKey[tag.Key{Code: "Y456", Suffix: "small"}]
	require.Nil(t, failed.PreviousPrice, "failed capture must stay pending")
}

func TestRunner_Run_LoadError(t *testing.T) {
	t.Parallel()

	notifier := notifymem.New()
	emitter := &recordingEmitter{}
	r := New(
		Config{ServerAddr: "127.0.0.1:0", WorkerFraction: 0.75},
		&failingStore{err: errors.New("corrupt file")},
		sinkmem.New(),
		func(context.Context) (tag.Capturer, error) { return &httpCapturer{}, nil },
		notifier,
		nil,
		emitter,
		sysclock.New(),
		zap.NewNop(),
	)

	_, err := r.Run(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "load products")
	require.Empty(t, notifier.Summaries())
	require.Empty(t, emitter.stages())
}

func TestRunner_Run_PersistErrorReported(t *testing.T) {
	t.Parallel()

	store := &spyStore{Store: storemem.New(sampleProducts()), replaceErr: errors.New("disk full")}
	notifier := notifymem.New()
	emitter := &recordingEmitter{}
	capturer := &httpCapturer{}

	r := New(
		Config{ServerAddr: "127.0.0.1:0", WorkerFraction: 0.75},
		store,
		sinkmem.New(),
		func(context.Context) (tag.Capturer, error) { return capturer, nil },
		notifier,
		nil,
		emitter,
		sysclock.New(),
		zap.NewNop(),
	)

	summary, err := r.Run(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "persist products")
	require.Equal(t, 2, summary.Captured)

	// The summary still goes out so operators learn about the stuck store.
	require.Len(t, notifier.Summaries(), 1)
	stages := emitter.stages()
	require.Equal(t, progress.StageRunError, stages[len(stages)-1])
}

func TestRunner_Run_PreflightWarnsOnly(t *testing.T) {
	t.Parallel()

	imagesDir := t.TempDir()
	// Only one of the two pending products has a source image on disk.
	require.NoError(t, os.WriteFile(filepath.Join(imagesDir, "X123.jpg"), []byte{0xff, 0xd8}, 0o600))

	store := storemem.New(sampleProducts())
	capturer := &httpCapturer{}
	checker := preflight.New(preflight.Config{Timeout: 5 * time.Second}, zap.NewNop())

	r := New(
		Config{ServerAddr: "127.0.0.1:0", WorkerFraction: 0.75, ImagesDir: imagesDir},
		store,
		sinkmem.New(),
		func(context.Context) (tag.Capturer, error) { return capturer, nil },
		notifymem.New(),
		checker,
		&recordingEmitter{},
		sysclock.New(),
		zap.NewNop(),
	)

	summary, err := r.Run(context.Background())
	require.NoError(t, err, "preflight problems must not fail the run")
	require.Equal(t, 2, summary.Captured)
}

// sampleProducts has two pending records (X123 changed, Y456/small new) and
// one already caught up.
func sampleProducts() []tag.Product {
	prevX := tag.MustPrice("24.00")
	prevS := tag.MustPrice("10.00")
	return []tag.Product{
		{Code: "X123", CurrentPrice: tag.MustPrice("19.90"), PreviousPrice: &prevX},
		{Code: "S1", CurrentPrice: tag.MustPrice("10.00"), PreviousPrice: &prevS},
		{Code: "Y456", VariationSuffix: "small", CurrentPrice: tag.MustPrice("5.25")},
	}
}

// httpCapturer fetches the page over plain HTTP instead of a browser, which
// proves the tag server is live and rendering during the run.
type httpCapturer struct {
	mu     sync.Mutex
	urls   []string
	closed int
	failOn string
}

func (c *httpCapturer) Capture(ctx context.Context, pageURL string) ([]byte, error) {
	c.mu.Lock()
	c.urls = append(c.urls, pageURL)
	c.mu.Unlock()
	if c.failOn != "" && strings.Contains(pageURL, c.failOn) {
		return nil, errors.New("render crashed")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

func (c *httpCapturer) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed++
}

type spyStore struct {
	*storemem.Store
	mu         sync.Mutex
	replaced   bool
	replaceErr error
}

func (s *spyStore) Replace(ctx context.Context, products []tag.Product) error {
	s.mu.Lock()
	s.replaced = true
	err := s.replaceErr
	s.mu.Unlock()
	if err != nil {
		return err
	}
	return s.Store.Replace(ctx, products)
}

func (s *spyStore) wasReplaced() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.replaced
}

type failingStore struct {
	err error
}

func (s *failingStore) Load(context.Context) ([]tag.Product, error) { return nil, s.err }

func (s *failingStore) Replace(context.Context, []tag.Product) error { return s.err }

func (s *failingStore) Close() {}

type recordingEmitter struct {
	mu     sync.Mutex
	events []progress.Event
}

func (e *recordingEmitter) Emit(evt progress.Event) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, evt)
}

func (e *recordingEmitter) stages() []progress.Stage {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]progress.Stage, 0, len(e.events))
	for _, evt := range e.events {
		out = append(out, evt.Stage)
	}
	return out
}

func (e *recordingEmitter) count(stage progress.Stage) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := 0
	for _, evt := range e.events {
		if evt.Stage == stage {
			n++
		}
	}
	return n
}

func (e *recordingEmitter) all() []progress.Event {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]progress.Event(nil), e.events...)
}
