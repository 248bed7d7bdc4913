// Package capture drives headless Chrome sessions that screenshot tag pages.
package capture

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/Kokosalah45/html-to-image/internal/tag"
)

// Config controls the browser session and the screenshots it produces.
type Config struct {
	ViewportWidth  int
	ViewportHeight int
	Scale          float64
	Quality        int
	// IdleWait is how long the network must stay quiet after load before
	// the screenshot is taken.
	IdleWait time.Duration
	// NavTimeout bounds a single capture; zero means unbounded.
	NavTimeout time.Duration
}

const (
	defaultViewportWidth  = 1368
	defaultViewportHeight = 768
	defaultScale          = 2.0
	defaultQuality        = 90
	defaultIdleWait       = 500 * time.Millisecond
)

func withDefaults(cfg Config) Config {
	if cfg.ViewportWidth <= 0 {
		cfg.ViewportWidth = defaultViewportWidth
	}
	if cfg.ViewportHeight <= 0 {
		cfg.ViewportHeight = defaultViewportHeight
	}
	if cfg.Scale <= 0 {
		cfg.Scale = defaultScale
	}
	if cfg.Quality <= 0 || cfg.Quality > 100 {
		cfg.Quality = defaultQuality
	}
	if cfg.IdleWait <= 0 {
		cfg.IdleWait = defaultIdleWait
	}
	return cfg
}

// Session implements tag.Capturer using chromedp and one headless Chrome
// process. Each capture opens a fresh tab against the shared browser.
type Session struct {
	cfg             Config
	allocatorCancel context.CancelFunc
	browserCtx      context.Context
	browserCancel   context.CancelFunc
	logger          *zap.Logger
}

// NewSession launches a headless browser ready to capture tag pages. The
// browser lives until Close and dies with the provided context.
func NewSession(ctx context.Context, cfg Config, logger *zap.Logger) (*Session, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg = withDefaults(cfg)

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.NoSandbox,
		chromedp.Flag("headless", "new"),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("hide-scrollbars", true),
	)
	allocatorCtx, allocatorCancel := chromedp.NewExecAllocator(ctx, opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocatorCtx)
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocatorCancel()
		return nil, fmt.Errorf("chromedp warmup: %w", err)
	}

	return &Session{
		cfg:             cfg,
		allocatorCancel: allocatorCancel,
		browserCtx:      browserCtx,
		browserCancel:   browserCancel,
		logger:          logger,
	}, nil
}

// Capture navigates a fresh tab to pageURL, waits for the network to go
// idle, and returns the page as an encoded webp screenshot.
func (s *Session) Capture(ctx context.Context, pageURL string) ([]byte, error) {
	tabCtx, cancelTab := chromedp.NewContext(s.browserCtx)
	defer cancelTab()

	runCtx := tabCtx
	if s.cfg.NavTimeout > 0 {
		var cancelTimeout context.CancelFunc
		runCtx, cancelTimeout = context.WithTimeout(tabCtx, s.cfg.NavTimeout)
		defer cancelTimeout()
	}

	stopForward := forwardCancel(ctx, cancelTab)
	defer stopForward()

	tracker := newNetworkTracker()
	chromedp.ListenTarget(tabCtx, tracker.handle)

	s.logger.Debug("capturing tag page", zap.String("url", pageURL))

	var shot []byte
	tasks := chromedp.Tasks{
		network.Enable(),
		chromedp.EmulateViewport(
			int64(s.cfg.ViewportWidth),
			int64(s.cfg.ViewportHeight),
			chromedp.EmulateScale(s.cfg.Scale),
		),
		transparentBackground(),
		chromedp.Navigate(pageURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		waitNetworkIdle(tracker, s.cfg.IdleWait),
		captureWebp(&shot, s.cfg.Quality),
	}
	if err := chromedp.Run(runCtx, tasks); err != nil {
		return nil, fmt.Errorf("chromedp run: %w", err)
	}
	return shot, nil
}

// Close tears down the browser and allocator contexts.
func (s *Session) Close() {
	if s == nil {
		return
	}
	s.browserCancel()
	s.allocatorCancel()
}

// NewFactory returns a tag.CapturerFactory that opens one session per call,
// so each worker owns and releases its own browser.
func NewFactory(cfg Config, logger *zap.Logger) tag.CapturerFactory {
	return func(ctx context.Context) (tag.Capturer, error) {
		return NewSession(ctx, cfg, logger)
	}
}

// transparentBackground clears the default white page background so tags
// keep their alpha channel in the screenshot.
func transparentBackground() chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		err := emulation.SetDefaultBackgroundColorOverride().
			WithColor(&cdp.RGBA{R: 0, G: 0, B: 0, A: 0}).
			Do(ctx)
		if err != nil {
			return fmt.Errorf("override background color: %w", err)
		}
		return nil
	})
}

func captureWebp(buf *[]byte, quality int) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		shot, err := page.CaptureScreenshot().
			WithFormat(page.CaptureScreenshotFormatWebp).
			WithQuality(int64(quality)).
			WithCaptureBeyondViewport(true).
			Do(ctx)
		if err != nil {
			return fmt.Errorf("capture screenshot: %w", err)
		}
		*buf = shot
		return nil
	})
}

func forwardCancel(parent context.Context, cancel context.CancelFunc) func() {
	if parent == nil {
		return func() {}
	}
	done := make(chan struct{})
	go func() {
		select {
		case <-parent.Done():
			cancel()
		case <-done:
		}
	}()
	return func() { close(done) }
}
