// Package preflight probes tag pages and source images before a capture run.
//
// Failures here are advisory. A missing source image usually means the tag
// will render with a broken picture, which is worth a warning before a
// browser spends time screenshotting it, but the run proceeds either way.
package preflight

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/Kokosalah45/html-to-image/internal/tag"
)

// Config controls the probe collector.
type Config struct {
	UserAgent string
	Timeout   time.Duration
}

const defaultProbeTimeout = 10 * time.Second

// Checker probes the local tag server before workers start capturing.
type Checker struct {
	cfg           Config
	baseCollector *colly.Collector
	logger        *zap.Logger
}

// Result summarizes one preflight pass.
type Result struct {
	Pages         int
	Images        int
	PageFailures  []string
	ImageFailures []string
}

// Clean reports whether every probe succeeded.
func (r Result) Clean() bool {
	return len(r.PageFailures) == 0 && len(r.ImageFailures) == 0
}

// New builds a Checker.
func New(cfg Config, logger *zap.Logger) *Checker {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := colly.NewCollector(
		colly.Async(false),
		colly.AllowURLRevisit(),
	)
	return &Checker{
		cfg:           cfg,
		baseCollector: c,
		logger:        logger,
	}
}

// Check probes the tag page and the source image of every work item. It
// never fails the run; problems come back in the Result and are logged.
func (c *Checker) Check(ctx context.Context, baseURL string, items []tag.WorkItem) Result {
	result := Result{Pages: len(items), Images: len(items)}
	for _, item := range items {
		pageURL := fmt.Sprintf("%s/product/%d", baseURL, item.Index)
		if err := c.probe(ctx, pageURL, false); err != nil {
			result.PageFailures = append(result.PageFailures, err.Error())
			c.logger.Warn("tag page probe failed",
				zap.String("product", item.Code),
				zap.Error(err),
			)
		}

		imageURL := baseURL + "/images/" + item.ImageName(tag.SourceImageExt)
		if err := c.probe(ctx, imageURL, true); err != nil {
			result.ImageFailures = append(result.ImageFailures, err.Error())
			c.logger.Warn("source image probe failed",
				zap.String("product", item.Code),
				zap.Error(err),
			)
		}

		if ctx.Err() != nil {
			break
		}
	}
	return result
}

// probe issues a single GET (or HEAD) through a fresh collector clone and
// reports any transport error or non-200 status.
func (c *Checker) probe(ctx context.Context, probeURL string, head bool) error {
	collector := c.baseCollector.Clone()
	if c.cfg.UserAgent != "" {
		collector.UserAgent = c.cfg.UserAgent
	}
	collector.IgnoreRobotsTxt = true
	timeout := c.cfg.Timeout
	if timeout == 0 {
		timeout = defaultProbeTimeout
	}
	collector.SetRequestTimeout(timeout)

	var status int
	var probeErr error
	collector.OnResponse(func(r *colly.Response) {
		status = r.StatusCode
	})
	collector.OnError(func(_ *colly.Response, err error) {
		probeErr = err
	})

	done := make(chan error, 1)
	go func() {
		if head {
			done <- collector.Head(probeURL)
		} else {
			done <- collector.Visit(probeURL)
		}
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("probe canceled: %w", ctx.Err())
	case err := <-done:
		if err != nil {
			return fmt.Errorf("probe %s: %w", probeURL, err)
		}
		if probeErr != nil {
			return fmt.Errorf("probe %s: %w", probeURL, probeErr)
		}
		if status != http.StatusOK {
			return fmt.Errorf("probe %s: status %d", probeURL, status)
		}
		return nil
	}
}
