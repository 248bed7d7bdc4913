package capture

import (
	"context"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
)

// networkTracker counts in-flight requests from CDP network events so a
// capture can wait until the page stops loading resources.
type networkTracker struct {
	mu       sync.Mutex
	inflight map[network.RequestID]struct{}
	change   chan struct{}
}

func newNetworkTracker() *networkTracker {
	return &networkTracker{
		inflight: make(map[network.RequestID]struct{}),
		change:   make(chan struct{}, 1),
	}
}

func (t *networkTracker) handle(ev interface{}) {
	switch e := ev.(type) {
	case *network.EventRequestWillBeSent:
		t.add(e.RequestID)
	case *network.EventLoadingFinished:
		t.remove(e.RequestID)
	case *network.EventLoadingFailed:
		t.remove(e.RequestID)
	}
}

func (t *networkTracker) add(id network.RequestID) {
	t.mu.Lock()
	t.inflight[id] = struct{}{}
	t.mu.Unlock()
	t.notify()
}

func (t *networkTracker) remove(id network.RequestID) {
	t.mu.Lock()
	delete(t.inflight, id)
	t.mu.Unlock()
	t.notify()
}

func (t *networkTracker) pending() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.inflight)
}

func (t *networkTracker) notify() {
	select {
	case t.change <- struct{}{}:
	default:
	}
}

// waitIdle blocks until no request has been in flight for a full window.
// Any network activity restarts the window. A zero window disables the wait.
func (t *networkTracker) waitIdle(ctx context.Context, window time.Duration) error {
	if window <= 0 {
		return nil
	}
	timer := time.NewTimer(window)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.change:
			if t.pending() > 0 {
				continue
			}
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(window)
		case <-timer.C:
			if t.pending() == 0 {
				return nil
			}
			timer.Reset(window)
		}
	}
}

func waitNetworkIdle(t *networkTracker, window time.Duration) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		return t.waitIdle(ctx, window)
	})
}
