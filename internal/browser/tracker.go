// internal/browser/tracker.go
package browser

import (
	"context"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"go.uber.org/zap"
)

// networkTracker follows in-flight requests and main-frame navigations from CDP events.
// It backs both the network-idle wait and the navigation wait.
type networkTracker struct {
	logger *zap.Logger

	mu        sync.Mutex
	inflight  map[network.RequestID]struct{}
	navSeq    uint64
	mainFrame cdp.FrameID
	// navCh is closed and replaced on every main-frame navigation so waiters can block on it.
	navCh chan struct{}
}

func newNetworkTracker(logger *zap.Logger) *networkTracker {
	return &networkTracker{
		logger:   logger,
		inflight: make(map[network.RequestID]struct{}),
		navCh:    make(chan struct{}),
	}
}

// handleEvent is registered with chromedp.ListenTarget. It runs on the chromedp event
// goroutine and must not block.
func (t *networkTracker) handleEvent(ev interface{}) {
	switch e := ev.(type) {
	case *network.EventRequestWillBeSent:
		t.mu.Lock()
		// A redirect reuses the request id; the entry simply stays in flight.
		t.inflight[e.RequestID] = struct{}{}
		t.mu.Unlock()
	case *network.EventLoadingFinished:
		t.finish(e.RequestID)
	case *network.EventLoadingFailed:
		t.finish(e.RequestID)
	case *page.EventFrameNavigated:
		if e.Frame == nil || e.Frame.ParentID != "" {
			return
		}
		t.navigated(e.Frame.ID)
	case *page.EventNavigatedWithinDocument:
		t.mu.Lock()
		main := t.mainFrame
		t.mu.Unlock()
		if main == "" || e.FrameID == main {
			t.navigated(e.FrameID)
		}
	}
}

func (t *networkTracker) finish(id network.RequestID) {
	t.mu.Lock()
	delete(t.inflight, id)
	t.mu.Unlock()
}

func (t *networkTracker) navigated(frame cdp.FrameID) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.mainFrame = frame
	t.navSeq++
	close(t.navCh)
	t.navCh = make(chan struct{})
}

// inflightCount returns the number of requests that have started but not yet finished.
func (t *networkTracker) inflightCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.inflight)
}

// mark returns the current navigation sequence number.
func (t *networkTracker) mark() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.navSeq
}

// WaitIdle polls until at most maxInflight requests have been in flight for a full quiet
// period.
func (t *networkTracker) WaitIdle(ctx context.Context, quiet time.Duration, maxInflight int) error {
	if quiet <= 0 {
		return nil
	}
	interval := quiet / 5
	if interval < time.Millisecond {
		interval = time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	lastActivity := time.Now()
	for {
		select {
		case <-ctx.Done():
			t.logger.Debug("WaitIdle aborted due to context cancellation.", zap.Error(ctx.Err()))
			return ctx.Err()
		case <-ticker.C:
			count := t.inflightCount()
			if count > maxInflight {
				lastActivity = time.Now()
				t.logger.Debug("Waiting for network idle...", zap.Int("inflight_requests", count))
			} else if time.Since(lastActivity) >= quiet {
				return nil
			}
		}
	}
}

// waitNavigation blocks until a main-frame navigation newer than mark has been observed.
func (t *networkTracker) waitNavigation(ctx context.Context, mark uint64) error {
	for {
		t.mu.Lock()
		seq, ch := t.navSeq, t.navCh
		t.mu.Unlock()

		if seq > mark {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ch:
		}
	}
}
