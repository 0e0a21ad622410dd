// internal/browser/tracker_test.go
package browser

import (
	"context"
	"testing"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTestTracker(t *testing.T) *networkTracker {
	return newNetworkTracker(zaptest.NewLogger(t))
}

func TestNetworkTracker_Inflight(t *testing.T) {
	tr := newTestTracker(t)

	tr.handleEvent(&network.EventRequestWillBeSent{RequestID: "1"})
	tr.handleEvent(&network.EventRequestWillBeSent{RequestID: "2"})
	tr.handleEvent(&network.EventRequestWillBeSent{RequestID: "2"}) // redirect
	assert.Equal(t, 2, tr.inflightCount())

	tr.handleEvent(&network.EventLoadingFinished{RequestID: "1"})
	tr.handleEvent(&network.EventLoadingFailed{RequestID: "2"})
	assert.Equal(t, 0, tr.inflightCount())

	// Unknown ids and unrelated events are ignored.
	tr.handleEvent(&network.EventLoadingFinished{RequestID: "404"})
	tr.handleEvent(&network.EventResponseReceived{RequestID: "3"})
	assert.Equal(t, 0, tr.inflightCount())
}

func TestNetworkTracker_WaitIdle(t *testing.T) {
	t.Run("returns once quiet", func(t *testing.T) {
		tr := newTestTracker(t)
		start := time.Now()
		require.NoError(t, tr.WaitIdle(context.Background(), 50*time.Millisecond, 0))
		assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
	})

	t.Run("tolerates long polling connections", func(t *testing.T) {
		tr := newTestTracker(t)
		tr.handleEvent(&network.EventRequestWillBeSent{RequestID: "ws"})
		tr.handleEvent(&network.EventRequestWillBeSent{RequestID: "poll"})
		require.NoError(t, tr.WaitIdle(context.Background(), 40*time.Millisecond, 2))
	})

	t.Run("waits for requests to finish", func(t *testing.T) {
		tr := newTestTracker(t)
		tr.handleEvent(&network.EventRequestWillBeSent{RequestID: "slow"})

		time.AfterFunc(100*time.Millisecond, func() {
			tr.handleEvent(&network.EventLoadingFinished{RequestID: "slow"})
		})

		start := time.Now()
		require.NoError(t, tr.WaitIdle(context.Background(), 40*time.Millisecond, 0))
		assert.GreaterOrEqual(t, time.Since(start), 140*time.Millisecond)
	})

	t.Run("honors cancellation", func(t *testing.T) {
		tr := newTestTracker(t)
		tr.handleEvent(&network.EventRequestWillBeSent{RequestID: "stuck"})

		ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
		defer cancel()
		assert.ErrorIs(t, tr.WaitIdle(ctx, 20*time.Millisecond, 0), context.DeadlineExceeded)
	})

	t.Run("zero quiet period is a no-op", func(t *testing.T) {
		tr := newTestTracker(t)
		tr.handleEvent(&network.EventRequestWillBeSent{RequestID: "stuck"})
		assert.NoError(t, tr.WaitIdle(context.Background(), 0, 0))
	})
}

func TestNetworkTracker_Navigation(t *testing.T) {
	t.Run("main frame navigation advances the mark", func(t *testing.T) {
		tr := newTestTracker(t)
		mark := tr.mark()

		tr.handleEvent(&page.EventFrameNavigated{Frame: &cdp.Frame{ID: "main"}})
		assert.Equal(t, mark+1, tr.mark())
		assert.NoError(t, tr.waitNavigation(context.Background(), mark))
	})

	t.Run("child frames are ignored", func(t *testing.T) {
		tr := newTestTracker(t)
		tr.handleEvent(&page.EventFrameNavigated{Frame: &cdp.Frame{ID: "main"}})
		mark := tr.mark()

		tr.handleEvent(&page.EventFrameNavigated{Frame: &cdp.Frame{ID: "ad", ParentID: "main"}})
		tr.handleEvent(&page.EventNavigatedWithinDocument{FrameID: "ad"})
		tr.handleEvent(&page.EventFrameNavigated{})
		assert.Equal(t, mark, tr.mark())
	})

	t.Run("hash route change counts as navigation", func(t *testing.T) {
		tr := newTestTracker(t)
		tr.handleEvent(&page.EventFrameNavigated{Frame: &cdp.Frame{ID: "main"}})
		mark := tr.mark()

		done := make(chan error, 1)
		go func() { done <- tr.waitNavigation(context.Background(), mark) }()

		time.Sleep(20 * time.Millisecond)
		tr.handleEvent(&page.EventNavigatedWithinDocument{FrameID: "main", URL: "https://vault.example/#/vault"})

		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(time.Second):
			t.Fatal("waitNavigation did not return")
		}
	})

	t.Run("times out without navigation", func(t *testing.T) {
		tr := newTestTracker(t)
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
		defer cancel()
		assert.ErrorIs(t, tr.waitNavigation(ctx, tr.mark()), context.DeadlineExceeded)
	})
}

func TestJSCall(t *testing.T) {
	script, err := jsCall(clickByTextJS, "button", `Purge "Vault"`)
	require.NoError(t, err)
	assert.Contains(t, script, `("button", "Purge \"Vault\"")`)

	script, err = jsCall(clickJS, "form .modal-footer .btn")
	require.NoError(t, err)
	assert.Contains(t, script, `("form .modal-footer .btn")`)
}
