// internal/browser/session.go
package browser

import (
	"context"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/vaultpurge/internal/config"
)

// Session is one browser with one tab. Every page action runs against the tab's context,
// combined with the caller's context.
type Session struct {
	id          string
	ctx         context.Context
	cancel      context.CancelFunc
	allocCancel context.CancelFunc
	logger      *zap.Logger

	browserCfg config.BrowserConfig
	flowCfg    config.FlowConfig
	tracker    *networkTracker

	closeOnce sync.Once
}

// NewSession launches Chrome, opens a tab, enables the network domain and emulates the
// configured viewport. The caller must Close the session.
func NewSession(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Session, error) {
	sessionID := uuid.New().String()
	logger = logger.Named("browser").With(zap.String("session_id", sessionID))

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, AllocatorOptions(cfg.Browser)...)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx, chromedp.WithLogf(logger.Sugar().Debugf))

	s := &Session{
		id:          sessionID,
		ctx:         tabCtx,
		cancel:      tabCancel,
		allocCancel: allocCancel,
		logger:      logger,
		browserCfg:  cfg.Browser,
		flowCfg:     cfg.Flow,
		tracker:     newNetworkTracker(logger),
	}

	// The first Run starts the browser and creates the target.
	if err := chromedp.Run(tabCtx); err != nil {
		s.release()
		return nil, errors.WithHint(
			errors.Wrap(err, "failed to launch browser"),
			"install Chrome or Chromium, or set browser.exec_path",
		)
	}

	chromedp.ListenTarget(tabCtx, s.tracker.handleEvent)

	err := chromedp.Run(tabCtx,
		network.Enable(),
		chromedp.EmulateViewport(int64(cfg.Browser.Viewport.Width), int64(cfg.Browser.Viewport.Height)),
	)
	if err != nil {
		_ = s.Close(context.Background())
		return nil, errors.Wrap(err, "failed to initialize browser tab")
	}

	logger.Debug("Browser session started.",
		zap.Bool("headless", cfg.Browser.Headless),
		zap.Int("viewport_width", cfg.Browser.Viewport.Width),
		zap.Int("viewport_height", cfg.Browser.Viewport.Height),
	)
	return s, nil
}

// ID returns the session id.
func (s *Session) ID() string {
	return s.id
}

// Close shuts the browser down gracefully and releases all resources. It is safe to call
// more than once.
func (s *Session) Close(ctx context.Context) error {
	var err error
	s.closeOnce.Do(func() {
		s.logger.Debug("Closing browser session.")

		done := make(chan error, 1)
		go func() { done <- chromedp.Cancel(s.ctx) }()

		select {
		case err = <-done:
		case <-ctx.Done():
			err = ctx.Err()
		case <-time.After(10 * time.Second):
			err = errors.New("timed out waiting for the browser to close")
		}
		s.release()
		if err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Warn("Browser did not close cleanly.", zap.Error(err))
		} else {
			err = nil
		}
	})
	return err
}

func (s *Session) release() {
	s.cancel()
	s.allocCancel()
}

// run executes actions against the tab, bounded by the caller's context and timeout.
func (s *Session) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	opCtx, opCancel := CombineContext(s.ctx, ctx)
	defer opCancel()

	if timeout > 0 {
		var cancel context.CancelFunc
		opCtx, cancel = context.WithTimeout(opCtx, timeout)
		defer cancel()
	}
	return chromedp.Run(opCtx, actions...)
}
