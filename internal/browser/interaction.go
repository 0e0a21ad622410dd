// internal/browser/interaction.go
package browser

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/chromedp"
	"github.com/cockroachdb/errors"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"
)

// Navigate loads url and waits until the network is idle.
func (s *Session) Navigate(ctx context.Context, url string) error {
	s.logger.Debug("Navigating to URL", zap.String("url", url))

	opCtx, opCancel := CombineContext(s.ctx, ctx)
	defer opCancel()

	navTimeout := s.flowCfg.NavigationTimeout
	if navTimeout <= 0 {
		navTimeout = 30 * time.Second
	}
	navCtx, navCancel := context.WithTimeout(opCtx, navTimeout)
	defer navCancel()

	if err := chromedp.Run(navCtx, chromedp.Navigate(url)); err != nil {
		if errors.Is(navCtx.Err(), context.DeadlineExceeded) {
			return errors.Wrapf(err, "navigation to %s timed out after %s", url, navTimeout)
		}
		return errors.Wrapf(err, "navigation to %s failed", url)
	}

	if err := s.tracker.WaitIdle(navCtx, s.flowCfg.NetworkIdleQuiet, s.flowCfg.NetworkIdleMaxInflight); err != nil {
		return errors.Wrapf(err, "waiting for network idle after loading %s", url)
	}
	return nil
}

// Click waits for selector to be visible, scrolls it into view and clicks it.
func (s *Session) Click(ctx context.Context, selector string) error {
	s.logger.Debug("Clicking element", zap.String("selector", selector))
	err := s.run(ctx, s.flowCfg.StepTimeout,
		chromedp.WaitVisible(selector, chromedp.ByQuery),
		chromedp.ScrollIntoView(selector, chromedp.ByQuery),
		chromedp.Click(selector, chromedp.ByQuery, chromedp.NodeVisible),
	)
	return errors.Wrapf(err, "click %q", selector)
}

// TypeText sends text as individual key events to the focused element, pausing
// TypingDelay between characters.
func (s *Session) TypeText(ctx context.Context, text string) error {
	actions := make([]chromedp.Action, 0, 2*len(text))
	for _, r := range text {
		actions = append(actions, chromedp.KeyEvent(string(r)))
		if s.browserCfg.TypingDelay > 0 {
			actions = append(actions, chromedp.Sleep(s.browserCfg.TypingDelay))
		}
	}
	// Never log the text, it is a password or a one-time code.
	s.logger.Debug("Typing into focused element", zap.Int("length", len([]rune(text))))
	return errors.Wrap(s.run(ctx, 0, actions...), "typing text")
}

// Exists reports whether selector currently matches anything, without waiting.
func (s *Session) Exists(ctx context.Context, selector string) (bool, error) {
	var nodes []*cdp.Node
	err := s.run(ctx, s.flowCfg.StepTimeout,
		chromedp.Nodes(selector, &nodes, chromedp.ByQuery, chromedp.AtLeast(0)),
	)
	if err != nil {
		return false, errors.Wrapf(err, "query %q", selector)
	}
	return len(nodes) > 0, nil
}

// WaitVisible blocks until selector is visible or the step timeout elapses.
func (s *Session) WaitVisible(ctx context.Context, selector string) error {
	err := s.run(ctx, s.flowCfg.StepTimeout, chromedp.WaitVisible(selector, chromedp.ByQuery))
	return errors.Wrapf(err, "wait for %q to be visible", selector)
}

// ScrollToBottom scrolls the window to the end of the document.
func (s *Session) ScrollToBottom(ctx context.Context) error {
	err := s.run(ctx, s.flowCfg.StepTimeout,
		chromedp.Evaluate(`window.scrollTo(0, document.body.scrollHeight)`, nil),
	)
	return errors.Wrap(err, "scroll to bottom")
}

const clickByTextJS = `(function(tag, text) {
	const want = text.toLowerCase();
	for (const el of document.querySelectorAll(tag)) {
		if ((el.textContent || '').toLowerCase().includes(want)) {
			el.scrollIntoView({block: 'center'});
			el.click();
			return true;
		}
	}
	return false;
})(%s, %s)`

// ClickByText clicks the first tag element whose text content contains text, ignoring
// case. It reports whether such an element was found.
func (s *Session) ClickByText(ctx context.Context, tag, text string) (bool, error) {
	script, err := jsCall(clickByTextJS, tag, text)
	if err != nil {
		return false, err
	}
	var found bool
	if err := s.run(ctx, s.flowCfg.StepTimeout, chromedp.Evaluate(script, &found)); err != nil {
		return false, errors.Wrapf(err, "click %s containing %q", tag, text)
	}
	s.logger.Debug("Clicked by text", zap.String("tag", tag), zap.String("text", text), zap.Bool("found", found))
	return found, nil
}

const clickJS = `(function(selector) {
	const el = document.querySelector(selector);
	if (!el) {
		return false;
	}
	el.click();
	return true;
})(%s)`

// ClickJS dispatches a DOM click on the first element matching selector. It reports
// whether the element was found.
func (s *Session) ClickJS(ctx context.Context, selector string) (bool, error) {
	script, err := jsCall(clickJS, selector)
	if err != nil {
		return false, err
	}
	var found bool
	if err := s.run(ctx, s.flowCfg.StepTimeout, chromedp.Evaluate(script, &found)); err != nil {
		return false, errors.Wrapf(err, "DOM click %q", selector)
	}
	return found, nil
}

// NavigationMark returns a token for WaitForNavigation. Take it before the action that
// triggers the navigation so a fast navigation is not missed.
func (s *Session) NavigationMark() uint64 {
	return s.tracker.mark()
}

// WaitForNavigation blocks until the main frame navigates after mark (including hash
// route changes of single-page apps) and the network is idle again.
func (s *Session) WaitForNavigation(ctx context.Context, mark uint64, timeout time.Duration) error {
	opCtx, opCancel := CombineContext(s.ctx, ctx)
	defer opCancel()

	if timeout > 0 {
		var cancel context.CancelFunc
		opCtx, cancel = context.WithTimeout(opCtx, timeout)
		defer cancel()
	}

	if err := s.tracker.waitNavigation(opCtx, mark); err != nil {
		return errors.Wrapf(err, "no navigation within %s", timeout)
	}
	if err := s.tracker.WaitIdle(opCtx, s.flowCfg.NetworkIdleQuiet, s.flowCfg.NetworkIdleMaxInflight); err != nil {
		return errors.Wrap(err, "waiting for network idle after navigation")
	}
	return nil
}

// Screenshot captures the full page as PNG.
func (s *Session) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	if err := s.run(ctx, s.flowCfg.StepTimeout, chromedp.FullScreenshot(&buf, 100)); err != nil {
		return nil, errors.Wrap(err, "full page screenshot")
	}
	return buf, nil
}

// jsCall fills the %s placeholders of an IIFE template with JSON encoded arguments.
func jsCall(template string, args ...interface{}) (string, error) {
	encoded := make([]interface{}, len(args))
	for i, arg := range args {
		b, err := jsoniter.ConfigCompatibleWithStandardLibrary.Marshal(arg)
		if err != nil {
			return "", errors.Wrap(err, "encoding script argument")
		}
		encoded[i] = string(b)
	}
	return fmt.Sprintf(template, encoded...), nil
}
