// Package purge runs the login, settings and purge flow against a vault page.
package purge

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
)

// Page is the browser surface the flow needs. *browser.Session implements it.
type Page interface {
	Navigate(ctx context.Context, url string) error
	Click(ctx context.Context, selector string) error
	TypeText(ctx context.Context, text string) error
	Exists(ctx context.Context, selector string) (bool, error)
	WaitVisible(ctx context.Context, selector string) error
	ScrollToBottom(ctx context.Context) error
	ClickByText(ctx context.Context, tag, text string) (bool, error)
	ClickJS(ctx context.Context, selector string) (bool, error)
	NavigationMark() uint64
	WaitForNavigation(ctx context.Context, mark uint64, timeout time.Duration) error
	Screenshot(ctx context.Context) ([]byte, error)
}

// CodeSource supplies one-time codes for the two-factor step. *otp.Generator implements it.
type CodeSource interface {
	Fresh(ctx context.Context, minValidity time.Duration) (string, error)
}

// ErrElementNotFound is returned when a button the flow must press is not on the page.
var ErrElementNotFound = errors.New("element not found")

// selectorHint attaches the remediation for markup drift to err.
func selectorHint(err error, key string) error {
	if err == nil {
		return nil
	}
	return errors.WithHintf(err,
		"the vault markup may differ from the selected variant: try --variant current, or override vault.selectors.%s", key)
}

func notFound(key, what string) error {
	return selectorHint(errors.Wrapf(ErrElementNotFound, "%s", what), key)
}
