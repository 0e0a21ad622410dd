// internal/browser/options.go
package browser

import (
	"fmt"
	"strings"

	"github.com/chromedp/chromedp"

	"github.com/xkilldash9x/vaultpurge/internal/config"
)

// launchFlags translates the browser config into Chrome command line flags, keyed by flag
// name without the leading dashes. A false value omits the flag.
func launchFlags(cfg config.BrowserConfig) map[string]interface{} {
	flags := map[string]interface{}{
		"headless":              cfg.Headless,
		"hide-scrollbars":       cfg.Headless,
		"mute-audio":            cfg.Headless,
		"disable-dev-shm-usage": true,
		"no-sandbox":            cfg.NoSandbox,
		"window-size":           fmt.Sprintf("%d,%d", cfg.Viewport.Width, cfg.Viewport.Height),
	}
	if cfg.IgnoreTLSErrors {
		flags["ignore-certificate-errors"] = true
		flags["allow-insecure-localhost"] = true
	}
	if cfg.UserAgent != "" {
		flags["user-agent"] = cfg.UserAgent
	}

	// Extra arguments from the config file, "flag" or "flag=value".
	for _, arg := range cfg.Args {
		name, value, hasValue := strings.Cut(strings.TrimLeft(strings.TrimSpace(arg), "-"), "=")
		if name == "" {
			continue
		}
		if hasValue {
			flags[name] = value
		} else {
			flags[name] = true
		}
	}
	return flags
}

// AllocatorOptions builds the chromedp exec allocator options for cfg on top of the
// chromedp defaults.
func AllocatorOptions(cfg config.BrowserConfig) []chromedp.ExecAllocatorOption {
	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	for name, value := range launchFlags(cfg) {
		opts = append(opts, chromedp.Flag(name, value))
	}
	if cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ExecPath))
	}
	return opts
}
