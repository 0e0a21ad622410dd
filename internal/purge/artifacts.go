// internal/purge/artifacts.go
package purge

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/hashicorp/go-multierror"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/vaultpurge/internal/config"
)

// screenshotTimeout bounds the failure screenshot, which may run after the run context
// was canceled.
const screenshotTimeout = 15 * time.Second

// ArtifactWriter persists the failure screenshot, the error text and the run report.
type ArtifactWriter struct {
	cfg    config.ArtifactsConfig
	logger *zap.Logger
	now    func() time.Time
}

// NewArtifactWriter creates an ArtifactWriter.
func NewArtifactWriter(cfg config.ArtifactsConfig, logger *zap.Logger) *ArtifactWriter {
	return &ArtifactWriter{
		cfg:    cfg,
		logger: logger.Named("artifacts"),
		now:    time.Now,
	}
}

// WriteFailure writes the screenshot and error text of a failed run. page may be nil when
// the browser never started. Every write is attempted; the returned error aggregates the
// ones that failed.
func (w *ArtifactWriter) WriteFailure(ctx context.Context, page Page, runErr error, report *Report) error {
	if !w.cfg.Enabled || runErr == nil {
		return nil
	}
	if err := os.MkdirAll(w.cfg.Dir, 0o755); err != nil {
		return errors.Wrapf(err, "creating artifacts directory %s", w.cfg.Dir)
	}

	var result *multierror.Error

	if page != nil && w.cfg.Screenshot != "" {
		shotCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), screenshotTimeout)
		png, err := page.Screenshot(shotCtx)
		cancel()
		if err != nil {
			result = multierror.Append(result, errors.Wrap(err, "capturing failure screenshot"))
		} else if err := w.write(w.cfg.Screenshot, png); err != nil {
			result = multierror.Append(result, err)
		}
	}

	if w.cfg.ErrorFile != "" {
		if err := w.write(w.cfg.ErrorFile, []byte(w.errorText(runErr, report))); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}

// errorText renders the error message, its hints and the run metadata.
func (w *ArtifactWriter) errorText(runErr error, report *Report) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n\n", runErr.Error())
	for _, hint := range errors.GetAllHints(runErr) {
		fmt.Fprintf(&b, "hint: %s\n", hint)
	}
	fmt.Fprintf(&b, "time: %s\n", w.now().UTC().Format(time.RFC3339))
	if report != nil {
		fmt.Fprintf(&b, "run_id: %s\n", report.RunID)
		fmt.Fprintf(&b, "variant: %s\n", report.Variant)
		if phase := report.FailedPhase(); phase != "" {
			fmt.Fprintf(&b, "phase: %s\n", phase)
		}
		fmt.Fprintf(&b, "two_factor: %t\n", report.TwoFactor)
	}
	return b.String()
}

// WriteReport writes report as JSON to the configured report path. It does nothing when
// no path is configured.
func (w *ArtifactWriter) WriteReport(report *Report) error {
	if w.cfg.Report == "" || report == nil {
		return nil
	}
	data, err := jsoniter.ConfigCompatibleWithStandardLibrary.MarshalIndent(report, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encoding run report")
	}
	if dir := filepath.Dir(w.cfg.Report); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrapf(err, "creating report directory %s", dir)
		}
	}
	if err := os.WriteFile(w.cfg.Report, append(data, '\n'), 0o600); err != nil {
		return errors.Wrapf(err, "writing run report %s", w.cfg.Report)
	}
	w.logger.Info("Wrote run report.", zap.String("path", w.cfg.Report))
	return nil
}

func (w *ArtifactWriter) write(name string, data []byte) error {
	path := filepath.Join(w.cfg.Dir, name)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return errors.Wrapf(err, "writing %s", path)
	}
	w.logger.Info("Wrote failure artifact.", zap.String("path", path))
	return nil
}
