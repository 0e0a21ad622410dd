// internal/purge/runner.go
package purge

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/xkilldash9x/vaultpurge/internal/config"
	"github.com/xkilldash9x/vaultpurge/internal/vault"
)

// Credentials is the account the flow logs in with.
type Credentials struct {
	Host           string
	Email          string
	MasterPassword string
}

// Runner executes the purge flow once. It is not safe for concurrent use.
type Runner struct {
	page    Page
	profile vault.Profile
	creds   Credentials
	codes   CodeSource
	flow    config.FlowConfig
	logger  *zap.Logger

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error

	report *Report
}

// NewRunner creates a Runner. codes may be nil when the account has no second factor; a
// two-factor prompt then fails the run.
func NewRunner(page Page, profile vault.Profile, creds Credentials, codes CodeSource, flow config.FlowConfig, logger *zap.Logger) *Runner {
	return &Runner{
		page:    page,
		profile: profile,
		creds:   creds,
		codes:   codes,
		flow:    flow,
		logger:  logger.Named("purge").With(zap.String("variant", profile.Name)),
		now:     time.Now,
		sleep:   sleepCtx,
	}
}

type phase struct {
	name string
	run  func(ctx context.Context) error
}

// Run executes every phase in order and stops at the first failure. The report is always
// returned, also on error, and lists later phases as skipped.
func (r *Runner) Run(ctx context.Context) (*Report, error) {
	r.report = NewReport(r.profile.Name, r.creds.Host, r.flow.DryRun, r.now())
	r.logger = r.logger.With(zap.String("run_id", r.report.RunID))

	phases := []phase{
		{PhaseAuthenticate, r.authenticate},
		{PhaseOpenSettings, r.openSettings},
		{PhaseTriggerPurge, r.triggerPurge},
		{PhaseConfirmPurge, r.confirmPurge},
	}

	var runErr error
	for _, p := range phases {
		if runErr != nil {
			r.report.Phases = append(r.report.Phases, PhaseResult{Name: p.name, Status: StatusSkipped})
			continue
		}

		r.logger.Info("Starting phase.", zap.String("phase", p.name))
		start := r.now()
		err := p.run(ctx)
		result := PhaseResult{Name: p.name, Status: StatusOK, Duration: r.now().Sub(start)}
		if err != nil {
			runErr = errors.Wrapf(err, "%s", p.name)
			result.Status = StatusFailed
			result.Error = err.Error()
			r.logger.Error("Phase failed.", zap.String("phase", p.name), zap.Error(err))
		}
		r.report.Phases = append(r.report.Phases, result)
	}

	r.report.FinishedAt = r.now()
	if runErr != nil {
		r.report.Error = runErr.Error()
	}
	return r.report, runErr
}

func (r *Runner) authenticate(ctx context.Context) error {
	p := r.profile
	if err := r.page.Navigate(ctx, r.creds.Host); err != nil {
		return err
	}

	if err := r.page.Click(ctx, p.EmailInput); err != nil {
		return selectorHint(err, "email_input")
	}
	if err := r.page.TypeText(ctx, r.creds.Email); err != nil {
		return err
	}

	if p.TwoStepLogin() {
		if err := r.page.Click(ctx, p.ContinueButton); err != nil {
			return selectorHint(err, "continue_button")
		}
		if err := r.page.WaitVisible(ctx, p.PasswordInput); err != nil {
			return selectorHint(err, "password_input")
		}
	}

	if err := r.page.Click(ctx, p.PasswordInput); err != nil {
		return selectorHint(err, "password_input")
	}
	if err := r.page.TypeText(ctx, r.creds.MasterPassword); err != nil {
		return err
	}

	mark := r.page.NavigationMark()
	if err := r.page.Click(ctx, p.LoginButton); err != nil {
		return selectorHint(err, "login_button")
	}
	if err := r.page.WaitForNavigation(ctx, mark, r.flow.NavigationTimeout); err != nil {
		return errors.WithHint(errors.Wrap(err, "waiting for login"), "check the email address and master password")
	}
	r.logger.Info("Submitted login form.")

	twoFactor, err := r.page.Exists(ctx, p.OTPInput)
	if err != nil {
		return err
	}
	if !twoFactor {
		return nil
	}
	return r.submitTwoFactor(ctx)
}

func (r *Runner) submitTwoFactor(ctx context.Context) error {
	p := r.profile
	r.report.TwoFactor = true
	r.logger.Info("Two-factor authentication step detected.")

	if r.codes == nil {
		return errors.WithHint(errors.New("vault asks for a one-time code but no OTP secret is configured"),
			"set "+config.EnvOTPSecret)
	}
	code, err := r.codes.Fresh(ctx, r.flow.OTPMinValidity)
	if err != nil {
		return errors.Wrap(err, "generating one-time code")
	}

	if err := r.page.Click(ctx, p.OTPInput); err != nil {
		return selectorHint(err, "otp_input")
	}
	if err := r.page.TypeText(ctx, code); err != nil {
		return err
	}

	mark := r.page.NavigationMark()
	if err := r.page.Click(ctx, p.OTPSubmit); err != nil {
		return selectorHint(err, "otp_submit")
	}
	if err := r.page.WaitForNavigation(ctx, mark, r.flow.NavigationTimeout); err != nil {
		return errors.WithHint(errors.Wrap(err, "waiting for two-factor verification"),
			"check that the OTP secret belongs to this account and the system clock is correct")
	}
	r.logger.Info("Submitted one-time code.")
	return nil
}

func (r *Runner) openSettings(ctx context.Context) error {
	if err := r.page.Click(ctx, r.profile.SettingsLink); err != nil {
		return selectorHint(err, "settings_link")
	}
	return selectorHint(r.page.WaitVisible(ctx, r.profile.SettingsReady), "settings_ready")
}

func (r *Runner) triggerPurge(ctx context.Context) error {
	p := r.profile
	if err := r.page.ScrollToBottom(ctx); err != nil {
		return err
	}
	r.logger.Debug("Scrolled to the bottom of the page.")

	if err := r.page.WaitVisible(ctx, p.PurgeMarker); err != nil {
		return selectorHint(err, "purge_marker")
	}
	found, err := r.page.ClickByText(ctx, p.PurgeButtonTag, p.PurgeButtonText)
	if err != nil {
		return err
	}
	if !found {
		return notFound("purge_button_text", "no "+p.PurgeButtonTag+" containing \""+p.PurgeButtonText+"\"")
	}
	r.logger.Info("Clicked the purge button.")
	return nil
}

func (r *Runner) confirmPurge(ctx context.Context) error {
	p := r.profile
	if err := r.sleep(ctx, r.flow.ConfirmDelay); err != nil {
		return err
	}

	if p.ConfirmPasswordInput != "" {
		if err := r.page.Click(ctx, p.ConfirmPasswordInput); err != nil {
			return selectorHint(err, "confirm_password_input")
		}
	}
	if err := r.page.TypeText(ctx, r.creds.MasterPassword); err != nil {
		return err
	}
	r.logger.Info("Typed the master password for confirmation.")

	if err := r.page.WaitVisible(ctx, p.ConfirmButton); err != nil {
		return selectorHint(err, "confirm_button")
	}
	if r.flow.DryRun {
		r.logger.Warn("Dry run: leaving the confirmation dialog open, the vault was not purged.")
		return nil
	}

	mark := r.page.NavigationMark()
	found, err := r.page.ClickJS(ctx, p.ConfirmButton)
	if err != nil {
		return err
	}
	if !found {
		return notFound("confirm_button", "confirmation button "+p.ConfirmButton)
	}
	r.logger.Info("Clicked the final purge confirmation button.")

	if err := r.page.WaitForNavigation(ctx, mark, r.flow.PurgeTimeout); err != nil {
		return errors.Wrap(err, "waiting for the purge to complete")
	}
	r.logger.Info("Vault purged.")
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
