package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/xkilldash9x/vaultpurge/internal/browser"
	"github.com/xkilldash9x/vaultpurge/internal/config"
	"github.com/xkilldash9x/vaultpurge/internal/observability"
	"github.com/xkilldash9x/vaultpurge/internal/otp"
	"github.com/xkilldash9x/vaultpurge/internal/purge"
	"github.com/xkilldash9x/vaultpurge/internal/vault"
)

// browserPage is a purge.Page that owns a browser and must be closed.
type browserPage interface {
	purge.Page
	Close(ctx context.Context) error
}

// Function variables for dependency injection in tests.
var (
	openBrowser = func(ctx context.Context, cfg *config.Config, logger *zap.Logger) (browserPage, error) {
		session, err := browser.NewSession(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}
		return session, nil
	}
	isTerminal   = term.IsTerminal
	readPassword = term.ReadPassword
)

// newPurgeCmd creates and configures the `purge` command.
func newPurgeCmd() *cobra.Command {
	var promptPassword bool

	purgeCmd := &cobra.Command{
		Use:   "purge",
		Short: "Log into the web vault and purge every item in it",
		Long: `Logs into the web vault at BITWARDEN_SYNC_HOST as BITWARDEN_SYNC_BW_EMAIL_ADDRESS,
answers the two-factor prompt with a code derived from BITWARDEN_SYNC_BW_OTP_CODE, and
confirms Settings > Purge Vault with BITWARDEN_SYNC_BW_PASSWORD.

This permanently deletes every item in the vault. Use --dry-run to stop before the
final confirmation.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := getConfigFromContext(ctx)
			if err != nil {
				return err
			}
			logger := observability.GetLogger()

			if promptPassword && cfg.Vault.MasterPassword == "" {
				pw, err := promptForPassword(cmd)
				if err != nil {
					return err
				}
				cfg.Vault.MasterPassword = pw
			}
			return runPurge(ctx, cmd, cfg, logger)
		},
	}

	purgeCmd.Flags().String("variant", "legacy", "vault UI variant to drive (see `vaultpurge variants`)")
	purgeCmd.Flags().Bool("headless", true, "run the browser without a window")
	purgeCmd.Flags().Bool("dry-run", false, "stop before the final purge confirmation")
	purgeCmd.Flags().String("artifacts-dir", ".", "directory for the failure screenshot and error text")
	purgeCmd.Flags().String("report", "", "write a JSON run report to this path")
	purgeCmd.Flags().BoolVar(&promptPassword, "prompt-password", false, "read the master password from the terminal when it is not set")
	return purgeCmd
}

func runPurge(ctx context.Context, cmd *cobra.Command, cfg *config.Config, logger *zap.Logger) error {
	if err := cfg.Vault.RequireCredentials(); err != nil {
		return err
	}

	profile, err := vault.Lookup(cfg.Vault.Variant)
	if err != nil {
		return err
	}
	profile, err = profile.WithOverrides(cfg.Vault.Selectors)
	if err != nil {
		return errors.Wrap(err, "applying vault.selectors")
	}

	codes, err := otp.NewGenerator(cfg.Vault.OTPSecret)
	if err != nil {
		return errors.WithHint(err, "check "+config.EnvOTPSecret)
	}

	logger.Info("Starting vault purge",
		zap.String("host", cfg.Vault.Host),
		zap.String("variant", profile.Name),
		zap.Bool("dry_run", cfg.Flow.DryRun),
		observability.Secret("master_password", cfg.Vault.MasterPassword),
		observability.Secret("otp_secret", cfg.Vault.OTPSecret),
	)

	artifacts := purge.NewArtifactWriter(cfg.Artifacts, logger)

	page, err := openBrowser(ctx, cfg, logger)
	if err != nil {
		if werr := artifacts.WriteFailure(ctx, nil, err, nil); werr != nil {
			logger.Warn("Failed to write failure artifacts.", zap.Error(werr))
		}
		return err
	}
	defer func() {
		if err := page.Close(context.Background()); err != nil {
			logger.Warn("Failed to close the browser.", zap.Error(err))
		}
	}()

	creds := purge.Credentials{
		Host:           cfg.Vault.Host,
		Email:          cfg.Vault.Email,
		MasterPassword: cfg.Vault.MasterPassword,
	}
	report, runErr := purge.NewRunner(page, profile, creds, codes, cfg.Flow, logger).Run(ctx)

	switch {
	case runErr == nil:
	case errors.Is(runErr, context.Canceled):
		logger.Warn("Purge aborted.", zap.String("run_id", report.RunID))
	default:
		if err := artifacts.WriteFailure(ctx, page, runErr, report); err != nil {
			logger.Warn("Failed to write failure artifacts.", zap.Error(err))
		}
	}

	if err := artifacts.WriteReport(report); err != nil {
		logger.Warn("Failed to write run report.", zap.Error(err))
	}

	if runErr != nil {
		return runErr
	}
	if report.DryRun {
		fmt.Fprintf(cmd.OutOrStdout(), "Dry run complete, vault not purged. Run ID: %s\n", report.RunID)
	} else {
		fmt.Fprintf(cmd.OutOrStdout(), "Vault purged. Run ID: %s\n", report.RunID)
	}
	return nil
}

// promptForPassword reads the master password from the terminal without echo.
func promptForPassword(cmd *cobra.Command) (string, error) {
	fd := int(os.Stdin.Fd())
	if !isTerminal(fd) {
		return "", errors.WithHint(errors.New("--prompt-password needs an interactive terminal"),
			"set "+config.EnvMasterPassword+" instead")
	}
	fmt.Fprint(cmd.ErrOrStderr(), "Master password: ")
	pw, err := readPassword(fd)
	fmt.Fprintln(cmd.ErrOrStderr())
	if err != nil {
		return "", errors.Wrap(err, "reading master password")
	}
	return string(pw), nil
}
