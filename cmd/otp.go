package cmd

import (
	"fmt"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/xkilldash9x/vaultpurge/internal/config"
	"github.com/xkilldash9x/vaultpurge/internal/otp"
)

// now is replaced in tests.
var now = time.Now

// newOTPCmd creates the `otp` command, which prints the current two-factor code. It is
// handy for checking the seed against an authenticator app before a purge.
func newOTPCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "otp",
		Short: "Print the current one-time code for the configured OTP secret",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := getConfigFromContext(cmd.Context())
			if err != nil {
				return err
			}
			if cfg.Vault.OTPSecret == "" {
				return errors.WithHint(
					errors.Wrapf(config.ErrMissingCredentials, "%s is not set", config.EnvOTPSecret),
					"export "+config.EnvOTPSecret+" or add it to .env",
				)
			}

			gen, err := otp.NewGenerator(cfg.Vault.OTPSecret)
			if err != nil {
				return err
			}
			t := now()
			code, err := gen.CodeAt(t)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s (valid for %s)\n", code, gen.Remaining(t).Truncate(time.Second))
			return err
		},
	}
}
