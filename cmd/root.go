// -- cmd/root.go --
package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/xkilldash9x/vaultpurge/internal/config"
	"github.com/xkilldash9x/vaultpurge/internal/observability"
)

type contextKey string

const configKey contextKey = "config"

// flagKeys maps command line flags to the config keys they override.
var flagKeys = map[string]string{
	"log-level":     "logger.level",
	"variant":       "vault.variant",
	"headless":      "browser.headless",
	"dry-run":       "flow.dry_run",
	"artifacts-dir": "artifacts.dir",
	"report":        "artifacts.report",
}

// NewRootCommand builds a fresh command tree. Each call is independent, which keeps tests
// isolated from one another.
func NewRootCommand() *cobra.Command {
	var cfgFile, envFile string

	rootCmd := &cobra.Command{
		Use:   "vaultpurge",
		Short: "Logs into a Bitwarden or Vaultwarden web vault and purges every item in it.",
		Long: `vaultpurge drives a headless browser through the web vault login, including the
two-factor step, and triggers Settings > Purge Vault. Credentials come from the
BITWARDEN_SYNC_* environment variables or a .env file.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			v := viper.New()
			config.SetDefaults(v)

			if err := initializeConfig(cmd, v, cfgFile, envFile); err != nil {
				observability.InitializeLogger(config.NewDefaultConfig().Logger)
				return errors.Wrap(err, "failed to initialize configuration")
			}

			cfg, err := config.NewConfigFromViper(v)
			if err != nil {
				observability.InitializeLogger(config.NewDefaultConfig().Logger)
				return errors.Wrap(err, "failed to load or validate config")
			}

			observability.InitializeLogger(cfg.Logger)
			observability.GetLogger().Debug("Starting vaultpurge", zap.String("version", Version))

			cmd.SetContext(context.WithValue(cmd.Context(), configKey, cfg))
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default is ./config.yaml)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "dotenv file with the credentials (default is ./.env when present)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")

	rootCmd.AddCommand(newPurgeCmd())
	rootCmd.AddCommand(newOTPCmd())
	rootCmd.AddCommand(newVariantsCmd())
	rootCmd.AddCommand(newVersionCmd())
	return rootCmd
}

// Execute runs the command tree with the signal-aware context from main and logs a
// failure together with its hints.
func Execute(ctx context.Context) error {
	rootCmd := NewRootCommand()
	err := rootCmd.ExecuteContext(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		observability.GetLogger().Error("Command execution failed", zap.Error(err))
		fmt.Fprintln(rootCmd.ErrOrStderr(), "Error:", err)
		for _, hint := range errors.GetAllHints(err) {
			fmt.Fprintln(rootCmd.ErrOrStderr(), "Hint:", hint)
		}
	}
	observability.Sync()
	return err
}

// initializeConfig loads the dotenv file, the config file, the environment and the flags
// into v, in increasing order of precedence.
func initializeConfig(cmd *cobra.Command, v *viper.Viper, cfgFile, envFile string) error {
	if err := loadEnvFile(envFile); err != nil {
		return err
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return errors.Wrap(err, "error reading config file")
		}
	}

	config.BindEnv(v)

	for name, key := range flagKeys {
		if flag := cmd.Flags().Lookup(name); flag != nil {
			if err := v.BindPFlag(key, flag); err != nil {
				return errors.Wrapf(err, "binding flag --%s", name)
			}
		}
	}
	return nil
}

// loadEnvFile loads path, or ./.env when path is empty and the file exists. Variables
// already present in the environment are not overwritten.
func loadEnvFile(path string) error {
	if path == "" {
		if _, err := os.Stat(".env"); err != nil {
			return nil
		}
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		return errors.Wrapf(err, "loading env file %s", path)
	}
	return nil
}

// getConfigFromContext returns the config stored by PersistentPreRunE.
func getConfigFromContext(ctx context.Context) (*config.Config, error) {
	cfg, ok := ctx.Value(configKey).(*config.Config)
	if !ok || cfg == nil {
		return nil, errors.New("configuration not initialized")
	}
	return cfg, nil
}
