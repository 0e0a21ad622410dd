// File: internal/config/config_test.go
package config

import (
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/vaultpurge/internal/vault"
)

// -- Constructor and Defaults Tests --

func TestNewDefaultConfig(t *testing.T) {
	cfg := NewDefaultConfig()

	assert.Equal(t, "info", cfg.Logger.Level)
	assert.Equal(t, "vaultpurge", cfg.Logger.ServiceName)
	assert.Equal(t, "legacy", cfg.Vault.Variant)
	assert.True(t, cfg.Browser.Headless)
	assert.Equal(t, 1920, cfg.Browser.Viewport.Width)
	assert.Equal(t, 1080, cfg.Browser.Viewport.Height)
	assert.Equal(t, 10*time.Millisecond, cfg.Browser.TypingDelay)
	assert.Equal(t, 30*time.Second, cfg.Flow.NavigationTimeout)
	assert.Equal(t, 500*time.Millisecond, cfg.Flow.NetworkIdleQuiet)
	assert.Equal(t, 2, cfg.Flow.NetworkIdleMaxInflight)
	assert.Equal(t, 2*time.Second, cfg.Flow.ConfirmDelay)
	assert.Equal(t, 60*time.Second, cfg.Flow.PurgeTimeout)
	assert.False(t, cfg.Flow.DryRun)
	assert.True(t, cfg.Artifacts.Enabled)
	assert.Equal(t, "error-screenshot.png", cfg.Artifacts.Screenshot)
	assert.Equal(t, "error.txt", cfg.Artifacts.ErrorFile)

	require.NoError(t, cfg.Validate(), "defaults must validate")
}

// -- Environment Binding Tests --

func TestBindEnv_CredentialNames(t *testing.T) {
	t.Setenv(EnvHost, "https://vault.example.com")
	t.Setenv(EnvEmail, "ops@example.com")
	t.Setenv(EnvMasterPassword, "correct horse")
	t.Setenv(EnvOTPSecret, "JBSWY3DPEHPK3PXP")

	v := viper.New()
	SetDefaults(v)
	BindEnv(v)

	cfg, err := NewConfigFromViper(v)
	require.NoError(t, err)

	assert.Equal(t, "https://vault.example.com", cfg.Vault.Host)
	assert.Equal(t, "ops@example.com", cfg.Vault.Email)
	assert.Equal(t, "correct horse", cfg.Vault.MasterPassword)
	assert.Equal(t, "JBSWY3DPEHPK3PXP", cfg.Vault.OTPSecret)
	assert.NoError(t, cfg.Vault.RequireCredentials())
}

func TestBindEnv_PrefixedOverrides(t *testing.T) {
	t.Setenv("VAULTPURGE_VAULT_HOST", "https://prefixed.example.com")
	t.Setenv("VAULTPURGE_VAULT_VARIANT", "CURRENT")
	t.Setenv("VAULTPURGE_FLOW_PURGE_TIMEOUT", "90s")
	t.Setenv("VAULTPURGE_BROWSER_HEADLESS", "false")

	v := viper.New()
	SetDefaults(v)
	BindEnv(v)

	cfg, err := NewConfigFromViper(v)
	require.NoError(t, err)

	assert.Equal(t, "https://prefixed.example.com", cfg.Vault.Host)
	assert.Equal(t, "current", cfg.Vault.Variant, "variant is normalized to lower case")
	assert.Equal(t, 90*time.Second, cfg.Flow.PurgeTimeout)
	assert.False(t, cfg.Browser.Headless)
}

func TestBindEnv_BrowserOverridesWithoutFileValues(t *testing.T) {
	t.Setenv("VAULTPURGE_BROWSER_EXEC_PATH", "/opt/chrome/chrome")
	t.Setenv("VAULTPURGE_BROWSER_USER_AGENT", "vaultpurge-ci")
	t.Setenv("VAULTPURGE_BROWSER_ARGS", "--disable-gpu,lang=de-DE")

	v := viper.New()
	SetDefaults(v)
	BindEnv(v)

	cfg, err := NewConfigFromViper(v)
	require.NoError(t, err)

	assert.Equal(t, "/opt/chrome/chrome", cfg.Browser.ExecPath)
	assert.Equal(t, "vaultpurge-ci", cfg.Browser.UserAgent)
	assert.Equal(t, []string{"--disable-gpu", "lang=de-DE"}, cfg.Browser.Args)
}

func TestNewDefaultConfig_BrowserOptionalsEmpty(t *testing.T) {
	cfg := NewDefaultConfig()
	assert.Empty(t, cfg.Browser.ExecPath)
	assert.Empty(t, cfg.Browser.UserAgent)
	assert.Empty(t, cfg.Browser.Args)
}

func TestBindEnv_HistoricalNameWins(t *testing.T) {
	t.Setenv(EnvHost, "https://historical.example.com")
	t.Setenv("VAULTPURGE_VAULT_HOST", "https://prefixed.example.com")

	v := viper.New()
	SetDefaults(v)
	BindEnv(v)

	assert.Equal(t, "https://historical.example.com", v.GetString("vault.host"))
}

// -- Credential Tests --

func TestRequireCredentials(t *testing.T) {
	full := VaultConfig{
		Host:           "https://vault.example.com",
		Email:          "ops@example.com",
		MasterPassword: "pw",
		OTPSecret:      "JBSWY3DPEHPK3PXP",
	}
	assert.NoError(t, full.RequireCredentials())
	assert.Empty(t, full.MissingCredentials())

	t.Run("all missing", func(t *testing.T) {
		err := VaultConfig{}.RequireCredentials()
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrMissingCredentials))
		for _, name := range []string{EnvHost, EnvEmail, EnvMasterPassword, EnvOTPSecret} {
			assert.Contains(t, err.Error(), name)
		}
		assert.NotEmpty(t, errors.GetAllHints(err))
	})

	t.Run("whitespace counts as missing", func(t *testing.T) {
		partial := full
		partial.Email = "   "
		partial.OTPSecret = ""
		assert.Equal(t, []string{EnvEmail, EnvOTPSecret}, partial.MissingCredentials())
	})

	t.Run("password is taken verbatim", func(t *testing.T) {
		spaced := full
		spaced.MasterPassword = " "
		assert.Empty(t, spaced.MissingCredentials())
	})
}

// -- Validation Logic Tests --

func TestConfigValidation(t *testing.T) {
	t.Run("Unknown Variant", func(t *testing.T) {
		cfg := NewDefaultConfig()
		cfg.Vault.Variant = "v3"
		err := cfg.Validate()
		require.Error(t, err)
		assert.ErrorIs(t, err, vault.ErrUnknownVariant)
		assert.Contains(t, err.Error(), "vault.variant")
		assert.Contains(t, err.Error(), "current, legacy")
	})

	t.Run("Every Registered Profile Is Accepted", func(t *testing.T) {
		for _, name := range vault.Names() {
			cfg := NewDefaultConfig()
			cfg.Vault.Variant = name
			assert.NoError(t, cfg.Validate(), name)
		}
	})

	t.Run("Invalid Viewport", func(t *testing.T) {
		cfg := NewDefaultConfig()
		cfg.Browser.Viewport.Width = 0
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "browser.viewport")
	})

	t.Run("Negative Typing Delay", func(t *testing.T) {
		cfg := NewDefaultConfig()
		cfg.Browser.TypingDelay = -time.Millisecond
		assert.Error(t, cfg.Validate())
	})

	t.Run("Artifacts Need File Names", func(t *testing.T) {
		cfg := NewDefaultConfig()
		cfg.Artifacts.ErrorFile = ""
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "artifacts.screenshot and artifacts.error_file")

		cfg.Artifacts.Enabled = false
		assert.NoError(t, cfg.Validate())
	})
}

func TestFlowConfigValidation(t *testing.T) {
	valid := NewDefaultConfig().Flow
	require.NoError(t, valid.Validate())

	tests := []struct {
		name    string
		mutate  func(f *FlowConfig)
		wantErr string
	}{
		{"navigation timeout", func(f *FlowConfig) { f.NavigationTimeout = 0 }, "navigation_timeout"},
		{"step timeout", func(f *FlowConfig) { f.StepTimeout = 0 }, "step_timeout"},
		{"purge timeout", func(f *FlowConfig) { f.PurgeTimeout = -time.Second }, "purge_timeout"},
		{"idle quiet", func(f *FlowConfig) { f.NetworkIdleQuiet = 0 }, "network_idle_quiet"},
		{"idle inflight", func(f *FlowConfig) { f.NetworkIdleMaxInflight = -1 }, "network_idle_max_inflight"},
		{"confirm delay", func(f *FlowConfig) { f.ConfirmDelay = -time.Second }, "confirm_delay"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := valid
			tt.mutate(&f)
			err := f.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestNewConfigFromViper_ExpandsHome(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	homedir.DisableCache = true
	t.Cleanup(func() { homedir.DisableCache = false })

	v := viper.New()
	SetDefaults(v)
	v.Set("artifacts.dir", "~/purge-artifacts")

	cfg, err := NewConfigFromViper(v)
	require.NoError(t, err)
	assert.Equal(t, home+"/purge-artifacts", cfg.Artifacts.Dir)
}

func TestNewConfigFromViper_InvalidConfig(t *testing.T) {
	v := viper.New()
	SetDefaults(v)
	v.Set("flow.purge_timeout", "0s")

	_, err := NewConfigFromViper(v)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")
}
