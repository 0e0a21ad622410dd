// File: internal/config/config.go
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"

	"github.com/xkilldash9x/vaultpurge/internal/vault"
)

// EnvPrefix is the prefix for every environment override except the vault credentials,
// which keep the variable names the deployment already exports.
const EnvPrefix = "VAULTPURGE"

// Environment variable names of the four required credentials.
const (
	EnvHost           = "BITWARDEN_SYNC_HOST"
	EnvEmail          = "BITWARDEN_SYNC_BW_EMAIL_ADDRESS"
	EnvMasterPassword = "BITWARDEN_SYNC_BW_PASSWORD"
	EnvOTPSecret      = "BITWARDEN_SYNC_BW_OTP_CODE"
)

// ErrMissingCredentials is returned when one or more required credential variables are unset.
var ErrMissingCredentials = errors.New("required vault credentials are not set")

// Config holds the entire application configuration.
type Config struct {
	Logger    LoggerConfig    `mapstructure:"logger" yaml:"logger"`
	Vault     VaultConfig     `mapstructure:"vault" yaml:"vault"`
	Browser   BrowserConfig   `mapstructure:"browser" yaml:"browser"`
	Flow      FlowConfig      `mapstructure:"flow" yaml:"flow"`
	Artifacts ArtifactsConfig `mapstructure:"artifacts" yaml:"artifacts"`
}

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig defines the color codes for different log levels.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// VaultConfig identifies the vault instance, the account, and which UI variant to drive.
type VaultConfig struct {
	Host           string `mapstructure:"host" yaml:"host"`
	Email          string `mapstructure:"email" yaml:"email"`
	MasterPassword string `mapstructure:"master_password" yaml:"-"`
	OTPSecret      string `mapstructure:"otp_secret" yaml:"-"`
	Variant        string `mapstructure:"variant" yaml:"variant"`
	// Selectors overrides individual profile selectors, keyed by snake_case field name.
	Selectors map[string]string `mapstructure:"selectors" yaml:"selectors"`
}

// BrowserConfig holds settings for the headless browser instance.
type BrowserConfig struct {
	Headless        bool           `mapstructure:"headless" yaml:"headless"`
	NoSandbox       bool           `mapstructure:"no_sandbox" yaml:"no_sandbox"`
	ExecPath        string         `mapstructure:"exec_path" yaml:"exec_path"`
	UserAgent       string         `mapstructure:"user_agent" yaml:"user_agent"`
	IgnoreTLSErrors bool           `mapstructure:"ignore_tls_errors" yaml:"ignore_tls_errors"`
	Args            []string       `mapstructure:"args" yaml:"args"`
	Viewport        ViewportConfig `mapstructure:"viewport" yaml:"viewport"`
	// TypingDelay is the pause between simulated key presses.
	TypingDelay time.Duration `mapstructure:"typing_delay" yaml:"typing_delay"`
}

// ViewportConfig is the emulated window size.
type ViewportConfig struct {
	Width  int `mapstructure:"width" yaml:"width"`
	Height int `mapstructure:"height" yaml:"height"`
}

// FlowConfig tunes the waits of the purge flow.
type FlowConfig struct {
	NavigationTimeout      time.Duration `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
	StepTimeout            time.Duration `mapstructure:"step_timeout" yaml:"step_timeout"`
	NetworkIdleQuiet       time.Duration `mapstructure:"network_idle_quiet" yaml:"network_idle_quiet"`
	NetworkIdleMaxInflight int           `mapstructure:"network_idle_max_inflight" yaml:"network_idle_max_inflight"`
	ConfirmDelay           time.Duration `mapstructure:"confirm_delay" yaml:"confirm_delay"`
	PurgeTimeout           time.Duration `mapstructure:"purge_timeout" yaml:"purge_timeout"`
	OTPMinValidity         time.Duration `mapstructure:"otp_min_validity" yaml:"otp_min_validity"`
	// DryRun performs every step except the final confirmation click.
	DryRun bool `mapstructure:"dry_run" yaml:"dry_run"`
}

// ArtifactsConfig controls the post-mortem files written when a run fails.
type ArtifactsConfig struct {
	Enabled    bool   `mapstructure:"enabled" yaml:"enabled"`
	Dir        string `mapstructure:"dir" yaml:"dir"`
	Screenshot string `mapstructure:"screenshot" yaml:"screenshot"`
	ErrorFile  string `mapstructure:"error_file" yaml:"error_file"`
	// Report, when set, receives a JSON summary of every run.
	Report string `mapstructure:"report" yaml:"report"`
}

// NewDefaultConfig creates a new configuration struct populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// SetDefaults initializes default values for various configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "vaultpurge")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 10)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age", 14)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.colors.debug", "cyan")
	v.SetDefault("logger.colors.info", "green")
	v.SetDefault("logger.colors.warn", "yellow")
	v.SetDefault("logger.colors.error", "red")
	v.SetDefault("logger.colors.dpanic", "magenta")
	v.SetDefault("logger.colors.panic", "magenta")
	v.SetDefault("logger.colors.fatal", "magenta")

	// -- Vault --
	v.SetDefault("vault.variant", "legacy")

	// -- Browser --
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.no_sandbox", false)
	v.SetDefault("browser.ignore_tls_errors", false)
	v.SetDefault("browser.exec_path", "")
	v.SetDefault("browser.user_agent", "")
	v.SetDefault("browser.args", []string{})
	v.SetDefault("browser.viewport.width", 1920)
	v.SetDefault("browser.viewport.height", 1080)
	v.SetDefault("browser.typing_delay", "10ms")

	// -- Flow --
	v.SetDefault("flow.navigation_timeout", "30s")
	v.SetDefault("flow.step_timeout", "30s")
	v.SetDefault("flow.network_idle_quiet", "500ms")
	v.SetDefault("flow.network_idle_max_inflight", 2)
	v.SetDefault("flow.confirm_delay", "2s")
	v.SetDefault("flow.purge_timeout", "60s")
	v.SetDefault("flow.otp_min_validity", "3s")
	v.SetDefault("flow.dry_run", false)

	// -- Artifacts --
	v.SetDefault("artifacts.enabled", true)
	v.SetDefault("artifacts.dir", ".")
	v.SetDefault("artifacts.screenshot", "error-screenshot.png")
	v.SetDefault("artifacts.error_file", "error.txt")
	v.SetDefault("artifacts.report", "")
}

// BindEnv wires environment variables into v. Credentials are bound to their historical
// names first, then to the prefixed form.
func BindEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	_ = v.BindEnv("vault.host", EnvHost, EnvPrefix+"_VAULT_HOST")
	_ = v.BindEnv("vault.email", EnvEmail, EnvPrefix+"_VAULT_EMAIL")
	_ = v.BindEnv("vault.master_password", EnvMasterPassword, EnvPrefix+"_VAULT_MASTER_PASSWORD")
	_ = v.BindEnv("vault.otp_secret", EnvOTPSecret, EnvPrefix+"_VAULT_OTP_SECRET")
}

// NewConfigFromViper creates a new configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "error unmarshaling config")
	}

	if err := cfg.expandPaths(); err != nil {
		return nil, err
	}
	cfg.Vault.Variant = strings.ToLower(strings.TrimSpace(cfg.Vault.Variant))

	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid configuration")
	}
	return &cfg, nil
}

func (c *Config) expandPaths() error {
	for _, p := range []*string{&c.Artifacts.Dir, &c.Artifacts.Report, &c.Logger.LogFile, &c.Browser.ExecPath} {
		if *p == "" {
			continue
		}
		expanded, err := homedir.Expand(*p)
		if err != nil {
			return errors.Wrapf(err, "expanding path %q", *p)
		}
		*p = expanded
	}
	return nil
}

// Validate checks the configuration for sane values. Credentials are checked separately
// by VaultConfig.RequireCredentials so that commands which need only part of them can run.
func (c *Config) Validate() error {
	if _, err := vault.Lookup(c.Vault.Variant); err != nil {
		return errors.Wrap(err, "vault.variant")
	}
	if c.Browser.Viewport.Width <= 0 || c.Browser.Viewport.Height <= 0 {
		return errors.New("browser.viewport width and height must be positive")
	}
	if c.Browser.TypingDelay < 0 {
		return errors.New("browser.typing_delay must not be negative")
	}
	if err := c.Flow.Validate(); err != nil {
		return errors.Wrap(err, "flow configuration invalid")
	}
	if c.Artifacts.Enabled && (c.Artifacts.Screenshot == "" || c.Artifacts.ErrorFile == "") {
		return errors.New("artifacts.screenshot and artifacts.error_file are required when artifacts are enabled")
	}
	return nil
}

// Validate checks the FlowConfig timings.
func (f *FlowConfig) Validate() error {
	if f.NavigationTimeout <= 0 {
		return errors.New("navigation_timeout must be a positive duration")
	}
	if f.StepTimeout <= 0 {
		return errors.New("step_timeout must be a positive duration")
	}
	if f.PurgeTimeout <= 0 {
		return errors.New("purge_timeout must be a positive duration")
	}
	if f.NetworkIdleQuiet <= 0 {
		return errors.New("network_idle_quiet must be a positive duration")
	}
	if f.NetworkIdleMaxInflight < 0 {
		return errors.New("network_idle_max_inflight must not be negative")
	}
	if f.ConfirmDelay < 0 || f.OTPMinValidity < 0 {
		return errors.New("confirm_delay and otp_min_validity must not be negative")
	}
	return nil
}

// MissingCredentials returns the environment variable names of every unset credential.
func (vc VaultConfig) MissingCredentials() []string {
	var missing []string
	if strings.TrimSpace(vc.Host) == "" {
		missing = append(missing, EnvHost)
	}
	if strings.TrimSpace(vc.Email) == "" {
		missing = append(missing, EnvEmail)
	}
	if vc.MasterPassword == "" {
		missing = append(missing, EnvMasterPassword)
	}
	if strings.TrimSpace(vc.OTPSecret) == "" {
		missing = append(missing, EnvOTPSecret)
	}
	return missing
}

// RequireCredentials fails with ErrMissingCredentials naming every absent variable.
func (vc VaultConfig) RequireCredentials() error {
	missing := vc.MissingCredentials()
	if len(missing) == 0 {
		return nil
	}
	return errors.WithHint(
		errors.Wrapf(ErrMissingCredentials, "missing %s", strings.Join(missing, ", ")),
		"export the variables or put them in a .env file in the working directory",
	)
}
