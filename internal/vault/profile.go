// Package vault describes the web vault UI the purge flow drives. The markup changes between
// vault releases, so each supported release is a named Profile of CSS selectors.
package vault

import (
	"sort"
	"strings"

	"github.com/cockroachdb/errors"
)

// ErrUnknownVariant is returned by Lookup for names with no registered profile.
var ErrUnknownVariant = errors.New("unknown vault variant")

// Profile is the set of selectors and labels one vault UI release needs.
type Profile struct {
	Name        string
	Description string

	EmailInput string
	// ContinueButton is set for releases that ask for the email on its own page first.
	ContinueButton string
	PasswordInput  string
	LoginButton    string

	OTPInput  string
	OTPSubmit string

	SettingsLink  string
	SettingsReady string

	// PurgeMarker must be visible before the purge button is searched by text.
	PurgeMarker     string
	PurgeButtonTag  string
	PurgeButtonText string

	// ConfirmPasswordInput is clicked before typing the master password into the purge
	// dialog. When empty the password is typed into whatever the dialog focused.
	ConfirmPasswordInput string
	ConfirmButton        string
}

var profiles = map[string]Profile{
	"legacy": {
		Name:            "legacy",
		Description:     "Bootstrap-based web vault (single page login, modal purge confirmation)",
		EmailInput:      "input#email",
		PasswordInput:   "input#masterPassword",
		LoginButton:     "button.btn-submit",
		OTPInput:        "input#code",
		OTPSubmit:       "button.btn-submit",
		SettingsLink:    `a[href="#/settings"]`,
		SettingsReady:   ".card-body",
		PurgeMarker:     "button.btn-outline-danger",
		PurgeButtonTag:  "button",
		PurgeButtonText: "Purge Vault",
		ConfirmButton:   "form .modal-footer .btn.btn-danger.btn-submit",
	},
	"current": {
		Name:                 "current",
		Description:          "Component-based web vault (two step login, dialog purge confirmation)",
		EmailInput:           `input[formcontrolname="email"]`,
		ContinueButton:       `form button[type="submit"]`,
		PasswordInput:        `input[formcontrolname="masterPassword"]`,
		LoginButton:          `form button[type="submit"]`,
		OTPInput:             `input[formcontrolname="token"]`,
		OTPSubmit:            `form button[type="submit"]`,
		SettingsLink:         `a[href="#/settings/account"]`,
		SettingsReady:        "app-account",
		PurgeMarker:          `button[buttontype="danger"]`,
		PurgeButtonTag:       "button",
		PurgeButtonText:      "Purge vault",
		ConfirmPasswordInput: `bit-dialog input[type="password"]`,
		ConfirmButton:        `bit-dialog button[type="submit"]`,
	},
}

// Lookup returns the profile registered under name.
func Lookup(name string) (Profile, error) {
	p, ok := profiles[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return Profile{}, errors.Wrapf(ErrUnknownVariant, "%q (known: %s)", name, strings.Join(Names(), ", "))
	}
	return p, nil
}

// Names lists the registered variants in sorted order.
func Names() []string {
	names := make([]string, 0, len(profiles))
	for n := range profiles {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// fields maps the snake_case override keys to the profile's selector fields.
func (p *Profile) fields() map[string]*string {
	return map[string]*string{
		"email_input":            &p.EmailInput,
		"continue_button":        &p.ContinueButton,
		"password_input":         &p.PasswordInput,
		"login_button":           &p.LoginButton,
		"otp_input":              &p.OTPInput,
		"otp_submit":             &p.OTPSubmit,
		"settings_link":          &p.SettingsLink,
		"settings_ready":         &p.SettingsReady,
		"purge_marker":           &p.PurgeMarker,
		"purge_button_tag":       &p.PurgeButtonTag,
		"purge_button_text":      &p.PurgeButtonText,
		"confirm_password_input": &p.ConfirmPasswordInput,
		"confirm_button":         &p.ConfirmButton,
	}
}

// WithOverrides returns a copy of p with the given selectors replaced. An empty value
// clears an optional step (continue_button, confirm_password_input).
func (p Profile) WithOverrides(overrides map[string]string) (Profile, error) {
	if len(overrides) == 0 {
		return p, nil
	}
	out := p
	fields := out.fields()
	for key, value := range overrides {
		target, ok := fields[strings.ToLower(key)]
		if !ok {
			return Profile{}, errors.Newf("unknown selector override %q", key)
		}
		*target = strings.TrimSpace(value)
	}
	if err := out.Validate(); err != nil {
		return Profile{}, err
	}
	return out, nil
}

// Validate ensures every mandatory selector is present.
func (p Profile) Validate() error {
	var missing []string
	for _, key := range p.SelectorKeys() {
		if key == "continue_button" || key == "confirm_password_input" {
			continue
		}
		if *p.fields()[key] == "" {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return errors.Newf("profile %q is missing selectors: %s", p.Name, strings.Join(missing, ", "))
	}
	return nil
}

// SelectorKeys lists the override keys in flow order.
func (p Profile) SelectorKeys() []string {
	return []string{
		"email_input", "continue_button", "password_input", "login_button",
		"otp_input", "otp_submit",
		"settings_link", "settings_ready",
		"purge_marker", "purge_button_tag", "purge_button_text",
		"confirm_password_input", "confirm_button",
	}
}

// Selector returns the value stored under an override key.
func (p Profile) Selector(key string) string {
	if ptr, ok := p.fields()[key]; ok {
		return *ptr
	}
	return ""
}

// TwoStepLogin reports whether the email is submitted before the password field appears.
func (p Profile) TwoStepLogin() bool {
	return p.ContinueButton != ""
}
