// Package otp generates the time-based one-time passcodes entered at the vault's
// two-factor prompt.
package otp

import (
	"context"
	"encoding/base32"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

// Period is the TOTP step used by authenticator apps and the vault server.
const Period = 30 * time.Second

// ErrInvalidSecret is returned for seeds that are not valid base32.
var ErrInvalidSecret = errors.New("invalid OTP secret")

// Generator produces RFC 6238 codes (SHA1, 6 digits, 30s) for one seed.
type Generator struct {
	secret string
	opts   totp.ValidateOpts
	now    func() time.Time
}

// NewGenerator normalizes and validates secret.
func NewGenerator(secret string) (*Generator, error) {
	normalized := Normalize(secret)
	if normalized == "" {
		return nil, errors.Wrap(ErrInvalidSecret, "secret is empty")
	}
	padded := normalized
	if n := len(padded) % 8; n != 0 {
		padded += strings.Repeat("=", 8-n)
	}
	if _, err := base32.StdEncoding.DecodeString(padded); err != nil {
		return nil, errors.WithHint(
			errors.Wrapf(ErrInvalidSecret, "decoding base32: %v", err),
			"use the text seed shown when 2FA was enabled, not a six digit code",
		)
	}

	return &Generator{
		secret: normalized,
		opts: totp.ValidateOpts{
			Period:    uint(Period / time.Second),
			Digits:    otp.DigitsSix,
			Algorithm: otp.AlgorithmSHA1,
		},
		now: time.Now,
	}, nil
}

// Normalize strips the separators authenticator exports commonly contain and upper-cases
// the seed.
func Normalize(secret string) string {
	r := strings.NewReplacer(" ", "", "-", "", "\t", "", "=", "")
	return strings.ToUpper(r.Replace(strings.TrimSpace(secret)))
}

// Code returns the code for the current time.
func (g *Generator) Code() (string, error) {
	return g.CodeAt(g.now())
}

// CodeAt returns the code valid at t.
func (g *Generator) CodeAt(t time.Time) (string, error) {
	code, err := totp.GenerateCodeCustom(g.secret, t, g.opts)
	if err != nil {
		return "", errors.Wrap(err, "generating TOTP code")
	}
	return code, nil
}

// Remaining reports how long the code valid at t stays valid.
func (g *Generator) Remaining(t time.Time) time.Duration {
	elapsed := time.Duration(t.UnixNano()) % Period
	return Period - elapsed
}

// Fresh returns a code that remains valid for at least minValidity, waiting for the next
// step when the current one is about to roll over.
func (g *Generator) Fresh(ctx context.Context, minValidity time.Duration) (string, error) {
	now := g.now()
	if remaining := g.Remaining(now); remaining < minValidity {
		timer := time.NewTimer(remaining)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-timer.C:
		}
		// Step into the next window even if the timer fired a hair early.
		return g.CodeAt(now.Add(remaining))
	}
	return g.CodeAt(now)
}
