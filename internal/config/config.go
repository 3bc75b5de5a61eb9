// Package config holds the static deployment configuration read from the
// process environment at boot.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config is the full deployment configuration.
type Config struct {
	Env      string `env:"APP_ENV" envDefault:"production"`
	HTTPAddr string `env:"HTTP_ADDR" envDefault:"0.0.0.0:8431"`
	BaseURL  string `env:"BASE_URL" envDefault:"http://localhost:4000"`

	JWT      JWT
	Cookie   Cookie
	Hash     Hash
	TwoFa    TwoFa
	Mail     Mail
	Links    Links
	Limits   Limits
	Redis    Redis
	Facebook Provider `envPrefix:"FACEBOOK_"`
	Google   Provider `envPrefix:"GOOGLE_"`
	LinkedIn Provider `envPrefix:"LINKEDIN_"`
}

type JWT struct {
	Secret    string        `env:"JWT_SECRET"`
	ExpiresIn time.Duration `env:"JWT_EXPIRES_IN" envDefault:"24h"`
}

type Cookie struct {
	Name   string `env:"COOKIE_NAME" envDefault:"jwt"`
	Domain string `env:"COOKIE_DOMAIN"`
	// ExpiresInDays applies only when the user asked to be remembered.
	ExpiresInDays int `env:"COOKIES_EXPIRES_IN" envDefault:"30"`
}

// Hash configures the PBKDF2 password hasher.
type Hash struct {
	Iterations int    `env:"HASH_ITERATIONS" envDefault:"10000"`
	KeyLength  int    `env:"HASH_KEY_LENGTH" envDefault:"64"`
	Digest     string `env:"HASH_DIGEST" envDefault:"sha512"`
}

type TwoFa struct {
	Issuer       string        `env:"TWOFA_ISSUER" envDefault:"Auth Demo App"`
	ChallengeTTL time.Duration `env:"TWOFA_CHALLENGE_TTL" envDefault:"5m"`
}

// Mail selects the outbound sender. Without SendGridAPIKey emails are
// only logged.
type Mail struct {
	From           string `env:"MAIL_FROM" envDefault:"no-reply@authdemoapp.com"`
	SendGridAPIKey string `env:"SENDGRID_API_KEY"`
	SendGridHost   string `env:"SENDGRID_HOST" envDefault:"https://api.sendgrid.com"`
	// Templates maps "<lang>.<TEMPLATE>" to a SendGrid dynamic template id.
	Templates map[string]string `env:"SENDGRID_TEMPLATES" envDefault:"en.EMAIL_VERIFICATION:d-387db3f6be31412484269d6a56e39d63,en.ACCOUNT_RESTORE:d-82ba469958be44b8b1407832cc103684,en.PASSWORD_RESET:d-f54fa25354ca41738908c190649c30d2,de.EMAIL_VERIFICATION:d-7dd5f478a33d42d7a89194965caccdbc,de.ACCOUNT_RESTORE:d-fda99b4a2fb6463bb7dae8be44f641b9,de.PASSWORD_RESET:d-7aa89b95e0d14d3db329cca69c41acb7"`
}

// Links are appended to BaseURL when building email links.
type Links struct {
	EmailVerification string        `env:"LINK_EMAIL_VERIFICATION" envDefault:"/auth/emailVerification"`
	PasswordReset     string        `env:"LINK_PASSWORD_RESET" envDefault:"/auth/passwordReset"`
	AccountRestore    string        `env:"LINK_ACCOUNT_RESTORE" envDefault:"/auth/restoreAccount"`
	ResetValidFor     time.Duration `env:"PASSWORD_RESET_VALID_FOR" envDefault:"24h"`
}

// Limits configures attempt limiting and per-IP throttling.
type Limits struct {
	MaxAttempts   int           `env:"ATTEMPT_LIMIT_MAX" envDefault:"5"`
	AttemptWindow time.Duration `env:"ATTEMPT_LIMIT_WINDOW" envDefault:"15m"`
	IPRatePerMin  float64       `env:"IP_RATE_PER_MIN" envDefault:"60"`
	IPBurst       int           `env:"IP_RATE_BURST" envDefault:"20"`
}

type Redis struct {
	Addr     string `env:"REDIS_ADDR"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB" envDefault:"0"`
}

// Provider holds the OAuth client credentials for one social provider.
// Endpoint URLs default to the public ones and exist mostly for tests.
type Provider struct {
	ClientID     string `env:"CLIENT_ID"`
	ClientSecret string `env:"CLIENT_SECRET"`
	RedirectURI  string `env:"REDIRECT_URI"`
	TokenURL     string `env:"TOKEN_URL"`
	RevokeURL    string `env:"REVOKE_URL"`
}

// Load parses the environment into a Config and validates it.
func Load() (*Config, error) {
	var c Config
	if err := env.Parse(&c); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Dev reports whether the service runs in local development mode.
func (c *Config) Dev() bool { return strings.EqualFold(c.Env, "development") }

// SecureCookies is false only in development.
func (c *Config) SecureCookies() bool { return !c.Dev() }

// Validate checks the values the auth core cannot run without.
func (c *Config) Validate() error {
	var errs []error
	if len(c.JWT.Secret) < 16 {
		errs = append(errs, errors.New("JWT_SECRET must be at least 16 characters"))
	}
	if c.JWT.ExpiresIn <= 0 {
		errs = append(errs, errors.New("JWT_EXPIRES_IN must be positive"))
	}
	if c.Hash.Iterations <= 0 || c.Hash.KeyLength <= 0 {
		errs = append(errs, errors.New("HASH_ITERATIONS and HASH_KEY_LENGTH must be positive"))
	}
	switch strings.ToLower(c.Hash.Digest) {
	case "sha1", "sha256", "sha512":
	default:
		errs = append(errs, fmt.Errorf("HASH_DIGEST %q not supported", c.Hash.Digest))
	}
	if c.Links.ResetValidFor <= 0 {
		errs = append(errs, errors.New("PASSWORD_RESET_VALID_FOR must be positive"))
	}
	return errors.Join(errs...)
}

// Link joins BaseURL and a path with query values already encoded.
func (c *Config) Link(path, rawQuery string) string {
	u := strings.TrimRight(c.BaseURL, "/") + path
	if rawQuery != "" {
		u += "?" + rawQuery
	}
	return u
}
