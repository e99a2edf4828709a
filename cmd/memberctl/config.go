package main

import (
	"time"

	"github.com/caarlos0/env/v11"
	goerrors "github.com/goliatone/go-errors"
	auth "github.com/goliatone/go-member-auth"
	"github.com/goliatone/go-member-auth/mailer"
	"github.com/goliatone/go-member-auth/repository"
)

// EnvPrefix is prepended to every variable read by LoadConfig
const EnvPrefix = "MEMBER_AUTH_"

// Config is read from the environment. It satisfies auth.Config.
type Config struct {
	SigningKey             string        `env:"SIGNING_KEY"`
	Issuer                 string        `env:"ISSUER" envDefault:"member-auth"`
	Audience               []string      `env:"AUDIENCE" envSeparator:"," envDefault:"members"`
	AccessTokenTTL         time.Duration `env:"ACCESS_TOKEN_TTL" envDefault:"2h"`
	RefreshTokenTTL        time.Duration `env:"REFRESH_TOKEN_TTL" envDefault:"72h"`
	VerificationTTL        time.Duration `env:"VERIFICATION_TTL" envDefault:"3m"`
	VerificationCodeLength int           `env:"VERIFICATION_CODE_LENGTH" envDefault:"6"`
	RequestTimeout         time.Duration `env:"REQUEST_TIMEOUT" envDefault:"10s"`

	DSN              string `env:"DSN" envDefault:"file:memberauth.db?cache=shared"`
	HashPasswords    bool   `env:"HASH_PASSWORDS" envDefault:"true"`
	PhoneRegion      string `env:"PHONE_REGION" envDefault:"KR"`
	DeterministicIDs bool   `env:"DETERMINISTIC_IDS"`
	LogLevel         string `env:"LOG_LEVEL" envDefault:"info"`

	RedisEnabled bool                   `env:"REDIS_ENABLED"`
	Redis        repository.RedisConfig `envPrefix:"REDIS_"`

	SMTPEnabled bool          `env:"SMTP_ENABLED"`
	SMTP        mailer.Config `envPrefix:"SMTP_"`
}

var _ auth.Config = Config{}

// LoadConfig parses MEMBER_AUTH_* variables
func LoadConfig() (Config, error) {
	cfg, err := env.ParseAsWithOptions[Config](env.Options{Prefix: EnvPrefix})
	if err != nil {
		return Config{}, goerrors.Wrap(err, goerrors.CategoryValidation, "failed to parse environment")
	}

	if cfg.SigningKey == "" {
		return Config{}, auth.ErrSigningKeyRequired
	}

	return cfg, nil
}

func (c Config) GetSigningKey() string { return c.SigningKey }

func (c Config) GetIssuer() string { return c.Issuer }

func (c Config) GetAudience() []string { return c.Audience }

func (c Config) GetAccessTokenTTL() time.Duration { return c.AccessTokenTTL }

func (c Config) GetRefreshTokenTTL() time.Duration { return c.RefreshTokenTTL }

func (c Config) GetVerificationTTL() time.Duration { return c.VerificationTTL }

func (c Config) GetVerificationCodeLength() int { return c.VerificationCodeLength }

func (c Config) GetRequestTimeout() time.Duration { return c.RequestTimeout }
