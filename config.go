package auth

import "time"

const (
	DefaultAccessTokenTTL         = 2 * time.Hour
	DefaultRefreshTokenTTL        = 72 * time.Hour
	DefaultVerificationTTL        = 3 * time.Minute
	DefaultVerificationCodeLength = 6
	DefaultRequestTimeout         = 10 * time.Second
)

// TokenConfig holds the Token Engine settings
type TokenConfig struct {
	SigningKey []byte
	Issuer     string
	Audience   []string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// TokenConfigFrom reads token settings from a Config, applying defaults
// for unset durations.
func TokenConfigFrom(cfg Config) TokenConfig {
	return TokenConfig{
		SigningKey: []byte(cfg.GetSigningKey()),
		Issuer:     cfg.GetIssuer(),
		Audience:   cfg.GetAudience(),
		AccessTTL:  cfg.GetAccessTokenTTL(),
		RefreshTTL: cfg.GetRefreshTokenTTL(),
	}.withDefaults()
}

func (c TokenConfig) withDefaults() TokenConfig {
	if c.AccessTTL <= 0 {
		c.AccessTTL = DefaultAccessTokenTTL
	}
	if c.RefreshTTL <= 0 {
		c.RefreshTTL = DefaultRefreshTokenTTL
	}
	return c
}

// VerificationOptionsFrom maps Config values onto state machine options
func VerificationOptionsFrom(cfg Config) []VerificationOption {
	opts := make([]VerificationOption, 0, 2)
	if ttl := cfg.GetVerificationTTL(); ttl > 0 {
		opts = append(opts, WithVerificationTTL(ttl))
	}
	if n := cfg.GetVerificationCodeLength(); n > 0 {
		opts = append(opts, WithCodeGenerator(NumericCodeGenerator(n)))
	}
	return opts
}

// RequestTimeoutFrom is the per command timeout, DefaultRequestTimeout when unset
func RequestTimeoutFrom(cfg Config) time.Duration {
	if cfg == nil || cfg.GetRequestTimeout() <= 0 {
		return DefaultRequestTimeout
	}
	return cfg.GetRequestTimeout()
}
