package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/goliatone/go-errors"
)

// TokenServiceImpl implements the TokenService interface
type TokenServiceImpl struct {
	signingKey []byte
	issuer     string
	audience   jwt.ClaimStrings
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
	logger     Logger
}

var _ TokenService = (*TokenServiceImpl)(nil)

// TokenServiceOption customizes the token service
type TokenServiceOption func(*TokenServiceImpl)

// WithTokenClock injects a custom clock (useful for tests).
func WithTokenClock(clock func() time.Time) TokenServiceOption {
	return func(ts *TokenServiceImpl) {
		if clock != nil {
			ts.now = clock
		}
	}
}

// WithTokenLogger overrides the logger
func WithTokenLogger(logger Logger) TokenServiceOption {
	return func(ts *TokenServiceImpl) {
		ts.logger = normalizeLogger(logger)
	}
}

// NewTokenService creates a new TokenService instance. The signing key is
// required and read only after construction.
func NewTokenService(cfg TokenConfig, opts ...TokenServiceOption) (*TokenServiceImpl, error) {
	if len(cfg.SigningKey) == 0 {
		return nil, ErrSigningKeyRequired
	}

	cfg = cfg.withDefaults()

	key := make([]byte, len(cfg.SigningKey))
	copy(key, cfg.SigningKey)

	ts := &TokenServiceImpl{
		signingKey: key,
		issuer:     cfg.Issuer,
		audience:   jwt.ClaimStrings(cfg.Audience),
		accessTTL:  cfg.AccessTTL,
		refreshTTL: cfg.RefreshTTL,
		now:        time.Now,
		logger:     defLogger{},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(ts)
		}
	}

	return ts, nil
}

// Issue signs an access and a refresh token for the claim
func (ts *TokenServiceImpl) Issue(claim IdentityClaim) (*TokenPair, error) {
	if claim.Subject == "" {
		return nil, ErrEmptyClaim
	}

	now := ts.now()

	access, accessExp, err := ts.sign(claim, TokenTypeAccess, now, ts.accessTTL)
	if err != nil {
		return nil, err
	}

	refresh, refreshExp, err := ts.sign(claim, TokenTypeRefresh, now, ts.refreshTTL)
	if err != nil {
		return nil, err
	}

	return &TokenPair{
		AccessToken:      access,
		AccessExpiresAt:  accessExp,
		RefreshToken:     refresh,
		RefreshExpiresAt: refreshExp,
	}, nil
}

func (ts *TokenServiceImpl) sign(claim IdentityClaim, typ TokenType, now time.Time, ttl time.Duration) (string, time.Time, error) {
	expiresAt := now.Add(ttl)
	claims := &JWTClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    ts.issuer,
			Subject:   claim.Subject,
			Audience:  ts.audience,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		Email: claim.Email,
		Type:  typ,
	}

	ensureTokenID(&claims.RegisteredClaims)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signed, err := token.SignedString(ts.signingKey)
	if err != nil {
		return "", time.Time{}, errors.Wrap(err, errors.CategoryInternal, "failed to sign JWT")
	}

	return signed, expiresAt, nil
}

// Validate parses and validates a token string, returning structured claims
func (ts *TokenServiceImpl) Validate(tokenString string) (*JWTClaims, error) {
	parserOptions := []jwt.ParserOption{
		jwt.WithTimeFunc(ts.now),
		jwt.WithExpirationRequired(),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	}
	if ts.issuer != "" {
		parserOptions = append(parserOptions, jwt.WithIssuer(ts.issuer))
	}
	// every issued token carries the full audience list, the parser takes one
	if len(ts.audience) > 0 {
		parserOptions = append(parserOptions, jwt.WithAudience(ts.audience[0]))
	}

	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			ts.logger.Error("TokenService validate encountered unexpected signing method", "alg", t.Header["alg"])
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return ts.signingKey, nil
	}, parserOptions...)

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		ts.logger.Debug("TokenService validate rejected token", "error", err)
		return nil, ErrTokenMalformed
	}

	claims, ok := token.Claims.(*JWTClaims)
	if !ok || !token.Valid || claims.Subject() == "" {
		return nil, ErrTokenMalformed
	}

	return claims, nil
}

// Refresh validates the refresh token stored on the member and issues a new
// pair. Every failure is reported as ErrExpiredRefreshToken.
func (ts *TokenServiceImpl) Refresh(member *Member) (*TokenPair, error) {
	if member == nil || member.RefreshToken == "" {
		return nil, ErrExpiredRefreshToken
	}

	claims, err := ts.Validate(member.RefreshToken)
	if err != nil {
		ts.logger.Debug("TokenService refresh rejected stored token", "member", member.ID, "error", err)
		return nil, ErrExpiredRefreshToken
	}

	claim := NewClaimFromMember(member)
	if !claims.IsRefresh() || claims.Subject() != claim.Subject {
		return nil, ErrExpiredRefreshToken
	}

	return ts.Issue(claim)
}
