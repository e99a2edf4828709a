package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenType distinguishes access from refresh tokens
type TokenType = string

const (
	TokenTypeAccess  TokenType = "access"
	TokenTypeRefresh TokenType = "refresh"
)

// IdentityClaim is what a token pair is minted for
type IdentityClaim struct {
	Subject string
	Email   string
}

// NewClaimFromMember builds the claim for a persisted member
func NewClaimFromMember(m *Member) IdentityClaim {
	if m == nil {
		return IdentityClaim{}
	}
	subject := ""
	if m.ID != uuid.Nil {
		subject = m.ID.String()
	}
	return IdentityClaim{Subject: subject, Email: m.Email}
}

// JWTClaims are the claims carried by both tokens of a pair
type JWTClaims struct {
	jwt.RegisteredClaims
	Email string    `json:"email,omitempty"`
	Type  TokenType `json:"typ"`
}

// Subject returns the subject claim
func (c *JWTClaims) Subject() string {
	return c.RegisteredClaims.Subject
}

// MemberID parses the subject as a member id
func (c *JWTClaims) MemberID() (uuid.UUID, error) {
	return uuid.Parse(c.RegisteredClaims.Subject)
}

// IsRefresh reports whether this is a refresh token
func (c *JWTClaims) IsRefresh() bool {
	return c.Type == TokenTypeRefresh
}

// Expires returns the expiration time
func (c *JWTClaims) Expires() time.Time {
	if c.ExpiresAt == nil {
		return time.Time{}
	}
	return c.ExpiresAt.Time
}

// IssuedAt returns when the token was issued
func (c *JWTClaims) IssuedAt() time.Time {
	if c.RegisteredClaims.IssuedAt == nil {
		return time.Time{}
	}
	return c.RegisteredClaims.IssuedAt.Time
}

func ensureTokenID(claims *jwt.RegisteredClaims) {
	if claims.ID == "" {
		claims.ID = uuid.NewString()
	}
}
