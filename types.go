package auth

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Logger is the logging contract used across the package. Arguments after the
// message are key/value pairs.
type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// Config holds auth options
type Config interface {
	GetSigningKey() string
	GetIssuer() string
	GetAudience() []string
	GetAccessTokenTTL() time.Duration
	GetRefreshTokenTTL() time.Duration
	GetVerificationTTL() time.Duration
	GetVerificationCodeLength() int
	GetRequestTimeout() time.Duration
}

// MemberStore persists member records. Lookups return ErrRecordNotFound
// (or an error IsRecordNotFound recognizes) when nothing matches.
type MemberStore interface {
	FindByEmail(ctx context.Context, email string) (*Member, error)
	FindByID(ctx context.Context, id uuid.UUID) (*Member, error)
	FindByEmailAndPassword(ctx context.Context, email, password string) (*Member, error)
	// Save creates the member when ID is nil and updates it otherwise.
	// The refresh token column is never written by Save.
	Save(ctx context.Context, member *Member) (*Member, error)
	Delete(ctx context.Context, id uuid.UUID) error
	// List returns every stored member ordered by creation time.
	List(ctx context.Context) ([]*Member, error)
	// SwapRefreshToken replaces the stored refresh token only when it still
	// equals expected. An empty expected value matches a member with no token.
	// Returns ErrRefreshTokenConflict when the stored value changed.
	SwapRefreshToken(ctx context.Context, id uuid.UUID, expected, next string) error
}

// VerificationStore persists one verification attempt per email.
type VerificationStore interface {
	FindByEmailAndStatus(ctx context.Context, email string, status VerificationStatus) (*VerificationAttempt, error)
	// Save upserts the attempt keyed by email, last write wins.
	Save(ctx context.Context, attempt *VerificationAttempt) error
	// Transition writes next only while the stored attempt for next.Email
	// still has next.AttemptID and status from. Returns
	// ErrVerificationConflict otherwise.
	Transition(ctx context.Context, from VerificationStatus, next *VerificationAttempt) error
	Delete(ctx context.Context, email string) error
}

// TokenService mints and validates token pairs
type TokenService interface {
	Issue(claim IdentityClaim) (*TokenPair, error)
	Validate(token string) (*JWTClaims, error)
	Refresh(member *Member) (*TokenPair, error)
}

// CodeSender delivers verification codes out of band.
type CodeSender interface {
	SendVerificationCode(ctx context.Context, email, code string, expiresAt time.Time) error
}

// PasswordAuthenticator is an optional hashing layer for stored passwords.
type PasswordAuthenticator interface {
	HashPassword(password string) (string, error)
	ComparePasswordAndHash(password, hash string) error
}

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Print("[ERR] AUTH " + line(format, args))
}

func (d defLogger) Warn(format string, args ...any) {
	fmt.Print("[WRN] AUTH " + line(format, args))
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Print("[INF] AUTH " + line(format, args))
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Print("[DBG] AUTH " + line(format, args))
}

func line(msg string, args []any) string {
	var b strings.Builder
	b.WriteString(strings.TrimRight(msg, "\n"))
	for i := 0; i < len(args); i += 2 {
		if i+1 < len(args) {
			fmt.Fprintf(&b, " %v=%v", args[i], args[i+1])
			continue
		}
		fmt.Fprintf(&b, " %v", args[i])
	}
	b.WriteString("\n")
	return b.String()
}

func normalizeLogger(l Logger) Logger {
	if l == nil {
		return defLogger{}
	}
	return l
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
