package auth

import (
	"database/sql"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
)

const (
	textCodeDuplicateMember      = "DUPLICATED_MEMBER"
	textCodeNotFoundUser         = "NOT_FOUND_USER"
	textCodeNotFound             = "NOT_FOUND"
	textCodeNotCompleteAuth      = "NOT_COMPLETE_AUTH"
	textCodeInvalidAuth          = "INVALID_AUTH"
	textCodeExpiredAuth          = "EXPIRED_AUTH"
	textCodeInvalidVerifCode     = "INVALID_VERIF_CODE"
	textCodeExpiredRefreshToken  = "EXPIRED_REFRESH_TOKEN"
	textCodeTokenExpired         = "TOKEN_EXPIRED"
	textCodeTokenMalformed       = "TOKEN_MALFORMED"
	textCodeSamePassword         = "SAME_PASSWORD"
	textCodeDifferentPassword    = "DIFFERENT_PASSWORD"
	textCodeSameNickname         = "SAME_NICKNAME"
	textCodeEmptyClaim           = "EMPTY_CLAIM"
	textCodeSigningKeyRequired   = "SIGNING_KEY_REQUIRED"
	textCodeRefreshTokenConflict = "REFRESH_TOKEN_CONFLICT"
	textCodeVerificationConflict = "VERIFICATION_CONFLICT"
	textCodeRecordNotFound       = "RECORD_NOT_FOUND"
	textCodeUnsupportedCred      = "UNSUPPORTED_CREDENTIAL"
)

// ErrDuplicateMember is returned when an email already belongs to a member.
var ErrDuplicateMember = goerrors.New("member already exists", goerrors.CategoryConflict).
	WithTextCode(textCodeDuplicateMember).
	WithCode(goerrors.CodeConflict)

// ErrNotFoundUser is returned when a credential lookup does not match a member.
var ErrNotFoundUser = goerrors.New("member not found", goerrors.CategoryNotFound).
	WithTextCode(textCodeNotFoundUser).
	WithCode(goerrors.CodeNotFound)

// ErrNotFound is returned when a member id does not resolve to a member.
var ErrNotFound = goerrors.New("resource not found", goerrors.CategoryNotFound).
	WithTextCode(textCodeNotFound).
	WithCode(goerrors.CodeNotFound)

// ErrNotCompleteAuth is returned when registering an email that was not verified.
var ErrNotCompleteAuth = goerrors.New("email verification not completed", goerrors.CategoryAuthz).
	WithTextCode(textCodeNotCompleteAuth).
	WithCode(goerrors.CodeForbidden)

// ErrInvalidAuth is returned when there is no pending verification for an email.
var ErrInvalidAuth = goerrors.New("no pending email verification", goerrors.CategoryBadInput).
	WithTextCode(textCodeInvalidAuth).
	WithCode(goerrors.CodeBadRequest)

// ErrExpiredAuth is returned when a verification code is checked after its window.
// The attempt has already been persisted as expired when this is returned.
var ErrExpiredAuth = goerrors.New("email verification expired", goerrors.CategoryValidation).
	WithTextCode(textCodeExpiredAuth).
	WithCode(goerrors.CodeBadRequest)

// ErrInvalidVerifCode is returned when the submitted code does not match.
var ErrInvalidVerifCode = goerrors.New("invalid verification code", goerrors.CategoryBadInput).
	WithTextCode(textCodeInvalidVerifCode).
	WithCode(goerrors.CodeBadRequest)

// ErrExpiredRefreshToken is returned when the stored refresh token can no longer be used.
var ErrExpiredRefreshToken = goerrors.New("refresh token expired", goerrors.CategoryAuth).
	WithTextCode(textCodeExpiredRefreshToken).
	WithCode(goerrors.CodeUnauthorized)

// ErrTokenExpired is returned when a token is past its expiry.
var ErrTokenExpired = goerrors.New("token is expired", goerrors.CategoryAuth).
	WithTextCode(textCodeTokenExpired).
	WithCode(goerrors.CodeUnauthorized)

// ErrTokenMalformed is returned when a token fails signature or structure checks.
var ErrTokenMalformed = goerrors.New("token is malformed", goerrors.CategoryAuth).
	WithTextCode(textCodeTokenMalformed).
	WithCode(goerrors.CodeUnauthorized)

// ErrSamePassword is returned when a new password equals the current one.
var ErrSamePassword = goerrors.New("new password must differ from current password", goerrors.CategoryValidation).
	WithTextCode(textCodeSamePassword).
	WithCode(goerrors.CodeBadRequest)

// ErrDifferentPassword is returned on password confirmation mismatches.
var ErrDifferentPassword = goerrors.New("password does not match", goerrors.CategoryValidation).
	WithTextCode(textCodeDifferentPassword).
	WithCode(goerrors.CodeBadRequest)

// ErrSameNickname is returned when a nickname update does not change anything.
var ErrSameNickname = goerrors.New("new nickname must differ from current nickname", goerrors.CategoryValidation).
	WithTextCode(textCodeSameNickname).
	WithCode(goerrors.CodeBadRequest)

var ErrEmptyClaim = goerrors.New("identity claim subject is empty", goerrors.CategoryBadInput).
	WithTextCode(textCodeEmptyClaim).
	WithCode(goerrors.CodeBadRequest)

var ErrSigningKeyRequired = goerrors.New("token signing key is required", goerrors.CategoryInternal).
	WithTextCode(textCodeSigningKeyRequired).
	WithCode(goerrors.CodeInternal)

// ErrRefreshTokenConflict is returned by stores when the stored refresh token
// no longer matches the expected value of a compare-and-swap.
var ErrRefreshTokenConflict = goerrors.New("refresh token was replaced concurrently", goerrors.CategoryConflict).
	WithTextCode(textCodeRefreshTokenConflict).
	WithCode(goerrors.CodeConflict)

// ErrVerificationConflict is returned by stores when the attempt a transition
// was decided on has been replaced or already moved.
var ErrVerificationConflict = goerrors.New("verification attempt was replaced concurrently", goerrors.CategoryConflict).
	WithTextCode(textCodeVerificationConflict).
	WithCode(goerrors.CodeConflict)

// ErrRecordNotFound is the store level not found error.
var ErrRecordNotFound = goerrors.New("record not found", goerrors.CategoryNotFound).
	WithTextCode(textCodeRecordNotFound).
	WithCode(goerrors.CodeNotFound)

var ErrUnsupportedCredential = goerrors.New("unsupported credential source", goerrors.CategoryBadInput).
	WithTextCode(textCodeUnsupportedCred).
	WithCode(goerrors.CodeBadRequest)

// IsRecordNotFound reports whether a store lookup found nothing.
func IsRecordNotFound(err error) bool {
	if err == nil {
		return false
	}
	if goerrors.Is(err, ErrRecordNotFound) || goerrors.Is(err, sql.ErrNoRows) {
		return true
	}
	return repository.IsRecordNotFound(err)
}

// IsTokenExpiredError will check for expired tokens
func IsTokenExpiredError(err error) bool {
	if err == nil {
		return false
	}
	if goerrors.Is(err, ErrTokenExpired) {
		return true
	}
	return strings.Contains(err.Error(), "token is expired")
}

// IsMalformedError will check for error message
func IsMalformedError(err error) bool {
	if err == nil {
		return false
	}
	if goerrors.Is(err, ErrTokenMalformed) {
		return true
	}
	return strings.Contains(err.Error(), "token is malformed")
}

// storageError wraps backend failures while letting domain errors through.
func storageError(err error, message string) error {
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) && richErr.Category != goerrors.CategoryInternal {
		return richErr
	}
	return goerrors.Wrap(err, goerrors.CategoryInternal, message)
}
