package auth

import (
	"context"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	goerrors "github.com/goliatone/go-errors"
)

type RequestVerificationMessage struct {
	Email      string `json:"email" example:"member@example.com" doc:"Email to verify"`
	OnResponse func(r *VerificationReceipt)
}

func (e RequestVerificationMessage) Type() string { return "member.verification.request" }

func (e RequestVerificationMessage) Validate() error {
	return validation.ValidateStruct(&e,
		validation.Field(&e.Email, validation.Required, is.Email),
	)
}

// RequestVerificationHandler issues and delivers a verification code
type RequestVerificationHandler struct {
	auth    *MemberAuthenticator
	timeout time.Duration
}

// NewRequestVerificationHandler returns a handler, zero timeout uses DefaultRequestTimeout
func NewRequestVerificationHandler(auth *MemberAuthenticator, timeout time.Duration) *RequestVerificationHandler {
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}
	return &RequestVerificationHandler{auth: auth, timeout: timeout}
}

func (h *RequestVerificationHandler) Execute(ctx context.Context, event RequestVerificationMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(ctx.Err(), goerrors.CategoryOperation, "context cancelled during verification request")
	default:
		return h.execute(ctx, event)
	}
}

func (h *RequestVerificationHandler) execute(ctx context.Context, event RequestVerificationMessage) error {
	if err := event.Validate(); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid verification request")
	}

	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	receipt, err := h.auth.RequestVerification(ctx, event.Email)
	if err != nil {
		return commandError(err, "failed to request verification")
	}

	if event.OnResponse != nil {
		event.OnResponse(receipt)
	}

	return nil
}

type CheckVerificationMessage struct {
	Email      string `json:"email" example:"member@example.com" doc:"Email being verified"`
	Code       string `json:"code" example:"123456" doc:"Code delivered to the member"`
	OnResponse func(r *CheckVerificationResponse)
}

type CheckVerificationResponse struct {
	Email    string `json:"email"`
	Verified bool   `json:"verified"`
}

func (e CheckVerificationMessage) Type() string { return "member.verification.check" }

func (e CheckVerificationMessage) Validate() error {
	return validation.ValidateStruct(&e,
		validation.Field(&e.Email, validation.Required, is.Email),
		validation.Field(&e.Code, validation.Required),
	)
}

// CheckVerificationHandler checks a submitted verification code
type CheckVerificationHandler struct {
	auth    *MemberAuthenticator
	timeout time.Duration
}

func NewCheckVerificationHandler(auth *MemberAuthenticator, timeout time.Duration) *CheckVerificationHandler {
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}
	return &CheckVerificationHandler{auth: auth, timeout: timeout}
}

func (h *CheckVerificationHandler) Execute(ctx context.Context, event CheckVerificationMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(ctx.Err(), goerrors.CategoryOperation, "context cancelled during verification check")
	default:
		return h.execute(ctx, event)
	}
}

func (h *CheckVerificationHandler) execute(ctx context.Context, event CheckVerificationMessage) error {
	if err := event.Validate(); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid verification check")
	}

	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	ok, err := h.auth.VerifyEmail(ctx, event.Email, event.Code)
	if err != nil {
		return commandError(err, "failed to check verification")
	}

	if event.OnResponse != nil {
		event.OnResponse(&CheckVerificationResponse{
			Email:    normalizeEmail(event.Email),
			Verified: ok,
		})
	}

	return nil
}

// commandError keeps domain errors intact and wraps everything else
func commandError(err error, message string) error {
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return richErr
	}
	return goerrors.Wrap(err, goerrors.CategoryInternal, message)
}
