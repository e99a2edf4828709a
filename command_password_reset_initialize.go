package auth

import (
	"context"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	goerrors "github.com/goliatone/go-errors"
)

type InitializePasswordResetMessage struct {
	Email      string `json:"email" example:"member@example.com" doc:"Email of the member resetting their password"`
	OnResponse func(r *VerificationReceipt)
}

func (e InitializePasswordResetMessage) Type() string { return "member.password_reset.initialize" }

func (e InitializePasswordResetMessage) Validate() error {
	return validation.ValidateStruct(&e,
		validation.Field(&e.Email, validation.Required, is.Email),
	)
}

// InitializePasswordResetHandler sends a reset code to a local member
type InitializePasswordResetHandler struct {
	auth    *MemberAuthenticator
	timeout time.Duration
}

func NewInitializePasswordResetHandler(auth *MemberAuthenticator, timeout time.Duration) *InitializePasswordResetHandler {
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}
	return &InitializePasswordResetHandler{auth: auth, timeout: timeout}
}

func (h *InitializePasswordResetHandler) Execute(ctx context.Context, event InitializePasswordResetMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during password reset initialization",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *InitializePasswordResetHandler) execute(ctx context.Context, event InitializePasswordResetMessage) error {
	if err := event.Validate(); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid password reset request")
	}

	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	receipt, err := h.auth.RequestPasswordReset(ctx, event.Email)
	if err != nil {
		return commandError(err, "failed to initialize password reset")
	}

	if event.OnResponse != nil {
		event.OnResponse(receipt)
	}

	return nil
}
