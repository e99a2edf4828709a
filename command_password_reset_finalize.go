package auth

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

type FinalizePasswordResetMessage struct {
	Email      string `json:"email" example:"member@example.com" doc:"Email the reset code was sent to"`
	Code       string `json:"code" example:"123456" doc:"Reset code"`
	Password   string `json:"password" example:"some_secret_word" doc:"New password"`
	OnResponse func(r *FinalizePasswordResetResponse)
}

type FinalizePasswordResetResponse struct {
	Email   string `json:"email"`
	Success bool   `json:"success"`
}

func (e FinalizePasswordResetMessage) Type() string { return "member.password_reset.finalize" }

func (e FinalizePasswordResetMessage) request() PasswordResetRequest {
	return PasswordResetRequest{Email: e.Email, Code: e.Code, NewPassword: e.Password}
}

func (e FinalizePasswordResetMessage) Validate() error {
	return e.request().Validate()
}

// FinalizePasswordResetHandler consumes a reset code and stores the new password
type FinalizePasswordResetHandler struct {
	auth    *MemberAuthenticator
	timeout time.Duration
}

func NewFinalizePasswordResetHandler(auth *MemberAuthenticator, timeout time.Duration) *FinalizePasswordResetHandler {
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}
	return &FinalizePasswordResetHandler{auth: auth, timeout: timeout}
}

func (h *FinalizePasswordResetHandler) Execute(ctx context.Context, event FinalizePasswordResetMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during password reset finalization",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *FinalizePasswordResetHandler) execute(ctx context.Context, event FinalizePasswordResetMessage) error {
	if err := event.Validate(); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	if err := h.auth.FinalizePasswordReset(ctx, event.request()); err != nil {
		return commandError(err, "failed to finalize password reset")
	}

	if event.OnResponse != nil {
		event.OnResponse(&FinalizePasswordResetResponse{
			Email:   normalizeEmail(event.Email),
			Success: true,
		})
	}

	return nil
}
