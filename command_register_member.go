package auth

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

type RegisterMemberMessage struct {
	Email      string        `json:"email"`
	Password   string        `json:"password"`
	Profile    ProfileFields `json:"profile"`
	OnResponse func(r *RegisterResult)
}

func (e RegisterMemberMessage) Type() string { return "member.register" }

func (e RegisterMemberMessage) request() RegisterRequest {
	return RegisterRequest{
		Email:      e.Email,
		Credential: PasswordCredential{Password: e.Password},
		Profile:    e.Profile,
	}
}

func (e RegisterMemberMessage) Validate() error {
	return e.request().Validate()
}

// RegisterMemberHandler registers a member with a verified email and password
type RegisterMemberHandler struct {
	auth    *MemberAuthenticator
	timeout time.Duration
}

func NewRegisterMemberHandler(auth *MemberAuthenticator, timeout time.Duration) *RegisterMemberHandler {
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}
	return &RegisterMemberHandler{auth: auth, timeout: timeout}
}

func (h *RegisterMemberHandler) Execute(ctx context.Context, event RegisterMemberMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during member registration",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *RegisterMemberHandler) execute(ctx context.Context, event RegisterMemberMessage) error {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	res, err := h.auth.Register(ctx, event.request())
	if err != nil {
		return commandError(err, "failed to register member")
	}

	if event.OnResponse != nil {
		event.OnResponse(res)
	}

	return nil
}
