package auth

import (
	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	goerrors "github.com/goliatone/go-errors"
)

// CredentialSource is how a new member proves who they are. It is either a
// PasswordCredential or an OAuthCredential.
type CredentialSource interface {
	platform() Platform
	validate() error
}

// PasswordCredential registers a local member. The email must have been
// verified beforehand.
type PasswordCredential struct {
	Password string
}

func (PasswordCredential) platform() Platform { return PlatformLocal }

func (c PasswordCredential) validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Password, validation.Required, validation.Length(1, 100)),
	)
}

// OAuthCredential registers a member whose identity is vouched for by a
// third party provider. No email verification or password is required.
type OAuthCredential struct {
	Provider       string
	ProviderUserID string
}

func (OAuthCredential) platform() Platform { return PlatformOAuth }

func (c OAuthCredential) validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.ProviderUserID, validation.Required),
	)
}

// RegisterRequest is the input of Register
type RegisterRequest struct {
	Email      string
	Credential CredentialSource
	Profile    ProfileFields
}

// Validate will validate the request shape
func (r RegisterRequest) Validate() error {
	if r.Credential == nil {
		return ErrUnsupportedCredential
	}

	if err := validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, validation.Length(3, 255), is.Email),
	); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid registration request")
	}

	if err := r.Credential.validate(); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid credential")
	}

	return nil
}

// OAuthLoginRequest carries the identity returned by a provider
type OAuthLoginRequest struct {
	Provider       string
	ProviderUserID string
	Email          string
	Nickname       string
}

// Validate will validate the request shape
func (r OAuthLoginRequest) Validate() error {
	if err := validation.ValidateStruct(&r,
		validation.Field(&r.ProviderUserID, validation.Required),
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Nickname, validation.Length(0, 30)),
	); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid oauth login request")
	}
	return nil
}

// ChangePasswordRequest is the input of ChangePassword
type ChangePasswordRequest struct {
	CurrentPassword string
	NewPassword     string
	ConfirmPassword string
}

// PasswordResetRequest is the input of FinalizePasswordReset
type PasswordResetRequest struct {
	Email       string
	Code        string
	NewPassword string
}

// Validate will validate the request shape
func (r PasswordResetRequest) Validate() error {
	if err := validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Code, validation.Required),
		validation.Field(&r.NewPassword, validation.Required, validation.Length(1, 100)),
	); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid password reset request")
	}
	return nil
}
