package social

import (
	"context"
	"sort"
	"strings"

	auth "github.com/goliatone/go-member-auth"
)

// OAuthLoginer is the part of the member authenticator used by social logins
type OAuthLoginer interface {
	OAuthLogin(ctx context.Context, req auth.OAuthLoginRequest) (*auth.OAuthLoginResult, error)
}

// SocialAuthenticator turns a provider authorization code into a member session.
type SocialAuthenticator struct {
	providers            map[string]Provider
	members              OAuthLoginer
	requireVerifiedEmail bool
	logger               auth.Logger
}

// SocialAuthOption configures the social authenticator.
type SocialAuthOption func(*SocialAuthenticator)

// WithProvider registers a provider under its Name.
func WithProvider(provider Provider) SocialAuthOption {
	return func(sa *SocialAuthenticator) {
		if provider == nil {
			return
		}
		sa.providers[strings.ToLower(provider.Name())] = provider
	}
}

// WithRequireVerifiedEmail rejects profiles whose email the provider did not verify.
func WithRequireVerifiedEmail(require bool) SocialAuthOption {
	return func(sa *SocialAuthenticator) {
		sa.requireVerifiedEmail = require
	}
}

// WithLogger sets the logger
func WithLogger(logger auth.Logger) SocialAuthOption {
	return func(sa *SocialAuthenticator) {
		if logger != nil {
			sa.logger = logger
		}
	}
}

// NewSocialAuthenticator creates a new social authenticator.
func NewSocialAuthenticator(members OAuthLoginer, opts ...SocialAuthOption) *SocialAuthenticator {
	sa := &SocialAuthenticator{
		providers: make(map[string]Provider),
		members:   members,
		logger:    nopLogger{},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(sa)
		}
	}

	return sa
}

// AuthResult is the outcome of a completed provider login
type AuthResult struct {
	Provider string
	Profile  *Profile
	Login    *auth.OAuthLoginResult
}

// CompleteAuth exchanges code with the provider, resolves the profile and
// signs the member in, creating it on first use.
func (sa *SocialAuthenticator) CompleteAuth(ctx context.Context, providerName, code string) (*AuthResult, error) {
	name := strings.ToLower(providerName)

	provider, ok := sa.providers[name]
	if !ok {
		return nil, ErrProviderNotFound
	}

	token, err := provider.Exchange(ctx, code)
	if err != nil {
		sa.logger.Warn("provider exchange failed", "provider", name, "error", err)
		return nil, wrapProviderError(ErrTokenExchangeFailed, name, "exchange", err)
	}

	profile, err := provider.UserInfo(ctx, token)
	if err != nil {
		sa.logger.Warn("provider user info failed", "provider", name, "error", err)
		return nil, wrapProviderError(ErrUserInfoFailed, name, "user_info", err)
	}
	if profile == nil || profile.ProviderUserID == "" {
		return nil, wrapProviderError(ErrUserInfoFailed, name, "user_info", nil)
	}

	if strings.TrimSpace(profile.Email) == "" {
		return nil, ErrEmailMissing
	}

	if sa.requireVerifiedEmail && !profile.EmailVerified {
		return nil, ErrEmailNotVerified
	}

	login, err := sa.members.OAuthLogin(ctx, auth.OAuthLoginRequest{
		Provider:       name,
		ProviderUserID: profile.ProviderUserID,
		Email:          profile.Email,
		Nickname:       profile.Nickname(),
	})
	if err != nil {
		return nil, err
	}

	sa.logger.Info("social login", "provider", name, "member_id", login.MemberID, "created", login.Created)

	return &AuthResult{
		Provider: name,
		Profile:  profile,
		Login:    login,
	}, nil
}

// Providers lists the registered provider names in order
func (sa *SocialAuthenticator) Providers() []string {
	names := make([]string, 0, len(sa.providers))
	for name := range sa.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}
