package social

import (
	"context"
	"time"
)

// Provider is a third party identity source. The network exchange lives in the
// implementation, this package only sequences the calls.
type Provider interface {
	// Name is the identifier stored on members created through the provider,
	// e.g. "kakao".
	Name() string

	// Exchange trades an authorization code for a provider access token.
	Exchange(ctx context.Context, code string) (*Token, error)

	// UserInfo resolves the identity behind a provider token.
	UserInfo(ctx context.Context, token *Token) (*Profile, error)
}

// Token is the provider side credential returned by Exchange
type Token struct {
	AccessToken  string
	TokenType    string
	RefreshToken string
	ExpiresAt    time.Time
}

// Profile is the identity a provider vouches for
type Profile struct {
	ProviderUserID string
	Email          string
	EmailVerified  bool
	Name           string
	Username       string
	Raw            map[string]any
}

// Nickname picks the display name used when creating a member
func (p *Profile) Nickname() string {
	name := p.Username
	if name == "" {
		name = p.Name
	}

	runes := []rune(name)
	if len(runes) > maxNicknameLength {
		runes = runes[:maxNicknameLength]
	}
	return string(runes)
}

const maxNicknameLength = 30
