package auth

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Platform records how a member authenticates
type Platform = string

const (
	// PlatformLocal members log in with email and password
	PlatformLocal Platform = "local"
	// PlatformOAuth members were created by a third party provider login
	PlatformOAuth Platform = "oauth"
)

// Member is the member model
type Member struct {
	bun.BaseModel  `bun:"table:members,alias:mbr"`
	ID             uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Email          string     `bun:"email,notnull,unique" json:"email,omitempty"`
	Password       string     `bun:"password" json:"-"`
	RefreshToken   string     `bun:"refresh_token,nullzero" json:"-"`
	Active         bool       `bun:"is_active,notnull" json:"is_active"`
	Platform       Platform   `bun:"platform,notnull" json:"platform,omitempty"`
	Provider       string     `bun:"provider" json:"provider,omitempty"`
	ProviderUserID string     `bun:"provider_user_id" json:"provider_user_id,omitempty"`
	Nickname       string     `bun:"nickname" json:"nickname,omitempty"`
	Name           string     `bun:"name" json:"name,omitempty"`
	Phone          string     `bun:"phone_number" json:"phone_number,omitempty"`
	BirthDate      string     `bun:"birth_date" json:"birth_date,omitempty"`
	Gender         string     `bun:"gender" json:"gender,omitempty"`
	Address        string     `bun:"address" json:"address,omitempty"`
	AreaInterests  []string   `bun:"area_interests" json:"area_interests,omitempty"`
	CreatedAt      *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt      *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// ApplyProfile copies profile fields onto the member
func (m *Member) ApplyProfile(p ProfileFields) *Member {
	m.Nickname = p.Nickname
	m.Name = p.Name
	m.Phone = p.Phone
	m.BirthDate = p.BirthDate
	m.Gender = p.Gender
	m.Address = p.Address
	m.AreaInterests = p.AreaInterests
	return m
}

// VerificationStatus is the stored state of a verification attempt
type VerificationStatus = string

const (
	// VerificationUnverified a code was issued and is waiting to be checked
	VerificationUnverified VerificationStatus = "unverified"
	// VerificationVerified a matching code was presented within the window
	VerificationVerified VerificationStatus = "verified"
	// VerificationExpired a code was presented after the window elapsed
	VerificationExpired VerificationStatus = "expired"
)

// VerificationAttempt tracks proof of email ownership. There is at most one
// attempt per email.
type VerificationAttempt struct {
	bun.BaseModel `bun:"table:email_verifications,alias:emv"`
	Email         string             `bun:"email,pk" json:"email"`
	AttemptID     string             `bun:"attempt_id,notnull" json:"attempt_id"`
	Code          string             `bun:"code,notnull" json:"code"`
	Status        VerificationStatus `bun:"status,notnull" json:"status"`
	IssuedAt      time.Time          `bun:"issued_at,notnull" json:"issued_at"`
	UpdatedAt     *time.Time         `bun:"updated_at,nullzero" json:"updated_at,omitempty"`
}

// ExpiresAt is the end of the attempt's validity window
func (v *VerificationAttempt) ExpiresAt(ttl time.Duration) time.Time {
	return v.IssuedAt.Add(ttl)
}

// TokenPair is the result of a successful authentication
type TokenPair struct {
	AccessToken      string    `json:"access_token"`
	AccessExpiresAt  time.Time `json:"access_expires_at"`
	RefreshToken     string    `json:"refresh_token"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
}

// Profile is the public view of a member
type Profile struct {
	ID            uuid.UUID `json:"id"`
	Email         string    `json:"email"`
	Nickname      string    `json:"nickname,omitempty"`
	Platform      Platform  `json:"platform"`
	Active        bool      `json:"is_active"`
	AreaInterests []string  `json:"area_interests,omitempty"`
	Age           int       `json:"age,omitempty"`
}
