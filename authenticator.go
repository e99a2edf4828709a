package auth

import (
	"context"
	"crypto/subtle"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/google/uuid"
)

// RegisterResult is returned by a successful registration
type RegisterResult struct {
	MemberID uuid.UUID  `json:"member_id"`
	Tokens   *TokenPair `json:"tokens"`
}

// LoginResult is returned by a successful login
type LoginResult struct {
	MemberID uuid.UUID  `json:"member_id"`
	Tokens   *TokenPair `json:"tokens"`
	Active   bool       `json:"is_active"`
}

// OAuthLoginResult is returned by a successful provider login. ProfileRequired
// is set while the member has not completed a local profile.
type OAuthLoginResult struct {
	MemberID        uuid.UUID  `json:"member_id"`
	Tokens          *TokenPair `json:"tokens"`
	Created         bool       `json:"created"`
	ProfileRequired bool       `json:"profile_required"`
}

// VerificationReceipt acknowledges an issued code without exposing it
type VerificationReceipt struct {
	Email     string    `json:"email"`
	ExpiresAt time.Time `json:"expires_at"`
}

// AuthenticatorOption customizes the MemberAuthenticator
type AuthenticatorOption func(*MemberAuthenticator)

// WithPasswordHasher stores and compares passwords through h.
func WithPasswordHasher(h PasswordAuthenticator) AuthenticatorOption {
	return func(a *MemberAuthenticator) {
		a.passwords = h
	}
}

// WithCodeSender delivers issued verification codes.
func WithCodeSender(s CodeSender) AuthenticatorOption {
	return func(a *MemberAuthenticator) {
		a.sender = s
	}
}

// WithAuthenticatorActivitySink sets the ActivitySink used to publish auth events.
func WithAuthenticatorActivitySink(sink ActivitySink) AuthenticatorOption {
	return func(a *MemberAuthenticator) {
		a.activitySink = normalizeActivitySink(sink)
	}
}

// WithAuthenticatorLogger overrides the logger, nil restores the default
func WithAuthenticatorLogger(logger Logger) AuthenticatorOption {
	return func(a *MemberAuthenticator) {
		a.logger = normalizeLogger(logger)
	}
}

// WithAuthenticatorClock injects a custom clock (useful for tests).
func WithAuthenticatorClock(clock func() time.Time) AuthenticatorOption {
	return func(a *MemberAuthenticator) {
		if clock != nil {
			a.now = clock
		}
	}
}

// WithPhoneRegion sets the default region used to parse profile phone numbers.
func WithPhoneRegion(region string) AuthenticatorOption {
	return func(a *MemberAuthenticator) {
		if region != "" {
			a.phoneRegion = region
		}
	}
}

// WithDeterministicMemberIDs derives member ids from the email so the same
// address always maps to the same id across environments.
func WithDeterministicMemberIDs() AuthenticatorOption {
	return func(a *MemberAuthenticator) {
		a.newID = func(email string) (uuid.UUID, error) {
			return hashid.NewUUID(email)
		}
	}
}

// MemberAuthenticator sequences the stores, the Token Engine and the
// verification state machine. Checks run in a fixed order and stop at the
// first failure.
type MemberAuthenticator struct {
	members      MemberStore
	verifier     VerificationStateMachine
	tokens       TokenService
	passwords    PasswordAuthenticator
	sender       CodeSender
	activitySink ActivitySink
	logger       Logger
	now          func() time.Time
	phoneRegion  string
	newID        func(email string) (uuid.UUID, error)
}

// NewMemberAuthenticator returns a MemberAuthenticator
func NewMemberAuthenticator(members MemberStore, verifier VerificationStateMachine, tokens TokenService, opts ...AuthenticatorOption) *MemberAuthenticator {
	a := &MemberAuthenticator{
		members:      members,
		verifier:     verifier,
		tokens:       tokens,
		activitySink: noopActivitySink{},
		logger:       defLogger{},
		now:          time.Now,
		phoneRegion:  DefaultPhoneRegion,
		newID: func(string) (uuid.UUID, error) {
			return uuid.New(), nil
		},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}

	return a
}

// IsMember reports whether an account exists for email
func (a *MemberAuthenticator) IsMember(ctx context.Context, email string) (bool, error) {
	_, err := a.members.FindByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if IsRecordNotFound(err) {
			return false, nil
		}
		return false, storageError(err, "failed to look up member")
	}
	return true, nil
}

// RequestVerification issues a new code for an email that has no account yet
// and hands it to the configured CodeSender.
func (a *MemberAuthenticator) RequestVerification(ctx context.Context, email string) (*VerificationReceipt, error) {
	email = normalizeEmail(email)

	exists, err := a.IsMember(ctx, email)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrDuplicateMember
	}

	return a.deliverCode(ctx, email)
}

// VerifyEmail checks a submitted code
func (a *MemberAuthenticator) VerifyEmail(ctx context.Context, email, code string) (bool, error) {
	return a.verifier.CheckCode(ctx, email, code)
}

// Register creates a member and signs them in.
func (a *MemberAuthenticator) Register(ctx context.Context, req RegisterRequest) (*RegisterResult, error) {
	req.Email = normalizeEmail(req.Email)

	exists, err := a.IsMember(ctx, req.Email)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrDuplicateMember
	}

	if err := req.Validate(); err != nil {
		return nil, err
	}

	profile, err := req.Profile.normalized(a.phoneRegion)
	if err != nil {
		return nil, err
	}

	member := (&Member{Email: req.Email}).ApplyProfile(profile)

	switch cred := req.Credential.(type) {
	case PasswordCredential:
		verified, err := a.verifier.IsVerified(ctx, req.Email)
		if err != nil {
			return nil, err
		}
		if !verified {
			return nil, ErrNotCompleteAuth
		}

		password, err := a.storedPassword(cred.Password)
		if err != nil {
			return nil, err
		}
		member.Password = password
		member.Platform = PlatformLocal
		member.Active = true
	case OAuthCredential:
		member.Platform = PlatformOAuth
		member.Provider = cred.Provider
		member.ProviderUserID = cred.ProviderUserID
		member.Active = false
	default:
		return nil, ErrUnsupportedCredential
	}

	created, err := a.create(ctx, member)
	if err != nil {
		return nil, err
	}

	pair, err := a.issue(ctx, created)
	if err != nil {
		return nil, err
	}

	a.record(ctx, ActivityEvent{
		EventType: ActivityEventMemberRegistered,
		MemberID:  created.ID.String(),
		Email:     created.Email,
		Metadata:  map[string]any{"platform": created.Platform},
	})

	return &RegisterResult{MemberID: created.ID, Tokens: pair}, nil
}

// Login authenticates with email and password.
func (a *MemberAuthenticator) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	email = normalizeEmail(email)

	member, err := a.findByCredentials(ctx, email, password)
	if err != nil {
		if goerrors.Is(err, ErrNotFoundUser) {
			a.record(ctx, ActivityEvent{
				EventType: ActivityEventLoginFailure,
				Email:     email,
			})
		}
		return nil, err
	}

	pair, err := a.issue(ctx, member)
	if err != nil {
		return nil, err
	}

	a.record(ctx, ActivityEvent{
		EventType: ActivityEventLoginSuccess,
		MemberID:  member.ID.String(),
		Email:     member.Email,
	})

	return &LoginResult{MemberID: member.ID, Tokens: pair, Active: member.Active}, nil
}

// OAuthLogin signs in a provider identity, creating the member on first use.
func (a *MemberAuthenticator) OAuthLogin(ctx context.Context, req OAuthLoginRequest) (*OAuthLoginResult, error) {
	req.Email = normalizeEmail(req.Email)

	if err := req.Validate(); err != nil {
		return nil, err
	}

	created := false
	member, err := a.members.FindByEmail(ctx, req.Email)
	switch {
	case err == nil:
	case IsRecordNotFound(err):
		member, err = a.create(ctx, &Member{
			Email:          req.Email,
			Platform:       PlatformOAuth,
			Provider:       req.Provider,
			ProviderUserID: req.ProviderUserID,
			Nickname:       req.Nickname,
			Active:         false,
		})
		if err != nil {
			return nil, err
		}
		created = true
	default:
		return nil, storageError(err, "failed to look up member")
	}

	pair, err := a.issue(ctx, member)
	if err != nil {
		return nil, err
	}

	a.record(ctx, ActivityEvent{
		EventType: ActivityEventOAuthLogin,
		MemberID:  member.ID.String(),
		Email:     member.Email,
		Metadata: map[string]any{
			"provider": req.Provider,
			"created":  created,
		},
	})

	return &OAuthLoginResult{
		MemberID:        member.ID,
		Tokens:          pair,
		Created:         created,
		ProfileRequired: !member.Active,
	}, nil
}

// RefreshAccessToken rotates the member's stored refresh token.
// ErrExpiredRefreshToken is returned as is, callers must log in again.
func (a *MemberAuthenticator) RefreshAccessToken(ctx context.Context, memberID uuid.UUID) (*TokenPair, error) {
	member, err := a.findByID(ctx, memberID, ErrNotFound)
	if err != nil {
		return nil, err
	}
	return a.rotate(ctx, member)
}

// RefreshWithToken rotates using a token presented by the client. A token
// that is no longer the stored one has been superseded and is rejected.
func (a *MemberAuthenticator) RefreshWithToken(ctx context.Context, refreshToken string) (*TokenPair, error) {
	claims, err := a.tokens.Validate(refreshToken)
	if err != nil {
		if IsTokenExpiredError(err) {
			return nil, ErrExpiredRefreshToken
		}
		return nil, ErrTokenMalformed
	}

	if !claims.IsRefresh() {
		return nil, ErrTokenMalformed
	}

	memberID, err := claims.MemberID()
	if err != nil {
		return nil, ErrTokenMalformed
	}

	member, err := a.findByID(ctx, memberID, ErrNotFound)
	if err != nil {
		return nil, err
	}

	if subtle.ConstantTimeCompare([]byte(member.RefreshToken), []byte(refreshToken)) != 1 {
		return nil, ErrExpiredRefreshToken
	}

	return a.rotate(ctx, member)
}

// Profile returns the public view of a member
func (a *MemberAuthenticator) Profile(ctx context.Context, memberID uuid.UUID) (*Profile, error) {
	member, err := a.findByID(ctx, memberID, ErrNotFound)
	if err != nil {
		return nil, err
	}
	return a.profileOf(member), nil
}

// ListMembers returns the public view of every member
func (a *MemberAuthenticator) ListMembers(ctx context.Context) ([]*Profile, error) {
	members, err := a.members.List(ctx)
	if err != nil {
		return nil, storageError(err, "failed to list members")
	}

	profiles := make([]*Profile, 0, len(members))
	for _, member := range members {
		profiles = append(profiles, a.profileOf(member))
	}
	return profiles, nil
}

func (a *MemberAuthenticator) profileOf(member *Member) *Profile {
	p := &Profile{
		ID:            member.ID,
		Email:         member.Email,
		Nickname:      member.Nickname,
		Platform:      member.Platform,
		Active:        member.Active,
		AreaInterests: member.AreaInterests,
	}
	if age, ok := AgeAt(member.BirthDate, a.now()); ok {
		p.Age = age
	}
	return p
}

// UpdateNickname changes the member's nickname
func (a *MemberAuthenticator) UpdateNickname(ctx context.Context, memberID uuid.UUID, nickname string) error {
	member, err := a.findByID(ctx, memberID, ErrNotFoundUser)
	if err != nil {
		return err
	}

	if member.Nickname == nickname {
		return ErrSameNickname
	}

	if err := (ProfileFields{Nickname: nickname}).Validate(); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid nickname")
	}

	member.Nickname = nickname
	if _, err := a.members.Save(ctx, member); err != nil {
		return storageError(err, "failed to update nickname")
	}

	return nil
}

// ChangePassword replaces the member's password after confirming the current one.
func (a *MemberAuthenticator) ChangePassword(ctx context.Context, memberID uuid.UUID, req ChangePasswordRequest) error {
	member, err := a.findByID(ctx, memberID, ErrNotFoundUser)
	if err != nil {
		return err
	}

	if !a.secretMatches(member, req.CurrentPassword) {
		return ErrDifferentPassword
	}

	if req.NewPassword != req.ConfirmPassword {
		return ErrDifferentPassword
	}

	if req.NewPassword == req.CurrentPassword {
		return ErrSamePassword
	}

	password, err := a.storedPassword(req.NewPassword)
	if err != nil {
		return err
	}

	member.Password = password
	if _, err := a.members.Save(ctx, member); err != nil {
		return storageError(err, "failed to update password")
	}

	a.record(ctx, ActivityEvent{
		EventType: ActivityEventPasswordChanged,
		MemberID:  member.ID.String(),
		Email:     member.Email,
	})

	return nil
}

// RequestPasswordReset sends a code to a local member who lost their password.
// Members created through OAuth have no password and get ErrUnsupportedCredential.
func (a *MemberAuthenticator) RequestPasswordReset(ctx context.Context, email string) (*VerificationReceipt, error) {
	member, err := a.resettable(ctx, normalizeEmail(email))
	if err != nil {
		return nil, err
	}

	receipt, err := a.deliverCode(ctx, member.Email)
	if err != nil {
		return nil, err
	}

	a.record(ctx, ActivityEvent{
		EventType: ActivityEventPasswordResetRequest,
		MemberID:  member.ID.String(),
		Email:     member.Email,
	})

	return receipt, nil
}

// FinalizePasswordReset checks the code sent by RequestPasswordReset and
// stores the new password. The code is consumed and the stored refresh token
// revoked, so sessions opened with the old password cannot be renewed.
func (a *MemberAuthenticator) FinalizePasswordReset(ctx context.Context, req PasswordResetRequest) error {
	req.Email = normalizeEmail(req.Email)

	if err := req.Validate(); err != nil {
		return err
	}

	member, err := a.resettable(ctx, req.Email)
	if err != nil {
		return err
	}

	if _, err := a.verifier.CheckCode(ctx, req.Email, req.Code); err != nil {
		return err
	}

	password, err := a.storedPassword(req.NewPassword)
	if err != nil {
		return err
	}

	member.Password = password
	if _, err := a.members.Save(ctx, member); err != nil {
		return storageError(err, "failed to reset password")
	}

	if err := a.verifier.Discard(ctx, member.Email); err != nil {
		return err
	}

	if member.RefreshToken != "" {
		if err := a.members.SwapRefreshToken(ctx, member.ID, member.RefreshToken, ""); err != nil {
			if !goerrors.Is(err, ErrRefreshTokenConflict) {
				return storageError(err, "failed to revoke refresh token")
			}
			a.logger.Warn("refresh token rotated during password reset", "member_id", member.ID)
		}
	}

	a.record(ctx, ActivityEvent{
		EventType: ActivityEventPasswordReset,
		MemberID:  member.ID.String(),
		Email:     member.Email,
	})

	return nil
}

// Withdraw deletes the member and discards any verification attempt for
// their email, so re-registering requires verifying again.
func (a *MemberAuthenticator) Withdraw(ctx context.Context, memberID uuid.UUID, password string) error {
	member, err := a.findByID(ctx, memberID, ErrNotFoundUser)
	if err != nil {
		return err
	}

	if !a.secretMatches(member, password) {
		return ErrDifferentPassword
	}

	if err := a.members.Delete(ctx, member.ID); err != nil {
		return storageError(err, "failed to delete member")
	}

	if err := a.verifier.Discard(ctx, member.Email); err != nil {
		return err
	}

	a.record(ctx, ActivityEvent{
		EventType: ActivityEventMemberWithdrawn,
		MemberID:  member.ID.String(),
		Email:     member.Email,
	})

	return nil
}

// deliverCode issues a code for email and hands it to the CodeSender
func (a *MemberAuthenticator) deliverCode(ctx context.Context, email string) (*VerificationReceipt, error) {
	attempt, err := a.verifier.IssueCode(ctx, email)
	if err != nil {
		return nil, err
	}

	expiresAt := attempt.ExpiresAt(a.verifier.TTL())

	if a.sender == nil {
		a.logger.Debug("no code sender configured, verification code not delivered", "email", email)
	} else if err := a.sender.SendVerificationCode(ctx, email, attempt.Code, expiresAt); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryOperation, "failed to deliver verification code")
	}

	return &VerificationReceipt{Email: email, ExpiresAt: expiresAt}, nil
}

func (a *MemberAuthenticator) resettable(ctx context.Context, email string) (*Member, error) {
	member, err := a.members.FindByEmail(ctx, email)
	if err != nil {
		if IsRecordNotFound(err) {
			return nil, ErrNotFoundUser
		}
		return nil, storageError(err, "failed to look up member")
	}
	if member == nil {
		return nil, ErrNotFoundUser
	}
	if member.Platform == PlatformOAuth {
		return nil, ErrUnsupportedCredential
	}
	return member, nil
}

func (a *MemberAuthenticator) create(ctx context.Context, member *Member) (*Member, error) {
	id, err := a.newID(member.Email)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to generate member id")
	}
	member.ID = id

	created, err := a.members.Save(ctx, member)
	if err != nil {
		return nil, storageError(err, "failed to create member")
	}
	if created == nil {
		created = member
	}
	return created, nil
}

// issue mints a pair and swaps it in as the only honored refresh token.
func (a *MemberAuthenticator) issue(ctx context.Context, member *Member) (*TokenPair, error) {
	pair, err := a.tokens.Issue(NewClaimFromMember(member))
	if err != nil {
		return nil, err
	}

	if err := a.members.SwapRefreshToken(ctx, member.ID, member.RefreshToken, pair.RefreshToken); err != nil {
		return nil, storageError(err, "failed to store refresh token")
	}

	member.RefreshToken = pair.RefreshToken
	return pair, nil
}

func (a *MemberAuthenticator) rotate(ctx context.Context, member *Member) (*TokenPair, error) {
	pair, err := a.tokens.Refresh(member)
	if err != nil {
		return nil, err
	}

	if err := a.members.SwapRefreshToken(ctx, member.ID, member.RefreshToken, pair.RefreshToken); err != nil {
		if goerrors.Is(err, ErrRefreshTokenConflict) {
			return nil, ErrExpiredRefreshToken
		}
		return nil, storageError(err, "failed to store refresh token")
	}

	member.RefreshToken = pair.RefreshToken

	a.record(ctx, ActivityEvent{
		EventType: ActivityEventTokenRefreshed,
		MemberID:  member.ID.String(),
		Email:     member.Email,
	})

	return pair, nil
}

func (a *MemberAuthenticator) findByID(ctx context.Context, id uuid.UUID, notFound error) (*Member, error) {
	member, err := a.members.FindByID(ctx, id)
	if err != nil {
		if IsRecordNotFound(err) {
			return nil, notFound
		}
		return nil, storageError(err, "failed to look up member")
	}
	if member == nil {
		return nil, notFound
	}
	return member, nil
}

func (a *MemberAuthenticator) findByCredentials(ctx context.Context, email, password string) (*Member, error) {
	if email == "" || password == "" {
		return nil, ErrNotFoundUser
	}

	var (
		member *Member
		err    error
	)

	if a.passwords == nil {
		member, err = a.members.FindByEmailAndPassword(ctx, email, password)
	} else {
		member, err = a.members.FindByEmail(ctx, email)
	}

	if err != nil {
		if IsRecordNotFound(err) {
			return nil, ErrNotFoundUser
		}
		return nil, storageError(err, "failed to look up member")
	}

	if member == nil || member.Platform == PlatformOAuth {
		return nil, ErrNotFoundUser
	}

	if a.passwords != nil {
		if err := a.passwords.ComparePasswordAndHash(password, member.Password); err != nil {
			a.logger.Debug("login password mismatch", "email", email)
			return nil, ErrNotFoundUser
		}
	}

	return member, nil
}

// secretMatches checks the member's password, or the provider user id for
// members created through OAuth.
func (a *MemberAuthenticator) secretMatches(member *Member, secret string) bool {
	if secret == "" {
		return false
	}

	if member.Platform == PlatformOAuth && member.Password == "" {
		return subtle.ConstantTimeCompare([]byte(member.ProviderUserID), []byte(secret)) == 1
	}

	if a.passwords != nil {
		return a.passwords.ComparePasswordAndHash(secret, member.Password) == nil
	}

	return subtle.ConstantTimeCompare([]byte(member.Password), []byte(secret)) == 1
}

func (a *MemberAuthenticator) storedPassword(password string) (string, error) {
	if a.passwords == nil {
		return password, nil
	}
	return a.passwords.HashPassword(password)
}

func (a *MemberAuthenticator) record(ctx context.Context, event ActivityEvent) {
	recordActivity(ctx, a.activitySink, a.logger, a.now(), event)
}
