package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"time"

	"github.com/google/uuid"
)

// VerificationStateMachine governs the single time boxed verification
// attempt per email: Unverified -> {Verified, Expired}.
type VerificationStateMachine interface {
	IssueCode(ctx context.Context, email string) (*VerificationAttempt, error)
	CheckCode(ctx context.Context, email, code string) (bool, error)
	IsVerified(ctx context.Context, email string) (bool, error)
	Discard(ctx context.Context, email string) error
	TTL() time.Duration
}

// VerificationTransition describes a committed status change.
type VerificationTransition struct {
	Email string
	From  VerificationStatus
	To    VerificationStatus
	At    time.Time
}

// VerificationHook runs after a transition has been persisted. Hook errors
// are logged, they never change the outcome of the check.
type VerificationHook func(ctx context.Context, t VerificationTransition) error

// VerificationOption customizes state machine construction.
type VerificationOption func(*verificationStateMachine)

// WithVerificationClock injects a custom clock (useful for tests).
func WithVerificationClock(clock func() time.Time) VerificationOption {
	return func(sm *verificationStateMachine) {
		if clock != nil {
			sm.now = clock
		}
	}
}

// WithVerificationTTL sets the validity window of an issued code.
func WithVerificationTTL(ttl time.Duration) VerificationOption {
	return func(sm *verificationStateMachine) {
		if ttl > 0 {
			sm.ttl = ttl
		}
	}
}

// WithCodeGenerator overrides how codes are generated.
func WithCodeGenerator(gen CodeGenerator) VerificationOption {
	return func(sm *verificationStateMachine) {
		if gen != nil {
			sm.generate = gen
		}
	}
}

// WithVerificationActivitySink sets the ActivitySink used to publish transitions.
func WithVerificationActivitySink(sink ActivitySink) VerificationOption {
	return func(sm *verificationStateMachine) {
		sm.activitySink = normalizeActivitySink(sink)
	}
}

// WithVerificationLogger overrides the logger used for sink and hook failures.
func WithVerificationLogger(logger Logger) VerificationOption {
	return func(sm *verificationStateMachine) {
		sm.logger = normalizeLogger(logger)
	}
}

// WithVerificationHook adds a hook executed after each committed transition.
func WithVerificationHook(h VerificationHook) VerificationOption {
	return func(sm *verificationStateMachine) {
		if h != nil {
			sm.hooks = append(sm.hooks, h)
		}
	}
}

// NewVerificationStateMachine returns the default implementation backed by the provided store.
func NewVerificationStateMachine(store VerificationStore, opts ...VerificationOption) VerificationStateMachine {
	sm := &verificationStateMachine{
		store: store,
		transitions: map[VerificationStatus]map[VerificationStatus]struct{}{
			VerificationUnverified: {
				VerificationVerified: {},
				VerificationExpired:  {},
			},
		},
		ttl:          DefaultVerificationTTL,
		generate:     NumericCodeGenerator(DefaultVerificationCodeLength),
		now:          time.Now,
		activitySink: noopActivitySink{},
		logger:       defLogger{},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(sm)
		}
	}

	return sm
}

type verificationStateMachine struct {
	store        VerificationStore
	transitions  map[VerificationStatus]map[VerificationStatus]struct{}
	ttl          time.Duration
	generate     CodeGenerator
	now          func() time.Time
	activitySink ActivitySink
	logger       Logger
	hooks        []VerificationHook
}

// verdict is the decision taken for a submitted code before anything is written.
type verdict struct {
	next    *VerificationAttempt
	failure error
}

func (sm *verificationStateMachine) TTL() time.Duration {
	return sm.ttl
}

// IssueCode overwrites any attempt for email with a fresh Unverified one.
// Not safe to retry blindly, a retry replaces the code just sent.
func (sm *verificationStateMachine) IssueCode(ctx context.Context, email string) (*VerificationAttempt, error) {
	email = normalizeEmail(email)
	if email == "" {
		return nil, ErrInvalidAuth
	}

	code, err := sm.generate()
	if err != nil {
		return nil, err
	}

	now := sm.now()
	attempt := &VerificationAttempt{
		Email:     email,
		AttemptID: uuid.NewString(),
		Code:      code,
		Status:    VerificationUnverified,
		IssuedAt:  now,
		UpdatedAt: &now,
	}

	if err := sm.store.Save(ctx, attempt); err != nil {
		return nil, storageError(err, "failed to store verification attempt")
	}

	recordActivity(ctx, sm.activitySink, sm.logger, now, ActivityEvent{
		EventType: ActivityEventVerificationIssued,
		Email:     email,
		ToStatus:  VerificationUnverified,
		Metadata:  map[string]any{"expires_at": attempt.ExpiresAt(sm.ttl)},
	})

	return attempt, nil
}

// CheckCode decides the outcome first, commits any transition, and only then
// reports the failure. An expired attempt is persisted as Expired even though
// the call returns ErrExpiredAuth. The commit is conditional on the attempt
// that was read, if a newer code was issued meanwhile the check fails with
// ErrInvalidAuth and the new attempt is left untouched.
func (sm *verificationStateMachine) CheckCode(ctx context.Context, email, code string) (bool, error) {
	email = normalizeEmail(email)

	attempt, err := sm.store.FindByEmailAndStatus(ctx, email, VerificationUnverified)
	if err != nil {
		if IsRecordNotFound(err) {
			return false, ErrInvalidAuth
		}
		return false, storageError(err, "failed to load verification attempt")
	}
	if attempt == nil {
		return false, ErrInvalidAuth
	}

	now := sm.now()
	v := sm.decide(attempt, code, now)

	if v.next != nil {
		if err := sm.commit(ctx, attempt.Status, v.next); err != nil {
			return false, err
		}
	}

	if v.failure != nil {
		return false, v.failure
	}

	return true, nil
}

func (sm *verificationStateMachine) decide(attempt *VerificationAttempt, code string, now time.Time) verdict {
	if IsOutsideWindow(attempt.IssuedAt, now, sm.ttl) {
		return verdict{
			next:    sm.advance(attempt, VerificationExpired, now),
			failure: ErrExpiredAuth,
		}
	}

	if subtle.ConstantTimeCompare([]byte(attempt.Code), []byte(code)) != 1 {
		return verdict{failure: ErrInvalidVerifCode}
	}

	return verdict{next: sm.advance(attempt, VerificationVerified, now)}
}

func (sm *verificationStateMachine) advance(attempt *VerificationAttempt, to VerificationStatus, now time.Time) *VerificationAttempt {
	next := *attempt
	next.Status = to
	next.UpdatedAt = &now
	return &next
}

func (sm *verificationStateMachine) commit(ctx context.Context, from VerificationStatus, next *VerificationAttempt) error {
	if !sm.canTransition(from, next.Status) {
		return ErrInvalidAuth
	}

	if err := sm.store.Transition(ctx, from, next); err != nil {
		if errors.Is(err, ErrVerificationConflict) {
			sm.logger.Warn("verification attempt replaced before commit", "email", next.Email, "to", next.Status)
			return ErrInvalidAuth
		}
		return storageError(err, "failed to update verification attempt")
	}

	at := sm.now()
	if next.UpdatedAt != nil {
		at = *next.UpdatedAt
	}

	transition := VerificationTransition{
		Email: next.Email,
		From:  from,
		To:    next.Status,
		At:    at,
	}

	for _, hook := range sm.hooks {
		if err := hook(ctx, transition); err != nil {
			sm.logger.Error("verification hook failed", "email", next.Email, "to", next.Status, "error", err)
		}
	}

	eventType := ActivityEventVerificationVerified
	if next.Status == VerificationExpired {
		eventType = ActivityEventVerificationExpired
	}

	recordActivity(ctx, sm.activitySink, sm.logger, at, ActivityEvent{
		EventType:  eventType,
		Email:      next.Email,
		FromStatus: from,
		ToStatus:   next.Status,
	})

	return nil
}

func (sm *verificationStateMachine) canTransition(from, to VerificationStatus) bool {
	if allowed, ok := sm.transitions[from]; ok {
		_, exists := allowed[to]
		return exists
	}
	return false
}

// IsVerified is true iff the stored attempt for email is Verified.
func (sm *verificationStateMachine) IsVerified(ctx context.Context, email string) (bool, error) {
	attempt, err := sm.store.FindByEmailAndStatus(ctx, normalizeEmail(email), VerificationVerified)
	if err != nil {
		if IsRecordNotFound(err) {
			return false, nil
		}
		return false, storageError(err, "failed to load verification attempt")
	}
	return attempt != nil, nil
}

// Discard drops any attempt stored for email.
func (sm *verificationStateMachine) Discard(ctx context.Context, email string) error {
	if err := sm.store.Delete(ctx, normalizeEmail(email)); err != nil && !IsRecordNotFound(err) {
		return storageError(err, "failed to discard verification attempt")
	}
	return nil
}
