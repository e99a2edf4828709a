// Package activitymap flattens member auth activity into actor/verb/object
// records for audit feeds.
package activitymap

import (
	"context"
	"strings"
	"time"

	auth "github.com/goliatone/go-member-auth"
)

const (
	MetadataKeyEmail      = "email"
	MetadataKeyFromStatus = "from_status"
	MetadataKeyToStatus   = "to_status"
)

const (
	ObjectMember       = "member"
	ObjectVerification = "verification"
	ObjectSession      = "session"

	defaultChannel = "member-auth"
	defaultActorID = "anonymous"
)

// Normalized is the flat shape written to audit feeds
type Normalized struct {
	ActorID    string         `json:"actor_id"`
	Verb       string         `json:"verb"`
	ObjectType string         `json:"object_type,omitempty"`
	ObjectID   string         `json:"object_id,omitempty"`
	Channel    string         `json:"channel,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

type Option func(*normalizeOptions)

type normalizeOptions struct {
	channel       string
	actorFallback string
	now           func() time.Time
}

// Normalize maps an event onto a Normalized record. Verification events
// happen before a member exists, so their actor and object is the email.
func Normalize(event auth.ActivityEvent, opts ...Option) Normalized {
	options := normalizeOptions{
		channel:       defaultChannel,
		actorFallback: defaultActorID,
		now:           time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}

	memberID := strings.TrimSpace(event.MemberID)
	email := strings.ToLower(strings.TrimSpace(event.Email))

	objectType := objectTypeOf(event.EventType)
	objectID := memberID
	if objectType == ObjectVerification || objectID == "" {
		objectID = email
	}

	occurredAt := event.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = options.now()
	}

	return Normalized{
		ActorID:    firstNonEmpty(memberID, email, options.actorFallback),
		Verb:       string(event.EventType),
		ObjectType: objectType,
		ObjectID:   objectID,
		Channel:    options.channel,
		Metadata:   normalizeMetadata(event, email),
		OccurredAt: occurredAt.UTC(),
	}
}

// Sink adapts fn into an auth.ActivitySink that receives normalized records
func Sink(fn func(context.Context, Normalized) error, opts ...Option) auth.ActivitySink {
	return auth.ActivitySinkFunc(func(ctx context.Context, event auth.ActivityEvent) error {
		return fn(ctx, Normalize(event, opts...))
	})
}

func WithChannel(channel string) Option {
	return func(opts *normalizeOptions) {
		if channel = strings.TrimSpace(channel); channel != "" {
			opts.channel = channel
		}
	}
}

// WithActorFallback is used when the event has neither member id nor email
func WithActorFallback(actorID string) Option {
	return func(opts *normalizeOptions) {
		opts.actorFallback = strings.TrimSpace(actorID)
	}
}

func WithClock(now func() time.Time) Option {
	return func(opts *normalizeOptions) {
		if now != nil {
			opts.now = now
		}
	}
}

func objectTypeOf(t auth.ActivityEventType) string {
	switch t {
	case auth.ActivityEventVerificationIssued,
		auth.ActivityEventVerificationVerified,
		auth.ActivityEventVerificationExpired:
		return ObjectVerification
	case auth.ActivityEventLoginSuccess,
		auth.ActivityEventLoginFailure,
		auth.ActivityEventOAuthLogin,
		auth.ActivityEventTokenRefreshed:
		return ObjectSession
	default:
		return ObjectMember
	}
}

func normalizeMetadata(event auth.ActivityEvent, email string) map[string]any {
	metadata := make(map[string]any, len(event.Metadata)+3)
	for key, value := range event.Metadata {
		metadata[key] = value
	}

	if email != "" {
		metadata[MetadataKeyEmail] = email
	}
	if event.FromStatus != "" {
		metadata[MetadataKeyFromStatus] = event.FromStatus
	}
	if event.ToStatus != "" {
		metadata[MetadataKeyToStatus] = event.ToStatus
	}

	if len(metadata) == 0 {
		return nil
	}
	return metadata
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if value != "" {
			return value
		}
	}
	return ""
}
