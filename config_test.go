package auth_test

import (
	"context"
	"testing"
	"time"

	auth "github.com/goliatone/go-member-auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWindowHelpers(t *testing.T) {
	window := 3 * time.Minute

	assert.True(t, auth.IsWithinWindow(t0, t0, window))
	assert.True(t, auth.IsWithinWindow(t0, t0.Add(window), window))
	assert.False(t, auth.IsWithinWindow(t0, t0.Add(window+time.Nanosecond), window))
	assert.True(t, auth.IsOutsideWindow(t0, t0.Add(time.Hour), window))
}

func TestVerificationOptionsFromConfig(t *testing.T) {
	clock := newTestClock(t0)
	cfg := staticConfig{key: "k", verifyTTL: 10 * time.Minute, codeLength: 8}

	opts := append(auth.VerificationOptionsFrom(cfg), auth.WithVerificationClock(clock.Now))
	store := newMemoryVerifications()
	sm := auth.NewVerificationStateMachine(store, opts...)

	assert.Equal(t, 10*time.Minute, sm.TTL())

	attempt, err := sm.IssueCode(context.Background(), "a@x.com")
	require.NoError(t, err)
	assert.Len(t, attempt.Code, 8)
}

func TestVerificationOptionsDefaults(t *testing.T) {
	sm := auth.NewVerificationStateMachine(newMemoryVerifications(), auth.VerificationOptionsFrom(staticConfig{})...)
	assert.Equal(t, auth.DefaultVerificationTTL, sm.TTL())

	attempt, err := sm.IssueCode(context.Background(), "a@x.com")
	require.NoError(t, err)
	assert.Len(t, attempt.Code, auth.DefaultVerificationCodeLength)
}

func TestRequestTimeoutFrom(t *testing.T) {
	assert.Equal(t, auth.DefaultRequestTimeout, auth.RequestTimeoutFrom(nil))
	assert.Equal(t, auth.DefaultRequestTimeout, auth.RequestTimeoutFrom(staticConfig{}))
}
