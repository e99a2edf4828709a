package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	auth "github.com/goliatone/go-member-auth"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) Config {
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	return Config{
		SigningKey:             "memberctl-test-signing-key",
		Issuer:                 "member-auth",
		Audience:               []string{"members"},
		AccessTokenTTL:         2 * time.Hour,
		RefreshTokenTTL:        72 * time.Hour,
		VerificationTTL:        3 * time.Minute,
		VerificationCodeLength: 6,
		RequestTimeout:         5 * time.Second,
		DSN:                    fmt.Sprintf("file:%s?mode=memory&cache=shared", name),
		PhoneRegion:            "KR",
	}
}

func newTestApp(t *testing.T) *app {
	t.Helper()
	a, err := newApp(context.Background(), testConfig(t), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })
	return a
}

func runJSON(t *testing.T, a *app, out any, args ...string) {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, a.run(context.Background(), args, &buf))
	require.NoError(t, json.Unmarshal(buf.Bytes(), out), buf.String())
}

func TestAppRegisterAndLogin(t *testing.T) {
	a := newTestApp(t)
	ctx := context.Background()

	var receipt auth.VerificationReceipt
	runJSON(t, a, &receipt, "request-code", "-email", "New@X.com")
	assert.Equal(t, "new@x.com", receipt.Email)

	attempt, err := a.repos.Verifications().FindByEmailAndStatus(ctx, "new@x.com", auth.VerificationUnverified)
	require.NoError(t, err)
	require.Len(t, attempt.Code, 6)

	var checked auth.CheckVerificationResponse
	runJSON(t, a, &checked, "verify", "-email", "new@x.com", "-code", attempt.Code)
	assert.True(t, checked.Verified)

	var registered auth.RegisterResult
	runJSON(t, a, &registered, "register", "-email", "new@x.com", "-password", "secret", "-nickname", "newbie", "-interests", "go, chess")
	require.NotNil(t, registered.Tokens)

	var member map[string]any
	runJSON(t, a, &member, "is-member", "-email", "new@x.com")
	assert.Equal(t, true, member["member"])

	var loggedIn auth.LoginResult
	runJSON(t, a, &loggedIn, "login", "-email", "new@x.com", "-password", "secret")
	assert.Equal(t, registered.MemberID, loggedIn.MemberID)
	require.NotNil(t, loggedIn.Tokens)

	var refreshed auth.TokenPair
	runJSON(t, a, &refreshed, "refresh", "-token", loggedIn.Tokens.RefreshToken)
	assert.NotEmpty(t, refreshed.AccessToken)

	var rotated auth.TokenPair
	runJSON(t, a, &rotated, "refresh", "-member", registered.MemberID.String())
	assert.NotEmpty(t, rotated.RefreshToken)

	var profile auth.Profile
	runJSON(t, a, &profile, "profile", "-member", registered.MemberID.String())

	var withdrawn map[string]any
	runJSON(t, a, &withdrawn, "withdraw", "-member", registered.MemberID.String(), "-password", "secret")
	assert.Equal(t, true, withdrawn["withdrawn"])

	runJSON(t, a, &member, "is-member", "-email", "new@x.com")
	assert.Equal(t, false, member["member"])
}

func TestAppOAuthLogin(t *testing.T) {
	a := newTestApp(t)

	var first auth.OAuthLoginResult
	runJSON(t, a, &first, "oauth-login", "-provider", "google", "-provider-user-id", "g-1", "-email", "o@x.com")
	assert.True(t, first.Created)
	assert.True(t, first.ProfileRequired)

	var second auth.OAuthLoginResult
	runJSON(t, a, &second, "oauth-login", "-provider", "google", "-provider-user-id", "g-1", "-email", "o@x.com")
	assert.False(t, second.Created)
	assert.Equal(t, first.MemberID, second.MemberID)
}

func TestAppErrors(t *testing.T) {
	a := newTestApp(t)
	ctx := context.Background()
	var buf bytes.Buffer

	assert.Error(t, a.run(ctx, nil, &buf))
	assert.Contains(t, buf.String(), "usage: memberctl")

	assert.Error(t, a.run(ctx, []string{"launch"}, &buf))

	err := a.run(ctx, []string{"register", "-email", "nobody@x.com", "-password", "secret"}, &buf)
	assert.ErrorIs(t, err, auth.ErrNotCompleteAuth)

	err = a.run(ctx, []string{"profile", "-member", "not-a-uuid"}, &buf)
	assert.Error(t, err)

	err = a.run(ctx, []string{"login", "-email", "nobody@x.com", "-password", "secret"}, &buf)
	assert.Error(t, err)
}

func TestSplitList(t *testing.T) {
	assert.Nil(t, splitList(" "))
	assert.Equal(t, []string{"go", "chess"}, splitList("go, chess,,"))
}

func TestLogCodeSenderKeepsCodeOutOfInfo(t *testing.T) {
	expires := time.Date(2024, 6, 1, 12, 3, 0, 0, time.UTC)

	var info bytes.Buffer
	sender := logCodeSender{logger: zlog{l: newLogger(&info, "info")}}
	require.NoError(t, sender.SendVerificationCode(context.Background(), "a@x.com", "482913", expires))
	assert.Contains(t, info.String(), `"email":"a@x.com"`)
	assert.NotContains(t, info.String(), "482913")

	var debug bytes.Buffer
	sender = logCodeSender{logger: zlog{l: newLogger(&debug, "debug")}}
	require.NoError(t, sender.SendVerificationCode(context.Background(), "a@x.com", "482913", expires))
	assert.Contains(t, debug.String(), `"code":"482913"`)
}

func TestAppAccountMaintenance(t *testing.T) {
	a := newTestApp(t)
	ctx := context.Background()

	var receipt auth.VerificationReceipt
	runJSON(t, a, &receipt, "request-code", "-email", "m@x.com")
	attempt, err := a.repos.Verifications().FindByEmailAndStatus(ctx, "m@x.com", auth.VerificationUnverified)
	require.NoError(t, err)
	var checked auth.CheckVerificationResponse
	runJSON(t, a, &checked, "verify", "-email", "m@x.com", "-code", attempt.Code)

	var registered auth.RegisterResult
	runJSON(t, a, &registered, "register", "-email", "m@x.com", "-password", "secret", "-nickname", "mo", "-birth-date", "1990-01-15")
	id := registered.MemberID.String()

	var profile auth.Profile
	runJSON(t, a, &profile, "update-nickname", "-member", id, "-nickname", "momo")
	assert.Equal(t, "momo", profile.Nickname)
	assert.Positive(t, profile.Age)

	var changed map[string]any
	runJSON(t, a, &changed, "change-password", "-member", id, "-current", "secret", "-new", "better", "-confirm", "better")
	assert.Equal(t, true, changed["changed"])

	var loggedIn auth.LoginResult
	runJSON(t, a, &loggedIn, "login", "-email", "m@x.com", "-password", "better")

	runJSON(t, a, &receipt, "reset-password-request", "-email", "m@x.com")
	assert.Equal(t, "m@x.com", receipt.Email)
	attempt, err = a.repos.Verifications().FindByEmailAndStatus(ctx, "m@x.com", auth.VerificationUnverified)
	require.NoError(t, err)

	var reset auth.FinalizePasswordResetResponse
	runJSON(t, a, &reset, "reset-password", "-email", "m@x.com", "-code", attempt.Code, "-password", "fresh")
	assert.True(t, reset.Success)

	runJSON(t, a, &loggedIn, "login", "-email", "m@x.com", "-password", "fresh")
	assert.Equal(t, registered.MemberID, loggedIn.MemberID)

	var members []auth.Profile
	runJSON(t, a, &members, "list-members")
	require.Len(t, members, 1)
	assert.Equal(t, "momo", members[0].Nickname)

	var buf bytes.Buffer
	err = a.run(ctx, []string{"change-password", "-member", id, "-current", "wrong", "-new", "x", "-confirm", "x"}, &buf)
	assert.Error(t, err)
	err = a.run(ctx, []string{"update-nickname", "-member", "nope", "-nickname", "x"}, &buf)
	assert.Error(t, err)
}

func TestUsageListsCommands(t *testing.T) {
	var buf bytes.Buffer
	usage(&buf)
	for _, name := range []string{"update-nickname", "change-password", "reset-password-request", "reset-password", "list-members"} {
		assert.Contains(t, buf.String(), name)
	}
	assert.Contains(t, buf.String(), "-interests")
}
