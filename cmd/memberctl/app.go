package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	auth "github.com/goliatone/go-member-auth"
	"github.com/goliatone/go-member-auth/activitymap"
	"github.com/goliatone/go-member-auth/mailer"
	"github.com/goliatone/go-member-auth/repository"
	"github.com/goliatone/go-print"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

type app struct {
	cfg     Config
	logger  zerolog.Logger
	db      *bun.DB
	repos   auth.RepositoryManager
	auth    *auth.MemberAuthenticator
	closers []func() error
}

// newApp opens storage and wires the authenticator from cfg
func newApp(ctx context.Context, cfg Config, logger zerolog.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: logger}
	log := zlog{l: logger}

	sqldb, err := sql.Open(sqliteshim.ShimName, cfg.DSN)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to open database")
	}
	sqldb.SetMaxOpenConns(1)

	a.db = bun.NewDB(sqldb, sqlitedialect.New())
	a.closers = append(a.closers, a.db.Close)

	var verifications auth.VerificationStore
	if cfg.RedisEnabled {
		client, err := repository.Connect(ctx, cfg.Redis)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.closers = append(a.closers, client.Close)
		verifications = repository.NewVerificationCacheFromConfig(client, cfg.Redis)
		logger.Debug().Str("addr", cfg.Redis.Addr).Msg("verification attempts stored in redis")
	}

	a.repos = auth.NewRepositoryManager(a.db, verifications)
	if err := a.repos.Validate(); err != nil {
		a.Close()
		return nil, err
	}

	if err := a.repos.CreateSchema(ctx); err != nil {
		a.Close()
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to create schema")
	}

	tokens, err := auth.NewTokenService(auth.TokenConfigFrom(cfg), auth.WithTokenLogger(log))
	if err != nil {
		a.Close()
		return nil, err
	}

	sink := activitymap.Sink(func(_ context.Context, n activitymap.Normalized) error {
		logger.Info().
			Str("actor_id", n.ActorID).
			Str("verb", n.Verb).
			Str("object_type", n.ObjectType).
			Str("object_id", n.ObjectID).
			Fields(n.Metadata).
			Time("occurred_at", n.OccurredAt).
			Msg("activity")
		return nil
	}, activitymap.WithChannel("memberctl"))

	verifier := auth.NewVerificationStateMachine(a.repos.Verifications(), append(
		auth.VerificationOptionsFrom(cfg),
		auth.WithVerificationLogger(log),
		auth.WithVerificationActivitySink(sink),
	)...)

	var sender auth.CodeSender = logCodeSender{logger: log}
	if cfg.SMTPEnabled {
		m, err := mailer.New(cfg.SMTP)
		if err != nil {
			a.Close()
			return nil, err
		}
		sender = m
	}

	opts := []auth.AuthenticatorOption{
		auth.WithCodeSender(sender),
		auth.WithAuthenticatorLogger(log),
		auth.WithAuthenticatorActivitySink(sink),
		auth.WithPhoneRegion(cfg.PhoneRegion),
	}
	if cfg.HashPasswords {
		opts = append(opts, auth.WithPasswordHasher(auth.NewBcryptPasswords()))
	}
	if cfg.DeterministicIDs {
		opts = append(opts, auth.WithDeterministicMemberIDs())
	}

	a.auth = auth.NewMemberAuthenticator(a.repos.Members(), verifier, tokens, opts...)

	return a, nil
}

// Close releases storage in reverse order of acquisition
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

type command struct {
	usage string
	run   func(ctx context.Context, a *app, fs *flag.FlagSet, args []string) (any, error)
}

var commands = map[string]command{
	"request-code":           {usage: "-email", run: requestCode},
	"verify":                 {usage: "-email -code", run: verifyCode},
	"register":               {usage: "-email -password [-nickname -phone -birth-date -interests]", run: register},
	"login":                  {usage: "-email -password", run: login},
	"oauth-login":            {usage: "-provider -provider-user-id -email [-nickname]", run: oauthLogin},
	"refresh":                {usage: "-token | -member", run: refresh},
	"profile":                {usage: "-member", run: profile},
	"list-members":           {usage: "", run: listMembers},
	"update-nickname":        {usage: "-member -nickname", run: updateNickname},
	"change-password":        {usage: "-member -current -new -confirm", run: changePassword},
	"reset-password-request": {usage: "-email", run: resetPasswordRequest},
	"reset-password":         {usage: "-email -code -password", run: resetPassword},
	"withdraw":               {usage: "-member -password", run: withdraw},
	"is-member":              {usage: "-email", run: isMember},
}

// usage lists the sub commands
func usage(w io.Writer) {
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Fprintln(w, "usage: memberctl <command> [flags]")
	for _, name := range names {
		fmt.Fprintf(w, "  %-23s %s\n", name, commands[name].usage)
	}
}

// run dispatches args[0] and prints the result as JSON to out
func (a *app) run(ctx context.Context, args []string, out io.Writer) error {
	if len(args) == 0 {
		usage(out)
		return errors.New("missing command")
	}

	cmd, ok := commands[args[0]]
	if !ok {
		usage(out)
		return fmt.Errorf("unknown command %q", args[0])
	}

	fs := flag.NewFlagSet(args[0], flag.ContinueOnError)
	fs.SetOutput(out)

	result, err := cmd.run(ctx, a, fs, args[1:])
	if err != nil {
		return err
	}

	fmt.Fprintln(out, print.MaybePrettyJSON(result))
	return nil
}

func (a *app) timeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, auth.RequestTimeoutFrom(a.cfg))
}

func requestCode(ctx context.Context, a *app, fs *flag.FlagSet, args []string) (any, error) {
	email := fs.String("email", "", "email to verify")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	var receipt *auth.VerificationReceipt
	handler := auth.NewRequestVerificationHandler(a.auth, auth.RequestTimeoutFrom(a.cfg))
	err := handler.Execute(ctx, auth.RequestVerificationMessage{
		Email:      *email,
		OnResponse: func(r *auth.VerificationReceipt) { receipt = r },
	})
	return receipt, err
}

func verifyCode(ctx context.Context, a *app, fs *flag.FlagSet, args []string) (any, error) {
	email := fs.String("email", "", "email being verified")
	code := fs.String("code", "", "code received by email")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	var res *auth.CheckVerificationResponse
	handler := auth.NewCheckVerificationHandler(a.auth, auth.RequestTimeoutFrom(a.cfg))
	err := handler.Execute(ctx, auth.CheckVerificationMessage{
		Email:      *email,
		Code:       *code,
		OnResponse: func(r *auth.CheckVerificationResponse) { res = r },
	})
	return res, err
}

func register(ctx context.Context, a *app, fs *flag.FlagSet, args []string) (any, error) {
	email := fs.String("email", "", "verified email")
	password := fs.String("password", "", "password")
	nickname := fs.String("nickname", "", "nickname")
	phone := fs.String("phone", "", "phone number")
	birthDate := fs.String("birth-date", "", "birth date, YYYY-MM-DD")
	interests := fs.String("interests", "", "comma separated areas of interest")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	var res *auth.RegisterResult
	handler := auth.NewRegisterMemberHandler(a.auth, auth.RequestTimeoutFrom(a.cfg))
	err := handler.Execute(ctx, auth.RegisterMemberMessage{
		Email:    *email,
		Password: *password,
		Profile: auth.ProfileFields{
			Nickname:      *nickname,
			Phone:         *phone,
			BirthDate:     *birthDate,
			AreaInterests: splitList(*interests),
		},
		OnResponse: func(r *auth.RegisterResult) { res = r },
	})
	return res, err
}

func login(ctx context.Context, a *app, fs *flag.FlagSet, args []string) (any, error) {
	email := fs.String("email", "", "email")
	password := fs.String("password", "", "password")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	ctx, cancel := a.timeout(ctx)
	defer cancel()

	return a.auth.Login(ctx, *email, *password)
}

func oauthLogin(ctx context.Context, a *app, fs *flag.FlagSet, args []string) (any, error) {
	provider := fs.String("provider", "", "provider name")
	providerUserID := fs.String("provider-user-id", "", "id of the member at the provider")
	email := fs.String("email", "", "email reported by the provider")
	nickname := fs.String("nickname", "", "nickname reported by the provider")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	ctx, cancel := a.timeout(ctx)
	defer cancel()

	return a.auth.OAuthLogin(ctx, auth.OAuthLoginRequest{
		Provider:       *provider,
		ProviderUserID: *providerUserID,
		Email:          *email,
		Nickname:       *nickname,
	})
}

func refresh(ctx context.Context, a *app, fs *flag.FlagSet, args []string) (any, error) {
	token := fs.String("token", "", "refresh token presented by the client")
	member := fs.String("member", "", "member id, rotates the stored token")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	ctx, cancel := a.timeout(ctx)
	defer cancel()

	if *token != "" {
		return a.auth.RefreshWithToken(ctx, *token)
	}

	id, err := parseMemberID(*member)
	if err != nil {
		return nil, err
	}
	return a.auth.RefreshAccessToken(ctx, id)
}

func profile(ctx context.Context, a *app, fs *flag.FlagSet, args []string) (any, error) {
	member := fs.String("member", "", "member id")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	id, err := parseMemberID(*member)
	if err != nil {
		return nil, err
	}

	ctx, cancel := a.timeout(ctx)
	defer cancel()

	return a.auth.Profile(ctx, id)
}

func listMembers(ctx context.Context, a *app, fs *flag.FlagSet, args []string) (any, error) {
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	ctx, cancel := a.timeout(ctx)
	defer cancel()

	return a.auth.ListMembers(ctx)
}

func updateNickname(ctx context.Context, a *app, fs *flag.FlagSet, args []string) (any, error) {
	member := fs.String("member", "", "member id")
	nickname := fs.String("nickname", "", "new nickname")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	id, err := parseMemberID(*member)
	if err != nil {
		return nil, err
	}

	ctx, cancel := a.timeout(ctx)
	defer cancel()

	if err := a.auth.UpdateNickname(ctx, id, *nickname); err != nil {
		return nil, err
	}
	return a.auth.Profile(ctx, id)
}

func changePassword(ctx context.Context, a *app, fs *flag.FlagSet, args []string) (any, error) {
	member := fs.String("member", "", "member id")
	current := fs.String("current", "", "current password")
	next := fs.String("new", "", "new password")
	confirm := fs.String("confirm", "", "new password again")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	id, err := parseMemberID(*member)
	if err != nil {
		return nil, err
	}

	ctx, cancel := a.timeout(ctx)
	defer cancel()

	err = a.auth.ChangePassword(ctx, id, auth.ChangePasswordRequest{
		CurrentPassword: *current,
		NewPassword:     *next,
		ConfirmPassword: *confirm,
	})
	if err != nil {
		return nil, err
	}
	return map[string]any{"member_id": id, "changed": true}, nil
}

func resetPasswordRequest(ctx context.Context, a *app, fs *flag.FlagSet, args []string) (any, error) {
	email := fs.String("email", "", "email of the member")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	var receipt *auth.VerificationReceipt
	handler := auth.NewInitializePasswordResetHandler(a.auth, auth.RequestTimeoutFrom(a.cfg))
	err := handler.Execute(ctx, auth.InitializePasswordResetMessage{
		Email:      *email,
		OnResponse: func(r *auth.VerificationReceipt) { receipt = r },
	})
	return receipt, err
}

func resetPassword(ctx context.Context, a *app, fs *flag.FlagSet, args []string) (any, error) {
	email := fs.String("email", "", "email of the member")
	code := fs.String("code", "", "code received by email")
	password := fs.String("password", "", "new password")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	var res *auth.FinalizePasswordResetResponse
	handler := auth.NewFinalizePasswordResetHandler(a.auth, auth.RequestTimeoutFrom(a.cfg))
	err := handler.Execute(ctx, auth.FinalizePasswordResetMessage{
		Email:      *email,
		Code:       *code,
		Password:   *password,
		OnResponse: func(r *auth.FinalizePasswordResetResponse) { res = r },
	})
	return res, err
}

func withdraw(ctx context.Context, a *app, fs *flag.FlagSet, args []string) (any, error) {
	member := fs.String("member", "", "member id")
	password := fs.String("password", "", "current password, or provider user id for oauth members")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	id, err := parseMemberID(*member)
	if err != nil {
		return nil, err
	}

	ctx, cancel := a.timeout(ctx)
	defer cancel()

	if err := a.auth.Withdraw(ctx, id, *password); err != nil {
		return nil, err
	}
	return map[string]any{"member_id": id, "withdrawn": true}, nil
}

func isMember(ctx context.Context, a *app, fs *flag.FlagSet, args []string) (any, error) {
	email := fs.String("email", "", "email")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	ctx, cancel := a.timeout(ctx)
	defer cancel()

	ok, err := a.auth.IsMember(ctx, *email)
	if err != nil {
		return nil, err
	}
	return map[string]any{"email": strings.ToLower(strings.TrimSpace(*email)), "member": ok}, nil
}

func parseMemberID(s string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(s))
	if err != nil {
		return uuid.Nil, goerrors.Wrap(err, goerrors.CategoryBadInput, "invalid member id")
	}
	return id, nil
}

func splitList(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// logCodeSender is used when SMTP is disabled. The code itself is only
// written at debug level.
type logCodeSender struct {
	logger auth.Logger
}

func (s logCodeSender) SendVerificationCode(_ context.Context, email, code string, expiresAt time.Time) error {
	s.logger.Info("verification code issued", "email", email, "expires_at", expiresAt)
	s.logger.Debug("verification code", "email", email, "code", code)
	return nil
}
