package mailer

import (
	"context"
	"fmt"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	goerrors "github.com/goliatone/go-errors"
	auth "github.com/goliatone/go-member-auth"
	"gopkg.in/gomail.v2"
)

// Config holds SMTP configuration for sending verification codes.
type Config struct {
	Host     string `env:"HOST"`
	Port     int    `env:"PORT" envDefault:"587"`
	Username string `env:"USERNAME"`
	Password string `env:"PASSWORD"`
	From     string `env:"FROM"`
	Subject  string `env:"SUBJECT" envDefault:"Your verification code"`
}

// Validate checks the settings needed to dial out
func (c Config) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Host, validation.Required),
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
		validation.Field(&c.From, validation.Required, is.Email),
	)
}

// Sender delivers composed messages. *gomail.Dialer implements it.
type Sender interface {
	DialAndSend(m ...*gomail.Message) error
}

// CodeMailer is an auth.CodeSender that emails the code
type CodeMailer struct {
	config Config
	sender Sender
}

var _ auth.CodeSender = (*CodeMailer)(nil)

// Option customizes the CodeMailer
type Option func(*CodeMailer)

// WithSender replaces the SMTP dialer
func WithSender(s Sender) Option {
	return func(m *CodeMailer) {
		if s != nil {
			m.sender = s
		}
	}
}

// New validates cfg and returns a CodeMailer dialing cfg.Host
func New(cfg Config, opts ...Option) (*CodeMailer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryValidation, "invalid mailer configuration")
	}

	if cfg.Subject == "" {
		cfg.Subject = "Your verification code"
	}

	m := &CodeMailer{
		config: cfg,
		sender: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
	}

	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}

	return m, nil
}

// Message composes the verification email
func (m *CodeMailer) Message(email, code string, expiresAt time.Time) *gomail.Message {
	msg := gomail.NewMessage()
	msg.SetHeader("From", m.config.From)
	msg.SetHeader("To", email)
	msg.SetHeader("Subject", m.config.Subject)
	msg.SetBody("text/plain", fmt.Sprintf(
		"Your verification code is %s.\n\nIt expires at %s.\n",
		code,
		expiresAt.UTC().Format("2006-01-02 15:04:05 MST"),
	))
	return msg
}

// SendVerificationCode implements auth.CodeSender. gomail does not take a
// context, so cancellation is only honored before dialing.
func (m *CodeMailer) SendVerificationCode(ctx context.Context, email, code string, expiresAt time.Time) error {
	if err := ctx.Err(); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryOperation, "verification email cancelled")
	}

	if err := m.sender.DialAndSend(m.Message(email, code, expiresAt)); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryOperation, "failed to send verification email")
	}

	return nil
}
