package main

import (
	"io"
	"strings"

	auth "github.com/goliatone/go-member-auth"
	"github.com/rs/zerolog"
)

// newLogger writes JSON lines to w at the named level, info when unknown
func newLogger(w io.Writer, level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(w).Level(lvl).With().Timestamp().Str("app", "memberctl").Logger()
}

// zlog adapts zerolog to auth.Logger, args are key/value pairs
type zlog struct {
	l zerolog.Logger
}

var _ auth.Logger = zlog{}

func (z zlog) Debug(msg string, args ...any) { z.l.Debug().Fields(args).Msg(msg) }

func (z zlog) Info(msg string, args ...any) { z.l.Info().Fields(args).Msg(msg) }

func (z zlog) Warn(msg string, args ...any) { z.l.Warn().Fields(args).Msg(msg) }

func (z zlog) Error(msg string, args ...any) { z.l.Error().Fields(args).Msg(msg) }
