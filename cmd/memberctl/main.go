// Command memberctl runs member auth flows against a local database, for
// operators and smoke tests. Settings come from MEMBER_AUTH_* variables.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	goerrors "github.com/goliatone/go-errors"
	"github.com/rs/zerolog"
)

func main() {
	cfg, err := LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	logger := newLogger(os.Stderr, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := Run(ctx, cfg, os.Args[1:], os.Stdout, logger); err != nil {
		event := logger.Error().Err(err)
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) && richErr.TextCode != "" {
			event = event.Str("text_code", richErr.TextCode)
		}
		event.Msg("command failed")
		stop()
		os.Exit(1)
	}
}

// Run executes a single sub command
func Run(ctx context.Context, cfg Config, args []string, out io.Writer, logger zerolog.Logger) error {
	if out == nil {
		out = io.Discard
	}

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	return a.run(ctx, args, out)
}
