// Command calgraph serves the calendar GraphQL API.
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/randalmurphal/calgraph/pkg/calgraph/app"
	"github.com/randalmurphal/calgraph/pkg/calgraph/auth"
	"github.com/randalmurphal/calgraph/pkg/calgraph/config"
	"github.com/randalmurphal/calgraph/pkg/calgraph/observability"
	"github.com/randalmurphal/calgraph/pkg/calgraph/store"
)

func main() {
	cliApp := &cli.App{
		Name:  "calgraph",
		Usage: "Calendar events over GraphQL with live notifications.",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: "YAML or JSON settings file"},
			&cli.StringSliceFlag{Name: "env-file", Usage: ".env files to load (default .env)"},
		},
		Commands: []*cli.Command{
			serveCommand(),
			migrateCommand(),
			tokenCommand(),
		},
	}

	if err := cliApp.Run(os.Args); err != nil {
		slog.Error("calgraph failed", "error", err)
		os.Exit(1)
	}
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the HTTP server.",
		Action: func(c *cli.Context) error {
			settings, err := config.Load(c.String("config"), c.StringSlice("env-file")...)
			if err != nil {
				return err
			}
			logger := setupLogger(os.Stderr, settings.LogLevel, settings.LogFormat)

			ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := app.New(ctx, settings, logger)
			if err != nil {
				return fmt.Errorf("build app: %w", err)
			}
			return a.Run(ctx)
		},
	}
}

func migrateCommand() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Create the event tables if they do not exist.",
		Action: func(c *cli.Context) error {
			settings, err := config.Read(c.String("config"), c.StringSlice("env-file")...)
			if err != nil {
				return err
			}
			logger := setupLogger(os.Stderr, settings.LogLevel, settings.LogFormat)

			s, err := store.OpenURL(settings.DatabaseURL)
			if err != nil {
				return err
			}
			defer s.Close()

			if err := s.Migrate(c.Context); err != nil {
				return err
			}
			logger.Info("migrations applied", "driver", s.Driver())
			return nil
		},
	}
}

func tokenCommand() *cli.Command {
	return &cli.Command{
		Name:  "token",
		Usage: "Issue a signed bearer token for JWT_SECRET.",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "subject", Value: "calgraph-cli", Usage: "token subject"},
			&cli.StringFlag{Name: "role", Value: string(auth.RoleAdmin), Usage: "admin or user"},
			&cli.DurationFlag{Name: "ttl", Value: 24 * time.Hour, Usage: "token lifetime"},
		},
		Action: func(c *cli.Context) error {
			settings, err := config.Read(c.String("config"), c.StringSlice("env-file")...)
			if err != nil {
				return err
			}
			if settings.JWTSecret == "" {
				return fmt.Errorf("JWT_SECRET is not set")
			}

			role := auth.Role(c.String("role"))
			if role != auth.RoleAdmin && role != auth.RoleUser {
				return fmt.Errorf("unknown role %q", role)
			}
			token, err := auth.IssueToken([]byte(settings.JWTSecret), c.String("subject"), role, c.Duration("ttl"))
			if err != nil {
				return err
			}
			fmt.Fprintln(c.App.Writer, token)
			return nil
		},
	}
}

func setupLogger(w io.Writer, level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: observability.ParseLevel(level)}
	if format == config.LogJSON {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
