package commands

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v3"
	"golang.org/x/term"

	"github.com/florianilch/cardboard/internal/app"
	"github.com/florianilch/cardboard/internal/observability"
)

// Execute runs the root command with the given context and arguments.
func Execute(ctx context.Context, args []string) error {
	cmd := &cli.Command{
		Name:  "cardboard",
		Usage: "Cardboard OAuth session manager",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to config file",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "log level (debug|info|warn|error)",
				Value: slog.LevelInfo.String(),
			},
			&cli.StringFlag{
				Name:  "log-format",
				Usage: "log format (text|json)",
				Value: string(app.DefaultConfigLogFormat),
			},
			&cli.StringFlag{
				Name:  "telemetry--exporter",
				Usage: "OpenTelemetry log exporter (none|stdout|otlp-http|otlp-grpc)",
				Value: string(app.DefaultConfigTelemetryExporter),
			},
			&cli.StringFlag{
				Name:  "client--id",
				Usage: "OAuth client ID",
			},
			&cli.StringFlag{
				Name:  "client--secret",
				Usage: "OAuth client secret",
			},
			&cli.StringFlag{
				Name:  "api--base-url",
				Usage: "Cardboard API base URL",
				Value: app.DefaultConfigAPIBaseURL,
			},
			&cli.DurationFlag{
				Name:  "api--timeout",
				Usage: "token endpoint request timeout",
				Value: app.DefaultConfigAPITimeout,
			},
			&cli.StringFlag{
				Name:  "storage--type",
				Usage: "session storage (file|env|keyring)",
				Value: string(app.DefaultConfigStorageType),
			},
			&cli.StringFlag{
				Name:  "storage--file",
				Usage: "session file path for file storage",
			},
			&cli.StringFlag{
				Name:  "storage--env-key",
				Usage: "environment variable holding the session for env storage",
			},
		},
		Commands: []*cli.Command{
			loginCommand(),
			exchangeCommand(),
			refreshCommand(),
			revokeCommand(),
			tokenCommand(),
			statusCommand(),
		},
	}

	return cmd.Run(ctx, args)
}

func loginCommand() *cli.Command {
	return &cli.Command{
		Name:  "login",
		Usage: "authorize in the browser and store the issued tokens",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "login--url",
				Usage: "authorization page of the Cardboard application",
			},
			&cli.StringFlag{
				Name:  "login--redirect-url",
				Usage: "redirect URL registered for the application",
			},
			&cli.DurationFlag{
				Name:  "login--timeout",
				Usage: "how long to wait for the authorization redirect",
				Value: app.DefaultConfigLoginTimeout,
			},
			&cli.StringFlag{
				Name:  "login--callback--host",
				Usage: "callback listener host",
				Value: app.DefaultConfigCallbackHost,
			},
			&cli.IntFlag{
				Name:  "login--callback--port",
				Usage: "callback listener port",
				Value: app.DefaultConfigCallbackPort,
			},
		},
		Action: withApp(func(ctx context.Context, cmd *cli.Command, a *app.App) error {
			session, err := a.Login(ctx)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.Root().Writer, "Logged in, access token expires %s.\n", expiry(session.ExpiresAt))
			return nil
		}),
	}
}

func exchangeCommand() *cli.Command {
	return &cli.Command{
		Name:  "exchange",
		Usage: "exchange an authorization code for tokens",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "code",
				Usage: "authorization code; prompted for when omitted",
			},
		},
		Action: withApp(func(ctx context.Context, cmd *cli.Command, a *app.App) error {
			code := cmd.String("code")
			if code == "" {
				var err error
				if code, err = promptCode(os.Stdin, cmd.Root().ErrWriter); err != nil {
					return err
				}
			}

			session, err := a.Exchange(ctx, code)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.Root().Writer, "Session started, access token expires %s.\n", expiry(session.ExpiresAt))
			return nil
		}),
	}
}

func refreshCommand() *cli.Command {
	return &cli.Command{
		Name:  "refresh",
		Usage: "replace the stored tokens with a freshly issued pair",
		Action: withApp(func(ctx context.Context, cmd *cli.Command, a *app.App) error {
			session, err := a.Refresh(ctx)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.Root().Writer, "Session refreshed, access token expires %s.\n", expiry(session.ExpiresAt))
			return nil
		}),
	}
}

func revokeCommand() *cli.Command {
	return &cli.Command{
		Name:  "revoke",
		Usage: "revoke the stored tokens",
		Action: withApp(func(ctx context.Context, cmd *cli.Command, a *app.App) error {
			result, err := a.Revoke(ctx)
			if err != nil {
				return err
			}
			w := cmd.Root().Writer
			_, _ = fmt.Fprintf(w, "Refresh token: %s\n", revokeOutcome(result.RefreshTokenRevoked))
			_, _ = fmt.Fprintf(w, "Access token:  %s\n", revokeOutcome(result.AccessTokenRevoked))
			return nil
		}),
	}
}

func tokenCommand() *cli.Command {
	return &cli.Command{
		Name:  "token",
		Usage: "print a valid access token, refreshing it if needed",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "json",
				Usage: "print the token as JSON",
			},
			&cli.DurationFlag{
				Name:  "session--refresh-leeway",
				Usage: "refresh tokens expiring within this window",
				Value: app.DefaultConfigRefreshLeeway,
			},
		},
		Action: withApp(func(ctx context.Context, cmd *cli.Command, a *app.App) error {
			tok, err := a.Token(ctx)
			if err != nil {
				return err
			}

			w := cmd.Root().Writer
			if cmd.Bool("json") {
				enc := json.NewEncoder(w)
				enc.SetIndent("", "  ")
				return enc.Encode(tok)
			}

			_, _ = fmt.Fprintln(w, tok.AccessToken)
			return nil
		}),
	}
}

func statusCommand() *cli.Command {
	return &cli.Command{
		Name:  "status",
		Usage: "show the stored session without contacting Cardboard",
		Action: withApp(func(ctx context.Context, cmd *cli.Command, a *app.App) error {
			w := cmd.Root().Writer
			session, err := a.Status(ctx)
			if errors.Is(err, app.ErrNoSession) {
				_, _ = fmt.Fprintln(w, "Not logged in.")
				return nil
			}
			if err != nil {
				return err
			}
			printStatus(w, session, time.Now())
			return nil
		}),
	}
}

// withApp loads configuration, sets up logging and builds the App before
// handing over to action.
func withApp(action func(context.Context, *cli.Command, *app.App) error) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		cfg, err := loadConfig(cmd.String("config"), cmd, os.Environ)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		// Set up observability before creating app
		shutdown, err := observability.Instrument(ctx, cfg.LogLevel, string(cfg.LogFormat), string(cfg.Telemetry.Exporter))
		if err != nil {
			return fmt.Errorf("failed to set up observability layer: %w", err)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Shutdown.Timeout)
			defer cancel()
			if err := shutdown(shutdownCtx); err != nil {
				slog.ErrorContext(shutdownCtx, "telemetry shutdown failed", "error", err)
			}
		}()

		application, err := app.New(cfg, app.WithOutput(cmd.Root().ErrWriter))
		if err != nil {
			return fmt.Errorf("failed to create app: %w", err)
		}

		return action(ctx, cmd, application)
	}
}

// promptCode reads an authorization code from in. Terminal input is not
// echoed.
func promptCode(in *os.File, prompt io.Writer) (string, error) {
	_, _ = fmt.Fprint(prompt, "Authorization code: ")

	fd := int(in.Fd())
	if term.IsTerminal(fd) {
		raw, err := term.ReadPassword(fd)
		_, _ = fmt.Fprintln(prompt)
		if err != nil {
			return "", fmt.Errorf("reading authorization code: %w", err)
		}
		return strings.TrimSpace(string(raw)), nil
	}

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("reading authorization code: %w", err)
	}
	return strings.TrimSpace(line), nil
}

func printStatus(w io.Writer, session app.Session, now time.Time) {
	_, _ = fmt.Fprintf(w, "State:   %s\n", session.State)
	_, _ = fmt.Fprintf(w, "Updated: %s\n", humanize.RelTime(session.UpdatedAt, now, "ago", "from now"))
	if session.State != app.SessionStateActive {
		return
	}
	if session.ExpiresAt.IsZero() {
		_, _ = fmt.Fprintln(w, "Expires: never")
		return
	}
	_, _ = fmt.Fprintf(w, "Expires: %s (%s)\n",
		humanize.RelTime(session.ExpiresAt, now, "ago", "from now"),
		session.ExpiresAt.Local().Format(time.RFC3339),
	)
}

func expiry(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return humanize.Time(t)
}

func revokeOutcome(revoked bool) string {
	if revoked {
		return "revoked"
	}
	return "already invalid"
}
