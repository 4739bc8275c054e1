package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/florianilch/gemini-proxy/internal/app"
	"github.com/florianilch/gemini-proxy/internal/observability"
)

// Execute runs the root command with the given context and arguments.
func Execute(ctx context.Context, args []string, version, commit string) error {
	return rootCommand(version, commit).Run(ctx, args)
}

func rootCommand(version, commit string) *cli.Command {
	return &cli.Command{
		Name:    "gemini-proxy",
		Usage:   "Keeps your Gemini API key on the server",
		Version: fmt.Sprintf("%s (%s)", version, commit),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Usage:   "path to a TOML config file",
				Sources: cli.EnvVars(envPrefix + "CONFIG"),
			},
			&cli.StringFlag{
				Name:  "env-file",
				Usage: "dotenv file layered under the process environment (ignored if missing)",
				Value: ".env",
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "log level (debug|info|warn|error)",
				Value:   slog.LevelInfo.String(),
				Sources: cli.EnvVars(envPrefix + "LOG_LEVEL"),
			},
		},
		Commands: []*cli.Command{
			proxyStartCommand(),
			authCommand(),
		},
	}
}

func proxyStartCommand() *cli.Command {
	return &cli.Command{
		Name:  "start",
		Usage: "Starts the proxy",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-format",
				Usage:   "log format (text|json)",
				Value:   "text",
				Sources: cli.EnvVars(envPrefix + "LOG_FORMAT"),
			},
			&cli.StringFlag{
				Name:  "addr",
				Usage: "listen address, overrides server.addr",
			},
			&cli.StringFlag{
				Name:  "model",
				Usage: "Gemini model, overrides upstream.model",
			},
		},
		Action: proxyStartAction,
	}
}

func proxyStartAction(ctx context.Context, cmd *cli.Command) error {
	var level slog.Level
	err := level.UnmarshalText([]byte(cmd.String("log-level")))
	if err != nil {
		return err
	}

	environ, err := dotenvEnviron(cmd.String("env-file"), os.Environ)
	if err != nil {
		return fmt.Errorf("failed to read env file: %w", err)
	}

	cfg, err := loadConfig(cmd.String("config"), cmd, environ)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Set up observability before creating app
	shutdownObservability, err := observability.Instrument(ctx, observability.Options{
		Level:    level,
		Format:   cmd.String("log-format"),
		Exporter: cfg.Observability.Exporter,
		Endpoint: cfg.Observability.Endpoint,
		Insecure: cfg.Observability.Insecure,
	})
	if err != nil {
		return fmt.Errorf("failed to set up observability layer: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := shutdownObservability(shutdownCtx); err != nil {
			slog.ErrorContext(shutdownCtx, "failed to flush logs", "error", err)
		}
	}()

	application, err := app.New(ctx, cfg, environ)
	if err != nil {
		return fmt.Errorf("failed to create app: %w", err)
	}

	slog.InfoContext(ctx, "starting",
		"upstream", cfg.Upstream.BaseURL,
		"model", cfg.Upstream.Model,
		"key_storage", string(cfg.Auth.Storage),
	)

	if err := application.Start(ctx); err != nil {
		return fmt.Errorf("app failed to start: %w", err)
	}

	slog.InfoContext(ctx, "stopped gracefully")
	return nil
}
