package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/urfave/cli/v3"
	"golang.org/x/term"

	"github.com/florianilch/gemini-proxy/internal/app"
	"github.com/florianilch/gemini-proxy/internal/keystore"
)

// authCommand returns the 'auth' subcommand for managing the upstream API key.
func authCommand() *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Manage the Gemini API key",
		Commands: []*cli.Command{
			authSetCommand(),
			authClearCommand(),
			authStatusCommand(),
		},
	}
}

func authSetCommand() *cli.Command {
	return &cli.Command{
		Name:   "set",
		Usage:  "Save a Gemini API key to the configured storage",
		Action: authSetAction,
	}
}

func authClearCommand() *cli.Command {
	return &cli.Command{
		Name:   "clear",
		Usage:  "Remove the Gemini API key from the configured storage",
		Action: authClearAction,
	}
}

func authStatusCommand() *cli.Command {
	return &cli.Command{
		Name:   "status",
		Usage:  "Report whether a Gemini API key is configured",
		Action: authStatusAction,
	}
}

// writableStore loads the config and returns its key store, refusing read-only env storage.
func writableStore(cmd *cli.Command) (keystore.Store, error) {
	environ, err := dotenvEnviron(cmd.String("env-file"), os.Environ)
	if err != nil {
		return nil, fmt.Errorf("failed to read env file: %w", err)
	}

	cfg, err := loadConfig(cmd.String("config"), cmd, environ)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if cfg.Auth.Storage == app.KeyStorageTypeEnv {
		return nil, fmt.Errorf("cannot modify env storage (read-only). Configure file or keyring storage")
	}

	store, err := cfg.Auth.NewKeyStore(environ)
	if err != nil {
		return nil, fmt.Errorf("failed to create key store: %w", err)
	}
	return store, nil
}

func authSetAction(ctx context.Context, cmd *cli.Command) error {
	store, err := writableStore(cmd)
	if err != nil {
		return err
	}

	key, err := readSecureInput(ctx, "Enter Gemini API key: ")
	if err != nil {
		return err
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return errors.New("api key cannot be empty")
	}

	if err := store.Write(ctx, key); err != nil {
		return fmt.Errorf("failed to write api key: %w", err)
	}

	fmt.Println("API key saved to configured storage")
	return nil
}

func authClearAction(ctx context.Context, cmd *cli.Command) error {
	store, err := writableStore(cmd)
	if err != nil {
		return err
	}

	// Empty write clears the key on every backend
	if err := store.Write(ctx, ""); err != nil {
		return fmt.Errorf("failed to clear api key: %w", err)
	}

	fmt.Println("API key cleared from configured storage")
	return nil
}

func authStatusAction(ctx context.Context, cmd *cli.Command) error {
	environ, err := dotenvEnviron(cmd.String("env-file"), os.Environ)
	if err != nil {
		return fmt.Errorf("failed to read env file: %w", err)
	}

	cfg, err := loadConfig(cmd.String("config"), cmd, environ)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	store, err := cfg.Auth.NewKeyStore(environ)
	if err != nil {
		return fmt.Errorf("failed to create key store: %w", err)
	}

	_, err = store.Read(ctx)
	switch {
	case errors.Is(err, keystore.ErrNotFound):
		fmt.Printf("API key not configured (storage: %s)\n", cfg.Auth.Storage)
		return cli.Exit("", 1)
	case err != nil:
		return fmt.Errorf("failed to read api key: %w", err)
	}

	fmt.Printf("API key configured (storage: %s)\n", cfg.Auth.Storage)
	return nil
}

// readSecureInput reads user input with hidden display and context cancellation support.
// term.ReadPassword has no context support, hence the goroutine.
func readSecureInput(ctx context.Context, prompt string) (string, error) {
	fmt.Print(prompt)
	defer fmt.Println()

	type result struct {
		value string
		err   error
	}
	resultCh := make(chan result, 1)

	go func() {
		inputBytes, err := term.ReadPassword(int(os.Stdin.Fd()))
		resultCh <- result{value: string(inputBytes), err: err}
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-resultCh:
		if res.err != nil {
			return "", fmt.Errorf("failed to read input: %w", res.err)
		}
		return res.value, nil
	}
}
