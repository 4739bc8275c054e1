package commands

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/toml/v2"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/urfave/cli/v3"

	"github.com/florianilch/gemini-proxy/internal/app"
)

// envPrefix scopes environment overrides, e.g. GEMINI_PROXY_SERVER__ADDR -> server.addr.
// A double underscore separates nesting levels so single underscores can stay in key names.
const envPrefix = "GEMINI_PROXY_"

// flagOverrides maps CLI flags to the config keys they override.
var flagOverrides = map[string]string{
	"addr":  "server.addr",
	"model": "upstream.model",
}

// loadConfig merges defaults, the optional TOML file, environment variables and CLI flags,
// in increasing order of precedence, and validates the result.
func loadConfig(path string, cmd *cli.Command, environ func() []string) (*app.Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(app.Defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("loading defaults: %w", err)
	}

	if path != "" {
		if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", path, err)
		}
	}

	envProvider := env.Provider(".", env.Opt{
		Prefix: envPrefix,
		TransformFunc: func(key, value string) (string, any) {
			key = strings.TrimPrefix(key, envPrefix)
			key = strings.ReplaceAll(strings.ToLower(key), "__", ".")
			return key, value
		},
		EnvironFunc: environ,
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("loading environment: %w", err)
	}

	if cmd != nil {
		overrides := map[string]any{}
		for flag, key := range flagOverrides {
			if cmd.IsSet(flag) {
				overrides[key] = cmd.String(flag)
			}
		}
		if err := k.Load(confmap.Provider(overrides, "."), nil); err != nil {
			return nil, fmt.Errorf("loading flag overrides: %w", err)
		}
	}

	var cfg app.Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// dotenvEnviron returns an environ function that layers the dotenv file at path under
// the process environment. A missing file yields environ unchanged.
func dotenvEnviron(path string, environ func() []string) (func() []string, error) {
	if path == "" {
		return environ, nil
	}

	values, err := godotenv.Read(path)
	if errors.Is(err, fs.ErrNotExist) {
		return environ, nil
	}
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	return func() []string {
		merged := make([]string, 0, len(values))
		for key, value := range values {
			merged = append(merged, key+"="+value)
		}
		// Later entries win, so the process environment overrides the file
		return append(merged, environ()...)
	}, nil
}
