// Package config resolves runtime settings from built-in defaults, the
// journal's configuration table and the environment, in that order.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// Configuration keys accepted by `ask config set`.
const (
	KeyModel         = "model"
	KeyBaseURL       = "base_url"
	KeyMaxIterations = "max_iterations"
	KeyShell         = "shell"
	KeySessionDir    = "session_dir"
	// KeyAPIKey is stored sealed and never surfaces in Settings.
	KeyAPIKey = "api_key"
)

// Environment overrides.
const (
	EnvBaseURL = "OPENAI_BASE_URL"
	EnvModel   = "ASK_MODEL"
	EnvHome    = "ASK_HOME"
)

// DefaultModel is used when nothing else is configured.
const DefaultModel = "o1-mini"

var (
	ErrUnknownKey   = errors.New("unknown configuration key")
	ErrInvalidValue = errors.New("invalid configuration value")
)

// Settings is the resolved configuration.
type Settings struct {
	Model         string `yaml:"model"`
	BaseURL       string `yaml:"base_url,omitempty"`
	MaxIterations int    `yaml:"max_iterations"`
	Shell         string `yaml:"shell"`
	SessionDir    string `yaml:"session_dir,omitempty"`
}

// Defaults returns the built-in settings.
func Defaults() Settings {
	return Settings{
		Model: DefaultModel,
		Shell: "sh",
	}
}

// Getter reads persisted configuration values. Unset keys return "".
type Getter interface {
	GetConfig(key string) (string, error)
}

var validators = map[string]func(string) error{
	KeyModel:   nonEmpty,
	KeyBaseURL: url,
	KeyMaxIterations: func(v string) error {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return fmt.Errorf("%w: max_iterations must be a non-negative integer", ErrInvalidValue)
		}
		return nil
	},
	KeyShell:      nonEmpty,
	KeySessionDir: nonEmpty,
	KeyAPIKey:     nonEmpty,
}

func nonEmpty(v string) error {
	if strings.TrimSpace(v) == "" {
		return fmt.Errorf("%w: empty", ErrInvalidValue)
	}
	return nil
}

func url(v string) error {
	if !strings.HasPrefix(v, "http://") && !strings.HasPrefix(v, "https://") {
		return fmt.Errorf("%w: base_url must start with http:// or https://", ErrInvalidValue)
	}
	return nil
}

// Keys returns the accepted configuration keys, sorted.
func Keys() []string {
	keys := make([]string, 0, len(validators))
	for k := range validators {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Known reports whether key is an accepted configuration key.
func Known(key string) bool {
	_, ok := validators[key]
	return ok
}

func unknown(key string) error {
	return fmt.Errorf("%w: %q (known: %s)", ErrUnknownKey, key, strings.Join(Keys(), ", "))
}

// Validate checks value for key before it is persisted.
func Validate(key, value string) error {
	v, ok := validators[key]
	if !ok {
		return unknown(key)
	}
	return v(value)
}

// Load resolves settings. getenv is usually os.Getenv. A nil g skips the
// persisted layer.
func Load(g Getter, getenv func(string) string) (Settings, error) {
	s := Defaults()

	if g != nil {
		for key, dst := range map[string]*string{
			KeyModel:      &s.Model,
			KeyBaseURL:    &s.BaseURL,
			KeyShell:      &s.Shell,
			KeySessionDir: &s.SessionDir,
		} {
			v, err := g.GetConfig(key)
			if err != nil {
				return s, fmt.Errorf("failed to read %s: %w", key, err)
			}
			if v != "" {
				*dst = v
			}
		}
		v, err := g.GetConfig(KeyMaxIterations)
		if err != nil {
			return s, fmt.Errorf("failed to read %s: %w", KeyMaxIterations, err)
		}
		if v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return s, fmt.Errorf("%w: %s=%q", ErrInvalidValue, KeyMaxIterations, v)
			}
			s.MaxIterations = n
		}
	}

	if getenv != nil {
		if v := getenv(EnvBaseURL); v != "" {
			s.BaseURL = v
		}
		if v := getenv(EnvModel); v != "" {
			s.Model = v
		}
	}
	return s, nil
}

// CheckKey returns ErrUnknownKey for keys `ask config` does not accept.
func CheckKey(key string) error {
	if !Known(key) {
		return unknown(key)
	}
	return nil
}

// Home returns the directory holding the journal: $ASK_HOME, or ~/.ask.
func Home() (string, error) {
	if h := os.Getenv(EnvHome); h != "" {
		return h, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot locate home directory: %w", err)
	}
	return filepath.Join(home, ".ask"), nil
}
