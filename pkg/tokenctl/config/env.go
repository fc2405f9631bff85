package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Env holds the TOKENCTL_* overrides of the settings file.
type Env struct {
	Issuer          string `env:"TOKENCTL_ISSUER"`
	ProfilesDir     string `env:"TOKENCTL_PROFILES_DIR"`
	CallbackTimeout string `env:"TOKENCTL_CALLBACK_TIMEOUT"`
	Verbose         bool   `env:"TOKENCTL_VERBOSE"`
}

// LoginEnv supplies client settings for `tokenctl login` when the matching
// flags are not given.
type LoginEnv struct {
	ClientID     string   `env:"CLIENT_ID"`
	ClientSecret string   `env:"CLIENT_SECRET"`
	Scopes       []string `env:"SCOPES" envSeparator:","`
	RedirectURL  string   `env:"REDIRECT"`
}

func LoadEnv() (*Env, error) {
	var e Env
	if err := env.Parse(&e); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}
	return &e, nil
}

func LoadLoginEnv() (*LoginEnv, error) {
	var e LoginEnv
	if err := env.Parse(&e); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}
	return &e, nil
}

// Apply overrides the settings with every variable that is set.
func (e *Env) Apply(s *Settings) error {
	if e.Issuer != "" {
		s.Issuer = e.Issuer
	}
	if e.ProfilesDir != "" {
		s.ProfilesDir = e.ProfilesDir
	}
	if e.CallbackTimeout != "" {
		d, err := time.ParseDuration(e.CallbackTimeout)
		if err != nil {
			return fmt.Errorf("invalid TOKENCTL_CALLBACK_TIMEOUT: %w", err)
		}
		s.CallbackTimeout = &d
	}
	return nil
}
