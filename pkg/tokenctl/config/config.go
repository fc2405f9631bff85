package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

const (
	VersionV1 = "v1"

	// DefaultIssuer is the OpenID issuer used when none is configured.
	DefaultIssuer          = "https://accounts.google.com"
	DefaultCallbackTimeout = 5 * time.Minute
)

// Settings is the tokenctl settings file. Profiles themselves live in the
// profile store, not here.
type Settings struct {
	Version     string `yaml:"version"`
	Issuer      string `yaml:"issuer,omitempty"`
	ProfilesDir string `yaml:"profiles-dir,omitempty"`
	// CallbackTimeout bounds the wait for the browser redirect. Unset means
	// DefaultCallbackTimeout, an explicit 0 disables the timeout.
	CallbackTimeout         *time.Duration `yaml:"callback-timeout,omitempty"`
	RequireIDTokenOnRefresh bool           `yaml:"require-id-token-on-refresh,omitempty"`
	CAFile                  string         `yaml:"ca-file,omitempty"`
	InsecureSkipTLSVerify   bool           `yaml:"insecure-skip-tls-verify,omitempty"`
	OpenBrowser             *bool          `yaml:"open-browser,omitempty"`
}

func DefaultSettings() Settings {
	return Settings{
		Version: VersionV1,
		Issuer:  DefaultIssuer,
	}
}

// Load reads the settings file at path. A missing file is not an error and
// yields DefaultSettings.
func Load(path string) (*Settings, error) {
	if path == "" {
		return nil, errors.New("config path is required")
	}
	s := DefaultSettings()
	content, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &s, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(content, &s); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if s.Version == "" {
		s.Version = VersionV1
	}
	if s.Issuer == "" {
		s.Issuer = DefaultIssuer
	}
	return &s, nil
}

func (s *Settings) Validate() error {
	if s.Version != VersionV1 {
		return fmt.Errorf("unsupported config version %q", s.Version)
	}
	u, err := url.Parse(s.Issuer)
	if err != nil || (u.Scheme != "https" && u.Scheme != "http") || u.Host == "" {
		return fmt.Errorf("issuer %q must be an absolute http(s) URL", s.Issuer)
	}
	if s.CallbackTimeout != nil && *s.CallbackTimeout < 0 {
		return errors.New("callback-timeout cannot be negative")
	}
	return nil
}

func (s *Settings) EffectiveCallbackTimeout() time.Duration {
	if s.CallbackTimeout == nil {
		return DefaultCallbackTimeout
	}
	return *s.CallbackTimeout
}

func (s *Settings) ShouldOpenBrowser() bool {
	return s.OpenBrowser == nil || *s.OpenBrowser
}

// EffectiveProfilesDir returns the configured profiles directory with a
// leading ~ expanded, or DefaultProfilesDir.
func (s *Settings) EffectiveProfilesDir() string {
	if s.ProfilesDir == "" {
		return DefaultProfilesDir()
	}
	return expandHome(s.ProfilesDir)
}
