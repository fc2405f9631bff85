package auth

import (
	"errors"
	"fmt"
)

// Security errors.
var (
	ErrCSRFMismatch = errors.New("the state sent to the provider and the state received in the callback do not match, this may be a sign of a CSRF attack")
)

// Callback errors.
var (
	ErrMalformedCallback = errors.New("malformed callback request")
	ErrCallbackTimeout   = errors.New("timed out waiting for the browser to sign you in")
	ErrProviderDenied    = errors.New("authorization was denied by the provider")
)

// Provider errors.
var (
	ErrDiscovery          = errors.New("failed to discover OpenID provider")
	ErrCodeExchange       = errors.New("failed to exchange authorization code")
	ErrRefreshExchange    = errors.New("could not refresh token")
	ErrNoIDToken          = errors.New("no ID token present")
	ErrNoRefreshToken     = errors.New("no refresh token present")
	ErrNoScopes           = errors.New("there were no scopes in the response")
	ErrClaimsVerification = errors.New("could not verify ID token claims")
)

// Profile state errors.
var (
	ErrNoRefreshTokenForProfile = errors.New("there is no refresh token available, login again")
	ErrConfigCorrupt            = errors.New("token missing after refresh, is the profile corrupt?")
)

// ProfileError attaches the profile name to a lifecycle failure.
type ProfileError struct {
	Profile string
	Err     error
}

func (e *ProfileError) Error() string {
	return fmt.Sprintf("profile %s: %v", e.Profile, e.Err)
}

func (e *ProfileError) Unwrap() error {
	return e.Err
}

func profileError(name string, err error) error {
	if err == nil {
		return nil
	}
	var pe *ProfileError
	if errors.As(err, &pe) && pe.Profile == name {
		return err
	}
	return &ProfileError{Profile: name, Err: err}
}
