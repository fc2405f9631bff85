package profile

import (
	"errors"
	"fmt"
	"net/url"
	"slices"
	"strings"
)

// DefaultRedirectURL is the loopback address the provider redirects to when a
// profile does not configure one.
const DefaultRedirectURL = "http://localhost:8080/"

var ErrIncomplete = errors.New("incomplete profile")

// Overrides are the client settings supplied for a login. Empty fields keep
// the value of the existing record.
type Overrides struct {
	ClientID     string
	ClientSecret string
	Scopes       []string
	RedirectURL  string
}

// Merge combines an existing record (nil for a new profile) with overrides
// into a new record. The existing record is not modified.
func Merge(existing *Record, name string, o Overrides) (*Record, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	scopes := cleanScopes(o.Scopes)

	var merged *Record
	if existing == nil {
		if o.ClientID == "" {
			return nil, fmt.Errorf("%w: you must specify a client id for the profile %s", ErrIncomplete, name)
		}
		if o.ClientSecret == "" {
			return nil, fmt.Errorf("%w: you must specify a client secret for the profile %s", ErrIncomplete, name)
		}
		if len(scopes) == 0 {
			return nil, fmt.Errorf("%w: you must specify at least one scope for the profile %s", ErrIncomplete, name)
		}
		redirect := o.RedirectURL
		if redirect == "" {
			redirect = DefaultRedirectURL
		}
		merged = NewRecord(name, o.ClientID, o.ClientSecret, scopes, redirect)
	} else {
		merged = existing.Clone()
		merged.Name = name
		if o.ClientID != "" {
			merged.ClientID = o.ClientID
		}
		if o.ClientSecret != "" {
			merged.ClientSecret = o.ClientSecret
		}
		if len(scopes) > 0 {
			merged.Scopes = scopes
		}
		if o.RedirectURL != "" {
			merged.RedirectURL = o.RedirectURL
		}
		if merged.RedirectURL == "" {
			merged.RedirectURL = DefaultRedirectURL
		}
	}

	if _, err := ParseRedirectURL(merged.RedirectURL); err != nil {
		return nil, err
	}
	return merged, nil
}

// ParseRedirectURL validates a loopback redirect URL. Only plain http is
// accepted since the callback listener does not terminate TLS.
func ParseRedirectURL(raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid redirect url %q: %w", ErrIncomplete, raw, err)
	}
	if u.Scheme != "http" {
		return nil, fmt.Errorf("%w: redirect url %q must use http", ErrIncomplete, raw)
	}
	if u.Hostname() == "" {
		return nil, fmt.Errorf("%w: redirect url %q has no host", ErrIncomplete, raw)
	}
	return u, nil
}

func cleanScopes(scopes []string) []string {
	out := make([]string, 0, len(scopes))
	for _, s := range scopes {
		s = strings.TrimSpace(s)
		if s == "" || slices.Contains(out, s) {
			continue
		}
		out = append(out, s)
	}
	return out
}
