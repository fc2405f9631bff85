package profile

import (
	"fmt"
	"slices"
)

// CurrentVersion is the schema version written to every record.
const CurrentVersion = 1

// Kind selects one of the two cached tokens of a record.
type Kind string

const (
	KindAccess Kind = "access"
	KindID     Kind = "id"
)

func (k Kind) String() string {
	switch k {
	case KindAccess:
		return "access token"
	case KindID:
		return "id token"
	default:
		return fmt.Sprintf("token kind %q", string(k))
	}
}

// TokenValue is a cached token secret with its absolute expiry in Unix
// seconds. Exp 0 means the token must be treated as expired.
type TokenValue struct {
	Secret string `json:"secret"`
	Exp    int64  `json:"exp"`
}

// Expired reports whether the token is no longer usable at now (Unix seconds).
// A token expiring in the same second as now is still valid.
func (t *TokenValue) Expired(now int64) bool {
	if t == nil {
		return true
	}
	return t.Exp < now
}

// Record is the persisted state of one profile: the OAuth2 client it uses and
// the tokens obtained for it.
type Record struct {
	Version      int         `json:"version"`
	Name         string      `json:"name"`
	ClientID     string      `json:"client_id"`
	ClientSecret string      `json:"client_secret"`
	Scopes       []string    `json:"scopes"`
	RedirectURL  string      `json:"redirect_url"`
	RefreshToken string      `json:"refresh_token,omitempty"`
	IDToken      *TokenValue `json:"id_token,omitempty"`
	AccessToken  *TokenValue `json:"access_token,omitempty"`
}

// NewRecord returns a record without any tokens.
func NewRecord(name, clientID, clientSecret string, scopes []string, redirectURL string) *Record {
	return &Record{
		Version:      CurrentVersion,
		Name:         name,
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Scopes:       slices.Clone(scopes),
		RedirectURL:  redirectURL,
	}
}

// Token returns the cached token of the given kind, or nil when absent.
func (r *Record) Token(kind Kind) *TokenValue {
	switch kind {
	case KindAccess:
		return r.AccessToken
	case KindID:
		return r.IDToken
	default:
		return nil
	}
}

// SetToken replaces the cached token of the given kind.
func (r *Record) SetToken(kind Kind, v *TokenValue) {
	switch kind {
	case KindAccess:
		r.AccessToken = v
	case KindID:
		r.IDToken = v
	}
}

// CanRefresh reports whether a refresh token is stored.
func (r *Record) CanRefresh() bool {
	return r.RefreshToken != ""
}

// Clone returns a deep copy so flows can stage changes and commit them only
// after they have been persisted.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	c := *r
	c.Scopes = slices.Clone(r.Scopes)
	if r.IDToken != nil {
		v := *r.IDToken
		c.IDToken = &v
	}
	if r.AccessToken != nil {
		v := *r.AccessToken
		c.AccessToken = &v
	}
	return &c
}
