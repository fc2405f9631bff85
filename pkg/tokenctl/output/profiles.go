package output

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/golang-jwt/jwt/v4"

	"github.com/telekom/tokenctl/pkg/tokenctl/profile"
)

const (
	tokenValid   = "valid"
	tokenExpired = "expired"
	tokenNone    = "none"
)

// TokenStatus describes a cached token without exposing its secret.
type TokenStatus struct {
	State   string     `json:"state" yaml:"state"`
	Expires *time.Time `json:"expires,omitempty" yaml:"expires,omitempty"`
}

// ProfileSummary is the listing view of a profile. It never carries secrets.
type ProfileSummary struct {
	Name            string      `json:"name" yaml:"name"`
	ClientID        string      `json:"clientId" yaml:"clientId"`
	Scopes          []string    `json:"scopes" yaml:"scopes"`
	RedirectURL     string      `json:"redirectUrl" yaml:"redirectUrl"`
	HasRefreshToken bool        `json:"hasRefreshToken" yaml:"hasRefreshToken"`
	AccessToken     TokenStatus `json:"accessToken" yaml:"accessToken"`
	IDToken         TokenStatus `json:"idToken" yaml:"idToken"`
	User            string      `json:"user,omitempty" yaml:"user,omitempty"`
}

// SummarizeProfiles evaluates token state at now. The user is read from the
// cached ID token without verifying it, for display only.
func SummarizeProfiles(records []*profile.Record, now time.Time) []ProfileSummary {
	out := make([]ProfileSummary, 0, len(records))
	for _, r := range records {
		s := ProfileSummary{
			Name:            r.Name,
			ClientID:        r.ClientID,
			Scopes:          r.Scopes,
			RedirectURL:     r.RedirectURL,
			HasRefreshToken: r.CanRefresh(),
			AccessToken:     tokenStatus(r.AccessToken, now),
			IDToken:         tokenStatus(r.IDToken, now),
		}
		if r.IDToken != nil {
			s.User = userFromToken(r.IDToken.Secret)
		}
		out = append(out, s)
	}
	return out
}

func tokenStatus(t *profile.TokenValue, now time.Time) TokenStatus {
	if t == nil {
		return TokenStatus{State: tokenNone}
	}
	exp := time.Unix(t.Exp, 0).UTC()
	if t.Expired(now.Unix()) {
		return TokenStatus{State: tokenExpired, Expires: &exp}
	}
	return TokenStatus{State: tokenValid, Expires: &exp}
}

func userFromToken(raw string) string {
	if raw == "" {
		return ""
	}
	parser := jwt.Parser{}
	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(raw, claims); err != nil {
		return ""
	}
	for _, key := range []string{"email", "preferred_username", "sub"} {
		if v, ok := claims[key].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

func WriteProfileTable(w io.Writer, profiles []ProfileSummary) {
	tw := tabwriter.NewWriter(w, 2, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "NAME\tCLIENT_ID\tSCOPES\tACCESS_TOKEN\tID_TOKEN")
	for _, p := range profiles {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", p.Name, p.ClientID, strings.Join(p.Scopes, ","),
			formatStatus(p.AccessToken), formatStatus(p.IDToken))
	}
	_ = tw.Flush()
}

func WriteProfileTableWide(w io.Writer, profiles []ProfileSummary) {
	tw := tabwriter.NewWriter(w, 2, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "NAME\tCLIENT_ID\tSCOPES\tREDIRECT\tREFRESH\tACCESS_TOKEN\tID_TOKEN\tUSER")
	for _, p := range profiles {
		refresh := "no"
		if p.HasRefreshToken {
			refresh = "yes"
		}
		user := p.User
		if user == "" {
			user = "-"
		}
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n", p.Name, p.ClientID, strings.Join(p.Scopes, ","),
			p.RedirectURL, refresh, formatStatus(p.AccessToken), formatStatus(p.IDToken), user)
	}
	_ = tw.Flush()
}

func formatStatus(s TokenStatus) string {
	if s.Expires == nil {
		return s.State
	}
	return s.State + " (" + formatTime(*s.Expires) + ")"
}

func formatTime(t time.Time) string {
	if t.IsZero() || t.Unix() == 0 {
		return "-"
	}
	return t.UTC().Format(time.RFC3339)
}
