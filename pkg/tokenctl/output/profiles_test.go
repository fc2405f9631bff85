package output

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/telekom/tokenctl/pkg/tokenctl/profile"
)

func unsignedIDToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("display-only"))
	require.NoError(t, err)
	return raw
}

func testRecords(t *testing.T) []*profile.Record {
	work := profile.NewRecord("work", "client-1", "super-secret", []string{"openid", "email"}, "http://localhost:8080/")
	work.RefreshToken = "refresh-secret"
	work.AccessToken = &profile.TokenValue{Secret: "access-secret", Exp: 2000}
	work.IDToken = &profile.TokenValue{
		Secret: unsignedIDToken(t, jwt.MapClaims{"sub": "user-1", "email": "user@example.com"}),
		Exp:    500,
	}
	fresh := profile.NewRecord("fresh", "client-2", "other-secret", []string{"openid"}, "http://localhost:9000/")
	return []*profile.Record{work, fresh}
}

func TestSummarizeProfiles(t *testing.T) {
	summaries := SummarizeProfiles(testRecords(t), time.Unix(1000, 0))
	require.Len(t, summaries, 2)

	work := summaries[0]
	assert.Equal(t, "work", work.Name)
	assert.True(t, work.HasRefreshToken)
	assert.Equal(t, tokenValid, work.AccessToken.State)
	assert.Equal(t, int64(2000), work.AccessToken.Expires.Unix())
	assert.Equal(t, tokenExpired, work.IDToken.State)
	assert.Equal(t, "user@example.com", work.User)

	fresh := summaries[1]
	assert.False(t, fresh.HasRefreshToken)
	assert.Equal(t, TokenStatus{State: tokenNone}, fresh.AccessToken)
	assert.Empty(t, fresh.User)
}

func TestSummariesCarryNoSecrets(t *testing.T) {
	summaries := SummarizeProfiles(testRecords(t), time.Unix(1000, 0))
	for _, format := range []Format{FormatJSON, FormatYAML} {
		var buf bytes.Buffer
		require.NoError(t, WriteObject(&buf, format, summaries))
		out := buf.String()
		for _, secret := range []string{"super-secret", "other-secret", "refresh-secret", "access-secret", "eyJ"} {
			assert.NotContains(t, out, secret, "format %s leaks %s", format, secret)
		}
	}

	var buf bytes.Buffer
	require.NoError(t, WriteObject(&buf, FormatJSON, summaries))
	var decoded []map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "valid", decoded[0]["accessToken"].(map[string]any)["state"])
}

func TestUserFromToken(t *testing.T) {
	tests := []struct {
		name   string
		claims jwt.MapClaims
		want   string
	}{
		{name: "email", claims: jwt.MapClaims{"email": "a@example.com", "sub": "s"}, want: "a@example.com"},
		{name: "preferred username", claims: jwt.MapClaims{"preferred_username": "alice", "sub": "s"}, want: "alice"},
		{name: "subject", claims: jwt.MapClaims{"sub": "s"}, want: "s"},
		{name: "nothing", claims: jwt.MapClaims{"aud": "x"}, want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, userFromToken(unsignedIDToken(t, tt.claims)))
		})
	}
	assert.Empty(t, userFromToken("not-a-jwt"))
	assert.Empty(t, userFromToken(""))
}

func TestWriteProfileTable(t *testing.T) {
	var buf bytes.Buffer
	WriteProfileTable(&buf, SummarizeProfiles(testRecords(t), time.Unix(1000, 0)))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "NAME"))
	assert.Contains(t, lines[1], "work")
	assert.Contains(t, lines[1], "openid,email")
	assert.Contains(t, lines[1], "valid (1970-01-01T00:33:20Z)")
	assert.Contains(t, lines[1], "expired (1970-01-01T00:08:20Z)")
	assert.Contains(t, lines[2], "none")
	assert.NotContains(t, buf.String(), "super-secret")
}

func TestWriteProfileTableWide(t *testing.T) {
	var buf bytes.Buffer
	WriteProfileTableWide(&buf, SummarizeProfiles(testRecords(t), time.Unix(1000, 0)))

	out := buf.String()
	assert.Contains(t, out, "REDIRECT")
	assert.Contains(t, out, "USER")
	assert.Contains(t, out, "user@example.com")
	assert.Contains(t, out, "http://localhost:9000/")
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[1], "yes")
	assert.Contains(t, lines[2], "no")
}

func TestFormatStatus(t *testing.T) {
	zero := time.Unix(0, 0)
	assert.Equal(t, "none", formatStatus(TokenStatus{State: tokenNone}))
	assert.Equal(t, "expired (-)", formatStatus(TokenStatus{State: tokenExpired, Expires: &zero}))
}
