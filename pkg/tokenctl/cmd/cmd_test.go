package cmd

import (
	"bytes"
	"context"
	"errors"
	"net"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	testingclock "k8s.io/utils/clock/testing"

	"github.com/telekom/tokenctl/pkg/tokenctl/auth"
	"github.com/telekom/tokenctl/pkg/tokenctl/profile"
)

const fileIssuer = "https://file-issuer.example.com"

// fakeProvider is both the Connector and the Client of a scripted issuer.
type fakeProvider struct {
	mu           sync.Mutex
	issuers      []string
	codeResp     *auth.TokenResponse
	refreshResp  *auth.TokenResponse
	refreshCalls int
}

func (p *fakeProvider) Connect(_ context.Context, issuer string, _ auth.ClientConfig) (auth.Client, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.issuers = append(p.issuers, issuer)
	return p, nil
}

func (p *fakeProvider) AuthorizeURL(req auth.AuthorizeRequest) string {
	return "https://issuer.example/auth?state=" + url.QueryEscape(req.State)
}

func (p *fakeProvider) ExchangeCode(context.Context, string, string) (*auth.TokenResponse, error) {
	if p.codeResp == nil {
		return nil, errors.New("unexpected code exchange")
	}
	return p.codeResp, nil
}

func (p *fakeProvider) ExchangeRefreshToken(context.Context, string, []string) (*auth.TokenResponse, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.refreshCalls++
	if p.refreshResp == nil {
		return nil, errors.New("invalid_grant")
	}
	return p.refreshResp, nil
}

func (p *fakeProvider) VerifyIDToken(_ context.Context, raw, _ string) (*auth.IDTokenClaims, error) {
	return &auth.IDTokenClaims{Subject: "user-1", Expiry: time.Unix(9000, 0)}, nil
}

type testEnv struct {
	dir         string
	configPath  string
	profilesDir string
	out         *bytes.Buffer
	logs        *observer.ObservedLogs
	provider    *fakeProvider
	redirectURL string
	browserHits int
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	for _, key := range []string{
		"TOKENCTL_ISSUER", "TOKENCTL_PROFILES_DIR", "TOKENCTL_CALLBACK_TIMEOUT", "TOKENCTL_VERBOSE",
		"CLIENT_ID", "CLIENT_SECRET", "SCOPES", "REDIRECT",
	} {
		t.Setenv(key, "")
	}
	dir := t.TempDir()
	e := &testEnv{
		dir:         dir,
		configPath:  filepath.Join(dir, "config.yaml"),
		profilesDir: filepath.Join(dir, "profiles"),
		provider:    &fakeProvider{},
	}
	e.writeConfig(t, "issuer: "+fileIssuer+"\nprofiles-dir: "+e.profilesDir+"\ncallback-timeout: 5s\n")
	return e
}

func (e *testEnv) writeConfig(t *testing.T, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(e.configPath, []byte(content), 0o600))
}

func (e *testEnv) run(args ...string) error {
	core, logs := observer.New(zap.DebugLevel)
	e.logs = logs
	e.out = &bytes.Buffer{}
	root := NewRootCommand(Config{
		ConfigPath:   e.configPath,
		OutputWriter: e.out,
		Logger:       zap.New(core),
		Connector:    e.provider,
		Clock:        testingclock.NewFakePassiveClock(time.Unix(1000, 0)),
		OpenBrowser:  e.browser,
	})
	root.SetArgs(args)
	return root.Execute()
}

// browser follows the authorization URL back to the callback listener.
func (e *testEnv) browser(authURL string) error {
	e.browserHits++
	u, err := url.Parse(authURL)
	if err != nil {
		return err
	}
	callback := e.redirectURL + "?code=code-1&state=" + url.QueryEscape(u.Query().Get("state"))
	go func() {
		resp, err := http.Get(callback) //nolint:noctx // simulated browser
		if err == nil {
			_ = resp.Body.Close()
		}
	}()
	return nil
}

func (e *testEnv) store() *profile.Store {
	return profile.NewStore(e.profilesDir)
}

func (e *testEnv) saveProfile(t *testing.T, name string, access, id *profile.TokenValue, refresh string) {
	t.Helper()
	r := profile.NewRecord(name, "client-"+name, "secret-"+name, []string{"openid", "email"}, profile.DefaultRedirectURL)
	r.AccessToken = access
	r.IDToken = id
	r.RefreshToken = refresh
	require.NoError(t, e.store().Save(r))
}

func freeRedirectURL(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())
	return "http://" + addr + "/callback"
}
