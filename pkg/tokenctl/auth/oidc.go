package auth

//go:generate mockgen -source=oidc.go -destination=mock_oidc_test.go -package=auth Connector,Client

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
)

// ClientConfig identifies the OAuth2 client registered with the issuer.
type ClientConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
}

// AuthorizeRequest carries the per-login values of an authorization request.
type AuthorizeRequest struct {
	Scopes        []string
	State         string
	Nonce         string
	CodeChallenge string
	ExtraParams   map[string]string
}

// TokenResponse is the subset of a token endpoint response tokenctl stores.
// ExpiresIn is zero when the provider did not send expires_in.
type TokenResponse struct {
	AccessToken  string
	ExpiresIn    time.Duration
	RefreshToken string
	IDToken      string
	Scopes       []string
}

// IDTokenClaims are the verified claims of an ID token.
type IDTokenClaims struct {
	Subject string
	Email   string
	Expiry  time.Time
}

// Connector discovers the issuer metadata and binds a client to it.
type Connector interface {
	Connect(ctx context.Context, issuer string, cfg ClientConfig) (Client, error)
}

// Client talks to the authorization and token endpoints of one issuer.
type Client interface {
	AuthorizeURL(req AuthorizeRequest) string
	ExchangeCode(ctx context.Context, code, verifier string) (*TokenResponse, error)
	ExchangeRefreshToken(ctx context.Context, refreshToken string, scopes []string) (*TokenResponse, error)
	// VerifyIDToken checks signature, audience and expiry. The nonce is only
	// compared when it is not empty.
	VerifyIDToken(ctx context.Context, rawIDToken, nonce string) (*IDTokenClaims, error)
}

// OIDCConnector is the Connector backed by go-oidc and x/oauth2.
type OIDCConnector struct {
	CAFile          string
	InsecureSkipTLS bool
}

func (c *OIDCConnector) Connect(ctx context.Context, issuer string, cfg ClientConfig) (Client, error) {
	if issuer == "" || cfg.ClientID == "" {
		return nil, errors.New("issuer and client-id are required")
	}
	httpClient, err := newHTTPClient(c.CAFile, c.InsecureSkipTLS)
	if err != nil {
		return nil, err
	}
	provider, err := oidc.NewProvider(oidc.ClientContext(ctx, httpClient), issuer)
	if err != nil {
		return nil, fmt.Errorf("failed to discover OIDC provider: %w", err)
	}
	return &oidcClient{
		httpClient: httpClient,
		oauth: oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint:     provider.Endpoint(),
			RedirectURL:  cfg.RedirectURL,
		},
		verifier: provider.Verifier(&oidc.Config{ClientID: cfg.ClientID}),
	}, nil
}

type oidcClient struct {
	httpClient *http.Client
	oauth      oauth2.Config
	verifier   *oidc.IDTokenVerifier
}

func (c *oidcClient) AuthorizeURL(req AuthorizeRequest) string {
	cfg := c.oauth
	cfg.Scopes = slices.Clone(req.Scopes)
	opts := []oauth2.AuthCodeOption{
		oauth2.SetAuthURLParam("code_challenge", req.CodeChallenge),
		oauth2.SetAuthURLParam("code_challenge_method", "S256"),
	}
	if req.Nonce != "" {
		opts = append(opts, oidc.Nonce(req.Nonce))
	}
	for k, v := range req.ExtraParams {
		opts = append(opts, oauth2.SetAuthURLParam(k, v))
	}
	return cfg.AuthCodeURL(req.State, opts...)
}

func (c *oidcClient) ExchangeCode(ctx context.Context, code, verifier string) (*TokenResponse, error) {
	token, err := c.oauth.Exchange(c.context(ctx), code, oauth2.VerifierOption(verifier))
	if err != nil {
		return nil, fmt.Errorf("token exchange failed: %w", err)
	}
	return tokenResponse(token), nil
}

// ExchangeRefreshToken redeems the refresh token, requesting scopes.
func (c *oidcClient) ExchangeRefreshToken(ctx context.Context, refreshToken string, scopes []string) (*TokenResponse, error) {
	ctx = c.context(ctx)
	if len(scopes) > 0 {
		httpClient := *c.httpClient
		httpClient.Transport = &refreshScopeTransport{base: c.httpClient.Transport, scope: strings.Join(scopes, " ")}
		ctx = context.WithValue(ctx, oauth2.HTTPClient, &httpClient)
	}
	token, err := c.oauth.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken}).Token()
	if err != nil {
		return nil, fmt.Errorf("refresh failed: %w", err)
	}
	return tokenResponse(token), nil
}

func (c *oidcClient) VerifyIDToken(ctx context.Context, rawIDToken, nonce string) (*IDTokenClaims, error) {
	idToken, err := c.verifier.Verify(oidc.ClientContext(ctx, c.httpClient), rawIDToken)
	if err != nil {
		return nil, err
	}
	if nonce != "" && idToken.Nonce != nonce {
		return nil, errors.New("id token nonce does not match")
	}
	var extra struct {
		Email string `json:"email"`
	}
	if err := idToken.Claims(&extra); err != nil {
		return nil, fmt.Errorf("failed to decode claims: %w", err)
	}
	return &IDTokenClaims{
		Subject: idToken.Subject,
		Email:   extra.Email,
		Expiry:  idToken.Expiry,
	}, nil
}

func (c *oidcClient) context(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
}

// refreshScopeTransport adds a scope parameter to refresh_token grants, which
// x/oauth2 never sends itself.
type refreshScopeTransport struct {
	base  http.RoundTripper
	scope string
}

func (t *refreshScopeTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}
	if req.Method != http.MethodPost || req.Body == nil ||
		!strings.HasPrefix(req.Header.Get("Content-Type"), "application/x-www-form-urlencoded") {
		return base.RoundTrip(req)
	}
	body, err := io.ReadAll(req.Body)
	_ = req.Body.Close()
	if err != nil {
		return nil, err
	}
	form, err := url.ParseQuery(string(body))
	if err == nil && form.Get("grant_type") == "refresh_token" && !form.Has("scope") {
		form.Set("scope", t.scope)
		body = []byte(form.Encode())
	}
	out := req.Clone(req.Context())
	out.Body = io.NopCloser(bytes.NewReader(body))
	out.ContentLength = int64(len(body))
	out.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(body)), nil
	}
	return base.RoundTrip(out)
}

func tokenResponse(token *oauth2.Token) *TokenResponse {
	resp := &TokenResponse{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
	}
	switch {
	case token.ExpiresIn > 0:
		resp.ExpiresIn = time.Duration(token.ExpiresIn) * time.Second
	case !token.Expiry.IsZero():
		if d := time.Until(token.Expiry).Round(time.Second); d > 0 {
			resp.ExpiresIn = d
		}
	}
	if idToken, ok := token.Extra("id_token").(string); ok {
		resp.IDToken = idToken
	}
	if scope, ok := token.Extra("scope").(string); ok {
		resp.Scopes = strings.Fields(scope)
	}
	return resp
}

func newHTTPClient(caFile string, insecure bool) (*http.Client, error) {
	tlsConfig, err := loadTLSConfig(caFile, insecure)
	if err != nil {
		return nil, err
	}
	return &http.Client{
		Transport: &http.Transport{TLSClientConfig: tlsConfig, Proxy: http.ProxyFromEnvironment},
		Timeout:   30 * time.Second,
	}, nil
}

func loadTLSConfig(caFile string, insecure bool) (*tls.Config, error) {
	if caFile == "" && !insecure {
		return &tls.Config{MinVersion: tls.VersionTLS12}, nil
	}
	certPool, err := loadCertPool(caFile)
	if err != nil {
		return nil, err
	}
	return &tls.Config{
		MinVersion:         tls.VersionTLS12,
		InsecureSkipVerify: insecure, //nolint:gosec // opt-in via insecure-skip-tls-verify
		RootCAs:            certPool,
	}, nil
}

func loadCertPool(caFile string) (*x509.CertPool, error) {
	if caFile == "" {
		return nil, nil
	}
	data, err := os.ReadFile(caFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read CA file: %w", err)
	}
	pool := x509.NewCertPool()
	if ok := pool.AppendCertsFromPEM(data); !ok {
		return nil, errors.New("failed to parse CA file")
	}
	return pool, nil
}
