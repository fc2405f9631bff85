package auth

import (
	"context"
	"crypto/subtle"
	"fmt"
	"io"
	"slices"
	"time"

	"go.uber.org/zap"
	"k8s.io/utils/clock"

	"github.com/telekom/tokenctl/pkg/tokenctl/profile"
)

type loginState string

const (
	stateInit             loginState = "Init"
	stateAwaitingCallback loginState = "AwaitingCallback"
	stateExchanging       loginState = "Exchanging"
	stateVerifying        loginState = "Verifying"
	statePersisted        loginState = "Persisted"
)

// LoginFlow runs the interactive authorization code flow for a profile and
// persists the resulting tokens.
type LoginFlow struct {
	Store     *profile.Store
	Connector Connector
	Issuer    string
	Clock     clock.PassiveClock
	Log       *zap.SugaredLogger
	// Out receives the authorization URL and progress messages.
	Out io.Writer
	// OpenBrowser is called with the authorization URL once the callback
	// listener is bound. Nil disables launching a browser.
	OpenBrowser func(url string) error
	// CallbackTimeout bounds the wait for the redirect. Zero waits forever.
	CallbackTimeout time.Duration
}

// Login signs the user in through the browser. On success record holds the
// new tokens and has been saved; on failure neither record nor the profile
// file are modified.
func (f *LoginFlow) Login(ctx context.Context, record *profile.Record) error {
	log := logger(f.Log).With("profile", record.Name)
	state := stateInit
	fail := func(err error) error {
		log.Debugw("Login failed", "state", state, "error", err)
		return profileError(record.Name, err)
	}

	client, err := f.Connector.Connect(ctx, f.Issuer, ClientConfig{
		ClientID:     record.ClientID,
		ClientSecret: record.ClientSecret,
		RedirectURL:  record.RedirectURL,
	})
	if err != nil {
		return fail(fmt.Errorf("%w: %w", ErrDiscovery, err))
	}

	pkce := newPKCEPair()
	csrfState, err := randomToken(24)
	if err != nil {
		return fail(err)
	}
	nonce, err := randomToken(24)
	if err != nil {
		return fail(err)
	}
	authURL := client.AuthorizeURL(AuthorizeRequest{
		Scopes:        record.Scopes,
		State:         csrfState,
		Nonce:         nonce,
		CodeChallenge: pkce.Challenge,
		ExtraParams: map[string]string{
			"access_type": "offline",
			"prompt":      "consent",
		},
	})

	listener, err := ListenCallback(ctx, record.RedirectURL)
	if err != nil {
		return fail(err)
	}
	defer func() {
		_ = listener.Close()
	}()
	log.Debugw("Callback listener bound", "addr", listener.Addr().String())

	out := f.Out
	if out == nil {
		out = io.Discard
	}
	if f.OpenBrowser != nil {
		if err := f.OpenBrowser(authURL); err != nil {
			log.Warnw("Failed to open browser", "error", err)
		}
	}
	_, _ = fmt.Fprintf(out, "If the web browser did not open automatically, you can open this URL in your browser:\n%s\n\n", authURL)
	_, _ = fmt.Fprintln(out, "Waiting for the browser to sign you in...")

	state = stateAwaitingCallback
	now := clockOrReal(f.Clock).Now()
	waitCtx := ctx
	if f.CallbackTimeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, f.CallbackTimeout)
		defer cancel()
	}
	cb, err := listener.Wait(waitCtx)
	if err != nil {
		return fail(err)
	}
	if subtle.ConstantTimeCompare([]byte(cb.State), []byte(csrfState)) != 1 {
		return fail(ErrCSRFMismatch)
	}

	state = stateExchanging
	resp, err := client.ExchangeCode(ctx, cb.Code, pkce.Verifier)
	if err != nil {
		return fail(fmt.Errorf("%w: %w", ErrCodeExchange, err))
	}
	accessToken := &profile.TokenValue{Secret: resp.AccessToken, Exp: expiryFrom(now, resp.ExpiresIn)}

	state = stateVerifying
	if resp.IDToken == "" {
		return fail(ErrNoIDToken)
	}
	claims, err := client.VerifyIDToken(ctx, resp.IDToken, nonce)
	if err != nil {
		return fail(fmt.Errorf("%w: %w", ErrClaimsVerification, err))
	}
	if resp.RefreshToken == "" {
		return fail(ErrNoRefreshToken)
	}
	if len(resp.Scopes) == 0 {
		return fail(ErrNoScopes)
	}

	updated := record.Clone()
	updated.Scopes = slices.Clone(resp.Scopes)
	updated.RefreshToken = resp.RefreshToken
	updated.IDToken = &profile.TokenValue{Secret: resp.IDToken, Exp: claims.Expiry.Unix()}
	updated.AccessToken = accessToken
	if err := f.Store.Save(updated); err != nil {
		return fail(err)
	}
	*record = *updated

	state = statePersisted
	log.Debugw("Login complete", "state", state, "subject", claims.Subject,
		"accessTokenExp", accessToken.Exp, "idTokenExp", updated.IDToken.Exp)
	return nil
}

// expiryFrom converts a relative lifetime into Unix seconds. A missing
// lifetime yields 0 so the token is treated as expired.
func expiryFrom(now time.Time, expiresIn time.Duration) int64 {
	if expiresIn <= 0 {
		return 0
	}
	return now.Unix() + int64(expiresIn/time.Second)
}

func clockOrReal(c clock.PassiveClock) clock.PassiveClock {
	if c == nil {
		return clock.RealClock{}
	}
	return c
}

func logger(l *zap.SugaredLogger) *zap.SugaredLogger {
	if l == nil {
		return zap.NewNop().Sugar()
	}
	return l
}
