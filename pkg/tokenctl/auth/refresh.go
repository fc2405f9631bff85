package auth

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"k8s.io/utils/clock"

	"github.com/telekom/tokenctl/pkg/tokenctl/profile"
)

// RefreshFlow renews the tokens of a profile with its stored refresh token.
type RefreshFlow struct {
	Store     *profile.Store
	Connector Connector
	Issuer    string
	Clock     clock.PassiveClock
	Log       *zap.SugaredLogger
	// RequireIDToken fails the refresh when the provider does not return a
	// new ID token. When false the previous ID token is kept.
	RequireIDToken bool
}

// Refresh exchanges the refresh token and saves the renewed tokens. The
// record is only updated once the new state has been persisted.
func (f *RefreshFlow) Refresh(ctx context.Context, record *profile.Record) error {
	if !record.CanRefresh() {
		return profileError(record.Name, ErrNoRefreshTokenForProfile)
	}
	log := logger(f.Log).With("profile", record.Name)
	now := clockOrReal(f.Clock).Now()

	client, err := f.Connector.Connect(ctx, f.Issuer, ClientConfig{
		ClientID:     record.ClientID,
		ClientSecret: record.ClientSecret,
		RedirectURL:  record.RedirectURL,
	})
	if err != nil {
		return profileError(record.Name, fmt.Errorf("%w: %w", ErrDiscovery, err))
	}
	resp, err := client.ExchangeRefreshToken(ctx, record.RefreshToken, record.Scopes)
	if err != nil {
		return profileError(record.Name, fmt.Errorf("%w: %w", ErrRefreshExchange, err))
	}

	updated := record.Clone()
	updated.AccessToken = &profile.TokenValue{Secret: resp.AccessToken, Exp: expiryFrom(now, resp.ExpiresIn)}

	switch {
	case resp.IDToken != "":
		claims, err := client.VerifyIDToken(ctx, resp.IDToken, "")
		if err != nil {
			return profileError(record.Name, fmt.Errorf("%w: %w", ErrClaimsVerification, err))
		}
		updated.IDToken = &profile.TokenValue{Secret: resp.IDToken, Exp: claims.Expiry.Unix()}
	case f.RequireIDToken:
		return profileError(record.Name, ErrNoIDToken)
	default:
		log.Debug("Provider returned no ID token on refresh, keeping the cached one")
	}

	if resp.RefreshToken != "" && resp.RefreshToken != record.RefreshToken {
		log.Debug("Provider rotated the refresh token")
		updated.RefreshToken = resp.RefreshToken
	}

	if err := f.Store.Save(updated); err != nil {
		return profileError(record.Name, err)
	}
	*record = *updated
	log.Debugw("Tokens refreshed", "accessTokenExp", updated.AccessToken.Exp)
	return nil
}
