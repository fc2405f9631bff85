package auth

import (
	"context"

	"go.uber.org/zap"
	"k8s.io/utils/clock"

	"github.com/telekom/tokenctl/pkg/tokenctl/profile"
)

// Refresher renews the tokens of a loaded profile in place.
type Refresher interface {
	Refresh(ctx context.Context, record *profile.Record) error
}

// TokenManager hands out cached tokens and refreshes them once they expired.
// It never falls back to an interactive login; callers decide that.
type TokenManager struct {
	Store     *profile.Store
	Refresher Refresher
	Clock     clock.PassiveClock
	Log       *zap.SugaredLogger
}

// EnsureValid returns a token of the requested kind that has not expired at
// the time of the call, refreshing the profile first when needed.
func (m *TokenManager) EnsureValid(ctx context.Context, name string, kind profile.Kind) (profile.TokenValue, error) {
	record, err := m.Store.Load(name)
	if err != nil {
		return profile.TokenValue{}, profileError(name, err)
	}

	now := clockOrReal(m.Clock).Now().Unix()
	cached := record.Token(kind)
	if !cached.Expired(now) {
		return *cached, nil
	}

	logger(m.Log).Debugw("Cached token expired, refreshing", "profile", name, "kind", kind.String())
	if err := m.Refresher.Refresh(ctx, record); err != nil {
		return profile.TokenValue{}, profileError(name, err)
	}

	token := record.Token(kind)
	if token == nil {
		return profile.TokenValue{}, profileError(name, ErrConfigCorrupt)
	}
	// The refresh kept the stale ID token because the provider sent none.
	if kind == profile.KindID && cached != nil && token.Secret == cached.Secret && token.Expired(now) {
		return profile.TokenValue{}, profileError(name, ErrNoIDToken)
	}
	return *token, nil
}
