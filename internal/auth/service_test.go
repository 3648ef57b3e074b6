package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/congo-pay/custody/internal/config"
	"github.com/congo-pay/custody/internal/identity"
)

func newTestService(t *testing.T) (*Service, identity.User) {
	t.Helper()
	cfg := config.Config{
		AppName:         "custody-test",
		JWTSecret:       "access",
		RefreshSecret:   "refresh",
		AccessTokenTTL:  time.Minute,
		RefreshTokenTTL: time.Hour,
	}
	repo := identity.NewMemoryRepository()
	user, err := identity.NewService(repo).Register(context.Background(), identity.Credentials{Account: "acct:owner", PIN: "1234"})
	require.NoError(t, err)
	return NewService(cfg, repo), user
}

func TestLoginAndAuthorize(t *testing.T) {
	svc, user := newTestService(t)
	ctx := context.Background()

	pair, err := svc.Login(user)
	require.NoError(t, err)
	assert.Equal(t, int64(60), pair.ExpiresIn)

	account, err := svc.Authorize(ctx, pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "acct:owner", account)

	_, err = svc.Authorize(ctx, pair.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidToken, "refresh token must not pass as access token")

	_, err = svc.Authorize(ctx, "not-a-jwt")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestExpiredTokenRejected(t *testing.T) {
	svc, user := newTestService(t)
	pair, err := svc.Login(user)
	require.NoError(t, err)

	svc.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	_, err = svc.Authorize(context.Background(), pair.AccessToken)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestRefreshAndLogout(t *testing.T) {
	svc, user := newTestService(t)
	ctx := context.Background()

	pair, err := svc.Login(user)
	require.NoError(t, err)

	access, exp, err := svc.Refresh(ctx, pair.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, int64(60), exp)
	account, err := svc.Authorize(ctx, access)
	require.NoError(t, err)
	assert.Equal(t, user.ID, account)

	require.NoError(t, svc.Logout(ctx, user.ID))

	_, err = svc.Authorize(ctx, access)
	assert.ErrorIs(t, err, ErrTokenRevoked)
	_, _, err = svc.Refresh(ctx, pair.RefreshToken)
	assert.ErrorIs(t, err, ErrTokenRevoked)
}
