package shared

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestSessions(t *testing.T) *SessionManager {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = client.Close()
	})
	return NewSessionManager(client, "st_session", time.Hour)
}

func TestSessionStoreAndLoad(t *testing.T) {
	sessions := newTestSessions(t)
	ctx := context.Background()

	want := Identity{UserID: 7, Role: "staff", HomeWarehouseID: 3}
	require.NoError(t, sessions.Store(ctx, "tok-1", want))

	got, err := sessions.Load(ctx, "tok-1")
	require.NoError(t, err)
	require.Equal(t, want, *got)

	_, err = sessions.Load(ctx, "missing")
	require.ErrorIs(t, err, ErrSessionNotFound)
}

func TestResolveFromBearerHeader(t *testing.T) {
	sessions := newTestSessions(t)
	ctx := context.Background()
	require.NoError(t, sessions.Store(ctx, "tok-1", Identity{UserID: 7}))

	r := httptest.NewRequest("GET", "/", nil)
	r.Header.Set("Authorization", "Bearer tok-1")
	id, err := sessions.Resolve(ctx, r)
	require.NoError(t, err)
	require.Equal(t, int64(7), id.UserID)
}

func TestResolveFromCookie(t *testing.T) {
	sessions := newTestSessions(t)
	ctx := context.Background()
	require.NoError(t, sessions.Store(ctx, "tok-2", Identity{UserID: 8}))

	r := httptest.NewRequest("GET", "/", nil)
	r.AddCookie(&http.Cookie{Name: "st_session", Value: "tok-2"})
	id, err := sessions.Resolve(ctx, r)
	require.NoError(t, err)
	require.Equal(t, int64(8), id.UserID)
}

func TestResolveWithoutTokenIsAnonymous(t *testing.T) {
	sessions := newTestSessions(t)

	r := httptest.NewRequest("GET", "/", nil)
	id, err := sessions.Resolve(context.Background(), r)
	require.NoError(t, err)
	require.Nil(t, id)
}

func TestIdentityAuthorization(t *testing.T) {
	var nobody *Identity
	require.False(t, nobody.IsAdmin())
	require.False(t, nobody.CanActOn(1))

	admin := &Identity{UserID: 1, Role: RoleAdmin}
	require.True(t, admin.IsAdmin())
	require.True(t, admin.CanActOn(99))

	staff := &Identity{UserID: 2, Role: "staff", HomeWarehouseID: 3}
	require.False(t, staff.IsAdmin())
	require.True(t, staff.CanActOn(3))
	require.False(t, staff.CanActOn(4))
}
