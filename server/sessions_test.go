package server

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clientlookup/brand"
	"clientlookup/lookup"
)

func newTestSessionManager(t *testing.T, now *time.Time) (*SessionManager, *SessionStore) {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Sessions.TTL = time.Minute
	store := NewSessionStore()
	resolver := resolverFunc(func(ctx context.Context, id string) (brand.Details, error) {
		return brand.Details{ID: id}, nil
	})
	sm := NewSessionManager(cfg, store, func() *lookup.Controller {
		return lookup.NewController(resolver)
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	sm.now = func() time.Time { return *now }
	return sm, store
}

func sessionCookie(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == sessionCookieName {
			return c
		}
	}
	t.Fatalf("no %s cookie set", sessionCookieName)
	return nil
}

func TestSessionEnsureCreatesAndReuses(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	sm, store := newTestSessionManager(t, &now)

	rec := httptest.NewRecorder()
	first := sm.Ensure(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	cookie := sessionCookie(t, rec)
	assert.Equal(t, first.ID, cookie.Value)
	assert.True(t, cookie.HttpOnly)
	assert.Equal(t, 1, store.Len())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookie)
	second := sm.Ensure(httptest.NewRecorder(), req)
	assert.Same(t, first, second)
	assert.Equal(t, 1, store.Len())
}

func TestSessionSlidingExpiry(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	sm, _ := newTestSessionManager(t, &now)

	rec := httptest.NewRecorder()
	sess := sm.Ensure(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	cookie := sessionCookie(t, rec)

	now = now.Add(45 * time.Second)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookie)
	require.NotNil(t, sm.Fetch(req))
	assert.Equal(t, now.Add(time.Minute), sess.ExpiresAt)

	now = now.Add(2 * time.Minute)
	assert.Nil(t, sm.Fetch(req))
}

func TestSessionUnknownCookieGetsFreshSession(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	sm, _ := newTestSessionManager(t, &now)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: sessionCookieName, Value: "forged"})
	rec := httptest.NewRecorder()
	sess := sm.Ensure(rec, req)

	assert.NotEqual(t, "forged", sess.ID)
	assert.Equal(t, lookup.Ready{}, sess.Controller.State())
}

func TestSessionStoreDeleteExpired(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	store := NewSessionStore()
	resolver := resolverFunc(func(ctx context.Context, id string) (brand.Details, error) {
		return brand.Details{}, nil
	})
	store.Save(&Session{ID: "old", Controller: lookup.NewController(resolver), ExpiresAt: now.Add(-time.Second)})
	store.Save(&Session{ID: "live", Controller: lookup.NewController(resolver), ExpiresAt: now.Add(time.Minute)})

	assert.Equal(t, 1, store.DeleteExpired(now))
	_, ok := store.Get("old")
	assert.False(t, ok)
	_, ok = store.Get("live")
	assert.True(t, ok)
}
