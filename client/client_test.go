package client

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clientlookup/brand"
	"clientlookup/lookup"
	"clientlookup/server"
)

const brandPage = `<html><body><div data-client-auth-config-brand="%.@.42.apps.googleusercontent.com,&quot;Demo&quot;,null,&quot;help@demo.test&quot;,&quot;https://demo.test&quot;,[],[&quot;https://demo.test/privacy&quot;]"></div></body></html>`

func newService(t *testing.T, status int, page string) string {
	t.Helper()
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		_, _ = io.WriteString(w, page)
	}))
	t.Cleanup(upstream.Close)

	cfg := server.DefaultConfig()
	cfg.Lookup.AccountsURL = upstream.URL
	cfg.Lookup.ProxyURL = ""
	app, err := server.NewApp(context.Background(), cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)

	srv := httptest.NewServer(app.Routes())
	t.Cleanup(srv.Close)
	return srv.URL
}

func TestLookupSuccess(t *testing.T) {
	c := New(newService(t, http.StatusOK, brandPage)+"/", nil)

	got, err := c.Lookup(context.Background(), "42.apps.googleusercontent.com")
	require.NoError(t, err)
	assert.Equal(t, brand.Details{
		ID:          "42.apps.googleusercontent.com",
		Name:        "Demo",
		Email:       "help@demo.test",
		Website:     "https://demo.test",
		TermsURLs:   []string{},
		PrivacyURLs: []string{"https://demo.test/privacy"},
	}, got)
}

func TestLookupErrorKinds(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		page     string
		sentinel error
		kind     lookup.ErrorKind
	}{
		{"network", http.StatusBadGateway, "", lookup.ErrNetwork, lookup.KindNetwork},
		{"marker", http.StatusOK, "<html></html>", brand.ErrMarkerNotFound, lookup.KindMarkerNotFound},
		{"empty", http.StatusOK, `<a data-client-auth-config-brand></a>`, brand.ErrAttributeEmpty, lookup.KindAttributeEmpty},
		{"decode", http.StatusOK, `<a data-client-auth-config-brand="x,y"></a>`, brand.ErrDecode, lookup.KindDecode},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New(newService(t, tt.status, tt.page), nil)

			_, err := c.Lookup(context.Background(), "42.apps.googleusercontent.com")
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.sentinel)
			assert.Equal(t, tt.kind, lookup.KindOf(err))

			var apiErr *APIError
			require.True(t, errors.As(err, &apiErr))
			assert.Equal(t, lookup.Message(err), apiErr.Message)
		})
	}
}

func TestLookupUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL
	srv.Close()

	_, err := New(base, nil).Lookup(context.Background(), "42")
	assert.ErrorIs(t, err, lookup.ErrNetwork)
}

func TestLookupEmptyID(t *testing.T) {
	_, err := New("http://127.0.0.1:1", nil).Lookup(context.Background(), "  ")
	require.Error(t, err)
	assert.Equal(t, lookup.KindUnknown, lookup.KindOf(err))
}

func TestClientDrivesController(t *testing.T) {
	c := New(newService(t, http.StatusOK, brandPage), nil)
	ctrl := lookup.NewController(c)
	require.NoError(t, ctrl.Edit("42.apps.googleusercontent.com"))

	state, err := ctrl.Lookup(context.Background())
	require.NoError(t, err)
	loaded, ok := state.(lookup.Loaded)
	require.True(t, ok, "got %T", state)
	assert.Equal(t, "Demo", loaded.Details.Name)
}
