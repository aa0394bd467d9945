package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"clientlookup/lookup"
)

// App bundles runtime dependencies for the HTTP service.
type App struct {
	Config   Config
	Logger   *slog.Logger
	Resolver lookup.Resolver
	Sessions *SessionManager
	Store    *SessionStore
	Registry *prometheus.Registry
	Metrics  *lookup.Metrics

	// ctx outlives individual requests; background lookups derive from it.
	ctx context.Context
}

// NewApp wires together the application state from configuration.
func NewApp(ctx context.Context, cfg Config, logger *slog.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := lookup.NewMetrics(registry)

	fetcherCfg := cfg.Lookup.FetcherConfig()
	fetcherCfg.Metrics = metrics
	fetcher := lookup.NewFetcher(fetcherCfg, logger)

	store := NewSessionStore()
	app := &App{
		Config:   cfg,
		Logger:   logger,
		Resolver: fetcher,
		Store:    store,
		Registry: registry,
		Metrics:  metrics,
		ctx:      ctx,
	}
	app.Sessions = NewSessionManager(cfg, store, app.newController, logger)

	logger.Info("lookup configured",
		"accounts_url", cfg.Lookup.AccountsURL,
		"proxy_url", cfg.Lookup.EffectiveProxyURL(),
		"timeout", cfg.Lookup.Timeout.String())
	return app, nil
}

func (a *App) newController() *lookup.Controller {
	return lookup.NewController(a.Resolver,
		lookup.WithLogger(a.Logger),
		lookup.WithExampleID(a.Config.Lookup.ExampleClientID))
}

func (a *App) handleIndex(w http.ResponseWriter, r *http.Request) {
	sess := a.Sessions.Ensure(w, r)
	view := newPageView(sess.Controller.State(), a.Config.Lookup.ExampleClientID)
	if err := renderPage(w, view); err != nil {
		a.Logger.Error("render page", "error", err)
		http.Error(w, "render failed", http.StatusInternalServerError)
	}
}

func (a *App) handleLookup(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}

	sess := a.Sessions.Ensure(w, r)
	c := sess.Controller
	if err := c.Edit(r.FormValue("client_id")); err != nil {
		// A lookup is already running or finished; show it instead.
		a.Logger.Debug("lookup ignored", "session_id", sess.ID, "error", err)
		redirectHome(w, r)
		return
	}
	if _, err := c.Submit(a.ctx); err != nil && !errors.Is(err, lookup.ErrEmptyClientID) {
		a.Logger.Warn("lookup submit", "session_id", sess.ID, "error", err)
	}
	redirectHome(w, r)
}

func (a *App) handleExample(w http.ResponseWriter, r *http.Request) {
	sess := a.Sessions.Ensure(w, r)
	if err := sess.Controller.UseExample(); err != nil {
		a.Logger.Debug("example ignored", "session_id", sess.ID, "error", err)
	}
	redirectHome(w, r)
}

func (a *App) handleReset(w http.ResponseWriter, r *http.Request) {
	sess := a.Sessions.Ensure(w, r)
	_ = sess.Controller.Reset()
	redirectHome(w, r)
}

// apiError is the JSON body returned when an API lookup fails.
type apiError struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

func (a *App) handleAPILookup(w http.ResponseWriter, r *http.Request) {
	clientID := strings.TrimSpace(chi.URLParam(r, "clientID"))
	if clientID == "" {
		writeJSONStatus(w, http.StatusBadRequest, apiError{Error: "client id required"})
		return
	}

	c := a.newController()
	_ = c.Edit(clientID)
	state, err := c.Lookup(r.Context())
	if err != nil {
		writeJSONStatus(w, http.StatusBadRequest, apiError{Error: err.Error()})
		return
	}

	switch s := state.(type) {
	case lookup.Loaded:
		writeJSON(w, s.Details)
	case lookup.Failed:
		writeJSONStatus(w, statusForKind(s.Kind()), apiError{Error: s.Message(), Kind: string(s.Kind())})
	default:
		writeJSONStatus(w, http.StatusInternalServerError, apiError{Error: "lookup did not complete", Kind: string(lookup.KindUnknown)})
	}
}

func (a *App) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{"status": "ok", "sessions": a.Store.Len()})
}

func statusForKind(kind lookup.ErrorKind) int {
	switch kind {
	case lookup.KindNetwork, lookup.KindDecode:
		return http.StatusBadGateway
	case lookup.KindMarkerNotFound, lookup.KindAttributeEmpty:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func redirectHome(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func writeJSON(w http.ResponseWriter, v any) {
	writeJSONStatus(w, http.StatusOK, v)
}

func writeJSONStatus(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
