package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Routes constructs the HTTP router with the page, API and operational endpoints.
func (a *App) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(a.Logger))
	r.Use(RecoveryMiddleware(a.Logger))
	r.Use(SecurityHeadersMiddleware(a.Config.Server.TLS.HSTSMaxAge))

	r.Get("/", a.handleIndex)
	r.Post("/lookup", a.handleLookup)
	r.Post("/example", a.handleExample)
	r.Post("/reset", a.handleReset)

	r.Route("/api", func(r chi.Router) {
		r.Use(CORSMiddleware(a.Config.Server.CORS))
		r.Get("/clients/{clientID}", a.handleAPILookup)
	})

	r.Get("/healthz", a.handleHealth)
	r.Handle("/metrics", promhttp.HandlerFor(a.Registry, promhttp.HandlerOpts{}))

	return r
}
