// Package lookup resolves Google OAuth client IDs to their published app
// details and tracks the state of a lookup.
package lookup

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/oauth2/google"

	"clientlookup/brand"
)

const (
	errorPagePath       = "/signin/oauth/error/v2"
	DefaultFlowName     = "GeneralOAuthFlow"
	DefaultProxyURL     = "https://corsproxy.io/?url="
	DefaultTimeout      = 30 * time.Second
	DefaultMaxBodyBytes = 5 << 20
)

// DefaultAccountsURL is the origin of Google's sign-in endpoints.
var DefaultAccountsURL = originOf(google.Endpoint.AuthURL)

// Resolver turns a client ID into app details.
type Resolver interface {
	Resolve(ctx context.Context, clientID string) (brand.Details, error)
}

// FetcherConfig configures the outbound request.
type FetcherConfig struct {
	AccountsURL  string
	ProxyURL     string
	FlowName     string
	UserAgent    string
	Timeout      time.Duration
	MaxBodyBytes int64
	HTTPClient   *http.Client
	Metrics      *Metrics
	Tracer       trace.Tracer
}

// Fetcher requests Google's OAuth error page for a client and extracts the
// app branding embedded in it.
type Fetcher struct {
	cfg     FetcherConfig
	client  *http.Client
	logger  *slog.Logger
	metrics *Metrics
	tracer  trace.Tracer
}

// NewFetcher fills unset fields with defaults. An empty ProxyURL fetches the
// target directly.
func NewFetcher(cfg FetcherConfig, logger *slog.Logger) *Fetcher {
	if cfg.AccountsURL == "" {
		cfg.AccountsURL = DefaultAccountsURL
	}
	cfg.AccountsURL = strings.TrimSuffix(cfg.AccountsURL, "/")
	if cfg.FlowName == "" {
		cfg.FlowName = DefaultFlowName
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultMaxBodyBytes
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	tracer := cfg.Tracer
	if tracer == nil {
		tracer = otel.Tracer("clientlookup/lookup")
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Fetcher{cfg: cfg, client: client, logger: logger, metrics: cfg.Metrics, tracer: tracer}
}

// TargetURL is the Google page describing the client.
func (f *Fetcher) TargetURL(clientID string) string {
	q := url.Values{}
	q.Set("client_id", clientID)
	q.Set("flowName", f.cfg.FlowName)
	return f.cfg.AccountsURL + errorPagePath + "?" + q.Encode()
}

// RequestURL is the URL actually requested, routed through the relay when one
// is configured.
func (f *Fetcher) RequestURL(clientID string) string {
	target := f.TargetURL(clientID)
	if f.cfg.ProxyURL == "" {
		return target
	}
	return f.cfg.ProxyURL + url.QueryEscape(target)
}

// Resolve performs exactly one GET and decodes the response.
func (f *Fetcher) Resolve(ctx context.Context, clientID string) (details brand.Details, err error) {
	start := time.Now()
	ctx, span := f.tracer.Start(ctx, "lookup.Resolve", trace.WithAttributes(
		attribute.String("client_id", clientID),
		attribute.Bool("proxied", f.cfg.ProxyURL != ""),
	))
	defer func() {
		kind := "ok"
		if err != nil {
			kind = string(KindOf(err))
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.SetAttributes(attribute.String("outcome", kind))
		span.End()
		f.metrics.observe(kind, start)
	}()

	reqURL := f.RequestURL(clientID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return brand.Details{}, fmt.Errorf("%w: create request: %v", ErrNetwork, err)
	}
	if f.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", f.cfg.UserAgent)
	}

	f.logger.Debug("lookup.request", "client_id", clientID, "url", reqURL)
	resp, err := f.client.Do(req)
	if err != nil {
		return brand.Details{}, fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	defer resp.Body.Close()

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1024))
		return brand.Details{}, fmt.Errorf("%w: upstream returned %s", ErrNetwork, resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.cfg.MaxBodyBytes))
	if err != nil {
		return brand.Details{}, fmt.Errorf("%w: read body: %v", ErrNetwork, err)
	}

	details, err = brand.Extract(bytes.NewReader(body))
	if err != nil {
		return brand.Details{}, err
	}
	return details, nil
}

func originOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "https://accounts.google.com"
	}
	return u.Scheme + "://" + u.Host
}
