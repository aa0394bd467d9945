package server

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"clientlookup/lookup"
)

// EnvPrefix prefixes every environment override, e.g. GCID_SERVER_DEV_MODE.
const EnvPrefix = "GCID_"

// Session defaults
const (
	DefaultSessionTTL    = time.Hour
	DefaultSweepInterval = 5 * time.Minute
	DefaultHSTSMaxAge    = 63072000
)

// Config captures the full application configuration loaded from YAML and environment variables.
type Config struct {
	Server   ServerConfig   `yaml:"server" envPrefix:"SERVER_"`
	Lookup   LookupConfig   `yaml:"lookup" envPrefix:"LOOKUP_"`
	Sessions SessionsConfig `yaml:"sessions" envPrefix:"SESSIONS_"`
	Tracing  TracingConfig  `yaml:"tracing" envPrefix:"TRACING_"`
}

// ServerConfig controls listener, TLS, and HTTP concerns.
type ServerConfig struct {
	PublicURL       string     `yaml:"public_url" env:"PUBLIC_URL"`
	DevMode         bool       `yaml:"dev_mode" env:"DEV_MODE"`
	DevListenAddr   string     `yaml:"dev_listen_addr" env:"DEV_LISTEN_ADDR"`
	HTTPListenAddr  string     `yaml:"http_listen_addr" env:"HTTP_LISTEN_ADDR"`
	HTTPSListenAddr string     `yaml:"https_listen_addr" env:"HTTPS_LISTEN_ADDR"`
	TLS             TLSConfig  `yaml:"tls" envPrefix:"TLS_"`
	CORS            CORSConfig `yaml:"cors" envPrefix:"CORS_"`
}

// TLSConfig defines autocert behaviour.
type TLSConfig struct {
	Domains    []string `yaml:"domains" env:"DOMAINS"`
	Email      string   `yaml:"email" env:"EMAIL"`
	CacheDir   string   `yaml:"cache_dir" env:"CACHE_DIR"`
	HSTSMaxAge int      `yaml:"hsts_max_age" env:"HSTS_MAX_AGE"`
}

// CORSConfig lists origins allowed to call the JSON API.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins" env:"ALLOWED_ORIGINS"`
}

// LookupConfig describes how Google is queried.
type LookupConfig struct {
	AccountsURL     string        `yaml:"accounts_url" env:"ACCOUNTS_URL"`
	ProxyURL        string        `yaml:"proxy_url" env:"PROXY_URL"`
	DisableProxy    bool          `yaml:"disable_proxy" env:"DISABLE_PROXY"`
	FlowName        string        `yaml:"flow_name" env:"FLOW_NAME"`
	ExampleClientID string        `yaml:"example_client_id" env:"EXAMPLE_CLIENT_ID"`
	UserAgent       string        `yaml:"user_agent" env:"USER_AGENT"`
	Timeout         time.Duration `yaml:"timeout" env:"TIMEOUT"`
	MaxBodyBytes    int64         `yaml:"max_body_bytes" env:"MAX_BODY_BYTES"`
}

// SessionsConfig bounds how long an idle browser session keeps its lookup.
type SessionsConfig struct {
	TTL           time.Duration `yaml:"ttl" env:"TTL"`
	SweepInterval time.Duration `yaml:"sweep_interval" env:"SWEEP_INTERVAL"`
}

// TracingConfig enables OTLP span export.
type TracingConfig struct {
	OTLPEndpoint string  `yaml:"otlp_endpoint" env:"OTLP_ENDPOINT"`
	ServiceName  string  `yaml:"service_name" env:"SERVICE_NAME"`
	SampleRatio  float64 `yaml:"sample_ratio" env:"SAMPLE_RATIO"`
}

// EffectiveProxyURL is the relay prefix, or "" to fetch Google directly.
func (l LookupConfig) EffectiveProxyURL() string {
	if l.DisableProxy {
		return ""
	}
	return l.ProxyURL
}

// FetcherConfig converts the section into fetcher settings.
func (l LookupConfig) FetcherConfig() lookup.FetcherConfig {
	return lookup.FetcherConfig{
		AccountsURL:  l.AccountsURL,
		ProxyURL:     l.EffectiveProxyURL(),
		FlowName:     l.FlowName,
		UserAgent:    l.UserAgent,
		Timeout:      l.Timeout,
		MaxBodyBytes: l.MaxBodyBytes,
	}
}

// LoadConfig reads the YAML config file and merges environment overrides.
// An empty path yields the defaults plus environment.
func LoadConfig(path string) (Config, error) {
	cfg := defaultConfig()

	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		sanitized := stripYAMLComments(b)

		decoder := yaml.NewDecoder(bytes.NewReader(sanitized))
		decoder.KnownFields(true)

		if err := decoder.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
			if strings.Contains(err.Error(), "field") && strings.Contains(err.Error(), "not found") {
				slog.Error("Configuration contains unknown keys", "error", err, "file", path)
				return Config{}, fmt.Errorf("invalid config: %w (check for typos or deprecated fields)", err)
			}
			slog.Error("Failed to parse configuration", "error", err, "file", path)
			return Config{}, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		slog.Error("Configuration validation failed", "error", err)
		return Config{}, err
	}

	return cfg, nil
}

func defaultConfig() Config {
	return Config{
		Server: ServerConfig{
			PublicURL:       "http://127.0.0.1:8080",
			DevMode:         true,
			DevListenAddr:   "127.0.0.1:8080",
			HTTPListenAddr:  ":80",
			HTTPSListenAddr: ":443",
			TLS: TLSConfig{
				CacheDir:   ".secrets/tls",
				HSTSMaxAge: DefaultHSTSMaxAge,
			},
		},
		Lookup: LookupConfig{
			AccountsURL:     lookup.DefaultAccountsURL,
			ProxyURL:        lookup.DefaultProxyURL,
			FlowName:        lookup.DefaultFlowName,
			ExampleClientID: lookup.ExampleClientID,
			UserAgent:       "google-client-id-lookup",
			Timeout:         lookup.DefaultTimeout,
			MaxBodyBytes:    lookup.DefaultMaxBodyBytes,
		},
		Sessions: SessionsConfig{
			TTL:           DefaultSessionTTL,
			SweepInterval: DefaultSweepInterval,
		},
		Tracing: TracingConfig{
			ServiceName: "google-client-id-lookup",
			SampleRatio: 1,
		},
	}
}

// DefaultConfig returns the default configuration template.
func DefaultConfig() Config {
	return defaultConfig()
}

func stripYAMLComments(in []byte) []byte {
	lines := bytes.Split(in, []byte("\n"))
	out := make([][]byte, 0, len(lines))
	for _, line := range lines {
		trim := bytes.TrimLeft(line, " \t")
		if len(trim) > 0 && trim[0] == '#' {
			continue
		}
		out = append(out, line)
	}
	return bytes.Join(out, []byte("\n"))
}

func applyEnvOverrides(cfg *Config) error {
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		slog.Error("Failed to parse environment overrides", "error", err)
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Validate performs minimal sanity checks on the config.
func (c Config) Validate() error {
	if c.Server.PublicURL == "" {
		slog.Error("Missing required configuration", "field", "server.public_url")
		return errors.New("server.public_url is required")
	}
	if !isHTTPURL(c.Server.PublicURL) {
		slog.Error("Invalid configuration value", "field", "server.public_url", "value", c.Server.PublicURL, "reason", "must start with http:// or https://")
		return fmt.Errorf("server.public_url must start with http:// or https://, got: %s", c.Server.PublicURL)
	}

	if c.Server.DevMode && c.Server.DevListenAddr == "" {
		slog.Error("Missing required configuration", "field", "server.dev_listen_addr")
		return errors.New("server.dev_listen_addr is required in dev mode")
	}
	if !c.Server.DevMode && len(c.Server.TLS.Domains) == 0 {
		slog.Error("Missing required configuration for production mode", "field", "server.tls.domains")
		return errors.New("server.tls.domains must be provided in production")
	}

	if !isHTTPURL(c.Lookup.AccountsURL) {
		slog.Error("Invalid configuration value", "field", "lookup.accounts_url", "value", c.Lookup.AccountsURL)
		return fmt.Errorf("lookup.accounts_url must start with http:// or https://, got: %s", c.Lookup.AccountsURL)
	}
	if c.Lookup.ProxyURL != "" && !isHTTPURL(c.Lookup.ProxyURL) {
		slog.Error("Invalid configuration value", "field", "lookup.proxy_url", "value", c.Lookup.ProxyURL)
		return fmt.Errorf("lookup.proxy_url must start with http:// or https://, got: %s", c.Lookup.ProxyURL)
	}
	if c.Lookup.Timeout <= 0 {
		slog.Error("Invalid configuration value", "field", "lookup.timeout", "value", c.Lookup.Timeout)
		return fmt.Errorf("lookup.timeout must be positive, got: %s", c.Lookup.Timeout)
	}
	if c.Lookup.MaxBodyBytes <= 0 {
		slog.Error("Invalid configuration value", "field", "lookup.max_body_bytes", "value", c.Lookup.MaxBodyBytes)
		return fmt.Errorf("lookup.max_body_bytes must be positive, got: %d", c.Lookup.MaxBodyBytes)
	}

	if c.Sessions.TTL <= 0 {
		slog.Error("Invalid configuration value", "field", "sessions.ttl", "value", c.Sessions.TTL)
		return fmt.Errorf("sessions.ttl must be positive, got: %s", c.Sessions.TTL)
	}
	if c.Sessions.SweepInterval <= 0 {
		slog.Error("Invalid configuration value", "field", "sessions.sweep_interval", "value", c.Sessions.SweepInterval)
		return fmt.Errorf("sessions.sweep_interval must be positive, got: %s", c.Sessions.SweepInterval)
	}

	if c.Tracing.OTLPEndpoint != "" && !isHTTPURL(c.Tracing.OTLPEndpoint) {
		slog.Error("Invalid configuration value", "field", "tracing.otlp_endpoint", "value", c.Tracing.OTLPEndpoint)
		return fmt.Errorf("tracing.otlp_endpoint must start with http:// or https://, got: %s", c.Tracing.OTLPEndpoint)
	}
	if c.Tracing.SampleRatio < 0 || c.Tracing.SampleRatio > 1 {
		slog.Error("Invalid configuration value", "field", "tracing.sample_ratio", "value", c.Tracing.SampleRatio)
		return fmt.Errorf("tracing.sample_ratio must be between 0 and 1, got: %g", c.Tracing.SampleRatio)
	}

	for i, origin := range c.Server.CORS.AllowedOrigins {
		if origin != "*" && !isHTTPURL(origin) {
			slog.Error("Invalid CORS origin", "index", i, "origin", origin)
			return fmt.Errorf("server.cors.allowed_origins[%d] must be * or an http(s) origin, got: %s", i, origin)
		}
	}

	return nil
}

func isHTTPURL(v string) bool {
	return strings.HasPrefix(v, "http://") || strings.HasPrefix(v, "https://")
}
