package server

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clientlookup/lookup"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.True(t, cfg.Server.DevMode)
	assert.Equal(t, "https://accounts.google.com", cfg.Lookup.AccountsURL)
	assert.Equal(t, lookup.DefaultProxyURL, cfg.Lookup.EffectiveProxyURL())
	assert.Equal(t, lookup.ExampleClientID, cfg.Lookup.ExampleClientID)
	assert.Equal(t, 30*time.Second, cfg.Lookup.Timeout)
	assert.Equal(t, DefaultSessionTTL, cfg.Sessions.TTL)
}

func TestLoadConfigFromYAML(t *testing.T) {
	path := writeConfig(t, `# lookup service
server:
  public_url: http://localhost:9090
  dev_mode: true
  dev_listen_addr: 127.0.0.1:9090
  cors:
    allowed_origins: ["https://tools.example.com"]
lookup:
  # fetch Google directly
  proxy_url: ""
  timeout: 5s
  example_client_id: 42.apps.googleusercontent.com
sessions:
  ttl: 10m
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:9090", cfg.Server.PublicURL)
	assert.Equal(t, "127.0.0.1:9090", cfg.Server.DevListenAddr)
	assert.Equal(t, []string{"https://tools.example.com"}, cfg.Server.CORS.AllowedOrigins)
	assert.Empty(t, cfg.Lookup.EffectiveProxyURL())
	assert.Equal(t, 5*time.Second, cfg.Lookup.Timeout)
	assert.Equal(t, "42.apps.googleusercontent.com", cfg.Lookup.ExampleClientID)
	assert.Equal(t, 10*time.Minute, cfg.Sessions.TTL)
	assert.Equal(t, DefaultSweepInterval, cfg.Sessions.SweepInterval)
}

func TestLoadConfigEmptyFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, "# nothing here\n"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadConfigRejectsUnknownKeys(t *testing.T) {
	path := writeConfig(t, `lookup:
  proxy: https://corsproxy.io/?url=
`)
	_, err := LoadConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid config")
}

func TestLoadConfigAppliesEnvOverrides(t *testing.T) {
	path := writeConfig(t, `server:
  public_url: http://localhost:8080
`)

	t.Setenv("GCID_SERVER_PUBLIC_URL", "https://lookup.example.com")
	t.Setenv("GCID_LOOKUP_DISABLE_PROXY", "true")
	t.Setenv("GCID_LOOKUP_TIMEOUT", "2s")
	t.Setenv("GCID_SERVER_CORS_ALLOWED_ORIGINS", "https://a.example,https://b.example")
	t.Setenv("GCID_TRACING_OTLP_ENDPOINT", "http://collector:4318")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "https://lookup.example.com", cfg.Server.PublicURL)
	assert.Empty(t, cfg.Lookup.EffectiveProxyURL())
	assert.Equal(t, 2*time.Second, cfg.Lookup.Timeout)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.CORS.AllowedOrigins)
	assert.Equal(t, "http://collector:4318", cfg.Tracing.OTLPEndpoint)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"public_url_missing", func(c *Config) { c.Server.PublicURL = "" }},
		{"public_url_scheme", func(c *Config) { c.Server.PublicURL = "ftp://x" }},
		{"production_without_domains", func(c *Config) { c.Server.DevMode = false }},
		{"accounts_url", func(c *Config) { c.Lookup.AccountsURL = "accounts.google.com" }},
		{"proxy_url", func(c *Config) { c.Lookup.ProxyURL = "corsproxy.io/?url=" }},
		{"timeout", func(c *Config) { c.Lookup.Timeout = 0 }},
		{"max_body", func(c *Config) { c.Lookup.MaxBodyBytes = 0 }},
		{"session_ttl", func(c *Config) { c.Sessions.TTL = -time.Second }},
		{"sweep_interval", func(c *Config) { c.Sessions.SweepInterval = 0 }},
		{"cors_origin", func(c *Config) { c.Server.CORS.AllowedOrigins = []string{"example.com"} }},
		{"otlp_endpoint", func(c *Config) { c.Tracing.OTLPEndpoint = "collector:4318" }},
		{"sample_ratio", func(c *Config) { c.Tracing.SampleRatio = 1.5 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			require.Error(t, cfg.Validate())
		})
	}
}

func TestConfigValidateProduction(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Server.DevMode = false
	cfg.Server.PublicURL = "https://lookup.example.com"
	cfg.Server.TLS.Domains = []string{"lookup.example.com"}
	cfg.Server.CORS.AllowedOrigins = []string{"*"}
	require.NoError(t, cfg.Validate())
}
