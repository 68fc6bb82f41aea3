package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server  ServerConfig
	Browser BrowserConfig
	Render  RenderConfig
	Auth    AuthConfig
	Log     LogConfig
	Client  ClientConfig
}

// ServerConfig controls the HTTP server.
type ServerConfig struct {
	Host string // default: "0.0.0.0"
	Port int    // default: 3000
	Mode string // "debug", "release", "test"; default: "release"
}

// ProxyConfig is the upstream proxy every browser session is bound to.
// It is used only when all three fields are set.
type ProxyConfig struct {
	Server   string
	Username string
	Password string
}

// Enabled reports whether the proxy is fully configured.
// A partially configured proxy (e.g. no password) is ignored.
func (p ProxyConfig) Enabled() bool {
	return p.Server != "" && p.Username != "" && p.Password != ""
}

// BrowserConfig controls the shared Rod browser instance and the sessions
// created inside it.
type BrowserConfig struct {
	// Headless controls whether the browser runs headless.
	Headless bool // default: true

	// NoSandbox disables Chrome's sandbox (needed in Docker).
	NoSandbox bool // default: false

	// BrowserBin overrides the Chromium binary path.
	BrowserBin string

	// Proxy is applied to every session when fully configured.
	Proxy ProxyConfig

	// BlockMedia aborts image, audio and video sub-requests.
	BlockMedia bool // default: false

	// Stealth injects the go-rod/stealth evasion script into every session.
	Stealth bool // default: false
}

// RenderConfig controls per-request render behaviour.
type RenderConfig struct {
	// DefaultTimeout bounds navigation when the client sends no timeout.
	DefaultTimeout time.Duration // default: 15s

	// MaxTimeout is the largest navigation timeout a client may request.
	MaxTimeout time.Duration // default: 120s

	// MaxWait is the largest post-load settle delay a client may request.
	MaxWait time.Duration // default: 60s
}

// AuthConfig controls bearer-token authentication of the render routes.
type AuthConfig struct {
	// Tokens is the list of accepted bearer tokens. Empty disables auth.
	Tokens []string
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string // default: "info"
	Format string // "json" or "text"; default: "json"
}

// ClientConfig configures the remote scraping API client used by the MCP
// front-end.
type ClientConfig struct {
	APIKey       string
	APIURL       string        // default: "https://api.firecrawl.dev"
	PollInterval time.Duration // default: 2s
	PollTimeout  time.Duration // default: 0 (no deadline)
	MaxAttempts  int           // default: 3
	BaseDelay    time.Duration // default: 500ms
}

// envBindings maps config keys to the environment variables they are read
// from, in priority order.
var envBindings = map[string][]string{
	"server.host":            {"SCRAPEKIT_HOST", "HOST"},
	"server.port":            {"SCRAPEKIT_PORT", "PORT"},
	"server.mode":            {"SCRAPEKIT_MODE"},
	"browser.headless":       {"SCRAPEKIT_HEADLESS"},
	"browser.no_sandbox":     {"SCRAPEKIT_NO_SANDBOX"},
	"browser.bin":            {"SCRAPEKIT_BROWSER_BIN"},
	"browser.block_media":    {"BLOCK_MEDIA"},
	"browser.stealth":        {"STEALTH"},
	"proxy.server":           {"PROXY_SERVER"},
	"proxy.username":         {"PROXY_USERNAME"},
	"proxy.password":         {"PROXY_PASSWORD"},
	"render.default_timeout": {"SCRAPEKIT_DEFAULT_TIMEOUT"},
	"render.max_timeout":     {"SCRAPEKIT_MAX_TIMEOUT"},
	"render.max_wait":        {"SCRAPEKIT_MAX_WAIT"},
	"auth.tokens":            {"AUTH_TOKENS"},
	"log.level":              {"LOG_LEVEL", "FIRECRAWL_LOGGING_LEVEL"},
	"log.format":             {"LOG_FORMAT"},
	"client.api_key":         {"FIRECRAWL_API_KEY"},
	"client.api_url":         {"FIRECRAWL_API_URL"},
	"client.poll_interval":   {"SCRAPEKIT_POLL_INTERVAL"},
	"client.poll_timeout":    {"SCRAPEKIT_POLL_TIMEOUT"},
	"client.max_attempts":    {"SCRAPEKIT_RETRY_ATTEMPTS"},
	"client.base_delay":      {"SCRAPEKIT_RETRY_BASE_DELAY"},
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 3000)
	v.SetDefault("server.mode", "release")
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.no_sandbox", false)
	v.SetDefault("browser.bin", "")
	v.SetDefault("browser.block_media", false)
	v.SetDefault("browser.stealth", false)
	v.SetDefault("render.default_timeout", 15*time.Second)
	v.SetDefault("render.max_timeout", 120*time.Second)
	v.SetDefault("render.max_wait", 60*time.Second)
	v.SetDefault("auth.tokens", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("client.api_url", "https://api.firecrawl.dev")
	v.SetDefault("client.poll_interval", 2*time.Second)
	v.SetDefault("client.poll_timeout", time.Duration(0))
	v.SetDefault("client.max_attempts", 3)
	v.SetDefault("client.base_delay", 500*time.Millisecond)
}

// Load reads configuration from environment variables, an optional
// scrapekit.{yaml,json,toml} file and built-in defaults, in that order of
// precedence.
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	for key, envs := range envBindings {
		if err := v.BindEnv(append([]string{key}, envs...)...); err != nil {
			return nil, fmt.Errorf("config: bind %s: %w", key, err)
		}
	}

	v.SetConfigName("scrapekit")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/scrapekit")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("config: read %s: %w", v.ConfigFileUsed(), err)
		}
	}

	cfg := &Config{
		Server: ServerConfig{
			Host: v.GetString("server.host"),
			Port: v.GetInt("server.port"),
			Mode: v.GetString("server.mode"),
		},
		Browser: BrowserConfig{
			Headless:   v.GetBool("browser.headless"),
			NoSandbox:  v.GetBool("browser.no_sandbox"),
			BrowserBin: v.GetString("browser.bin"),
			BlockMedia: v.GetBool("browser.block_media"),
			Stealth:    v.GetBool("browser.stealth"),
			Proxy: ProxyConfig{
				Server:   v.GetString("proxy.server"),
				Username: v.GetString("proxy.username"),
				Password: v.GetString("proxy.password"),
			},
		},
		Render: RenderConfig{
			DefaultTimeout: v.GetDuration("render.default_timeout"),
			MaxTimeout:     v.GetDuration("render.max_timeout"),
			MaxWait:        v.GetDuration("render.max_wait"),
		},
		Auth: AuthConfig{
			Tokens: splitList(v.GetString("auth.tokens")),
		},
		Log: LogConfig{
			Level:  strings.ToLower(v.GetString("log.level")),
			Format: strings.ToLower(v.GetString("log.format")),
		},
		Client: ClientConfig{
			APIKey:       v.GetString("client.api_key"),
			APIURL:       strings.TrimRight(v.GetString("client.api_url"), "/"),
			PollInterval: v.GetDuration("client.poll_interval"),
			PollTimeout:  v.GetDuration("client.poll_timeout"),
			MaxAttempts:  v.GetInt("client.max_attempts"),
			BaseDelay:    v.GetDuration("client.base_delay"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("config: invalid port %d", c.Server.Port)
	}
	// A bare number such as "15000" parses as nanoseconds.
	durations := []struct {
		key string
		d   time.Duration
	}{
		{"render.default_timeout", c.Render.DefaultTimeout},
		{"render.max_timeout", c.Render.MaxTimeout},
		{"render.max_wait", c.Render.MaxWait},
		{"client.poll_interval", c.Client.PollInterval},
		{"client.poll_timeout", c.Client.PollTimeout},
		{"client.base_delay", c.Client.BaseDelay},
	}
	for _, v := range durations {
		if v.d > 0 && v.d < time.Millisecond {
			return fmt.Errorf("config: %s is %s; durations need a unit, e.g. \"15s\" or \"500ms\"", v.key, v.d)
		}
	}
	if c.Render.DefaultTimeout <= 0 {
		return fmt.Errorf("config: default timeout must be positive, got %s", c.Render.DefaultTimeout)
	}
	if c.Render.MaxTimeout < c.Render.DefaultTimeout {
		c.Render.MaxTimeout = c.Render.DefaultTimeout
	}
	if c.Client.MaxAttempts < 1 {
		c.Client.MaxAttempts = 1
	}
	return nil
}

// splitList splits a comma-separated value, dropping empty entries.
func splitList(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
