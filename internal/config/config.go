package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/EgorLis/wslogon/internal/observability"
	"github.com/EgorLis/wslogon/internal/session"
)

const (
	EnvEndpoint = "WSLOGON_ENDPOINT"
	EnvUser     = "WSLOGON_USER"
	EnvPassword = "WSLOGON_PASSWORD"
	EnvLogLevel = observability.EnvLogLevel
)

var ErrInvalid = errors.New("config: invalid")

// File is the resolved client configuration.
type File struct {
	Endpoint    string
	Credentials session.Credentials

	LogLevel    string
	LogPretty   bool
	MetricsAddr string

	Backoff           session.BackoffConfig
	HandshakeTimeout  time.Duration
	WriteTimeout      time.Duration
	PingInterval      time.Duration
	HeartbeatInterval time.Duration
	ReadLimit         int64
	MaxPending        int
}

type fileConfig struct {
	Endpoint    string `toml:"endpoint"`
	LogLevel    string `toml:"log_level"`
	LogPretty   bool   `toml:"log_pretty"`
	MetricsAddr string `toml:"metrics_addr"`

	Credentials struct {
		User       string `toml:"user"`
		Password   string `toml:"password"`
		AppName    string `toml:"app_name"`
		AppVersion string `toml:"app_version"`
	} `toml:"credentials"`

	Session struct {
		HandshakeTimeout  string `toml:"handshake_timeout"`
		WriteTimeout      string `toml:"write_timeout"`
		PingInterval      string `toml:"ping_interval"`
		HeartbeatInterval string `toml:"heartbeat_interval"`
		ReadLimit         int64  `toml:"read_limit"`
		MaxPending        int    `toml:"max_pending"`
	} `toml:"session"`

	Backoff struct {
		Initial    string  `toml:"initial"`
		Multiplier float64 `toml:"multiplier"`
		Max        string  `toml:"max"`
		Jitter     bool    `toml:"jitter"`
	} `toml:"backoff"`
}

// Default is what Load starts from before applying the file and environment.
func Default() File {
	def := session.DefaultConfig()
	return File{
		Credentials: session.Credentials{
			AppName:    "wslogon",
			AppVersion: "dev",
		},
		LogLevel:          "info",
		LogPretty:         true,
		Backoff:           def.Backoff,
		HandshakeTimeout:  def.HandshakeTimeout,
		WriteTimeout:      def.WriteTimeout,
		PingInterval:      30 * time.Second,
		HeartbeatInterval: 0,
		ReadLimit:         def.ReadLimit,
	}
}

// Load reads path over the defaults and then applies environment overrides.
// An empty path skips the file.
func Load(path string) (File, error) {
	cfg := Default()
	if strings.TrimSpace(path) != "" {
		if err := cfg.overlayFile(path); err != nil {
			return File{}, err
		}
	}
	cfg.overlayEnv()
	if err := cfg.Validate(); err != nil {
		return File{}, err
	}
	return cfg, nil
}

func (cfg *File) overlayFile(path string) error {
	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return fmt.Errorf("load config %s: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return fmt.Errorf("%w: unknown key %q", ErrInvalid, undecoded[0].String())
	}

	if meta.IsDefined("endpoint") {
		cfg.Endpoint = strings.TrimSpace(raw.Endpoint)
	}
	if meta.IsDefined("log_level") {
		cfg.LogLevel = strings.TrimSpace(raw.LogLevel)
	}
	if meta.IsDefined("log_pretty") {
		cfg.LogPretty = raw.LogPretty
	}
	if meta.IsDefined("metrics_addr") {
		cfg.MetricsAddr = strings.TrimSpace(raw.MetricsAddr)
	}

	if meta.IsDefined("credentials", "user") {
		cfg.Credentials.User = strings.TrimSpace(raw.Credentials.User)
	}
	if meta.IsDefined("credentials", "password") {
		cfg.Credentials.Password = raw.Credentials.Password
	}
	if meta.IsDefined("credentials", "app_name") {
		cfg.Credentials.AppName = strings.TrimSpace(raw.Credentials.AppName)
	}
	if meta.IsDefined("credentials", "app_version") {
		cfg.Credentials.AppVersion = strings.TrimSpace(raw.Credentials.AppVersion)
	}

	durations := []struct {
		key []string
		raw string
		dst *time.Duration
	}{
		{[]string{"session", "handshake_timeout"}, raw.Session.HandshakeTimeout, &cfg.HandshakeTimeout},
		{[]string{"session", "write_timeout"}, raw.Session.WriteTimeout, &cfg.WriteTimeout},
		{[]string{"session", "ping_interval"}, raw.Session.PingInterval, &cfg.PingInterval},
		{[]string{"session", "heartbeat_interval"}, raw.Session.HeartbeatInterval, &cfg.HeartbeatInterval},
		{[]string{"backoff", "initial"}, raw.Backoff.Initial, &cfg.Backoff.InitialDelay},
		{[]string{"backoff", "max"}, raw.Backoff.Max, &cfg.Backoff.MaxDelay},
	}
	for _, d := range durations {
		if !meta.IsDefined(d.key...) {
			continue
		}
		v, err := time.ParseDuration(strings.TrimSpace(d.raw))
		if err != nil {
			return fmt.Errorf("%w: parse %s: %v", ErrInvalid, strings.Join(d.key, "."), err)
		}
		*d.dst = v
	}

	if meta.IsDefined("session", "read_limit") {
		cfg.ReadLimit = raw.Session.ReadLimit
	}
	if meta.IsDefined("session", "max_pending") {
		cfg.MaxPending = raw.Session.MaxPending
	}
	if meta.IsDefined("backoff", "multiplier") {
		cfg.Backoff.Multiplier = raw.Backoff.Multiplier
	}
	if meta.IsDefined("backoff", "jitter") {
		cfg.Backoff.Jitter = raw.Backoff.Jitter
	}
	return nil
}

func (cfg *File) overlayEnv() {
	if v := strings.TrimSpace(os.Getenv(EnvEndpoint)); v != "" {
		cfg.Endpoint = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvUser)); v != "" {
		cfg.Credentials.User = v
	}
	if v, ok := os.LookupEnv(EnvPassword); ok {
		cfg.Credentials.Password = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogLevel)); v != "" {
		cfg.LogLevel = v
	}
}

func (cfg File) Validate() error {
	if cfg.Endpoint == "" {
		return fmt.Errorf("%w: endpoint is required (set endpoint or %s)", ErrInvalid, EnvEndpoint)
	}
	if !strings.HasPrefix(cfg.Endpoint, "ws://") && !strings.HasPrefix(cfg.Endpoint, "wss://") {
		return fmt.Errorf("%w: endpoint %q must use ws:// or wss://", ErrInvalid, cfg.Endpoint)
	}
	if cfg.Credentials.User == "" {
		return fmt.Errorf("%w: credentials.user is required (set it or %s)", ErrInvalid, EnvUser)
	}
	if cfg.MaxPending < 0 {
		return fmt.Errorf("%w: session.max_pending must be >= 0", ErrInvalid)
	}
	if cfg.Backoff.Multiplier != 0 && cfg.Backoff.Multiplier < 1 {
		return fmt.Errorf("%w: backoff.multiplier must be >= 1", ErrInvalid)
	}
	for name, d := range map[string]time.Duration{
		"session.handshake_timeout":  cfg.HandshakeTimeout,
		"session.write_timeout":      cfg.WriteTimeout,
		"session.ping_interval":      cfg.PingInterval,
		"session.heartbeat_interval": cfg.HeartbeatInterval,
		"backoff.initial":            cfg.Backoff.InitialDelay,
		"backoff.max":                cfg.Backoff.MaxDelay,
	} {
		if d < 0 {
			return fmt.Errorf("%w: %s must not be negative", ErrInvalid, name)
		}
	}
	return nil
}

// SessionConfig converts the file into a session.Config. Logger, Codec and
// Dialer are left for the caller.
func (cfg File) SessionConfig() session.Config {
	return session.Config{
		Endpoint:          cfg.Endpoint,
		Credentials:       cfg.Credentials,
		Backoff:           cfg.Backoff,
		HandshakeTimeout:  cfg.HandshakeTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		ReadLimit:         cfg.ReadLimit,
		PingInterval:      cfg.PingInterval,
		HeartbeatInterval: cfg.HeartbeatInterval,
		MaxPending:        cfg.MaxPending,
	}
}
