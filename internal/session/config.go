package session

import (
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/EgorLis/wslogon/internal/wire"
)

// Credentials уходят в logon при каждом (пере)подключении.
type Credentials struct {
	User       string
	Password   string
	AppName    string
	AppVersion string
}

// BackoffConfig задаёт темп переподключений.
type BackoffConfig struct {
	InitialDelay time.Duration
	Multiplier   float64
	MaxDelay     time.Duration
	Jitter       bool
}

// Config содержит всё, что нужно Session при создании.
type Config struct {
	Endpoint    string
	Credentials Credentials

	Backoff           BackoffConfig
	HandshakeTimeout  time.Duration
	WriteTimeout      time.Duration
	ReadLimit         int64
	PingInterval      time.Duration
	HeartbeatInterval time.Duration
	// MaxPending ограничивает очередь до авторизации; 0 без ограничения.
	MaxPending int

	Logger *zerolog.Logger
	Codec  wire.Codec
	Dialer Dialer
}

// DefaultConfig возвращает значения для незаполненных полей.
func DefaultConfig() Config {
	return Config{
		Backoff: BackoffConfig{
			InitialDelay: time.Second,
			Multiplier:   2.0,
			MaxDelay:     30 * time.Second,
			Jitter:       true,
		},
		HandshakeTimeout: 10 * time.Second,
		WriteTimeout:     5 * time.Second,
		ReadLimit:        64 << 20,
	}
}

func (c Config) validate() error {
	if strings.TrimSpace(c.Endpoint) == "" {
		return fmt.Errorf("%w: missing endpoint", ErrInvalidConfig)
	}
	if !strings.HasPrefix(c.Endpoint, "ws://") && !strings.HasPrefix(c.Endpoint, "wss://") {
		return fmt.Errorf("%w: endpoint %q is not a ws:// or wss:// url", ErrInvalidConfig, c.Endpoint)
	}
	if strings.TrimSpace(c.Credentials.User) == "" {
		return fmt.Errorf("%w: missing user", ErrInvalidConfig)
	}
	if c.MaxPending < 0 {
		return fmt.Errorf("%w: negative max pending", ErrInvalidConfig)
	}
	return nil
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = def.HandshakeTimeout
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = def.WriteTimeout
	}
	if c.ReadLimit <= 0 {
		c.ReadLimit = def.ReadLimit
	}
	if c.Backoff.Multiplier == 0 && c.Backoff.MaxDelay == 0 && c.Backoff.InitialDelay == 0 && !c.Backoff.Jitter {
		// нулевой backoff: переподключаемся сразу
		c.Backoff = BackoffConfig{Multiplier: 1}
	}
	if c.Codec == nil {
		c.Codec = wire.ProtoCodec{}
	}
	if c.Dialer == nil {
		c.Dialer = WebsocketDialer{HandshakeTimeout: c.HandshakeTimeout, ReadLimit: c.ReadLimit}
	}
	return c
}
