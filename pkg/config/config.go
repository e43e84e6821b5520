package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/google/uuid"
)

type Config struct {
	Server   ServerConfig   `json:"server"`
	Session  SessionConfig  `json:"session"`
	Beacon   BeaconConfig   `json:"beacon"`
	Realtime RealtimeConfig `json:"realtime"`
	Log      LogConfig      `json:"log"`
}

type ServerConfig struct {
	SocketURL  string `env:"PROXIMA_SERVER_SOCKET_URL"   json:"socket_url"`
	APIBaseURL string `env:"PROXIMA_SERVER_API_BASE_URL" json:"api_base_url"`

	// Timeout bounds REST hydration calls, which otherwise have none.
	TimeoutSeconds int `env:"PROXIMA_SERVER_TIMEOUT_SECONDS" json:"timeout_seconds"`
}

type SessionConfig struct {
	UserID      string `env:"PROXIMA_SESSION_USER_ID"      json:"user_id,omitempty"`
	AccessToken string `env:"PROXIMA_SESSION_ACCESS_TOKEN" json:"access_token,omitempty"`
}

type BeaconConfig struct {
	ServiceUUID    string `env:"PROXIMA_BEACON_SERVICE_UUID"    json:"service_uuid"`
	ManufacturerID uint16 `env:"PROXIMA_BEACON_MANUFACTURER_ID" json:"manufacturer_id"`
	ScanBuffer     int    `env:"PROXIMA_BEACON_SCAN_BUFFER"     json:"scan_buffer"`
}

type RealtimeConfig struct {
	AckTimeoutMS         int `env:"PROXIMA_REALTIME_ACK_TIMEOUT_MS"           json:"ack_timeout_ms"`
	TypingDebounceMS     int `env:"PROXIMA_REALTIME_TYPING_DEBOUNCE_MS"       json:"typing_debounce_ms"`
	ReconnectAttempts    int `env:"PROXIMA_REALTIME_RECONNECT_ATTEMPTS"       json:"reconnect_attempts"`
	ReconnectBaseDelayMS int `env:"PROXIMA_REALTIME_RECONNECT_BASE_DELAY_MS" json:"reconnect_base_delay_ms"`
	ReconnectMaxDelayMS  int `env:"PROXIMA_REALTIME_RECONNECT_MAX_DELAY_MS"  json:"reconnect_max_delay_ms"`
	HandshakeTimeoutMS   int `env:"PROXIMA_REALTIME_HANDSHAKE_TIMEOUT_MS"     json:"handshake_timeout_ms"`
	EventBuffer          int `env:"PROXIMA_REALTIME_EVENT_BUFFER"             json:"event_buffer"`
}

type LogConfig struct {
	Level string `env:"PROXIMA_LOG_LEVEL" json:"level"`
}

func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			SocketURL:      "ws://localhost:3000",
			APIBaseURL:     "http://localhost:3000/api",
			TimeoutSeconds: 15,
		},
		Beacon: BeaconConfig{
			ServiceUUID:    "6e7f0001-5a1c-4b8e-9d3f-b1e5c0a7d2f4",
			ManufacturerID: 0x00FF,
			ScanBuffer:     64,
		},
		Realtime: RealtimeConfig{
			AckTimeoutMS:         3000,
			TypingDebounceMS:     3000,
			ReconnectAttempts:    5,
			ReconnectBaseDelayMS: 500,
			ReconnectMaxDelayMS:  30000,
			HandshakeTimeoutMS:   10000,
			EventBuffer:          100,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	if err == nil {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
	}

	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func SaveConfig(path string, cfg *Config) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	return os.WriteFile(path, data, 0o600)
}

// Validate checks fields that would otherwise fail deep inside a component.
func (c *Config) Validate() error {
	var errs []error
	if _, err := uuid.Parse(c.Beacon.ServiceUUID); err != nil {
		errs = append(errs, fmt.Errorf("beacon.service_uuid: %w", err))
	}
	if u, err := url.Parse(c.Server.SocketURL); err != nil || u.Host == "" {
		errs = append(errs, fmt.Errorf("server.socket_url: invalid URL %q", c.Server.SocketURL))
	}
	for name, v := range map[string]int{
		"realtime.ack_timeout_ms":          c.Realtime.AckTimeoutMS,
		"realtime.typing_debounce_ms":      c.Realtime.TypingDebounceMS,
		"realtime.reconnect_base_delay_ms": c.Realtime.ReconnectBaseDelayMS,
		"realtime.reconnect_max_delay_ms":  c.Realtime.ReconnectMaxDelayMS,
		"realtime.handshake_timeout_ms":    c.Realtime.HandshakeTimeoutMS,
	} {
		if v <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %d", name, v))
		}
	}
	if c.Realtime.ReconnectAttempts < 1 {
		errs = append(errs, errors.New("realtime.reconnect_attempts must be at least 1"))
	}
	return errors.Join(errs...)
}

// ServiceUUID returns the parsed discovery service identifier.
func (c *Config) ServiceUUID() uuid.UUID {
	return uuid.MustParse(c.Beacon.ServiceUUID)
}

func (c *Config) AckTimeout() time.Duration {
	return time.Duration(c.Realtime.AckTimeoutMS) * time.Millisecond
}

func (c *Config) TypingDebounce() time.Duration {
	return time.Duration(c.Realtime.TypingDebounceMS) * time.Millisecond
}

func (c *Config) ReconnectBaseDelay() time.Duration {
	return time.Duration(c.Realtime.ReconnectBaseDelayMS) * time.Millisecond
}

func (c *Config) ReconnectMaxDelay() time.Duration {
	return time.Duration(c.Realtime.ReconnectMaxDelayMS) * time.Millisecond
}

func (c *Config) HandshakeTimeout() time.Duration {
	return time.Duration(c.Realtime.HandshakeTimeoutMS) * time.Millisecond
}

func (c *Config) ServerTimeout() time.Duration {
	if c.Server.TimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(c.Server.TimeoutSeconds) * time.Second
}

func expandHome(path string) string {
	if path == "" {
		return path
	}
	if path[0] == '~' {
		home, _ := os.UserHomeDir()
		if len(path) > 1 && path[1] == '/' {
			return home + path[1:]
		}
		return home
	}
	return path
}

// ExpandPath resolves a leading ~ and surrounding whitespace.
func ExpandPath(path string) string {
	return expandHome(strings.TrimSpace(path))
}
