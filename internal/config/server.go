package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ServerConfig holds the line server settings.
type ServerConfig struct {
	// TCPAddress, UDPAddress: listen addresses; empty disables the transport.
	TCPAddress string `yaml:"tcp_address"`
	UDPAddress string `yaml:"udp_address"`

	// IdleTimeoutSeconds closes a TCP or WebSocket peer that stays silent this long.
	IdleTimeoutSeconds int `yaml:"idle_timeout_seconds"`

	// MaxDatagramSize is the largest UDP request read.
	MaxDatagramSize int `yaml:"max_datagram_size"`

	WebSocket   WebSocketConfig   `yaml:"websocket"`
	Connections ConnectionsConfig `yaml:"connections"`
	RateLimit   RateLimitConfig   `yaml:"rate_limit"`
}

// RateLimitConfig bounds requests per source IP across all transports.
type RateLimitConfig struct {
	// MaxRequests allowed per IP inside the window. 0 disables the limit.
	MaxRequests int `yaml:"max_requests"`

	// WindowSeconds is the length of the sliding window.
	WindowSeconds int `yaml:"window_seconds"`
}

// ConnectionsConfig holds connection limit settings.
type ConnectionsConfig struct {
	// MaxPerIP is the maximum concurrent connections allowed from a single IP address.
	// 0 means unlimited.
	MaxPerIP int `yaml:"max_per_ip"`

	// MaxTotal is the maximum total concurrent connections to the server.
	// 0 means unlimited.
	MaxTotal int `yaml:"max_total"`
}

// WebSocketConfig holds WebSocket-specific settings.
type WebSocketConfig struct {
	// Address to serve /ws on; empty disables WebSocket.
	Address string `yaml:"address"`

	// AllowedOrigins is a list of origins allowed to connect via WebSocket.
	// Empty list enforces same-origin policy, "*" allows all.
	AllowedOrigins []string `yaml:"allowed_origins"`

	// MaxMessageSize is the maximum WebSocket message size in bytes.
	MaxMessageSize int64 `yaml:"max_message_size"`
}

// DefaultServerConfig returns the stock line server settings.
func DefaultServerConfig() *ServerConfig {
	return &ServerConfig{
		TCPAddress:         ":8080",
		UDPAddress:         ":8080",
		IdleTimeoutSeconds: 300,
		MaxDatagramSize:    1024,
		WebSocket: WebSocketConfig{
			Address:        "",
			AllowedOrigins: []string{},
			MaxMessageSize: 4096,
		},
		Connections: ConnectionsConfig{
			MaxPerIP: 16,
			MaxTotal: 256,
		},
		RateLimit: RateLimitConfig{
			MaxRequests:   100,
			WindowSeconds: 10,
		},
	}
}

// LoadServerConfig loads server configuration from a YAML file.
// If the file doesn't exist, returns default config.
func LoadServerConfig(path string) (*ServerConfig, error) {
	cfg := DefaultServerConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return DefaultServerConfig(), fmt.Errorf("parse %s: %w", path, err)
	}

	return cfg, nil
}

// IdleTimeout returns the per-peer silence bound, 0 when disabled.
func (c *ServerConfig) IdleTimeout() time.Duration {
	return time.Duration(c.IdleTimeoutSeconds) * time.Second
}

// IsOriginAllowed checks if the given origin is allowed based on the config.
func (c *WebSocketConfig) IsOriginAllowed(origin, requestHost string) bool {
	if len(c.AllowedOrigins) == 0 {
		return isSameOrigin(origin, requestHost)
	}

	for _, allowed := range c.AllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}

	return false
}

// isSameOrigin checks if the origin matches the request host.
// No Origin header at all (command line tools) counts as same-origin.
func isSameOrigin(origin, requestHost string) bool {
	if origin == "" {
		return true
	}

	originHost := origin
	if idx := strings.Index(origin, "://"); idx != -1 {
		originHost = origin[idx+3:]
	}
	originHost = strings.TrimSuffix(originHost, "/")

	return originHost == requestHost
}
