package config

import (
	"testing"
	"time"
)

func TestDefaultServerConfig(t *testing.T) {
	cfg := DefaultServerConfig()

	if cfg.TCPAddress != ":8080" || cfg.UDPAddress != ":8080" {
		t.Errorf("expected both transports on :8080, got tcp=%q udp=%q", cfg.TCPAddress, cfg.UDPAddress)
	}
	if cfg.WebSocket.Address != "" {
		t.Errorf("expected WebSocket disabled by default, got %q", cfg.WebSocket.Address)
	}
	if len(cfg.WebSocket.AllowedOrigins) != 0 {
		t.Errorf("expected empty allowed origins by default, got %v", cfg.WebSocket.AllowedOrigins)
	}
	if cfg.IdleTimeout() != 5*time.Minute {
		t.Errorf("expected idle timeout 5m, got %v", cfg.IdleTimeout())
	}
	if cfg.RateLimit.MaxRequests != 100 || cfg.RateLimit.WindowSeconds != 10 {
		t.Errorf("rate limit = %+v, want 100 per 10s", cfg.RateLimit)
	}
}

func TestLoadServerConfig_FileNotExists(t *testing.T) {
	cfg, err := LoadServerConfig("/nonexistent/path/server.yaml")
	if err != nil {
		t.Errorf("expected no error for missing file, got %v", err)
	}
	if cfg.MaxDatagramSize != 1024 {
		t.Errorf("expected default datagram size, got %d", cfg.MaxDatagramSize)
	}
}

func TestLoadServerConfig_ValidFile(t *testing.T) {
	path := writeConfig(t, `
tcp_address: "127.0.0.1:9000"
udp_address: ""
websocket:
  address: ":9443"
  allowed_origins:
    - "https://example.com"
  max_message_size: 8192
connections:
  max_per_ip: 2
rate_limit:
  max_requests: 0
`)

	cfg, err := LoadServerConfig(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.TCPAddress != "127.0.0.1:9000" {
		t.Errorf("tcp address = %q", cfg.TCPAddress)
	}
	if cfg.UDPAddress != "" {
		t.Errorf("udp should be disabled, got %q", cfg.UDPAddress)
	}
	if cfg.WebSocket.Address != ":9443" || cfg.WebSocket.MaxMessageSize != 8192 {
		t.Errorf("websocket = %+v", cfg.WebSocket)
	}
	if cfg.Connections.MaxPerIP != 2 {
		t.Errorf("max per ip = %d, want 2", cfg.Connections.MaxPerIP)
	}
	if cfg.Connections.MaxTotal != 256 {
		t.Errorf("max total should keep default 256, got %d", cfg.Connections.MaxTotal)
	}
	if cfg.RateLimit.MaxRequests != 0 || cfg.RateLimit.WindowSeconds != 10 {
		t.Errorf("rate limit = %+v, want disabled with default window", cfg.RateLimit)
	}
}

func TestIsOriginAllowed(t *testing.T) {
	sameOrigin := WebSocketConfig{}
	if !sameOrigin.IsOriginAllowed("", "localhost:9443") {
		t.Error("expected empty origin to be allowed (same-origin)")
	}
	if !sameOrigin.IsOriginAllowed("http://localhost:9443/", "localhost:9443") {
		t.Error("expected matching origin to be allowed")
	}
	if sameOrigin.IsOriginAllowed("http://evil.com", "localhost:9443") {
		t.Error("expected different origin to be rejected")
	}

	wildcard := WebSocketConfig{AllowedOrigins: []string{"*"}}
	if !wildcard.IsOriginAllowed("http://anything.com", "localhost:9443") {
		t.Error("expected wildcard to allow any origin")
	}

	exact := WebSocketConfig{AllowedOrigins: []string{"https://example.com"}}
	if !exact.IsOriginAllowed("https://example.com", "localhost:9443") {
		t.Error("expected exact match to be allowed")
	}
	if exact.IsOriginAllowed("https://example.com:8080", "localhost:9443") {
		t.Error("expected partial match to be rejected")
	}
}

func TestIsSameOrigin(t *testing.T) {
	tests := []struct {
		origin      string
		requestHost string
		expected    bool
	}{
		{"", "localhost:4000", true},
		{"http://localhost:4000", "localhost:4000", true},
		{"https://localhost:4000", "localhost:4000", true},
		{"http://localhost:4000/", "localhost:4000", true},
		{"http://example.com", "localhost:4000", false},
		{"http://localhost:3000", "localhost:4000", false},
		{"ws://localhost:4000", "localhost:4000", true},
	}

	for _, tt := range tests {
		result := isSameOrigin(tt.origin, tt.requestHost)
		if result != tt.expected {
			t.Errorf("isSameOrigin(%q, %q) = %v, want %v",
				tt.origin, tt.requestHost, result, tt.expected)
		}
	}
}
