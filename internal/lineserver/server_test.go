package lineserver

import (
	"bufio"
	"context"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/lawnchairsociety/sockclient/internal/address"
	"github.com/lawnchairsociety/sockclient/internal/config"
	"github.com/lawnchairsociety/sockclient/internal/transport"
)

var fixedNow = time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC)

func startTestServer(t *testing.T, mutate func(cfg *config.ServerConfig)) *Server {
	t.Helper()
	cfg := config.DefaultServerConfig()
	cfg.TCPAddress = "127.0.0.1:0"
	cfg.UDPAddress = "127.0.0.1:0"
	cfg.WebSocket.Address = "127.0.0.1:0"
	cfg.WebSocket.AllowedOrigins = []string{"*"}
	if mutate != nil {
		mutate(cfg)
	}

	s := New(cfg)
	s.now = func() time.Time { return fixedNow }
	if err := s.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(s.Shutdown)
	return s
}

func addressOf(t *testing.T, a net.Addr) address.Address {
	t.Helper()
	host, port, err := net.SplitHostPort(a.String())
	if err != nil {
		t.Fatalf("SplitHostPort(%q): %v", a, err)
	}
	parsed, err := address.Parse(host+":"+port, 1)
	if err != nil {
		t.Fatalf("Parse(%q): %v", a, err)
	}
	return parsed
}

func TestServer_StartRequiresAnAddress(t *testing.T) {
	s := New(&config.ServerConfig{})
	if err := s.Start(); err == nil {
		t.Fatal("Start() with no addresses should fail")
	}
	s.Shutdown()
}

func TestServer_StartBindFailure(t *testing.T) {
	taken, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer taken.Close()

	cfg := &config.ServerConfig{
		UDPAddress: "127.0.0.1:0",
		WebSocket:  config.WebSocketConfig{Address: taken.Addr().String()},
	}
	s := New(cfg)
	if err := s.Start(); err == nil {
		t.Fatal("Start() on a used port should fail")
	}
	// The UDP socket bound before the failure must be released.
	s.Shutdown()
}

func TestServer_DisabledTransportsHaveNoAddr(t *testing.T) {
	s := startTestServer(t, func(cfg *config.ServerConfig) {
		cfg.UDPAddress = ""
		cfg.WebSocket.Address = ""
	})

	if s.TCPAddr() == nil {
		t.Error("TCPAddr() = nil, want bound address")
	}
	if s.UDPAddr() != nil {
		t.Errorf("UDPAddr() = %v, want nil", s.UDPAddr())
	}
	if s.WebSocketAddr() != nil {
		t.Errorf("WebSocketAddr() = %v, want nil", s.WebSocketAddr())
	}
}

func TestServer_TCPCommands(t *testing.T) {
	s := startTestServer(t, nil)

	conn, err := net.Dial("tcp", s.TCPAddr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	reader := bufio.NewReader(conn)

	tests := []struct {
		send string
		want string
	}{
		{"ping", "pong"},
		{"time", "2024-03-01T12:30:00Z"},
		{"help", HelpText},
		{"hello", "echo: hello"},
		{"exit", "bye"},
	}

	for _, tt := range tests {
		if _, err := conn.Write([]byte(tt.send + "\n")); err != nil {
			t.Fatalf("write %q: %v", tt.send, err)
		}
		got, err := reader.ReadString('\n')
		if err != nil {
			t.Fatalf("read reply to %q: %v", tt.send, err)
		}
		if got = strings.TrimRight(got, "\n"); got != tt.want {
			t.Errorf("reply to %q = %q, want %q", tt.send, got, tt.want)
		}
	}

	// exit closes the connection
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, err := reader.ReadString('\n'); err == nil {
		t.Error("connection still open after exit")
	}
}

func TestServer_UDPCommands(t *testing.T) {
	s := startTestServer(t, nil)

	conn, err := net.Dial("udp", s.UDPAddr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	tests := []struct {
		send string
		want string
	}{
		{"ping", "pong"},
		{"time", "2024-03-01T12:30:00Z"},
		{"hello there", "echo: hello there"},
		{"quit", "bye"},
	}

	buf := make([]byte, 1024)
	for _, tt := range tests {
		if _, err := conn.Write([]byte(tt.send)); err != nil {
			t.Fatalf("write %q: %v", tt.send, err)
		}
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		n, err := conn.Read(buf)
		if err != nil {
			t.Fatalf("read reply to %q: %v", tt.send, err)
		}
		if got := string(buf[:n]); got != tt.want {
			t.Errorf("reply to %q = %q, want %q", tt.send, got, tt.want)
		}
	}
}

func TestServer_WebSocketCommands(t *testing.T) {
	s := startTestServer(t, nil)

	url := "ws://" + s.WebSocketAddr().String() + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	tests := []struct {
		send string
		want string
	}{
		{"ping", "pong"},
		{"help", HelpText},
		{"hi", "echo: hi"},
		{"exit", "bye"},
	}

	for _, tt := range tests {
		if err := conn.WriteMessage(websocket.TextMessage, []byte(tt.send)); err != nil {
			t.Fatalf("write %q: %v", tt.send, err)
		}
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("read reply to %q: %v", tt.send, err)
		}
		if got := string(msg); got != tt.want {
			t.Errorf("reply to %q = %q, want %q", tt.send, got, tt.want)
		}
	}
}

func TestServer_WebSocketOriginRejected(t *testing.T) {
	s := startTestServer(t, func(cfg *config.ServerConfig) {
		cfg.WebSocket.AllowedOrigins = []string{"https://allowed.example"}
	})

	url := "ws://" + s.WebSocketAddr().String() + "/ws"
	header := map[string][]string{"Origin": {"https://evil.example"}}
	if _, _, err := websocket.DefaultDialer.Dial(url, header); err == nil {
		t.Fatal("dial from a disallowed origin should fail")
	}

	// The rejected upgrade gives its slot back.
	deadline := time.Now().Add(time.Second)
	for {
		if s.connLimiter.Stats().Total == 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("connection slot not released after rejected upgrade")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestServer_ConnectionLimit(t *testing.T) {
	s := startTestServer(t, func(cfg *config.ServerConfig) {
		cfg.Connections.MaxPerIP = 1
	})

	first, err := net.Dial("tcp", s.TCPAddr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer first.Close()

	// Make sure the first connection holds its slot before dialing again.
	first.Write([]byte("ping\n"))
	if _, err := bufio.NewReader(first).ReadString('\n'); err != nil {
		t.Fatalf("first connection: %v", err)
	}

	second, err := net.Dial("tcp", s.TCPAddr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer second.Close()

	second.SetReadDeadline(time.Now().Add(2 * time.Second))
	got, _ := bufio.NewReader(second).ReadString('\n')
	if !strings.Contains(got, "Too many connections") {
		t.Errorf("second connection got %q, want rejection notice", got)
	}

	// Datagrams are answered even while the address is at its stream limit.
	udp, err := net.Dial("udp", s.UDPAddr().String())
	if err != nil {
		t.Fatalf("dial udp: %v", err)
	}
	defer udp.Close()
	udp.Write([]byte("ping"))
	udp.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 64)
	if _, err := udp.Read(buf); err != nil {
		t.Fatalf("udp reply while at the stream limit: %v", err)
	}

	st := s.connLimiter.Stats()
	if st.Total != 1 || st.ByTransport["tcp"] != 1 || st.ByTransport["udp"] != 0 {
		t.Errorf("Stats() = %+v, want one tcp slot and none for udp", st)
	}
}

func TestServer_IdlePeerDisconnected(t *testing.T) {
	s := startTestServer(t, func(cfg *config.ServerConfig) {
		cfg.IdleTimeoutSeconds = 1
	})

	conn, err := net.Dial("tcp", s.TCPAddr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	buf := make([]byte, 1)
	start := time.Now()
	if _, err := conn.Read(buf); err == nil {
		t.Fatal("expected the idle connection to be closed")
	}
	if elapsed := time.Since(start); elapsed > 4*time.Second {
		t.Errorf("idle peer closed after %v, want about 1s", elapsed)
	}
}

func TestServer_ShutdownIsIdempotent(t *testing.T) {
	s := startTestServer(t, nil)

	conn, err := net.Dial("tcp", s.TCPAddr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	s.Shutdown()
	s.Shutdown()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 1)
	if _, err := conn.Read(buf); err == nil {
		t.Error("open peer should be disconnected by Shutdown")
	}
	if _, err := net.DialTimeout("tcp", s.TCPAddr().String(), time.Second); err == nil {
		t.Error("listener still accepting after Shutdown")
	}
}

// The client transports against the real server.
func TestServer_WithTransportClients(t *testing.T) {
	s := startTestServer(t, nil)

	tests := []struct {
		kind transport.Kind
		addr net.Addr
	}{
		{transport.TCP, s.TCPAddr()},
		{transport.UDP, s.UDPAddr()},
	}

	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			client, err := transport.New(tt.kind, addressOf(t, tt.addr), transport.Options{ResponseWait: 2 * time.Second})
			if err != nil {
				t.Fatalf("New() error = %v", err)
			}
			defer client.Close()

			for _, msg := range []string{"ping", "hello", "ping"} {
				want, _ := Respond(msg, fixedNow)
				got, err := client.Exchange(context.Background(), msg)
				if err != nil {
					t.Fatalf("Exchange(%q) error = %v", msg, err)
				}
				if got != want {
					t.Errorf("Exchange(%q) = %q, want %q", msg, got, want)
				}
			}
		})
	}
}

func TestServer_ThrottlesPerIP(t *testing.T) {
	s := startTestServer(t, func(cfg *config.ServerConfig) {
		cfg.RateLimit = config.RateLimitConfig{MaxRequests: 2, WindowSeconds: 60}
	})

	conn, err := net.Dial("udp", s.UDPAddr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	buf := make([]byte, 1024)
	var replies []string
	for i := 0; i < 3; i++ {
		conn.Write([]byte("ping"))
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		n, err := conn.Read(buf)
		if err != nil {
			t.Fatalf("read reply %d: %v", i+1, err)
		}
		replies = append(replies, string(buf[:n]))
	}

	if replies[0] != "pong" || replies[1] != "pong" {
		t.Errorf("first replies = %q, want pong twice", replies[:2])
	}
	if !strings.HasPrefix(replies[2], "slow down") {
		t.Errorf("third reply = %q, want throttle notice", replies[2])
	}

	// The same IP over TCP shares the budget.
	tcp, err := net.Dial("tcp", s.TCPAddr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer tcp.Close()
	tcp.Write([]byte("ping\n"))
	tcp.SetReadDeadline(time.Now().Add(2 * time.Second))
	got, err := bufio.NewReader(tcp).ReadString('\n')
	if err != nil {
		t.Fatalf("tcp read: %v", err)
	}
	if !strings.HasPrefix(got, "slow down") {
		t.Errorf("tcp reply = %q, want throttle notice", got)
	}
}
