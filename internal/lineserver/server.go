// Package lineserver is a small request/response server speaking the same
// line protocol as the client over TCP, UDP and WebSocket.
package lineserver

import (
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/lawnchairsociety/sockclient/internal/config"
	"github.com/lawnchairsociety/sockclient/internal/logger"
)

// Server answers line requests on every transport its config enables.
type Server struct {
	cfg         *config.ServerConfig
	connLimiter *ConnLimiter
	throttle    *Throttle
	now         func() time.Time

	tcpListener net.Listener
	udpConn     net.PacketConn
	wsListener  net.Listener
	httpServer  *http.Server

	shutdown     chan struct{}
	shutdownOnce sync.Once
	wg           sync.WaitGroup

	mu    sync.Mutex
	peers map[Peer]struct{}
}

// New creates a server from cfg. Nothing is bound until Start.
func New(cfg *config.ServerConfig) *Server {
	if cfg == nil {
		cfg = config.DefaultServerConfig()
	}
	return &Server{
		cfg:         cfg,
		connLimiter: NewConnLimiter(cfg.Connections),
		throttle:    NewThrottle(cfg.RateLimit),
		now:         time.Now,
		shutdown:    make(chan struct{}),
		peers:       make(map[Peer]struct{}),
	}
}

// Start binds every configured listener and serves them in the background.
// When one fails to bind the ones already bound are released.
func (s *Server) Start() error {
	if s.cfg.TCPAddress == "" && s.cfg.UDPAddress == "" && s.cfg.WebSocket.Address == "" {
		return errors.New("no listen address configured")
	}

	if s.cfg.TCPAddress != "" {
		listener, err := net.Listen("tcp", s.cfg.TCPAddress)
		if err != nil {
			s.Shutdown()
			return fmt.Errorf("failed to start tcp listener: %w", err)
		}
		s.tcpListener = listener
		logger.Info("TCP server listening", "address", listener.Addr().String())
	}

	if s.cfg.UDPAddress != "" {
		conn, err := net.ListenPacket("udp", s.cfg.UDPAddress)
		if err != nil {
			s.Shutdown()
			return fmt.Errorf("failed to start udp listener: %w", err)
		}
		s.udpConn = conn
		logger.Info("UDP server listening", "address", conn.LocalAddr().String())
	}

	if s.cfg.WebSocket.Address != "" {
		listener, err := net.Listen("tcp", s.cfg.WebSocket.Address)
		if err != nil {
			s.Shutdown()
			return fmt.Errorf("failed to start websocket listener: %w", err)
		}
		mux := http.NewServeMux()
		mux.HandleFunc("/ws", s.handleWebSocketUpgrade)
		s.wsListener = listener
		s.httpServer = &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}
		logger.Info("WebSocket server listening", "address", listener.Addr().String())
	}

	if s.tcpListener != nil {
		s.goServe(s.acceptTCP)
	}
	if s.udpConn != nil {
		s.goServe(s.serveUDP)
	}
	if s.httpServer != nil {
		s.goServe(func() {
			if err := s.httpServer.Serve(s.wsListener); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("WebSocket server stopped", "error", err)
			}
		})
	}
	return nil
}

func (s *Server) goServe(fn func()) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		fn()
	}()
}

// TCPAddr returns the bound TCP address, or nil when TCP is disabled.
func (s *Server) TCPAddr() net.Addr {
	if s.tcpListener == nil {
		return nil
	}
	return s.tcpListener.Addr()
}

// UDPAddr returns the bound UDP address, or nil when UDP is disabled.
func (s *Server) UDPAddr() net.Addr {
	if s.udpConn == nil {
		return nil
	}
	return s.udpConn.LocalAddr()
}

// WebSocketAddr returns the bound WebSocket address, or nil when disabled.
func (s *Server) WebSocketAddr() net.Addr {
	if s.wsListener == nil {
		return nil
	}
	return s.wsListener.Addr()
}

// Shutdown stops every listener, disconnects open peers and waits for the
// serving goroutines to return. Safe to call more than once.
func (s *Server) Shutdown() {
	s.shutdownOnce.Do(func() {
		close(s.shutdown)
		if s.tcpListener != nil {
			s.tcpListener.Close()
		}
		if s.udpConn != nil {
			s.udpConn.Close()
		}
		if s.httpServer != nil {
			s.httpServer.Close()
		} else if s.wsListener != nil {
			s.wsListener.Close()
		}

		s.mu.Lock()
		for p := range s.peers {
			p.Close()
		}
		s.mu.Unlock()

		s.wg.Wait()
		logger.Info("Line server shutdown complete")
	})
}

func (s *Server) closing() bool {
	select {
	case <-s.shutdown:
		return true
	default:
		return false
	}
}

func (s *Server) acceptTCP() {
	for {
		conn, err := s.tcpListener.Accept()
		if err != nil {
			if s.closing() {
				return
			}
			logger.Error("Error accepting connection", "error", err)
			continue
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConnection(conn)
		}()
	}
}

func (s *Server) handleConnection(conn net.Conn) {
	remoteAddr := conn.RemoteAddr().String()
	ip := hostOf(remoteAddr)

	slot, err := s.connLimiter.Acquire("tcp", ip)
	if err != nil {
		logger.Warning("Connection rejected - limit exceeded",
			"remote_addr", remoteAddr,
			"ip", ip,
			"reason", err)
		conn.Write([]byte("Too many connections. Please try again later.\n"))
		conn.Close()
		return
	}
	defer slot.Release()

	s.handlePeer(newStreamPeer(conn), "tcp", ip)
}

// handlePeer is the request loop shared by stream and WebSocket peers.
func (s *Server) handlePeer(p Peer, transport, ip string) {
	if !s.track(p) {
		p.Close()
		return
	}
	defer func() {
		s.untrack(p)
		p.Close()
	}()

	logger.Debug("Peer connected", "transport", transport, "remote_addr", p.RemoteAddr())
	idle := s.cfg.IdleTimeout()

	for {
		if idle > 0 {
			p.SetIdleDeadline(time.Now().Add(idle))
		}
		line, err := p.ReadLine()
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Debug("Peer read ended", "transport", transport, "remote_addr", p.RemoteAddr(), "error", err)
			}
			return
		}

		reply, done := s.answer(line, ip)
		logger.Always("Request", "transport", transport, "remote_addr", p.RemoteAddr(), "line", line)
		if err := p.WriteLine(reply); err != nil {
			logger.Debug("Peer write failed", "transport", transport, "remote_addr", p.RemoteAddr(), "error", err)
			return
		}
		if done {
			return
		}
	}
}

// answer applies the per-IP throttle before Respond. A throttled request
// gets a notice instead of an answer and does not end the connection.
func (s *Server) answer(line, ip string) (string, bool) {
	now := s.now()
	if ok, wait := s.throttle.Allow(ip, now); !ok {
		logger.Warning("Request throttled", "ip", ip, "retry_in", wait.String())
		return fmt.Sprintf("slow down: retry in %ds", int(wait.Seconds())+1), false
	}
	return Respond(line, now)
}

func (s *Server) track(p Peer) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closing() {
		return false
	}
	s.peers[p] = struct{}{}
	return true
}

func (s *Server) untrack(p Peer) {
	s.mu.Lock()
	delete(s.peers, p)
	s.mu.Unlock()
}

// serveUDP answers each datagram with exactly one datagram.
func (s *Server) serveUDP() {
	size := s.cfg.MaxDatagramSize
	if size <= 0 {
		size = 1024
	}
	buf := make([]byte, size)

	for {
		n, from, err := s.udpConn.ReadFrom(buf)
		if err != nil {
			if s.closing() {
				return
			}
			logger.Error("Error reading datagram", "error", err)
			continue
		}

		line := strings.TrimRight(string(buf[:n]), "\r\n")
		reply, _ := s.answer(line, hostOf(from.String()))
		logger.Always("Request", "transport", "udp", "remote_addr", from.String(), "line", line)
		if _, err := s.udpConn.WriteTo([]byte(reply), from); err != nil {
			logger.Debug("Datagram reply failed", "remote_addr", from.String(), "error", err)
		}
	}
}

func (s *Server) handleWebSocketUpgrade(w http.ResponseWriter, r *http.Request) {
	clientIP := getRealIP(r)

	slot, err := s.connLimiter.Acquire("websocket", clientIP)
	if err != nil {
		logger.Warning("WebSocket connection rejected - limit exceeded",
			"remote_addr", r.RemoteAddr,
			"client_ip", clientIP,
			"reason", err)
		http.Error(w, "Too many connections. Please try again later.", http.StatusTooManyRequests)
		return
	}

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			allowed := s.cfg.WebSocket.IsOriginAllowed(origin, r.Host)
			if !allowed {
				logger.Warning("WebSocket connection rejected - origin not allowed",
					"origin", origin,
					"host", r.Host,
					"remote_addr", r.RemoteAddr)
			}
			return allowed
		},
	}

	defer slot.Release()

	wsConn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Info("WebSocket upgrade failed", "error", err)
		return
	}
	if s.cfg.WebSocket.MaxMessageSize > 0 {
		wsConn.SetReadLimit(s.cfg.WebSocket.MaxMessageSize)
	}

	s.handlePeer(newWSPeer(wsConn), "websocket", clientIP)
}

// getRealIP prefers the proxy headers and falls back to the direct address.
func getRealIP(r *http.Request) string {
	// "client, proxy1, proxy2": the first entry is the original client
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if clientIP := strings.TrimSpace(strings.Split(xff, ",")[0]); clientIP != "" {
			return clientIP
		}
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	return hostOf(r.RemoteAddr)
}
