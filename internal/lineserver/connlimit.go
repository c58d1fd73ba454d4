package lineserver

import (
	"errors"
	"net"
	"sync"

	"github.com/lawnchairsociety/sockclient/internal/config"
)

var (
	ErrIPLimit    = errors.New("too many connections from this address")
	ErrTotalLimit = errors.New("server connection limit reached")
)

// ConnLimiter caps concurrent connection-oriented peers per IP and in total.
// Only transports that hold a connection take a slot; UDP answers each
// datagram in place and never calls Acquire.
type ConnLimiter struct {
	mu          sync.Mutex
	ipCounts    map[string]int
	byTransport map[string]int
	totalCount  int
	maxPerIP    int
	maxTotal    int
}

// Slot is one held connection. Release is safe to call more than once.
type Slot struct {
	limiter   *ConnLimiter
	transport string
	ip        string
	once      sync.Once
}

// LimiterStats is a point-in-time view of held slots.
type LimiterStats struct {
	Total       int
	IPs         int
	ByTransport map[string]int
}

// NewConnLimiter creates a limiter; zero limits mean unlimited.
func NewConnLimiter(cfg config.ConnectionsConfig) *ConnLimiter {
	return &ConnLimiter{
		ipCounts:    make(map[string]int),
		byTransport: make(map[string]int),
		maxPerIP:    cfg.MaxPerIP,
		maxTotal:    cfg.MaxTotal,
	}
}

// Acquire takes a slot for a peer on the named transport. The error says
// which limit refused it.
func (c *ConnLimiter) Acquire(transport, ip string) (*Slot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.maxTotal > 0 && c.totalCount >= c.maxTotal {
		return nil, ErrTotalLimit
	}
	if c.maxPerIP > 0 && c.ipCounts[ip] >= c.maxPerIP {
		return nil, ErrIPLimit
	}

	c.ipCounts[ip]++
	c.byTransport[transport]++
	c.totalCount++
	return &Slot{limiter: c, transport: transport, ip: ip}, nil
}

// Release gives the slot back. Later calls do nothing.
func (s *Slot) Release() {
	if s == nil {
		return
	}
	s.once.Do(func() { s.limiter.release(s.transport, s.ip) })
}

func (c *ConnLimiter) release(transport, ip string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.ipCounts[ip]--
	if c.ipCounts[ip] <= 0 {
		delete(c.ipCounts, ip)
	}
	c.byTransport[transport]--
	if c.byTransport[transport] <= 0 {
		delete(c.byTransport, transport)
	}
	c.totalCount--
}

// Stats returns the held slots in total, per IP count and per transport.
func (c *ConnLimiter) Stats() LimiterStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	by := make(map[string]int, len(c.byTransport))
	for k, v := range c.byTransport {
		by[k] = v
	}
	return LimiterStats{Total: c.totalCount, IPs: len(c.ipCounts), ByTransport: by}
}

// Count returns the open peer count for one IP.
func (c *ConnLimiter) Count(ip string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ipCounts[ip]
}

// hostOf strips the port from an ip:port string.
func hostOf(remoteAddr string) string {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return remoteAddr
	}
	return host
}
