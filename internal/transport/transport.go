// Package transport exchanges text lines with a server over TCP or UDP
// behind one Client contract.
package transport

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/lawnchairsociety/sockclient/internal/address"
)

// Kind selects the transport. The set is closed.
type Kind int

const (
	// TCP opens a fresh connection for every exchange.
	TCP Kind = iota
	// UDP keeps one socket for the whole session.
	UDP
)

func (k Kind) String() string {
	switch k {
	case TCP:
		return "TCP"
	case UDP:
		return "UDP"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// ParseKind accepts "tcp" or "udp" in any case. Empty input means TCP.
func ParseKind(s string) (Kind, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "", "TCP":
		return TCP, nil
	case "UDP":
		return UDP, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownKind, s)
	}
}

// Client abstracts the channel for both transports. Exchange and Close
// are the whole contract; channel lifetime stays inside the implementation.
type Client interface {
	// Exchange sends one message and blocks for its reply.
	Exchange(ctx context.Context, message string) (string, error)

	// Close releases whatever channel the client holds. Safe to call more than once.
	Close() error

	// Kind reports the transport in use.
	Kind() Kind

	// Address reports the server endpoint.
	Address() address.Address
}

// Notifier is implemented by clients that hold an open channel and can
// tell the server the session is ending without waiting for a reply.
type Notifier interface {
	Notify(message string) error
}

// Activity is anything that wants to hear about completed exchanges,
// typically the session's inactivity timer.
type Activity interface {
	Reset()
}

// Options tunes both clients. Zero fields take the defaults below.
type Options struct {
	// DialTimeout bounds TCP connection setup and UDP socket setup.
	DialTimeout time.Duration

	// ReadTimeout bounds waiting for a TCP reply; 0 waits until the peer
	// answers or closes.
	ReadTimeout time.Duration

	// ResponseWait bounds waiting for a UDP reply.
	ResponseWait time.Duration

	// BufferSize is the read buffer size and the largest UDP reply kept.
	BufferSize int

	// Activity is reset whenever a reply arrives.
	Activity Activity

	// Opened, when set, hears about every channel acquired: each TCP
	// connection, and the UDP socket once.
	Opened func(kind Kind, server string)
}

const (
	DefaultDialTimeout  = 5 * time.Second
	DefaultResponseWait = 3 * time.Second
	DefaultBufferSize   = 1024
)

func (o Options) withDefaults() Options {
	if o.DialTimeout <= 0 {
		o.DialTimeout = DefaultDialTimeout
	}
	if o.ResponseWait <= 0 {
		o.ResponseWait = DefaultResponseWait
	}
	if o.BufferSize <= 0 {
		o.BufferSize = DefaultBufferSize
	}
	return o
}

// New builds the client for kind. The TCP client does no I/O here; the
// UDP client opens its socket right away and fails with
// ErrChannelAcquisition if it cannot.
func New(kind Kind, addr address.Address, opts Options) (Client, error) {
	opts = opts.withDefaults()

	switch kind {
	case TCP:
		return NewStreamClient(addr, opts), nil
	case UDP:
		return DialDatagram(addr, opts)
	default:
		return nil, fmt.Errorf("%w: %v", ErrUnknownKind, kind)
	}
}

func (o Options) opened(kind Kind, server string) {
	if o.Opened != nil {
		o.Opened(kind, server)
	}
}

func touch(a Activity) {
	if a != nil {
		a.Reset()
	}
}
