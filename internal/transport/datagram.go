package transport

import (
	"context"
	"errors"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/lawnchairsociety/sockclient/internal/address"
	"github.com/lawnchairsociety/sockclient/internal/logger"
)

// DatagramClient talks UDP over one socket held for the whole session.
// Each message is one datagram; each reply is the next datagram received.
// Nothing is retried or reordered.
type DatagramClient struct {
	addr address.Address
	opts Options
	conn net.Conn
	buf  []byte

	closeOnce sync.Once
	closed    chan struct{}
	closeErr  error
}

// DialDatagram opens the session socket to addr. Failure is reported
// immediately as ErrChannelAcquisition.
func DialDatagram(addr address.Address, opts Options) (*DatagramClient, error) {
	opts = opts.withDefaults()

	dialer := net.Dialer{Timeout: opts.DialTimeout}
	conn, err := dialer.Dial("udp", addr.String())
	if err != nil {
		return nil, &Error{Op: "dial", Kind: UDP, Addr: addr.String(), Class: ErrChannelAcquisition, Err: err}
	}

	logger.Info("Datagram socket opened",
		"server", addr.String(),
		"local_addr", conn.LocalAddr().String())
	opts.opened(UDP, addr.String())

	return &DatagramClient{
		addr:   addr,
		opts:   opts,
		conn:   conn,
		buf:    make([]byte, opts.BufferSize),
		closed: make(chan struct{}),
	}, nil
}

// Exchange writes message as one datagram and waits at most ResponseWait
// for a reply.
func (c *DatagramClient) Exchange(ctx context.Context, message string) (string, error) {
	if c.isClosed() {
		return "", c.fail("write", ErrClosed, nil)
	}

	if _, err := c.conn.Write([]byte(message)); err != nil {
		return "", c.fail("write", ErrSend, err)
	}

	if err := c.conn.SetReadDeadline(time.Now().Add(c.opts.ResponseWait)); err != nil {
		return "", c.fail("read", ErrReceive, err)
	}
	stop := context.AfterFunc(ctx, func() {
		_ = c.conn.SetReadDeadline(time.Now())
	})
	defer stop()

	n, err := c.conn.Read(c.buf)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", c.fail("read", ErrReceive, ctxErr)
		}
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return "", c.fail("read", ErrResponseTimeout, err)
		}
		return "", c.fail("read", ErrReceive, err)
	}

	touch(c.opts.Activity)
	return strings.TrimRight(string(c.buf[:n]), "\r\n"), nil
}

// Notify sends message as a datagram without waiting for a reply.
func (c *DatagramClient) Notify(message string) error {
	if c.isClosed() {
		return c.fail("write", ErrClosed, nil)
	}
	if _, err := c.conn.Write([]byte(message)); err != nil {
		return c.fail("write", ErrSend, err)
	}
	return nil
}

// Close releases the session socket. Later calls return the first result.
func (c *DatagramClient) Close() error {
	c.closeOnce.Do(func() {
		close(c.closed)
		c.closeErr = c.conn.Close()
		logger.Info("Datagram socket closed", "server", c.addr.String())
	})
	return c.closeErr
}

// Kind returns UDP.
func (c *DatagramClient) Kind() Kind { return UDP }

// Address returns the server endpoint.
func (c *DatagramClient) Address() address.Address { return c.addr }

// LocalAddr identifies the session socket; it does not change between exchanges.
func (c *DatagramClient) LocalAddr() net.Addr { return c.conn.LocalAddr() }

func (c *DatagramClient) isClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

func (c *DatagramClient) fail(op string, class, err error) error {
	return &Error{Op: op, Kind: UDP, Addr: c.addr.String(), Class: class, Err: err}
}
