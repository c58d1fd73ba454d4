package transport

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net"
	"strings"
	"sync/atomic"
	"time"

	"github.com/lawnchairsociety/sockclient/internal/address"
	"github.com/lawnchairsociety/sockclient/internal/logger"
)

// Delimiter terminates every TCP message and reply.
const Delimiter = '\n'

// StreamClient talks TCP with one connection per exchange: dial, write
// the line, read the reply, close. Nothing is kept between calls.
type StreamClient struct {
	addr   address.Address
	opts   Options
	dialer net.Dialer
	closed atomic.Bool

	open   atomic.Int32 // connections currently held
	peak   atomic.Int32
	dialed atomic.Int64
}

// NewStreamClient returns a TCP client. No connection is made until Exchange.
func NewStreamClient(addr address.Address, opts Options) *StreamClient {
	opts = opts.withDefaults()
	return &StreamClient{
		addr:   addr,
		opts:   opts,
		dialer: net.Dialer{Timeout: opts.DialTimeout},
	}
}

// Exchange dials the server, writes message plus Delimiter, and reads until
// Delimiter or end of stream. A peer that closes without sending anything
// yields "" and no error. The connection is closed on every path.
func (c *StreamClient) Exchange(ctx context.Context, message string) (string, error) {
	if c.closed.Load() {
		return "", c.fail("dial", ErrClosed, nil)
	}

	conn, err := c.dialer.DialContext(ctx, "tcp", c.addr.String())
	if err != nil {
		return "", c.fail("dial", ErrConnect, err)
	}
	c.acquired()
	defer c.release(conn)

	logger.Debug("Stream connection opened",
		"server", c.addr.String(),
		"local_addr", conn.LocalAddr().String())
	c.opts.opened(TCP, c.addr.String())

	if c.opts.ReadTimeout > 0 {
		if err := conn.SetDeadline(time.Now().Add(c.opts.ReadTimeout)); err != nil {
			return "", c.fail("read", ErrReceive, err)
		}
	}

	// Cancelling ctx unblocks a pending write or read. A failed SetDeadline
	// here means the conn is already closed, and the pending call fails anyway.
	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetDeadline(time.Now())
	})
	defer stop()

	writer := bufio.NewWriter(conn)
	if _, err := writer.WriteString(message + string(Delimiter)); err != nil {
		return "", c.fail("write", ErrSend, c.cause(ctx, err))
	}
	if err := writer.Flush(); err != nil {
		return "", c.fail("write", ErrSend, c.cause(ctx, err))
	}

	reader := bufio.NewReaderSize(conn, c.opts.BufferSize)
	line, err := reader.ReadString(Delimiter)
	switch {
	case err == nil:
	case errors.Is(err, io.EOF):
		// Peer closed; whatever arrived before that is the reply
	default:
		return "", c.fail("read", ErrReceive, c.cause(ctx, err))
	}

	touch(c.opts.Activity)
	return strings.TrimRight(line, "\r\n"), nil
}

// Close marks the client unusable. There is no channel to release between
// exchanges, so repeated calls are harmless.
func (c *StreamClient) Close() error {
	c.closed.Store(true)
	return nil
}

// Kind returns TCP.
func (c *StreamClient) Kind() Kind { return TCP }

// Address returns the server endpoint.
func (c *StreamClient) Address() address.Address { return c.addr }

// Open returns the number of connections currently held (0 or 1).
func (c *StreamClient) Open() int { return int(c.open.Load()) }

// Peak returns the most connections ever held at once.
func (c *StreamClient) Peak() int { return int(c.peak.Load()) }

// Dialed returns how many connections have been made.
func (c *StreamClient) Dialed() int64 { return c.dialed.Load() }

func (c *StreamClient) acquired() {
	c.dialed.Add(1)
	n := c.open.Add(1)
	for {
		p := c.peak.Load()
		if n <= p || c.peak.CompareAndSwap(p, n) {
			return
		}
	}
}

func (c *StreamClient) release(conn net.Conn) {
	if err := conn.Close(); err != nil {
		logger.Debug("Stream connection close failed", "server", c.addr.String(), "error", err)
	}
	c.open.Add(-1)
	logger.Debug("Stream connection closed", "server", c.addr.String())
}

// cause prefers the context error when cancellation forced the deadline.
func (c *StreamClient) cause(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return err
}

func (c *StreamClient) fail(op string, class, err error) error {
	return &Error{Op: op, Kind: TCP, Addr: c.addr.String(), Class: class, Err: err}
}
