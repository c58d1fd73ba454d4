package lineserver

import (
	"bufio"
	"io"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Peer abstracts the connection layer for stream and WebSocket peers so one
// request loop serves both.
type Peer interface {
	// ReadLine blocks until a complete line is received (without newline).
	ReadLine() (string, error)

	// WriteLine sends one reply. Stream peers get a trailing newline,
	// WebSocket peers get one text message.
	WriteLine(message string) error

	// SetIdleDeadline bounds the next ReadLine. Zero clears it.
	SetIdleDeadline(t time.Time) error

	Close() error

	// RemoteAddr returns the peer's address for logging.
	RemoteAddr() string
}

// streamPeer wraps a TCP connection carrying newline-terminated lines.
type streamPeer struct {
	conn   net.Conn
	reader *bufio.Reader
	writer *bufio.Writer
}

func newStreamPeer(conn net.Conn) *streamPeer {
	return &streamPeer{
		conn:   conn,
		reader: bufio.NewReader(conn),
		writer: bufio.NewWriter(conn),
	}
}

// ReadLine returns the next line. A final line without a newline is still
// returned; io.EOF follows it.
func (p *streamPeer) ReadLine() (string, error) {
	line, err := p.reader.ReadString('\n')
	if err != nil {
		if err == io.EOF && line != "" {
			return strings.TrimRight(line, "\r\n"), nil
		}
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func (p *streamPeer) WriteLine(message string) error {
	if _, err := p.writer.WriteString(message + "\n"); err != nil {
		return err
	}
	return p.writer.Flush()
}

func (p *streamPeer) SetIdleDeadline(t time.Time) error {
	return p.conn.SetReadDeadline(t)
}

func (p *streamPeer) Close() error {
	return p.conn.Close()
}

func (p *streamPeer) RemoteAddr() string {
	return p.conn.RemoteAddr().String()
}

// wsPeer wraps a WebSocket connection for browser peers.
type wsPeer struct {
	conn    *websocket.Conn
	readBuf []string   // lines left over from a multi-line message
	mu      sync.Mutex // protects readBuf and writes
}

func newWSPeer(conn *websocket.Conn) *wsPeer {
	return &wsPeer{conn: conn}
}

// ReadLine returns one line at a time. Blank messages are skipped and a
// multi-line message is split and buffered.
func (p *wsPeer) ReadLine() (string, error) {
	for {
		p.mu.Lock()
		if len(p.readBuf) > 0 {
			line := p.readBuf[0]
			p.readBuf = p.readBuf[1:]
			p.mu.Unlock()
			return line, nil
		}
		p.mu.Unlock()

		_, message, err := p.conn.ReadMessage()
		if err != nil {
			return "", err
		}

		var lines []string
		for _, line := range strings.Split(string(message), "\n") {
			if trimmed := strings.TrimSpace(line); trimmed != "" {
				lines = append(lines, trimmed)
			}
		}
		if len(lines) == 0 {
			continue
		}

		p.mu.Lock()
		p.readBuf = append(p.readBuf, lines[1:]...)
		p.mu.Unlock()
		return lines[0], nil
	}
}

func (p *wsPeer) WriteLine(message string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.conn.WriteMessage(websocket.TextMessage, []byte(message))
}

func (p *wsPeer) SetIdleDeadline(t time.Time) error {
	return p.conn.SetReadDeadline(t)
}

func (p *wsPeer) Close() error {
	return p.conn.Close()
}

func (p *wsPeer) RemoteAddr() string {
	return p.conn.RemoteAddr().String()
}
