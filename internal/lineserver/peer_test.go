package lineserver

import (
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func TestStreamPeer_ReadLine(t *testing.T) {
	server, client := net.Pipe()
	defer client.Close()

	go func() {
		client.Write([]byte("first\r\nsecond\nlast"))
		client.Close()
	}()

	p := newStreamPeer(server)
	defer p.Close()

	for _, want := range []string{"first", "second", "last"} {
		got, err := p.ReadLine()
		if err != nil {
			t.Fatalf("ReadLine() error = %v", err)
		}
		if got != want {
			t.Errorf("ReadLine() = %q, want %q", got, want)
		}
	}
	if _, err := p.ReadLine(); err != io.EOF {
		t.Errorf("ReadLine() after last line error = %v, want io.EOF", err)
	}
}

func TestStreamPeer_WriteLine(t *testing.T) {
	server, client := net.Pipe()
	defer client.Close()

	p := newStreamPeer(server)
	defer p.Close()

	go p.WriteLine("pong")

	buf := make([]byte, 16)
	n, err := client.Read(buf)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if got := string(buf[:n]); got != "pong\n" {
		t.Errorf("wrote %q, want %q", got, "pong\n")
	}
}

func dialWS(t *testing.T, handler func(conn *websocket.Conn)) *websocket.Conn {
	t.Helper()
	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("Failed to upgrade: %v", err)
			return
		}
		defer conn.Close()
		handler(conn)
	}))
	t.Cleanup(server.Close)

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("Failed to connect: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestWSPeer_ReadLine_SkipsBlankMessages(t *testing.T) {
	conn := dialWS(t, func(conn *websocket.Conn) {
		conn.WriteMessage(websocket.TextMessage, []byte(""))
		conn.WriteMessage(websocket.TextMessage, []byte("   "))
		conn.WriteMessage(websocket.TextMessage, []byte("\n\n\n"))
		conn.WriteMessage(websocket.TextMessage, []byte("valid message"))
		time.Sleep(100 * time.Millisecond)
	})

	line, err := newWSPeer(conn).ReadLine()
	if err != nil {
		t.Fatalf("ReadLine failed: %v", err)
	}
	if line != "valid message" {
		t.Errorf("ReadLine() = %q, want %q", line, "valid message")
	}
}

func TestWSPeer_ReadLine_MultiLineMessage(t *testing.T) {
	conn := dialWS(t, func(conn *websocket.Conn) {
		conn.WriteMessage(websocket.TextMessage, []byte("line1\nline2\nline3"))
		time.Sleep(100 * time.Millisecond)
	})

	p := newWSPeer(conn)
	for _, want := range []string{"line1", "line2", "line3"} {
		got, err := p.ReadLine()
		if err != nil {
			t.Fatalf("ReadLine() error = %v", err)
		}
		if got != want {
			t.Errorf("ReadLine() = %q, want %q", got, want)
		}
	}
}

func TestWSPeer_WriteLine(t *testing.T) {
	received := make(chan string, 1)
	conn := dialWS(t, func(conn *websocket.Conn) {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		received <- string(msg)
	})

	p := newWSPeer(conn)
	if err := p.WriteLine("pong"); err != nil {
		t.Fatalf("WriteLine failed: %v", err)
	}
	if p.RemoteAddr() == "" {
		t.Error("RemoteAddr should not be empty")
	}

	select {
	case msg := <-received:
		if msg != "pong" {
			t.Errorf("received %q, want %q", msg, "pong")
		}
	case <-time.After(time.Second):
		t.Error("Timeout waiting for message")
	}
}
