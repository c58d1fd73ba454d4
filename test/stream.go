package test

import (
	"bytes"
	"context"
	"errors"
	"net"
	"strings"
	"time"

	"github.com/lawnchairsociety/sockclient/internal/address"
	"github.com/lawnchairsociety/sockclient/internal/idle"
	"github.com/lawnchairsociety/sockclient/internal/lineserver"
	"github.com/lawnchairsociety/sockclient/internal/session"
	"github.com/lawnchairsociety/sockclient/internal/text"
	"github.com/lawnchairsociety/sockclient/internal/transport"
)

// commandCases are the requests with a fixed answer on any line server.
var commandCases = []struct {
	send string
	want string
}{
	{"ping", "pong"},
	{"help", lineserver.HelpText},
	{"hello world", "echo: hello world"},
}

// =============================================================================
// Group 1: Connection-oriented transport
// =============================================================================

// TestStreamCommands sends each fixed command over TCP and checks the reply
func TestStreamCommands(target string) TestResult {
	const testName = "TCP Commands"

	addr, err := resolve(target)
	if err != nil {
		return fail(testName, "Bad target %q: %v", target, err)
	}
	client := transport.NewStreamClient(addr, transport.Options{ReadTimeout: 2 * time.Second})
	defer client.Close()

	for _, tc := range commandCases {
		logAction(testName, "Sending "+tc.send)
		got, err := client.Exchange(context.Background(), tc.send)
		if err != nil {
			return fail(testName, "Exchange(%q) failed: %v", tc.send, err)
		}
		logResult(testName, got == tc.want, "reply "+got)
		if got != tc.want {
			return fail(testName, "Exchange(%q) = %q, want %q", tc.send, got, tc.want)
		}
	}

	return pass(testName, "%d commands answered", len(commandCases))
}

// TestStreamConnectionPerMessage checks that no connection outlives its exchange
func TestStreamConnectionPerMessage(target string) TestResult {
	const testName = "TCP Connection Per Message"
	const exchanges = 5

	addr, err := resolve(target)
	if err != nil {
		return fail(testName, "Bad target %q: %v", target, err)
	}
	client := transport.NewStreamClient(addr, transport.Options{ReadTimeout: 2 * time.Second})
	defer client.Close()

	for i := 0; i < exchanges; i++ {
		if _, err := client.Exchange(context.Background(), "ping"); err != nil {
			return fail(testName, "Exchange %d failed: %v", i+1, err)
		}
		if open := client.Open(); open != 0 {
			return fail(testName, "%d connections still open after exchange %d", open, i+1)
		}
	}

	logResult(testName, client.Dialed() == exchanges, "dials counted")
	if client.Dialed() != exchanges || client.Peak() != 1 {
		return fail(testName, "dialed %d (want %d), peak %d (want 1)", client.Dialed(), exchanges, client.Peak())
	}
	return pass(testName, "%d exchanges used %d connections, never more than one open", exchanges, client.Dialed())
}

// TestStreamSession runs a scripted session over TCP
func TestStreamSession(target string) TestResult {
	return runScriptedSession("TCP Session", transport.TCP, target)
}

// TestStreamRefused checks that a refused connection is a per-exchange error
func TestStreamRefused() TestResult {
	const testName = "TCP Refused"

	// Bind then release a port so nothing is listening on it.
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return fail(testName, "Could not reserve a port: %v", err)
	}
	target := listener.Addr().String()
	listener.Close()

	addr, err := resolve(target)
	if err != nil {
		return fail(testName, "Bad target %q: %v", target, err)
	}
	client := transport.NewStreamClient(addr, transport.Options{DialTimeout: time.Second})
	defer client.Close()

	_, err = client.Exchange(context.Background(), "ping")
	logResult(testName, errors.Is(err, transport.ErrConnect), "connect error reported")
	if !errors.Is(err, transport.ErrConnect) {
		return fail(testName, "expected a connect error, got %v", err)
	}
	return pass(testName, "refused connection reported as %v", transport.ErrConnect)
}

// runScriptedSession drives the session loop with canned input and checks
// the replies it printed.
func runScriptedSession(testName string, kind transport.Kind, target string) TestResult {
	addr, err := resolve(target)
	if err != nil {
		return fail(testName, "Bad target %q: %v", target, err)
	}

	timer := idle.New(nil)
	client, err := transport.New(kind, addr, transport.Options{
		ReadTimeout:  2 * time.Second,
		ResponseWait: 2 * time.Second,
		Activity:     timer,
	})
	if err != nil {
		return fail(testName, "Client setup failed: %v", err)
	}

	var out bytes.Buffer
	s := session.New(client, timer, session.Options{
		In:          strings.NewReader("ping\n\nhello\nexit\n"),
		Out:         &out,
		Text:        text.Default(),
		IdleTimeout: 30 * time.Second,
	})

	logAction(testName, "Running session: ping, blank line, hello, exit")
	if err := s.Run(context.Background()); err != nil {
		return fail(testName, "Run failed: %v", err)
	}

	output := out.String()
	for _, want := range []string{"Server response: pong", "Server response: echo: hello"} {
		found := strings.Contains(output, want)
		logResult(testName, found, want)
		if !found {
			return fail(testName, "Output missing %q", want)
		}
	}
	if s.Reason() != session.ReasonExit {
		return fail(testName, "Session ended by %v, want %v", s.Reason(), session.ReasonExit)
	}
	return pass(testName, "Session exchanged 2 messages and exited cleanly")
}

// addressOf is used by the datagram scenarios for local sockets.
func addressOf(a net.Addr) (address.Address, error) {
	return resolve(a.String())
}
