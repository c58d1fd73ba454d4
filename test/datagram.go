package test

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/lawnchairsociety/sockclient/internal/transport"
)

// =============================================================================
// Group 2: Connectionless transport
// =============================================================================

// TestDatagramCommands sends each fixed command over UDP and checks the reply
func TestDatagramCommands(target string) TestResult {
	const testName = "UDP Commands"

	addr, err := resolve(target)
	if err != nil {
		return fail(testName, "Bad target %q: %v", target, err)
	}
	client, err := transport.DialDatagram(addr, transport.Options{ResponseWait: 2 * time.Second})
	if err != nil {
		return fail(testName, "Socket setup failed: %v", err)
	}
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

// TestDatagramSameSocket checks that every exchange leaves from one local socket
func TestDatagramSameSocket(target string) TestResult {
	const testName = "UDP Same Socket"

	addr, err := resolve(target)
	if err != nil {
		return fail(testName, "Bad target %q: %v", target, err)
	}
	client, err := transport.DialDatagram(addr, transport.Options{ResponseWait: 2 * time.Second})
	if err != nil {
		return fail(testName, "Socket setup failed: %v", err)
	}
	defer client.Close()

	local := client.LocalAddr().String()
	for i := 0; i < 3; i++ {
		if _, err := client.Exchange(context.Background(), "ping"); err != nil {
			return fail(testName, "Exchange %d failed: %v", i+1, err)
		}
		if now := client.LocalAddr().String(); now != local {
			return fail(testName, "local address changed from %s to %s", local, now)
		}
	}
	return pass(testName, "3 exchanges sent from %s", local)
}

// TestDatagramSession runs a scripted session over UDP
func TestDatagramSession(target string) TestResult {
	return runScriptedSession("UDP Session", transport.UDP, target)
}

// =============================================================================
// Group 3: Failure handling
// =============================================================================

// TestDatagramNoResponse checks the response wait against a silent peer
func TestDatagramNoResponse() TestResult {
	const testName = "UDP No Response"
	const wait = 500 * time.Millisecond

	silent, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		return fail(testName, "Could not open a silent peer: %v", err)
	}
	defer silent.Close()

	addr, err := addressOf(silent.LocalAddr())
	if err != nil {
		return fail(testName, "Bad address: %v", err)
	}
	client, err := transport.DialDatagram(addr, transport.Options{ResponseWait: wait})
	if err != nil {
		return fail(testName, "Socket setup failed: %v", err)
	}
	defer client.Close()

	start := time.Now()
	_, err = client.Exchange(context.Background(), "anyone there?")
	elapsed := time.Since(start)

	logResult(testName, errors.Is(err, transport.ErrResponseTimeout), "timeout reported")
	if !errors.Is(err, transport.ErrResponseTimeout) {
		return fail(testName, "expected a response timeout, got %v", err)
	}
	if elapsed < wait {
		return fail(testName, "gave up after %v, before the %v wait", elapsed, wait)
	}
	return pass(testName, "timed out after %v", elapsed.Round(10*time.Millisecond))
}
