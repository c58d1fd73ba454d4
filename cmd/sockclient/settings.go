package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/lawnchairsociety/sockclient/internal/address"
	"github.com/lawnchairsociety/sockclient/internal/config"
	"github.com/lawnchairsociety/sockclient/internal/text"
	"github.com/lawnchairsociety/sockclient/internal/transport"
)

// choices holds what was given on the command line. Zero values are
// prompted for, or defaulted when prompting is off.
type choices struct {
	addr     string
	port     int
	proto    string
	noPrompt bool
}

// prompter asks the setup questions. It reads from the same buffered
// reader the session reads afterwards so no typed-ahead input is lost.
type prompter struct {
	in   *bufio.Reader
	out  io.Writer
	text *text.Text
}

// ask prints prompt and returns the trimmed answer. A final answer without
// a newline is accepted; io.EOF is only returned when nothing was typed.
func (p *prompter) ask(prompt string) (string, error) {
	fmt.Fprint(p.out, prompt)
	line, err := p.in.ReadString('\n')
	if err != nil && (!errors.Is(err, io.EOF) || line == "") {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// resolve settles the server address and transport, prompting for
// whatever the flags left open.
func resolve(p *prompter, cfg *config.ClientConfig, c choices) (address.Address, transport.Kind, error) {
	raw := c.addr
	if raw == "" && !c.noPrompt {
		answer, err := p.ask(p.text.AddressPrompt(cfg.DefaultHost))
		if err != nil {
			return address.Address{}, 0, fmt.Errorf("reading address: %w", err)
		}
		raw = answer
	}
	if raw == "" {
		raw = cfg.DefaultHost
	}

	port := c.port
	if port == 0 && !c.noPrompt {
		answer, err := p.ask(p.text.PortPrompt(cfg.DefaultPort))
		if err != nil {
			return address.Address{}, 0, fmt.Errorf("reading port: %w", err)
		}
		port = parsePortAnswer(p, answer, cfg.DefaultPort)
	}
	if port == 0 {
		port = cfg.DefaultPort
	}

	addr, err := address.Parse(raw, port)
	if err != nil {
		return address.Address{}, 0, err
	}

	kind, err := resolveKind(p, cfg, c)
	if err != nil {
		return address.Address{}, 0, err
	}
	return addr, kind, nil
}

// parsePortAnswer falls back to the default, with a notice, on anything
// that is not a usable port.
func parsePortAnswer(p *prompter, answer string, defaultPort int) int {
	if answer == "" {
		return defaultPort
	}
	port, err := strconv.Atoi(answer)
	if err != nil || !address.ValidPort(port) {
		fmt.Fprintln(p.out, p.text.InvalidPort(defaultPort))
		return defaultPort
	}
	return port
}

// resolveKind keeps asking until the answer names a transport. A bad
// -proto flag is an error rather than a prompt.
func resolveKind(p *prompter, cfg *config.ClientConfig, c choices) (transport.Kind, error) {
	if c.proto != "" {
		return transport.ParseKind(c.proto)
	}
	if c.noPrompt {
		return transport.ParseKind(cfg.DefaultProtocol)
	}

	for {
		answer, err := p.ask(p.text.ProtocolPrompt(cfg.DefaultProtocol))
		if err != nil {
			return 0, fmt.Errorf("reading protocol: %w", err)
		}
		if answer == "" {
			answer = cfg.DefaultProtocol
		}
		kind, err := transport.ParseKind(answer)
		if err == nil {
			return kind, nil
		}
		fmt.Fprintln(p.out, p.text.InvalidProtocol())
	}
}

// statusLine prints the channel status as the client acquires it: a line
// per TCP connection, one line for the UDP socket.
func statusLine(out io.Writer, txt *text.Text) func(transport.Kind, string) {
	return func(kind transport.Kind, server string) {
		if kind == transport.UDP {
			fmt.Fprintln(out, txt.SocketReady(server))
			return
		}
		fmt.Fprintln(out, txt.Connected(server))
	}
}
