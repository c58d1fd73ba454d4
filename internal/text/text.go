// Package text provides loading and lookup for the client's user-facing lines.
package text

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// TextData represents the structure of the text.yaml file.
type TextData struct {
	Setup   SetupText   `yaml:"setup"`
	Session SessionText `yaml:"session"`
}

// SetupText contains the startup prompts.
type SetupText struct {
	Banner          string `yaml:"banner"`
	AddressPrompt   string `yaml:"address_prompt"`
	PortPrompt      string `yaml:"port_prompt"`
	ProtocolPrompt  string `yaml:"protocol_prompt"`
	InvalidPort     string `yaml:"invalid_port"`
	InvalidProtocol string `yaml:"invalid_protocol"`
}

// SessionText contains the lines printed by the message loop.
type SessionText struct {
	Header      string `yaml:"header"`
	Connected   string `yaml:"connected"`
	SocketReady string `yaml:"socket_ready"`
	Prompt      string `yaml:"prompt"`
	Response    string `yaml:"response"`
	Diagnostic  string `yaml:"diagnostic"`
	ExitNotice  string `yaml:"exit_notice"`
	Farewell    string `yaml:"farewell"`
	Inactive    string `yaml:"inactive"`
	Interrupted string `yaml:"interrupted"`
}

// defaults backs every key a text file leaves out.
var defaults = TextData{
	Setup: SetupText{
		Banner: `
==================================================
    Socket client (TCP/UDP)
==================================================`,
		AddressPrompt:   "Server address [default: %s]: ",
		PortPrompt:      "Server port [default: %d]: ",
		ProtocolPrompt:  "Protocol (TCP/UDP) [default: %s]: ",
		InvalidPort:     "Invalid port, using default %d",
		InvalidProtocol: "Invalid protocol, use TCP or UDP.",
	},
	Session: SessionText{
		Header:      "\n=== %s mode ===\nServer: %s\n",
		Connected:   "✓ Connected to %s",
		SocketReady: "✓ UDP socket created for %s",
		Prompt:      "Message to send (exit/quit to leave): ",
		Response:    "Server response: %s\n",
		Diagnostic:  "Error: %v",
		ExitNotice:  "Sending exit command to the server...",
		Farewell:    "Connection closed.",
		Inactive:    "\n>>> Session closed after %d seconds of inactivity.",
		Interrupted: "\nInterrupted.",
	},
}

// Text provides text lookup functionality.
type Text struct {
	data *TextData
	mu   sync.RWMutex
}

var (
	instance *Text
	once     sync.Once
)

// Default returns the built-in text.
func Default() *Text {
	data := defaults
	return &Text{data: &data}
}

// Load loads text data from a YAML file. Keys missing from the file keep
// their built-in wording.
func Load(path string) (*Text, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read text file: %w", err)
	}

	textData := defaults
	if err := yaml.Unmarshal(data, &textData); err != nil {
		return nil, fmt.Errorf("failed to parse text file: %w", err)
	}

	return &Text{data: &textData}, nil
}

// GetInstance returns the singleton text instance, or the built-in text
// when Initialize has not succeeded.
func GetInstance() *Text {
	if instance == nil {
		return Default()
	}
	return instance
}

// Initialize loads the text data and sets the singleton instance.
func Initialize(path string) error {
	var err error
	once.Do(func() {
		instance, err = Load(path)
	})
	return err
}

func (t *Text) get(field func(*TextData) string) string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return field(t.data)
}

// Banner returns the startup banner.
func (t *Text) Banner() string {
	return strings.TrimSpace(t.get(func(d *TextData) string { return d.Setup.Banner }))
}

// AddressPrompt returns the address prompt showing the default host.
func (t *Text) AddressPrompt(defaultHost string) string {
	return fmt.Sprintf(t.get(func(d *TextData) string { return d.Setup.AddressPrompt }), defaultHost)
}

// PortPrompt returns the port prompt showing the default port.
func (t *Text) PortPrompt(defaultPort int) string {
	return fmt.Sprintf(t.get(func(d *TextData) string { return d.Setup.PortPrompt }), defaultPort)
}

// ProtocolPrompt returns the protocol prompt showing the default protocol.
func (t *Text) ProtocolPrompt(defaultProtocol string) string {
	return fmt.Sprintf(t.get(func(d *TextData) string { return d.Setup.ProtocolPrompt }), defaultProtocol)
}

// InvalidPort is shown when the port answer is unusable.
func (t *Text) InvalidPort(defaultPort int) string {
	return fmt.Sprintf(t.get(func(d *TextData) string { return d.Setup.InvalidPort }), defaultPort)
}

// InvalidProtocol is shown when the protocol answer is neither TCP nor UDP.
func (t *Text) InvalidProtocol() string {
	return t.get(func(d *TextData) string { return d.Setup.InvalidProtocol })
}

// SessionHeader announces the transport and server.
func (t *Text) SessionHeader(mode, server string) string {
	return fmt.Sprintf(t.get(func(d *TextData) string { return d.Session.Header }), mode, server)
}

// Connected is printed each time a TCP connection is made.
func (t *Text) Connected(server string) string {
	return fmt.Sprintf(t.get(func(d *TextData) string { return d.Session.Connected }), server)
}

// SocketReady is printed once when the UDP socket is created.
func (t *Text) SocketReady(server string) string {
	return fmt.Sprintf(t.get(func(d *TextData) string { return d.Session.SocketReady }), server)
}

// Prompt returns the per-message prompt.
func (t *Text) Prompt() string {
	return t.get(func(d *TextData) string { return d.Session.Prompt })
}

// Response formats a server reply.
func (t *Text) Response(reply string) string {
	return fmt.Sprintf(t.get(func(d *TextData) string { return d.Session.Response }), reply)
}

// Diagnostic formats a failed exchange as one line.
func (t *Text) Diagnostic(err error) string {
	line := fmt.Sprintf(t.get(func(d *TextData) string { return d.Session.Diagnostic }), err)
	return strings.ReplaceAll(line, "\n", " ")
}

// ExitNotice is printed before the exit command goes to the server.
func (t *Text) ExitNotice() string {
	return t.get(func(d *TextData) string { return d.Session.ExitNotice })
}

// Farewell is printed when the user ends the session.
func (t *Text) Farewell() string {
	return t.get(func(d *TextData) string { return d.Session.Farewell })
}

// Inactive is printed when the inactivity timeout ends the session.
func (t *Text) Inactive(seconds int) string {
	return fmt.Sprintf(t.get(func(d *TextData) string { return d.Session.Inactive }), seconds)
}

// Interrupted is printed when the session is cancelled from outside.
func (t *Text) Interrupted() string {
	return t.get(func(d *TextData) string { return d.Session.Interrupted })
}
