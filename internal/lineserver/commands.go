package lineserver

import (
	"strings"
	"time"
)

// HelpText lists the commands the server understands.
const HelpText = "commands: ping, time, help, exit, quit; anything else is echoed"

// Respond computes the reply to one request line. done is true when the
// peer asked to leave and the connection should be closed after replying.
func Respond(line string, now time.Time) (reply string, done bool) {
	text := strings.TrimRight(line, "\r\n")

	switch strings.ToLower(strings.TrimSpace(text)) {
	case "ping":
		return "pong", false
	case "time":
		return now.Format(time.RFC3339), false
	case "help":
		return HelpText, false
	case "exit", "quit":
		return "bye", true
	}
	return "echo: " + text, false
}
