// Package address turns loosely written server addresses into a host and port.
package address

import (
	"errors"
	"fmt"
	"net"
	"regexp"
	"strconv"
	"strings"
)

// MinPort and MaxPort bound every port an Address may carry.
const (
	MinPort = 1
	MaxPort = 65535
)

// ErrMalformedAddress is returned for input that cannot be resolved to a
// non-empty host and a port in MinPort..MaxPort.
var ErrMalformedAddress = errors.New("malformed address")

// schemePrefix matches "tcp://", "http://", "udp+x://" and similar.
var schemePrefix = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9+.\-]*://`)

// Address is a parsed server endpoint. The zero value is not valid.
type Address struct {
	Host string
	Port int
}

// String returns host:port, bracketing IPv6 literals.
func (a Address) String() string {
	return net.JoinHostPort(a.Host, strconv.Itoa(a.Port))
}

// Parse resolves raw into an Address. Accepted forms include a bare
// hostname or IP, host:port, [v6]:port and any of those behind a
// scheme:// prefix. The scheme is discarded; it never selects a transport.
// A port present in raw always wins over defaultPort.
func Parse(raw string, defaultPort int) (Address, error) {
	rest := strings.TrimSpace(raw)
	if loc := schemePrefix.FindStringIndex(rest); loc != nil {
		rest = rest[loc[1]:]
	}

	// Only the authority part matters.
	if i := strings.IndexAny(rest, "/?#"); i >= 0 {
		rest = rest[:i]
	}
	if i := strings.LastIndex(rest, "@"); i >= 0 {
		rest = rest[i+1:]
	}

	host, portText, hasPort, err := splitHostPort(rest)
	if err != nil {
		return Address{}, malformed(raw, err.Error())
	}
	if host == "" {
		return Address{}, malformed(raw, "empty host")
	}

	port := defaultPort
	if hasPort {
		port, err = parsePort(portText)
		if err != nil {
			return Address{}, malformed(raw, err.Error())
		}
	} else if !ValidPort(defaultPort) {
		return Address{}, malformed(raw, fmt.Sprintf("default port %d out of range", defaultPort))
	}

	return Address{Host: host, Port: port}, nil
}

// ValidPort reports whether p is a usable port number.
func ValidPort(p int) bool {
	return p >= MinPort && p <= MaxPort
}

// splitHostPort splits at the last colon outside an IPv6 bracket group.
// Only a text that parses as an IPv6 address is taken as a bare host
// despite its colons.
func splitHostPort(s string) (host, port string, hasPort bool, err error) {
	if strings.HasPrefix(s, "[") {
		end := strings.Index(s, "]")
		if end < 0 {
			return "", "", false, errors.New("unterminated IPv6 literal")
		}
		host = s[1:end]
		tail := s[end+1:]
		switch {
		case tail == "":
			return host, "", false, nil
		case tail[0] == ':':
			return host, tail[1:], true, nil
		default:
			return "", "", false, fmt.Errorf("unexpected %q after IPv6 literal", tail)
		}
	}

	switch strings.Count(s, ":") {
	case 0:
		return s, "", false, nil
	case 1:
	default:
		if isIPv6Literal(s) {
			return s, "", false, nil
		}
	}
	// Anything else carries a port after the last colon, which parsePort vets.
	i := strings.LastIndex(s, ":")
	return s[:i], s[i+1:], true, nil
}

// isIPv6Literal reports whether s is an unbracketed IPv6 address,
// optionally with a %zone suffix.
func isIPv6Literal(s string) bool {
	if i := strings.Index(s, "%"); i >= 0 {
		s = s[:i]
	}
	return net.ParseIP(s) != nil
}

func parsePort(s string) (int, error) {
	if s == "" {
		return 0, errors.New("empty port")
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, fmt.Errorf("port %q is not numeric", s)
		}
	}
	p, err := strconv.Atoi(s)
	if err != nil || !ValidPort(p) {
		return 0, fmt.Errorf("port %q out of range", s)
	}
	return p, nil
}

func malformed(raw, reason string) error {
	return fmt.Errorf("%w %q: %s", ErrMalformedAddress, raw, reason)
}
