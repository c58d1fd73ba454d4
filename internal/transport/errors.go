package transport

import (
	"errors"
	"fmt"
)

var (
	// ErrChannelAcquisition: the UDP socket could not be set up. Fatal for the session.
	ErrChannelAcquisition = errors.New("channel acquisition failed")

	// ErrConnect: the server refused or could not be reached.
	ErrConnect = errors.New("connect failed")

	// ErrSend: the message could not be written.
	ErrSend = errors.New("send failed")

	// ErrReceive: the reply could not be read.
	ErrReceive = errors.New("receive failed")

	// ErrResponseTimeout: no UDP reply within the response wait.
	ErrResponseTimeout = errors.New("response timeout")

	// ErrClosed: the client was used after Close.
	ErrClosed = errors.New("client closed")

	// ErrUnknownKind: a transport outside TCP and UDP was requested.
	ErrUnknownKind = errors.New("unknown transport kind")
)

// Error describes a failed transport operation. errors.Is matches both
// the class sentinel and the underlying cause.
type Error struct {
	Op    string // "dial", "write", "read"
	Kind  Kind
	Addr  string
	Class error
	Err   error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s %s %s: %v", e.Kind, e.Op, e.Addr, e.Class)
	}
	return fmt.Sprintf("%s %s %s: %v: %v", e.Kind, e.Op, e.Addr, e.Class, e.Err)
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Class}
	}
	return []error{e.Class, e.Err}
}

// Recoverable reports whether err should end only the current exchange
// rather than the session.
func Recoverable(err error) bool {
	return errors.Is(err, ErrConnect) ||
		errors.Is(err, ErrSend) ||
		errors.Is(err, ErrReceive) ||
		errors.Is(err, ErrResponseTimeout)
}
