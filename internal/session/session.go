// Package session runs the interactive message loop on top of a transport client.
package session

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/lawnchairsociety/sockclient/internal/idle"
	"github.com/lawnchairsociety/sockclient/internal/logger"
	"github.com/lawnchairsociety/sockclient/internal/text"
	"github.com/lawnchairsociety/sockclient/internal/transport"
)

// State is the position of the loop in its cycle.
type State int

const (
	AwaitingInput State = iota
	Exchanging
	Displaying
	Terminated
)

func (s State) String() string {
	switch s {
	case AwaitingInput:
		return "awaiting-input"
	case Exchanging:
		return "exchanging"
	case Displaying:
		return "displaying"
	case Terminated:
		return "terminated"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Reason tells why a session ended.
type Reason int

const (
	ReasonNone Reason = iota
	ReasonExit
	ReasonInactive
	ReasonEndOfInput
	ReasonCancelled
)

func (r Reason) String() string {
	switch r {
	case ReasonExit:
		return "exit"
	case ReasonInactive:
		return "inactive"
	case ReasonEndOfInput:
		return "end-of-input"
	case ReasonCancelled:
		return "cancelled"
	default:
		return "none"
	}
}

// Options configures a Session. In and Out are required.
type Options struct {
	In   io.Reader
	Out  io.Writer
	Text *text.Text

	// IdleTimeout is the inactivity interval; 0 disables it.
	IdleTimeout time.Duration
}

// Session drives one client through AwaitingInput, Exchanging and
// Displaying until the user exits, input ends or the timer fires.
type Session struct {
	client transport.Client
	timer  *idle.Timer
	in     io.Reader
	out    io.Writer
	text   *text.Text
	idle   time.Duration

	mu     sync.Mutex
	state  State
	reason Reason
}

// New binds a client and its inactivity timer into a session.
func New(client transport.Client, timer *idle.Timer, opts Options) *Session {
	if opts.Text == nil {
		opts.Text = text.Default()
	}
	return &Session{
		client: client,
		timer:  timer,
		in:     opts.In,
		out:    opts.Out,
		text:   opts.Text,
		idle:   opts.IdleTimeout,
		state:  AwaitingInput,
	}
}

// IsExitCommand reports whether line asks to leave the session.
func IsExitCommand(line string) bool {
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "exit", "quit":
		return true
	}
	return false
}

// Run loops until the session terminates. It always closes the client and
// cancels the timer before returning. Exit, inactivity and end of input
// all return nil; cancellation of ctx returns ctx.Err().
func (s *Session) Run(parent context.Context) error {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	fmt.Fprint(s.out, s.text.SessionHeader(s.client.Kind().String(), s.client.Address().String()))
	logger.Info("Session started",
		"transport", s.client.Kind().String(),
		"server", s.client.Address().String(),
		"idle_timeout", s.idle.String())

	s.timer.Start(s.idle)
	expired := s.timer.Done()

	// An exchange blocked on the network must also give way to the timer.
	go func() {
		select {
		case <-expired:
			cancel()
		case <-ctx.Done():
		}
	}()

	lines := make(chan string)
	inputDone := make(chan error, 1)
	go s.readInput(ctx, lines, inputDone)

	for {
		s.setState(AwaitingInput)
		fmt.Fprint(s.out, s.text.Prompt())

		var line string
		select {
		case <-expired:
			return s.terminate(ReasonInactive)
		case <-ctx.Done():
			if s.timer.Fired() {
				return s.terminate(ReasonInactive)
			}
			s.terminate(ReasonCancelled)
			return parent.Err()
		case err := <-inputDone:
			if err != nil {
				logger.Warning("Reading input failed", "error", err)
			}
			return s.terminate(ReasonEndOfInput)
		case line = <-lines:
		}

		if strings.TrimSpace(line) == "" {
			continue
		}

		if IsExitCommand(line) {
			s.sendExitNotice(line)
			return s.terminate(ReasonExit)
		}

		s.setState(Exchanging)
		reply, err := s.client.Exchange(ctx, line)
		if s.timer.Fired() {
			return s.terminate(ReasonInactive)
		}
		if err != nil {
			if parent.Err() != nil {
				s.terminate(ReasonCancelled)
				return parent.Err()
			}
			// A failed exchange is reported and the loop carries on
			if transport.Recoverable(err) {
				logger.Info("Exchange failed", "transport", s.client.Kind().String(), "error", err)
			} else {
				logger.Warning("Exchange failed", "transport", s.client.Kind().String(), "error", err)
			}
			fmt.Fprintln(s.out, s.text.Diagnostic(err))
			continue
		}

		s.setState(Displaying)
		fmt.Fprint(s.out, s.text.Response(reply))
		s.timer.Reset()
	}
}

// State returns the current loop state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Reason returns why the session terminated, ReasonNone while running.
func (s *Session) Reason() Reason {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reason
}

func (s *Session) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

// readInput feeds lines to the loop so the loop can wait on the timer too.
func (s *Session) readInput(ctx context.Context, lines chan<- string, done chan<- error) {
	scanner := bufio.NewScanner(s.in)
	for scanner.Scan() {
		select {
		case lines <- scanner.Text():
		case <-ctx.Done():
			return
		}
	}
	done <- scanner.Err()
}

// sendExitNotice tells a still-connected server that the session is over.
// Only clients holding a channel implement transport.Notifier.
func (s *Session) sendExitNotice(line string) {
	n, ok := s.client.(transport.Notifier)
	if !ok {
		return
	}
	fmt.Fprintln(s.out, s.text.ExitNotice())
	if err := n.Notify(strings.TrimSpace(line)); err != nil {
		logger.Info("Exit notice not sent", "error", err)
	}
}

func (s *Session) terminate(reason Reason) error {
	if s.State() == Terminated {
		return nil
	}

	s.mu.Lock()
	s.state = Terminated
	s.reason = reason
	s.mu.Unlock()

	s.timer.Cancel()
	if err := s.client.Close(); err != nil {
		logger.Warning("Closing client failed", "error", err)
	}

	switch reason {
	case ReasonInactive:
		fmt.Fprintln(s.out, s.text.Inactive(int(s.idle/time.Second)))
	case ReasonCancelled:
		fmt.Fprintln(s.out, s.text.Interrupted())
	default:
		fmt.Fprintln(s.out, s.text.Farewell())
	}

	logger.Info("Session ended", "reason", reason.String())
	return nil
}
