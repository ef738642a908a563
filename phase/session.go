package phase

// This file contains the pseudo-terminal session used by the interactive
// pty mode and the smoke check.

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/x/ansi"
	"github.com/creack/pty"
	"github.com/rs/zerolog"
)

// ErrStalled is returned when a session produced no output within the
// stall timeout.
var ErrStalled = errors.New("session stalled")

const endOfTransmission = "\x04"

// Session is a child process attached to a pseudo-terminal.
type Session struct {
	cmd    *exec.Cmd
	tty    *os.File
	logger zerolog.Logger

	mu       sync.Mutex
	buf      strings.Builder
	read     int
	activity time.Time
	notify   chan struct{}

	readDone chan struct{}
	done     chan struct{}
	waitErr  error
}

// StartSession starts c on a pseudo-terminal. It returns an error wrapping
// pty.ErrUnsupported on platforms without one.
func StartSession(ctx context.Context, c Command, logger zerolog.Logger) (*Session, error) {
	cmd := exec.CommandContext(ctx, c.Path, c.Args...)
	cmd.Dir = c.Dir
	cmd.Env = c.Env
	cmd.Cancel = func() error { return terminateTree(cmd) }
	cmd.WaitDelay = waitDelay

	logger.Debug().Str("cmd", c.String()).Str("dir", c.Dir).Msg("Starting pty session")

	tty, err := pty.StartWithSize(cmd, &pty.Winsize{Rows: 40, Cols: 120})
	if err != nil {
		return nil, fmt.Errorf("failed to start %s on a pty: %w", c.Path, err)
	}
	s := &Session{
		cmd:      cmd,
		tty:      tty,
		logger:   logger,
		activity: time.Now(),
		notify:   make(chan struct{}, 1),
		readDone: make(chan struct{}),
		done:     make(chan struct{}),
	}
	go s.pump()
	go func() {
		s.waitErr = cmd.Wait()
		close(s.done)
	}()
	return s, nil
}

func (s *Session) pump() {
	defer close(s.readDone)
	chunk := make([]byte, 8192)
	for {
		n, err := s.tty.Read(chunk)
		if n > 0 {
			s.mu.Lock()
			s.buf.Write(chunk[:n])
			s.activity = time.Now()
			s.mu.Unlock()
			select {
			case s.notify <- struct{}{}:
			default:
			}
		}
		if err != nil {
			return
		}
	}
}

// Send types line followed by a newline.
func (s *Session) Send(line string) error {
	if _, err := s.tty.WriteString(line + "\n"); err != nil {
		return fmt.Errorf("failed to write to session: %w", err)
	}
	return nil
}

// SendEOT ends the session input.
func (s *Session) SendEOT() error {
	_, err := s.tty.WriteString(endOfTransmission)
	return err
}

// Output returns everything the session printed so far.
func (s *Session) Output() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.String()
}

// Expect waits until the unread output, with ANSI sequences removed,
// matches re. It returns the unread output and marks it read.
func (s *Session) Expect(re *regexp.Regexp, timeout time.Duration) (string, error) {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	for {
		s.mu.Lock()
		unread := s.buf.String()[s.read:]
		if re.MatchString(ansi.Strip(unread)) {
			s.read += len(unread)
			s.mu.Unlock()
			return unread, nil
		}
		s.mu.Unlock()

		select {
		case <-s.notify:
		case <-s.readDone:
			select {
			case <-s.notify:
				continue
			default:
			}
			return unread, fmt.Errorf("session closed while waiting for /%s/", re)
		case <-deadline.C:
			return unread, fmt.Errorf("timeout waiting for /%s/", re)
		}
	}
}

// Wait waits for the process to exit. If the session prints nothing for
// longer than stall, the process tree is killed and ErrStalled returned.
func (s *Session) Wait(stall time.Duration) (int, error) {
	if stall <= 0 {
		stall = waitDelay
	}
	tick := time.NewTicker(stall / 4)
	defer tick.Stop()
	for {
		select {
		case <-s.done:
			select {
			case <-s.readDone:
			case <-time.After(100 * time.Millisecond):
			}
			return exitCode(s.waitErr), nil
		case <-tick.C:
			s.mu.Lock()
			idle := time.Since(s.activity)
			s.mu.Unlock()
			if idle > stall {
				_ = terminateTree(s.cmd)
				<-s.done
				return exitCode(s.waitErr), ErrStalled
			}
		}
	}
}

// Close stops the session, politely first.
func (s *Session) Close() error {
	select {
	case <-s.done:
	default:
		_ = interruptTree(s.cmd)
		select {
		case <-s.done:
		case <-time.After(time.Second):
			_ = terminateTree(s.cmd)
			<-s.done
		}
	}
	return s.tty.Close()
}

func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if code := exitErr.ExitCode(); code != 0 {
			return code
		}
		return 1
	}
	return -1
}
