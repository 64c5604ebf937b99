package imap

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
)

var (
	nextSessionNum      = 0
	nextSessionNumMutex = sync.Mutex{}
)

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the logger a Session writes to. By default the package
// logger configured with SetLogger is used.
func WithLogger(logger Logger) Option {
	return func(s *Session) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// Session owns one connection to an IMAP server, the mailbox selected on it
// and the Message handles enumerated from that mailbox.
//
// A Session is not safe for concurrent use. Callers that share one between
// goroutines must serialize every Session and Message call themselves.
type Session struct {
	engine   Engine
	conn     Conn
	onChange func()
	logger   Logger
	num      int

	state    State
	mailbox  string
	snap     *snapshot
	messages []*Message

	notifying bool
	closed    bool
}

// snapshot marks one enumeration of the selected mailbox. Every Message
// points at the snapshot it was built in; retiring the snapshot invalidates
// all of them at once.
type snapshot struct {
	retired bool
}

// NewSession creates an unconnected Session. onChange, if not nil, is called
// synchronously after every successful message deletion. It must not call
// back into the Session; such calls fail with ErrReentrant.
func NewSession(engine Engine, onChange func(), opts ...Option) *Session {
	nextSessionNumMutex.Lock()
	num := nextSessionNum
	nextSessionNum++
	nextSessionNumMutex.Unlock()

	s := &Session{
		engine:   engine,
		onChange: onChange,
		num:      num,
		snap:     &snapshot{},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = sessionLogger(s.logger, num)
	return s
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	return s.state
}

// Mailbox returns the selected mailbox, or "" if none is selected.
func (s *Session) Mailbox() string {
	return s.mailbox
}

// Connect establishes the underlying connection.
func (s *Session) Connect(ctx context.Context, server string, port int) error {
	const op = "connect"
	if err := s.requireState(op, StateUnconnected); err != nil {
		return err
	}
	if s.state != StateUnconnected {
		return stateError(op, fmt.Errorf("session is already %s", s.state))
	}

	conn, err := s.engine.Dial(ctx, server, port)
	if err != nil {
		s.debug("connect failed", "host", server, "port", port, "error", err)
		return &Error{Op: op, Kind: ErrConnection, Err: err}
	}
	s.conn = conn
	s.state = StateConnected
	s.debug("connected", "host", server, "port", port)
	return nil
}

// Login authenticates over a connected session.
func (s *Session) Login(ctx context.Context, user, password string) error {
	const op = "login"
	if err := s.requireState(op, StateConnected); err != nil {
		return err
	}
	if s.state != StateConnected {
		return stateError(op, fmt.Errorf("session is already %s", s.state))
	}

	if err := s.conn.Login(ctx, user, password); err != nil {
		return s.fail(&Error{Op: op, Kind: ErrAuthentication, Err: err})
	}
	s.state = StateAuthenticated
	s.debug("authenticated", "user", user)
	return nil
}

// SelectMailbox makes name the active mailbox. On success every Message
// enumerated from the previous mailbox is retired.
//
// A failed SELECT leaves the server with no mailbox selected, so a failure
// also retires the handles and drops the session back to authenticated.
func (s *Session) SelectMailbox(ctx context.Context, name string) error {
	const op = "select"
	if err := s.requireState(op, StateAuthenticated); err != nil {
		return err
	}

	if err := s.conn.Select(ctx, name); err != nil {
		e := s.fail(&Error{Op: op, Kind: ErrMailbox, Mailbox: name, Err: err})
		if s.state == StateMailboxSelected {
			s.retire()
			s.mailbox = ""
			s.state = StateAuthenticated
		}
		return e
	}
	s.retire()
	s.mailbox = name
	s.state = StateMailboxSelected
	s.debug("mailbox selected", "mailbox", name)
	return nil
}

// Messages enumerates the selected mailbox and returns one Message per UID,
// in server sequence order. Entries the server reports without a UID are
// skipped. Each call replaces the previous enumeration, retiring its handles.
//
// The returned slice is the caller's; the Session keeps its own copy.
func (s *Session) Messages(ctx context.Context) ([]*Message, error) {
	const op = "messages"
	if err := s.requireState(op, StateMailboxSelected); err != nil {
		return nil, err
	}

	count, err := s.mailCount(ctx)
	if err != nil {
		return nil, err
	}

	snap := &snapshot{}
	messages := make([]*Message, 0, count)
	if count > 0 {
		entries, err := s.conn.FetchUIDs(ctx, SeqRange{Start: 1, Stop: count})
		if err != nil {
			return nil, s.fail(&Error{Op: op, Kind: ErrFetch, Mailbox: s.mailbox, Err: err})
		}

		for _, entry := range entries {
			if entry.UID == 0 {
				s.debug("skipping entry without uid", "seq", entry.SeqNum)
				continue
			}
			m, err := newMessage(ctx, s, snap, entry.UID)
			if err != nil {
				snap.retired = true
				return nil, err
			}
			messages = append(messages, m)
		}
	}

	s.retire()
	s.snap = snap
	s.messages = messages
	s.debug("mailbox enumerated", "mailbox", s.mailbox, "count", count, "messages", len(messages))
	return slices.Clone(messages), nil
}

// mailCount asks the server how many messages the selected mailbox holds.
func (s *Session) mailCount(ctx context.Context) (uint32, error) {
	count, err := s.conn.MessageCount(ctx, s.mailbox)
	if err != nil {
		return 0, s.fail(&Error{Op: "status", Kind: ErrStatus, Mailbox: s.mailbox, Err: err})
	}
	return count, nil
}

// deleteMessage flags m deleted, expunges, then retires every handle and
// fires the change callback. Nothing is retired if either step fails, and a
// failed store is not followed by an expunge.
func (s *Session) deleteMessage(ctx context.Context, m *Message) error {
	const op = "delete"
	if err := s.requireState(op, StateMailboxSelected); err != nil {
		return err
	}
	if m.session != s || m.snap.retired {
		return &Error{Op: op, Kind: ErrProtocolState, Mailbox: s.mailbox, UID: m.uid, Err: ErrStaleMessage}
	}

	if err := s.conn.StoreDeleted(ctx, m.uid); err != nil {
		return s.fail(&Error{Op: op, Kind: ErrStore, Mailbox: s.mailbox, UID: m.uid, Err: err})
	}
	if err := s.conn.Expunge(ctx); err != nil {
		return s.fail(&Error{Op: op, Kind: ErrExpunge, Mailbox: s.mailbox, UID: m.uid, Err: err})
	}

	s.retire()
	s.debug("message deleted", "mailbox", s.mailbox, "uid", m.uid)
	s.notify()
	return nil
}

// Close retires every Message, logs out and releases the connection. It is
// safe to call more than once. Logout failures are logged, not returned.
func (s *Session) Close() error {
	if s.closed {
		return nil
	}
	if s.notifying {
		return stateError("close", ErrReentrant)
	}

	s.retire()
	s.release()
	s.closed = true
	s.debug("session closed")
	return nil
}

func (s *Session) retire() {
	s.snap.retired = true
	s.snap = &snapshot{}
	s.messages = nil
}

func (s *Session) release() {
	if s.conn != nil {
		if err := s.conn.Logout(); err != nil {
			s.logger.Warn("logout failed", "error", err)
		}
		s.conn = nil
	}
	s.mailbox = ""
	s.state = StateUnconnected
}

func (s *Session) notify() {
	if s.onChange == nil {
		return
	}
	s.notifying = true
	defer func() { s.notifying = false }()
	s.onChange()
}

// fail records e and, when the command was cut short by its context, drops
// the connection: the server may or may not have acted on it, so it cannot be
// trusted for further commands.
func (s *Session) fail(e *Error) *Error {
	s.debug("operation failed", "op", e.Op, "error", e.Err)
	if errors.Is(e.Err, context.Canceled) || errors.Is(e.Err, context.DeadlineExceeded) {
		s.logger.Warn("command interrupted, dropping connection", "op", e.Op, "error", e.Err)
		s.retire()
		s.release()
	}
	return e
}

func (s *Session) debug(msg string, args ...any) {
	if !Verbose {
		return
	}
	s.logger.Debug(msg, args...)
}
