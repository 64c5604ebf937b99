package imap

import "fmt"

// State is the lifecycle state of a Session.
type State int

const (
	StateUnconnected State = iota
	StateConnected
	StateAuthenticated
	StateMailboxSelected
)

func (s State) String() string {
	switch s {
	case StateUnconnected:
		return "unconnected"
	case StateConnected:
		return "connected"
	case StateAuthenticated:
		return "authenticated"
	case StateMailboxSelected:
		return "mailbox selected"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// requireState fails with ErrProtocolState unless the session is at least in
// state min.
func (s *Session) requireState(op string, min State) error {
	if s.closed {
		return stateError(op, ErrSessionClosed)
	}
	if s.notifying {
		return stateError(op, ErrReentrant)
	}
	if s.state < min {
		cause := fmt.Errorf("requires %s, session is %s", min, s.state)
		if min == StateMailboxSelected {
			cause = fmt.Errorf("%w: %w", ErrNotSelected, cause)
		}
		return stateError(op, cause)
	}
	return nil
}
