package imap

import (
	"errors"
	"strconv"
	"strings"
)

// Error kinds. Every error returned by a Session or Message is an *Error
// whose Kind is one of these, so callers can test with errors.Is.
var (
	ErrConnection     = errors.New("connection error")
	ErrAuthentication = errors.New("authentication error")
	ErrProtocolState  = errors.New("protocol state error")
	ErrMailbox        = errors.New("mailbox error")
	ErrStatus         = errors.New("status error")
	ErrFetch          = errors.New("fetch error")
	ErrStore          = errors.New("store error")
	ErrExpunge        = errors.New("expunge error")
	ErrUnknownField   = errors.New("unknown field")
)

// Detail errors wrapped by an *Error alongside its kind.
var (
	ErrNotSelected   = errors.New("no mailbox selected")
	ErrStaleMessage  = errors.New("message handle is stale")
	ErrReentrant     = errors.New("session called from its change callback")
	ErrSessionClosed = errors.New("session is closed")
	ErrNoMessage     = errors.New("server returned no entry for uid")
)

// Error describes a failed Session or Message operation.
type Error struct {
	Op      string // operation, e.g. "select", "fetch", "delete"
	Kind    error  // one of the Err* kinds above
	Mailbox string
	UID     uint32
	Err     error // underlying cause, may be nil
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString("imap ")
	b.WriteString(e.Op)
	if e.Mailbox != "" {
		b.WriteString(` "`)
		b.WriteString(e.Mailbox)
		b.WriteString(`"`)
	}
	if e.UID != 0 {
		b.WriteString(" uid ")
		b.WriteString(strconv.FormatUint(uint64(e.UID), 10))
	}
	b.WriteString(": ")
	b.WriteString(e.Kind.Error())
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap exposes both the kind and the cause to errors.Is and errors.As.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func stateError(op string, cause error) *Error {
	return &Error{Op: op, Kind: ErrProtocolState, Err: cause}
}
