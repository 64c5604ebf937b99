package imap

import (
	"context"
	"fmt"
)

// Engine establishes connections to an IMAP server. It is the only way a
// Session obtains a Conn.
type Engine interface {
	// Dial connects to host:port. Transport failures of any kind (DNS, TCP,
	// TLS) are returned as a plain error; the Session reports them uniformly
	// as ErrConnection.
	Dial(ctx context.Context, host string, port int) (Conn, error)
}

// Conn is one live protocol connection. Calls on a Conn are never issued
// concurrently; the Session that owns it serializes them.
type Conn interface {
	Login(ctx context.Context, user, password string) error
	Select(ctx context.Context, mailbox string) error
	// MessageCount returns the MESSAGES item of a STATUS query.
	MessageCount(ctx context.Context, mailbox string) (uint32, error)
	// FetchUIDs returns one entry per message in r, in sequence order. An
	// entry whose UID could not be resolved carries UID 0.
	FetchUIDs(ctx context.Context, r SeqRange) ([]UIDEntry, error)
	// FetchMessage fetches the envelope and the full body of one message by
	// UID. It returns (nil, nil) when the server has no such message.
	FetchMessage(ctx context.Context, uid uint32) (*FetchedMessage, error)
	// StoreDeleted sets the \Deleted flag on one message by UID.
	StoreDeleted(ctx context.Context, uid uint32) error
	Expunge(ctx context.Context) error
	// Logout ends the IMAP session and releases the connection. It is
	// idempotent.
	Logout() error
}

// SeqRange is an inclusive range of message sequence numbers.
type SeqRange struct {
	Start uint32
	Stop  uint32
}

func (r SeqRange) String() string {
	if r.Start == r.Stop {
		return fmt.Sprintf("%d", r.Start)
	}
	return fmt.Sprintf("%d:%d", r.Start, r.Stop)
}

// UIDEntry pairs a sequence number with the UID the server reported for it.
type UIDEntry struct {
	SeqNum uint32
	UID    uint32
}

// Address is one envelope address. Empty fields were NIL on the wire.
type Address struct {
	Name    string
	Mailbox string
	Host    string
}

// FetchedMessage is the decoded result of fetching ENVELOPE and BODY[] for a
// single message.
type FetchedMessage struct {
	// Subject is nil when the envelope subject was NIL.
	Subject *string
	From    []Address
	Body    string
}
