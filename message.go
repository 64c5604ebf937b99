package imap

import (
	"context"
	"fmt"
	"strings"

	humanize "github.com/dustin/go-humanize"
	"github.com/jhillyerd/enmime/v2"
)

// Field names understood by Message.Field.
const (
	FieldFrom    = "From"
	FieldSubject = "Subject"
)

// Message is one mail item of the selected mailbox, identified by UID. Its
// fields are fetched once when the Session enumerates the mailbox and are
// never re-fetched.
type Message struct {
	session *Session
	snap    *snapshot
	uid     uint32

	sender  string
	subject string
	body    string
}

// Content is a MIME-decoded view of a message body.
type Content struct {
	Text        string
	HTML        string
	Attachments []Attachment
}

// Attachment represents an email attachment
type Attachment struct {
	Name     string
	MimeType string
	Content  []byte
}

// String returns a formatted string representation of an Attachment
func (a Attachment) String() string {
	return fmt.Sprintf("%s (%s %s)", a.Name, a.MimeType, humanize.Bytes(uint64(len(a.Content))))
}

func newMessage(ctx context.Context, s *Session, snap *snapshot, uid uint32) (*Message, error) {
	const op = "fetch"
	fetched, err := s.conn.FetchMessage(ctx, uid)
	if err != nil {
		return nil, s.fail(&Error{Op: op, Kind: ErrFetch, Mailbox: s.mailbox, UID: uid, Err: err})
	}
	if fetched == nil {
		return nil, &Error{Op: op, Kind: ErrFetch, Mailbox: s.mailbox, UID: uid, Err: ErrNoMessage}
	}

	m := &Message{
		session: s,
		snap:    snap,
		uid:     uid,
	}
	m.decode(fetched)
	return m, nil
}

// decode fills the display fields. The subject wins: From is only rendered
// for messages that have no subject.
func (m *Message) decode(f *FetchedMessage) {
	if f.Subject != nil {
		m.subject = *f.Subject
	} else if len(f.From) > 0 {
		m.sender = renderAddresses(f.From)
	}
	m.body = f.Body
}

// renderAddresses renders "Name <mailbox@host>; " per address. Addresses
// lacking a mailbox or host render nothing but still get the separator.
func renderAddresses(addrs []Address) string {
	var b strings.Builder
	for _, a := range addrs {
		if a.Mailbox != "" && a.Host != "" {
			if a.Name != "" {
				b.WriteString(a.Name)
				b.WriteByte(' ')
			}
			b.WriteByte('<')
			b.WriteString(a.Mailbox)
			b.WriteByte('@')
			b.WriteString(a.Host)
			b.WriteByte('>')
		}
		b.WriteString("; ")
	}
	return b.String()
}

// UID returns the server-assigned UID of the message.
func (m *Message) UID() uint32 {
	return m.uid
}

// Body returns the raw body text, or "" if the server sent none.
func (m *Message) Body() string {
	return m.body
}

// Field returns the sender for "From" and the subject for "Subject". Any other
// name fails with ErrUnknownField.
func (m *Message) Field(name string) (string, error) {
	switch name {
	case FieldFrom:
		return m.sender, nil
	case FieldSubject:
		return m.subject, nil
	}
	return "", &Error{Op: "field " + name, Kind: ErrUnknownField, UID: m.uid}
}

// Valid reports whether the message still belongs to its Session's current
// enumeration. Fields of a retired message stay readable, but Delete fails.
func (m *Message) Valid() bool {
	return !m.snap.retired
}

// Delete flags the message \Deleted and expunges the mailbox. On success
// every Message of the Session, this one included, is retired and the
// Session's change callback is called once.
func (m *Message) Delete(ctx context.Context) error {
	return m.session.deleteMessage(ctx, m)
}

// Content MIME-decodes the body into its text, HTML and attachment parts.
func (m *Message) Content() (*Content, error) {
	env, err := enmime.ReadEnvelope(strings.NewReader(m.body))
	if err != nil {
		return nil, &Error{Op: "decode", Kind: ErrFetch, UID: m.uid, Err: err}
	}

	c := &Content{
		Text: env.Text,
		HTML: env.HTML,
	}
	for _, parts := range [][]*enmime.Part{env.Attachments, env.Inlines} {
		for _, p := range parts {
			c.Attachments = append(c.Attachments, Attachment{
				Name:     p.FileName,
				MimeType: p.ContentType,
				Content:  p.Content,
			})
		}
	}
	return c, nil
}

// String returns a one-line summary of the message.
func (m *Message) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "UID %d", m.uid)
	if m.subject != "" {
		fmt.Fprintf(&b, " Subject: %s", m.subject)
	}
	if m.sender != "" {
		fmt.Fprintf(&b, " From: %s", strings.TrimSuffix(m.sender, "; "))
	}
	fmt.Fprintf(&b, " (%s)", humanize.Bytes(uint64(len(m.body))))
	return b.String()
}
