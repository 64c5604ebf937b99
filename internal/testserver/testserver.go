// Package testserver runs an in-memory IMAP server for tests.
package testserver

import (
	"bytes"
	"io"
	"log"
	"net"
	"testing"
	"time"

	imapv2 "github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapserver"
	"github.com/emersion/go-imap/v2/imapserver/imapmemserver"
	"github.com/emersion/go-message/mail"
)

// Credentials accepted by every Server.
const (
	Username = "alice@example.com"
	Password = "correct horse"
)

// fixtureDate is the Date header and internal date of every fixture.
var fixtureDate = time.Date(2024, time.March, 1, 9, 30, 0, 0, time.UTC)

// Server is a plain-TCP IMAP server with one user whose INBOX starts empty.
type Server struct {
	Host string
	Port int
	User *imapmemserver.User
}

// Start listens on a loopback port and stops the server when tb ends.
func Start(tb testing.TB) *Server {
	tb.Helper()

	mem := imapmemserver.New()
	user := imapmemserver.NewUser(Username, Password)
	if err := user.Create("INBOX", nil); err != nil {
		tb.Fatalf("create INBOX: %v", err)
	}
	mem.AddUser(user)

	srv := imapserver.New(&imapserver.Options{
		NewSession: func(*imapserver.Conn) (imapserver.Session, *imapserver.GreetingData, error) {
			return mem.NewSession(), nil, nil
		},
		Caps:         imapv2.CapSet{imapv2.CapIMAP4rev1: {}},
		InsecureAuth: true,
		Logger:       log.New(io.Discard, "", 0),
	})

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		tb.Fatalf("listen: %v", err)
	}
	go func() {
		_ = srv.Serve(ln)
	}()
	tb.Cleanup(func() {
		_ = srv.Close()
	})

	return &Server{
		Host: "127.0.0.1",
		Port: ln.Addr().(*net.TCPAddr).Port,
		User: user,
	}
}

// Append stores raw in mailbox.
func (s *Server) Append(tb testing.TB, mailbox string, raw []byte) {
	tb.Helper()
	opts := &imapv2.AppendOptions{Time: fixtureDate}
	if _, err := s.User.Append(mailbox, bytes.NewReader(raw), opts); err != nil {
		tb.Fatalf("append to %s: %v", mailbox, err)
	}
}

// Message builds a text/plain RFC 5322 message. An empty subject or sender
// address leaves that header out.
func Message(tb testing.TB, fromName, fromAddr, subject, body string) []byte {
	tb.Helper()

	var h mail.Header
	h.SetDate(fixtureDate)
	if fromAddr != "" {
		h.SetAddressList("From", []*mail.Address{{Name: fromName, Address: fromAddr}})
	}
	if subject != "" {
		h.SetSubject(subject)
	}
	h.SetContentType("text/plain", map[string]string{"charset": "utf-8"})

	var buf bytes.Buffer
	w, err := mail.CreateSingleInlineWriter(&buf, h)
	if err != nil {
		tb.Fatalf("create message: %v", err)
	}
	if _, err = io.WriteString(w, body); err != nil {
		tb.Fatalf("write message: %v", err)
	}
	if err = w.Close(); err != nil {
		tb.Fatalf("close message: %v", err)
	}
	return buf.Bytes()
}
