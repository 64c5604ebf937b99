package imap

import (
	"context"
	"errors"
	"fmt"
	"slices"
)

// fakeMessage is one message held by fakeConn. A zero uid stands for an
// entry the server reports without a UID.
type fakeMessage struct {
	uid     uint32
	subject *string
	from    []Address
	body    string
}

type fakeEngine struct {
	conn    *fakeConn
	dialErr error
	dials   int
}

func (e *fakeEngine) Dial(ctx context.Context, host string, port int) (Conn, error) {
	e.dials++
	if e.dialErr != nil {
		return nil, e.dialErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return e.conn, nil
}

// fakeConn is a scripted Conn. Every call is recorded in calls; an error
// set in errs for a method name fails that method.
type fakeConn struct {
	user, password string
	mailboxes      map[string][]fakeMessage
	selected       string
	deleted        map[uint32]bool

	errs  map[string]error
	calls []string

	// block makes the named method wait for its context to end.
	block string
	// missing is a UID that FetchUIDs reports but FetchMessage cannot find.
	missing uint32
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		user:      "alice",
		password:  "secret",
		mailboxes: map[string][]fakeMessage{"INBOX": nil},
		deleted:   map[uint32]bool{},
		errs:      map[string]error{},
	}
}

func (c *fakeConn) call(ctx context.Context, name string) error {
	c.calls = append(c.calls, name)
	if c.block == name {
		<-ctx.Done()
		return fmt.Errorf("imap command interrupted: %w", ctx.Err())
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return c.errs[name]
}

func (c *fakeConn) count(name string) int {
	n := 0
	for _, call := range c.calls {
		if call == name {
			n++
		}
	}
	return n
}

func (c *fakeConn) Login(ctx context.Context, user, password string) error {
	if err := c.call(ctx, "Login"); err != nil {
		return err
	}
	if user != c.user || password != c.password {
		return errors.New("imap command failed: NO [AUTHENTICATIONFAILED] invalid credentials")
	}
	return nil
}

func (c *fakeConn) Select(ctx context.Context, mailbox string) error {
	if err := c.call(ctx, "Select"); err != nil {
		c.selected = ""
		return err
	}
	if _, ok := c.mailboxes[mailbox]; !ok {
		c.selected = ""
		return errors.New("imap command failed: NO [NONEXISTENT] no such mailbox")
	}
	c.selected = mailbox
	return nil
}

func (c *fakeConn) MessageCount(ctx context.Context, mailbox string) (uint32, error) {
	if err := c.call(ctx, "MessageCount"); err != nil {
		return 0, err
	}
	return uint32(len(c.mailboxes[mailbox])), nil
}

func (c *fakeConn) FetchUIDs(ctx context.Context, r SeqRange) ([]UIDEntry, error) {
	if err := c.call(ctx, "FetchUIDs"); err != nil {
		return nil, err
	}
	var entries []UIDEntry
	for i, m := range c.mailboxes[c.selected] {
		seq := uint32(i + 1)
		if seq >= r.Start && seq <= r.Stop {
			entries = append(entries, UIDEntry{SeqNum: seq, UID: m.uid})
		}
	}
	return entries, nil
}

func (c *fakeConn) FetchMessage(ctx context.Context, uid uint32) (*FetchedMessage, error) {
	if err := c.call(ctx, "FetchMessage"); err != nil {
		return nil, err
	}
	if uid == c.missing {
		return nil, nil
	}
	for _, m := range c.mailboxes[c.selected] {
		if m.uid == uid {
			return &FetchedMessage{Subject: m.subject, From: m.from, Body: m.body}, nil
		}
	}
	return nil, nil
}

func (c *fakeConn) StoreDeleted(ctx context.Context, uid uint32) error {
	if err := c.call(ctx, "StoreDeleted"); err != nil {
		return err
	}
	c.deleted[uid] = true
	return nil
}

func (c *fakeConn) Expunge(ctx context.Context) error {
	if err := c.call(ctx, "Expunge"); err != nil {
		return err
	}
	c.mailboxes[c.selected] = slices.DeleteFunc(c.mailboxes[c.selected], func(m fakeMessage) bool {
		return c.deleted[m.uid]
	})
	clear(c.deleted)
	return nil
}

func (c *fakeConn) Logout() error {
	c.calls = append(c.calls, "Logout")
	return c.errs["Logout"]
}
