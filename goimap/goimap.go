// Package goimap is an imap.Engine backed by github.com/emersion/go-imap/v2.
//
// It is an alternative to the wire engine built into the imap package, for
// servers or auth mechanisms the wire engine does not cover.
package goimap

import (
	"cmp"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net"
	"slices"
	"strconv"

	imapv2 "github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
	"github.com/emersion/go-message/charset"
	"github.com/emersion/go-sasl"

	imap "github.com/BrianLeishman/go-imap-session"
)

// Mechanism selects how Conn.Login authenticates.
type Mechanism int

const (
	// AuthLogin uses the LOGIN command.
	AuthLogin Mechanism = iota
	// AuthPlain uses AUTHENTICATE PLAIN.
	AuthPlain
	// AuthOAuthBearer uses AUTHENTICATE OAUTHBEARER, with the password
	// treated as an OAuth 2.0 access token.
	AuthOAuthBearer
)

func (m Mechanism) String() string {
	switch m {
	case AuthLogin:
		return "LOGIN"
	case AuthPlain:
		return "PLAIN"
	case AuthOAuthBearer:
		return "OAUTHBEARER"
	}
	return "Mechanism(" + strconv.Itoa(int(m)) + ")"
}

// Options configure an Engine.
type Options struct {
	// Insecure dials plain TCP instead of TLS.
	Insecure bool
	// InsecureSkipVerify disables certificate verification.
	InsecureSkipVerify bool
	// TLSConfig overrides the TLS settings. ServerName defaults to the host.
	TLSConfig *tls.Config
	Auth      Mechanism
	Logger    imap.Logger
}

// Engine dials IMAP servers with go-imap's client.
type Engine struct {
	opts   Options
	logger imap.Logger
}

var _ imap.Engine = (*Engine)(nil)

// New returns an Engine configured by opts.
func New(opts Options) *Engine {
	logger := opts.Logger
	if logger == nil {
		logger = imap.SlogLogger(slog.Default())
	}
	return &Engine{
		opts:   opts,
		logger: logger.WithAttrs("component", "imap/goimap"),
	}
}

// Dial connects to host:port and waits for the server greeting.
func (e *Engine) Dial(ctx context.Context, host string, port int) (imap.Conn, error) {
	address := net.JoinHostPort(host, strconv.Itoa(port))
	dialer := &net.Dialer{Timeout: imap.DialTimeout}

	var (
		nc  net.Conn
		err error
	)
	if e.opts.Insecure {
		nc, err = dialer.DialContext(ctx, "tcp", address)
	} else {
		td := &tls.Dialer{NetDialer: dialer, Config: e.tlsConfig(host)}
		nc, err = td.DialContext(ctx, "tcp", address)
	}
	if err != nil {
		return nil, fmt.Errorf("dial imap %s: %w", address, err)
	}

	client := imapclient.New(nc, &imapclient.Options{
		WordDecoder: &mime.WordDecoder{CharsetReader: charset.Reader},
	})
	c := &conn{
		client: client,
		engine: e,
		host:   host,
		port:   port,
		logger: e.logger.WithAttrs("address", address),
	}
	if err := c.wait(ctx, client.WaitGreeting); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("imap greeting from %s: %w", address, err)
	}
	c.logger.Debug("imap connection established", "tls", !e.opts.Insecure)
	return c, nil
}

func (e *Engine) tlsConfig(host string) *tls.Config {
	cfg := &tls.Config{}
	if e.opts.TLSConfig != nil {
		cfg = e.opts.TLSConfig.Clone()
	}
	if cfg.ServerName == "" {
		cfg.ServerName = host
	}
	if e.opts.InsecureSkipVerify || imap.TLSSkipVerify {
		cfg.InsecureSkipVerify = true
	}
	return cfg
}

type conn struct {
	client *imapclient.Client
	engine *Engine
	host   string
	port   int
	logger imap.Logger
	closed bool
}

var _ imap.Conn = (*conn)(nil)

// wait runs fn, closing the client if ctx ends first. go-imap commands are
// not cancellable, so closing the connection is the only way to unblock them.
func (c *conn) wait(ctx context.Context, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	stopClose := context.AfterFunc(ctx, func() {
		_ = c.client.Close()
	})
	err := fn()
	if !stopClose() {
		c.closed = true
		return errors.Join(ctx.Err(), err)
	}
	return err
}

func (c *conn) Login(ctx context.Context, user, password string) error {
	return c.wait(ctx, func() error {
		switch c.engine.opts.Auth {
		case AuthLogin:
			return c.client.Login(user, password).Wait()
		case AuthPlain:
			return c.client.Authenticate(sasl.NewPlainClient("", user, password))
		case AuthOAuthBearer:
			return c.client.Authenticate(sasl.NewOAuthBearerClient(&sasl.OAuthBearerOptions{
				Username: user,
				Token:    password,
				Host:     c.host,
				Port:     c.port,
			}))
		}
		return fmt.Errorf("unsupported auth mechanism %s", c.engine.opts.Auth)
	})
}

func (c *conn) Select(ctx context.Context, mailbox string) error {
	return c.wait(ctx, func() error {
		data, err := c.client.Select(mailbox, nil).Wait()
		if err != nil {
			return err
		}
		c.logger.Debug("mailbox selected", "mailbox", mailbox, "messages", data.NumMessages)
		return nil
	})
}

func (c *conn) MessageCount(ctx context.Context, mailbox string) (count uint32, err error) {
	err = c.wait(ctx, func() error {
		data, err := c.client.Status(mailbox, &imapv2.StatusOptions{NumMessages: true}).Wait()
		if err != nil {
			return err
		}
		if data.NumMessages == nil {
			return fmt.Errorf("STATUS %q: server omitted MESSAGES", mailbox)
		}
		count = *data.NumMessages
		return nil
	})
	return count, err
}

func (c *conn) FetchUIDs(ctx context.Context, r imap.SeqRange) (entries []imap.UIDEntry, err error) {
	var seqSet imapv2.SeqSet
	seqSet.AddRange(r.Start, r.Stop)

	err = c.wait(ctx, func() error {
		bufs, err := c.client.Fetch(seqSet, &imapv2.FetchOptions{UID: true}).Collect()
		if err != nil {
			return err
		}
		entries = make([]imap.UIDEntry, 0, len(bufs))
		for _, buf := range bufs {
			entries = append(entries, imap.UIDEntry{SeqNum: buf.SeqNum, UID: uint32(buf.UID)})
		}
		return nil
	})
	slices.SortStableFunc(entries, func(a, b imap.UIDEntry) int {
		return cmp.Compare(a.SeqNum, b.SeqNum)
	})
	return entries, err
}

func (c *conn) FetchMessage(ctx context.Context, uid uint32) (msg *imap.FetchedMessage, err error) {
	section := &imapv2.FetchItemBodySection{Peek: true}
	options := &imapv2.FetchOptions{
		UID:         true,
		Envelope:    true,
		BodySection: []*imapv2.FetchItemBodySection{section},
	}

	err = c.wait(ctx, func() error {
		bufs, err := c.client.Fetch(imapv2.UIDSetNum(imapv2.UID(uid)), options).Collect()
		if err != nil {
			return err
		}
		for _, buf := range bufs {
			if uint32(buf.UID) == uid {
				msg = fetchedMessage(buf, section)
				return nil
			}
		}
		return nil
	})
	return msg, err
}

// fetchedMessage converts a go-imap fetch buffer. go-imap decodes a NIL
// subject as "", so an empty subject is reported as absent.
func fetchedMessage(buf *imapclient.FetchMessageBuffer, section *imapv2.FetchItemBodySection) *imap.FetchedMessage {
	msg := &imap.FetchedMessage{
		Body: string(buf.FindBodySection(section)),
	}
	if env := buf.Envelope; env != nil {
		if env.Subject != "" {
			subject := env.Subject
			msg.Subject = &subject
		}
		for _, addr := range env.From {
			msg.From = append(msg.From, imap.Address{
				Name:    addr.Name,
				Mailbox: addr.Mailbox,
				Host:    addr.Host,
			})
		}
	}
	return msg
}

func (c *conn) StoreDeleted(ctx context.Context, uid uint32) error {
	return c.wait(ctx, func() error {
		return c.client.Store(imapv2.UIDSetNum(imapv2.UID(uid)), &imapv2.StoreFlags{
			Op:     imapv2.StoreFlagsAdd,
			Silent: true,
			Flags:  []imapv2.Flag{imapv2.FlagDeleted},
		}, nil).Close()
	})
}

func (c *conn) Expunge(ctx context.Context) error {
	return c.wait(ctx, func() error {
		return c.client.Expunge().Close()
	})
}

func (c *conn) Logout() error {
	if c.closed {
		return nil
	}
	c.closed = true
	if err := c.client.Logout().Wait(); err != nil {
		c.logger.Warn("imap logout failed", "error", err)
	}
	if err := c.client.Close(); err != nil {
		c.logger.Debug("imap connection closed", "error", err)
	}
	return nil
}
