package imap

import (
	"bufio"
	"context"
	"crypto/tls"
	"fmt"
	"mime"
	"net"
	"strconv"
	"strings"
	"sync"

	retry "github.com/StirlingMarketingGroup/go-retry"
)

var (
	nextConnNum      = 0
	nextConnNumMutex = sync.Mutex{}
)

// WireEngine is the built-in Engine. It speaks IMAP4rev1 directly over TLS,
// or over plain TCP when Insecure is set.
type WireEngine struct {
	// Insecure dials plain TCP instead of TLS.
	Insecure bool
	// TLSConfig overrides the TLS settings. ServerName defaults to the host
	// and TLSSkipVerify is honoured.
	TLSConfig *tls.Config
	// XOAUTH2 makes Login authenticate with AUTHENTICATE XOAUTH2, treating
	// the password as an OAuth 2.0 access token.
	XOAUTH2 bool
}

// Dial connects to the server, retrying the connection (not authentication)
// up to RetryCount times, and reads the server greeting.
func (e *WireEngine) Dial(ctx context.Context, host string, port int) (Conn, error) {
	d, err := e.dial(ctx, host, port)
	if err != nil {
		return nil, err
	}
	return d, nil
}

// Dialer represents an IMAP connection
type Dialer struct {
	conn      net.Conn
	r         *bufio.Reader
	engine    *WireEngine
	Mailbox   string
	Username  string
	password  string
	Host      string
	Port      int
	Connected bool
	ConnNum   int
	words     *mime.WordDecoder
}

func (e *WireEngine) dial(ctx context.Context, host string, port int) (d *Dialer, err error) {
	nextConnNumMutex.Lock()
	connNum := nextConnNum
	nextConnNum++
	nextConnNumMutex.Unlock()

	err = retry.Retry(func() error {
		debugLog(connNum, "", "establishing connection", "host", host, "port", port)
		conn, err := e.dialHost(ctx, host, port)
		if err != nil {
			debugLog(connNum, "", "failed to connect", "error", err)
			return err
		}
		d = &Dialer{
			conn:      conn,
			r:         bufio.NewReader(conn),
			engine:    e,
			Host:      host,
			Port:      port,
			Connected: true,
			ConnNum:   connNum,
			words:     newWordDecoder(),
		}
		if err = d.readGreeting(ctx); err != nil {
			_ = d.Close()
			return err
		}
		return nil
	}, RetryCount, func(err error) error {
		debugLog(connNum, "", "failed to connect, retrying shortly", "error", err)
		return ctx.Err()
	}, func() error {
		debugLog(connNum, "", "retrying connection now")
		return ctx.Err()
	})
	if err != nil {
		addr := net.JoinHostPort(host, strconv.Itoa(port))
		// go-retry flattens errors from its hooks, so recover the context cause
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("imap dial %s interrupted: %w", addr, ctxErr)
		}
		errorLog(connNum, "", "failed to establish connection", "host", host, "port", port, "error", err)
		return nil, fmt.Errorf("imap dial %s: %w", addr, err)
	}
	return d, nil
}

// dialHost establishes the transport connection to the IMAP server
func (e *WireEngine) dialHost(ctx context.Context, host string, port int) (net.Conn, error) {
	addr := net.JoinHostPort(host, strconv.Itoa(port))
	dialer := &net.Dialer{Timeout: DialTimeout}
	if e.Insecure {
		return dialer.DialContext(ctx, "tcp", addr)
	}

	cfg := &tls.Config{}
	if e.TLSConfig != nil {
		cfg = e.TLSConfig.Clone()
	}
	if cfg.ServerName == "" {
		cfg.ServerName = host
	}
	if TLSSkipVerify {
		cfg.InsecureSkipVerify = true
	}
	td := &tls.Dialer{NetDialer: dialer, Config: cfg}
	return td.DialContext(ctx, "tcp", addr)
}

// readGreeting consumes the untagged greeting the server sends on connect.
func (d *Dialer) readGreeting(ctx context.Context) error {
	stop := d.watch(ctx)
	defer stop()

	line, err := d.r.ReadString('\n')
	if err != nil {
		return fmt.Errorf("imap greeting: %w", err)
	}
	line = strings.TrimRight(line, "\r\n")
	debugLog(d.ConnNum, "", "server greeting", "greeting", line)

	switch {
	case strings.HasPrefix(line, "* OK"), strings.HasPrefix(line, "* PREAUTH"):
		return nil
	case strings.HasPrefix(line, "* BYE"):
		return fmt.Errorf("imap greeting: server refused connection: %s", line)
	}
	return fmt.Errorf("imap greeting: unexpected %q", line)
}

// Close closes the IMAP connection
func (d *Dialer) Close() (err error) {
	if d.Connected {
		debugLog(d.ConnNum, d.Mailbox, "closing connection")
		d.Connected = false
		if err = d.conn.Close(); err != nil {
			return fmt.Errorf("imap close: %w", err)
		}
	}
	return nil
}

// Logout sends LOGOUT and closes the connection. A failed LOGOUT still
// closes the connection.
func (d *Dialer) Logout() error {
	if !d.Connected {
		return nil
	}
	ctx := context.Background()
	if CommandTimeout == 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, defaultLogoutTimeout)
		defer cancel()
	}
	if _, err := d.Exec(ctx, "LOGOUT", false, 0, nil); err != nil {
		debugLog(d.ConnNum, d.Mailbox, "logout failed", "error", err)
	}
	return d.Close()
}

// Reconnect closes and reopens the IMAP connection, re-authenticating and
// re-selecting the mailbox that was active.
func (d *Dialer) Reconnect(ctx context.Context) (err error) {
	_ = d.Close()
	debugLog(d.ConnNum, d.Mailbox, "reopening connection")

	conn, err := d.engine.dialHost(ctx, d.Host, d.Port)
	if err != nil {
		return fmt.Errorf("imap reconnect dial: %w", err)
	}
	d.conn = conn
	d.r = bufio.NewReader(conn)
	d.Connected = true

	if err = d.readGreeting(ctx); err != nil {
		_ = d.Close()
		return fmt.Errorf("imap reconnect: %w", err)
	}

	if d.Username != "" {
		if err = d.Login(ctx, d.Username, d.password); err != nil {
			_ = d.Close()
			return fmt.Errorf("imap reconnect login: %w", err)
		}
	}

	if d.Mailbox != "" {
		if err = d.selectMailbox(ctx, d.Mailbox, 0); err != nil {
			return fmt.Errorf("imap reconnect select: %w", err)
		}
	}
	return nil
}
