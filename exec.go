package imap

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	retry "github.com/StirlingMarketingGroup/go-retry"
	"github.com/rs/xid"
)

const defaultLogoutTimeout = 5 * time.Second

// CommandError is a tagged NO or BAD completion from the server.
type CommandError struct {
	Status string // "NO" or "BAD"
	Text   string
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("imap command failed: %s %s", e.Status, e.Text)
}

// newTag returns a command tag: an xid in upper case, which is 20 base32hex
// characters (0-9, A-V) and unique across connections.
func newTag() []byte {
	return []byte(strings.ToUpper(xid.New().String()))
}

// watch applies the context deadline (or CommandTimeout, whichever is
// sooner) to the connection and aborts blocked I/O when ctx is cancelled.
// The returned func undoes both.
func (d *Dialer) watch(ctx context.Context) (stop func()) {
	deadline, ok := ctx.Deadline()
	if CommandTimeout != 0 {
		if t := time.Now().Add(CommandTimeout); !ok || t.Before(deadline) {
			deadline, ok = t, true
		}
	}
	if ok {
		_ = d.conn.SetDeadline(deadline)
	}
	stopAfter := context.AfterFunc(ctx, func() {
		_ = d.conn.SetDeadline(time.Now())
	})
	return func() {
		stopAfter()
		_ = d.conn.SetDeadline(time.Time{})
	}
}

// Exec sends one tagged command and reads until its completion. Untagged
// lines, with any {n} literals inlined, are passed to processLine and, when
// buildResponse is set, collected into the returned response.
//
// Transport failures are retried up to retryCount times, reconnecting in
// between. A NO/BAD completion and context cancellation are never retried;
// after a cancellation the connection is closed because the server state of
// the interrupted command is unknown.
func (d *Dialer) Exec(ctx context.Context, command string, buildResponse bool, retryCount int, processLine func(line []byte) error) (response string, err error) {
	if !d.Connected {
		return "", errors.New("imap: connection is closed")
	}

	var resp strings.Builder
	var cmdErr error
	err = retry.Retry(func() (err error) {
		if err = ctx.Err(); err != nil {
			return err
		}
		tag := newTag()

		stop := d.watch(ctx)
		defer stop()

		c := fmt.Sprintf("%s %s\r\n", tag, command)
		debugLog(d.ConnNum, d.Mailbox, "sending command", "command", d.sanitize(strings.TrimSpace(c)))

		if _, err = d.conn.Write([]byte(c)); err != nil {
			return err
		}

		if buildResponse {
			resp = strings.Builder{}
		}
		var line []byte
		for {
			if line, err = d.readLine(); err != nil {
				return err
			}

			if Verbose && !SkipResponses {
				debugLog(d.ConnNum, d.Mailbox, "server response", "response", string(dropNl(line)))
			}

			// continuation request: the only one we ever get is a SASL
			// error challenge, answered with an empty response
			if line[0] == '+' {
				if _, err = d.conn.Write([]byte("\r\n")); err != nil {
					return err
				}
				continue
			}

			taglen := len(tag)
			if len(line) > taglen && bytes.Equal(line[:taglen], tag) && line[taglen] == ' ' {
				status, text, _ := strings.Cut(string(dropNl(line[taglen+1:])), " ")
				if status != "OK" {
					cmdErr = &CommandError{Status: status, Text: text}
				}
				return nil
			}

			if processLine != nil {
				if err = processLine(line); err != nil {
					return err
				}
			}
			if buildResponse {
				resp.Write(line)
			}
		}
	}, retryCount, func(err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		warnLog(d.ConnNum, d.Mailbox, "command failed, closing connection", "error", err)
		_ = d.Close()
		return nil
	}, func() error {
		return d.Reconnect(ctx)
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			_ = d.Close()
			return "", fmt.Errorf("imap command interrupted: %w", ctxErr)
		}
		if retryCount > 0 {
			errorLog(d.ConnNum, d.Mailbox, "command retries exhausted", "error", err)
		}
		return "", err
	}
	if cmdErr != nil {
		return "", cmdErr
	}

	if buildResponse {
		return resp.String(), nil
	}
	return "", nil
}

// readLine reads one response line, appending the data of any {n} literal
// it announces together with the rest of the line that follows it.
func (d *Dialer) readLine() (line []byte, err error) {
	if line, err = d.r.ReadBytes('\n'); err != nil {
		return nil, err
	}
	for {
		a := atom.Find(dropNl(line))
		if a == nil {
			return line, nil
		}
		n, err := strconv.Atoi(string(bytes.TrimSuffix(a[1:len(a)-1], []byte("+"))))
		if err != nil {
			return nil, err
		}

		buf := make([]byte, n)
		if _, err = io.ReadFull(d.r, buf); err != nil {
			return nil, err
		}
		line = append(line, buf...)

		if buf, err = d.r.ReadBytes('\n'); err != nil {
			return nil, err
		}
		line = append(line, buf...)
	}
}

// sanitize hides credentials in a command before it is logged.
func (d *Dialer) sanitize(c string) string {
	if i := strings.Index(c, "AUTHENTICATE "); i != -1 {
		return c[:i] + "AUTHENTICATE ****"
	}
	if d.password != "" {
		c = strings.ReplaceAll(c, `"`+AddSlashes.Replace(d.password)+`"`, `"****"`)
	}
	return c
}
