package imap

import (
	"context"
	"fmt"

	"github.com/sqs/go-xoauth2"
)

// Login authenticates the connection. When the engine has XOAUTH2 set the
// password is sent as an OAuth 2.0 access token.
func (d *Dialer) Login(ctx context.Context, username string, password string) (err error) {
	d.Username = username
	d.password = password
	if d.engine != nil && d.engine.XOAUTH2 {
		return d.Authenticate(ctx, username, password)
	}
	// Don't retry authentication - auth failures should not trigger reconnection
	_, err = d.Exec(ctx, fmt.Sprintf(`LOGIN %s %s`, quote(username), quote(password)), false, 0, nil)
	return err
}

// Authenticate performs XOAUTH2 authentication using an access token
func (d *Dialer) Authenticate(ctx context.Context, user string, accessToken string) (err error) {
	b64 := xoauth2.XOAuth2String(user, accessToken)
	_, err = d.Exec(ctx, fmt.Sprintf("AUTHENTICATE XOAUTH2 %s", b64), false, 0, nil)
	return err
}
