package imap

import (
	"strings"
	"time"
)

// AddSlashes escapes backslashes and double quotes for IMAP quoted strings.
var AddSlashes = strings.NewReplacer(`\`, `\\`, `"`, `\"`)

// Verbose outputs every command and its response with the IMAP server
var Verbose = false

// SkipResponses skips printing server responses in verbose mode
var SkipResponses = false

// RetryCount is how many times the wire engine retries establishing a
// connection and re-running read-only commands. Authentication, STORE and
// EXPUNGE are never retried.
var RetryCount = 10

// DialTimeout defines how long to wait when establishing a new connection.
// Zero means no timeout.
var DialTimeout time.Duration

// CommandTimeout defines how long to wait for a command to complete.
// Zero means no timeout. A context deadline that is sooner wins.
var CommandTimeout time.Duration

// TLSSkipVerify disables certificate verification when establishing new
// connections. Use with caution; skipping verification exposes the
// connection to man-in-the-middle attacks.
var TLSSkipVerify bool
