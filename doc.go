// Package imap provides a small, session-oriented IMAP client core.
//
// It models exactly the operations a simple mail reader needs:
//
//   - Connecting and authenticating (LOGIN, or XOAUTH2 on the wire engine)
//   - Selecting one mailbox at a time
//   - Enumerating the mailbox into Message handles, one per UID
//   - Reading the Subject, From and body of a message
//   - Deleting a message (STORE \Deleted followed by EXPUNGE)
//
// A Session owns its connection and the Message handles it created. The
// handles are a snapshot: selecting another mailbox, re-enumerating, deleting
// a message or closing the Session retires every handle at once, after which
// mutating calls on a retired Message fail with ErrStaleMessage.
//
// The protocol itself sits behind the Engine and Conn interfaces. WireEngine
// is the built-in implementation; package goimap provides one backed by
// github.com/emersion/go-imap/v2.
package imap
