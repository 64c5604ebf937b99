package imap

import (
	"cmp"
	"context"
	"fmt"
	"slices"
)

// Select selects a mailbox in read-write mode
func (d *Dialer) Select(ctx context.Context, mailbox string) error {
	return d.selectMailbox(ctx, mailbox, RetryCount)
}

func (d *Dialer) selectMailbox(ctx context.Context, mailbox string, retryCount int) error {
	if _, err := d.Exec(ctx, "SELECT "+quote(mailbox), true, retryCount, nil); err != nil {
		d.Mailbox = ""
		return err
	}
	d.Mailbox = mailbox
	return nil
}

// MessageCount returns the number of messages in mailbox via STATUS
func (d *Dialer) MessageCount(ctx context.Context, mailbox string) (uint32, error) {
	r, err := d.Exec(ctx, "STATUS "+quote(mailbox)+" (MESSAGES)", true, RetryCount, nil)
	if err != nil {
		return 0, err
	}
	return parseStatusMessages(r)
}

// FetchUIDs returns the UID of every message in the sequence range r
func (d *Dialer) FetchUIDs(ctx context.Context, r SeqRange) ([]UIDEntry, error) {
	resp, err := d.Exec(ctx, "FETCH "+r.String()+" (UID)", true, RetryCount, nil)
	if err != nil {
		return nil, err
	}
	records, err := ParseFetchResponse(resp)
	if err != nil {
		return nil, err
	}

	entries := make([]UIDEntry, 0, len(records))
	for _, rec := range records {
		entries = append(entries, UIDEntry{SeqNum: rec.SeqNum, UID: rec.UID()})
	}
	slices.SortStableFunc(entries, func(a, b UIDEntry) int {
		return cmp.Compare(a.SeqNum, b.SeqNum)
	})
	return entries, nil
}

// FetchMessage fetches the envelope and full body of the message with uid
func (d *Dialer) FetchMessage(ctx context.Context, uid uint32) (*FetchedMessage, error) {
	resp, err := d.Exec(ctx, fmt.Sprintf("UID FETCH %d (UID ENVELOPE BODY.PEEK[])", uid), true, RetryCount, nil)
	if err != nil {
		return nil, err
	}
	records, err := ParseFetchResponse(resp)
	if err != nil {
		return nil, err
	}

	// servers may interleave unsolicited FETCH responses for other messages
	for _, rec := range records {
		if rec.UID() == uid {
			return d.decodeFetched(rec)
		}
	}
	return nil, nil
}

// StoreDeleted sets \Deleted on the message with uid
func (d *Dialer) StoreDeleted(ctx context.Context, uid uint32) error {
	query, err := storeQuery(uid, FlagDeleted)
	if err != nil {
		return err
	}
	_, err = d.Exec(ctx, query, false, 0, nil)
	return err
}

// Expunge permanently removes emails marked for deletion
func (d *Dialer) Expunge(ctx context.Context) error {
	_, err := d.Exec(ctx, "EXPUNGE", false, 0, nil)
	return err
}
