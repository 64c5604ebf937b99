package imap

import (
	"io"
	"mime"
	"strings"

	"github.com/davecgh/go-spew/spew"
	"golang.org/x/net/html/charset"
)

// Envelope field positions
const (
	EDate uint8 = iota
	ESubject
	EFrom
	ESender
	EReplyTo
	ETo
	ECC
	EBCC
	EInReplyTo
	EMessageID
)

// Envelope address field positions
const (
	EEName uint8 = iota
	// EESR is the source route, unused and ignored
	EESR
	EEMailbox
	EEHost
)

func newWordDecoder() *mime.WordDecoder {
	return &mime.WordDecoder{
		CharsetReader: func(label string, input io.Reader) (io.Reader, error) {
			return charset.NewReaderLabel(label, input)
		},
	}
}

// decodeHeader decodes RFC 2047 encoded words, keeping the raw text when the
// encoding is broken or uses an unknown charset.
func (d *Dialer) decodeHeader(s string) string {
	if d.words == nil {
		d.words = newWordDecoder()
	}
	decoded, err := d.words.DecodeHeader(s)
	if err != nil {
		debugLog(d.ConnNum, d.Mailbox, "undecodable header, keeping raw text", "header", s, "error", err)
		return s
	}
	return decoded
}

// decodeFetched turns the items of a UID FETCH (UID ENVELOPE BODY[]) record
// into a FetchedMessage.
func (d *Dialer) decodeFetched(rec FetchRecord) (m *FetchedMessage, err error) {
	defer func() {
		if err != nil && Verbose {
			debugLog(d.ConnNum, d.Mailbox, "malformed fetch response", "seq", rec.SeqNum, "tokens", spew.Sdump(rec.Tokens))
		}
	}()

	m = &FetchedMessage{}
	tks := rec.Tokens
	for i := 0; i < len(tks); i += 2 {
		if err = checkType(tks[i], []TType{TLiteral}, "for item name %d", i); err != nil {
			return nil, err
		}
		if i+1 >= len(tks) {
			return nil, checkType(nil, []TType{TUnset}, "after %s", tks[i].Str)
		}
		value := tks[i+1]
		switch strings.ToUpper(tks[i].Str) {
		case "ENVELOPE":
			if err = d.decodeEnvelope(value, m); err != nil {
				return nil, err
			}
		case "BODY[]":
			if err = checkType(value, []TType{TAtom, TQuoted, TNil}, "after BODY[]"); err != nil {
				return nil, err
			}
			m.Body = value.Str
		}
	}
	return m, nil
}

func (d *Dialer) decodeEnvelope(env *Token, m *FetchedMessage) error {
	if err := checkType(env, []TType{TContainer}, "after ENVELOPE"); err != nil {
		return err
	}
	if len(env.Tokens) <= int(EFrom) {
		return checkType(nil, []TType{TNil, TContainer}, "for ENVELOPE[%d]", EFrom)
	}

	subject := env.Tokens[ESubject]
	if err := checkType(subject, []TType{TQuoted, TAtom, TNil}, "for ENVELOPE[%d]", ESubject); err != nil {
		return err
	}
	if subject.Type != TNil {
		s := d.decodeHeader(subject.Str)
		m.Subject = &s
	}

	from := env.Tokens[EFrom]
	if err := checkType(from, []TType{TNil, TContainer}, "for ENVELOPE[%d]", EFrom); err != nil {
		return err
	}
	for i, addr := range from.Tokens {
		if err := checkType(addr, []TType{TContainer}, "for FROM[%d]", i); err != nil {
			return err
		}
		if len(addr.Tokens) <= int(EEHost) {
			return checkType(nil, []TType{TQuoted, TAtom, TNil}, "for FROM[%d][%d]", i, EEHost)
		}
		for _, pos := range []uint8{EEName, EEMailbox, EEHost} {
			if err := checkType(addr.Tokens[pos], []TType{TQuoted, TAtom, TNil}, "for FROM[%d][%d]", i, pos); err != nil {
				return err
			}
		}
		m.From = append(m.From, Address{
			Name:    d.decodeHeader(addr.Tokens[EEName].Str),
			Mailbox: addr.Tokens[EEMailbox].Str,
			Host:    addr.Tokens[EEHost].Str,
		})
	}
	return nil
}
