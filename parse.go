package imap

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	atom             = regexp.MustCompile(`{\d+\+?}$`)
	fetchLineStartRE = regexp.MustCompile(`(?m)^\* (\d+) FETCH `)
	statusMessagesRE = regexp.MustCompile(`(?i)\bMESSAGES (\d+)`)
)

// Token represents a parsed IMAP token
type Token struct {
	Type   TType
	Str    string
	Num    int
	Tokens []*Token
}

// TType represents the type of an IMAP token
type TType uint8

const (
	TUnset     TType = iota
	TAtom            // literal data, {n}
	TNumber          // bare number
	TLiteral         // bare atom
	TQuoted          // quoted string
	TNil             // NIL
	TContainer       // parenthesized list
)

// FetchRecord is one "* n FETCH (...)" response with its item list.
type FetchRecord struct {
	SeqNum uint32
	Tokens []*Token
}

// UID returns the value of the first UID item in the record, or 0 if the
// record has none.
func (r FetchRecord) UID() uint32 {
	for i := 0; i+1 < len(r.Tokens); i += 2 {
		t, v := r.Tokens[i], r.Tokens[i+1]
		if t.Type == TLiteral && strings.EqualFold(t.Str, "UID") && v.Type == TNumber && v.Num > 0 {
			return uint32(v.Num)
		}
	}
	return 0
}

type tokenizer struct {
	s string
	i int
}

// parseFetchTokens parses the item list of a FETCH response
func parseFetchTokens(r string) ([]*Token, error) {
	t := &tokenizer{s: r}
	tokens, err := t.list(0)
	if err != nil {
		return nil, err
	}
	if len(tokens) == 1 && tokens[0].Type == TContainer {
		tokens = tokens[0].Tokens
	}
	return tokens, nil
}

// list reads tokens until the ')' closing the list at depth, or until the
// end of input at depth 0.
func (t *tokenizer) list(depth int) ([]*Token, error) {
	tokens := make([]*Token, 0)
	for t.i < len(t.s) {
		b := t.s[t.i]
		switch {
		case b == ' ', b == '\r', b == '\n':
			t.i++
		case b == '(':
			t.i++
			children, err := t.list(depth + 1)
			if err != nil {
				return nil, err
			}
			tokens = append(tokens, &Token{Type: TContainer, Tokens: children})
		case b == ')':
			if depth == 0 {
				return nil, fmt.Errorf("unmatched ')' at char %d", t.i)
			}
			t.i++
			return tokens, nil
		case b == '"':
			tok, err := t.quoted()
			if err != nil {
				return nil, err
			}
			tokens = append(tokens, tok)
		case b == '{':
			tok, err := t.literal()
			if err != nil {
				return nil, err
			}
			tokens = append(tokens, tok)
		case IsLiteral(rune(b)):
			tokens = append(tokens, t.atom())
		default:
			return nil, fmt.Errorf("unexpected %q at char %d", b, t.i)
		}
	}
	if depth != 0 {
		return nil, fmt.Errorf("mismatched parentheses, depth %d at end of input", depth)
	}
	return tokens, nil
}

func (t *tokenizer) quoted() (*Token, error) {
	var b strings.Builder
	for t.i++; t.i < len(t.s); t.i++ {
		switch c := t.s[t.i]; c {
		case '"':
			t.i++
			return &Token{Type: TQuoted, Str: b.String()}, nil
		case '\\':
			t.i++
			if t.i < len(t.s) {
				b.WriteByte(t.s[t.i])
			}
		default:
			b.WriteByte(c)
		}
	}
	return nil, fmt.Errorf("unterminated quoted string")
}

func (t *tokenizer) literal() (*Token, error) {
	end := strings.IndexByte(t.s[t.i:], '}')
	if end == -1 {
		return nil, fmt.Errorf("unterminated literal size at char %d", t.i)
	}
	sizeStr := strings.TrimSuffix(t.s[t.i+1:t.i+end], "+")
	size, err := strconv.Atoi(sizeStr)
	if err != nil {
		return nil, fmt.Errorf("literal size %q: %w", sizeStr, err)
	}
	t.i += end + 1
	if strings.HasPrefix(t.s[t.i:], "\r\n") {
		t.i += 2
	} else if strings.HasPrefix(t.s[t.i:], "\n") {
		t.i++
	}
	if t.i+size > len(t.s) {
		return nil, fmt.Errorf("literal size %d exceeds remaining %d bytes", size, len(t.s)-t.i)
	}
	tok := &Token{Type: TAtom, Str: t.s[t.i : t.i+size]}
	t.i += size
	return tok, nil
}

func (t *tokenizer) atom() *Token {
	start := t.i
	for t.i < len(t.s) && IsLiteral(rune(t.s[t.i])) {
		t.i++
	}
	s := t.s[start:t.i]
	if num, err := strconv.Atoi(s); err == nil {
		return &Token{Type: TNumber, Num: num}
	}
	if strings.EqualFold(s, "NIL") {
		return &Token{Type: TNil}
	}
	return &Token{Type: TLiteral, Str: s}
}

// ParseFetchResponse parses every "* n FETCH (...)" response in a command's
// untagged output. Other untagged responses are ignored, as is anything that
// only looks like a FETCH line because it sits inside literal data.
func ParseFetchResponse(responseBody string) (records []FetchRecord, err error) {
	records = make([]FetchRecord, 0)
	for p := 0; p < len(responseBody); {
		loc := fetchLineStartRE.FindStringSubmatchIndex(responseBody[p:])
		if loc == nil {
			break
		}
		seqStr := responseBody[p+loc[2] : p+loc[3]]
		seq, err := strconv.ParseUint(seqStr, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("unable to parse Fetch line (invalid seq num %s): %w", seqStr, err)
		}

		t := &tokenizer{s: responseBody, i: p + loc[1]}
		if t.i >= len(responseBody) || responseBody[t.i] != '(' {
			return nil, fmt.Errorf("unable to parse Fetch line %d (expected '(' after FETCH)", seq)
		}
		t.i++
		tokens, err := t.list(1)
		if err != nil {
			return nil, fmt.Errorf("token parsing failed for FETCH %d: %w", seq, err)
		}
		records = append(records, FetchRecord{SeqNum: uint32(seq), Tokens: tokens})
		p = t.i
	}
	return records, nil
}

// parseStatusMessages extracts the MESSAGES count from a STATUS response
func parseStatusMessages(r string) (uint32, error) {
	for _, line := range strings.Split(r, nl) {
		if !strings.HasPrefix(line, "* STATUS ") {
			continue
		}
		m := statusMessagesRE.FindStringSubmatch(line)
		if m == nil {
			break
		}
		n, err := strconv.ParseUint(m[1], 10, 32)
		if err != nil {
			return 0, err
		}
		return uint32(n), nil
	}
	return 0, fmt.Errorf("invalid status response: %q", r)
}

// IsLiteral reports whether b may appear in a bare atom
func IsLiteral(b rune) bool {
	switch b {
	case '(', ')', '{', '"':
		return false
	}
	return b > ' ' && b != 0x7f
}

// GetTokenName returns the string name of a token type
func GetTokenName(tokenType TType) string {
	switch tokenType {
	case TUnset:
		return "TUnset"
	case TAtom:
		return "TAtom"
	case TNumber:
		return "TNumber"
	case TLiteral:
		return "TLiteral"
	case TQuoted:
		return "TQuoted"
	case TNil:
		return "TNil"
	case TContainer:
		return "TContainer"
	}
	return ""
}

// String returns a string representation of a Token
func (t Token) String() string {
	tokenType := GetTokenName(t.Type)
	switch t.Type {
	case TUnset, TNil:
		return tokenType
	case TAtom, TQuoted:
		return fmt.Sprintf("(%s, len %d, chars %d %#v)", tokenType, len(t.Str), len([]rune(t.Str)), t.Str)
	case TNumber:
		return fmt.Sprintf("(%s %d)", tokenType, t.Num)
	case TLiteral:
		return fmt.Sprintf("(%s %s)", tokenType, t.Str)
	case TContainer:
		return fmt.Sprintf("(%s children: %s)", tokenType, t.Tokens)
	}
	return ""
}

// checkType validates that a token is one of the acceptable types
func checkType(token *Token, acceptableTypes []TType, loc string, v ...any) error {
	if token != nil {
		for _, a := range acceptableTypes {
			if token.Type == a {
				return nil
			}
		}
	}
	names := make([]string, len(acceptableTypes))
	for i, a := range acceptableTypes {
		names[i] = GetTokenName(a)
	}
	got := "nothing"
	if token != nil {
		got = token.String()
	}
	return fmt.Errorf("expected %s token %s, got %s", strings.Join(names, "|"), fmt.Sprintf(loc, v...), got)
}
