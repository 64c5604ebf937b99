package imap

import (
	"reflect"
	"strings"
	"testing"
)

func TestParseFetchTokensLiteralBoundary(t *testing.T) {
	tests := []struct {
		name         string
		input        string
		wantErr      bool
		errContains  string
		description  string
		wantTokens   int  // Expected number of tokens
		checkContent bool // Whether to check token content
	}{
		{
			name:         "empty literal {0}",
			input:        "(BODY {0}\r\n)",
			description:  "Should handle empty literal {0} correctly",
			wantTokens:   2, // BODY and empty atom
			checkContent: true,
		},
		{
			name:         "literal with exact size",
			input:        "(BODY {5}\r\nHello)",
			description:  "Should handle literal with exact matching size",
			wantTokens:   2, // BODY and "Hello"
			checkContent: true,
		},
		{
			name:        "literal swallows spaces up to its size",
			input:       "(BODY {10}\r\nHello     )",
			description: "Should take exactly the declared number of bytes",
			wantTokens:  2,
		},
		{
			name:        "literal at end with size but no data",
			input:       "(BODY {5}\r\n",
			wantErr:     true,
			errContains: "exceeds remaining",
			description: "Should error when literal declares size but has no data",
		},
		{
			name:         "literal with multiline content",
			input:        "(BODY {15}\r\nThis is a test.)",
			description:  "Should handle literal with exact size match",
			wantTokens:   2,
			checkContent: true,
		},
		{
			name:        "multiple tokens with literal",
			input:       "(UID 7 BODY {5}\r\nHello FLAGS (\\Seen))",
			description: "Should handle complex input with literal in middle",
			wantTokens:  6, // UID, 7, BODY, "Hello", FLAGS, container
		},
		{
			name:        "non-synchronizing literal",
			input:       "(BODY {3+}\r\nabc)",
			description: "Should accept the LITERAL+ form",
			wantTokens:  2,
		},
		{
			name:        "unterminated literal size",
			input:       "(BODY {3",
			wantErr:     true,
			errContains: "unterminated literal",
		},
		{
			name:        "unbalanced parentheses",
			input:       "(UID 7",
			wantErr:     true,
			errContains: "mismatched parentheses",
		},
		{
			name:        "stray closing parenthesis",
			input:       "UID 7)",
			wantErr:     true,
			errContains: "unmatched ')'",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tokens, err := parseFetchTokens(tt.input)

			if tt.wantErr {
				if err == nil {
					t.Errorf("parseFetchTokens() error = nil, wantErr %v", tt.wantErr)
					return
				}
				if tt.errContains != "" && !strings.Contains(err.Error(), tt.errContains) {
					t.Errorf("parseFetchTokens() error = %v, want error containing %v", err, tt.errContains)
				}
				return
			}
			if err != nil {
				t.Errorf("parseFetchTokens() unexpected error = %v for case: %s", err, tt.description)
				return
			}

			if tt.wantTokens > 0 && len(tokens) != tt.wantTokens {
				t.Errorf("parseFetchTokens() got %d tokens, want %d for case: %s", len(tokens), tt.wantTokens, tt.description)
			}

			if tt.checkContent && len(tokens) >= 2 {
				if tokens[0].Type != TLiteral || tokens[0].Str != "BODY" {
					t.Errorf("parseFetchTokens() first token = %+v, want BODY literal", tokens[0])
				}
				if tt.name == "empty literal {0}" && tokens[1].Type != TAtom {
					t.Errorf("parseFetchTokens() second token type = %v, want TAtom for empty literal", tokens[1].Type)
				}
				if tt.name == "literal with exact size" && (tokens[1].Type != TAtom || tokens[1].Str != "Hello") {
					t.Errorf("parseFetchTokens() second token = %+v, want Hello atom", tokens[1])
				}
			}
		})
	}
}

func TestParseFetchTokensScalars(t *testing.T) {
	tokens, err := parseFetchTokens(`(nil NIL "a \"quoted\" \\ string" 42 \Seen)`)
	if err != nil {
		t.Fatalf("parseFetchTokens error: %v", err)
	}
	want := []*Token{
		{Type: TNil},
		{Type: TNil},
		{Type: TQuoted, Str: `a "quoted" \ string`},
		{Type: TNumber, Num: 42},
		{Type: TLiteral, Str: `\Seen`},
	}
	if !reflect.DeepEqual(tokens, want) {
		t.Errorf("got %v want %v", tokens, want)
	}
}

func TestParseFetchResponse(t *testing.T) {
	resp := "* 1 FETCH (UID 7 FLAGS (\\Seen))\r\n"
	recs, err := ParseFetchResponse(resp)
	if err != nil {
		t.Fatalf("ParseFetchResponse error: %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("expected 1 record got %d", len(recs))
	}
	if recs[0].SeqNum != 1 {
		t.Errorf("expected seq 1 got %d", recs[0].SeqNum)
	}
	r := recs[0].Tokens
	if len(r) != 4 {
		t.Fatalf("expected 4 tokens got %d", len(r))
	}
	if r[0].Type != TLiteral || r[0].Str != "UID" {
		t.Errorf("unexpected token %#v", r[0])
	}
	if r[1].Type != TNumber || r[1].Num != 7 {
		t.Errorf("unexpected token %#v", r[1])
	}
	if r[2].Type != TLiteral || r[2].Str != "FLAGS" {
		t.Errorf("unexpected token %#v", r[2])
	}
	if r[3].Type != TContainer || len(r[3].Tokens) != 1 || r[3].Tokens[0].Str != "\\Seen" {
		t.Errorf("unexpected token %#v", r[3])
	}
}

func TestParseFetchResponseSkipsOtherResponses(t *testing.T) {
	resp := "* 3 EXISTS\r\n" +
		"* 1 FETCH (UID 10)\r\n" +
		"* 1 RECENT\r\n" +
		"* 2 FETCH (BODY[] {24}\r\n* 9 FETCH (UID 99)\r\nbody UID 11)\r\n" +
		"* 3 FETCH (FLAGS ())\r\n"
	recs, err := ParseFetchResponse(resp)
	if err != nil {
		t.Fatalf("ParseFetchResponse error: %v", err)
	}

	var got [][2]uint32
	for _, r := range recs {
		got = append(got, [2]uint32{r.SeqNum, r.UID()})
	}
	want := [][2]uint32{{1, 10}, {2, 11}, {3, 0}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v want %v", got, want)
	}
}

func TestParseFetchResponseErrors(t *testing.T) {
	tests := []struct {
		name string
		resp string
	}{
		{"missing list", "* 1 FETCH UID 7\r\n"},
		{"unterminated list", "* 1 FETCH (UID 7\r\n"},
		{"sequence overflow", "* 99999999999 FETCH (UID 7)\r\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseFetchResponse(tt.resp); err == nil {
				t.Errorf("ParseFetchResponse(%q) error = nil", tt.resp)
			}
		})
	}
}

func TestFetchRecordUID(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want uint32
	}{
		{"uid first", "(UID 5 FLAGS ())", 5},
		{"uid last", "(FLAGS (\\Seen) UID 12)", 12},
		{"lowercase", "(uid 3)", 3},
		{"no uid", "(FLAGS ())", 0},
		{"uid zero", "(UID 0)", 0},
		{"uid as value is ignored", "(X-LABEL UID FLAGS ())", 0},
		{"dangling name", "(UID)", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tokens, err := parseFetchTokens(tt.in)
			if err != nil {
				t.Fatalf("parseFetchTokens error: %v", err)
			}
			if got := (FetchRecord{Tokens: tokens}).UID(); got != tt.want {
				t.Errorf("UID() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestParseStatusMessages(t *testing.T) {
	tests := []struct {
		name    string
		resp    string
		want    uint32
		wantErr bool
	}{
		{"simple", "* STATUS \"INBOX\" (MESSAGES 231)\r\n", 231, false},
		{"several items", "* STATUS INBOX (UIDNEXT 44 MESSAGES 3 UNSEEN 1)\r\n", 3, false},
		{"empty mailbox", "* STATUS \"Archive\" (MESSAGES 0)\r\n", 0, false},
		{"with noise", "* 4 EXISTS\r\n* STATUS \"INBOX\" (MESSAGES 4)\r\n", 4, false},
		{"missing item", "* STATUS \"INBOX\" (UNSEEN 2)\r\n", 0, true},
		{"no status line", "* 4 EXISTS\r\n", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseStatusMessages(tt.resp)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseStatusMessages() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("parseStatusMessages() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestIsLiteral(t *testing.T) {
	for _, r := range "ABCxyz019\\[]<>.+-*%:" {
		if !IsLiteral(r) {
			t.Errorf("IsLiteral(%q) = false", r)
		}
	}
	for _, r := range "() {\"\r\n\x00\x7f" {
		if IsLiteral(r) {
			t.Errorf("IsLiteral(%q) = true", r)
		}
	}
}

func TestCheckType(t *testing.T) {
	if err := checkType(&Token{Type: TNil}, []TType{TQuoted, TNil}, "for subject"); err != nil {
		t.Errorf("checkType() unexpected error = %v", err)
	}
	err := checkType(&Token{Type: TNumber, Num: 1}, []TType{TQuoted}, "for %s", "subject")
	if err == nil || !strings.Contains(err.Error(), "expected TQuoted token for subject") {
		t.Errorf("checkType() error = %v", err)
	}
	if err := checkType(nil, []TType{TContainer}, "after ENVELOPE"); err == nil || !strings.Contains(err.Error(), "got nothing") {
		t.Errorf("checkType(nil) error = %v", err)
	}
}
