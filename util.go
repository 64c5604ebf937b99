package imap

const nl = "\r\n"

// dropNl removes trailing newline characters from a byte slice
func dropNl(b []byte) []byte {
	if len(b) >= 1 && b[len(b)-1] == '\n' {
		if len(b) >= 2 && b[len(b)-2] == '\r' {
			return b[:len(b)-2]
		}
		return b[:len(b)-1]
	}
	return b
}

// quote renders s as an IMAP quoted string
func quote(s string) string {
	return `"` + AddSlashes.Replace(s) + `"`
}
