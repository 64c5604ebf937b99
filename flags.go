package imap

import (
	"fmt"
	"strings"
)

// FlagDeleted marks a message for removal by the next EXPUNGE.
const FlagDeleted = `\Deleted`

// storeQuery builds a silent UID STORE that adds flags to one message.
func storeQuery(uid uint32, flags ...string) (string, error) {
	if len(flags) == 0 {
		return "", fmt.Errorf("imap store: no flags given")
	}
	return fmt.Sprintf("UID STORE %d +FLAGS.SILENT (%s)", uid, strings.Join(flags, " ")), nil
}
