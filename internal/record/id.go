package record

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

// ID computes the identifier of the observation of line at stopID at ts.
//
// The digest is SHA-1 over the tuple text ('<line>', '<datetime>', <stop>),
// quoted the way the first generation of the collector printed it. Keeping the
// exact bytes means identifiers match rows already present in older databases,
// so re-importing a legacy CSV does not duplicate them.
//
// The delay is NOT part of the identity.
func ID(line string, ts time.Time, stopID int) string {
	text := fmt.Sprintf("(%s, %s, %d)",
		quote(normalizeLine(line)),
		quote(ts.Truncate(time.Second).Format(Layout)),
		stopID,
	)
	sum := sha1.Sum([]byte(text))
	return hex.EncodeToString(sum[:])
}

// quote renders s as a single- or double-quoted literal with backslash
// escapes for the quote, backslash and control characters.
func quote(s string) string {
	q := byte('\'')
	if strings.IndexByte(s, '\'') >= 0 && strings.IndexByte(s, '"') < 0 {
		q = '"'
	}

	var b strings.Builder
	b.WriteByte(q)
	for _, r := range s {
		switch {
		case r == rune(q) || r == '\\':
			b.WriteByte('\\')
			b.WriteRune(r)
		case r == '\t':
			b.WriteString(`\t`)
		case r == '\n':
			b.WriteString(`\n`)
		case r == '\r':
			b.WriteString(`\r`)
		case r < 0x20 || r == 0x7f:
			fmt.Fprintf(&b, `\x%02x`, r)
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte(q)
	return b.String()
}
