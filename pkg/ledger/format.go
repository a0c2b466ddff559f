// Package ledger implements the textual ledger format that records a
// merkle tree's node hashes and metadata, and the reader/comparator used
// to verify a set of files against a previously written ledger.
package ledger

import (
	"fmt"
	"strconv"
	"strings"
)

// Version is the ledger format version written to the header line. Changing
// the on-disk format bumps this; the parser must stay tolerant of header
// option line ordering within a version but is not required to read across
// versions.
const Version = "1.0.0"

// QuotePath renders path using the C-style quoting the ledger format
// requires: backslash, double-quote, newline, tab, and carriage return are
// escaped; everything else passes through unchanged.
func QuotePath(path string) string {
	var b strings.Builder
	b.Grow(len(path) + 2)
	for _, r := range path {
		switch r {
		case '\\':
			b.WriteString(`\\`)
		case '"':
			b.WriteString(`\"`)
		case '\n':
			b.WriteString(`\n`)
		case '\t':
			b.WriteString(`\t`)
		case '\r':
			b.WriteString(`\r`)
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// UnquotePath reverses QuotePath. It expects s without the surrounding
// double quotes.
func UnquotePath(s string) (string, error) {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' {
			b.WriteByte(c)
			continue
		}
		i++
		if i >= len(s) {
			return "", fmt.Errorf("ledger: dangling escape in quoted path %q", s)
		}
		switch s[i] {
		case '\\':
			b.WriteByte('\\')
		case '"':
			b.WriteByte('"')
		case 'n':
			b.WriteByte('\n')
		case 't':
			b.WriteByte('\t')
		case 'r':
			b.WriteByte('\r')
		default:
			return "", fmt.Errorf("ledger: unknown escape %q in quoted path", s[i])
		}
	}
	return b.String(), nil
}

func formatHex(b []byte) string {
	const hextable = "0123456789abcdef"
	out := make([]byte, len(b)*2)
	for i, v := range b {
		out[i*2] = hextable[v>>4]
		out[i*2+1] = hextable[v&0x0f]
	}
	return string(out)
}

func formatUint(v uint64) string {
	return strconv.FormatUint(v, 10)
}

func formatHexUint(v uint64) string {
	return "0x" + strconv.FormatUint(v, 16)
}
