package object

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
)

// Signature is a commit/tag author or committer identity: name, email, and
// the moment it was recorded as unix seconds plus a timezone offset (spec
// §3 "author/committer").
type Signature struct {
	Name     string
	Email    string
	When     int64 // unix seconds
	TZOffset int   // minutes east of UTC
}

// String renders the signature the way it appears in a commit/tag header
// value: "Name <email> seconds +hhmm".
func (s Signature) String() string {
	sign := byte('+')
	off := s.TZOffset
	if off < 0 {
		sign = '-'
		off = -off
	}
	return fmt.Sprintf("%s <%s> %d %c%02d%02d", s.Name, s.Email, s.When, sign, off/60, off%60)
}

// ParseSignature parses a "Name <email> seconds +hhmm" header value.
func ParseSignature(line string) (Signature, error) {
	var sig Signature
	open := strings.LastIndexByte(line, '<')
	close := strings.LastIndexByte(line, '>')
	if open < 0 || close < open {
		return sig, fmt.Errorf("zeta: malformed signature %q", line)
	}
	sig.Name = strings.TrimSpace(line[:open])
	sig.Email = line[open+1 : close]
	rest := strings.TrimSpace(line[close+1:])
	fields := strings.Fields(rest)
	if len(fields) == 0 {
		return sig, nil
	}
	when, err := strconv.ParseInt(fields[0], 10, 64)
	if err != nil {
		return sig, fmt.Errorf("zeta: malformed signature timestamp %q: %w", fields[0], err)
	}
	sig.When = when
	if len(fields) > 1 {
		sig.TZOffset = parseTZOffset(fields[1])
	}
	return sig, nil
}

func parseTZOffset(tz string) int {
	if len(tz) != 5 {
		return 0
	}
	sign := 1
	if tz[0] == '-' {
		sign = -1
	}
	hh, _ := strconv.Atoi(tz[1:3])
	mm, _ := strconv.Atoi(tz[3:5])
	return sign * (hh*60 + mm)
}

func writeHeaderLine(buf *bytes.Buffer, key, value string) {
	buf.WriteString(key)
	buf.WriteByte(' ')
	buf.WriteString(value)
	buf.WriteByte('\n')
}

// writeMultilineHeader writes a header whose value spans multiple lines,
// each continuation line after the first prefixed with a single space
// (spec §4.1, used for the "gpgsig" header).
func writeMultilineHeader(buf *bytes.Buffer, key, value string) {
	lines := strings.Split(value, "\n")
	buf.WriteString(key)
	buf.WriteByte(' ')
	buf.WriteString(lines[0])
	buf.WriteByte('\n')
	for _, l := range lines[1:] {
		buf.WriteByte(' ')
		buf.WriteString(l)
		buf.WriteByte('\n')
	}
}
