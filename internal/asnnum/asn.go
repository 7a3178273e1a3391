// Package asnnum holds the Asn value type shared by the WHOIS resolver,
// the PeeringDB lookup, and the trace state machine.
package asnnum

import (
	"fmt"
	"strconv"
	"strings"
)

// Asn is an opaque 32-bit Autonomous System Number.
type Asn uint32

// String formats the ASN the way WHOIS/PeeringDB output conventionally
// does: "AS<n>".
func (a Asn) String() string {
	return fmt.Sprintf("AS%d", uint32(a))
}

// ParsePrefixed parses "AS12345" (case-insensitive "AS" prefix).
func ParsePrefixed(text string) (Asn, bool) {
	upper := strings.ToUpper(strings.TrimSpace(text))
	rest, ok := strings.CutPrefix(upper, "AS")
	if !ok {
		return 0, false
	}
	return ParseUnprefixed(rest)
}

// ParseUnprefixed parses a bare integer ASN, e.g. "12345".
func ParseUnprefixed(text string) (Asn, bool) {
	n, err := strconv.ParseUint(strings.TrimSpace(text), 10, 32)
	if err != nil {
		return 0, false
	}
	return Asn(n), true
}

// ParseIgnorePrefix accepts both "AS12345" and "12345" forms, preferring
// the prefixed parse (matching the WHOIS resolver's OriginAS/origin
// parsing rule).
func ParseIgnorePrefix(text string) (Asn, bool) {
	if asn, ok := ParsePrefixed(text); ok {
		return asn, ok
	}
	return ParseUnprefixed(text)
}
