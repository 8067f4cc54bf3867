// Package phone locates US-style phone numbers in noisy OCR text. Recognition
// runs in two phases: a loose structural match that accepts letters wherever a
// digit belongs (OCR confuses 0/O, 1/l, 5/S and friends), then a per-character
// pass that resolves those confusions and rejects anything that still is not a
// clean 10-digit number.
package phone

import (
	"regexp"
	"strings"
)

// digits is the allowed character set for a normalized number.
const digits = "0123456789"

// phonePattern finds substrings shaped like US phone numbers:
// xxx-xxx-xxxx, xxx xxx xxxx, (xxx) xxx-xxxx, xxx.xxx.xxxx, xxx/xxx.xxxx,
// +1-xxx-xxx-xxxx and similar. Tokens match word characters, not just digits,
// because misread letters are reconciled afterwards; \b keeps tokens from
// being carved out of longer alphanumeric runs.
var phonePattern = regexp.MustCompile(`(?:\+1-?)?\(?\b(\w{3})\)?[ \-./]?(\w{3})[ \-./]?(\w{4})\b`)

// Match is one phone number located in a line of text. Start and End are byte
// offsets into the line covering the entire matched substring, prefix and
// punctuation included. Digits holds the normalized 10-digit number.
type Match struct {
	Start  int
	End    int
	Digits string
}

// Extract returns the first US-style phone number found in line, or false if
// the line contains none. A candidate whose characters cannot all be resolved
// to digits is rejected whole; Extract never emits a partial number.
func Extract(line string) (Match, bool) {
	idx := phonePattern.FindStringSubmatchIndex(line)
	if idx == nil {
		return Match{}, false
	}

	// Concatenate the three captured token groups, dropping the country
	// prefix, parens and separators.
	var raw strings.Builder
	for group := 1; group <= 3; group++ {
		start, end := idx[2*group], idx[2*group+1]
		if start < 0 {
			return Match{}, false
		}
		raw.WriteString(line[start:end])
	}

	// Anything other than exactly 10 captured characters means the loose
	// shape matched something degenerate.
	candidate := raw.String()
	if len(candidate) != 10 {
		return Match{}, false
	}

	var number strings.Builder
	number.Grow(len(candidate))
	for _, r := range candidate {
		r = Normalize(r, digits)
		if !strings.ContainsRune(digits, r) {
			return Match{}, false
		}
		number.WriteRune(r)
	}

	return Match{Start: idx[0], End: idx[1], Digits: number.String()}, true
}
