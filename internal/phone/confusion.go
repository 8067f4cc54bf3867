package phone

import "strings"

// maxSubstitutions caps how many confusion-table hops a single character may
// take. The longest chain in the table needs exactly two (s -> S -> 5), so
// anything deeper is a lookup cycle, not a correction.
const maxSubstitutions = 2

// confusions maps characters that OCR engines commonly misread onto the
// character they most likely stand for. Entries are directional: some pairs
// are symmetric (B <-> 8), others chain through an intermediate step
// (l -> I -> 1). The table is fixed; swapping entries changes recognition
// accuracy.
var confusions = map[rune]rune{
	's': 'S',
	'S': '5',
	'5': 'S',
	'o': 'O',
	'O': '0',
	'0': 'O',
	'l': 'I',
	'I': '1',
	'1': 'I',
	'B': '8',
	'8': 'B',
}

// Normalize resolves an OCR-ambiguous character against a set of allowed
// characters. A character already in allowed comes back unchanged. Otherwise
// it is substituted through the confusion table until it lands in allowed,
// runs out of mappings, or hits the maxSubstitutions cap. The result may
// still be outside allowed; callers must re-check membership.
func Normalize(r rune, allowed string) rune {
	current := r
	for hops := 0; hops < maxSubstitutions && !strings.ContainsRune(allowed, current); hops++ {
		next, ok := confusions[current]
		if !ok {
			break
		}
		current = next
	}
	return current
}
