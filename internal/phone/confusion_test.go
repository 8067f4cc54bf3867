package phone

import "testing"

func TestNormalize(t *testing.T) {
	tests := []struct {
		name    string
		in      rune
		allowed string
		want    rune
	}{
		{
			name:    "Already allowed is untouched",
			in:      '7',
			allowed: digits,
			want:    '7',
		},
		{
			name:    "Two-hop chain s to 5",
			in:      's',
			allowed: digits,
			want:    '5',
		},
		{
			name:    "Single hop O to 0",
			in:      'O',
			allowed: digits,
			want:    '0',
		},
		{
			name:    "Single hop I to 1",
			in:      'I',
			allowed: digits,
			want:    '1',
		},
		{
			name:    "Two-hop chain l to 1",
			in:      'l',
			allowed: digits,
			want:    '1',
		},
		{
			name:    "Single hop B to 8",
			in:      'B',
			allowed: digits,
			want:    '8',
		},
		{
			name:    "Unmapped character comes back unchanged",
			in:      'x',
			allowed: digits,
			want:    'x',
		},
		{
			name:    "Reverse direction digit to letter",
			in:      '0',
			allowed: "ABCO",
			want:    'O',
		},
		{
			name:    "Reverse direction 8 to B",
			in:      '8',
			allowed: "ABC",
			want:    'B',
		},
		{
			name:    "Cap stops after two hops even if still invalid",
			in:      's',
			allowed: "xyz", // s -> S -> 5, neither allowed; loop must stop at 5
			want:    '5',
		},
		{
			name:    "Symmetric pair ping-pongs to the cap",
			in:      'B',
			allowed: "xyz", // B -> 8 -> B, capped at two hops
			want:    'B',
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Normalize(tt.in, tt.allowed); got != tt.want {
				t.Errorf("Normalize(%q, %q) = %q, want %q", tt.in, tt.allowed, got, tt.want)
			}
		})
	}
}

// TestNormalizeIdentityOnAllowed pins the contract that membership always
// short-circuits: every character of the allowed set maps to itself.
func TestNormalizeIdentityOnAllowed(t *testing.T) {
	for _, r := range digits {
		if got := Normalize(r, digits); got != r {
			t.Errorf("Normalize(%q, digits) = %q, want identity", r, got)
		}
	}
}
