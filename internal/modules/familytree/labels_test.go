package familytree

import "testing"

func TestSanitizeLabel(t *testing.T) {
	cases := []struct {
		name, in, want string
	}{
		{"plain", "Ada Lovelace", "Ada Lovelace"},
		{"parens", "Bob (admin)", "Bob _admin_"},
		{"latin extended kept", "Łukasz Ñoño Ḿ", "Łukasz Ñoño Ḿ"},
		{"emoji replaced", "cat 🐱", "cat _"},
		{"cjk replaced", "名前", "__"},
		{"control chars", "a\tb\nc", "a_b_c"},
		{"leading plus", "+1 friend", "_1 friend"},
		{"trimmed", "  spaced  ", "spaced"},
		{"empty falls back", "", "fallback"},
		{"whitespace falls back", "   ", "fallback"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := SanitizeLabel(tc.in, "fallback"); got != tc.want {
				t.Fatalf("SanitizeLabel(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestLabelsFor(t *testing.T) {
	l := Labels{"a": "Alice"}
	if got := l.For("a"); got != "Alice" {
		t.Fatalf("a: %q", got)
	}
	if got := l.For("b"); got != "b" {
		t.Fatalf("missing label should fall back to id, got %q", got)
	}
	var nilLabels Labels
	if got := nilLabels.For("c"); got != "c" {
		t.Fatalf("nil labels: %q", got)
	}
}
