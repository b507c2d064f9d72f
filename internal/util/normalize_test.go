package util

import "testing"

func TestNormalizeSender(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"display name", `Alice <Alice@Example.COM>`, "alice@example.com"},
		{"quoted name with alias", `"Alice" <alice+news@Example.com>`, "alice@example.com"},
		{"bare address with alias", `alice+tag@EXAMPLE.com`, "alice@example.com"},
		{"dots preserved", `alice.b+tag@EXAMPLE.com`, "alice.b@example.com"},
		{"plain address", `alice.b@example.com`, "alice.b@example.com"},
		{"unparsable", `not an address`, ""},
		{"list picks first valid", `"A" <not-an-email> , "B" <c@D.com>`, "c@d.com"},
		{"empty", ``, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeSender(tt.in); got != tt.want {
				t.Errorf("NormalizeSender(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
