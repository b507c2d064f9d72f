package match

import (
	"testing"

	"go.uber.org/zap"
)

func TestMatches(t *testing.T) {
	m := NewMatcher(zap.NewNop())

	tests := []struct {
		name    string
		text    string
		pattern string
		want    bool
	}{
		{"substring search", "Alerts from github.com today", "github\\.com", true},
		{"case insensitive", "NOREPLY@Example.COM", "noreply@example", true},
		{"anchored miss", "prefix github.com", "^github", false},
		{"no match", "billing@acme.com", "github", false},
		{"invalid pattern never matches", "anything", "[unclosed", false},
		{"empty text", "", "x", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := m.Matches(tt.text, tt.pattern); got != tt.want {
				t.Errorf("Matches(%q, %q) = %v, want %v", tt.text, tt.pattern, got, tt.want)
			}
		})
	}
}

func TestMatchesInvalidPatternCached(t *testing.T) {
	m := NewMatcher(zap.NewNop())
	// Same invalid pattern twice: second call hits the cached nil entry.
	for i := 0; i < 2; i++ {
		if m.Matches("text", "(") {
			t.Fatalf("call %d: invalid pattern matched", i+1)
		}
	}
}

func TestMatchesAny(t *testing.T) {
	m := NewMatcher(zap.NewNop())

	if m.MatchesAny("anything", nil) {
		t.Error("empty pattern list matched")
	}
	if !m.MatchesAny("order confirmation", []string{"invoice", "confirmation"}) {
		t.Error("second pattern should match")
	}
	if m.MatchesAny("hello", []string{"world", "planet"}) {
		t.Error("no pattern should match")
	}
}

func TestNormalizeLabel(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"is:important", "IMPORTANT"},
		{"IS:STARRED", "STARRED"},
		{"is:unread", "UNREAD"},
		{"INBOX", "INBOX"},
		{"github-notifications", "github-notifications"},
	}
	for _, tt := range tests {
		if got := NormalizeLabel(tt.in); got != tt.want {
			t.Errorf("NormalizeLabel(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestLabelsMatch(t *testing.T) {
	m := NewMatcher(zap.NewNop())

	tests := []struct {
		name     string
		labels   []string
		required []string
		want     bool
	}{
		{"exact", []string{"INBOX", "IMPORTANT"}, []string{"IMPORTANT"}, true},
		{"case insensitive", []string{"Newsletters"}, []string{"NEWSLETTERS"}, true},
		{"shorthand", []string{"IMPORTANT"}, []string{"is:important"}, true},
		{"glob", []string{"github-pr", "INBOX"}, []string{"github-*"}, true},
		{"glob miss", []string{"gitlab-mr"}, []string{"github-*"}, false},
		{"no overlap", []string{"INBOX"}, []string{"SPAM", "TRASH"}, false},
		{"empty required", []string{"INBOX"}, nil, false},
		{"empty message labels", nil, []string{"INBOX"}, false},
		{"invalid glob never matches", []string{"INBOX"}, []string{"[bad"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := m.LabelsMatch(tt.labels, tt.required); got != tt.want {
				t.Errorf("LabelsMatch(%v, %v) = %v, want %v", tt.labels, tt.required, got, tt.want)
			}
		})
	}
}
