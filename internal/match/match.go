// Package match implements the rule predicates used by classification:
// case-insensitive regex search and glob-style label matching.
package match

import (
	"path"
	"regexp"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// gmailSearchShorthand maps Gmail search syntax to the canonical label the
// transport stores ("is:important" in a rule means the IMPORTANT label).
var gmailSearchShorthand = map[string]string{
	"is:important": "IMPORTANT",
	"is:starred":   "STARRED",
	"is:unread":    "UNREAD",
	"is:read":      "READ",
	"is:sent":      "SENT",
	"is:draft":     "DRAFT",
	"is:inbox":     "INBOX",
	"is:spam":      "SPAM",
	"is:trash":     "TRASH",
	"is:chat":      "CHAT",
}

// NormalizeLabel converts Gmail search shorthand to the canonical label name;
// anything else passes through unchanged.
func NormalizeLabel(label string) string {
	if canonical, ok := gmailSearchShorthand[strings.ToLower(label)]; ok {
		return canonical
	}
	return label
}

// Matcher evaluates rule patterns. Compiled regexes are cached so repeated
// classification of a large batch does not recompile per message; a pattern
// that fails to compile is remembered as a permanent non-match and logged
// once. Safe for concurrent use.
type Matcher struct {
	log *zap.Logger

	mu    sync.RWMutex
	cache map[string]*regexp.Regexp // nil value marks an invalid pattern
}

func NewMatcher(log *zap.Logger) *Matcher {
	return &Matcher{
		log:   log,
		cache: make(map[string]*regexp.Regexp),
	}
}

func (m *Matcher) compile(pattern string) *regexp.Regexp {
	m.mu.RLock()
	re, ok := m.cache[pattern]
	m.mu.RUnlock()
	if ok {
		return re
	}

	re, err := regexp.Compile("(?i)" + pattern)
	if err != nil {
		// A malformed rule must not abort classification of everything
		// else; it simply never matches.
		m.log.Warn("invalid pattern treated as non-match",
			zap.String("pattern", pattern), zap.Error(err))
		re = nil
	}
	m.mu.Lock()
	m.cache[pattern] = re
	m.mu.Unlock()
	return re
}

// Matches reports whether pattern, compiled case-insensitively, matches
// anywhere in text. An invalid pattern never matches.
func (m *Matcher) Matches(text, pattern string) bool {
	re := m.compile(pattern)
	if re == nil {
		return false
	}
	return re.MatchString(text)
}

// MatchesAny reports whether any pattern matches text. An empty pattern list
// never matches.
func (m *Matcher) MatchesAny(text string, patterns []string) bool {
	for _, p := range patterns {
		if m.Matches(text, p) {
			return true
		}
	}
	return false
}

// LabelsMatch reports whether any required label matches any message label.
// Required labels are normalized from Gmail search shorthand, then compared
// case-insensitively with glob semantics, so "github-*" matches any label
// beginning with "github-". An invalid glob pattern never matches.
func (m *Matcher) LabelsMatch(messageLabels, required []string) bool {
	for _, req := range required {
		pattern := strings.ToLower(NormalizeLabel(req))
		for _, lbl := range messageLabels {
			ok, err := path.Match(pattern, strings.ToLower(lbl))
			if err != nil {
				m.log.Warn("invalid label pattern treated as non-match",
					zap.String("pattern", req), zap.Error(err))
				break
			}
			if ok {
				return true
			}
		}
	}
	return false
}
