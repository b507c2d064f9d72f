// Package classify assigns threads to configured categories and derives the
// thread-level metadata the rest of the pipeline consumes.
package classify

import (
	"mailbrief/internal/config"
	"mailbrief/internal/match"
	"mailbrief/internal/model"
	"mailbrief/internal/util"

	"go.uber.org/zap"
)

// Classifier applies the ordered category list to threads. It is stateless
// per call and safe for concurrent use.
type Classifier struct {
	categories       []config.Category
	importantSenders []string
	matcher          *match.Matcher
	log              *zap.Logger
}

func NewClassifier(cfg *config.Config, matcher *match.Matcher, log *zap.Logger) *Classifier {
	return &Classifier{
		categories:       cfg.Categories,
		importantSenders: cfg.ImportantSenders(),
		matcher:          matcher,
		log:              log,
	}
}

// Classify returns the first category in configuration order that the thread
// satisfies, or false if none match. Later categories are never evaluated
// once one matches.
func (c *Classifier) Classify(t model.Thread) (config.Category, bool) {
	for _, cat := range c.categories {
		if c.matchesCategory(t, cat) {
			c.log.Debug("thread matched category",
				zap.String("thread_id", t.ID), zap.String("category", cat.Name))
			return cat, true
		}
	}
	return config.Category{}, false
}

func (c *Classifier) matchesCategory(t model.Thread, cat config.Category) bool {
	// All-empty criteria is a catch-all.
	if cat.Criteria.IsEmpty() {
		return true
	}
	for _, msg := range t.Messages {
		if c.messageMatches(msg, cat.Criteria) {
			return true
		}
	}
	return false
}

// messageMatches applies OR semantics across predicate groups: a message
// satisfies the criteria if any populated group matches.
func (c *Classifier) messageMatches(msg model.Message, cr config.Criteria) bool {
	if len(cr.Labels) > 0 && c.matcher.LabelsMatch(msg.Labels, cr.Labels) {
		return true
	}
	if c.matcher.MatchesAny(msg.From, cr.FromPatterns) {
		return true
	}
	for _, to := range msg.To {
		if c.matcher.MatchesAny(to, cr.ToPatterns) {
			return true
		}
	}
	if c.matcher.MatchesAny(msg.Subject, cr.SubjectPatterns) {
		return true
	}
	if c.matcher.MatchesAny(msg.Body, cr.BodyPatterns) {
		return true
	}
	for header, pattern := range cr.Headers {
		// An absent header never matches, whatever the pattern.
		if val, ok := msg.HeaderValue(header); ok && c.matcher.Matches(val, pattern) {
			return true
		}
	}
	return false
}

// IsImportantSender reports whether the message's From address matches any
// configured important-sender pattern. Computed independently of category
// matching. Both the raw header and the bare normalized address are checked,
// so "boss@corp.com" matches "The Boss <boss+alerts@corp.com>".
func (c *Classifier) IsImportantSender(msg model.Message) bool {
	if c.matcher.MatchesAny(msg.From, c.importantSenders) {
		return true
	}
	if norm := util.NormalizeSender(msg.From); norm != "" && norm != msg.From {
		return c.matcher.MatchesAny(norm, c.importantSenders)
	}
	return false
}

func (c *Classifier) hasImportantSender(t model.Thread) bool {
	for _, msg := range t.Messages {
		if c.IsImportantSender(msg) {
			return true
		}
	}
	return false
}
