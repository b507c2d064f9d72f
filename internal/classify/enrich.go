package classify

import (
	"net/url"
	"sort"
	"strings"
	"time"

	"mailbrief/internal/model"
	"mailbrief/internal/util"

	"go.uber.org/zap"
)

const noSubject = "No Subject"

// Group classifies threads and buckets the enriched records by category name,
// preserving fetch order within each bucket. Threads matching no category are
// dropped and logged: that is a configuration gap, not a pipeline error.
// maxPerCategory, when non-nil, truncates each bucket to its first N threads.
func (c *Classifier) Group(threads []model.Thread, maxPerCategory *int) map[string][]model.EnrichedThread {
	grouped := make(map[string][]model.EnrichedThread, len(c.categories))
	for _, cat := range c.categories {
		grouped[cat.Name] = nil
	}

	for _, t := range threads {
		cat, ok := c.Classify(t)
		if !ok {
			c.log.Warn("thread did not match any category", zap.String("thread_id", t.ID))
			continue
		}
		grouped[cat.Name] = append(grouped[cat.Name], c.Enrich(t, cat.Name))
	}

	if maxPerCategory != nil {
		for name, list := range grouped {
			if len(list) > *maxPerCategory {
				c.log.Info("limiting category thread count",
					zap.String("category", name), zap.Int("max", *maxPerCategory))
				grouped[name] = list[:*maxPerCategory]
			}
		}
	}
	return grouped
}

// Enrich derives the thread-level metadata for one classified thread.
func (c *Classifier) Enrich(t model.Thread, category string) model.EnrichedThread {
	subject := threadSubject(t.Messages)
	return model.EnrichedThread{
		Thread:             t,
		Category:           category,
		Subject:            subject,
		Participants:       participants(t.Messages),
		MessageCount:       len(t.Messages),
		MostRecentDate:     mostRecentDate(t.Messages),
		HasImportantSender: c.hasImportantSender(t),
		GmailURL:           gmailURL(t.Messages, subject),
	}
}

// SortForDisplay orders threads important-first, then most-recent-first.
// The sort is stable so equal-priority threads keep their fetch order. This
// is a presentation-time transform; grouping itself stays in fetch order.
func SortForDisplay(threads []model.EnrichedThread) {
	sort.SliceStable(threads, func(i, j int) bool {
		if threads[i].HasImportantSender != threads[j].HasImportantSender {
			return threads[i].HasImportantSender
		}
		return threads[i].MostRecentDate > threads[j].MostRecentDate
	})
}

func threadSubject(msgs []model.Message) string {
	if len(msgs) > 0 && msgs[0].Subject != "" {
		return msgs[0].Subject
	}
	return noSubject
}

// participants returns the union of from/to addresses across messages, in
// first-seen order. Addresses are reduced to their bare normalized form so
// "Alice <alice+news@x.com>" and "alice@x.com" count once.
func participants(msgs []model.Message) []string {
	seen := make(map[string]bool)
	var out []string
	add := func(addr string) {
		if norm := util.NormalizeSender(addr); norm != "" {
			addr = norm
		} else {
			addr = strings.ToLower(strings.TrimSpace(addr))
		}
		if addr == "" || seen[addr] {
			return
		}
		seen[addr] = true
		out = append(out, addr)
	}
	for _, m := range msgs {
		add(m.From)
		for _, to := range m.To {
			add(to)
		}
	}
	return out
}

// mostRecentDate returns the max internal timestamp across messages in epoch
// milliseconds, falling back to the Date header when a message has none.
func mostRecentDate(msgs []model.Message) int64 {
	var most int64
	for _, m := range msgs {
		ts := m.InternalDate
		if ts == 0 {
			ts = parseDateMillis(m.Date)
		}
		if ts > most {
			most = ts
		}
	}
	return most
}

var dateLayouts = []string{
	time.RFC1123Z,
	time.RFC1123,
	time.RFC822Z,
	time.RFC822,
	time.RFC850,
	time.RFC3339,
	"Mon, 2 Jan 2006 15:04:05 -0700",
}

func parseDateMillis(header string) int64 {
	if header == "" {
		return 0
	}
	for _, l := range dateLayouts {
		if t, err := time.Parse(l, header); err == nil {
			return t.UnixMilli()
		}
	}
	return 0
}

// gmailURL builds a best-effort deep link for the thread. IMAP-era thread IDs
// do not map to web thread IDs, so the link is search-based: a Message-ID
// search when available, a subject search otherwise, the inbox as a last
// resort.
func gmailURL(msgs []model.Message, subject string) string {
	if len(msgs) > 0 {
		if mid, ok := msgs[0].HeaderValue("Message-ID"); ok && mid != "" {
			clean := strings.Trim(mid, "<>")
			return "https://mail.google.com/mail/u/0/#search/rfc822msgid%3A" + escapeQuery(clean)
		}
	}
	if subject != "" && subject != noSubject {
		clean := subject
		for _, prefix := range []string{"Re:", "RE:", "Fwd:", "FWD:"} {
			if strings.HasPrefix(clean, prefix) {
				clean = strings.TrimSpace(clean[len(prefix):])
			}
		}
		return "https://mail.google.com/mail/u/0/#search/subject%3A(" + escapeQuery(clean) + ")"
	}
	return "https://mail.google.com/mail/u/0/#inbox"
}

// escapeQuery percent-encodes for Gmail's fragment search, including slashes;
// spaces become %20 rather than "+".
func escapeQuery(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}
