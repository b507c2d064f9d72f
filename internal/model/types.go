package model

// Header is one RFC822 header line. Order is preserved and duplicate names
// are allowed, so headers live in a slice rather than a map.
type Header struct {
	Name  string
	Value string
}

// Message is one email message as fetched from the mailbox. Immutable after
// construction.
type Message struct {
	ID           string
	ThreadID     string
	Headers      []Header
	Subject      string
	From         string
	To           []string
	Date         string // raw Date header value
	Body         string
	Labels       []string
	InternalDate int64 // epoch milliseconds; 0 if the transport had none
}

// HeaderValue returns the first header with the given name (case-insensitive),
// or "" if absent.
func (m Message) HeaderValue(name string) (string, bool) {
	for _, h := range m.Headers {
		if equalFold(h.Name, name) {
			return h.Value, true
		}
	}
	return "", false
}

// equalFold is an ASCII-only case-insensitive compare; header names are ASCII.
func equalFold(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := 0; i < len(a); i++ {
		ca, cb := a[i], b[i]
		if 'A' <= ca && ca <= 'Z' {
			ca += 'a' - 'A'
		}
		if 'A' <= cb && cb <= 'Z' {
			cb += 'a' - 'A'
		}
		if ca != cb {
			return false
		}
	}
	return true
}

// Thread is a conversation: an ordered, chronological list of messages.
type Thread struct {
	ID       string
	Messages []Message
}

// EnrichedThread is a classified thread plus the derived metadata the report
// and summarizer need.
type EnrichedThread struct {
	Thread             Thread
	Category           string
	Subject            string
	Participants       []string
	MessageCount       int
	MostRecentDate     int64 // epoch milliseconds
	HasImportantSender bool
	GmailURL           string
}

// Summary is the outcome of one summarization task, success or failure.
type Summary struct {
	Text      string `json:"text"`
	Generated bool   `json:"generated"`
	Error     string `json:"error,omitempty"`
	FromCache bool   `json:"from_cache,omitempty"`
}

// SummarizedThread pairs an enriched thread with its summary result.
type SummarizedThread struct {
	EnrichedThread
	Summary Summary
}
