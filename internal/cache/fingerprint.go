package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"

	"mailbrief/internal/model"
)

// messageDigest holds the message fields that affect a summary. Fields are
// declared in key order so the marshaled JSON is canonical.
type messageDigest struct {
	Body    string `json:"body"`
	Date    string `json:"date"`
	From    string `json:"from"`
	ID      string `json:"id"`
	Subject string `json:"subject"`
}

// Fingerprint computes a deterministic digest over the thread's relevant
// message fields and the instruction text that will drive summarization.
// Reordering messages or changing the instructions changes the digest; the
// same inputs always produce the same hex string.
func Fingerprint(messages []model.Message, instructions string) string {
	parts := make([]string, 0, len(messages))
	for _, m := range messages {
		b, err := json.Marshal(messageDigest{
			Body:    m.Body,
			Date:    m.Date,
			From:    m.From,
			ID:      m.ID,
			Subject: m.Subject,
		})
		if err != nil {
			// Marshaling flat strings cannot fail; keep the digest total
			// anyway.
			b = []byte(m.ID)
		}
		parts = append(parts, string(b))
	}
	combined := strings.Join(parts, "\n") + "\n" + instructions
	sum := sha256.Sum256([]byte(combined))
	return hex.EncodeToString(sum[:])
}
