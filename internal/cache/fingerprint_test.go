package cache

import (
	"testing"

	"mailbrief/internal/model"
)

func TestFingerprintStable(t *testing.T) {
	msgs := []model.Message{
		{ID: "m1", From: "a@x.com", Date: "Mon", Subject: "hi", Body: "hello"},
		{ID: "m2", From: "b@x.com", Date: "Tue", Subject: "re: hi", Body: "yo"},
	}
	a := Fingerprint(msgs, "summarize")
	b := Fingerprint(msgs, "summarize")
	if a != b {
		t.Errorf("fingerprint not stable: %s vs %s", a, b)
	}
	if len(a) != 64 {
		t.Errorf("fingerprint length = %d, want 64 hex chars", len(a))
	}
}

func TestFingerprintSensitivity(t *testing.T) {
	base := []model.Message{
		{ID: "m1", From: "a@x.com", Subject: "hi", Body: "hello"},
	}
	ref := Fingerprint(base, "summarize")

	t.Run("body change", func(t *testing.T) {
		changed := []model.Message{
			{ID: "m1", From: "a@x.com", Subject: "hi", Body: "hello!"},
		}
		if Fingerprint(changed, "summarize") == ref {
			t.Error("body change did not change fingerprint")
		}
	})

	t.Run("instructions change", func(t *testing.T) {
		if Fingerprint(base, "summarize differently") == ref {
			t.Error("instructions change did not change fingerprint")
		}
	})

	t.Run("new message", func(t *testing.T) {
		grown := append(base, model.Message{ID: "m2", Body: "reply"})
		if Fingerprint(grown, "summarize") == ref {
			t.Error("added message did not change fingerprint")
		}
	})

	t.Run("message order", func(t *testing.T) {
		msgs := []model.Message{
			{ID: "m1", Body: "first"},
			{ID: "m2", Body: "second"},
		}
		reversed := []model.Message{msgs[1], msgs[0]}
		if Fingerprint(msgs, "p") == Fingerprint(reversed, "p") {
			t.Error("message order should affect the fingerprint")
		}
	})
}

func TestFingerprintIgnoresNonContentFields(t *testing.T) {
	a := []model.Message{{ID: "m1", Body: "x", Labels: []string{"INBOX"}, InternalDate: 1}}
	b := []model.Message{{ID: "m1", Body: "x", Labels: []string{"SPAM"}, InternalDate: 2}}
	if Fingerprint(a, "p") != Fingerprint(b, "p") {
		t.Error("labels and internal date should not affect the fingerprint")
	}
}
