package report

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"mailbrief/internal/cache"
	"mailbrief/internal/config"
	"mailbrief/internal/model"
	"mailbrief/internal/summarize"
)

func summarized(id, subject string, date int64, important bool, sum model.Summary) model.SummarizedThread {
	return model.SummarizedThread{
		EnrichedThread: model.EnrichedThread{
			Thread:             model.Thread{ID: id, Messages: []model.Message{{ID: id + "-m1"}}},
			Subject:            subject,
			Participants:       []string{"a@x.com"},
			MessageCount:       1,
			MostRecentDate:     date,
			HasImportantSender: important,
			GmailURL:           "https://mail.google.com/mail/u/0/#inbox",
		},
		Summary: sum,
	}
}

func TestWrite(t *testing.T) {
	cfg := &config.Config{Categories: []config.Category{
		{Name: "Work", SummaryPrompt: "p"},
		{Name: "Empty", SummaryPrompt: "p"},
		{Name: "Everything", SummaryPrompt: "p"},
	}}
	g, err := NewGenerator(cfg)
	if err != nil {
		t.Fatalf("NewGenerator: %v", err)
	}

	results := map[string][]model.SummarizedThread{
		"Work": {
			summarized("t1", "Old routine thread", 100, false, model.Summary{Text: "routine summary", Generated: true}),
			summarized("t2", "Boss thread", 50, true, model.Summary{Text: "boss summary", Generated: true, FromCache: true}),
		},
		"Everything": {
			summarized("t3", "Broken thread", 200, false, model.Summary{
				Text:  "Error generating summary: summarizer timed out after 30s",
				Error: "summarizer timed out after 30s",
			}),
		},
	}
	stats := summarize.Stats{
		Total: 3, Succeeded: 2, Failed: 1, SuccessRate: 2.0 / 3.0,
		ErrorCounts: map[string]int{"summarizer timed out after 30s": 1},
	}

	path := filepath.Join(t.TempDir(), "report.html")
	cstats := cache.Stats{Path: "/tmp/summaries.db", Entries: 12, SizeBytes: 4096}
	if err := g.Write(path, "run-123", results, stats, cstats); err != nil {
		t.Fatalf("Write: %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	html := string(raw)

	for _, want := range []string{
		"Old routine thread",
		"boss summary",
		"run-123",
		`<span class="badge">important</span>`,
		`<span class="badge cached">cached</span>`,
		`<span class="badge error">failed</span>`,
		"2/3 succeeded (66.7%)",
		"summarizer timed out after 30s ×1",
		"Cache: 12 entries, 4096 bytes.",
	} {
		if !strings.Contains(html, want) {
			t.Errorf("report missing %q", want)
		}
	}

	// Empty categories are omitted.
	if strings.Contains(html, "<h2>Empty") {
		t.Error("empty category rendered")
	}

	// Category sections follow configuration order.
	if strings.Index(html, "<h2>Work") > strings.Index(html, "<h2>Everything") {
		t.Error("categories out of configuration order")
	}

	// Within Work the important thread sorts first despite being older.
	if strings.Index(html, "Boss thread") > strings.Index(html, "Old routine thread") {
		t.Error("important thread not sorted first")
	}
}

func TestWriteEscapesHTML(t *testing.T) {
	cfg := &config.Config{Categories: []config.Category{{Name: "Everything", SummaryPrompt: "p"}}}
	g, err := NewGenerator(cfg)
	if err != nil {
		t.Fatal(err)
	}

	results := map[string][]model.SummarizedThread{
		"Everything": {
			summarized("t1", `<script>alert("x")</script>`, 1, false,
				model.Summary{Text: "has <b>markup</b>", Generated: true}),
		},
	}

	path := filepath.Join(t.TempDir(), "report.html")
	if err := g.Write(path, "run-1", results, summarize.Stats{Total: 1, Succeeded: 1, SuccessRate: 1}, cache.Stats{}); err != nil {
		t.Fatal(err)
	}
	raw, _ := os.ReadFile(path)
	html := string(raw)

	if strings.Contains(html, `<script>alert`) {
		t.Error("subject not escaped")
	}
	if strings.Contains(html, "<b>markup</b>") {
		t.Error("summary not escaped")
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("short", 10); got != "short" {
		t.Errorf("got %q", got)
	}
	got := truncate("a long subject line that keeps going", 12)
	if !strings.HasSuffix(got, "…") || len([]rune(got)) > 12 {
		t.Errorf("got %q", got)
	}
}
