// Package report renders the batch result as one self-contained HTML file.
package report

import (
	"fmt"
	"html/template"
	"os"
	"sort"
	"strings"
	"time"

	"mailbrief/internal/cache"
	"mailbrief/internal/classify"
	"mailbrief/internal/config"
	"mailbrief/internal/model"
	"mailbrief/internal/summarize"
)

type categoryView struct {
	Name           string
	Threads        []model.SummarizedThread
	ImportantCount int
}

type reportData struct {
	GeneratedAt    string
	RunID          string
	Categories     []categoryView
	TotalThreads   int
	ImportantCount int
	Stats          summarize.Stats
	ErrorLines     []string
	Cache          cache.Stats
}

// Generator writes the HTML summary report.
type Generator struct {
	cfg *config.Config
	tpl *template.Template
}

func NewGenerator(cfg *config.Config) (*Generator, error) {
	tpl := template.New("report").Funcs(template.FuncMap{
		"formatDate":   formatDate,
		"truncate":     truncate,
		"percent":      func(rate float64) string { return fmt.Sprintf("%.1f", rate*100) },
		"participants": func(ps []string) string { return truncate(strings.Join(ps, ", "), 90) },
	})
	tpl, err := tpl.Parse(reportTemplate)
	if err != nil {
		return nil, fmt.Errorf("parse report template: %w", err)
	}
	return &Generator{cfg: cfg, tpl: tpl}, nil
}

// Write renders the report to path. Category sections appear in
// configuration order; within a section threads are re-sorted
// important-first, most-recent-first (a stable, presentation-only sort).
func (g *Generator) Write(path, runID string, results map[string][]model.SummarizedThread, stats summarize.Stats, cacheStats cache.Stats) error {
	data := reportData{
		GeneratedAt: time.Now().Format("Mon, 2 Jan 2006 15:04"),
		RunID:       runID,
		Stats:       stats,
		Cache:       cacheStats,
	}

	for _, cat := range g.cfg.Categories {
		threads := results[cat.Name]
		if len(threads) == 0 {
			continue
		}
		sortForDisplay(threads)
		cv := categoryView{Name: cat.Name, Threads: threads}
		for _, t := range threads {
			if t.HasImportantSender {
				cv.ImportantCount++
			}
		}
		data.TotalThreads += len(threads)
		data.ImportantCount += cv.ImportantCount
		data.Categories = append(data.Categories, cv)
	}

	// Deterministic error table ordering for the footer.
	for msg, count := range stats.ErrorCounts {
		data.ErrorLines = append(data.ErrorLines, fmt.Sprintf("%s ×%d", msg, count))
	}
	sort.Strings(data.ErrorLines)

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create report: %w", err)
	}
	defer f.Close()
	if err := g.tpl.Execute(f, data); err != nil {
		return fmt.Errorf("render report: %w", err)
	}
	return nil
}

// sortForDisplay applies the presentation ordering to summarized threads by
// sorting the underlying enriched records.
func sortForDisplay(threads []model.SummarizedThread) {
	enriched := make([]model.EnrichedThread, len(threads))
	byKey := make(map[string]model.SummarizedThread, len(threads))
	for i, t := range threads {
		enriched[i] = t.EnrichedThread
		byKey[t.Thread.ID] = t
	}
	classify.SortForDisplay(enriched)
	for i, e := range enriched {
		threads[i] = byKey[e.Thread.ID]
	}
}

func formatDate(millis int64) string {
	if millis == 0 {
		return "unknown"
	}
	return time.UnixMilli(millis).Format("Jan 2, 2006 15:04")
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return strings.TrimSpace(s[:n-1]) + "…"
}

const reportTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>Inbox Summary</title>
<style>
body { font-family: -apple-system, "Segoe UI", sans-serif; margin: 2rem auto; max-width: 60rem; color: #1c1c1e; }
h1 { border-bottom: 2px solid #ddd; padding-bottom: .3rem; }
h2 { margin-top: 2rem; color: #333; }
.meta { color: #777; font-size: .85rem; }
.thread { border: 1px solid #e3e3e3; border-radius: 8px; padding: .8rem 1rem; margin: .8rem 0; }
.thread.important { border-color: #d9a400; background: #fffaf0; }
.badge { background: #d9a400; color: #fff; border-radius: 4px; font-size: .7rem; padding: .1rem .4rem; margin-left: .4rem; }
.badge.error { background: #c0392b; }
.badge.cached { background: #5a8dee; }
.subject a { color: #1a5bb8; text-decoration: none; }
.participants { color: #666; font-size: .8rem; margin: .2rem 0; }
.summary { margin-top: .5rem; white-space: pre-wrap; }
.summary.failed { color: #c0392b; }
footer { margin-top: 3rem; border-top: 1px solid #ddd; padding-top: .8rem; color: #777; font-size: .85rem; }
</style>
</head>
<body>
<h1>Inbox Summary</h1>
<p class="meta">Generated {{.GeneratedAt}} · {{.TotalThreads}} threads ({{.ImportantCount}} important) · run {{.RunID}}</p>
{{range .Categories}}
<h2>{{.Name}} <span class="meta">({{len .Threads}} threads{{if .ImportantCount}}, {{.ImportantCount}} important{{end}})</span></h2>
{{range .Threads}}
<div class="thread{{if .HasImportantSender}} important{{end}}">
  <div class="subject"><a href="{{.GmailURL}}">{{truncate .Subject 120}}</a>
    {{- if .HasImportantSender}}<span class="badge">important</span>{{end}}
    {{- if .Summary.FromCache}}<span class="badge cached">cached</span>{{end}}
    {{- if and (not .Summary.Generated) (not .Summary.FromCache)}}<span class="badge error">failed</span>{{end}}
  </div>
  <div class="participants">{{len .Thread.Messages}} messages · {{formatDate .MostRecentDate}} · {{participants .Participants}}</div>
  <div class="summary{{if and (not .Summary.Generated) (not .Summary.FromCache)}} failed{{end}}">{{.Summary.Text}}</div>
</div>
{{end}}
{{end}}
<footer>
<p>Summaries: {{.Stats.Succeeded}}/{{.Stats.Total}} succeeded ({{percent .Stats.SuccessRate}}%), {{.Stats.Failed}} failed.</p>
{{if .ErrorLines}}<p>Failure causes:</p><ul>{{range .ErrorLines}}<li>{{.}}</li>{{end}}</ul>{{end}}
{{if .Cache.Path}}<p>Cache: {{.Cache.Entries}} entries, {{.Cache.SizeBytes}} bytes.</p>{{end}}
</footer>
</body>
</html>
`
