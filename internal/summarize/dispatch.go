package summarize

import (
	"context"
	"fmt"
	"sync"

	"mailbrief/internal/cache"
	"mailbrief/internal/config"
	"mailbrief/internal/model"

	"go.uber.org/zap"
)

// Invoker is the external summarizer contract the engine dispatches to.
type Invoker interface {
	Invoke(ctx context.Context, content, instructions string) (string, error)
}

// ProgressFunc receives incremental completion updates. Calls arrive in
// completion order, which is unrelated to task order.
type ProgressFunc func(completed int, description string)

// Stats aggregates one batch run.
type Stats struct {
	Total       int
	Succeeded   int
	Failed      int
	SuccessRate float64
	ErrorCounts map[string]int
}

// Engine schedules one summarization task per (category, thread) onto a
// fixed-size worker pool, reusing cache hits and writing fresh results back
// to the cache. Result placement is by pre-allocated (category, index) slot,
// so completion order never reorders output.
type Engine struct {
	invoker     Invoker
	cache       *cache.Cache // nil disables caching
	concurrency int
	progress    ProgressFunc
	log         *zap.Logger
}

func NewEngine(invoker Invoker, c *cache.Cache, concurrency int, progress ProgressFunc, log *zap.Logger) *Engine {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Engine{
		invoker:     invoker,
		cache:       c,
		concurrency: concurrency,
		progress:    progress,
		log:         log,
	}
}

// task is one unit of dispatch work: one thread's summarization within one
// category. Ephemeral, created per batch run.
type task struct {
	category     string
	index        int
	thread       model.EnrichedThread
	instructions string
	cached       *model.Summary
}

// Run summarizes every grouped thread and returns results in the same
// category→ordered-list shape, plus batch statistics. Per-task failures
// become failed-summary records; they never abort sibling tasks.
func (e *Engine) Run(ctx context.Context, grouped map[string][]model.EnrichedThread, cfg *config.Config) (map[string][]model.SummarizedThread, Stats) {
	results := make(map[string][]model.SummarizedThread, len(grouped))

	var tasks []task
	for name, threads := range grouped {
		results[name] = make([]model.SummarizedThread, len(threads))

		prompt := config.DefaultPrompt
		if cat := cfg.CategoryByName(name); cat != nil {
			prompt = cat.SummaryPrompt
		} else {
			e.log.Warn("no category config found, using default prompt", zap.String("category", name))
		}

		for i, t := range threads {
			tk := task{category: name, index: i, thread: t, instructions: prompt}
			// Synchronous probe; a hit bypasses the external tool entirely.
			if e.cache != nil && e.cache.IsCached(ctx, t.Thread.ID, t.Thread.Messages, prompt) {
				if s, ok, err := e.cache.Get(ctx, t.Thread.ID); err == nil && ok {
					s.FromCache = true
					tk.cached = &s
				} else if err != nil {
					e.log.Warn("cache read failed", zap.String("thread_id", t.Thread.ID), zap.Error(err))
				}
			}
			tasks = append(tasks, tk)
		}
	}

	total := len(tasks)
	e.log.Info("dispatching summarization tasks",
		zap.Int("tasks", total), zap.Int("concurrency", e.concurrency))

	jobs := make(chan task)
	var wg sync.WaitGroup
	var mu sync.Mutex // guards completed
	completed := 0

	wg.Add(e.concurrency)
	for w := 0; w < e.concurrency; w++ {
		go func() {
			defer wg.Done()
			for tk := range jobs {
				sum := e.runTask(ctx, tk)
				// Each task owns a distinct pre-allocated slot.
				results[tk.category][tk.index] = model.SummarizedThread{
					EnrichedThread: tk.thread,
					Summary:        sum,
				}

				mu.Lock()
				completed++
				done := completed
				mu.Unlock()
				if e.progress != nil {
					desc := fmt.Sprintf("Generating summaries (%d/%d)", done, total)
					switch {
					case sum.FromCache:
						desc += " (cached)"
					case !sum.Generated:
						desc += " - Error"
					}
					e.progress(done, desc)
				}
			}
		}()
	}

	submitted := 0
submit:
	for _, tk := range tasks {
		select {
		case <-ctx.Done():
			break submit
		case jobs <- tk:
			submitted++
		}
	}
	close(jobs)
	wg.Wait()

	// Tasks never submitted because of cancellation still get a failed
	// record in their slot.
	for _, tk := range tasks[submitted:] {
		errMsg := context.Canceled.Error()
		if err := ctx.Err(); err != nil {
			errMsg = err.Error()
		}
		results[tk.category][tk.index] = model.SummarizedThread{
			EnrichedThread: tk.thread,
			Summary: model.Summary{
				Text:  "Error generating summary: " + errMsg,
				Error: errMsg,
			},
		}
	}

	return results, computeStats(results)
}

func (e *Engine) runTask(ctx context.Context, tk task) model.Summary {
	if tk.cached != nil {
		e.log.Debug("using cached summary", zap.String("thread_id", tk.thread.Thread.ID))
		return *tk.cached
	}

	content := BuildThreadContent(tk.thread)
	text, err := e.invoker.Invoke(ctx, content, tk.instructions)
	if err != nil {
		e.log.Error("summarization failed",
			zap.String("thread_id", tk.thread.Thread.ID),
			zap.String("category", tk.category),
			zap.Error(err))
		return model.Summary{
			Text:  "Error generating summary: " + err.Error(),
			Error: err.Error(),
		}
	}

	sum := model.Summary{Text: text, Generated: true}
	if e.cache != nil {
		if err := e.cache.Put(ctx, tk.thread.Thread.ID, tk.thread.Thread.Messages, tk.instructions, sum); err != nil {
			e.log.Warn("cache write failed",
				zap.String("thread_id", tk.thread.Thread.ID), zap.Error(err))
		}
	}
	return sum
}

func computeStats(results map[string][]model.SummarizedThread) Stats {
	st := Stats{ErrorCounts: make(map[string]int)}
	for _, threads := range results {
		for _, t := range threads {
			st.Total++
			if t.Summary.Generated || t.Summary.FromCache {
				st.Succeeded++
				continue
			}
			st.Failed++
			msg := t.Summary.Error
			if msg == "" {
				msg = "unknown error"
			}
			st.ErrorCounts[msg]++
		}
	}
	if st.Total > 0 {
		st.SuccessRate = float64(st.Succeeded) / float64(st.Total)
	}
	return st
}
