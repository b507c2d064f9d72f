package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
	"github.com/mattn/go-isatty"
	"go.uber.org/zap"

	"mailbrief/internal/cache"
	"mailbrief/internal/classify"
	"mailbrief/internal/config"
	"mailbrief/internal/gmail"
	"mailbrief/internal/logging"
	"mailbrief/internal/match"
	"mailbrief/internal/model"
	"mailbrief/internal/report"
	"mailbrief/internal/summarize"
	"mailbrief/internal/tui"
)

func main() {
	var (
		configDir    = flag.String("config", "", "config directory (default ~/.config/mailbrief)")
		output       = flag.String("output", "", "report output path (default from settings.yaml)")
		verbose      = flag.Bool("verbose", false, "enable debug logging")
		noCache      = flag.Bool("no-cache", false, "skip the summary cache for this run")
		noTUI        = flag.Bool("no-tui", false, "log progress instead of rendering a progress bar")
		maxThreads   = flag.Int("max-threads", 0, "cap total threads fetched (0 = no cap)")
		cacheStats   = flag.Bool("cache-stats", false, "print cache statistics and exit")
		clearCache   = flag.Bool("clear-cache", false, "remove all cache entries and exit")
		cacheCleanup = flag.Int("cache-cleanup", 0, "evict entries older than N days and exit")
		checkTool    = flag.Bool("check-tool", false, "verify the summarizer tool is available and exit")
	)
	flag.Parse()

	log, err := logging.New(*verbose)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Cannot build logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(log, *configDir, *output, *noCache, *noTUI, *maxThreads,
		*cacheStats, *clearCache, *cacheCleanup, *checkTool); err != nil {
		log.Error("run failed", zap.Error(err))
		os.Exit(1)
	}
}

func run(log *zap.Logger, configDir, output string, noCache, noTUI bool, maxThreads int,
	cacheStats, clearCache bool, cacheCleanup int, checkTool bool) error {

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if configDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("determine home directory: %w", err)
		}
		configDir = filepath.Join(home, ".config", "mailbrief")
	}

	runID := uuid.NewString()
	log = log.With(zap.String("run_id", runID))

	cfg, err := config.Load(configDir, log)
	if err != nil {
		return fmt.Errorf("configuration: %w", err)
	}

	cacheBase, err := os.UserCacheDir()
	if err != nil {
		cacheBase = configDir
	}
	store, err := cache.Open(filepath.Join(cacheBase, "mailbrief", "summaries.db"), log)
	if err != nil {
		return fmt.Errorf("open cache: %w", err)
	}
	defer store.Close()

	runner := summarize.NewRunner(cfg.Settings.Summarizer.Command, cfg.Settings.Summarizer.Timeout(), log)

	// Maintenance modes short-circuit the pipeline.
	switch {
	case cacheStats:
		st, err := store.Stats(ctx)
		if err != nil {
			return fmt.Errorf("cache stats: %w", err)
		}
		fmt.Printf("Cache: %s\nEntries: %d\nSize: %d bytes\n", st.Path, st.Entries, st.SizeBytes)
		return nil
	case clearCache:
		if err := store.Clear(ctx); err != nil {
			return fmt.Errorf("clear cache: %w", err)
		}
		fmt.Println("Cache cleared.")
		return nil
	case cacheCleanup > 0:
		n, err := store.EvictOlderThan(ctx, time.Duration(cacheCleanup)*24*time.Hour)
		if err != nil {
			return fmt.Errorf("cache cleanup: %w", err)
		}
		fmt.Printf("Removed %d entries older than %d days.\n", n, cacheCleanup)
		return nil
	case checkTool:
		if err := runner.CheckAvailable(ctx); err != nil {
			return err
		}
		fmt.Println("Summarizer tool is available.")
		return nil
	}

	// Dispatching a guaranteed-all-fail batch wastes the whole fetch, so the
	// tool check happens before anything else.
	if err := runner.CheckAvailable(ctx); err != nil {
		return err
	}

	svc, err := gmail.NewService(ctx, configDir, cfg.Settings.Gmail)
	if err != nil {
		return fmt.Errorf("gmail auth: %w", err)
	}

	threads, err := gmail.FetchThreads(ctx, svc, cfg.Settings.Gmail.IncludeSpamTrash, maxThreads, log)
	if err != nil {
		return fmt.Errorf("fetch threads: %w", err)
	}

	classifier := classify.NewClassifier(cfg, match.NewMatcher(log), log)
	grouped := classifier.Group(threads, cfg.Settings.Output.MaxThreadsPerCategory)
	logCategorySummary(log, grouped)

	total := 0
	for _, list := range grouped {
		total += len(list)
	}

	var (
		progress summarize.ProgressFunc
		program  *tea.Program
		tuiDone  chan struct{}
	)
	if !noTUI && total > 0 && isatty.IsTerminal(os.Stdout.Fd()) {
		program = tea.NewProgram(tui.NewProgressModel(total))
		tuiDone = make(chan struct{})
		go func() {
			_, _ = program.Run()
			close(tuiDone)
		}()
		progress = func(done int, desc string) {
			program.Send(tui.ProgressMsg{Completed: done, Description: desc})
		}
	} else {
		progress = func(done int, desc string) {
			log.Info("progress", zap.Int("completed", done), zap.String("status", desc))
		}
	}

	dispatchCache := store
	if noCache {
		dispatchCache = nil
	}
	engine := summarize.NewEngine(runner, dispatchCache, cfg.Settings.Summarizer.Concurrency, progress, log)
	results, stats := engine.Run(ctx, grouped, cfg)

	if program != nil {
		program.Send(tui.DoneMsg{})
		<-tuiDone
	}

	if _, err := store.EvictOlderThan(ctx, time.Duration(cfg.Settings.Cache.MaxAgeDays)*24*time.Hour); err != nil {
		log.Warn("cache eviction failed", zap.Error(err))
	}
	cstats, err := store.Stats(ctx)
	if err != nil {
		log.Warn("cache stats unavailable", zap.Error(err))
	}

	outPath := output
	if outPath == "" {
		outPath = cfg.Settings.Output.Filename
	}
	gen, err := report.NewGenerator(cfg)
	if err != nil {
		return err
	}
	if err := gen.Write(outPath, runID, results, stats, cstats); err != nil {
		return err
	}

	printStats(stats)
	fmt.Printf("Report written to %s\n", outPath)
	return nil
}

func logCategorySummary(log *zap.Logger, grouped map[string][]model.EnrichedThread) {
	for name, threads := range grouped {
		important := 0
		messages := 0
		for _, t := range threads {
			if t.HasImportantSender {
				important++
			}
			messages += t.MessageCount
		}
		log.Info("category",
			zap.String("name", name),
			zap.Int("threads", len(threads)),
			zap.Int("important", important),
			zap.Int("messages", messages))
	}
}

func printStats(stats summarize.Stats) {
	fmt.Printf("Summaries: %d/%d succeeded (%.1f%%), %d failed\n",
		stats.Succeeded, stats.Total, stats.SuccessRate*100, stats.Failed)
	if len(stats.ErrorCounts) == 0 {
		return
	}
	fmt.Println("Failure causes:")
	msgs := make([]string, 0, len(stats.ErrorCounts))
	for msg := range stats.ErrorCounts {
		msgs = append(msgs, msg)
	}
	sort.Strings(msgs)
	for _, msg := range msgs {
		fmt.Printf("  %s ×%d\n", msg, stats.ErrorCounts[msg])
	}
}
