// Package batch drives work items through download, analysis and
// persistence.
package batch

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/baba2413/VEA/analyzer"
	"github.com/baba2413/VEA/internal/logging"
	"github.com/baba2413/VEA/links"
	"github.com/baba2413/VEA/storage"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// DefaultDelay is the pause between items, sized for free-tier API quotas.
const DefaultDelay = 4 * time.Second

// Fetcher downloads one link into destDir and returns the local path.
type Fetcher interface {
	Fetch(ctx context.Context, url, destDir string) (string, error)
}

// Store accumulates results and persists them after every Put.
type Store interface {
	Put(r storage.Result) (storage.PutOutcome, error)
	Succeeded(url string) bool
	Policy() storage.DuplicatePolicy
	Len() int
}

// State is a step in an item's lifecycle.
type State string

const (
	StatePending        State = "pending"
	StateDownloading    State = "downloading"
	StateDownloaded     State = "downloaded"
	StateDownloadFailed State = "download_failed"
	StateAnalyzing      State = "analyzing"
	StateAnalyzed       State = "analyzed"
	StateAnalyzeFailed  State = "analyze_failed"
	StatePersisted      State = "persisted"
	StateSkipped        State = "skipped"
)

// Options configures a Runner.
type Options struct {
	// ScratchDir receives downloaded media. Default: "temp_videos"
	ScratchDir string
	// Delay is waited between consecutive items, never after the last one.
	// Zero disables pacing.
	Delay time.Duration
	// KeepMedia keeps downloaded files after analysis.
	KeepMedia bool
	// OnItem is called once per item after it is persisted or skipped.
	OnItem func(ItemReport)
}

// ItemReport describes how one item ended.
type ItemReport struct {
	Index   int
	URL     string
	State   State
	Outcome storage.PutOutcome
	Err     error
}

// Summary totals a run.
type Summary struct {
	RunID     string
	Total     int
	Succeeded int
	Failed    int
	Skipped   int
	// Records is the number of records in the result file after the run.
	Records int
}

// Runner processes work items sequentially. Per-item failures become error
// records; only persistence failures and cancellation stop a run.
type Runner struct {
	fetcher  Fetcher
	analyzer analyzer.Analyzer
	store    Store
	opts     Options
	logger   zerolog.Logger

	sleep func(ctx context.Context, d time.Duration) error
}

// NewRunner wires the collaborators of a batch run.
func NewRunner(fetcher Fetcher, a analyzer.Analyzer, store Store, opts Options, logger zerolog.Logger) *Runner {
	if opts.ScratchDir == "" {
		opts.ScratchDir = "temp_videos"
	}
	if opts.Delay < 0 {
		opts.Delay = 0
	}
	return &Runner{
		fetcher:  fetcher,
		analyzer: a,
		store:    store,
		opts:     opts,
		logger:   logging.WithComponent(logger, "batch"),
		sleep:    sleepContext,
	}
}

// RunFile extracts work items from the link file at path and runs them.
// Malformed input fails before any download or analysis.
func (r *Runner) RunFile(ctx context.Context, path string, lopts links.Options) (Summary, error) {
	items, err := links.ExtractFile(path, lopts)
	if err != nil {
		return Summary{}, err
	}
	return r.Run(ctx, items)
}

// Run processes items in order. On cancellation the in-flight item is
// dropped and ctx.Err() is returned with the summary so far.
func (r *Runner) Run(ctx context.Context, items []links.WorkItem) (Summary, error) {
	runID := uuid.NewString()
	log := logging.WithRunID(r.logger, runID)

	sum := Summary{RunID: runID, Total: len(items)}

	log.Info().
		Int("items", len(items)).
		Int("existing_records", r.store.Len()).
		Dur("delay", r.opts.Delay).
		Str("duplicates", string(r.store.Policy())).
		Msg("batch started")

	for i, item := range items {
		if err := ctx.Err(); err != nil {
			return r.finish(log, sum, err)
		}
		ilog := logging.WithURL(log, item.URL).With().Int("item", i+1).Int("of", len(items)).Logger()
		ilog.Debug().Str("state", string(StatePending)).Msg("item state")

		if r.store.Policy() == storage.DuplicateSkip && r.store.Succeeded(item.URL) {
			sum.Skipped++
			ilog.Info().Str("state", string(StateSkipped)).Msg("already analyzed")
			r.report(ItemReport{Index: i, URL: item.URL, State: StateSkipped, Outcome: storage.Skipped})
			continue
		}

		result, state, itemErr := r.process(ctx, ilog, item)
		if err := ctx.Err(); err != nil {
			ilog.Warn().Str("state", string(state)).Msg("canceled, item not persisted")
			return r.finish(log, sum, err)
		}

		outcome, err := r.store.Put(result)
		if err != nil {
			ilog.Error().Err(err).Msg("failed to persist result")
			return r.finish(log, sum, err)
		}

		switch {
		case outcome == storage.Skipped:
			sum.Skipped++
		case result.IsError():
			sum.Failed++
		default:
			sum.Succeeded++
		}
		ilog.Info().
			Str("state", string(StatePersisted)).
			Str("outcome", outcome.String()).
			Bool("error", result.IsError()).
			Msg("item state")
		r.report(ItemReport{Index: i, URL: item.URL, State: state, Outcome: outcome, Err: itemErr})

		if i < len(items)-1 && r.opts.Delay > 0 {
			if err := r.sleep(ctx, r.opts.Delay); err != nil {
				return r.finish(log, sum, err)
			}
		}
	}

	return r.finish(log, sum, nil)
}

// process runs one item through download and analysis. Failures are folded
// into an error record; the returned state is the last one reached.
func (r *Runner) process(ctx context.Context, log zerolog.Logger, item links.WorkItem) (storage.Result, State, error) {
	log.Info().Str("state", string(StateDownloading)).Msg("item state")
	path, err := r.fetcher.Fetch(ctx, item.URL, r.opts.ScratchDir)
	if err != nil {
		log.Warn().Err(err).Str("state", string(StateDownloadFailed)).Msg("item state")
		return storage.NewErrorResult(item.URL, err, item.Remarks), StateDownloadFailed, err
	}
	log.Debug().Str("state", string(StateDownloaded)).Str("path", path).Msg("item state")

	if !r.opts.KeepMedia {
		defer func() {
			if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
				log.Warn().Err(err).Str("path", path).Msg("failed to remove media")
			}
		}()
	}

	log.Info().Str("state", string(StateAnalyzing)).Str("analyzer", r.analyzer.Name()).Msg("item state")
	text, err := r.analyzer.Analyze(ctx, path)
	if err != nil {
		log.Warn().Err(err).Str("state", string(StateAnalyzeFailed)).Msg("item state")
		return storage.NewErrorResult(item.URL, err, item.Remarks), StateAnalyzeFailed, err
	}
	log.Debug().Str("state", string(StateAnalyzed)).Int("chars", len(text)).Msg("item state")

	return storage.Result{URL: item.URL, Response: text, Remarks: item.Remarks}, StateAnalyzed, nil
}

func (r *Runner) finish(log zerolog.Logger, sum Summary, err error) (Summary, error) {
	sum.Records = r.store.Len()
	ev := log.Info()
	if err != nil {
		ev = log.Warn().Err(err)
	}
	ev.Int("succeeded", sum.Succeeded).
		Int("failed", sum.Failed).
		Int("skipped", sum.Skipped).
		Int("records", sum.Records).
		Msg("batch finished")
	return sum, err
}

func (r *Runner) report(rep ItemReport) {
	if r.opts.OnItem != nil {
		r.opts.OnItem(rep)
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
