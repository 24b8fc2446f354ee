package batch

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// DefaultWorkers is the download pool size.
const DefaultWorkers = 4

// PoolOptions configures DownloadAll.
type PoolOptions struct {
	// Workers bounds concurrent downloads. Default: 4, minimum 1.
	Workers int
	// DestDir receives the downloaded files.
	DestDir string
	Logger  zerolog.Logger
}

// Download is the outcome of one pool job.
type Download struct {
	URL  string
	Path string
	Err  error
}

// PoolSummary counts pool outcomes.
type PoolSummary struct {
	OK       int
	Failed   int
	Failures []Download
}

// DownloadAll fetches urls with a fixed number of workers. A failed job
// never stops the others. onDone, when non-nil, is called in completion
// order and never concurrently. The returned error is non-nil only when ctx
// ends before every job was started or finished.
func DownloadAll(ctx context.Context, f Fetcher, urls []string, opts PoolOptions, onDone func(Download)) (PoolSummary, error) {
	workers := opts.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}
	if workers > len(urls) && len(urls) > 0 {
		workers = len(urls)
	}
	log := opts.Logger.With().Str("component", "pool").Int("workers", workers).Logger()

	var (
		mu  sync.Mutex
		sum PoolSummary
	)

	var g errgroup.Group
	g.SetLimit(workers)

	for _, url := range urls {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			path, err := f.Fetch(ctx, url, opts.DestDir)
			d := Download{URL: url, Path: path, Err: err}

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				sum.Failed++
				sum.Failures = append(sum.Failures, d)
				log.Warn().Err(err).Str("url", url).Msg("download failed")
			} else {
				sum.OK++
				log.Debug().Str("url", url).Str("path", path).Msg("downloaded")
			}
			if onDone != nil {
				onDone(d)
			}
			return nil
		})
	}
	_ = g.Wait()

	log.Info().Int("ok", sum.OK).Int("failed", sum.Failed).Msg("downloads finished")
	return sum, ctx.Err()
}
