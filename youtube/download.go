package youtube

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/baba2413/VEA/internal/retry"
	"github.com/rs/zerolog"
)

const (
	defaultYtdlpPath    = "yt-dlp"
	defaultYtdlpTimeout = 30 * time.Minute

	// OutputTemplate names files by title and video ID so parallel
	// downloads into one directory never collide.
	OutputTemplate = "%(title)s-%(id)s.%(ext)s"
)

// DownloadOptions configures how yt-dlp downloads a video.
type DownloadOptions struct {
	// Format is a yt-dlp format selector. Default: "worst"
	Format string
	// RateLimit is passed to --limit-rate, e.g. "2M". Empty means unlimited.
	RateLimit string
	// Retries is yt-dlp's own network retry count. Default: 5
	Retries int
	// SkipExisting keeps files that are already present (--no-overwrites).
	SkipExisting bool
	// WriteSubs also downloads manual and automatic subtitles.
	WriteSubs bool
	// SubLangs selects subtitle languages. Default: "ko,en.*,ja"
	SubLangs string
	// RemuxVideo remuxes into this container when set. Default: "mp4"
	RemuxVideo string
	// ConcurrentFragments is passed to -N. Default: 4
	ConcurrentFragments int
}

// DefaultDownloadOptions returns the options used by the batch analyzer.
func DefaultDownloadOptions() DownloadOptions {
	return DownloadOptions{
		Format:              "worst",
		Retries:             5,
		SubLangs:            "ko,en.*,ja",
		RemuxVideo:          "mp4",
		ConcurrentFragments: 4,
	}
}

// Downloader fetches videos by running yt-dlp as a subprocess.
type Downloader struct {
	// YtdlpPath is the path to the yt-dlp executable. Defaults to "yt-dlp".
	YtdlpPath string
	// Timeout bounds a single yt-dlp invocation. Defaults to 30 minutes.
	Timeout time.Duration
	// Options are the yt-dlp download options.
	Options DownloadOptions
	// RetryConfig controls re-running yt-dlp after a transient failure.
	// Nil uses retry.DefaultConfig().
	RetryConfig *retry.Config

	logger zerolog.Logger
}

// NewDownloader creates a Downloader with default settings.
func NewDownloader(logger zerolog.Logger) *Downloader {
	cfg := retry.DefaultConfig()
	return &Downloader{
		YtdlpPath:   defaultYtdlpPath,
		Timeout:     defaultYtdlpTimeout,
		Options:     DefaultDownloadOptions(),
		RetryConfig: &cfg,
		logger:      logger.With().Str("component", "fetcher").Logger(),
	}
}

// Fetch downloads url into destDir and returns the local file path.
// Failures are returned as *FetchError.
func (d *Downloader) Fetch(ctx context.Context, url, destDir string) (string, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return "", &FetchError{URL: url, Err: ErrInvalidURL}
	}
	if destDir == "" {
		destDir = "."
	}
	if err := os.MkdirAll(destDir, 0755); err != nil {
		return "", &FetchError{URL: url, Err: fmt.Errorf("create output directory: %w", err)}
	}

	cfg := retry.DefaultConfig()
	if d.RetryConfig != nil {
		cfg = *d.RetryConfig
	}

	var path string
	err := retry.Do(ctx, cfg, fetchErrorClassifier, func(ctx context.Context) error {
		p, err := d.runOnce(ctx, url, destDir)
		if err != nil {
			d.logger.Debug().Err(err).Str("url", url).Msg("yt-dlp attempt failed")
			return err
		}
		path = p
		return nil
	})
	if err != nil {
		var fe *FetchError
		if errors.As(err, &fe) {
			// Keep the retry count visible without nesting FetchErrors.
			var re *retry.RetryableError
			if errors.As(err, &re) {
				return "", &FetchError{URL: url, Err: fmt.Errorf("after %d retries: %w", re.Retries, fe.Err)}
			}
			return "", fe
		}
		return "", &FetchError{URL: url, Err: err}
	}
	return path, nil
}

func (d *Downloader) runOnce(ctx context.Context, url, destDir string) (string, error) {
	timeout := d.Timeout
	if timeout == 0 {
		timeout = defaultYtdlpTimeout
	}
	cmdCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(cmdCtx, d.path(), d.buildArgs(url, destDir)...)
	cmd.WaitDelay = 5 * time.Second

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if errors.Is(err, exec.ErrNotFound) || errors.Is(err, os.ErrNotExist) {
			return "", retry.Permanent(&FetchError{URL: url, Err: ErrYtdlpNotInstalled})
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		if errors.Is(cmdCtx.Err(), context.DeadlineExceeded) {
			return "", &FetchError{URL: url, Err: ErrNetworkTimeout}
		}

		errMsg := stderr.String()
		if sentinel := classifyStderr(errMsg); sentinel != nil {
			fe := &FetchError{URL: url, Err: fmt.Errorf("%w: %s", sentinel, stderrTail(errMsg, 300))}
			if isPermanent(sentinel) {
				return "", retry.Permanent(fe)
			}
			return "", fe
		}
		return "", &FetchError{URL: url, Err: fmt.Errorf("yt-dlp failed: %w: %s", err, stderrTail(errMsg, 300))}
	}

	if p := printedPath(stdout.String()); p != "" {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}

	// --print is silent for some extractors; fall back to the ID in the name.
	if p := findByID(destDir, VideoID(url)); p != "" {
		return p, nil
	}
	return "", retry.Permanent(&FetchError{URL: url, Err: ErrMissingOutput})
}

func (d *Downloader) buildArgs(url, destDir string) []string {
	o := d.Options
	format := o.Format
	if format == "" {
		format = "worst"
	}

	args := []string{
		"-f", format,
		"-o", filepath.Join(destDir, OutputTemplate),
		"--no-warnings",
		"--no-progress",
		"--print", "after_move:filepath",
	}
	if o.Retries > 0 {
		args = append(args, "--retries", strconv.Itoa(o.Retries))
	}
	if o.RateLimit != "" {
		args = append(args, "--limit-rate", o.RateLimit)
	}
	if o.SkipExisting {
		args = append(args, "--no-overwrites")
	}
	if o.WriteSubs {
		langs := o.SubLangs
		if langs == "" {
			langs = "ko,en.*,ja"
		}
		args = append(args, "--write-subs", "--write-auto-subs", "--sub-langs", langs)
	}
	if o.RemuxVideo != "" {
		args = append(args, "--remux-video", o.RemuxVideo)
	}
	if o.ConcurrentFragments > 0 {
		args = append(args, "-N", strconv.Itoa(o.ConcurrentFragments))
	}
	return append(args, url)
}

func (d *Downloader) path() string {
	if d.YtdlpPath != "" {
		return d.YtdlpPath
	}
	return defaultYtdlpPath
}

// CheckInstalled verifies that yt-dlp can be executed.
func (d *Downloader) CheckInstalled(ctx context.Context) error {
	cmd := exec.CommandContext(ctx, d.path(), "--version")
	if err := cmd.Run(); err != nil {
		return ErrYtdlpNotInstalled
	}
	return nil
}

// printedPath returns the last non-empty stdout line, which is where
// --print after_move:filepath puts the final file.
func printedPath(out string) string {
	lines := strings.Split(strings.TrimSpace(out), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if line := strings.TrimSpace(lines[i]); line != "" {
			return line
		}
	}
	return ""
}

// findByID looks for "<anything>-<id>.<ext>" in dir, ignoring partial
// downloads and subtitle files.
func findByID(dir, id string) string {
	if id == "" {
		return ""
	}
	matches, err := filepath.Glob(filepath.Join(dir, "*-"+id+".*"))
	if err != nil {
		return ""
	}
	for _, m := range matches {
		switch strings.ToLower(filepath.Ext(m)) {
		case ".part", ".ytdl", ".vtt", ".srt", ".json", ".temp":
			continue
		}
		return m
	}
	return ""
}

// fetchErrorClassifier retries transient yt-dlp failures only.
func fetchErrorClassifier(err error) bool {
	if err == nil {
		return false
	}
	if !retry.IsRetryable(err) {
		return false
	}
	return !isPermanent(err)
}
