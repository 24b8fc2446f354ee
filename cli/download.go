package main

import (
	"fmt"
	"io"
	"os"

	"github.com/baba2413/VEA/batch"
	"github.com/baba2413/VEA/links"
	"github.com/baba2413/VEA/youtube"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

func newDownloadCmd(a *app) *cobra.Command {
	var (
		jsonKey    string
		outDir     string
		workers    int
		scanValues bool
		allow      []string
	)
	opts := youtube.DefaultDownloadOptions()

	cmd := &cobra.Command{
		Use:   "download <input.json>",
		Short: "Download every link in a JSON file in parallel",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := a.logger

			lopts := links.Options{Key: jsonKey, ScanValues: scanValues}
			if cmd.Flags().Changed("allow-domain") {
				lopts.Allowlist = allow
			}
			items, err := links.ExtractFile(args[0], lopts)
			if err != nil {
				return err
			}
			urls := links.URLs(items)
			if len(urls) == 0 {
				log.Warn().Str("input", args[0]).Msg("no links to download")
				return nil
			}

			d := newDownloader(a.cfg, opts, log)
			if err := d.CheckInstalled(ctx); err != nil {
				return err
			}

			bar := progressbar.NewOptions(len(urls),
				progressbar.OptionSetWriter(os.Stderr),
				progressbar.OptionSetDescription("Downloading"),
				progressbar.OptionShowCount(),
				progressbar.OptionSetWidth(40),
				progressbar.OptionSetRenderBlankState(true),
				progressbar.OptionClearOnFinish(),
			)

			out := cmd.OutOrStdout()
			sum, err := batch.DownloadAll(ctx, d, urls, batch.PoolOptions{
				Workers: workers,
				DestDir: outDir,
				Logger:  log,
			}, func(dl batch.Download) {
				_ = bar.Clear()
				reportDownload(out, dl)
				_ = bar.Add(1)
			})
			_ = bar.Finish()

			fmt.Fprintf(out, "OK %d, FAIL %d, saved to %s\n", sum.OK, sum.Failed, outDir)
			return err
		},
	}

	f := cmd.Flags()
	f.StringVar(&jsonKey, "json-key", links.DefaultKey, "Key holding the link list when the input is an object")
	f.StringVar(&outDir, "outdir", "downloads", "Output directory")
	f.IntVar(&workers, "workers", batch.DefaultWorkers, "Concurrent downloads")
	f.BoolVar(&scanValues, "scan-values", false, "Collect links from every string value of an object input")
	f.StringSliceVar(&allow, "allow-domain", links.DefaultAllowlist, "Accepted link domains (empty accepts all)")
	f.StringVar(&opts.Format, "format", opts.Format, "yt-dlp format selector")
	f.StringVar(&opts.RateLimit, "rate-limit", "", "Download rate limit, e.g. 2M")
	f.IntVar(&opts.Retries, "retries", opts.Retries, "yt-dlp network retries")
	f.BoolVar(&opts.SkipExisting, "skip-existing", false, "Do not overwrite files that already exist")
	f.BoolVar(&opts.WriteSubs, "write-subs", false, "Also download subtitles")
	f.StringVar(&opts.SubLangs, "sub-langs", opts.SubLangs, "Subtitle languages")
	return cmd
}

// reportDownload prints one line per finished job.
func reportDownload(w io.Writer, dl batch.Download) {
	if dl.Err != nil {
		fmt.Fprintf(w, "FAIL - %s -> %v\n", dl.URL, dl.Err)
		return
	}
	fmt.Fprintf(w, "OK   - %s -> %s\n", dl.URL, dl.Path)
}
