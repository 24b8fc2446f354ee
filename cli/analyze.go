package main

import (
	"fmt"
	"os"
	"time"

	"github.com/baba2413/VEA/analyzer"
	"github.com/baba2413/VEA/batch"
	"github.com/baba2413/VEA/config"
	"github.com/baba2413/VEA/links"
	"github.com/baba2413/VEA/storage"
	"github.com/baba2413/VEA/youtube"
	"github.com/spf13/cobra"
)

func newAnalyzeCmd(a *app) *cobra.Command {
	var (
		output      string
		tempDir     string
		delay       float64
		analyzers   []string
		duplicates  string
		writeMode   string
		responseKey string
		allow       []string
		jsonKey     string
		keepMedia   bool
		upload      bool
		promptFile  string
	)

	cmd := &cobra.Command{
		Use:   "analyze <input.json>",
		Short: "Download and analyze every link in a JSON file",
		Long: `Analyze reads links from a JSON array (or an object holding one under
--json-key), downloads each video and records the analysis in the output file.
Failed items are recorded as "ERROR: ..." and the run continues. Existing
records are kept, so an interrupted run can simply be started again.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg := a.cfg
			log := a.logger

			if err := requireAnalyzers(cfg, analyzers); err != nil {
				return err
			}
			if upload {
				if err := cfg.RequireCredential(config.CapabilityUpload); err != nil {
					return err
				}
			}

			lopts := links.Options{Key: jsonKey}
			if cmd.Flags().Changed("allow-domain") {
				lopts.Allowlist = allow
			}
			items, err := links.ExtractFile(args[0], lopts)
			if err != nil {
				return err
			}
			if len(items) == 0 {
				log.Warn().Str("input", args[0]).Msg("no links to analyze")
				return nil
			}

			pace := cfg.Delay
			if cmd.Flags().Changed("delay") {
				pace = time.Duration(delay * float64(time.Second))
			}

			var prompt string
			if promptFile != "" {
				data, err := os.ReadFile(promptFile)
				if err != nil {
					return fmt.Errorf("read prompt: %w", err)
				}
				prompt = string(data)
			}

			built, err := buildAnalyzers(ctx, cfg, analyzers, analyzerSettings{prompt: prompt}, log)
			if err != nil {
				return err
			}

			store, err := storage.Open(output, storage.Options{
				WriteMode:   storage.WriteMode(writeMode),
				Duplicates:  storage.DuplicatePolicy(duplicates),
				ResponseKey: responseKey,
				Logger:      log,
			})
			if err != nil {
				return err
			}
			defer store.Close()

			runner := batch.NewRunner(
				newDownloader(cfg, youtube.DefaultDownloadOptions(), log),
				analyzer.NewChain(log, built...),
				store,
				batch.Options{ScratchDir: tempDir, Delay: pace, KeepMedia: keepMedia},
				log,
			)

			sum, err := runner.Run(ctx, items)
			fmt.Fprintf(cmd.OutOrStdout(), "processed %d/%d: %d ok, %d failed, %d skipped, %d records in %s\n",
				sum.Succeeded+sum.Failed+sum.Skipped, sum.Total, sum.Succeeded, sum.Failed, sum.Skipped, sum.Records, output)
			if err != nil {
				return err
			}

			if upload {
				pub, err := storage.NewMinioPublisher(ctx, storage.MinioConfig{
					Endpoint:  cfg.Minio.Endpoint,
					Region:    cfg.Minio.Region,
					Bucket:    cfg.Minio.Bucket,
					AccessKey: cfg.Minio.AccessKey,
					SecretKey: cfg.Minio.SecretKey,
					UseSSL:    cfg.Minio.UseSSL,
					Prefix:    cfg.Minio.Prefix,
				})
				if err != nil {
					return err
				}
				url, err := pub.Publish(ctx, output, sum.RunID)
				if err != nil {
					return err
				}
				log.Info().Str("url", url).Msg("results uploaded")
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVarP(&output, "output", "o", "analysis_results.json", "Result file")
	f.StringVar(&tempDir, "temp-dir", "temp_videos", "Scratch directory for downloads")
	f.Float64Var(&delay, "delay", 4.0, "Seconds to wait between items")
	f.StringSliceVar(&analyzers, "analyzer", []string{config.CapabilityGemini}, "Analyzers to try in order: gemini, openai-vision, openai-audio")
	f.StringVar(&duplicates, "on-duplicate", string(storage.DuplicateAppend), "Duplicate URL policy: append, replace, skip")
	f.StringVar(&writeMode, "write-mode", string(storage.WriteAtomic), "Result file write mode: atomic, inplace")
	f.StringVar(&responseKey, "response-key", "", "JSON key for the response field: response, gemini_response (default: keep existing)")
	f.StringSliceVar(&allow, "allow-domain", links.DefaultAllowlist, "Accepted link domains (empty accepts all)")
	f.StringVar(&jsonKey, "json-key", links.DefaultKey, "Key holding the link list when the input is an object")
	f.BoolVar(&keepMedia, "keep-media", false, "Keep downloaded videos after analysis")
	f.BoolVar(&upload, "upload", false, "Upload the result file to MinIO when the run completes")
	f.StringVar(&promptFile, "prompt-file", "", "Read the Gemini prompt from a file")
	return cmd
}
