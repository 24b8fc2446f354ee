// Package vea is a batch tool for evaluating online videos with AI models.
//
// It reads a JSON list of video links, downloads each one with yt-dlp,
// sends the file to Gemini or OpenAI for analysis and appends one record
// per link to a JSON result file.
//
// Overview
//
// The work is split across packages:
//
//   - links: extract an ordered, deduplicated list of work items from input JSON
//   - youtube: download a link with yt-dlp
//   - analyzer: Gemini file analysis, OpenAI frame vision and transcription,
//     and an ordered fallback Chain
//   - storage: the resumable JSON result store and MinIO publishing
//   - batch: the sequential Runner and the bounded DownloadAll pool
//   - ffmpeg: probing, frame sampling, audio extraction and fixed-window clips
//   - config: defaults, vea.yaml, .env and VEA_* environment variables
//
// Quick Start
//
//	store, err := storage.Open("analysis_results.json", storage.Options{})
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer store.Close()
//
//	gemini, err := analyzer.NewGemini(ctx, analyzer.GeminiConfig{APIKey: key}, logger)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	runner := batch.NewRunner(youtube.NewDownloader(logger), gemini, store,
//		batch.Options{Delay: batch.DefaultDelay}, logger)
//	summary, err := runner.RunFile(ctx, "links.json", links.Options{})
//
// Resuming
//
// Every processed link is written to disk before the next one starts. An
// interrupted run loses at most the item in flight; running it again keeps
// the existing records and appends new ones (or replaces or skips them,
// depending on the duplicate policy).
//
// Error Handling
//
// Per-item download and analysis failures are recorded as responses that
// start with "ERROR: " and never stop a run. Malformed input and missing
// credentials fail before any work. A failure to write the result file
// aborts the run.
package vea
