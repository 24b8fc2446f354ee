package main

import (
	"context"
	"fmt"
	"net/http"
	"slices"

	"github.com/baba2413/VEA/analyzer"
	"github.com/baba2413/VEA/config"
	"github.com/baba2413/VEA/ffmpeg"
	"github.com/baba2413/VEA/internal/logging"
	"github.com/baba2413/VEA/internal/retry"
	"github.com/baba2413/VEA/internal/transport"
	"github.com/baba2413/VEA/youtube"
	"github.com/rs/zerolog"
)

var analyzerNames = []string{config.CapabilityGemini, config.CapabilityOpenAIVision, config.CapabilityOpenAIAudio}

// logConfig records the effective configuration at debug level with
// credentials masked.
func logConfig(logger zerolog.Logger, cfg *config.Config) {
	secret := func(v string) string {
		if v == "" {
			return ""
		}
		return logging.MaskSecret(v)
	}
	logger.Debug().
		Str("ytdlp", cfg.YtdlpPath).
		Str("ffmpeg", cfg.FFmpegPath).
		Str("gemini_model", cfg.GeminiModel).
		Str("vision_model", cfg.VisionModel).
		Dur("delay", cfg.Delay).
		Float64("requests_per_minute", cfg.RequestsPerMinute).
		Int("max_retries", cfg.MaxRetries).
		Str("google_api_key", secret(cfg.GoogleAPIKey)).
		Str("openai_api_key", secret(cfg.OpenAIAPIKey)).
		Str("minio_endpoint", cfg.Minio.Endpoint).
		Str("minio_access_key", secret(cfg.Minio.AccessKey)).
		Msg("configuration loaded")
}

// requireAnalyzers validates names and their credentials before any work
// starts.
func requireAnalyzers(cfg *config.Config, names []string) error {
	if len(names) == 0 {
		return fmt.Errorf("no analyzer selected (choose from %v)", analyzerNames)
	}
	for _, n := range names {
		if !slices.Contains(analyzerNames, n) {
			return fmt.Errorf("unknown analyzer %q (choose from %v)", n, analyzerNames)
		}
		if err := cfg.RequireCredential(n); err != nil {
			return err
		}
	}
	return nil
}

func apiHTTPClient(cfg *config.Config) *http.Client {
	tc := transport.DefaultConfig()
	tc.RequestsPerMinute = cfg.RequestsPerMinute
	return transport.NewHTTPClient(tc)
}

func newFFmpeg(cfg *config.Config, logger zerolog.Logger) (*ffmpeg.Executor, error) {
	return ffmpeg.New(logger, ffmpeg.Options{FFmpegPath: cfg.FFmpegPath, FFprobePath: cfg.FFprobePath})
}

// analyzerSettings carries per-command overrides of the configured models.
type analyzerSettings struct {
	geminiModel string
	visionModel string
	asrModels   []string
	numFrames   int
	prompt      string
}

// buildAnalyzers constructs the named analyzers in order. ffmpeg is only
// required by the OpenAI analyzers.
func buildAnalyzers(ctx context.Context, cfg *config.Config, names []string, s analyzerSettings, logger zerolog.Logger) ([]analyzer.Analyzer, error) {
	httpClient := apiHTTPClient(cfg)

	var (
		ff  *ffmpeg.Executor
		out []analyzer.Analyzer
	)
	needFFmpeg := func() (*ffmpeg.Executor, error) {
		if ff != nil {
			return ff, nil
		}
		var err error
		ff, err = newFFmpeg(cfg, logger)
		return ff, err
	}

	geminiModel := s.geminiModel
	if geminiModel == "" {
		geminiModel = cfg.GeminiModel
	}
	visionModel := s.visionModel
	if visionModel == "" {
		visionModel = cfg.VisionModel
	}
	asrModels := s.asrModels
	if len(asrModels) == 0 {
		asrModels = cfg.TranscriptionModels
	}

	for _, name := range names {
		switch name {
		case config.CapabilityGemini:
			g, err := analyzer.NewGemini(ctx, analyzer.GeminiConfig{
				APIKey:     cfg.GoogleAPIKey,
				Model:      geminiModel,
				Prompt:     s.prompt,
				HTTPClient: httpClient,
			}, logger)
			if err != nil {
				return nil, err
			}
			out = append(out, g)
		case config.CapabilityOpenAIVision:
			e, err := needFFmpeg()
			if err != nil {
				return nil, err
			}
			client := analyzer.NewOpenAIClient(analyzer.OpenAIConfig{APIKey: cfg.OpenAIAPIKey, BaseURL: cfg.OpenAIBaseURL, HTTPClient: httpClient})
			out = append(out, analyzer.NewOpenAIVision(client, e, analyzer.VisionOptions{
				Model:     visionModel,
				NumFrames: s.numFrames,
			}, logger))
		case config.CapabilityOpenAIAudio:
			e, err := needFFmpeg()
			if err != nil {
				return nil, err
			}
			client := analyzer.NewOpenAIClient(analyzer.OpenAIConfig{APIKey: cfg.OpenAIAPIKey, BaseURL: cfg.OpenAIBaseURL, HTTPClient: httpClient})
			out = append(out, analyzer.NewOpenAIAudio(client, e, asrModels, logger))
		}
	}
	return out, nil
}

func newDownloader(cfg *config.Config, opts youtube.DownloadOptions, logger zerolog.Logger) *youtube.Downloader {
	d := youtube.NewDownloader(logger)
	d.YtdlpPath = cfg.YtdlpPath
	d.Timeout = cfg.YtdlpTimeout
	d.Options = opts
	rc := retry.DefaultConfig()
	rc.MaxRetries = cfg.MaxRetries
	rc.InitialBackoff = cfg.InitialBackoff
	rc.MaxBackoff = cfg.MaxBackoff
	rc.Multiplier = cfg.BackoffMultiplier
	d.RetryConfig = &rc
	return d
}
