package analyzer

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/sashabaranov/go-openai"
)

// OpenAI defaults.
const (
	DefaultVisionModel = "gpt-4o-mini"
	DefaultNumFrames   = 8
)

// DefaultTranscriptionModels are tried in order until one succeeds.
var DefaultTranscriptionModels = []string{"gpt-4o-mini-transcribe", openai.Whisper1}

// OpenAIConfig holds the connection settings shared by the OpenAI analyzers.
type OpenAIConfig struct {
	APIKey string
	// BaseURL overrides the API endpoint, e.g. for a proxy.
	BaseURL string
	// HTTPClient is handed to the SDK when set.
	HTTPClient *http.Client
}

// NewOpenAIClient creates a go-openai client from cfg.
func NewOpenAIClient(cfg OpenAIConfig) *openai.Client {
	c := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		c.BaseURL = cfg.BaseURL
	}
	if cfg.HTTPClient != nil {
		c.HTTPClient = cfg.HTTPClient
	}
	return openai.NewClientWithConfig(c)
}

type chatCompleter interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

type transcriber interface {
	CreateTranscription(ctx context.Context, req openai.AudioRequest) (openai.AudioResponse, error)
}

// OpenAIVision samples frames from a video and sends them to a chat model
// as inline JPEG images.
type OpenAIVision struct {
	client    chatCompleter
	sampler   FrameSampler
	model     string
	prompt    string
	numFrames int
	logger    zerolog.Logger
}

// VisionOptions configures OpenAIVision.
type VisionOptions struct {
	// Model defaults to DefaultVisionModel.
	Model string
	// Prompt defaults to DefaultVisionPrompt.
	Prompt string
	// NumFrames defaults to DefaultNumFrames.
	NumFrames int
}

// NewOpenAIVision creates a frame-based vision analyzer.
func NewOpenAIVision(client *openai.Client, sampler FrameSampler, opts VisionOptions, logger zerolog.Logger) *OpenAIVision {
	return newOpenAIVision(client, sampler, opts, logger)
}

func newOpenAIVision(client chatCompleter, sampler FrameSampler, opts VisionOptions, logger zerolog.Logger) *OpenAIVision {
	if opts.Model == "" {
		opts.Model = DefaultVisionModel
	}
	if opts.Prompt == "" {
		opts.Prompt = DefaultVisionPrompt
	}
	if opts.NumFrames <= 0 {
		opts.NumFrames = DefaultNumFrames
	}
	return &OpenAIVision{
		client:    client,
		sampler:   sampler,
		model:     opts.Model,
		prompt:    opts.Prompt,
		numFrames: opts.NumFrames,
		logger:    logger.With().Str("component", "analyzer").Str("analyzer", "openai-vision").Logger(),
	}
}

// Name returns "openai-vision".
func (v *OpenAIVision) Name() string { return "openai-vision" }

// Analyze describes the video at path from its sampled frames.
func (v *OpenAIVision) Analyze(ctx context.Context, path string) (string, error) {
	frames, err := v.sampler.SampleFrames(ctx, path, v.numFrames)
	if err != nil {
		return "", v.fail(path, fmt.Errorf("sample frames: %w", err))
	}

	parts := make([]openai.ChatMessagePart, 0, len(frames)+1)
	parts = append(parts, openai.ChatMessagePart{Type: openai.ChatMessagePartTypeText, Text: v.prompt})
	for _, f := range frames {
		parts = append(parts, openai.ChatMessagePart{
			Type:     openai.ChatMessagePartTypeImageURL,
			ImageURL: &openai.ChatMessageImageURL{URL: JPEGDataURL(f)},
		})
	}

	v.logger.Debug().Str("path", path).Int("frames", len(frames)).Str("model", v.model).Msg("requesting vision analysis")

	resp, err := v.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       v.model,
		Temperature: 0.2,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, MultiContent: parts},
		},
	})
	if err != nil {
		return "", v.fail(path, fmt.Errorf("chat completion: %w", err))
	}
	if len(resp.Choices) == 0 {
		return "", v.fail(path, ErrEmptyResponse)
	}
	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", v.fail(path, ErrEmptyResponse)
	}
	return text, nil
}

func (v *OpenAIVision) fail(path string, err error) error {
	return &AnalyzeError{Analyzer: v.Name(), Path: path, Err: err}
}

// JPEGDataURL encodes JPEG bytes as a data: URL.
func JPEGDataURL(jpeg []byte) string {
	return "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(jpeg)
}

// OpenAIAudio transcribes the audio track of a file, trying each model in
// order until one succeeds.
type OpenAIAudio struct {
	client    transcriber
	extractor AudioExtractor
	models    []string
	logger    zerolog.Logger
}

// NewOpenAIAudio creates a transcription analyzer. extractor may be nil when
// only audio files will be analyzed. Empty models uses
// DefaultTranscriptionModels.
func NewOpenAIAudio(client *openai.Client, extractor AudioExtractor, models []string, logger zerolog.Logger) *OpenAIAudio {
	return newOpenAIAudio(client, extractor, models, logger)
}

func newOpenAIAudio(client transcriber, extractor AudioExtractor, models []string, logger zerolog.Logger) *OpenAIAudio {
	if len(models) == 0 {
		models = DefaultTranscriptionModels
	}
	return &OpenAIAudio{
		client:    client,
		extractor: extractor,
		models:    models,
		logger:    logger.With().Str("component", "analyzer").Str("analyzer", "openai-audio").Logger(),
	}
}

// Name returns "openai-audio".
func (a *OpenAIAudio) Name() string { return "openai-audio" }

var audioExts = map[string]bool{
	".mp3": true, ".wav": true, ".m4a": true, ".ogg": true,
	".flac": true, ".webm": true, ".mpga": true, ".mpeg": true,
}

// Analyze returns a transcript of path. Video files are converted to mp3
// first and the temporary audio is removed afterwards.
func (a *OpenAIAudio) Analyze(ctx context.Context, path string) (string, error) {
	audioPath := path
	if !audioExts[strings.ToLower(filepath.Ext(path))] {
		if a.extractor == nil {
			return "", a.fail(path, fmt.Errorf("no audio extractor for %s", filepath.Ext(path)))
		}
		tmp, err := os.CreateTemp("", "vea-audio-*.mp3")
		if err != nil {
			return "", a.fail(path, fmt.Errorf("create temp audio: %w", err))
		}
		tmp.Close()
		defer os.Remove(tmp.Name())

		if err := a.extractor.ExtractAudio(ctx, path, tmp.Name()); err != nil {
			return "", a.fail(path, err)
		}
		audioPath = tmp.Name()
	}

	var errs []error
	for _, model := range a.models {
		resp, err := a.client.CreateTranscription(ctx, openai.AudioRequest{
			Model:    model,
			FilePath: audioPath,
		})
		if err == nil && strings.TrimSpace(resp.Text) != "" {
			return strings.TrimSpace(resp.Text), nil
		}
		if err == nil {
			err = ErrEmptyResponse
		}
		if ctx.Err() != nil {
			return "", a.fail(path, ctx.Err())
		}
		a.logger.Warn().Err(err).Str("model", model).Msg("transcription failed")
		errs = append(errs, fmt.Errorf("%s: %w", model, err))
	}
	return "", a.fail(path, errors.Join(errs...))
}

func (a *OpenAIAudio) fail(path string, err error) error {
	return &AnalyzeError{Analyzer: a.Name(), Path: path, Err: err}
}
