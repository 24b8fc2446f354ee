package analyzer

import (
	"context"
	"fmt"
	"mime"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/baba2413/VEA/internal/retry"
	"github.com/rs/zerolog"
	"google.golang.org/genai"
)

// Gemini defaults.
const (
	DefaultGeminiModel  = "gemini-2.0-flash-exp"
	DefaultPollInterval = time.Second
	DefaultPollTimeout  = 5 * time.Minute
)

// GeminiConfig configures the Gemini video analyzer.
type GeminiConfig struct {
	APIKey string
	// Model defaults to DefaultGeminiModel.
	Model string
	// Prompt defaults to DefaultGeminiPrompt.
	Prompt string
	// PollInterval is the wait between file state checks. Default: 1s
	PollInterval time.Duration
	// PollTimeout caps the wait for the upload to become ACTIVE. Default: 5m
	PollTimeout time.Duration
	// HTTPClient is handed to the SDK when set.
	HTTPClient *http.Client
}

// fileService is the part of *genai.Files the analyzer uses.
type fileService interface {
	UploadFromPath(ctx context.Context, path string, config *genai.UploadFileConfig) (*genai.File, error)
	Get(ctx context.Context, name string, config *genai.GetFileConfig) (*genai.File, error)
	Delete(ctx context.Context, name string, config *genai.DeleteFileConfig) (*genai.DeleteFileResponse, error)
}

// contentGenerator is the part of *genai.Models the analyzer uses.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Gemini uploads a video to the Gemini Files API, waits for it to finish
// processing and asks the model to rate it.
type Gemini struct {
	files  fileService
	models contentGenerator
	cfg    GeminiConfig
	logger zerolog.Logger
}

// NewGemini creates a Gemini analyzer backed by the Gemini API.
func NewGemini(ctx context.Context, cfg GeminiConfig, logger zerolog.Logger) (*Gemini, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: cfg.HTTPClient,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return newGemini(client.Files, client.Models, cfg, logger), nil
}

func newGemini(files fileService, models contentGenerator, cfg GeminiConfig, logger zerolog.Logger) *Gemini {
	if cfg.Model == "" {
		cfg.Model = DefaultGeminiModel
	}
	if cfg.Prompt == "" {
		cfg.Prompt = DefaultGeminiPrompt
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = DefaultPollTimeout
	}
	return &Gemini{
		files:  files,
		models: models,
		cfg:    cfg,
		logger: logger.With().Str("component", "analyzer").Str("analyzer", "gemini").Logger(),
	}
}

// Name returns "gemini".
func (g *Gemini) Name() string { return "gemini" }

// Analyze uploads path, waits until the file is ACTIVE and returns the
// model's answer. The uploaded file is deleted afterwards.
func (g *Gemini) Analyze(ctx context.Context, path string) (string, error) {
	file, err := g.files.UploadFromPath(ctx, path, &genai.UploadFileConfig{
		MIMEType:    mimeType(path),
		DisplayName: filepath.Base(path),
	})
	if err != nil {
		return "", g.fail(path, fmt.Errorf("upload: %w", err))
	}
	defer g.deleteFile(ctx, file.Name)

	g.logger.Debug().Str("file", file.Name).Str("state", string(file.State)).Msg("uploaded")

	current := file
	first := true
	err = retry.Poll(ctx, retry.PollConfig{
		Interval: g.cfg.PollInterval,
		Timeout:  g.cfg.PollTimeout,
	}, func(ctx context.Context) (bool, error) {
		if !first {
			f, err := g.files.Get(ctx, file.Name, nil)
			if err != nil {
				return false, fmt.Errorf("get file state: %w", err)
			}
			current = f
		}
		first = false

		switch current.State {
		case genai.FileStateActive:
			return true, nil
		case genai.FileStateProcessing, genai.FileStateUnspecified, "":
			return false, nil
		case genai.FileStateFailed:
			return false, fmt.Errorf("%w: state=%s", ErrProcessingFailed, current.State)
		default:
			return false, fmt.Errorf("%w: unexpected state=%s", ErrProcessingFailed, current.State)
		}
	})
	if err != nil {
		return "", g.fail(path, err)
	}

	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromURI(current.URI, current.MIMEType),
			genai.NewPartFromText(g.cfg.Prompt),
		}, genai.RoleUser),
	}

	resp, err := g.models.GenerateContent(ctx, g.cfg.Model, contents, nil)
	if err != nil {
		return "", g.fail(path, fmt.Errorf("generate content: %w", err))
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", g.fail(path, ErrEmptyResponse)
	}
	return text, nil
}

func (g *Gemini) deleteFile(ctx context.Context, name string) {
	if name == "" {
		return
	}
	// The run may already be canceled; cleanup still deserves a short window.
	delCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer cancel()
	if _, err := g.files.Delete(delCtx, name, nil); err != nil {
		g.logger.Warn().Err(err).Str("file", name).Msg("failed to delete uploaded file")
	}
}

func (g *Gemini) fail(path string, err error) error {
	return &AnalyzeError{Analyzer: g.Name(), Path: path, Err: err}
}

var mediaTypes = map[string]string{
	".mp4":  "video/mp4",
	".webm": "video/webm",
	".mkv":  "video/x-matroska",
	".mov":  "video/quicktime",
	".mp3":  "audio/mpeg",
	".wav":  "audio/wav",
	".m4a":  "audio/mp4",
}

func mimeType(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	if t, ok := mediaTypes[ext]; ok {
		return t
	}
	if t := mime.TypeByExtension(ext); t != "" {
		return t
	}
	return "video/mp4"
}
