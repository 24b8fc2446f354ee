// Package config manages application configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Credential environment variables.
const (
	EnvGoogleAPIKey = "GOOGLE_API_KEY"
	EnvGeminiAPIKey = "GEMINI_API_KEY"
	EnvOpenAIAPIKey = "OPENAI_API_KEY"
	EnvMinioAccess  = "VEA_MINIO_ACCESS_KEY"
	EnvMinioSecret  = "VEA_MINIO_SECRET_KEY"
)

// Capabilities that need a credential.
const (
	CapabilityGemini       = "gemini"
	CapabilityOpenAIVision = "openai-vision"
	CapabilityOpenAIAudio  = "openai-audio"
	CapabilityUpload       = "upload"
)

// Config holds all application configuration.
type Config struct {
	// YtdlpPath is the path to the yt-dlp executable (default: "yt-dlp")
	YtdlpPath string `yaml:"ytdlp_path"`
	// YtdlpTimeout bounds one yt-dlp invocation
	YtdlpTimeout time.Duration `yaml:"ytdlp_timeout"`
	FFmpegPath   string        `yaml:"ffmpeg_path"`
	FFprobePath  string        `yaml:"ffprobe_path"`

	GeminiModel         string   `yaml:"gemini_model"`
	VisionModel         string   `yaml:"vision_model"`
	TranscriptionModels []string `yaml:"transcription_models"`
	OpenAIBaseURL       string   `yaml:"openai_base_url"`

	// Delay is the pause between batch items
	Delay time.Duration `yaml:"delay"`
	// RequestsPerMinute paces API calls per host (0 = unpaced)
	RequestsPerMinute float64 `yaml:"requests_per_minute"`

	// MaxRetries is the maximum number of retries for failed downloads
	MaxRetries int `yaml:"max_retries"`
	// InitialBackoff is the initial backoff duration for retries
	InitialBackoff time.Duration `yaml:"initial_backoff"`
	// MaxBackoff is the maximum backoff duration for retries
	MaxBackoff time.Duration `yaml:"max_backoff"`
	// BackoffMultiplier is the multiplier for exponential backoff (must be > 1)
	BackoffMultiplier float64 `yaml:"backoff_multiplier"`

	LogLevel string `yaml:"log_level"`

	Minio MinioConfig `yaml:"minio"`

	// Credentials are only read from the environment.
	GoogleAPIKey string `yaml:"-"`
	OpenAIAPIKey string `yaml:"-"`
}

// MinioConfig locates the bucket result files are published to.
type MinioConfig struct {
	Endpoint  string `yaml:"endpoint"`
	Region    string `yaml:"region"`
	Bucket    string `yaml:"bucket"`
	Prefix    string `yaml:"prefix"`
	UseSSL    bool   `yaml:"use_ssl"`
	AccessKey string `yaml:"-"`
	SecretKey string `yaml:"-"`
}

// DefaultConfig returns configuration with safe defaults.
func DefaultConfig() *Config {
	return &Config{
		YtdlpPath:         "yt-dlp",
		YtdlpTimeout:      30 * time.Minute,
		FFmpegPath:        "ffmpeg",
		FFprobePath:       "ffprobe",
		GeminiModel:       "gemini-2.0-flash-exp",
		VisionModel:       "gpt-4o-mini",
		Delay:             4 * time.Second,
		MaxRetries:        2,
		InitialBackoff:    2 * time.Second,
		MaxBackoff:        30 * time.Second,
		BackoffMultiplier: 2.0,
		LogLevel:          "info",
		Minio: MinioConfig{
			Bucket: "vea-results",
		},
	}
}

// Sources selects where Load reads from.
type Sources struct {
	// File is an explicit config file. Empty searches vea.yaml in the
	// working directory, then ~/.config/vea/vea.yaml.
	File string
	// DotEnv is a .env file whose entries fill unset environment variables.
	// Empty skips it.
	DotEnv string
}

// Load loads configuration with the default sources.
// Priority: env vars > .env > config file > defaults
func Load() (*Config, error) {
	return LoadFrom(Sources{DotEnv: ".env"})
}

// LoadFrom loads configuration from src, the environment and defaults.
func LoadFrom(src Sources) (*Config, error) {
	cfg := DefaultConfig()

	if err := cfg.loadFromFile(src.File); err != nil {
		// Config file is optional unless named explicitly.
		if src.File != "" || !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load config file: %w", err)
		}
	}

	if src.DotEnv != "" {
		// godotenv.Load never overrides variables that are already set.
		if err := godotenv.Load(src.DotEnv); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", src.DotEnv, err)
		}
	}

	if err := cfg.loadFromEnv(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFromFile(path string) error {
	paths := []string{path}
	if path == "" {
		paths = []string{"vea.yaml"}
		if home, err := os.UserHomeDir(); err == nil {
			paths = append(paths, filepath.Join(home, ".config", "vea", "vea.yaml"))
		}
	}

	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return err
		}
		if err := yaml.Unmarshal(data, c); err != nil {
			return fmt.Errorf("parse %s: %w", p, err)
		}
		return nil
	}
	return os.ErrNotExist
}

// loadFromEnv overrides config with environment variables.
func (c *Config) loadFromEnv() error {
	str := map[string]*string{
		"VEA_YTDLP_PATH":      &c.YtdlpPath,
		"VEA_FFMPEG_PATH":     &c.FFmpegPath,
		"VEA_FFPROBE_PATH":    &c.FFprobePath,
		"VEA_GEMINI_MODEL":    &c.GeminiModel,
		"VEA_VISION_MODEL":    &c.VisionModel,
		"VEA_OPENAI_BASE_URL": &c.OpenAIBaseURL,
		"VEA_LOG_LEVEL":       &c.LogLevel,
		"VEA_MINIO_ENDPOINT":  &c.Minio.Endpoint,
		"VEA_MINIO_REGION":    &c.Minio.Region,
		"VEA_MINIO_BUCKET":    &c.Minio.Bucket,
		"VEA_MINIO_PREFIX":    &c.Minio.Prefix,
	}
	for name, dst := range str {
		if v := os.Getenv(name); v != "" {
			*dst = v
		}
	}

	durations := map[string]*time.Duration{
		"VEA_YTDLP_TIMEOUT":   &c.YtdlpTimeout,
		"VEA_DELAY":           &c.Delay,
		"VEA_INITIAL_BACKOFF": &c.InitialBackoff,
		"VEA_MAX_BACKOFF":     &c.MaxBackoff,
	}
	for name, dst := range durations {
		if v := os.Getenv(name); v != "" {
			d, err := ParseSeconds(v)
			if err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
			*dst = d
		}
	}

	if v := os.Getenv("VEA_MAX_RETRIES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("VEA_MAX_RETRIES: %w", err)
		}
		c.MaxRetries = n
	}
	if v := os.Getenv("VEA_REQUESTS_PER_MINUTE"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("VEA_REQUESTS_PER_MINUTE: %w", err)
		}
		c.RequestsPerMinute = f
	}
	if v := os.Getenv("VEA_TRANSCRIPTION_MODELS"); v != "" {
		c.TranscriptionModels = splitList(v)
	}
	if v := os.Getenv("VEA_MINIO_USE_SSL"); v != "" {
		c.Minio.UseSSL = v == "true" || v == "1"
	}

	c.GoogleAPIKey = os.Getenv(EnvGoogleAPIKey)
	if c.GoogleAPIKey == "" {
		c.GoogleAPIKey = os.Getenv(EnvGeminiAPIKey)
	}
	c.OpenAIAPIKey = os.Getenv(EnvOpenAIAPIKey)
	c.Minio.AccessKey = os.Getenv(EnvMinioAccess)
	c.Minio.SecretKey = os.Getenv(EnvMinioSecret)
	return nil
}

// Validate checks that configuration values are valid and consistent.
// It returns an error if any configuration value is invalid.
func (c *Config) Validate() error {
	if c.YtdlpTimeout <= 0 {
		return fmt.Errorf("ytdlp_timeout must be positive")
	}
	if c.Delay < 0 {
		return fmt.Errorf("delay must be non-negative")
	}
	if c.RequestsPerMinute < 0 {
		return fmt.Errorf("requests_per_minute must be non-negative")
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max_retries must be non-negative")
	}
	if c.InitialBackoff <= 0 {
		return fmt.Errorf("initial_backoff must be positive")
	}
	if c.MaxBackoff <= 0 {
		return fmt.Errorf("max_backoff must be positive")
	}
	if c.MaxBackoff < c.InitialBackoff {
		return fmt.Errorf("max_backoff must be >= initial_backoff")
	}
	if c.BackoffMultiplier <= 1 {
		return fmt.Errorf("backoff_multiplier must be > 1")
	}
	return nil
}

// MissingCredentialError reports a selected capability whose credential
// is not set.
type MissingCredentialError struct {
	Capability string
	Variable   string
}

func (e *MissingCredentialError) Error() string {
	return fmt.Sprintf("%s requires %s to be set", e.Capability, e.Variable)
}

// RequireCredential returns a *MissingCredentialError when the credential
// for capability is empty.
func (c *Config) RequireCredential(capability string) error {
	switch capability {
	case CapabilityGemini:
		if c.GoogleAPIKey == "" {
			return &MissingCredentialError{Capability: capability, Variable: EnvGoogleAPIKey}
		}
	case CapabilityOpenAIVision, CapabilityOpenAIAudio:
		if c.OpenAIAPIKey == "" {
			return &MissingCredentialError{Capability: capability, Variable: EnvOpenAIAPIKey}
		}
	case CapabilityUpload:
		if c.Minio.Endpoint == "" {
			return &MissingCredentialError{Capability: capability, Variable: "VEA_MINIO_ENDPOINT"}
		}
		if c.Minio.AccessKey == "" {
			return &MissingCredentialError{Capability: capability, Variable: EnvMinioAccess}
		}
		if c.Minio.SecretKey == "" {
			return &MissingCredentialError{Capability: capability, Variable: EnvMinioSecret}
		}
	default:
		return fmt.Errorf("unknown capability %q", capability)
	}
	return nil
}

// Seconds is a duration that YAML may also spell as a plain number of
// seconds, matching VEA_DELAY and --delay.
type Seconds time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (s *Seconds) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: duration must be a scalar", node.Line)
	}
	d, err := ParseSeconds(node.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	*s = Seconds(d)
	return nil
}

// UnmarshalYAML decodes the duration keys through Seconds and everything
// else as usual.
func (c *Config) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.DocumentNode && len(node.Content) == 1 {
		node = node.Content[0]
	}
	durations := map[string]*time.Duration{
		"ytdlp_timeout":   &c.YtdlpTimeout,
		"delay":           &c.Delay,
		"initial_backoff": &c.InitialBackoff,
		"max_backoff":     &c.MaxBackoff,
	}
	if node.Kind == yaml.MappingNode {
		rest := *node
		rest.Content = nil
		for i := 0; i+1 < len(node.Content); i += 2 {
			key, val := node.Content[i], node.Content[i+1]
			dst, ok := durations[key.Value]
			if !ok {
				rest.Content = append(rest.Content, key, val)
				continue
			}
			var sec Seconds
			if err := val.Decode(&sec); err != nil {
				return fmt.Errorf("%s: %w", key.Value, err)
			}
			*dst = time.Duration(sec)
		}
		node = &rest
	}
	type plain Config
	return node.Decode((*plain)(c))
}

// ParseSeconds accepts a Go duration ("4s", "1m30s") or a plain number of
// seconds ("4", "2.5").
func ParseSeconds(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if d, err := time.ParseDuration(s); err == nil {
		return d, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q", s)
	}
	return time.Duration(f * float64(time.Second)), nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
