package analyzer

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSampler struct {
	frames [][]byte
	err    error
	n      int
}

func (s *stubSampler) SampleFrames(ctx context.Context, path string, n int) ([][]byte, error) {
	s.n = n
	return s.frames, s.err
}

type stubExtractor struct {
	calls  int
	output string
	err    error
}

func (s *stubExtractor) ExtractAudio(ctx context.Context, input, output string) error {
	s.calls++
	s.output = output
	if s.err != nil {
		return s.err
	}
	return os.WriteFile(output, []byte("ID3"), 0644)
}

func TestOpenAIVision_Analyze(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		data, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(data, &body))

		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"id":"c1","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":" 강의 영상입니다. "},"finish_reason":"stop"}]}`)
	}))
	defer srv.Close()

	client := NewOpenAIClient(OpenAIConfig{APIKey: "sk-test", BaseURL: srv.URL + "/v1"})
	sampler := &stubSampler{frames: [][]byte{[]byte("f1"), []byte("f2")}}
	v := NewOpenAIVision(client, sampler, VisionOptions{NumFrames: 2}, zerolog.Nop())

	text, err := v.Analyze(context.Background(), "clip.mp4")
	require.NoError(t, err)
	assert.Equal(t, "강의 영상입니다.", text)
	assert.Equal(t, 2, sampler.n)

	assert.Equal(t, DefaultVisionModel, body["model"])
	messages := body["messages"].([]any)
	require.Len(t, messages, 1)
	content := messages[0].(map[string]any)["content"].([]any)
	require.Len(t, content, 3)
	assert.Equal(t, DefaultVisionPrompt, content[0].(map[string]any)["text"])
	img := content[1].(map[string]any)["image_url"].(map[string]any)
	assert.Equal(t, JPEGDataURL([]byte("f1")), img["url"])
}

func TestOpenAIVision_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		io.WriteString(w, `{"error":{"message":"Rate limit reached","type":"requests"}}`)
	}))
	defer srv.Close()

	client := NewOpenAIClient(OpenAIConfig{APIKey: "sk-test", BaseURL: srv.URL + "/v1"})
	v := NewOpenAIVision(client, &stubSampler{frames: [][]byte{[]byte("f")}}, VisionOptions{}, zerolog.Nop())

	_, err := v.Analyze(context.Background(), "clip.mp4")
	var ae *AnalyzeError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, "openai-vision", ae.Analyzer)
	assert.Contains(t, err.Error(), "Rate limit reached")
}

func TestOpenAIVision_SampleError(t *testing.T) {
	boom := errors.New("no frames")
	v := newOpenAIVision(nil, &stubSampler{err: boom}, VisionOptions{}, zerolog.Nop())
	_, err := v.Analyze(context.Background(), "clip.mp4")
	assert.ErrorIs(t, err, boom)
}

// transcriptionServer rejects every model in reject and answers the rest.
func transcriptionServer(t *testing.T, reject map[string]bool) (*httptest.Server, *[]string) {
	t.Helper()
	var mu sync.Mutex
	var models []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/audio/transcriptions", r.URL.Path)
		assert.NoError(t, r.ParseMultipartForm(1<<20))
		model := r.FormValue("model")

		mu.Lock()
		models = append(models, model)
		mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		if reject[model] {
			w.WriteHeader(http.StatusBadRequest)
			io.WriteString(w, `{"error":{"message":"model not available","type":"invalid_request_error"}}`)
			return
		}
		io.WriteString(w, `{"text":"안녕하세요 여러분"}`)
	}))
	t.Cleanup(srv.Close)
	return srv, &models
}

func TestOpenAIAudio_FallsBackToNextModel(t *testing.T) {
	srv, models := transcriptionServer(t, map[string]bool{"gpt-4o-mini-transcribe": true})
	audio := filepath.Join(t.TempDir(), "talk.mp3")
	require.NoError(t, os.WriteFile(audio, []byte("ID3"), 0644))

	client := NewOpenAIClient(OpenAIConfig{APIKey: "sk-test", BaseURL: srv.URL + "/v1"})
	a := NewOpenAIAudio(client, nil, nil, zerolog.Nop())

	text, err := a.Analyze(context.Background(), audio)
	require.NoError(t, err)
	assert.Equal(t, "안녕하세요 여러분", text)
	assert.Equal(t, []string{"gpt-4o-mini-transcribe", "whisper-1"}, *models)
}

func TestOpenAIAudio_AllModelsFail(t *testing.T) {
	srv, _ := transcriptionServer(t, map[string]bool{"a": true, "b": true})
	audio := filepath.Join(t.TempDir(), "talk.wav")
	require.NoError(t, os.WriteFile(audio, []byte("RIFF"), 0644))

	client := NewOpenAIClient(OpenAIConfig{APIKey: "sk-test", BaseURL: srv.URL + "/v1"})
	_, err := NewOpenAIAudio(client, nil, []string{"a", "b"}, zerolog.Nop()).Analyze(context.Background(), audio)

	require.Error(t, err)
	msg := err.Error()
	assert.True(t, strings.Contains(msg, "a: ") && strings.Contains(msg, "b: "), msg)
}

func TestOpenAIAudio_ExtractsFromVideo(t *testing.T) {
	srv, _ := transcriptionServer(t, nil)
	client := NewOpenAIClient(OpenAIConfig{APIKey: "sk-test", BaseURL: srv.URL + "/v1"})
	ex := &stubExtractor{}

	text, err := NewOpenAIAudio(client, ex, nil, zerolog.Nop()).Analyze(context.Background(), "lecture.mp4")
	require.NoError(t, err)
	assert.Equal(t, "안녕하세요 여러분", text)
	assert.Equal(t, 1, ex.calls)
	assert.NoFileExists(t, ex.output, "temporary audio must be removed")
}

func TestOpenAIAudio_NoExtractorForVideo(t *testing.T) {
	a := newOpenAIAudio(nil, nil, nil, zerolog.Nop())
	_, err := a.Analyze(context.Background(), "lecture.mkv")
	var ae *AnalyzeError
	assert.ErrorAs(t, err, &ae)
}

func TestJPEGDataURL(t *testing.T) {
	assert.Equal(t, "data:image/jpeg;base64,AQI=", JPEGDataURL([]byte{1, 2}))
}
