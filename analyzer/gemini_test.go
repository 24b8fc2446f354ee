package analyzer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

// fakeFiles replays a fixed sequence of file states.
type fakeFiles struct {
	uploadErr error
	states    []genai.FileState
	gets      int
	deleted   []string
}

func (f *fakeFiles) UploadFromPath(ctx context.Context, path string, cfg *genai.UploadFileConfig) (*genai.File, error) {
	if f.uploadErr != nil {
		return nil, f.uploadErr
	}
	return f.file(f.states[0]), nil
}

func (f *fakeFiles) Get(ctx context.Context, name string, cfg *genai.GetFileConfig) (*genai.File, error) {
	f.gets++
	i := f.gets
	if i >= len(f.states) {
		i = len(f.states) - 1
	}
	return f.file(f.states[i]), nil
}

func (f *fakeFiles) Delete(ctx context.Context, name string, cfg *genai.DeleteFileConfig) (*genai.DeleteFileResponse, error) {
	f.deleted = append(f.deleted, name)
	return &genai.DeleteFileResponse{}, nil
}

func (f *fakeFiles) file(state genai.FileState) *genai.File {
	return &genai.File{
		Name:     "files/abc",
		URI:      "https://generativelanguage.googleapis.com/v1beta/files/abc",
		MIMEType: "video/mp4",
		State:    state,
	}
}

type fakeModels struct {
	text     string
	err      error
	model    string
	contents []*genai.Content
}

func (m *fakeModels) GenerateContent(ctx context.Context, model string, contents []*genai.Content, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	m.model = model
	m.contents = contents
	if m.err != nil {
		return nil, m.err
	}
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []*genai.Part{{Text: m.text}}},
		}},
	}, nil
}

func testGemini(files *fakeFiles, models *fakeModels) *Gemini {
	return newGemini(files, models, GeminiConfig{
		PollInterval: time.Millisecond,
		PollTimeout:  time.Second,
	}, zerolog.Nop())
}

func TestGemini_WaitsForActive(t *testing.T) {
	files := &fakeFiles{states: []genai.FileState{
		genai.FileStateProcessing,
		genai.FileStateProcessing,
		genai.FileStateActive,
	}}
	models := &fakeModels{text: "  내용 요약: 요리 영상  "}

	text, err := testGemini(files, models).Analyze(context.Background(), "clip.mp4")
	require.NoError(t, err)
	assert.Equal(t, "내용 요약: 요리 영상", text)
	assert.Equal(t, 2, files.gets)
	assert.Equal(t, DefaultGeminiModel, models.model)
	assert.Equal(t, []string{"files/abc"}, files.deleted)

	require.Len(t, models.contents, 1)
	parts := models.contents[0].Parts
	require.Len(t, parts, 2)
	require.NotNil(t, parts[0].FileData)
	assert.Equal(t, "video/mp4", parts[0].FileData.MIMEType)
	assert.Equal(t, DefaultGeminiPrompt, parts[1].Text)
}

func TestGemini_ActiveImmediatelySkipsPolling(t *testing.T) {
	files := &fakeFiles{states: []genai.FileState{genai.FileStateActive}}
	_, err := testGemini(files, &fakeModels{text: "ok"}).Analyze(context.Background(), "clip.mp4")
	require.NoError(t, err)
	assert.Zero(t, files.gets)
}

func TestGemini_FailedStateIsTerminal(t *testing.T) {
	files := &fakeFiles{states: []genai.FileState{genai.FileStateProcessing, genai.FileStateFailed, genai.FileStateActive}}
	models := &fakeModels{text: "never"}

	_, err := testGemini(files, models).Analyze(context.Background(), "clip.mp4")

	var ae *AnalyzeError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, "gemini", ae.Analyzer)
	assert.ErrorIs(t, err, ErrProcessingFailed)
	assert.Equal(t, 1, files.gets)
	assert.Empty(t, models.model, "generate must not be called")
	assert.Equal(t, []string{"files/abc"}, files.deleted)
}

func TestGemini_PollTimeout(t *testing.T) {
	files := &fakeFiles{states: []genai.FileState{genai.FileStateProcessing}}
	g := newGemini(files, &fakeModels{}, GeminiConfig{
		PollInterval: 5 * time.Millisecond,
		PollTimeout:  30 * time.Millisecond,
	}, zerolog.Nop())

	_, err := g.Analyze(context.Background(), "clip.mp4")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrProcessingFailed)
}

func TestGemini_UploadError(t *testing.T) {
	files := &fakeFiles{uploadErr: errors.New("403 forbidden")}
	_, err := testGemini(files, &fakeModels{}).Analyze(context.Background(), "clip.mp4")

	var ae *AnalyzeError
	require.ErrorAs(t, err, &ae)
	assert.Contains(t, err.Error(), "upload")
	assert.Empty(t, files.deleted)
}

func TestGemini_EmptyResponse(t *testing.T) {
	files := &fakeFiles{states: []genai.FileState{genai.FileStateActive}}
	_, err := testGemini(files, &fakeModels{text: "   "}).Analyze(context.Background(), "clip.mp4")
	assert.ErrorIs(t, err, ErrEmptyResponse)
}

func TestGemini_GenerateError(t *testing.T) {
	files := &fakeFiles{states: []genai.FileState{genai.FileStateActive}}
	_, err := testGemini(files, &fakeModels{err: errors.New("429 quota")}).Analyze(context.Background(), "clip.mp4")
	assert.ErrorContains(t, err, "429 quota")
	assert.Equal(t, []string{"files/abc"}, files.deleted)
}

func TestMimeType(t *testing.T) {
	assert.Equal(t, "video/mp4", mimeType("a.MP4"))
	assert.Equal(t, "video/webm", mimeType("a.webm"))
	assert.Equal(t, "audio/mpeg", mimeType("a.mp3"))
	assert.Equal(t, "video/mp4", mimeType("a"))
}
