package links

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var acceptAll = Options{Allowlist: []string{}}

func TestExtract_Shapes(t *testing.T) {
	tests := []struct {
		name  string
		input string
		opts  Options
		want  []WorkItem
	}{
		{
			name:  "flat string list",
			input: `["https://youtu.be/a", "https://www.youtube.com/watch?v=b"]`,
			want: []WorkItem{
				{URL: "https://youtu.be/a"},
				{URL: "https://www.youtube.com/watch?v=b"},
			},
		},
		{
			name:  "object list with metadata",
			input: `[{"url": "https://youtu.be/a", "tag": "cat", "remarks": "first"}, {"url": "https://youtu.be/b", "remarks": 3}]`,
			want: []WorkItem{
				{URL: "https://youtu.be/a", Tag: "cat", Remarks: "first"},
				{URL: "https://youtu.be/b", Remarks: "3"},
			},
		},
		{
			name:  "object root with default key",
			input: `{"videos": ["https://youtu.be/a"], "other": ["https://youtu.be/z"]}`,
			want:  []WorkItem{{URL: "https://youtu.be/a"}},
		},
		{
			name:  "object root with custom key",
			input: `{"shorts": [{"url": "https://youtube.com/shorts/x"}]}`,
			opts:  Options{Key: "shorts"},
			want:  []WorkItem{{URL: "https://youtube.com/shorts/x"}},
		},
		{
			name:  "scan values fallback",
			input: `{"b": ["https://youtu.be/2", 7], "a": "https://youtu.be/1", "c": {"nested": "https://youtu.be/3"}}`,
			opts:  Options{ScanValues: true},
			want:  []WorkItem{{URL: "https://youtu.be/1"}, {URL: "https://youtu.be/2"}},
		},
		{
			name:  "allowlist filters and whitespace trimmed",
			input: `["  https://youtu.be/a  ", "https://vimeo.com/1", ""]`,
			want:  []WorkItem{{URL: "https://youtu.be/a"}},
		},
		{
			name:  "empty allowlist accepts all",
			input: `["https://vimeo.com/1"]`,
			opts:  acceptAll,
			want:  []WorkItem{{URL: "https://vimeo.com/1"}},
		},
		{
			name:  "empty list",
			input: `[]`,
			want:  []WorkItem{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Extract([]byte(tt.input), tt.opts)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExtract_Dedup(t *testing.T) {
	got, err := Extract([]byte(`["a", "a", "b", "a"]`), acceptAll)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, URLs(got))
}

func TestExtract_DedupFirstOccurrenceKeepsMetadata(t *testing.T) {
	input := `[{"url": "https://youtu.be/a", "remarks": "keep"}, {"url": " https://youtu.be/a", "remarks": "drop"}]`
	got, err := Extract([]byte(input), Options{})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "keep", got[0].Remarks)
}

func TestExtract_Idempotent(t *testing.T) {
	input := `[" https://youtu.be/a", {"url": "https://youtu.be/b", "tag": "t"}, "https://youtu.be/a", "https://example.com/x"]`
	first, err := Extract([]byte(input), Options{})
	require.NoError(t, err)

	reinjected, err := json.Marshal(first)
	require.NoError(t, err)

	second, err := Extract(reinjected, Options{})
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestExtract_Malformed(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		opts      Options
		wantIndex int
	}{
		{"invalid json", `[`, Options{}, -1},
		{"scalar root", `"https://youtu.be/a"`, Options{}, -1},
		{"object without key", `{"items": []}`, Options{}, -1},
		{"key not a list", `{"videos": "https://youtu.be/a"}`, Options{}, -1},
		{"missing url", `[{"url": "https://youtu.be/a"}, {"tag": "x"}]`, Options{}, 1},
		{"non-string url", `[{"url": 5}]`, Options{}, 0},
		{"number element", `["https://youtu.be/a", "https://youtu.be/b", 42]`, Options{}, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Extract([]byte(tt.input), tt.opts)
			var merr *MalformedInputError
			require.ErrorAs(t, err, &merr)
			assert.Equal(t, tt.wantIndex, merr.Index)
		})
	}
}

func TestExtractFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "input.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"url": "https://youtu.be/a"}]`), 0644))

	got, err := ExtractFile(path, Options{})
	require.NoError(t, err)
	assert.Equal(t, []WorkItem{{URL: "https://youtu.be/a"}}, got)

	_, err = ExtractFile(filepath.Join(t.TempDir(), "missing.json"), Options{})
	assert.ErrorIs(t, err, os.ErrNotExist)
}
