package storage

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openStore(t *testing.T, path string, opts Options) *ResultStore {
	t.Helper()
	opts.Logger = zerolog.Nop()
	s, err := Open(path, opts)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestLoad_MissingFile(t *testing.T) {
	results, err := Load(filepath.Join(t.TempDir(), "absent.json"), zerolog.Nop())
	require.NoError(t, err)
	assert.NotNil(t, results)
	assert.Empty(t, results)
}

func TestLoad_CorruptFileMovedAside(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "results.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"url": "x", `), 0644))

	results, err := Load(path, zerolog.Nop())
	require.NoError(t, err)
	assert.Empty(t, results)

	_, statErr := os.Stat(path)
	assert.True(t, errors.Is(statErr, os.ErrNotExist), "corrupt file should be moved away")

	matches, err := filepath.Glob(path + ".corrupt-*")
	require.NoError(t, err)
	assert.Len(t, matches, 1)
}

func TestLoad_ObjectRootIsCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"url": "x"}`), 0644))

	results, err := Load(path, zerolog.Nop())
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSave_Format(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "results.json")
	err := Save(path, []Result{{URL: "https://youtu.be/a", Response: "총점 <4> & 좋음", Remarks: ""}})
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	want := "[\n" +
		"  {\n" +
		"    \"url\": \"https://youtu.be/a\",\n" +
		"    \"response\": \"총점 <4> & 좋음\",\n" +
		"    \"remarks\": \"\"\n" +
		"  }\n" +
		"]\n"
	assert.Equal(t, want, string(data))
}

func TestSave_EmptyIsArray(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.json")
	require.NoError(t, Save(path, nil))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "[]\n", string(data))
}

func TestSave_LeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "results.json")
	for i := 0; i < 3; i++ {
		require.NoError(t, Save(path, []Result{{URL: "u", Response: "r"}}))
	}

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "results.json", entries[0].Name())
}

func TestResultStore_AppendPersistsEveryPut(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.json")
	s := openStore(t, path, Options{})

	for i, u := range []string{"a", "b", "c"} {
		outcome, err := s.Put(Result{URL: u, Response: "ok " + u})
		require.NoError(t, err)
		assert.Equal(t, Appended, outcome)

		onDisk, err := Load(path, zerolog.Nop())
		require.NoError(t, err)
		assert.Len(t, onDisk, i+1)
	}
}

func TestResultStore_ResumeKeepsPrefixByteIdentical(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.json")

	first := openStore(t, path, Options{})
	_, err := first.Put(Result{URL: "a", Response: "분석 a", Remarks: "r1"})
	require.NoError(t, err)
	_, err = first.Put(NewErrorResult("b", errors.New("fetch failed"), ""))
	require.NoError(t, err)
	require.NoError(t, first.Close())

	before, err := os.ReadFile(path)
	require.NoError(t, err)

	second := openStore(t, path, Options{})
	assert.Equal(t, 2, second.Len())
	_, err = second.Put(Result{URL: "c", Response: "분석 c"})
	require.NoError(t, err)

	after, err := os.ReadFile(path)
	require.NoError(t, err)

	var oldRecs, newRecs []json.RawMessage
	require.NoError(t, json.Unmarshal(before, &oldRecs))
	require.NoError(t, json.Unmarshal(after, &newRecs))
	require.Len(t, newRecs, 3)
	for i := range oldRecs {
		assert.Equal(t, string(oldRecs[i]), string(newRecs[i]), "record %d changed", i)
	}
}

func TestResultStore_LegacyKeyPreserved(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.json")
	legacy := `[
  {
    "url": "a",
    "gemini_response": "old",
    "remarks": ""
  }
]`
	require.NoError(t, os.WriteFile(path, []byte(legacy), 0644))

	s := openStore(t, path, Options{})
	assert.Equal(t, LegacyResponseKey, s.ResponseKey())
	assert.Equal(t, "old", s.Results()[0].Response)

	_, err := s.Put(Result{URL: "b", Response: "new"})
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(string(data), `"gemini_response"`))
	assert.NotContains(t, string(data), `"response"`)
}

func TestResultStore_NonStringRemarksKeepHistory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.json")
	legacy := `[
  {"url": "a", "gemini_response": "first", "remarks": 3},
  {"url": "b", "gemini_response": "second", "remarks": null},
  {"url": "c", "gemini_response": "third", "remarks": true},
  {"url": "d", "gemini_response": "fourth", "remarks": 2.50},
  {"url": "e", "gemini_response": "fifth"}
]`
	require.NoError(t, os.WriteFile(path, []byte(legacy), 0644))

	s := openStore(t, path, Options{})
	require.Equal(t, 5, s.Len())
	got := s.Results()
	assert.Equal(t, "3", got[0].Remarks)
	assert.Equal(t, "", got[1].Remarks)
	assert.Equal(t, "true", got[2].Remarks)
	assert.Equal(t, "2.50", got[3].Remarks)
	assert.Equal(t, "", got[4].Remarks)
	assert.True(t, s.Succeeded("a"))

	matches, err := filepath.Glob(path + ".corrupt-*")
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestLoad_TrailingDataIsCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"url": "x", "response": "ok"}] []`), 0644))

	results, err := Load(path, zerolog.Nop())
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestResultStore_ForcedResponseKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.json")
	s := openStore(t, path, Options{ResponseKey: LegacyResponseKey})
	_, err := s.Put(Result{URL: "a", Response: "x"})
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"gemini_response": "x"`)
}

func TestOpen_InvalidOptions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.json")
	tests := []struct {
		name string
		opts Options
	}{
		{"write mode", Options{WriteMode: "sometimes"}},
		{"duplicate policy", Options{Duplicates: "merge"}},
		{"response key", Options{ResponseKey: "answer"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Open(path, tt.opts)
			assert.ErrorIs(t, err, ErrInvalidInput)
		})
	}
}

func TestResultStore_DuplicatePolicies(t *testing.T) {
	tests := []struct {
		name     string
		policy   DuplicatePolicy
		seed     []Result
		put      Result
		outcome  PutOutcome
		wantResp []string
	}{
		{
			name:     "append keeps history",
			policy:   DuplicateAppend,
			seed:     []Result{{URL: "a", Response: "v1"}},
			put:      Result{URL: "a", Response: "v2"},
			outcome:  Appended,
			wantResp: []string{"v1", "v2"},
		},
		{
			name:     "replace overwrites in place",
			policy:   DuplicateReplace,
			seed:     []Result{{URL: "a", Response: "v1"}, {URL: "b", Response: "b1"}},
			put:      Result{URL: "a", Response: "v2"},
			outcome:  Replaced,
			wantResp: []string{"v2", "b1"},
		},
		{
			name:     "replace appends unknown url",
			policy:   DuplicateReplace,
			seed:     []Result{{URL: "a", Response: "v1"}},
			put:      Result{URL: "c", Response: "c1"},
			outcome:  Appended,
			wantResp: []string{"v1", "c1"},
		},
		{
			name:     "skip leaves success untouched",
			policy:   DuplicateSkip,
			seed:     []Result{{URL: "a", Response: "v1"}},
			put:      Result{URL: "a", Response: "v2"},
			outcome:  Skipped,
			wantResp: []string{"v1"},
		},
		{
			name:     "skip supersedes earlier failure",
			policy:   DuplicateSkip,
			seed:     []Result{{URL: "a", Response: "ERROR: timeout"}},
			put:      Result{URL: "a", Response: "v2"},
			outcome:  Replaced,
			wantResp: []string{"v2"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "results.json")
			require.NoError(t, Save(path, tt.seed))

			s := openStore(t, path, Options{Duplicates: tt.policy})
			outcome, err := s.Put(tt.put)
			require.NoError(t, err)
			assert.Equal(t, tt.outcome, outcome)

			onDisk, err := Load(path, zerolog.Nop())
			require.NoError(t, err)
			var got []string
			for _, r := range onDisk {
				got = append(got, r.Response)
			}
			assert.Equal(t, tt.wantResp, got)
		})
	}
}

func TestResultStore_Succeeded(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.json")
	require.NoError(t, Save(path, []Result{
		{URL: "ok", Response: "fine"},
		{URL: "bad", Response: "ERROR: boom"},
	}))

	s := openStore(t, path, Options{})
	assert.True(t, s.Succeeded("ok"))
	assert.False(t, s.Succeeded("bad"))
	assert.False(t, s.Succeeded("missing"))
}

func TestResultStore_InPlaceMode(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.json")
	s := openStore(t, path, Options{WriteMode: WriteInPlace})

	_, err := s.Put(Result{URL: "a", Response: "x"})
	require.NoError(t, err)

	results, err := Load(path, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, []Result{{URL: "a", Response: "x"}}, results)
}

func TestResultStore_LockExcludesSecondRun(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.json")
	openStore(t, path, Options{})

	_, err := Open(path, Options{LockTimeout: 50 * time.Millisecond, Logger: zerolog.Nop()})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrLockTimeout)

	var storErr *StorageError
	require.ErrorAs(t, err, &storErr)
	assert.Equal(t, "lock", storErr.Op)
}

func TestResultStore_ReopenAfterClose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.json")
	first, err := Open(path, Options{Logger: zerolog.Nop()})
	require.NoError(t, err)
	require.NoError(t, first.Close())

	lockPath := NewFileLock(path).Path()
	assert.FileExists(t, lockPath, "lock file is left in place")

	second, err := Open(path, Options{LockTimeout: 50 * time.Millisecond, Logger: zerolog.Nop()})
	require.NoError(t, err)
	defer second.Close()

	_, err = Open(path, Options{LockTimeout: 50 * time.Millisecond, Logger: zerolog.Nop()})
	assert.ErrorIs(t, err, ErrLockTimeout)
}

func TestResultStore_WriteFailureIsPersistenceError(t *testing.T) {
	if os.Getuid() == 0 {
		t.Skip("permission checks do not apply to root")
	}
	dir := t.TempDir()
	path := filepath.Join(dir, "results.json")
	s := openStore(t, path, Options{})

	require.NoError(t, os.Chmod(dir, 0500))
	t.Cleanup(func() { os.Chmod(dir, 0755) })

	_, err := s.Put(Result{URL: "a", Response: "x"})
	var perr *PersistenceError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "write", perr.Op)
}

func TestResultStore_ClosedRejectsPut(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.json")
	s := openStore(t, path, Options{})
	require.NoError(t, s.Close())

	_, err := s.Put(Result{URL: "a"})
	assert.ErrorIs(t, err, ErrClosed)
	assert.NoError(t, s.Close())
}

func TestResult_IsError(t *testing.T) {
	assert.True(t, NewErrorResult("u", errors.New("x"), "").IsError())
	assert.True(t, Result{Response: "ERROR:no space"}.IsError())
	assert.False(t, Result{Response: "fine"}.IsError())
	assert.Equal(t, "ERROR: x", NewErrorResult("u", errors.New("x"), "").Response)
}
