package storage

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const defaultLockTimeout = 5 * time.Second

// WriteMode selects how the result file is rewritten.
type WriteMode string

const (
	// WriteAtomic writes a temp file, fsyncs it and renames it into place.
	WriteAtomic WriteMode = "atomic"
	// WriteInPlace truncates and rewrites the target directly. A crash
	// mid-write can leave a torn file; kept for compatibility with tools
	// that watch the file's inode.
	WriteInPlace WriteMode = "inplace"
)

// DuplicatePolicy decides what happens when a result arrives for a URL
// that already has a record.
type DuplicatePolicy string

const (
	// DuplicateAppend keeps history: every run adds a new record.
	DuplicateAppend DuplicatePolicy = "append"
	// DuplicateReplace overwrites the first record for the URL in place.
	DuplicateReplace DuplicatePolicy = "replace"
	// DuplicateSkip leaves URLs that already succeeded untouched.
	DuplicateSkip DuplicatePolicy = "skip"
)

// ParseWriteMode converts a config string into a WriteMode.
func ParseWriteMode(s string) (WriteMode, error) {
	switch WriteMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", WriteAtomic:
		return WriteAtomic, nil
	case WriteInPlace:
		return WriteInPlace, nil
	}
	return "", fmt.Errorf("%w: write mode %q", ErrInvalidInput, s)
}

// ParseDuplicatePolicy converts a config string into a DuplicatePolicy.
func ParseDuplicatePolicy(s string) (DuplicatePolicy, error) {
	switch DuplicatePolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", DuplicateAppend:
		return DuplicateAppend, nil
	case DuplicateReplace:
		return DuplicateReplace, nil
	case DuplicateSkip:
		return DuplicateSkip, nil
	}
	return "", fmt.Errorf("%w: duplicate policy %q", ErrInvalidInput, s)
}

// Load reads the result file at path. A missing file yields an empty slice.
// A file that cannot be parsed is logged, moved aside to
// <path>.corrupt-<unix> and treated as empty so a fresh run can start.
// Only I/O failures other than absence are returned as errors.
func Load(path string, logger zerolog.Logger) ([]Result, error) {
	results, _, err := load(path, logger)
	return results, err
}

// load also reports the response key found in the file, "" if none.
func load(path string, logger zerolog.Logger) ([]Result, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []Result{}, "", nil
		}
		return nil, "", &StorageError{Op: "read", Entity: "results", ID: path, Err: err}
	}

	if len(bytes.TrimSpace(data)) == 0 {
		return []Result{}, "", nil
	}

	var raw []rawRecord
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := decodeAll(dec, &raw); err != nil {
		aside := fmt.Sprintf("%s.corrupt-%d", path, time.Now().Unix())
		ev := logger.Warn().Err(err).Str("path", path)
		if renameErr := os.Rename(path, aside); renameErr != nil {
			ev.AnErr("rename_error", renameErr).Msg("result file is corrupt, starting empty")
		} else {
			ev.Str("moved_to", aside).Msg("result file is corrupt, moved aside and starting empty")
		}
		return []Result{}, "", nil
	}

	results := make([]Result, 0, len(raw))
	key := ""
	for _, r := range raw {
		res, k := r.result()
		if key == "" {
			key = k
		}
		results = append(results, res)
	}
	return results, key, nil
}

// decodeAll decodes exactly one JSON value and rejects trailing data, the
// way json.Unmarshal does.
func decodeAll(dec *json.Decoder, v any) error {
	if err := dec.Decode(v); err != nil {
		return err
	}
	if _, err := dec.Token(); err != io.EOF {
		return errors.New("unexpected data after top-level value")
	}
	return nil
}

// Save writes results to path as a pretty-printed JSON array using the
// atomic write mode and the default response key.
func Save(path string, results []Result) error {
	return save(path, results, ResponseKey, WriteAtomic)
}

func save(path string, results []Result, key string, mode WriteMode) error {
	var buf bytes.Buffer
	if err := encode(&buf, results, key); err != nil {
		return &StorageError{Op: "write", Entity: "results", ID: path, Err: err}
	}

	switch mode {
	case WriteInPlace:
		if err := writeInPlace(path, buf.Bytes()); err != nil {
			return &StorageError{Op: "write", Entity: "results", ID: path, Err: err}
		}
		return nil
	default:
		writer, err := NewAtomicWriter(path)
		if err != nil {
			return &StorageError{Op: "write", Entity: "results", ID: path, Err: err}
		}
		if _, err := writer.Write(buf.Bytes()); err != nil {
			writer.Abort()
			return &StorageError{Op: "write", Entity: "results", ID: path, Err: err}
		}
		if err := writer.Commit(); err != nil {
			return &StorageError{Op: "write", Entity: "results", ID: path, Err: err}
		}
		return nil
	}
}

// encode writes UTF-8 JSON with 2-space indentation and no HTML or
// non-ASCII escaping.
func encode(w io.Writer, results []Result, key string) error {
	if results == nil {
		results = []Result{}
	}
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(encodeRecords(results, key))
}

func writeInPlace(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Options configures a ResultStore.
type Options struct {
	// WriteMode defaults to WriteAtomic.
	WriteMode WriteMode
	// Duplicates defaults to DuplicateAppend.
	Duplicates DuplicatePolicy
	// ResponseKey forces the JSON key of the response field. Empty keeps
	// the key found in an existing file, or "response" for a new one.
	ResponseKey string
	// LockTimeout bounds the wait for the lock file. Default: 5s
	LockTimeout time.Duration
	// Logger receives load and write diagnostics.
	Logger zerolog.Logger
}

// PutOutcome reports what Put did with a record.
type PutOutcome int

const (
	Appended PutOutcome = iota
	Replaced
	Skipped
)

func (o PutOutcome) String() string {
	switch o {
	case Appended:
		return "appended"
	case Replaced:
		return "replaced"
	case Skipped:
		return "skipped"
	}
	return "unknown"
}

// ResultStore is the in-memory accumulator for one run, seeded from the
// existing result file and flushed in full after every Put. It holds the
// advisory lock <path>.lock until Close so two runs cannot interleave writes.
type ResultStore struct {
	path   string
	opts   Options
	key    string
	lock   *FileLock
	logger zerolog.Logger

	mu      sync.Mutex
	results []Result
	closed  bool
}

// Open locks path and loads any prior results as the resume accumulator.
func Open(path string, opts Options) (*ResultStore, error) {
	var err error
	if opts.WriteMode, err = ParseWriteMode(string(opts.WriteMode)); err != nil {
		return nil, err
	}
	if opts.Duplicates, err = ParseDuplicatePolicy(string(opts.Duplicates)); err != nil {
		return nil, err
	}
	if opts.ResponseKey != "" {
		if err := validResponseKey(opts.ResponseKey); err != nil {
			return nil, err
		}
	}
	if opts.LockTimeout <= 0 {
		opts.LockTimeout = defaultLockTimeout
	}

	s := &ResultStore{
		path:   path,
		opts:   opts,
		lock:   NewFileLock(path),
		logger: opts.Logger.With().Str("component", "storage").Logger(),
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, &StorageError{Op: "lock", Entity: "file", ID: s.lock.Path(), Err: err}
		}
	}
	if err := s.lock.Lock(opts.LockTimeout); err != nil {
		return nil, err
	}

	results, fileKey, err := load(path, s.logger)
	if err != nil {
		s.lock.Unlock()
		return nil, err
	}

	s.results = results
	switch {
	case opts.ResponseKey != "":
		s.key = opts.ResponseKey
	case fileKey != "":
		s.key = fileKey
	default:
		s.key = ResponseKey
	}

	s.logger.Debug().
		Str("path", path).
		Int("records", len(results)).
		Str("response_key", s.key).
		Str("write_mode", string(opts.WriteMode)).
		Msg("result store opened")

	return s, nil
}

// Path returns the result file path.
func (s *ResultStore) Path() string { return s.path }

// ResponseKey returns the JSON key used for the response field.
func (s *ResultStore) ResponseKey() string { return s.key }

// Policy returns the duplicate policy in effect.
func (s *ResultStore) Policy() DuplicatePolicy { return s.opts.Duplicates }

// Len returns the number of accumulated records.
func (s *ResultStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.results)
}

// Results returns a copy of the accumulated records.
func (s *ResultStore) Results() []Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Result, len(s.results))
	copy(out, s.results)
	return out
}

// Succeeded reports whether url already has a non-error record.
func (s *ResultStore) Succeeded(url string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.results {
		if r.URL == url && !r.IsError() {
			return true
		}
	}
	return false
}

// Put applies the duplicate policy to r and, unless the record was skipped,
// rewrites the whole file before returning.
func (s *ResultStore) Put(r Result) (PutOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return Skipped, &StorageError{Op: "write", Entity: "results", ID: s.path, Err: ErrClosed}
	}

	outcome := Appended
	switch s.opts.Duplicates {
	case DuplicateSkip:
		for _, existing := range s.results {
			if existing.URL == r.URL && !existing.IsError() {
				return Skipped, nil
			}
		}
		// An earlier failure is superseded rather than kept beside the retry.
		if idx := s.indexOf(r.URL); idx >= 0 {
			s.results[idx] = r
			outcome = Replaced
		} else {
			s.results = append(s.results, r)
		}
	case DuplicateReplace:
		if idx := s.indexOf(r.URL); idx >= 0 {
			s.results[idx] = r
			outcome = Replaced
		} else {
			s.results = append(s.results, r)
		}
	default:
		s.results = append(s.results, r)
	}

	if err := save(s.path, s.results, s.key, s.opts.WriteMode); err != nil {
		return outcome, err
	}
	return outcome, nil
}

// Close releases the lock file. The result file is already up to date.
func (s *ResultStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.lock.Unlock()
}

func (s *ResultStore) indexOf(url string) int {
	for i, r := range s.results {
		if r.URL == url {
			return i
		}
	}
	return -1
}
