package storage

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ErrorPrefix marks a response that records a failure instead of analysis text.
const ErrorPrefix = "ERROR: "

// Response keys understood on disk.
const (
	ResponseKey       = "response"
	LegacyResponseKey = "gemini_response"
)

// Result is the persisted output record for one processed link.
type Result struct {
	URL      string
	Response string
	Remarks  string
}

// NewErrorResult builds a failure record for url.
func NewErrorResult(url string, err error, remarks string) Result {
	return Result{
		URL:      url,
		Response: ErrorPrefix + err.Error(),
		Remarks:  remarks,
	}
}

// IsError reports whether the record holds a failure.
func (r Result) IsError() bool {
	return strings.HasPrefix(strings.TrimSpace(r.Response), strings.TrimSpace(ErrorPrefix))
}

// record and legacyRecord fix the on-disk field order to url, response, remarks.
type record struct {
	URL      string `json:"url"`
	Response string `json:"response"`
	Remarks  string `json:"remarks"`
}

type legacyRecord struct {
	URL      string `json:"url"`
	Response string `json:"gemini_response"`
	Remarks  string `json:"remarks"`
}

// rawRecord accepts either response key when reading.
type rawRecord struct {
	URL      string  `json:"url"`
	Response *string `json:"response"`
	Legacy   *string `json:"gemini_response"`
	Remarks  any     `json:"remarks"`
}

func (r rawRecord) result() (Result, string) {
	res := Result{URL: r.URL, Remarks: remarksText(r.Remarks)}
	switch {
	case r.Response != nil:
		res.Response = *r.Response
		return res, ResponseKey
	case r.Legacy != nil:
		res.Response = *r.Legacy
		return res, LegacyResponseKey
	}
	return res, ""
}

// remarksText renders remarks written by older tools, which copied the input
// value through unchanged. Scalars become text and null becomes "".
func remarksText(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	case bool:
		if t {
			return "true"
		}
		return "false"
	}
	data, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(data)
}

// validResponseKey reports whether key can be written.
func validResponseKey(key string) error {
	switch key {
	case ResponseKey, LegacyResponseKey:
		return nil
	}
	return fmt.Errorf("%w: response key %q (want %q or %q)", ErrInvalidInput, key, ResponseKey, LegacyResponseKey)
}

func encodeRecords(results []Result, key string) any {
	if key == LegacyResponseKey {
		out := make([]legacyRecord, len(results))
		for i, r := range results {
			out[i] = legacyRecord(record{URL: r.URL, Response: r.Response, Remarks: r.Remarks})
		}
		return out
	}
	out := make([]record, len(results))
	for i, r := range results {
		out[i] = record{URL: r.URL, Response: r.Response, Remarks: r.Remarks}
	}
	return out
}
