// Package links turns an input JSON document into an ordered, deduplicated
// list of work items. It does no network access.
package links

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"slices"
	"strings"
)

// DefaultKey is the object key holding the link list when the root is an object.
const DefaultKey = "videos"

// DefaultAllowlist lists the substrings a URL must contain to be kept.
var DefaultAllowlist = []string{"youtube.com", "youtu.be"}

// WorkItem is one unit of input: a link plus optional metadata.
type WorkItem struct {
	URL     string `json:"url"`
	Tag     string `json:"tag,omitempty"`
	Remarks string `json:"remarks,omitempty"`
}

// MalformedInputError reports an input document with the wrong shape.
// Index is the offending list element, or -1 for a root-level problem.
type MalformedInputError struct {
	Index  int
	Reason string
}

func (e *MalformedInputError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("malformed input: %s", e.Reason)
	}
	return fmt.Sprintf("malformed input: item %d: %s", e.Index, e.Reason)
}

// Options controls extraction.
type Options struct {
	// Key is the object key holding the list. Default: "videos"
	Key string
	// Allowlist of URL substrings. Nil means DefaultAllowlist; an empty,
	// non-nil slice accepts every URL.
	Allowlist []string
	// ScanValues accepts an object root lacking Key by collecting every
	// string value and every string inside array values.
	ScanValues bool
}

// ExtractFile reads and extracts the document at path.
func ExtractFile(path string, opts Options) ([]WorkItem, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read input %s: %w", path, err)
	}
	return Extract(data, opts)
}

// Extract parses raw and returns the retained work items in input order,
// first occurrence winning on duplicate URLs.
func Extract(raw []byte, opts Options) ([]WorkItem, error) {
	if opts.Key == "" {
		opts.Key = DefaultKey
	}
	allow := opts.Allowlist
	if allow == nil {
		allow = DefaultAllowlist
	}

	var root any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&root); err != nil {
		return nil, &MalformedInputError{Index: -1, Reason: fmt.Sprintf("invalid JSON: %v", err)}
	}

	var candidates []WorkItem
	switch v := root.(type) {
	case []any:
		items, err := fromList(v)
		if err != nil {
			return nil, err
		}
		candidates = items
	case map[string]any:
		if list, ok := v[opts.Key]; ok {
			arr, ok := list.([]any)
			if !ok {
				return nil, &MalformedInputError{Index: -1, Reason: fmt.Sprintf("key %q does not hold a list", opts.Key)}
			}
			items, err := fromList(arr)
			if err != nil {
				return nil, err
			}
			candidates = items
		} else if opts.ScanValues {
			candidates = scanValues(v)
		} else {
			return nil, &MalformedInputError{Index: -1, Reason: fmt.Sprintf("object root has no %q key", opts.Key)}
		}
	default:
		return nil, &MalformedInputError{Index: -1, Reason: "root must be a list or an object"}
	}

	return filter(candidates, allow), nil
}

func fromList(list []any) ([]WorkItem, error) {
	items := make([]WorkItem, 0, len(list))
	for i, el := range list {
		switch v := el.(type) {
		case string:
			items = append(items, WorkItem{URL: v})
		case map[string]any:
			u, ok := v["url"].(string)
			if !ok {
				return nil, &MalformedInputError{Index: i, Reason: `missing string "url" field`}
			}
			items = append(items, WorkItem{
				URL:     u,
				Tag:     optString(v["tag"]),
				Remarks: optString(v["remarks"]),
			})
		default:
			return nil, &MalformedInputError{Index: i, Reason: "element must be a string or an object"}
		}
	}
	return items, nil
}

// scanValues walks object values in key order.
func scanValues(obj map[string]any) []WorkItem {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	var items []WorkItem
	for _, k := range keys {
		switch v := obj[k].(type) {
		case string:
			items = append(items, WorkItem{URL: v})
		case []any:
			for _, el := range v {
				if s, ok := el.(string); ok {
					items = append(items, WorkItem{URL: s})
				}
			}
		}
	}
	return items
}

func filter(candidates []WorkItem, allow []string) []WorkItem {
	seen := make(map[string]struct{}, len(candidates))
	out := make([]WorkItem, 0, len(candidates))
	for _, it := range candidates {
		it.URL = strings.TrimSpace(it.URL)
		if it.URL == "" || !allowed(it.URL, allow) {
			continue
		}
		if _, dup := seen[it.URL]; dup {
			continue
		}
		seen[it.URL] = struct{}{}
		out = append(out, it)
	}
	return out
}

func allowed(u string, allow []string) bool {
	if len(allow) == 0 {
		return true
	}
	for _, s := range allow {
		if strings.Contains(u, s) {
			return true
		}
	}
	return false
}

// optString renders optional metadata; numbers and bools are kept as text.
func optString(v any) string {
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
	return ""
}

// URLs returns the URL of every item.
func URLs(items []WorkItem) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.URL
	}
	return out
}
