// Package evidence provides generic tree-walking heuristics over the
// semi-structured evidence payload attached to an issue.
//
// The payload is opaque JSON-like data (maps, slices, scalars). These
// scanners never validate a schema and never fail on malformed input: false
// positives and negatives are acceptable as long as results are
// deterministic and the candidates are surfaced for human review.
package evidence

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
)

// missingMarkers are strings commonly used for "no value" in JSON exports.
var missingMarkers = map[string]bool{
	"null": true,
	"none": true,
	"na":   true,
	"n/a":  true,
}

// ForEachLeaf visits every leaf value in a JSON-like tree, supplying its
// dotted/bracketed key path. Map keys are visited in sorted order so the
// walk is deterministic regardless of how the payload was built.
func ForEachLeaf(v any, visit func(path string, leaf any)) {
	walkLeaves(v, "", visit)
}

func walkLeaves(v any, path string, visit func(path string, leaf any)) {
	switch node := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(node))
		for k := range node {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			child := k
			if path != "" {
				child = path + "." + k
			}
			walkLeaves(node[k], child, visit)
		}
	case []any:
		for i, item := range node {
			walkLeaves(item, fmt.Sprintf("%s[%d]", path, i), visit)
		}
	default:
		visit(path, v)
	}
}

// HasMissingValue reports whether any leaf of the payload looks missing:
// a null, an empty or whitespace-only string, or a marker string like
// "null"/"none"/"na"/"n/a" (case-insensitive).
func HasMissingValue(payload map[string]any) bool {
	missing := false
	ForEachLeaf(payload, func(_ string, leaf any) {
		if missing {
			return
		}
		if leaf == nil {
			missing = true
			return
		}
		if s, ok := leaf.(string); ok {
			trimmed := strings.TrimSpace(s)
			if trimmed == "" || missingMarkers[strings.ToLower(trimmed)] {
				missing = true
			}
		}
	})
	return missing
}

// DateCandidate records one top-level key that looked like a start/end date,
// whether or not it parsed. Unparsed candidates are kept for audit
// transparency.
type DateCandidate struct {
	Key    string `json:"key"`
	Value  any    `json:"value"`
	Parsed bool   `json:"parsed"`
}

// DateSignals is the audit record of the date scan.
type DateSignals struct {
	StartCandidates []DateCandidate `json:"start_candidates"`
	EndCandidates   []DateCandidate `json:"end_candidates"`
}

// ExtractDates scans only the top-level keys of the payload for the
// substrings "start" and "end" (case-insensitive) and tries to parse each
// matching value as an ISO-8601-like timestamp. The first successfully
// parsed start and end values win; keys are scanned in sorted order so the
// result is stable.
func ExtractDates(payload map[string]any) (start, end *time.Time, signals DateSignals) {
	signals = DateSignals{
		StartCandidates: []DateCandidate{},
		EndCandidates:   []DateCandidate{},
	}

	keys := make([]string, 0, len(payload))
	for k := range payload {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		key := strings.ToLower(k)
		v := payload[k]
		if strings.Contains(key, "start") {
			parsed, ok := ParseTimestamp(v)
			signals.StartCandidates = append(signals.StartCandidates, DateCandidate{Key: k, Value: v, Parsed: ok})
			if ok && start == nil {
				start = &parsed
			}
		}
		if strings.Contains(key, "end") {
			parsed, ok := ParseTimestamp(v)
			signals.EndCandidates = append(signals.EndCandidates, DateCandidate{Key: k, Value: v, Parsed: ok})
			if ok && end == nil {
				end = &parsed
			}
		}
	}
	return start, end, signals
}

// timestampLayouts are the ISO-8601-like shapes we accept, after an optional
// trailing "Z" has been stripped.
var timestampLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseTimestamp attempts to read a value as an ISO-like timestamp. Parse
// failure is not an error: the scanner degrades to "not detected".
func ParseTimestamp(v any) (time.Time, bool) {
	s, ok := v.(string)
	if !ok {
		return time.Time{}, false
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "Z")
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// NumericSignal is one numeric leaf with its structural path, used by
// downstream range checks.
type NumericSignal struct {
	KeyPath string  `json:"key_path"`
	Value   float64 `json:"value"`
}

// ExtractNumericSignals walks the full tree and records every numeric leaf.
// Booleans are excluded; json.Number and the common Go numeric types are
// accepted so the scanner works for decoded JSON and hand-built payloads
// alike.
func ExtractNumericSignals(payload map[string]any) []NumericSignal {
	var signals []NumericSignal
	ForEachLeaf(payload, func(path string, leaf any) {
		if n, ok := asNumber(leaf); ok {
			signals = append(signals, NumericSignal{KeyPath: path, Value: n})
		}
	})
	return signals
}

func asNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}
