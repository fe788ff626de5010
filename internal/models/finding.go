package models

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Finding is one structured issue reported by the model for one aspect.
type Finding struct {
	Severity    Severity `json:"severity"`
	Title       string   `json:"title,omitempty"`
	Description string   `json:"description"`
	Location    string   `json:"location,omitempty"`
	Suggestion  string   `json:"suggestion,omitempty"`
}

// UnmarshalJSON accepts the field spellings models tend to use instead of the
// declared schema (message/issue for description, numeric line for location).
func (f *Finding) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("finding must be an object: %w", err)
	}

	f.Severity = ParseSeverity(firstString(raw, "severity", "level", "priority"))
	f.Title = firstString(raw, "title", "type", "name", "rule")
	f.Description = firstString(raw, "description", "message", "issue", "details", "explanation")
	f.Location = firstString(raw, "location", "line", "line_number", "lines")
	f.Suggestion = firstString(raw, "suggestion", "fix", "recommendation", "remediation")

	if f.Description == "" {
		f.Description = f.Title
	}
	return nil
}

// firstString returns the first key present in raw rendered as a string. Numbers
// are formatted without a fractional part when integral.
func firstString(raw map[string]json.RawMessage, keys ...string) string {
	for _, k := range keys {
		v, ok := raw[k]
		if !ok {
			continue
		}
		var s string
		if err := json.Unmarshal(v, &s); err == nil {
			if s = strings.TrimSpace(s); s != "" {
				return s
			}
			continue
		}
		var n float64
		if err := json.Unmarshal(v, &n); err == nil {
			return strconv.FormatFloat(n, 'f', -1, 64)
		}
	}
	return ""
}
