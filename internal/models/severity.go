package models

import "strings"

// Severity ranks how serious a finding is.
type Severity string

const (
	SeverityNone     Severity = "none"
	SeverityInfo     Severity = "info"
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

var severityRank = map[Severity]int{
	SeverityNone:     0,
	SeverityInfo:     1,
	SeverityLow:      2,
	SeverityMedium:   3,
	SeverityHigh:     4,
	SeverityCritical: 5,
}

// Rank returns the ordinal of s; higher is more severe.
func (s Severity) Rank() int {
	return severityRank[s]
}

// Valid reports whether s is one of the canonical severities.
func (s Severity) Valid() bool {
	_, ok := severityRank[s]
	return ok
}

// Above reports whether s ranks strictly higher than other.
func (s Severity) Above(other Severity) bool {
	return s.Rank() > other.Rank()
}

// ParseSeverity maps the spellings models commonly produce onto the canonical scale.
// Unrecognized non-empty values are treated as medium.
func ParseSeverity(raw string) Severity {
	v := Severity(strings.ToLower(strings.TrimSpace(raw)))
	if v.Valid() {
		return v
	}
	switch v {
	case "":
		return SeverityMedium
	case "informational", "information", "note", "hint", "trivial":
		return SeverityInfo
	case "minor":
		return SeverityLow
	case "moderate", "warning", "warn":
		return SeverityMedium
	case "major", "error", "serious", "important":
		return SeverityHigh
	case "blocker", "severe", "fatal":
		return SeverityCritical
	default:
		return SeverityMedium
	}
}

// MaxSeverity returns the most severe of the given values, or none when empty.
func MaxSeverity(values ...Severity) Severity {
	out := SeverityNone
	for _, v := range values {
		if v.Above(out) {
			out = v
		}
	}
	return out
}
