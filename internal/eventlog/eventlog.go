// Package eventlog keeps append-only JSONL logs per category, each with an
// in-memory ring buffer of recent entries.
package eventlog

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/joescharf/codelens/internal/apperr"
)

// Category names one log stream.
type Category string

const (
	Requests      Category = "requests"
	Errors        Category = "errors"
	Reviews       Category = "reviews"
	Conversations Category = "conversations"
)

// Categories lists every category in display order.
var Categories = []Category{Requests, Errors, Reviews, Conversations}

// ParseCategory validates a category name.
func ParseCategory(s string) (Category, error) {
	for _, c := range Categories {
		if string(c) == s {
			return c, nil
		}
	}
	return "", apperr.Validation("unknown log category %q", s)
}

// DefaultMaxRecent is the ring buffer size per category.
const DefaultMaxRecent = 200

// Entry is a single log line.
type Entry struct {
	Timestamp time.Time      `json:"ts"`
	Category  Category       `json:"category"`
	Level     string         `json:"level"`
	Message   string         `json:"message"`
	Fields    map[string]any `json:"fields,omitempty"`
}

// stream is one category's file and ring buffer.
type stream struct {
	mu        sync.Mutex
	file      *os.File
	recent    []Entry
	maxRecent int
	writeIdx  int
	count     int
}

func (s *stream) append(e Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.file != nil {
		if data, err := json.Marshal(e); err == nil {
			_, _ = s.file.Write(append(data, '\n'))
		}
	}

	s.recent[s.writeIdx] = e
	s.writeIdx = (s.writeIdx + 1) % s.maxRecent
	if s.count < s.maxRecent {
		s.count++
	}
}

// newest returns up to n entries, newest first. n <= 0 means all.
func (s *stream) newest(n int) []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	if n <= 0 || n > s.count {
		n = s.count
	}
	out := make([]Entry, n)
	idx := (s.writeIdx - 1 + s.maxRecent) % s.maxRecent
	for i := 0; i < n; i++ {
		out[i] = s.recent[idx]
		idx = (idx - 1 + s.maxRecent) % s.maxRecent
	}
	return out
}

func (s *stream) close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	return err
}

// Log fans entries out to per-category streams. It is safe for concurrent use.
type Log struct {
	dir     string
	streams map[Category]*stream
	now     func() time.Time
}

// Open creates a log writing <dir>/<category>.log files. An empty dir keeps
// entries in memory only.
func Open(dir string, maxRecent int) (*Log, error) {
	if maxRecent <= 0 {
		maxRecent = DefaultMaxRecent
	}
	l := &Log{dir: dir, streams: make(map[Category]*stream, len(Categories)), now: time.Now}

	if dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, err
		}
	}
	for _, c := range Categories {
		s := &stream{recent: make([]Entry, maxRecent), maxRecent: maxRecent}
		if dir != "" {
			f, err := os.OpenFile(l.Path(c), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
			if err != nil {
				_ = l.Close()
				return nil, err
			}
			s.file = f
		}
		l.streams[c] = s
	}
	return l, nil
}

// Path returns the file backing a category, or "" for in-memory logs.
func (l *Log) Path(c Category) string {
	if l == nil || l.dir == "" {
		return ""
	}
	return filepath.Join(l.dir, string(c)+".log")
}

// Write appends an entry to category c. Unknown categories are dropped.
func (l *Log) Write(c Category, level, message string, fields map[string]any) {
	if l == nil {
		return
	}
	s, ok := l.streams[c]
	if !ok {
		return
	}
	s.append(Entry{
		Timestamp: l.now().UTC(),
		Category:  c,
		Level:     level,
		Message:   message,
		Fields:    fields,
	})
}

// Info appends an info entry.
func (l *Log) Info(c Category, message string, fields map[string]any) {
	l.Write(c, "info", message, fields)
}

// Error appends an entry to the errors category.
func (l *Log) Error(message string, fields map[string]any) {
	l.Write(Errors, "error", message, fields)
}

// Recent returns up to n entries of category c, newest first.
func (l *Log) Recent(c Category, n int) []Entry {
	if l == nil {
		return nil
	}
	s, ok := l.streams[c]
	if !ok {
		return nil
	}
	return s.newest(n)
}

// Stats holds per-category counts of buffered entries.
type Stats struct {
	Buffered map[Category]int `json:"buffered"`
	Last24h  map[Category]int `json:"last_24h"`
}

// Stats counts buffered entries per category. Only the ring buffer is
// inspected, so counts are capped at its size.
func (l *Log) Stats() Stats {
	st := Stats{Buffered: map[Category]int{}, Last24h: map[Category]int{}}
	if l == nil {
		return st
	}
	cutoff := l.now().Add(-24 * time.Hour)
	for _, c := range Categories {
		entries := l.streams[c].newest(0)
		st.Buffered[c] = len(entries)
		n := sort.Search(len(entries), func(i int) bool { return !entries[i].Timestamp.After(cutoff) })
		st.Last24h[c] = n
	}
	return st
}

// Close closes every category file.
func (l *Log) Close() error {
	if l == nil {
		return nil
	}
	var first error
	for _, s := range l.streams {
		if err := s.close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
