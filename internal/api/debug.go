package api

import (
	"net/http"
	"runtime"
	"strconv"
	"time"

	"github.com/joescharf/codelens/internal/apperr"
	"github.com/joescharf/codelens/internal/eventlog"
	"github.com/joescharf/codelens/internal/health"
)

const maxDebugLogLimit = 500

type debugStatusResponse struct {
	Version       string            `json:"version"`
	UptimeSeconds int64             `json:"uptime_seconds"`
	Goroutines    int               `json:"goroutines"`
	Provider      string            `json:"provider"`
	Model         string            `json:"model"`
	Health        *health.Report    `json:"health"`
	Logs          eventlog.Stats    `json:"logs"`
	LogFiles      map[string]string `json:"log_files,omitempty"`
}

func (s *Server) debugStatus(w http.ResponseWriter, r *http.Request) {
	resp := debugStatusResponse{
		Version:       s.opts.Version,
		UptimeSeconds: int64(time.Since(s.started).Seconds()),
		Goroutines:    runtime.NumGoroutine(),
		Provider:      s.opts.Provider,
		Model:         s.opts.Model,
		Health:        s.health.Check(r.Context()),
		Logs:          s.events.Stats(),
	}
	for _, c := range eventlog.Categories {
		if p := s.events.Path(c); p != "" {
			if resp.LogFiles == nil {
				resp.LogFiles = map[string]string{}
			}
			resp.LogFiles[string(c)] = p
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

type debugLogsResponse struct {
	Category eventlog.Category `json:"category"`
	Count    int               `json:"count"`
	Entries  []eventlog.Entry  `json:"entries"`
}

func (s *Server) debugLogs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	category := eventlog.Requests
	if raw := q.Get("category"); raw != "" {
		c, err := eventlog.ParseCategory(raw)
		if err != nil {
			s.writeAppError(w, r, err)
			return
		}
		category = c
	}

	limit := 100
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			s.writeAppError(w, r, apperr.Validation("limit must be a positive integer"))
			return
		}
		limit = min(n, maxDebugLogLimit)
	}

	entries := s.events.Recent(category, limit)
	if entries == nil {
		entries = []eventlog.Entry{}
	}
	writeJSON(w, http.StatusOK, debugLogsResponse{Category: category, Count: len(entries), Entries: entries})
}
