package api

import (
	"net/http"
	"time"

	"github.com/joescharf/codelens/internal/eventlog"
	"github.com/joescharf/codelens/internal/models"
)

// --- Review ---

func (s *Server) analyze(w http.ResponseWriter, r *http.Request) {
	var req models.AnalysisRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeAppError(w, r, err)
		return
	}

	result, err := s.reviewer.Review(r.Context(), req)
	if err != nil {
		s.events.Write(eventlog.Reviews, "error", "review failed", userFields(r.Context(), map[string]any{
			"language":    req.Language,
			"code_length": len([]rune(req.Code)),
			"error":       err.Error(),
		}))
		s.writeAppError(w, r, err)
		return
	}

	s.events.Info(eventlog.Reviews, "review completed", userFields(r.Context(), map[string]any{
		"review_id":         result.ReviewID,
		"language":          result.Summary.Language,
		"code_length":       result.Summary.CodeLength,
		"total_issues":      result.Summary.TotalIssues,
		"severity":          string(result.SeverityLevel),
		"analysis_complete": result.AnalysisComplete,
		"processing_time":   result.ProcessingTimeSeconds,
	}))
	writeJSON(w, http.StatusOK, result)
}

type languagesResponse struct {
	Languages []models.Language `json:"languages"`
	Count     int               `json:"count"`
}

func (s *Server) supportedLanguages(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, languagesResponse{
		Languages: models.SupportedLanguages,
		Count:     len(models.SupportedLanguages),
	})
}

type reviewStatusResponse struct {
	Status             string          `json:"status"`
	Provider           string          `json:"provider"`
	Model              string          `json:"model"`
	Aspects            []models.Aspect `json:"aspects"`
	MaxCodeLength      int             `json:"max_code_length"`
	SupportedLanguages []string        `json:"supported_languages"`
	Explanations       bool            `json:"explanations"`
	UptimeSeconds      int64           `json:"uptime_seconds"`
}

func (s *Server) reviewStatus(w http.ResponseWriter, r *http.Request) {
	cfg := s.reviewer.Config()
	writeJSON(w, http.StatusOK, reviewStatusResponse{
		Status:             "operational",
		Provider:           s.opts.Provider,
		Model:              cfg.Model,
		Aspects:            models.Aspects,
		MaxCodeLength:      cfg.MaxCodeLength,
		SupportedLanguages: models.LanguageCodes(),
		Explanations:       cfg.Explanations,
		UptimeSeconds:      int64(time.Since(s.started).Seconds()),
	})
}

type healthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version"`
}

// healthCheck is a liveness probe; dependency checks live on /debug/status.
func (s *Server) healthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC(),
		Version:   s.opts.Version,
	})
}
