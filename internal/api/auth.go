package api

import (
	"net/http"
	"time"

	"github.com/joescharf/codelens/internal/apperr"
	"github.com/joescharf/codelens/internal/auth"
	"github.com/joescharf/codelens/internal/store"
)

var errAuthUnavailable = apperr.New(apperr.KindUnavailable, "authentication is not available")

type signupRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
}

func (s *Server) signup(w http.ResponseWriter, r *http.Request) {
	if s.auth == nil {
		s.writeAppError(w, r, errAuthUnavailable)
		return
	}
	var req signupRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeAppError(w, r, err)
		return
	}
	u, err := s.auth.Signup(r.Context(), req.Email, req.Username, req.Password)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, u)
}

// loginRequest accepts either "username" or "email" as the identifier.
type loginRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	if s.auth == nil {
		s.writeAppError(w, r, errAuthUnavailable)
		return
	}
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeAppError(w, r, err)
		return
	}
	id := req.Username
	if id == "" {
		id = req.Email
	}
	pair, err := s.auth.Login(r.Context(), id, req.Password)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pair)
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

func (s *Server) refresh(w http.ResponseWriter, r *http.Request) {
	if s.auth == nil {
		s.writeAppError(w, r, errAuthUnavailable)
		return
	}
	var req refreshRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeAppError(w, r, err)
		return
	}
	pair, err := s.auth.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pair)
}

// logout is stateless: tokens are not tracked server side, so the client
// discarding them ends the session.
func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}

func (s *Server) profile(w http.ResponseWriter, r *http.Request) {
	claims, _ := auth.ClaimsFrom(r.Context())
	u, err := s.auth.User(r.Context(), claims)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

type verifyResponse struct {
	Valid     bool      `json:"valid"`
	UserID    string    `json:"user_id"`
	Username  string    `json:"username"`
	Role      string    `json:"role"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (s *Server) verify(w http.ResponseWriter, r *http.Request) {
	claims, _ := auth.ClaimsFrom(r.Context())
	resp := verifyResponse{
		Valid:    true,
		UserID:   claims.UserID(),
		Username: claims.Username,
		Role:     string(claims.Role),
	}
	if claims.ExpiresAt != nil {
		resp.ExpiresAt = claims.ExpiresAt.Time.UTC()
	}
	writeJSON(w, http.StatusOK, resp)
}

type adminStatsResponse struct {
	Users     store.UserStats `json:"users"`
	Documents int             `json:"documents"`
	Chunks    int             `json:"chunks"`
}

func (s *Server) adminStats(w http.ResponseWriter, r *http.Request) {
	users, err := s.auth.Stats(r.Context())
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	resp := adminStatsResponse{Users: users}
	if s.rag != nil {
		if resp.Documents, resp.Chunks, err = s.rag.Stats(r.Context()); err != nil {
			s.writeAppError(w, r, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, resp)
}
