package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/joescharf/codelens/internal/apperr"
	"github.com/joescharf/codelens/internal/models"
)

var errRAGUnavailable = apperr.New(apperr.KindUnavailable, "document question answering is not available")

type queryRequest struct {
	Message string `json:"message"`
}

func (s *Server) query(w http.ResponseWriter, r *http.Request) {
	if s.rag == nil {
		s.writeAppError(w, r, errRAGUnavailable)
		return
	}
	var req queryRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeAppError(w, r, err)
		return
	}
	turn, err := s.rag.Answer(r.Context(), req.Message)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, turn)
}

// --- Documents ---

type uploadResponse struct {
	Message  string           `json:"message"`
	Document *models.Document `json:"document"`
}

func (s *Server) uploadDocument(w http.ResponseWriter, r *http.Request) {
	if s.rag == nil {
		s.writeAppError(w, r, errRAGUnavailable)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxUploadBytes)
	if err := r.ParseMultipartForm(s.opts.MaxUploadBytes); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			s.writeAppError(w, r, apperr.Validation("upload exceeds %d bytes", tooBig.Limit))
			return
		}
		s.writeAppError(w, r, apperr.Validation("expected multipart form with a \"file\" field"))
		return
	}
	defer r.MultipartForm.RemoveAll()

	f, hdr, err := r.FormFile("file")
	if err != nil {
		s.writeAppError(w, r, apperr.Validation("missing \"file\" field"))
		return
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		s.writeAppError(w, r, apperr.Wrap(apperr.KindValidation, err, "read upload"))
		return
	}

	doc, err := s.rag.Ingest(r.Context(), hdr.Filename, string(data))
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, uploadResponse{Message: "document ingested", Document: doc})
}

type documentsResponse struct {
	Documents   []*models.Document `json:"documents"`
	Count       int                `json:"count"`
	TotalChunks int                `json:"total_chunks"`
}

func (s *Server) listDocuments(w http.ResponseWriter, r *http.Request) {
	if s.rag == nil {
		s.writeAppError(w, r, errRAGUnavailable)
		return
	}
	docs, err := s.rag.ListDocuments(r.Context())
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	if docs == nil {
		docs = []*models.Document{}
	}
	total := 0
	for _, d := range docs {
		total += d.ChunkCount
	}
	writeJSON(w, http.StatusOK, documentsResponse{Documents: docs, Count: len(docs), TotalChunks: total})
}

func (s *Server) deleteDocument(w http.ResponseWriter, r *http.Request) {
	if s.rag == nil {
		s.writeAppError(w, r, errRAGUnavailable)
		return
	}
	filename := r.PathValue("filename")
	if err := s.rag.DeleteDocument(r.Context(), filename); err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "document deleted", "filename": filename})
}
