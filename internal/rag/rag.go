// Package rag answers questions over uploaded documents: it retrieves the best
// matching chunks and asks the model with those chunks as context.
package rag

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/joescharf/codelens/internal/apperr"
	"github.com/joescharf/codelens/internal/eventlog"
	"github.com/joescharf/codelens/internal/llm"
	"github.com/joescharf/codelens/internal/models"
	"github.com/joescharf/codelens/internal/prompt"
	"github.com/joescharf/codelens/internal/store"
)

const (
	// MaxTopK caps how many chunks are placed in one prompt.
	MaxTopK = 6
	// MaxQuestionLength is the longest accepted question, in characters.
	MaxQuestionLength = 10000

	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 100
)

// FallbackAnswer replaces an empty model reply.
const FallbackAnswer = "I apologize, but I couldn't generate a proper response. Please try asking your question again."

// SupportedExtensions are the document formats accepted for ingestion.
var SupportedExtensions = []string{".txt", ".md", ".markdown", ".rst"}

// SupportedFormat reports whether filename has an accepted extension.
func SupportedFormat(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	for _, e := range SupportedExtensions {
		if e == ext {
			return true
		}
	}
	return false
}

// TextCompleter is the LLM seam used for free-text answers.
type TextCompleter interface {
	CompleteText(ctx context.Context, req llm.Request) (string, error)
}

// Config holds retrieval settings.
type Config struct {
	TopK         int
	ChunkSize    int
	ChunkOverlap int
	Model        string
}

// Service implements question answering and document ingestion.
type Service struct {
	docs     store.DocumentStore
	llm      TextCompleter
	prompts  *prompt.Service
	splitter *Splitter
	cfg      Config
	events   *eventlog.Log
	logger   *slog.Logger
}

// New creates a service. docs may be nil, in which case questions are answered
// without context and ingestion is unavailable.
func New(docs store.DocumentStore, c TextCompleter, p *prompt.Service, cfg Config, events *eventlog.Log, logger *slog.Logger) (*Service, error) {
	if cfg.TopK <= 0 || cfg.TopK > MaxTopK {
		cfg.TopK = MaxTopK
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = DefaultChunkSize
	}
	if cfg.ChunkOverlap < 0 {
		cfg.ChunkOverlap = DefaultChunkOverlap
	}
	splitter, err := NewSplitter(cfg.ChunkSize, cfg.ChunkOverlap)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		docs:     docs,
		llm:      c,
		prompts:  p,
		splitter: splitter,
		cfg:      cfg,
		events:   events,
		logger:   logger,
	}, nil
}

// Config returns the effective configuration.
func (s *Service) Config() Config { return s.cfg }

// ValidateQuestion rejects empty and over-long questions.
func ValidateQuestion(question string) error {
	if strings.TrimSpace(question) == "" {
		return apperr.Validation("question must not be empty")
	}
	if n := utf8.RuneCountInString(question); n > MaxQuestionLength {
		return apperr.Validation("question too long (max %d characters, got %d)", MaxQuestionLength, n)
	}
	return nil
}

// Answer retrieves context for question and asks the model. Retrieval failures
// degrade to an empty context.
func (s *Service) Answer(ctx context.Context, question string) (*models.ConversationTurn, error) {
	start := time.Now()
	if err := ValidateQuestion(question); err != nil {
		return nil, err
	}

	chunks := s.retrieve(ctx, question)

	tmpl, err := s.prompts.Get(prompt.Conversation)
	if err != nil {
		return nil, err
	}
	text, err := s.prompts.Render(prompt.Conversation, map[string]string{
		"question": question,
		"context":  BuildContext(chunks),
	})
	if err != nil {
		return nil, err
	}

	model := tmpl.Model
	if model == "" {
		model = s.cfg.Model
	}
	answer, err := s.llm.CompleteText(ctx, llm.Request{
		Prompt:      text,
		Model:       model,
		Temperature: tmpl.Temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("generate answer: %w", err)
	}
	if strings.TrimSpace(answer) == "" {
		answer = FallbackAnswer
	}

	turn := &models.ConversationTurn{
		Question:              question,
		Context:               chunks,
		Answer:                answer,
		ContextUsed:           len(chunks) > 0,
		DocumentsFound:        len(chunks),
		ProcessingTimeSeconds: math.Round(time.Since(start).Seconds()*1000) / 1000,
		CreatedAt:             time.Now().UTC(),
	}
	s.events.Info(eventlog.Conversations, "conversation turn", map[string]any{
		"question":        question,
		"answer":          answer,
		"documents_found": turn.DocumentsFound,
		"processing_time": turn.ProcessingTimeSeconds,
	})
	return turn, nil
}

func (s *Service) retrieve(ctx context.Context, question string) []models.RetrievedChunk {
	if s.docs == nil {
		return []models.RetrievedChunk{}
	}
	chunks, err := s.docs.SearchChunks(ctx, question, s.cfg.TopK)
	if err != nil {
		s.logger.Warn("context retrieval failed", "error", err)
		s.events.Error("context retrieval failed", map[string]any{"error": err.Error()})
		return []models.RetrievedChunk{}
	}
	if len(chunks) > s.cfg.TopK {
		chunks = chunks[:s.cfg.TopK]
	}
	return chunks
}

// BuildContext formats chunks as numbered "[Document i - source]" blocks.
func BuildContext(chunks []models.RetrievedChunk) string {
	parts := make([]string, 0, len(chunks))
	for i, c := range chunks {
		source := c.Source
		if source == "" {
			source = "Unknown"
		}
		parts = append(parts, fmt.Sprintf("[Document %d - %s]\n%s", i+1, source, strings.TrimSpace(c.Content)))
	}
	return strings.Join(parts, "\n\n")
}

// Ingest splits text into chunks and stores it under filename.
func (s *Service) Ingest(ctx context.Context, filename, text string) (*models.Document, error) {
	if s.docs == nil {
		return nil, apperr.New(apperr.KindInternal, "document store not configured")
	}
	filename = filepath.Base(strings.TrimSpace(filename))
	if filename == "" || filename == "." || filename == string(filepath.Separator) {
		return nil, apperr.Validation("filename is required")
	}
	if !SupportedFormat(filename) {
		return nil, apperr.Validation("unsupported document format %q (supported: %s)",
			filepath.Ext(filename), strings.Join(SupportedExtensions, ", "))
	}
	if !utf8.ValidString(text) {
		return nil, apperr.Validation("document %s is not valid UTF-8 text", filename)
	}

	chunks := s.splitter.Split(text)
	if len(chunks) == 0 {
		return nil, apperr.Validation("document %s has no content", filename)
	}

	doc := &models.Document{Filename: filename}
	if err := s.docs.CreateDocument(ctx, doc, chunks); err != nil {
		return nil, err
	}
	s.logger.Info("document ingested", "filename", filename, "chunks", doc.ChunkCount)
	return doc, nil
}

// ListDocuments returns all stored documents.
func (s *Service) ListDocuments(ctx context.Context) ([]*models.Document, error) {
	if s.docs == nil {
		return []*models.Document{}, nil
	}
	return s.docs.ListDocuments(ctx)
}

// DeleteDocument removes a document and its chunks.
func (s *Service) DeleteDocument(ctx context.Context, filename string) error {
	if s.docs == nil {
		return apperr.New(apperr.KindNotFound, "document not found: %s", filename)
	}
	return s.docs.DeleteDocumentByFilename(ctx, filename)
}

// Stats reports document and chunk counts.
func (s *Service) Stats(ctx context.Context) (docs, chunks int, err error) {
	if s.docs == nil {
		return 0, 0, nil
	}
	return s.docs.DocumentStats(ctx)
}
