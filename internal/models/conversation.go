package models

import "time"

// RetrievedChunk is a document chunk returned by similarity search. Higher scores
// are more similar.
type RetrievedChunk struct {
	ChunkID    string  `json:"chunk_id"`
	DocumentID string  `json:"document_id"`
	Source     string  `json:"source"`
	Index      int     `json:"index"`
	Content    string  `json:"content"`
	Score      float64 `json:"score"`
}

// ConversationTurn is one question answered through the RAG path.
type ConversationTurn struct {
	Question              string           `json:"question"`
	Context               []RetrievedChunk `json:"context"`
	Answer                string           `json:"answer"`
	ContextUsed           bool             `json:"context_used"`
	DocumentsFound        int              `json:"documents_found"`
	ProcessingTimeSeconds float64          `json:"processing_time_seconds"`
	CreatedAt             time.Time        `json:"created_at"`
}
