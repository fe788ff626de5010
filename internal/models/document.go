package models

import "time"

// Document is a text source ingested into the retrieval store.
type Document struct {
	ID              string    `json:"id"`
	Filename        string    `json:"filename"`
	ChunkCount      int       `json:"chunk_count"`
	TotalCharacters int       `json:"total_characters"`
	CreatedAt       time.Time `json:"created_at"`
}

// Chunk is a contiguous slice of a document's text.
type Chunk struct {
	ID         string `json:"id"`
	DocumentID string `json:"document_id"`
	Index      int    `json:"index"`
	Content    string `json:"content"`
}
