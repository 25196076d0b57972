package model

import "time"

type KnowledgeItem struct {
	ID               string    `json:"id"`
	Title            string    `json:"title"`
	ContentType      string    `json:"content_type"`
	OriginalFilename string    `json:"original_filename"`
	ChunkCount       int       `json:"chunk_count"`
	Status           string    `json:"status"`
	ErrorMessage     string    `json:"error_message"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

type KnowledgeText struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}
