package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Embedder turns advisory text into a vector.
type Embedder func(ctx context.Context, text string) ([]float32, error)

func (s *Store) createAdvisoryChunk(ctx context.Context, chunk *AdvisoryChunk) error {
	embeddingBytes, err := json.Marshal(chunk.Embedding)
	if err != nil {
		return fmt.Errorf("failed to marshal embedding: %w", err)
	}
	chunk.ID = uuid.NewString()
	chunk.EmbeddingJSON = string(embeddingBytes)

	_, err = s.db.ExecContext(ctx, s.rebind("INSERT INTO advisory_chunks (id, content, embedding_json) VALUES (?, ?, ?)"),
		chunk.ID, chunk.Content, chunk.EmbeddingJSON)
	if err != nil {
		return fmt.Errorf("failed to insert advisory chunk: %w", err)
	}
	return nil
}

func (s *Store) GetAllAdvisoryChunks(ctx context.Context) ([]AdvisoryChunk, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, content, embedding_json FROM advisory_chunks")
	if err != nil {
		return nil, fmt.Errorf("failed to query advisory chunks: %w", err)
	}
	defer rows.Close()

	var chunks []AdvisoryChunk
	for rows.Next() {
		var chunk AdvisoryChunk
		var embeddingJSON *string
		if err := rows.Scan(&chunk.ID, &chunk.Content, &embeddingJSON); err != nil {
			return nil, fmt.Errorf("failed to scan advisory chunk: %w", err)
		}
		if embeddingJSON == nil || *embeddingJSON == "" {
			s.log.Warn("advisory chunk has no embedding", "chunk_id", chunk.ID)
		} else if err := json.Unmarshal([]byte(*embeddingJSON), &chunk.Embedding); err != nil {
			s.log.Warn("failed to decode advisory embedding", "chunk_id", chunk.ID, "error", err)
			chunk.Embedding = nil
		}
		chunks = append(chunks, chunk)
	}
	return chunks, rows.Err()
}

func (s *Store) ClearAdvisoryChunks(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM advisory_chunks"); err != nil {
		return fmt.Errorf("failed to delete advisory chunks: %w", err)
	}
	return nil
}

// ParseAdvisoryTable extracts the first cell of every row in a single-column markdown table,
// skipping the header and separator rows.
func ParseAdvisoryTable(content string) []string {
	var cells []string
	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		if !strings.HasPrefix(trimmed, "|") || !strings.HasSuffix(trimmed, "|") || len(trimmed) < 2 {
			continue
		}
		parts := strings.Split(trimmed, "|")
		if len(parts) < 3 {
			continue
		}
		cell := strings.TrimSpace(parts[1])
		if cell == "" || strings.Trim(cell, "-: ") == "" {
			continue // separator row or empty cell
		}
		lower := strings.ToLower(cell)
		if len(cells) == 0 && (lower == "text" || lower == "content" || lower == "advisory") {
			continue // header row
		}
		cells = append(cells, cell)
	}
	return cells
}

// IngestAdvisoriesFromFile replaces the knowledge base with the rows of a markdown table,
// embedding each row. Rows that fail to embed are skipped.
func (s *Store) IngestAdvisoriesFromFile(ctx context.Context, filePath string, embed Embedder, interval time.Duration) (int, error) {
	contentBytes, err := os.ReadFile(filePath)
	if err != nil {
		return 0, fmt.Errorf("failed to read advisory file %s: %w", filePath, err)
	}

	rawChunks := ParseAdvisoryTable(string(contentBytes))
	if len(rawChunks) == 0 {
		s.log.Warn("no advisory rows found; expected a markdown table with one text column", "file", filePath)
		return 0, nil
	}
	s.log.Info("embedding advisory rows", "rows", len(rawChunks))

	if err := s.ClearAdvisoryChunks(ctx); err != nil {
		return 0, err
	}

	var tick <-chan time.Time
	if interval > 0 {
		ticker := time.NewTicker(interval) // stay under the embedding rate limit
		defer ticker.Stop()
		tick = ticker.C
	}

	count := 0
	for i, raw := range rawChunks {
		if tick != nil {
			select {
			case <-ctx.Done():
				return count, ctx.Err()
			case <-tick:
			}
		}

		embedding, err := embed(ctx, raw)
		if err != nil {
			s.log.Warn("failed to embed advisory row, skipping", "row", i+1, "error", err)
			continue
		}
		chunk := AdvisoryChunk{Content: raw, Embedding: embedding}
		if err := s.createAdvisoryChunk(ctx, &chunk); err != nil {
			s.log.Warn("failed to store advisory row, skipping", "row", i+1, "error", err)
			continue
		}
		count++
		if count%10 == 0 || count == len(rawChunks) {
			s.log.Info("ingest progress", "done", count, "total", len(rawChunks))
		}
	}
	return count, nil
}
