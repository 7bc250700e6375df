package core

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/kerala-agrisage/agrisage/internal/llm"
	"github.com/kerala-agrisage/agrisage/internal/logger"
	"github.com/kerala-agrisage/agrisage/internal/store"
	"github.com/kerala-agrisage/agrisage/internal/utils"
)

const (
	NumRelevantChunks   = 3   // Number of advisories prepended to a question
	SimilarityThreshold = 0.7 // Minimum similarity score to consider an advisory relevant
)

type RAGService struct {
	embedder llm.Embedder
	chunks   []store.AdvisoryChunk // Snapshot loaded at start-up, read-only afterwards
	log      *logger.Logger
}

func NewRAGService(ctx context.Context, db *store.Store, embedder llm.Embedder, log *logger.Logger) (*RAGService, error) {
	if log == nil {
		log = logger.NewNop()
	}
	chunks, err := db.GetAllAdvisoryChunks(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load advisory chunks: %w", err)
	}
	if len(chunks) == 0 {
		log.Warn("RAG service initialized with no advisories. Run with -ingest to load them.")
	} else {
		log.Info("RAG service initialized", "chunks", len(chunks))
	}
	return &RAGService{embedder: embedder, chunks: chunks, log: log.With("service", "rag")}, nil
}

type ScoredChunk struct {
	Chunk      store.AdvisoryChunk
	Similarity float32
}

// RelevantContext returns up to NumRelevantChunks advisories above the similarity threshold,
// separated by blank lines. No advisories or no embedder yields "".
func (s *RAGService) RelevantContext(ctx context.Context, query string) (string, error) {
	if len(s.chunks) == 0 || s.embedder == nil {
		return "", nil
	}

	queryEmbedding, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return "", fmt.Errorf("failed to get query embedding: %w", err)
	}

	scored := make([]ScoredChunk, 0, len(s.chunks))
	for _, chunk := range s.chunks {
		if len(chunk.Embedding) == 0 {
			continue
		}
		similarity, err := utils.CosineSimilarity(queryEmbedding, chunk.Embedding)
		if err != nil {
			s.log.Debug("Skipping advisory", "chunk_id", chunk.ID, "error", err)
			continue
		}
		if similarity >= SimilarityThreshold {
			scored = append(scored, ScoredChunk{Chunk: chunk, Similarity: similarity})
		}
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Similarity > scored[j].Similarity
	})
	if len(scored) > NumRelevantChunks {
		scored = scored[:NumRelevantChunks]
	}
	if len(scored) == 0 {
		return "", nil
	}

	parts := make([]string, len(scored))
	for i, sc := range scored {
		parts[i] = sc.Chunk.Content
	}
	s.log.Debug("Retrieved advisories", "count", len(parts))
	return strings.Join(parts, "\n\n"), nil
}
