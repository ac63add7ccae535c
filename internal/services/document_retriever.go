package services

import (
	"context"
	"fmt"
	"log"
	"sort"

	"kb-research-report/internal/config"
	"kb-research-report/internal/database"
	"kb-research-report/internal/utils"
)

// DocumentChunkStore is the persistence slice the document retriever needs
type DocumentChunkStore interface {
	GetUserChunks(ctx context.Context, userID string) ([]database.DocumentChunk, error)
	ResolveFilename(ctx context.Context, userID, documentID string) (string, error)
}

// DocumentRetriever searches a user's private document index. Candidate
// chunks are ranked by L2 distance to the query embedding, hard-filtered at
// the distance threshold, then diversified with max-marginal-relevance so the
// excerpts do not all come from the same passage.
type DocumentRetriever struct {
	store  DocumentChunkStore
	llm    LLMClient
	config config.VectorConfig
}

// NewDocumentRetriever creates a retriever over the user document index
func NewDocumentRetriever(store DocumentChunkStore, llm LLMClient, cfg config.VectorConfig) *DocumentRetriever {
	return &DocumentRetriever{store: store, llm: llm, config: cfg}
}

// Excerpts returns formatted excerpts relevant to the query, each labeled
// with its source filename. Returns nil when the index is empty, nothing
// passes the distance filter, or the provider is unavailable.
func (r *DocumentRetriever) Excerpts(ctx context.Context, userID, query string) []string {
	vectors, err := r.llm.Embed(ctx, []string{query})
	if err != nil || len(vectors) == 0 {
		log.Printf("WARNING: failed to embed document query for user %s: %v", userID, err)
		return nil
	}
	queryVec := vectors[0]

	chunks, err := r.store.GetUserChunks(ctx, userID)
	if err != nil {
		log.Printf("WARNING: failed to load document chunks for user %s: %v", userID, err)
		return nil
	}
	if len(chunks) == 0 {
		return nil
	}

	type scored struct {
		chunk    database.DocumentChunk
		distance float64
	}
	candidates := make([]scored, 0, len(chunks))
	for _, chunk := range chunks {
		dist := utils.L2Distance(queryVec, chunk.Embedding)
		if dist >= r.config.DistanceThreshold {
			continue
		}
		candidates = append(candidates, scored{chunk: chunk, distance: dist})
	}
	if len(candidates) == 0 {
		return nil
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].distance < candidates[j].distance
	})
	if r.config.FetchK > 0 && len(candidates) > r.config.FetchK {
		candidates = candidates[:r.config.FetchK]
	}

	embeddings := make([][]float32, len(candidates))
	for i, c := range candidates {
		embeddings[i] = c.chunk.Embedding
	}
	picked := utils.MMRSelect(queryVec, embeddings, r.config.TopK, r.config.MMRLambda)

	filenames := make(map[string]string)
	excerpts := make([]string, 0, len(picked))
	for _, idx := range picked {
		chunk := candidates[idx].chunk
		name, ok := filenames[chunk.DocumentID]
		if !ok {
			name, err = r.store.ResolveFilename(ctx, userID, chunk.DocumentID)
			if err != nil {
				log.Printf("WARNING: failed to resolve filename for document %s: %v", chunk.DocumentID, err)
			}
			if name == "" {
				name = "unknown document"
			}
			filenames[chunk.DocumentID] = name
		}
		excerpts = append(excerpts, fmt.Sprintf("Excerpt from file %s:\n%s", name, chunk.Text))
	}
	return excerpts
}
