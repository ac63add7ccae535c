package services

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"kb-research-report/internal/config"
	"kb-research-report/internal/models"
)

// Retriever finds candidate source URLs for a query. Implementations degrade
// to an empty result set on provider failure; a dead search provider reduces
// report quality but never aborts a run.
type Retriever interface {
	Search(ctx context.Context, query string, maxResults int) []models.SearchResult
}

// NewRetriever builds the configured search provider
func NewRetriever(cfg config.RetrieverConfig) (Retriever, error) {
	httpClient := &http.Client{Timeout: 15 * time.Second}

	switch cfg.Provider {
	case "duckduckgo", "":
		return NewDuckDuckGoRetriever(httpClient), nil
	case "tavily":
		if cfg.TavilyAPIKey == "" {
			return nil, fmt.Errorf("tavily retriever requires an API key")
		}
		return NewTavilyRetriever(cfg.TavilyAPIKey, httpClient), nil
	default:
		return nil, fmt.Errorf("unknown retriever provider %q", cfg.Provider)
	}
}
