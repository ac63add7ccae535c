package services

import (
	"bytes"
	"context"
	"encoding/json"
	"log"
	"net/http"

	"kb-research-report/internal/models"
)

const tavilyEndpoint = "https://api.tavily.com/search"

// TavilyRetriever queries the Tavily search API
type TavilyRetriever struct {
	apiKey     string
	httpClient *http.Client
}

// NewTavilyRetriever creates a retriever backed by the Tavily API
func NewTavilyRetriever(apiKey string, httpClient *http.Client) *TavilyRetriever {
	return &TavilyRetriever{apiKey: apiKey, httpClient: httpClient}
}

type tavilyRequest struct {
	APIKey     string `json:"api_key"`
	Query      string `json:"query"`
	MaxResults int    `json:"max_results"`
}

type tavilyResponse struct {
	Results []struct {
		Title   string `json:"title"`
		URL     string `json:"url"`
		Content string `json:"content"`
	} `json:"results"`
}

// Search runs one query and returns up to maxResults ranked results
func (r *TavilyRetriever) Search(ctx context.Context, query string, maxResults int) []models.SearchResult {
	body, err := json.Marshal(tavilyRequest{
		APIKey:     r.apiKey,
		Query:      query,
		MaxResults: maxResults,
	})
	if err != nil {
		log.Printf("WARNING: failed to encode tavily request: %v", err)
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tavilyEndpoint, bytes.NewReader(body))
	if err != nil {
		log.Printf("WARNING: failed to build tavily request: %v", err)
		return nil
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		log.Printf("WARNING: tavily search for %q failed: %v", query, err)
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.Printf("WARNING: tavily search for %q returned status %d", query, resp.StatusCode)
		return nil
	}

	var parsed tavilyResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		log.Printf("WARNING: failed to decode tavily response: %v", err)
		return nil
	}

	results := make([]models.SearchResult, 0, len(parsed.Results))
	for _, item := range parsed.Results {
		if item.URL == "" {
			continue
		}
		results = append(results, models.SearchResult{
			URL:     item.URL,
			Title:   item.Title,
			Snippet: item.Content,
		})
		if maxResults > 0 && len(results) >= maxResults {
			break
		}
	}
	return results
}
