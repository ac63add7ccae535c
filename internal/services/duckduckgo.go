package services

import (
	"context"
	"log"
	"net/http"
	"net/url"
	"strings"

	"kb-research-report/internal/models"
	"kb-research-report/internal/utils"

	"golang.org/x/net/html"
)

const duckduckgoEndpoint = "https://html.duckduckgo.com/html/"

// DuckDuckGoRetriever scrapes the DuckDuckGo HTML endpoint. No API key, no
// official contract; the parser tolerates markup drift by returning fewer
// results rather than erroring.
type DuckDuckGoRetriever struct {
	httpClient *http.Client
}

// NewDuckDuckGoRetriever creates a retriever backed by the HTML endpoint
func NewDuckDuckGoRetriever(httpClient *http.Client) *DuckDuckGoRetriever {
	return &DuckDuckGoRetriever{httpClient: httpClient}
}

// Search runs one query and returns up to maxResults ranked results
func (r *DuckDuckGoRetriever) Search(ctx context.Context, query string, maxResults int) []models.SearchResult {
	reqURL := duckduckgoEndpoint + "?q=" + url.QueryEscape(query)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		log.Printf("WARNING: failed to build search request: %v", err)
		return nil
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		log.Printf("WARNING: search request for %q failed: %v", query, err)
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.Printf("WARNING: search for %q returned status %d", query, resp.StatusCode)
		return nil
	}

	doc, err := html.Parse(resp.Body)
	if err != nil {
		log.Printf("WARNING: failed to parse search results for %q: %v", query, err)
		return nil
	}

	results := parseDuckDuckGoResults(doc, maxResults)
	if len(results) == 0 {
		log.Printf("WARNING: search for %q returned no results", query)
	}
	return results
}

// parseDuckDuckGoResults walks the result page. Each hit is an anchor with
// class result__a; the snippet sits in a sibling with class result__snippet.
func parseDuckDuckGoResults(doc *html.Node, maxResults int) []models.SearchResult {
	var results []models.SearchResult
	var currentSnippet *string

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if maxResults > 0 && len(results) >= maxResults {
			return
		}
		if n.Type == html.ElementNode {
			class := nodeAttr(n, "class")
			switch {
			case n.Data == "a" && strings.Contains(class, "result__a"):
				href := resolveDuckDuckGoHref(nodeAttr(n, "href"))
				title := utils.NormalizeWhitespace(nodeText(n))
				if href != "" && title != "" {
					results = append(results, models.SearchResult{URL: href, Title: title})
					currentSnippet = &results[len(results)-1].Snippet
				}
				return
			case strings.Contains(class, "result__snippet"):
				if currentSnippet != nil && *currentSnippet == "" {
					*currentSnippet = utils.NormalizeWhitespace(nodeText(n))
				}
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return results
}

// resolveDuckDuckGoHref unwraps the redirect links the HTML endpoint serves
// (//duckduckgo.com/l/?uddg=<encoded target>).
func resolveDuckDuckGoHref(href string) string {
	if href == "" {
		return ""
	}
	if strings.HasPrefix(href, "//") {
		href = "https:" + href
	}
	parsed, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if strings.Contains(parsed.Path, "/l/") {
		if target := parsed.Query().Get("uddg"); target != "" {
			if decoded, err := url.QueryUnescape(target); err == nil {
				href = decoded
			}
		}
	}
	if !strings.HasPrefix(href, "http://") && !strings.HasPrefix(href, "https://") {
		return ""
	}
	return href
}

func nodeAttr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func nodeText(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}
