package services

import (
	"context"
	"io"
	"log"
	"net/http"
	"strings"
	"sync"

	"kb-research-report/internal/config"
	"kb-research-report/internal/models"
	"kb-research-report/internal/utils"

	"golang.org/x/net/html"
	"golang.org/x/sync/errgroup"
)

// Scraper fetches pages and extracts their readable content. Every page is
// independent: one bad URL only removes itself from the result set.
type Scraper struct {
	config     config.ScraperConfig
	httpClient *http.Client
}

// NewScraper creates a scraper with its own HTTP client
func NewScraper(cfg config.ScraperConfig) *Scraper {
	return &Scraper{
		config:     cfg,
		httpClient: &http.Client{Timeout: cfg.FetchTimeout},
	}
}

// Scrape fetches the given URLs concurrently and returns the pages that pass
// the quality gate: a page with no title, no text, or text shorter than the
// configured minimum is dropped.
func (s *Scraper) Scrape(ctx context.Context, urls []string) []models.ScrapedDocument {
	if len(urls) == 0 {
		return nil
	}

	concurrency := s.config.Concurrency
	if concurrency <= 0 {
		concurrency = 8
	}

	var mutex sync.Mutex
	var docs []models.ScrapedDocument

	group, ctx := errgroup.WithContext(ctx)
	group.SetLimit(concurrency)
	for _, pageURL := range urls {
		pageURL := pageURL
		group.Go(func() error {
			doc, err := s.scrapeOne(ctx, pageURL)
			if err != nil {
				log.Printf("WARNING: failed to scrape %s: %v", pageURL, err)
				return nil
			}
			if doc == nil {
				return nil
			}
			mutex.Lock()
			docs = append(docs, *doc)
			mutex.Unlock()
			return nil
		})
	}
	_ = group.Wait()

	return docs
}

// scrapeOne fetches and extracts a single page. Returns (nil, nil) when the
// page fails the quality gate.
func (s *Scraper) scrapeOne(ctx context.Context, pageURL string) (*models.ScrapedDocument, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", s.config.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.Printf("WARNING: %s returned status %d, skipping", pageURL, resp.StatusCode)
		return nil, nil
	}
	if ct := resp.Header.Get("Content-Type"); ct != "" && !strings.Contains(ct, "html") {
		return nil, nil
	}

	body := io.LimitReader(resp.Body, s.config.MaxBodyBytes)
	root, err := html.Parse(body)
	if err != nil {
		return nil, err
	}

	doc := s.extract(pageURL, root)
	if doc.Title == "" || len(doc.Text) < s.config.MinTextLength {
		return nil, nil
	}
	return doc, nil
}

// extract pulls the structured content out of a parsed page
func (s *Scraper) extract(pageURL string, root *html.Node) *models.ScrapedDocument {
	doc := &models.ScrapedDocument{URL: pageURL}

	var textParts []string
	var walk func(n *html.Node, skip bool)
	walk = func(n *html.Node, skip bool) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "noscript", "nav", "header", "footer", "aside", "form":
				return
			case "title":
				if doc.Title == "" {
					doc.Title = utils.NormalizeWhitespace(nodeText(n))
				}
				return
			case "meta":
				s.extractMeta(n, doc)
				return
			case "table":
				// Tables are extracted separately; keep their prose out of
				// the running text.
				return
			case "p", "li", "h1", "h2", "h3", "h4", "blockquote", "pre", "td":
				if !skip {
					if text := utils.NormalizeWhitespace(nodeText(n)); text != "" {
						textParts = append(textParts, text)
					}
					skip = true
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c, skip)
		}
	}
	walk(root, false)

	doc.Text = strings.Join(textParts, "\n")
	doc.Tables = ExtractTables(root)
	return doc
}

// extractMeta reads the metadata tags pages commonly carry
func (s *Scraper) extractMeta(n *html.Node, doc *models.ScrapedDocument) {
	name := nodeAttr(n, "name")
	property := nodeAttr(n, "property")
	content := strings.TrimSpace(nodeAttr(n, "content"))
	if content == "" {
		return
	}

	switch {
	case property == "og:title" && doc.Title == "":
		doc.Title = content
	case property == "og:image" && doc.TopImage == "":
		doc.TopImage = content
	case property == "article:published_time" && doc.PublishDate == "":
		doc.PublishDate = content
	case (name == "date" || name == "publish-date") && doc.PublishDate == "":
		doc.PublishDate = content
	case name == "author":
		for _, author := range strings.Split(content, ",") {
			if author = strings.TrimSpace(author); author != "" {
				doc.Authors = append(doc.Authors, author)
			}
		}
	case name == "keywords":
		for _, kw := range strings.Split(content, ",") {
			if kw = strings.TrimSpace(kw); kw != "" {
				doc.Keywords = append(doc.Keywords, kw)
			}
		}
	}
}
