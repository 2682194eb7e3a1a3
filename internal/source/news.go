package source

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"
)

// RawArticle is the article shape returned by the news-search API.
type RawArticle struct {
	ArticleID   string `json:"article_id"`
	Link        string `json:"link"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Content     string `json:"content"`
	SourceName  string `json:"source_name"`
	SourceID    string `json:"source_id"`
	PubDate     string `json:"pubDate"`
}

// ExternalID is the dedupe key: the source's own id, or the canonical link
// when the id is missing. Empty means the article cannot be deduplicated.
func (a RawArticle) ExternalID() string {
	if a.ArticleID != "" {
		return a.ArticleID
	}
	return a.Link
}

// Source prefers the display name over the source id.
func (a RawArticle) Source() string {
	if a.SourceName != "" {
		return a.SourceName
	}
	return a.SourceID
}

// PublishedAt parses the source timestamp, defaulting to fallback when the
// field is absent or unparseable.
func (a RawArticle) PublishedAt(fallback time.Time) time.Time {
	for _, layout := range []string{"2006-01-02 15:04:05", time.RFC3339} {
		if t, err := time.Parse(layout, a.PubDate); err == nil {
			return t.UTC()
		}
	}
	return fallback
}

// NewsClient queries a NewsData-style latest-news endpoint for India
// forest/environment coverage.
type NewsClient struct {
	baseURL string
	apiKey  string
	hc      *http.Client
	logger  *slog.Logger
}

func NewNewsClient(baseURL, apiKey string, httpClient *http.Client, logger *slog.Logger) *NewsClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &NewsClient{baseURL: baseURL, apiKey: apiKey, hc: httpClient, logger: logger}
}

// Latest fetches up to 25 recent articles. Any upstream problem degrades to an
// empty list so a dead news source never fails the ingestion run.
func (c *NewsClient) Latest(ctx context.Context) []RawArticle {
	if c.apiKey == "" {
		c.logger.Warn("news api key not set, skipping news fetch")
		return nil
	}

	q := url.Values{}
	q.Set("apikey", c.apiKey)
	q.Set("q", "forest OR deforestation OR wildlife OR environment")
	q.Set("country", "in")
	q.Set("language", "en")
	q.Set("category", "environment")
	q.Set("size", "25")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/1/latest?"+q.Encode(), nil)
	if err != nil {
		c.logger.Error("news request build failed", "error", err)
		return nil
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		c.logger.Error("news fetch failed", "error", err)
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.Error("news api error", "status", resp.StatusCode)
		return nil
	}

	var parsed struct {
		Results []RawArticle `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		c.logger.Error("news decode failed", "error", fmt.Errorf("decode news response: %w", err))
		return nil
	}
	return parsed.Results
}
