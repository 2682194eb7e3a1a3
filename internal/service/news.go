package service

import (
	"context"

	"github.com/arjun/forestwatch/internal/geocode"
	"github.com/arjun/forestwatch/pkg/models"
)

// NewsResult reports how one ingestion run went.
type NewsResult struct {
	Fetched  int `json:"fetched"`
	Inserted int `json:"inserted"`
}

// IngestNews pulls the latest upstream articles and persists the ones not
// seen before. Articles are processed sequentially, in source order; a failed
// insert is logged and skipped so one bad row never aborts the run.
func (s *Service) IngestNews(ctx context.Context) (NewsResult, error) {
	articles := s.news.Latest(ctx)
	result := NewsResult{Fetched: len(articles)}

	for _, art := range articles {
		externalID := art.ExternalID()
		if externalID == "" {
			// No id and no link: nothing to dedupe on, drop it.
			continue
		}

		exists, err := s.repo.NewsArticleExists(ctx, externalID)
		if err != nil {
			// The unique constraint on external_id backstops a failed check.
			s.logger.Warn("dedupe check failed", "external_id", externalID, "error", err)
		}
		if exists {
			continue
		}

		cls := s.classifier.Classify(ctx, art.Title, art.Description)

		record := models.NewsArticle{
			ExternalID:  externalID,
			Title:       art.Title,
			Description: art.Description,
			SourceName:  art.Source(),
			SourceURL:   art.Link,
			Category:    cls.Category,
			Sentiment:   cls.Sentiment,
			PublishedAt: art.PublishedAt(s.now().UTC()),
		}
		if cls.Summary != "" {
			summary := cls.Summary
			record.AISummary = &summary
		}

		if loc := geocode.ExtractState(art.Title + " " + art.Description + " " + art.Content); loc != nil {
			record.State = &loc.State
			record.Latitude = &loc.Latitude
			record.Longitude = &loc.Longitude
		}

		if err := s.repo.InsertNewsArticle(ctx, &record); err != nil {
			s.logger.Error("article insert failed", "external_id", externalID, "error", err)
			continue
		}
		result.Inserted++
	}

	return result, nil
}

// ListNews is the dashboard news feed.
func (s *Service) ListNews(ctx context.Context, f models.NewsFilter) ([]models.NewsArticle, error) {
	return s.repo.ListNews(ctx, f)
}

// NegativeNews is the dashboard alert feed: recent bad-news articles.
func (s *Service) NegativeNews(ctx context.Context, limit int) ([]models.NewsArticle, error) {
	return s.repo.ListNews(ctx, models.NewsFilter{Sentiment: models.SentimentNegative, Limit: limit})
}
