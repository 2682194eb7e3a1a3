package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/arjun/forestwatch/pkg/models"
)

type PgStore struct {
	db *sqlx.DB
}

func NewPgStore(db *sql.DB) *PgStore {
	return &PgStore{db: sqlx.NewDb(db, "postgres")}
}

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

func RunMigrations(db *sql.DB) error {
	initSQL := `
CREATE TABLE IF NOT EXISTS news_articles(
  id UUID PRIMARY KEY,
  external_id TEXT NOT NULL UNIQUE,
  title TEXT,
  description TEXT,
  source_name TEXT,
  source_url TEXT,
  category TEXT,
  sentiment TEXT,
  state TEXT,
  latitude DOUBLE PRECISION,
  longitude DOUBLE PRECISION,
  published_at TIMESTAMPTZ,
  ai_summary TEXT
);

CREATE INDEX IF NOT EXISTS idx_news_published ON news_articles(published_at);
CREATE INDEX IF NOT EXISTS idx_news_category ON news_articles(category);
CREATE INDEX IF NOT EXISTS idx_news_sentiment ON news_articles(sentiment);
CREATE INDEX IF NOT EXISTS idx_news_state ON news_articles(state);

CREATE TABLE IF NOT EXISTS forest_alerts(
  id UUID PRIMARY KEY,
  alert_type TEXT NOT NULL,
  severity TEXT NOT NULL,
  latitude DOUBLE PRECISION NOT NULL,
  longitude DOUBLE PRECISION NOT NULL,
  confidence DOUBLE PRECISION NOT NULL,
  data_source TEXT NOT NULL,
  detected_at TIMESTAMPTZ NOT NULL,
  raw_data JSONB
);

-- Re-invoking the ingestion job over an overlapping time window must not
-- duplicate detections; coordinates are rounded so float noise cannot defeat
-- the key.
CREATE UNIQUE INDEX IF NOT EXISTS idx_alerts_dedupe
  ON forest_alerts(data_source, detected_at, round(latitude::numeric, 4), round(longitude::numeric, 4));
CREATE INDEX IF NOT EXISTS idx_alerts_detected ON forest_alerts(detected_at);

CREATE TABLE IF NOT EXISTS planted_trees(
  id UUID PRIMARY KEY,
  planter_name TEXT NOT NULL,
  planted_date TIMESTAMPTZ NOT NULL,
  photo_url TEXT,
  latitude DOUBLE PRECISION,
  longitude DOUBLE PRECISION,
  status TEXT NOT NULL DEFAULT 'pending',
  ai_confidence DOUBLE PRECISION NOT NULL DEFAULT 0,
  tree_type TEXT NOT NULL DEFAULT '',
  created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS state_alert_counts(
  state TEXT PRIMARY KEY,
  alert_count INTEGER NOT NULL DEFAULT 0,
  updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
`
	_, err := db.Exec(initSQL)
	return err
}

// NewsArticleExists reports whether an article with this external id was
// already ingested.
func (p *PgStore) NewsArticleExists(ctx context.Context, externalID string) (bool, error) {
	var id string
	err := p.db.GetContext(ctx, &id, "SELECT id FROM news_articles WHERE external_id = $1 LIMIT 1", externalID)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check external id %s: %w", externalID, err)
	}
	return true, nil
}

func (p *PgStore) InsertNewsArticle(ctx context.Context, a *models.NewsArticle) error {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	if a.PublishedAt.IsZero() {
		a.PublishedAt = time.Now().UTC()
	}

	stmt := `
INSERT INTO news_articles (id, external_id, title, description, source_name, source_url, category, sentiment, state, latitude, longitude, published_at, ai_summary)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
`
	_, err := p.db.ExecContext(ctx, stmt,
		a.ID,
		a.ExternalID,
		a.Title,
		a.Description,
		a.SourceName,
		a.SourceURL,
		a.Category,
		a.Sentiment,
		a.State,
		a.Latitude,
		a.Longitude,
		a.PublishedAt,
		a.AISummary,
	)
	if err != nil {
		return fmt.Errorf("insert article external_id=%s: %w", a.ExternalID, err)
	}
	return nil
}

// InsertForestAlerts bulk-inserts alerts in one transaction. Rows colliding
// with the dedupe key are silently dropped.
func (p *PgStore) InsertForestAlerts(ctx context.Context, alerts []models.ForestAlert) error {
	if len(alerts) == 0 {
		return nil
	}

	tx, err := p.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}

	stmt := `
INSERT INTO forest_alerts (id, alert_type, severity, latitude, longitude, confidence, data_source, detected_at, raw_data)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9::jsonb)
ON CONFLICT DO NOTHING
`
	for _, a := range alerts {
		if a.ID == "" {
			a.ID = uuid.New().String()
		}
		_, err := tx.ExecContext(ctx, stmt,
			a.ID,
			a.AlertType,
			a.Severity,
			a.Latitude,
			a.Longitude,
			a.Confidence,
			a.DataSource,
			a.DetectedAt,
			a.RawData,
		)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("insert alert source=%s: %w", a.DataSource, err)
		}
	}

	return tx.Commit()
}

// AlertsSince returns alerts detected at or after the cutoff, newest first.
func (p *PgStore) AlertsSince(ctx context.Context, since time.Time) ([]models.ForestAlert, error) {
	rows := []models.ForestAlert{}
	query := `
SELECT id, alert_type, severity, latitude, longitude, confidence, data_source, detected_at, raw_data
FROM forest_alerts
WHERE detected_at >= $1
ORDER BY detected_at DESC
`
	err := p.db.SelectContext(ctx, &rows, query, since)
	return rows, err
}

// UpsertStateAlertCounts replaces the stored aggregate for each listed state.
func (p *PgStore) UpsertStateAlertCounts(ctx context.Context, counts map[string]int) error {
	if len(counts) == 0 {
		return nil
	}

	tx, err := p.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}

	stmt := `
INSERT INTO state_alert_counts (state, alert_count, updated_at)
VALUES ($1, $2, now())
ON CONFLICT (state) DO UPDATE
SET alert_count = EXCLUDED.alert_count,
    updated_at = now()
`
	for state, count := range counts {
		if _, err := tx.ExecContext(ctx, stmt, state, count); err != nil {
			tx.Rollback()
			return fmt.Errorf("upsert count state=%s: %w", state, err)
		}
	}
	return tx.Commit()
}

func (p *PgStore) ListStateAlertCounts(ctx context.Context) ([]models.StateAlertCount, error) {
	rows := []models.StateAlertCount{}
	err := p.db.SelectContext(ctx, &rows, "SELECT state, alert_count, updated_at FROM state_alert_counts ORDER BY alert_count DESC")
	return rows, err
}

// GetTree returns nil without an error when the submission does not exist.
func (p *PgStore) GetTree(ctx context.Context, id string) (*models.PlantedTree, error) {
	var tree models.PlantedTree
	query := `
SELECT id, planter_name, planted_date, photo_url, latitude, longitude, status, ai_confidence, tree_type, created_at
FROM planted_trees
WHERE id = $1
`
	err := p.db.GetContext(ctx, &tree, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get tree %s: %w", id, err)
	}
	return &tree, nil
}

func (p *PgStore) InsertTree(ctx context.Context, t *models.PlantedTree) error {
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	stmt := `
INSERT INTO planted_trees (id, planter_name, planted_date, photo_url, latitude, longitude, status)
VALUES ($1,$2,$3,$4,$5,$6,$7)
`
	_, err := p.db.ExecContext(ctx, stmt,
		t.ID, t.PlanterName, t.PlantedDate, t.PhotoURL, t.Latitude, t.Longitude, t.Status)
	if err != nil {
		return fmt.Errorf("insert tree: %w", err)
	}
	return nil
}

// UpdateTreeVerification writes the terminal verification result in one
// statement so status, confidence, and tree type can never diverge.
func (p *PgStore) UpdateTreeVerification(ctx context.Context, id, status string, confidence float64, treeType string) error {
	_, err := p.db.ExecContext(ctx,
		"UPDATE planted_trees SET status = $1, ai_confidence = $2, tree_type = $3 WHERE id = $4",
		status, confidence, treeType, id)
	if err != nil {
		return fmt.Errorf("update tree %s: %w", id, err)
	}
	return nil
}

func (p *PgStore) ListNews(ctx context.Context, f models.NewsFilter) ([]models.NewsArticle, error) {
	builder := psql.
		Select("id", "external_id", "title", "description", "source_name", "source_url",
			"category", "sentiment", "state", "latitude", "longitude", "published_at", "ai_summary").
		From("news_articles").
		OrderBy("published_at DESC").
		Limit(uint64(clampLimit(f.Limit, 100)))

	if f.Category != "" {
		builder = builder.Where(sq.Eq{"category": f.Category})
	}
	if f.Sentiment != "" {
		builder = builder.Where(sq.Eq{"sentiment": f.Sentiment})
	}
	if f.State != "" {
		builder = builder.Where(sq.Eq{"state": f.State})
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build news query: %w", err)
	}

	rows := []models.NewsArticle{}
	err = p.db.SelectContext(ctx, &rows, query, args...)
	return rows, err
}

func (p *PgStore) ListAlerts(ctx context.Context, f models.AlertFilter) ([]models.ForestAlert, error) {
	builder := psql.
		Select("id", "alert_type", "severity", "latitude", "longitude", "confidence",
			"data_source", "detected_at", "raw_data").
		From("forest_alerts").
		OrderBy("detected_at DESC").
		Limit(uint64(clampLimit(f.Limit, 100)))

	if f.AlertType != "" {
		builder = builder.Where(sq.Eq{"alert_type": f.AlertType})
	}
	if f.Severity != "" {
		builder = builder.Where(sq.Eq{"severity": f.Severity})
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build alerts query: %w", err)
	}

	rows := []models.ForestAlert{}
	err = p.db.SelectContext(ctx, &rows, query, args...)
	return rows, err
}

func clampLimit(limit, fallback int) int {
	if limit <= 0 || limit > 200 {
		return fallback
	}
	return limit
}
