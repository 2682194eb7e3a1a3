package models

import (
	"time"

	dbtypes "github.com/arjun/forestwatch/internal/db"
)

// Category labels for news articles. Conservation is the default when no
// stronger signal is found.
const (
	CategoryDeforestation = "deforestation"
	CategoryFire          = "fire"
	CategoryWildlife      = "wildlife"
	CategoryPolicy        = "policy"
	CategoryConservation  = "conservation"
)

const (
	SentimentPositive = "positive"
	SentimentNegative = "negative"
	SentimentNeutral  = "neutral"
)

// Alert severity, derived from the source's confidence code.
const (
	SeverityHigh   = "high"
	SeverityMedium = "medium"
	SeverityLow    = "low"
)

const (
	AlertTypeDeforestation = "deforestation"
	AlertTypeFire          = "fire"
)

const (
	SourceGFWGlad   = "GFW_GLAD"
	SourceNASAFirms = "NASA_FIRMS"
)

// Planted-tree lifecycle. A submission starts pending and is moved exactly
// once to verified or rejected by the verification job.
const (
	TreeStatusPending  = "pending"
	TreeStatusVerified = "verified"
	TreeStatusRejected = "rejected"
)

// NewsArticle is one normalized article row. Rows are append-mostly: the
// ingestion job never updates a row once inserted, it skips known external ids.
type NewsArticle struct {
	ID          string    `db:"id" json:"id"`
	ExternalID  string    `db:"external_id" json:"external_id"`
	Title       string    `db:"title" json:"title"`
	Description string    `db:"description" json:"description"`
	SourceName  string    `db:"source_name" json:"source_name"`
	SourceURL   string    `db:"source_url" json:"source_url"`
	Category    string    `db:"category" json:"category"`
	Sentiment   string    `db:"sentiment" json:"sentiment"`
	State       *string   `db:"state" json:"state"`
	Latitude    *float64  `db:"latitude" json:"latitude"`
	Longitude   *float64  `db:"longitude" json:"longitude"`
	PublishedAt time.Time `db:"published_at" json:"published_at"`
	AISummary   *string   `db:"ai_summary" json:"ai_summary"`
}

// ForestAlert is one satellite detection, either a vegetation-loss alert or an
// active-fire detection. Coordinates come straight from the source.
type ForestAlert struct {
	ID         string          `db:"id" json:"id"`
	AlertType  string          `db:"alert_type" json:"alert_type"`
	Severity   string          `db:"severity" json:"severity"`
	Latitude   float64         `db:"latitude" json:"latitude"`
	Longitude  float64         `db:"longitude" json:"longitude"`
	Confidence float64         `db:"confidence" json:"confidence"`
	DataSource string          `db:"data_source" json:"data_source"`
	DetectedAt time.Time       `db:"detected_at" json:"detected_at"`
	RawData    dbtypes.JSONMap `db:"raw_data" json:"raw_data"`
}

// PlantedTree is a citizen tree-planting submission.
type PlantedTree struct {
	ID           string    `db:"id" json:"id"`
	PlanterName  string    `db:"planter_name" json:"planter_name"`
	PlantedDate  time.Time `db:"planted_date" json:"planted_date"`
	PhotoURL     string    `db:"photo_url" json:"photo_url"`
	Latitude     float64   `db:"latitude" json:"latitude"`
	Longitude    float64   `db:"longitude" json:"longitude"`
	Status       string    `db:"status" json:"status"`
	AIConfidence float64   `db:"ai_confidence" json:"ai_confidence"`
	TreeType     string    `db:"tree_type" json:"tree_type"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// NewsFilter narrows dashboard news reads. Zero-valued fields are ignored.
type NewsFilter struct {
	Category  string
	Sentiment string
	State     string
	Limit     int
}

// AlertFilter narrows dashboard alert reads. Zero-valued fields are ignored.
type AlertFilter struct {
	AlertType string
	Severity  string
	Limit     int
}

// StateAlertCount is the per-state aggregate the dashboard map shades with.
type StateAlertCount struct {
	State      string    `db:"state" json:"state"`
	AlertCount int       `db:"alert_count" json:"alert_count"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}
