package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/arjun/forestwatch/internal/classify"
	"github.com/arjun/forestwatch/internal/llm"
	"github.com/arjun/forestwatch/internal/source"
	"github.com/arjun/forestwatch/pkg/models"
)

// Store is everything the jobs need from the persistence layer.
type Store interface {
	NewsArticleExists(ctx context.Context, externalID string) (bool, error)
	InsertNewsArticle(ctx context.Context, a *models.NewsArticle) error
	ListNews(ctx context.Context, f models.NewsFilter) ([]models.NewsArticle, error)

	InsertForestAlerts(ctx context.Context, alerts []models.ForestAlert) error
	AlertsSince(ctx context.Context, since time.Time) ([]models.ForestAlert, error)
	ListAlerts(ctx context.Context, f models.AlertFilter) ([]models.ForestAlert, error)
	UpsertStateAlertCounts(ctx context.Context, counts map[string]int) error
	ListStateAlertCounts(ctx context.Context) ([]models.StateAlertCount, error)

	GetTree(ctx context.Context, id string) (*models.PlantedTree, error)
	InsertTree(ctx context.Context, t *models.PlantedTree) error
	UpdateTreeVerification(ctx context.Context, id, status string, confidence float64, treeType string) error
}

// NewsSource yields raw articles from the upstream news API.
type NewsSource interface {
	Latest(ctx context.Context) []source.RawArticle
}

// AlertSource yields normalized satellite alerts from one upstream feed.
type AlertSource interface {
	Fetch(ctx context.Context) []models.ForestAlert
}

// Limiter gates verification calls per caller IP.
type Limiter interface {
	Allow(ctx context.Context, ip string) error
}

// Deps wires all collaborators into the service.
type Deps struct {
	Repo       Store
	Classifier classify.Classifier
	Limiter    Limiter
	News       NewsSource
	Glad       AlertSource
	Fires      AlertSource
	Vision     *llm.Client
	Logger     *slog.Logger
}

// Service carries the ingestion and verification jobs. Each method is one
// stateless request-response unit; all state lives in the store.
type Service struct {
	repo       Store
	classifier classify.Classifier
	limiter    Limiter
	news       NewsSource
	glad       AlertSource
	fires      AlertSource
	vision     *llm.Client
	logger     *slog.Logger
	now        func() time.Time
}

func NewService(deps Deps) *Service {
	return &Service{
		repo:       deps.Repo,
		classifier: deps.Classifier,
		limiter:    deps.Limiter,
		news:       deps.News,
		glad:       deps.Glad,
		fires:      deps.Fires,
		vision:     deps.Vision,
		logger:     deps.Logger,
		now:        time.Now,
	}
}
