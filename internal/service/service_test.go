package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/arjun/forestwatch/internal/classify"
	"github.com/arjun/forestwatch/internal/llm"
	"github.com/arjun/forestwatch/internal/source"
	"github.com/arjun/forestwatch/pkg/models"
)

// fakeStore is an in-memory Store for job tests.
type fakeStore struct {
	articles      map[string]models.NewsArticle
	failExternal  map[string]bool
	alerts        []models.ForestAlert
	insertAlerts  error
	counts        map[string]int
	trees         map[string]*models.PlantedTree
	verifications []treeUpdate
}

type treeUpdate struct {
	id         string
	status     string
	confidence float64
	treeType   string
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		articles:     map[string]models.NewsArticle{},
		failExternal: map[string]bool{},
		counts:       map[string]int{},
		trees:        map[string]*models.PlantedTree{},
	}
}

func (f *fakeStore) NewsArticleExists(_ context.Context, externalID string) (bool, error) {
	_, ok := f.articles[externalID]
	return ok, nil
}

func (f *fakeStore) InsertNewsArticle(_ context.Context, a *models.NewsArticle) error {
	if f.failExternal[a.ExternalID] {
		return errors.New("insert failed")
	}
	if _, ok := f.articles[a.ExternalID]; ok {
		return errors.New("duplicate external_id")
	}
	f.articles[a.ExternalID] = *a
	return nil
}

func (f *fakeStore) ListNews(_ context.Context, _ models.NewsFilter) ([]models.NewsArticle, error) {
	out := make([]models.NewsArticle, 0, len(f.articles))
	for _, a := range f.articles {
		out = append(out, a)
	}
	return out, nil
}

func (f *fakeStore) InsertForestAlerts(_ context.Context, alerts []models.ForestAlert) error {
	if f.insertAlerts != nil {
		return f.insertAlerts
	}
	f.alerts = append(f.alerts, alerts...)
	return nil
}

func (f *fakeStore) AlertsSince(_ context.Context, since time.Time) ([]models.ForestAlert, error) {
	out := []models.ForestAlert{}
	for _, a := range f.alerts {
		if !a.DetectedAt.Before(since) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeStore) ListAlerts(_ context.Context, _ models.AlertFilter) ([]models.ForestAlert, error) {
	return f.alerts, nil
}

func (f *fakeStore) UpsertStateAlertCounts(_ context.Context, counts map[string]int) error {
	f.counts = counts
	return nil
}

func (f *fakeStore) ListStateAlertCounts(_ context.Context) ([]models.StateAlertCount, error) {
	out := []models.StateAlertCount{}
	for state, n := range f.counts {
		out = append(out, models.StateAlertCount{State: state, AlertCount: n})
	}
	return out, nil
}

func (f *fakeStore) GetTree(_ context.Context, id string) (*models.PlantedTree, error) {
	return f.trees[id], nil
}

func (f *fakeStore) InsertTree(_ context.Context, t *models.PlantedTree) error {
	if t.ID == "" {
		t.ID = "tree-" + t.PlanterName
	}
	f.trees[t.ID] = t
	return nil
}

func (f *fakeStore) UpdateTreeVerification(_ context.Context, id, status string, confidence float64, treeType string) error {
	f.verifications = append(f.verifications, treeUpdate{id, status, confidence, treeType})
	if t, ok := f.trees[id]; ok {
		t.Status = status
		t.AIConfidence = confidence
		t.TreeType = treeType
	}
	return nil
}

type fakeNews struct {
	articles []source.RawArticle
}

func (f *fakeNews) Latest(context.Context) []source.RawArticle {
	return f.articles
}

type fakeAlerts struct {
	alerts []models.ForestAlert
}

func (f *fakeAlerts) Fetch(context.Context) []models.ForestAlert {
	return f.alerts
}

type fakeLimiter struct {
	err error
	ips []string
}

func (f *fakeLimiter) Allow(_ context.Context, ip string) error {
	f.ips = append(f.ips, ip)
	return f.err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestService(repo Store, deps Deps) *Service {
	deps.Repo = repo
	if deps.Classifier == nil {
		deps.Classifier = classify.KeywordClassifier{}
	}
	if deps.Limiter == nil {
		deps.Limiter = &fakeLimiter{}
	}
	if deps.News == nil {
		deps.News = &fakeNews{}
	}
	if deps.Glad == nil {
		deps.Glad = &fakeAlerts{}
	}
	if deps.Fires == nil {
		deps.Fires = &fakeAlerts{}
	}
	if deps.Vision == nil {
		deps.Vision = llm.NewClient("", "", "", nil)
	}
	deps.Logger = discardLogger()
	return NewService(deps)
}
