package service

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/arjun/forestwatch/internal/geocode"
	"github.com/arjun/forestwatch/pkg/models"
)

// AlertResult reports how many alerts each satellite source produced.
type AlertResult struct {
	GladCount int `json:"gfw_count"`
	FireCount int `json:"fire_count"`
	Total     int `json:"total"`
}

// stateCountWindow bounds the per-state aggregate to recent detections.
const stateCountWindow = 30 // days

// IngestAlerts runs the vegetation-loss and active-fire fetchers concurrently,
// bulk-inserts whatever they produced, and refreshes the per-state aggregate.
// Either source failing (it returns an empty list) or the insert failing only
// degrades the run, it never fails it.
func (s *Service) IngestAlerts(ctx context.Context) (AlertResult, error) {
	var gladAlerts, fireAlerts []models.ForestAlert

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		gladAlerts = s.glad.Fetch(gctx)
		return nil
	})
	g.Go(func() error {
		fireAlerts = s.fires.Fetch(gctx)
		return nil
	})
	_ = g.Wait()

	all := make([]models.ForestAlert, 0, len(gladAlerts)+len(fireAlerts))
	all = append(all, gladAlerts...)
	all = append(all, fireAlerts...)

	if len(all) > 0 {
		if err := s.repo.InsertForestAlerts(ctx, all); err != nil {
			s.logger.Error("alert insert failed", "count", len(all), "error", err)
		}
	}

	if err := s.RefreshStateAlertCounts(ctx); err != nil {
		s.logger.Error("state alert count refresh failed", "error", err)
	}

	return AlertResult{
		GladCount: len(gladAlerts),
		FireCount: len(fireAlerts),
		Total:     len(all),
	}, nil
}

// RefreshStateAlertCounts recomputes per-state alert counts over the recent
// window by bucketing each detection to its nearest state centroid.
func (s *Service) RefreshStateAlertCounts(ctx context.Context) error {
	alerts, err := s.repo.AlertsSince(ctx, s.now().UTC().AddDate(0, 0, -stateCountWindow))
	if err != nil {
		return err
	}

	counts := make(map[string]int)
	for _, a := range alerts {
		counts[geocode.NearestState(a.Latitude, a.Longitude)]++
	}
	return s.repo.UpsertStateAlertCounts(ctx, counts)
}

// ListAlerts is the dashboard alert map feed.
func (s *Service) ListAlerts(ctx context.Context, f models.AlertFilter) ([]models.ForestAlert, error) {
	return s.repo.ListAlerts(ctx, f)
}

// StateAlertCounts returns the stored per-state aggregate.
func (s *Service) StateAlertCounts(ctx context.Context) ([]models.StateAlertCount, error) {
	return s.repo.ListStateAlertCounts(ctx)
}
