package service

import (
	"context"
	"fmt"
	"time"

	"github.com/arjun/forestwatch/pkg/models"
)

// TreeSubmission is the citizen-facing planting report.
type TreeSubmission struct {
	PlanterName string    `json:"planter_name"`
	PlantedDate time.Time `json:"planted_date"`
	PhotoURL    string    `json:"photo_url"`
	Latitude    float64   `json:"latitude"`
	Longitude   float64   `json:"longitude"`
}

// SubmitTree creates a pending submission. Verification happens later through
// VerifyTree; submissions always start pending.
func (s *Service) SubmitTree(ctx context.Context, sub TreeSubmission) (*models.PlantedTree, error) {
	if sub.PlanterName == "" {
		return nil, fmt.Errorf("planter_name is required")
	}
	if sub.PlantedDate.IsZero() {
		sub.PlantedDate = s.now().UTC()
	}

	tree := &models.PlantedTree{
		PlanterName: sub.PlanterName,
		PlantedDate: sub.PlantedDate,
		PhotoURL:    sub.PhotoURL,
		Latitude:    sub.Latitude,
		Longitude:   sub.Longitude,
		Status:      models.TreeStatusPending,
	}
	if err := s.repo.InsertTree(ctx, tree); err != nil {
		return nil, err
	}
	return tree, nil
}

// GetTree returns one submission, or nil when it does not exist.
func (s *Service) GetTree(ctx context.Context, id string) (*models.PlantedTree, error) {
	return s.repo.GetTree(ctx, id)
}
