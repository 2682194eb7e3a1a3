package service

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arjun/forestwatch/internal/llm"
	"github.com/arjun/forestwatch/internal/ratelimit"
	"github.com/arjun/forestwatch/pkg/models"
)

func pendingTree(id string) *models.PlantedTree {
	return &models.PlantedTree{
		ID:          id,
		PlanterName: "Asha",
		PlantedDate: time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
		PhotoURL:    "https://photos.example.com/" + id + ".jpg",
		Status:      models.TreeStatusPending,
	}
}

// visionServer returns an OpenAI-shaped completion whose content is raw.
func visionServer(t *testing.T, raw string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"choices":[{"message":{"content":%q}}]}`, raw)
	}))
}

func verifyService(t *testing.T, repo *fakeStore, modelContent string) (*Service, *httptest.Server) {
	t.Helper()
	srv := visionServer(t, modelContent)
	svc := newTestService(repo, Deps{
		Vision: llm.NewClient(srv.URL, "vision-model", "key", srv.Client()),
	})
	return svc, srv
}

func TestVerifyTreeThresholdBoundary(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		content string
		status  string
		conf    float64
	}{
		{
			name:    "just under threshold",
			content: `{"is_tree":true,"confidence":0.79,"tree_type":"Neem"}`,
			status:  models.TreeStatusRejected,
			conf:    0.79,
		},
		{
			name:    "at threshold",
			content: `{"is_tree":true,"confidence":0.80,"tree_type":"Neem"}`,
			status:  models.TreeStatusVerified,
			conf:    0.80,
		},
		{
			name:    "confident but not a tree",
			content: `{"is_tree":false,"confidence":0.99,"tree_type":"Car"}`,
			status:  models.TreeStatusRejected,
			conf:    0.99,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			repo := newFakeStore()
			repo.trees["t1"] = pendingTree("t1")
			svc, srv := verifyService(t, repo, tc.content)
			defer srv.Close()

			res, err := svc.VerifyTree(context.Background(), "t1", "1.2.3.4")
			require.NoError(t, err)
			assert.Equal(t, tc.status, res.Status)
			assert.InDelta(t, tc.conf, res.Confidence, 1e-9)
			require.Len(t, repo.verifications, 1)
			assert.Equal(t, tc.status, repo.verifications[0].status)
		})
	}
}

func TestVerifyTreeNormalizesPercentScaleConfidence(t *testing.T) {
	t.Parallel()

	repo := newFakeStore()
	repo.trees["t1"] = pendingTree("t1")
	svc, srv := verifyService(t, repo, `{"is_tree":true,"confidence":85,"tree_type":"Banyan"}`)
	defer srv.Close()

	res, err := svc.VerifyTree(context.Background(), "t1", "1.2.3.4")
	require.NoError(t, err)
	assert.InDelta(t, 0.85, res.Confidence, 1e-9)
	assert.Equal(t, models.TreeStatusVerified, res.Status)
}

func TestVerifyTreeClampsOverflowConfidence(t *testing.T) {
	t.Parallel()

	repo := newFakeStore()
	repo.trees["t1"] = pendingTree("t1")
	svc, srv := verifyService(t, repo, `{"is_tree":true,"confidence":1.5,"tree_type":"Peepal"}`)
	defer srv.Close()

	res, err := svc.VerifyTree(context.Background(), "t1", "1.2.3.4")
	require.NoError(t, err)
	assert.Equal(t, 1.0, res.Confidence)
	assert.Equal(t, models.TreeStatusVerified, res.Status)
}

func TestVerifyTreeClampsPercentOverflow(t *testing.T) {
	t.Parallel()

	repo := newFakeStore()
	repo.trees["t1"] = pendingTree("t1")
	svc, srv := verifyService(t, repo, `{"is_tree":true,"confidence":150,"tree_type":"Peepal"}`)
	defer srv.Close()

	res, err := svc.VerifyTree(context.Background(), "t1", "1.2.3.4")
	require.NoError(t, err)
	assert.Equal(t, 1.0, res.Confidence)
}

func TestVerifyTreeStripsMarkdownFences(t *testing.T) {
	t.Parallel()

	repo := newFakeStore()
	repo.trees["t1"] = pendingTree("t1")
	svc, srv := verifyService(t, repo, "```json\n{\"is_tree\":true,\"confidence\":90,\"tree_type\":\"Teak\"}\n```")
	defer srv.Close()

	res, err := svc.VerifyTree(context.Background(), "t1", "1.2.3.4")
	require.NoError(t, err)
	assert.Equal(t, models.TreeStatusVerified, res.Status)
	assert.Equal(t, "Teak", res.TreeType)
}

func TestVerifyTreeUnparseableModelOutputRejects(t *testing.T) {
	t.Parallel()

	repo := newFakeStore()
	repo.trees["t1"] = pendingTree("t1")
	svc, srv := verifyService(t, repo, "I think this might be a tree, hard to say!")
	defer srv.Close()

	res, err := svc.VerifyTree(context.Background(), "t1", "1.2.3.4")
	require.NoError(t, err)
	assert.Equal(t, models.TreeStatusRejected, res.Status)
	assert.Equal(t, 0.0, res.Confidence)
	assert.Equal(t, "Unknown", res.TreeType)
}

func TestVerifyTreeDefaultsTreeType(t *testing.T) {
	t.Parallel()

	repo := newFakeStore()
	repo.trees["t1"] = pendingTree("t1")
	svc, srv := verifyService(t, repo, `{"is_tree":true,"confidence":95}`)
	defer srv.Close()

	res, err := svc.VerifyTree(context.Background(), "t1", "1.2.3.4")
	require.NoError(t, err)
	assert.Equal(t, "Tree", res.TreeType)
}

func TestVerifyTreeMissingPhotoShortCircuits(t *testing.T) {
	t.Parallel()

	repo := newFakeStore()
	tree := pendingTree("t1")
	tree.PhotoURL = ""
	repo.trees["t1"] = tree

	// An unconfigured vision client proves no AI call is attempted.
	svc := newTestService(repo, Deps{})

	res, err := svc.VerifyTree(context.Background(), "t1", "1.2.3.4")
	require.NoError(t, err)
	assert.Equal(t, models.TreeStatusRejected, res.Status)
	assert.Equal(t, "No photo", res.Reason)
	require.Len(t, repo.verifications, 1)
	assert.Equal(t, 0.0, repo.verifications[0].confidence)
}

func TestVerifyTreeMissingRecordIsHardError(t *testing.T) {
	t.Parallel()

	svc := newTestService(newFakeStore(), Deps{})
	_, err := svc.VerifyTree(context.Background(), "ghost", "1.2.3.4")
	assert.ErrorIs(t, err, ErrTreeNotFound)
}

func TestVerifyTreeMissingCredentialIsHardError(t *testing.T) {
	t.Parallel()

	repo := newFakeStore()
	repo.trees["t1"] = pendingTree("t1")
	svc := newTestService(repo, Deps{}) // unconfigured vision client

	_, err := svc.VerifyTree(context.Background(), "t1", "1.2.3.4")
	assert.ErrorIs(t, err, ErrVerifierUnavailable)
	assert.Empty(t, repo.verifications, "no status transition on misconfiguration")
}

func TestVerifyTreeRateLimited(t *testing.T) {
	t.Parallel()

	repo := newFakeStore()
	repo.trees["t1"] = pendingTree("t1")
	limiter := &fakeLimiter{err: ratelimit.ErrLimited}
	svc := newTestService(repo, Deps{Limiter: limiter})

	_, err := svc.VerifyTree(context.Background(), "t1", "9.9.9.9")
	assert.ErrorIs(t, err, ratelimit.ErrLimited)
	assert.Equal(t, []string{"9.9.9.9"}, limiter.ips)
}
