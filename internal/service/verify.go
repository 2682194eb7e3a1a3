package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/arjun/forestwatch/internal/llm"
	"github.com/arjun/forestwatch/pkg/models"
)

var (
	// ErrTreeNotFound marks a verification request for a submission that does
	// not exist; unlike a failed verification this is a hard error.
	ErrTreeNotFound = errors.New("tree not found")
	// ErrVerifierUnavailable means the vision credential is missing. Server
	// misconfiguration, not a property of the submission.
	ErrVerifierUnavailable = errors.New("ai verification unavailable")
)

// verifyThreshold is the fixed business rule: a photo is verified only when
// the model says it is a tree with at least this confidence.
const verifyThreshold = 0.8

// VerifyResult is the outcome of one verification run.
type VerifyResult struct {
	Status     string  `json:"status"`
	Confidence float64 `json:"confidence"`
	TreeType   string  `json:"tree_type"`
	Reason     string  `json:"reason,omitempty"`
}

const verifyPrompt = `Analyze this image carefully. Is this a photo of a newly planted tree, sapling, or valid reforestation effort?

Strictly evaluate:
1. Is there a real plant/tree visible?
2. Does it look like a planting activity (soil disturbed, sapling, etc.)?
3. Is it NOT a random photo of something else?

Return a valid JSON object ONLY, with no markdown formatting:
{
  "is_tree": boolean,
  "confidence": number, // 0 to 100
  "tree_type": "string guess of species or type",
  "details": "short reason"
}`

type verification struct {
	IsTree     bool    `json:"is_tree"`
	Confidence float64 `json:"confidence"`
	TreeType   string  `json:"tree_type"`
	Details    string  `json:"details"`
}

// VerifyTree runs the photo-verification workflow for one pending submission:
// rate limit by caller IP, ask the vision model whether the photo shows a
// planted tree, and move the submission to verified or rejected.
func (s *Service) VerifyTree(ctx context.Context, treeID, callerIP string) (VerifyResult, error) {
	if err := s.limiter.Allow(ctx, callerIP); err != nil {
		return VerifyResult{}, err
	}

	tree, err := s.repo.GetTree(ctx, treeID)
	if err != nil {
		return VerifyResult{}, err
	}
	if tree == nil {
		return VerifyResult{}, ErrTreeNotFound
	}

	if tree.PhotoURL == "" {
		// Nothing to verify; reject without spending an AI call.
		if err := s.repo.UpdateTreeVerification(ctx, treeID, models.TreeStatusRejected, 0, "No photo provided"); err != nil {
			return VerifyResult{}, err
		}
		return VerifyResult{Status: models.TreeStatusRejected, Reason: "No photo"}, nil
	}

	if !s.vision.Configured() {
		return VerifyResult{}, ErrVerifierUnavailable
	}

	v, err := s.verifyPhoto(ctx, tree.PhotoURL)
	if err != nil {
		return VerifyResult{}, err
	}

	status := models.TreeStatusRejected
	if v.IsTree && v.Confidence >= verifyThreshold {
		status = models.TreeStatusVerified
	}
	treeType := v.TreeType
	if treeType == "" {
		treeType = "Tree"
	}

	s.logger.Info("tree verification decided",
		"tree_id", treeID, "is_tree", v.IsTree, "confidence", v.Confidence, "status", status)

	if err := s.repo.UpdateTreeVerification(ctx, treeID, status, v.Confidence, treeType); err != nil {
		return VerifyResult{}, err
	}

	return VerifyResult{Status: status, Confidence: v.Confidence, TreeType: treeType}, nil
}

// verifyPhoto asks the vision model about one photo. A transport or API error
// is returned as-is; unusable model output is a negative verification, since
// verification failures are data rather than system errors.
func (s *Service) verifyPhoto(ctx context.Context, photoURL string) (verification, error) {
	content, err := s.vision.Chat(ctx, []llm.Message{
		{Role: "user", Content: []llm.Part{
			llm.TextPart(verifyPrompt),
			llm.ImagePart(photoURL),
		}},
	}, llm.Options{})
	if err != nil {
		return verification{}, fmt.Errorf("vision call: %w", err)
	}

	v, ok := parseVerification(content)
	if !ok {
		s.logger.Warn("unparseable verification response", "content", content)
		return verification{IsTree: false, Confidence: 0, TreeType: "Unknown", Details: "Parse Error"}, nil
	}
	return v, nil
}

// parseVerification strips markdown fences the model may wrap its JSON in,
// then normalizes confidence to [0, 1]. The model may answer on either a 0-1
// or 0-100 scale: values above 2 are read as percentages, values in (1, 2]
// as 0-1 overshoot to clamp.
func parseVerification(content string) (verification, bool) {
	cleaned := strings.ReplaceAll(content, "```json", "")
	cleaned = strings.ReplaceAll(cleaned, "```", "")
	cleaned = strings.TrimSpace(cleaned)

	var v verification
	if err := json.Unmarshal([]byte(cleaned), &v); err != nil {
		return verification{}, false
	}

	if v.Confidence > 2 {
		v.Confidence /= 100
	}
	if v.Confidence < 0 {
		v.Confidence = 0
	}
	if v.Confidence > 1 {
		v.Confidence = 1
	}
	return v, true
}
