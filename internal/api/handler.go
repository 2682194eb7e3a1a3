package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/arjun/forestwatch/internal/ratelimit"
	"github.com/arjun/forestwatch/internal/service"
	"github.com/arjun/forestwatch/pkg/models"
)

type Handler struct {
	svc    *service.Service
	logger *slog.Logger
}

func NewHandler(svc *service.Service, logger *slog.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

func RegisterRoutes(r *gin.Engine, h *Handler) {
	v1 := r.Group("/v1")
	{
		v1.POST("/jobs/news", h.IngestNews)
		v1.POST("/jobs/alerts", h.IngestAlerts)

		v1.POST("/trees", h.SubmitTree)
		v1.GET("/trees/:id", h.GetTree)
		v1.POST("/trees/verify", h.VerifyTree)

		v1.GET("/news", h.ListNews)
		v1.GET("/news/negative", h.NegativeNews)
		v1.GET("/alerts", h.ListAlerts)
		v1.GET("/stats/state-alerts", h.StateAlertCounts)
	}
}

// IngestNews: POST /v1/jobs/news
// Triggers one news ingestion run.
func (h *Handler) IngestNews(c *gin.Context) {
	res, err := h.svc.IngestNews(c.Request.Context())
	if err != nil {
		h.logger.Error("news ingestion failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"fetched":  res.Fetched,
		"inserted": res.Inserted,
	})
}

// IngestAlerts: POST /v1/jobs/alerts
// Triggers one satellite-alert ingestion run.
func (h *Handler) IngestAlerts(c *gin.Context) {
	res, err := h.svc.IngestAlerts(c.Request.Context())
	if err != nil {
		h.logger.Error("alert ingestion failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"gfw_count":  res.GladCount,
		"fire_count": res.FireCount,
		"total":      res.Total,
	})
}

// VerifyTree: POST /v1/trees/verify
// Body: {"tree_id": "..."}
func (h *Handler) VerifyTree(c *gin.Context) {
	var payload struct {
		TreeID string `json:"tree_id"`
	}
	if err := c.BindJSON(&payload); err != nil || payload.TreeID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing tree_id"})
		return
	}

	res, err := h.svc.VerifyTree(c.Request.Context(), payload.TreeID, callerIP(c))
	switch {
	case errors.Is(err, ratelimit.ErrLimited):
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "Rate limit exceeded. Try again in an hour."})
		return
	case errors.Is(err, service.ErrTreeNotFound):
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Tree not found"})
		return
	case errors.Is(err, service.ErrVerifierUnavailable):
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Server misconfiguration: AI Verification unavailable"})
		return
	case err != nil:
		h.logger.Error("verification failed", "tree_id", payload.TreeID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if res.Reason != "" {
		// Business-rule rejection without an AI call (no photo). Not an error.
		c.JSON(http.StatusOK, gin.H{"status": res.Status, "reason": res.Reason})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"status":     res.Status,
		"confidence": res.Confidence,
		"tree_type":  res.TreeType,
	})
}

// SubmitTree: POST /v1/trees
func (h *Handler) SubmitTree(c *gin.Context) {
	var sub service.TreeSubmission
	if err := c.BindJSON(&sub); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json: " + err.Error()})
		return
	}
	tree, err := h.svc.SubmitTree(c.Request.Context(), sub)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": tree})
}

// GetTree: GET /v1/trees/:id
func (h *Handler) GetTree(c *gin.Context) {
	tree, err := h.svc.GetTree(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if tree == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "tree not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": tree})
}

// ListNews: GET /v1/news?category=fire&sentiment=negative&state=Odisha&limit=50
func (h *Handler) ListNews(c *gin.Context) {
	filter := models.NewsFilter{
		Category:  c.Query("category"),
		Sentiment: c.Query("sentiment"),
		State:     c.Query("state"),
		Limit:     parseLimit(c.DefaultQuery("limit", "100")),
	}
	res, err := h.svc.ListNews(c.Request.Context(), filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"meta": gin.H{"count": len(res), "limit": filter.Limit},
		"data": res,
	})
}

// NegativeNews: GET /v1/news/negative?limit=50
// The dashboard's alert feed: recent negative-sentiment articles.
func (h *Handler) NegativeNews(c *gin.Context) {
	limit := parseLimit(c.DefaultQuery("limit", "50"))
	res, err := h.svc.NegativeNews(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"meta": gin.H{"count": len(res), "limit": limit},
		"data": res,
	})
}

// ListAlerts: GET /v1/alerts?alert_type=fire&severity=high&limit=100
func (h *Handler) ListAlerts(c *gin.Context) {
	filter := models.AlertFilter{
		AlertType: c.Query("alert_type"),
		Severity:  c.Query("severity"),
		Limit:     parseLimit(c.DefaultQuery("limit", "100")),
	}
	res, err := h.svc.ListAlerts(c.Request.Context(), filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"meta": gin.H{"count": len(res), "limit": filter.Limit},
		"data": res,
	})
}

// StateAlertCounts: GET /v1/stats/state-alerts
func (h *Handler) StateAlertCounts(c *gin.Context) {
	res, err := h.svc.StateAlertCounts(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": res})
}

// callerIP prefers the first X-Forwarded-For entry, the address the platform
// front-door saw, over the direct peer.
func callerIP(c *gin.Context) string {
	if xff := c.GetHeader("X-Forwarded-For"); xff != "" {
		return strings.TrimSpace(strings.Split(xff, ",")[0])
	}
	return c.ClientIP()
}

// parseLimit ensures a sane integer limit, with bounds
func parseLimit(s string) int {
	l, err := strconv.Atoi(s)
	if err != nil || l <= 0 {
		return 50
	}
	if l > 200 {
		return 200
	}
	return l
}
