package source

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/arjun/forestwatch/pkg/models"
)

const gladDateLayout = "2006-01-02"

// GladClient pulls integrated vegetation-loss alerts for India from a Global
// Forest Watch style data API.
type GladClient struct {
	baseURL string
	apiKey  string
	hc      *http.Client
	logger  *slog.Logger
	now     func() time.Time
}

func NewGladClient(baseURL, apiKey string, httpClient *http.Client, logger *slog.Logger) *GladClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &GladClient{baseURL: baseURL, apiKey: apiKey, hc: httpClient, logger: logger, now: time.Now}
}

// Fetch returns the last 7 days of alerts mapped into ForestAlert rows. Every
// failure mode degrades to an empty list; this source never aborts the job.
func (c *GladClient) Fetch(ctx context.Context) []models.ForestAlert {
	end := c.now().UTC()
	start := end.AddDate(0, 0, -7)

	sql := fmt.Sprintf(
		"SELECT latitude, longitude, gfw_integrated_alerts__date, gfw_integrated_alerts__confidence, umd_tree_cover_density_2000__threshold FROM results WHERE iso = 'IND' AND gfw_integrated_alerts__date >= '%s' AND gfw_integrated_alerts__date <= '%s' LIMIT 200",
		start.Format(gladDateLayout), end.Format(gladDateLayout),
	)
	endpoint := c.baseURL + "/dataset/gfw_integrated_alerts/latest/query?sql=" + url.QueryEscape(sql)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		c.logger.Error("glad request build failed", "error", err)
		return nil
	}
	if c.apiKey != "" {
		req.Header.Set("x-api-key", c.apiKey)
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		c.logger.Error("glad fetch failed", "error", err)
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.Error("glad api error", "status", resp.StatusCode)
		return nil
	}

	var parsed struct {
		Data []map[string]any `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		c.logger.Error("glad decode failed", "error", err)
		return nil
	}

	alerts := make([]models.ForestAlert, 0, len(parsed.Data))
	for _, row := range parsed.Data {
		lat, latOK := asFloat(row["latitude"])
		lng, lngOK := asFloat(row["longitude"])
		if !latOK || !lngOK {
			continue
		}

		severity := models.SeverityMedium
		confidence := 0.6
		if s, _ := row["gfw_integrated_alerts__confidence"].(string); s == "high" {
			severity = models.SeverityHigh
			confidence = 0.9
		}

		detected := c.now().UTC()
		if s, _ := row["gfw_integrated_alerts__date"].(string); s != "" {
			if t, err := time.Parse(gladDateLayout, s); err == nil {
				detected = t.UTC()
			}
		}

		alerts = append(alerts, models.ForestAlert{
			AlertType:  models.AlertTypeDeforestation,
			Severity:   severity,
			Latitude:   lat,
			Longitude:  lng,
			Confidence: confidence,
			DataSource: models.SourceGFWGlad,
			DetectedAt: detected,
			RawData:    row,
		})
	}
	return alerts
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}
