package source

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/arjun/forestwatch/pkg/models"
)

// maxFireRows caps how many detections one run ingests.
const maxFireRows = 200

// FirmsClient pulls the last 24h of VIIRS active-fire detections for India
// from a NASA FIRMS style CSV feed.
type FirmsClient struct {
	baseURL string
	apiKey  string
	hc      *http.Client
	logger  *slog.Logger
}

func NewFirmsClient(baseURL, apiKey string, httpClient *http.Client, logger *slog.Logger) *FirmsClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &FirmsClient{baseURL: baseURL, apiKey: apiKey, hc: httpClient, logger: logger}
}

// Fetch returns fire detections mapped into ForestAlert rows. A missing
// credential or any feed problem degrades to an empty list.
func (c *FirmsClient) Fetch(ctx context.Context) []models.ForestAlert {
	if c.apiKey == "" {
		c.logger.Warn("fire api key not set, skipping fire data")
		return nil
	}

	endpoint := fmt.Sprintf("%s/api/country/csv/%s/VIIRS_SNPP/IND/1", c.baseURL, c.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		c.logger.Error("fire request build failed", "error", err)
		return nil
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		c.logger.Error("fire fetch failed", "error", err)
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.Error("fire api error", "status", resp.StatusCode)
		return nil
	}

	alerts, err := parseFireCSV(resp.Body)
	if err != nil {
		c.logger.Error("fire csv parse failed", "error", err)
		return nil
	}
	return alerts
}

// parseFireCSV locates columns by header name rather than fixed position so a
// reordered feed still parses.
func parseFireCSV(r io.Reader) ([]models.ForestAlert, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read fire csv: %w", err)
	}
	if len(records) < 2 {
		return nil, fmt.Errorf("fire csv too short: %d lines", len(records))
	}

	idx := map[string]int{}
	for i, name := range records[0] {
		idx[strings.TrimSpace(name)] = i
	}
	for _, required := range []string{"latitude", "longitude", "confidence", "acq_date", "acq_time"} {
		if _, ok := idx[required]; !ok {
			return nil, fmt.Errorf("fire csv missing column %q", required)
		}
	}

	rows := records[1:]
	if len(rows) > maxFireRows {
		rows = rows[:maxFireRows]
	}

	alerts := make([]models.ForestAlert, 0, len(rows))
	for _, cols := range rows {
		lat, latErr := strconv.ParseFloat(field(cols, idx["latitude"]), 64)
		lng, lngErr := strconv.ParseFloat(field(cols, idx["longitude"]), 64)
		if latErr != nil || lngErr != nil {
			continue
		}

		code := field(cols, idx["confidence"])
		severity, confidence := fireSeverity(code)

		raw := map[string]any{"confidence": code}
		if i, ok := idx["frp"]; ok {
			raw["frp"] = field(cols, i)
		}

		alerts = append(alerts, models.ForestAlert{
			AlertType:  models.AlertTypeFire,
			Severity:   severity,
			Latitude:   lat,
			Longitude:  lng,
			Confidence: confidence,
			DataSource: models.SourceNASAFirms,
			DetectedAt: fireDetectedAt(field(cols, idx["acq_date"]), field(cols, idx["acq_time"])),
			RawData:    raw,
		})
	}
	return alerts, nil
}

// fireSeverity maps the feed's one-letter confidence code to a severity bucket
// and a normalized confidence value.
func fireSeverity(code string) (string, float64) {
	switch code {
	case "h":
		return models.SeverityHigh, 0.9
	case "n":
		return models.SeverityMedium, 0.7
	default:
		return models.SeverityLow, 0.4
	}
}

// fireDetectedAt combines acq_date (2006-01-02) and acq_time (HHMM, possibly
// without leading zeros) into a UTC timestamp.
func fireDetectedAt(date, clock string) time.Time {
	for len(clock) < 4 {
		clock = "0" + clock
	}
	t, err := time.Parse("2006-01-02 1504", date+" "+clock)
	if err != nil {
		t, err = time.Parse("2006-01-02", date)
		if err != nil {
			return time.Now().UTC()
		}
	}
	return t.UTC()
}

func field(cols []string, i int) string {
	if i < 0 || i >= len(cols) {
		return ""
	}
	return strings.TrimSpace(cols[i])
}
