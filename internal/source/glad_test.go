package source

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arjun/forestwatch/pkg/models"
)

func TestGladFetchMapsRows(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "secret", r.Header.Get("x-api-key"))
		sql := r.URL.Query().Get("sql")
		assert.Contains(t, sql, "iso = 'IND'")
		assert.Contains(t, sql, "2026-02-03")
		assert.Contains(t, sql, "2026-02-10")
		_, _ = io.WriteString(w, `{"data":[
			{"latitude":21.3,"longitude":81.6,"gfw_integrated_alerts__date":"2026-02-08","gfw_integrated_alerts__confidence":"high"},
			{"latitude":23.6,"longitude":85.3,"gfw_integrated_alerts__date":"2026-02-09","gfw_integrated_alerts__confidence":"nominal"},
			{"latitude":"bad","longitude":85.3}
		]}`)
	}))
	defer srv.Close()

	c := NewGladClient(srv.URL, "secret", srv.Client(), discardLogger())
	c.now = func() time.Time { return time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC) }

	alerts := c.Fetch(context.Background())
	require.Len(t, alerts, 2)

	assert.Equal(t, models.AlertTypeDeforestation, alerts[0].AlertType)
	assert.Equal(t, models.SourceGFWGlad, alerts[0].DataSource)
	assert.Equal(t, models.SeverityHigh, alerts[0].Severity)
	assert.Equal(t, 0.9, alerts[0].Confidence)
	assert.Equal(t, time.Date(2026, 2, 8, 0, 0, 0, 0, time.UTC), alerts[0].DetectedAt)
	assert.Equal(t, "high", alerts[0].RawData["gfw_integrated_alerts__confidence"])

	assert.Equal(t, models.SeverityMedium, alerts[1].Severity)
	assert.Equal(t, 0.6, alerts[1].Confidence)
}

func TestGladFetchDegradesOnServerError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewGladClient(srv.URL, "", srv.Client(), discardLogger())
	assert.Empty(t, c.Fetch(context.Background()))
}

func TestGladFetchDegradesOnGarbageBody(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "<html>maintenance</html>")
	}))
	defer srv.Close()

	c := NewGladClient(srv.URL, "", srv.Client(), discardLogger())
	assert.Empty(t, c.Fetch(context.Background()))
}
