package metrics

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTimer_ObserveDurationRecordsToHistogram(t *testing.T) {
	timer := NewTimer()
	time.Sleep(time.Millisecond)
	timer.ObserveDuration(Phase2RunDuration)
	assert.Greater(t, timer.Duration(), time.Duration(0))
}

func TestHandler_ServesPrometheusExpositionFormat(t *testing.T) {
	IngestRequestsTotal.WithLabelValues("created").Inc()

	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, req)

	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), "civicquant_ingest_requests_total")
}
