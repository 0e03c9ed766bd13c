package metrics_test

import (
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/retakeai/retake/internal/metrics"
)

func TestInitIdempotent(t *testing.T) {
	// Registering collectors twice with promauto would panic; Init must not.
	metrics.Init()
	require.NotPanics(t, metrics.Init)
}

func TestObserversDoNotPanic(t *testing.T) {
	metrics.Init()

	assert.NotPanics(t, func() {
		metrics.ObserveFetch("http", nil)
		metrics.ObserveFetch("browser", errors.New("boom"))
		metrics.ObserveBrowserEscalation()
		metrics.ObserveRoundsIngested(24)
		metrics.ObserveStoreWriteFailure("cloud")
		metrics.ObserveSearch("fallback")
		metrics.ObserveHTTPRequest("POST", "/v1/query", 200, 120*time.Millisecond)
	})
}

func TestHandlerServesMetrics(t *testing.T) {
	metrics.Init()
	metrics.ObserveFetch("http", nil)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/metrics", nil)
	metrics.Handler().ServeHTTP(rec, req)

	require.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), "retake_pages_fetched_total")
}
