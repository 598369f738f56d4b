package telemetry

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/labor-engine/payroll"
)

func TestObserveCalculation(t *testing.T) {
	m := New("")

	m.ObserveCalculation(payroll.OutcomeCreated, 3*time.Millisecond)
	m.ObserveCalculation(payroll.OutcomeCreated, 4*time.Millisecond)
	m.ObserveCalculation(payroll.OutcomeIdempotent, time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.calculationsTotal.WithLabelValues(payroll.OutcomeCreated)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.calculationsTotal.WithLabelValues(payroll.OutcomeIdempotent)))
	assert.Equal(t, 2, testutil.CollectAndCount(m.calculationDuration))
}

func TestMiddleware_UsesRoutePattern(t *testing.T) {
	// GIVEN a chi router instrumented with the middleware
	m := New("test")
	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Get("/api/calculations/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	// WHEN two different ids are requested
	for _, id := range []string{"a", "b"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/calculations/"+id, nil))
		require.Equal(t, http.StatusNotFound, rec.Code)
	}

	// THEN both land on one series keyed by the pattern
	got := testutil.ToFloat64(m.requestsTotal.WithLabelValues("GET", "/api/calculations/{id}", "404"))
	assert.Equal(t, 2.0, got)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.requestsInFlight))
}

func TestHandler_ExposesCollectors(t *testing.T) {
	m := New("labor")
	m.ObserveCalculation(payroll.OutcomeInvalid, time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `labor_calculations_total{outcome="invalid"} 1`), body)
	assert.Contains(t, body, "go_goroutines")
}

func TestNew_IndependentRegistries(t *testing.T) {
	// Two instances must not panic on duplicate registration.
	a, b := New("x"), New("x")
	a.ObserveCalculation(payroll.OutcomeCreated, 0)
	assert.Equal(t, 0.0, testutil.ToFloat64(b.calculationsTotal.WithLabelValues(payroll.OutcomeCreated)))
}
