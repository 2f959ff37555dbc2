package service

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func counterValue(t *testing.T, m *MetricsService, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := m.Registry().Gather()
	require.NoError(t, err)
	for _, family := range families {
		if family.GetName() != name {
			continue
		}
		for _, metric := range family.GetMetric() {
			if matchLabels(metric, labels) {
				return metric.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func matchLabels(metric *dto.Metric, want map[string]string) bool {
	got := map[string]string{}
	for _, pair := range metric.GetLabel() {
		got[pair.GetName()] = pair.GetValue()
	}
	for k, v := range want {
		if got[k] != v {
			return false
		}
	}
	return true
}

func TestMetricsLedgerAndTransitions(t *testing.T) {
	m := NewMetricsService()
	m.RecordLedger(5, 0)
	m.RecordLedger(0, 3)
	m.RecordLedger(2, 0)
	m.RecordTransition("approve", "ok")
	m.RecordTransition("approve", "INSUFFICIENT_BALANCE")
	m.RecordAuditWrite("tx", errors.New("boom"))

	assert.Equal(t, 7.0, counterValue(t, m, "vacation_api_balance_days_total", map[string]string{"direction": "reserved"}))
	assert.Equal(t, 3.0, counterValue(t, m, "vacation_api_balance_days_total", map[string]string{"direction": "released"}))
	assert.Equal(t, 1.0, counterValue(t, m, "vacation_api_vacation_transitions_total", map[string]string{"action": "approve", "outcome": "INSUFFICIENT_BALANCE"}))
	assert.Equal(t, 1.0, counterValue(t, m, "vacation_api_audit_writes_total", map[string]string{"mode": "tx", "outcome": "error"}))
}

func TestMetricsCacheLookups(t *testing.T) {
	m := NewMetricsService()
	m.RecordCacheOperation(true, time.Millisecond)
	m.RecordCacheOperation(false, time.Millisecond)
	m.RecordCacheOperation(true, time.Millisecond)

	assert.Equal(t, 2.0, counterValue(t, m, "vacation_api_calendar_cache_lookups_total", map[string]string{"result": "hit"}))
	assert.Equal(t, 1.0, counterValue(t, m, "vacation_api_calendar_cache_lookups_total", map[string]string{"result": "miss"}))
}

func TestMetricsHandlerExposesRouteLabels(t *testing.T) {
	m := NewMetricsService()
	m.ObserveHTTPRequest(http.MethodPost, "/api/vacations/:id/approve", http.StatusOK, 15*time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `route="/api/vacations/:id/approve"`))
	assert.Contains(t, body, "go_goroutines")
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *MetricsService
	m.RecordLedger(1, 1)
	m.RecordCacheOperation(true, time.Millisecond)
	m.ObserveHTTPRequest(http.MethodGet, "/", http.StatusOK, time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
