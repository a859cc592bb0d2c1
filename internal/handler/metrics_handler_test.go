package handler

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-clearance-api/internal/service"
)

func TestMetricsHandlerReady(t *testing.T) {
	healthy := NewMetricsHandler(nil, map[string]Pinger{
		"postgres": PingFunc(func(ctx context.Context) error { return nil }),
	})
	c, w := newJSONContext(http.MethodGet, "/health/ready", "", nil)
	healthy.Ready(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"postgres":"ok"`)

	degraded := NewMetricsHandler(nil, map[string]Pinger{
		"postgres": PingFunc(func(ctx context.Context) error { return nil }),
		"redis":    PingFunc(func(ctx context.Context) error { return errors.New("connection refused") }),
	})
	c, w = newJSONContext(http.MethodGet, "/health/ready", "", nil)
	degraded.Ready(c)
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "connection refused")
}

func TestMetricsHandlerPrometheusAndSnapshot(t *testing.T) {
	metrics := service.NewMetricsService()
	metrics.RecordMutation("accepted")
	h := NewMetricsHandler(metrics, nil)

	c, w := newJSONContext(http.MethodGet, "/metrics", "", nil)
	h.Prometheus(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `workflow_mutations_total{outcome="accepted"} 1`)

	c, w = newJSONContext(http.MethodGet, "/metrics/summary", "", nil)
	h.Snapshot(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"workflowMutations":1`)

	c, w = newJSONContext(http.MethodGet, "/metrics", "", nil)
	NewMetricsHandler(nil, nil).Prometheus(c)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
