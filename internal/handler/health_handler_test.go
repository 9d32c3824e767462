package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestHealthHandlerReady(t *testing.T) {
	handler := NewHealthHandler(nil, map[string]Pinger{
		"mongo":    pingerFunc(func(context.Context) error { return nil }),
		"postgres": pingerFunc(func(context.Context) error { return nil }),
		"redis":    nil,
	})

	c, rec := newTestContext(http.MethodGet, "/ready", nil)
	handler.Ready(c)

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ready", body.Status)
	assert.Equal(t, map[string]string{"mongo": "ok", "postgres": "ok"}, body.Checks)
}

func TestHealthHandlerReadyDegraded(t *testing.T) {
	handler := NewHealthHandler(nil, map[string]Pinger{
		"mongo":    pingerFunc(func(context.Context) error { return errors.New("server selection timeout") }),
		"postgres": pingerFunc(func(context.Context) error { return nil }),
	})

	c, rec := newTestContext(http.MethodGet, "/ready", nil)
	handler.Ready(c)

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var body struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "degraded", body.Status)
	assert.Equal(t, "server selection timeout", body.Checks["mongo"])
	assert.Equal(t, "ok", body.Checks["postgres"])
}

func TestHealthHandlerPrometheusUnavailable(t *testing.T) {
	handler := NewHealthHandler(nil, nil)

	c, rec := newTestContext(http.MethodGet, "/metrics", nil)
	handler.Prometheus(c)
	c.Writer.WriteHeaderNow()

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
