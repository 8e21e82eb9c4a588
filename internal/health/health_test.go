// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kuntrapaku/subway-social-link-sub000/internal/config"
)

func TestManager_Health_NoCheckers(t *testing.T) {
	m := NewManager("v1.0.0")
	resp := m.Health(context.Background(), true)
	assert.Equal(t, StatusHealthy, resp.Status)
	assert.Equal(t, "v1.0.0", resp.Version)
	assert.GreaterOrEqual(t, resp.Uptime, int64(0))
	assert.Nil(t, resp.Checks)
}

func TestManager_Health_VerboseOnly(t *testing.T) {
	m := NewManager("v1")
	m.RegisterChecker(NewFuncChecker("cache", false, func(context.Context) error { return errors.New("redis down") }))

	resp := m.Health(context.Background(), false)
	assert.Equal(t, StatusHealthy, resp.Status)
	assert.Nil(t, resp.Checks)

	resp = m.Health(context.Background(), true)
	assert.Equal(t, StatusDegraded, resp.Status)
	assert.Equal(t, "redis down", resp.Checks["cache"].Error)
}

func TestManager_Ready(t *testing.T) {
	tests := []struct {
		name      string
		critical  bool
		err       error
		wantReady bool
		want      Status
	}{
		{"healthy", true, nil, true, StatusHealthy},
		{"degraded optional", false, errors.New("x"), true, StatusDegraded},
		{"unhealthy critical", true, errors.New("x"), false, StatusUnhealthy},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewManager("v1")
			m.RegisterChecker(NewFuncChecker("catalog", tt.critical, func(context.Context) error { return tt.err }))
			resp := m.Ready(context.Background())
			assert.Equal(t, tt.wantReady, resp.Ready)
			assert.Equal(t, tt.want, resp.Status)
		})
	}
}

func TestManager_CheckTimeout(t *testing.T) {
	m := NewManager("v1")
	m.timeout = 0
	m.RegisterChecker(NewFuncChecker("slow", true, func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}))
	resp := m.Ready(context.Background())
	assert.False(t, resp.Ready)
}

func TestServeReady_StatusCodes(t *testing.T) {
	m := NewManager("v1")
	m.RegisterChecker(NewFuncChecker("blobs", true, func(context.Context) error { return errors.New("closed") }))

	rec := httptest.NewRecorder()
	m.ServeReady(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body ReadinessResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.False(t, body.Ready)
	assert.Equal(t, StatusUnhealthy, body.Checks["blobs"].Status)

	rec = httptest.NewRecorder()
	m.ServeHealth(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestFuncChecker_NilCheck(t *testing.T) {
	res := NewFuncChecker("storage", true, nil).Check(context.Background())
	assert.Equal(t, StatusHealthy, res.Status)
}

func TestPerformStartupChecks(t *testing.T) {
	cfg := config.Default()
	cfg.DataDir = filepath.Join(t.TempDir(), "data")
	cfg.Probe.FFprobeBin = "definitely-not-ffprobe"
	require.NoError(t, PerformStartupChecks(context.Background(), cfg))
	assert.DirExists(t, cfg.DataDir)

	cfg.Server.ListenAddr = "no-port"
	assert.Error(t, PerformStartupChecks(context.Background(), cfg))
}
