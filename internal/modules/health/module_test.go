package health

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tier_bot/internal/modules/config"
	"tier_bot/internal/modules/health/service"
)

func get(t *testing.T, mux *http.ServeMux, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestReadyzFollowsState(t *testing.T) {
	state := service.NewState()
	mux := NewMux(state)

	assert.Equal(t, http.StatusServiceUnavailable, get(t, mux, "/readyz").Code)

	state.SetReady(true)
	assert.Equal(t, http.StatusOK, get(t, mux, "/readyz").Code)
	assert.Equal(t, http.StatusOK, get(t, mux, "/livez").Code)
}

func TestHealthzReportsEngineState(t *testing.T) {
	state := service.NewState()
	state.SetReady(true)
	state.SetLive(true)
	state.SetWSConnected(true)
	state.SetOpenPositions(2)
	state.TickFault()
	tick := time.Unix(1_700_000_000, 0)
	state.TouchTick(tick)

	rec := get(t, NewMux(state), "/healthz")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp healthResponse
	require.NoError(t, sonic.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, healthResponse{
		Ready:         true,
		Mode:          "LIVE",
		WSConnected:   true,
		UptimeSec:     resp.UptimeSec,
		LastTickUnix:  tick.Unix(),
		OpenPositions: 2,
		TickFaults:    1,
	}, resp)
}

func TestMetricsEndpoint(t *testing.T) {
	rec := get(t, NewMux(service.NewState()), "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestNewConfigAddr(t *testing.T) {
	cfg := config.Default()
	cfg.Service.Host = "127.0.0.1"
	cfg.Service.AdminPort = 9100
	assert.Equal(t, "127.0.0.1:9100", NewConfig(&cfg).Addr)
}
