package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantmesh/edgecore/internal/application"
	"github.com/quantmesh/edgecore/internal/conviction"
	"github.com/quantmesh/edgecore/internal/execution"
	"github.com/quantmesh/edgecore/internal/market"
	"github.com/quantmesh/edgecore/internal/risk"
	"github.com/quantmesh/edgecore/internal/signals/footprint"
	"github.com/quantmesh/edgecore/internal/signals/liquidation"
	"github.com/quantmesh/edgecore/internal/signals/regime"
	"github.com/quantmesh/edgecore/internal/signals/volatility"
	"github.com/quantmesh/edgecore/internal/telemetry"
)

func f(v float64) *float64 { return &v }

func newTestServer(store *market.Store) *Server {
	engine, _ := conviction.NewEngine(conviction.Weights{})
	convictionSvc := conviction.NewService(
		store,
		regime.NewClassifier(regime.Config{}),
		volatility.NewDetector(volatility.Config{}),
		footprint.NewDetector(footprint.Config{}),
		liquidation.NewProjector(liquidation.DefaultConfig(), nil),
		engine,
		nil,
	)
	pipeline := application.NewPipeline(
		store,
		convictionSvc,
		risk.NewService(risk.DefaultConfig()),
		execution.NewPlanner(execution.DefaultConfig(), nil, nil),
		nil,
	)
	return NewServer(Config{
		ListenAddr:   ":0",
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
		Staleness:    10 * time.Second,
	}, pipeline, telemetry.New())
}

func TestServer_Health(t *testing.T) {
	srv := newTestServer(market.NewStore())

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest("GET", "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"ok"`)
}

func TestServer_Metrics(t *testing.T) {
	srv := newTestServer(market.NewStore())

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestServer_ConvictionUnknownSymbol(t *testing.T) {
	srv := newTestServer(market.NewStore())

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest("GET", "/v1/conviction/NOPE", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_ConvictionFreshState(t *testing.T) {
	store := market.NewStore()
	store.Update("BTCUSDT", market.FieldUpdates{Price: f(50000)})

	srv := newTestServer(store)

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest("GET", "/v1/conviction/BTCUSDT", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var res conviction.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, "BTCUSDT", res.Symbol)
	assert.GreaterOrEqual(t, res.Score, 0)
	assert.LessOrEqual(t, res.Score, 100)
}

func TestServer_ConvictionStaleStateConflicts(t *testing.T) {
	store := market.NewStore()
	old := time.Now().Add(-time.Minute).UnixMilli()
	store.Update("BTCUSDT", market.FieldUpdates{Price: f(50000), TimestampMs: &old})

	srv := newTestServer(store)

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest("GET", "/v1/conviction/BTCUSDT", nil))

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "stale")
}

func TestServer_RiskEndpoint(t *testing.T) {
	srv := newTestServer(market.NewStore())

	body := `{"symbol":"SOLUSDT","direction":"LONG","win_prob":0.6,"reward_risk":2.0,"realized_vol_pct":1.0,"equity":10000,"price":82.03}`
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest("POST", "/v1/risk", strings.NewReader(body)))

	require.Equal(t, http.StatusOK, rec.Code)

	var a risk.Assessment
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &a))
	assert.Greater(t, a.SizeUSD, 0.0)
	assert.Less(t, a.StopLossPrice, 82.03)
}

func TestServer_RiskRejectsBadBody(t *testing.T) {
	srv := newTestServer(market.NewStore())

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest("POST", "/v1/risk", strings.NewReader("{")))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest("POST", "/v1/risk", strings.NewReader(`{"symbol":"X"}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_PlanEndpointNeutralBias(t *testing.T) {
	store := market.NewStore()
	store.Update("ETHUSDT", market.FieldUpdates{Price: f(2000)})

	srv := newTestServer(store)

	body := `{"symbol":"ETHUSDT","equity":10000}`
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest("POST", "/v1/plan", strings.NewReader(body)))

	require.Equal(t, http.StatusOK, rec.Code)

	var d application.Decision
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &d))
	require.NotNil(t, d.Conviction)
	assert.Nil(t, d.Plan)
}
