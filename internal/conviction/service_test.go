package conviction

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantmesh/edgecore/internal/market"
	"github.com/quantmesh/edgecore/internal/signals/footprint"
	"github.com/quantmesh/edgecore/internal/signals/liquidation"
	"github.com/quantmesh/edgecore/internal/signals/regime"
	"github.com/quantmesh/edgecore/internal/signals/volatility"
)

func newTestService(store *market.Store) *Service {
	engine, _ := NewEngine(Weights{})
	return NewService(
		store,
		regime.NewClassifier(regime.Config{}),
		volatility.NewDetector(volatility.Config{}),
		footprint.NewDetector(footprint.Config{}),
		liquidation.NewProjector(liquidation.DefaultConfig(), nil),
		engine,
		nil,
	)
}

func f(v float64) *float64 { return &v }

func TestService_UnknownSymbol(t *testing.T) {
	svc := newTestService(market.NewStore())

	_, err := svc.Evaluate(context.Background(), "NOPE")
	assert.ErrorIs(t, err, ErrNoState)
}

func TestService_EvaluateProducesBoundedScore(t *testing.T) {
	store := market.NewStore()
	store.Update("BTCUSDT", market.FieldUpdates{
		Price:        f(50000),
		PriceDelta1m: f(25),
		OIDelta1m:    f(150),
		AggBuyVol1m:  f(300),
		AggSellVol1m: f(100),
		FundingRate:  f(0.0001),
	})

	svc := newTestService(store)

	res, err := svc.Evaluate(context.Background(), "BTCUSDT")
	require.NoError(t, err)

	assert.Equal(t, "BTCUSDT", res.Symbol)
	assert.GreaterOrEqual(t, res.Score, 0)
	assert.LessOrEqual(t, res.Score, 100)
	assert.Equal(t, BiasForScore(res.Score), res.Bias)
	assert.Len(t, res.Components, 5)
}

func TestService_MissingLiquidationStillDecides(t *testing.T) {
	store := market.NewStore()
	store.Update("ETHUSDT", market.FieldUpdates{Price: f(2000)})

	svc := newTestService(store)

	res, err := svc.Evaluate(context.Background(), "ETHUSDT")
	require.NoError(t, err)
	assert.NotNil(t, res)
}

func TestService_SmoothingKicksInAfterRepeatEvaluations(t *testing.T) {
	store := market.NewStore()
	store.Update("BTCUSDT", market.FieldUpdates{
		Price:        f(50000),
		PriceDelta1m: f(50),
		OIDelta1m:    f(200),
		CVDDelta1m:   f(200000),
		AggBuyVol1m:  f(500),
		AggSellVol1m: f(100),
	})

	svc := newTestService(store)

	var last *Result
	for i := 0; i < 4; i++ {
		res, err := svc.Evaluate(context.Background(), "BTCUSDT")
		require.NoError(t, err)
		last = res
	}
	assert.True(t, last.Smoothed, "stable bullish state should smooth after repeated readings")
	assert.Equal(t, Long, last.Bias)
}
