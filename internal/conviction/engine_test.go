package conviction

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantmesh/edgecore/internal/signals/footprint"
	"github.com/quantmesh/edgecore/internal/signals/liquidation"
	"github.com/quantmesh/edgecore/internal/signals/regime"
	"github.com/quantmesh/edgecore/internal/signals/volatility"
)

func neutralInputs(symbol string) Inputs {
	return Inputs{
		Symbol:     symbol,
		Regime:     &regime.Signal{Category: regime.Neutral, Confidence: 0.25},
		Volatility: &volatility.Signal{Category: volatility.Trending},
		Footprint:  &footprint.Result{},
	}
}

func TestAnalyze_NeutralInputsScoreFifty(t *testing.T) {
	e, err := NewEngine(Weights{})
	require.NoError(t, err)

	res, err := e.Analyze(neutralInputs("BTCUSDT"))
	require.NoError(t, err)

	assert.Equal(t, 50, res.Score)
	assert.Equal(t, Neutral, res.Bias)
	assert.Len(t, res.Components, 5)
	assert.NotEmpty(t, res.Explanation)
}

func TestAnalyze_ScoreAlwaysInRangeAndBiasConsistent(t *testing.T) {
	e, _ := NewEngine(Weights{})

	extremes := []Inputs{
		{
			Symbol:     "X",
			Regime:     &regime.Signal{Category: regime.AggressiveLongBuild, Confidence: 1.0},
			Volatility: &volatility.Signal{Category: volatility.Compression, CompressionScore: 1.0},
			Footprint: &footprint.Result{
				Sweep:   footprint.SubResult{Detected: true, Event: footprint.BuySweep, Strength: 1.0},
				Impulse: footprint.SubResult{Detected: true, Event: footprint.BullishImpulse, Strength: 5.0},
			},
			Liquidation: &liquidation.Result{DominantSide: liquidation.ShortSqueeze, Provenance: liquidation.SourceReal},
			FundingRate: -0.01, FundingMean: 0, FundingStd: 0.001,
		},
		{
			Symbol:     "X",
			Regime:     &regime.Signal{Category: regime.AggressiveShortBuild, Confidence: 1.0},
			Volatility: &volatility.Signal{Category: volatility.Compression, CompressionScore: 1.0},
			Footprint: &footprint.Result{
				Sweep:   footprint.SubResult{Detected: true, Event: footprint.SellSweep, Strength: 1.0},
				Impulse: footprint.SubResult{Detected: true, Event: footprint.BearishImpulse, Strength: 5.0},
			},
			Liquidation: &liquidation.Result{DominantSide: liquidation.LongSqueeze, Provenance: liquidation.SourceReal},
			FundingRate: 0.01, FundingMean: 0, FundingStd: 0.001,
		},
	}

	for _, in := range extremes {
		res, err := e.Analyze(in)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, res.Score, 0)
		assert.LessOrEqual(t, res.Score, 100)
		assert.Equal(t, BiasForScore(res.Score), res.Bias)
	}
}

func TestAnalyze_BullishSetupGoesLong(t *testing.T) {
	e, _ := NewEngine(Weights{})

	in := neutralInputs("BTCUSDT")
	in.Regime = &regime.Signal{Category: regime.AggressiveLongBuild, Confidence: 0.9}
	in.Footprint = &footprint.Result{
		Flow: footprint.FlowResult{
			SubResult: footprint.SubResult{Detected: true, Event: footprint.BuyFlowDominant, Strength: 3.0},
			Ratio:     3.0, ZScore: 3.0,
		},
	}
	in.Liquidation = &liquidation.Result{DominantSide: liquidation.ShortSqueeze, Provenance: liquidation.SourceReal}

	res, err := e.Analyze(in)
	require.NoError(t, err)

	assert.Equal(t, Long, res.Bias)
	assert.GreaterOrEqual(t, res.Score, 55)
	assert.Greater(t, res.Confidence, 0.5)
}

func TestAnalyze_FailsClosedOnMissingRequiredSignal(t *testing.T) {
	e, _ := NewEngine(Weights{})

	in := neutralInputs("BTCUSDT")
	in.Footprint = nil

	_, err := e.Analyze(in)
	assert.ErrorIs(t, err, ErrIncompleteSignals)
}

func TestAnalyze_MissingLiquidationIsNeutralNotFatal(t *testing.T) {
	e, _ := NewEngine(Weights{})

	res, err := e.Analyze(neutralInputs("BTCUSDT"))
	require.NoError(t, err)

	for _, c := range res.Components {
		if c.Name == "liquidation" {
			assert.Equal(t, 0.0, c.Score)
			assert.Equal(t, "no liquidation data", c.Description)
		}
	}
}

func TestAnalyze_EstimatedProvenanceDiscounted(t *testing.T) {
	e, _ := NewEngine(Weights{})

	real := neutralInputs("X")
	real.Liquidation = &liquidation.Result{DominantSide: liquidation.ShortSqueeze, Provenance: liquidation.SourceReal}
	estimated := neutralInputs("X")
	estimated.Liquidation = &liquidation.Result{DominantSide: liquidation.ShortSqueeze, Provenance: liquidation.SourceEstimated}

	r1, _ := e.Analyze(real)
	r2, _ := e.Analyze(estimated)
	assert.Greater(t, r1.Score, r2.Score)
}

func TestNewEngine_RejectsBadWeights(t *testing.T) {
	_, err := NewEngine(Weights{Regime: 0.5, Liquidation: 0.5, Footprint: 0.5, Funding: 0.25, Volatility: 0.25})
	assert.Error(t, err)
}

func TestWeights_DefaultsSumToOne(t *testing.T) {
	assert.NoError(t, DefaultWeights().Validate())
}

func TestBiasForScore_Thresholds(t *testing.T) {
	assert.Equal(t, Long, BiasForScore(55))
	assert.Equal(t, Neutral, BiasForScore(54))
	assert.Equal(t, Neutral, BiasForScore(46))
	assert.Equal(t, Short, BiasForScore(45))
}
