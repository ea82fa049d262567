package risk

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKelly_NeverExceedsCap(t *testing.T) {
	s := NewService(DefaultConfig())

	// Raw Kelly 0.9 - 0.1/5 = 0.88, halved to 0.44, capped at 0.20.
	assert.Equal(t, 0.20, s.Kelly(0.9, 5.0))

	for _, p := range []float64{0.5, 0.7, 0.95, 1.0} {
		for _, rr := range []float64{0.5, 1, 2, 10, 100} {
			assert.LessOrEqual(t, s.Kelly(p, rr), 0.20, "p=%v rr=%v", p, rr)
		}
	}
}

func TestKelly_NegativeEdgeIsZero(t *testing.T) {
	s := NewService(DefaultConfig())
	assert.Equal(t, 0.0, s.Kelly(0.3, 1.0))
	assert.Equal(t, 0.0, s.Kelly(0.5, 0))
}

func TestCalculateRisk_LongStopBelowTargetAbove(t *testing.T) {
	s := NewService(DefaultConfig())

	a := s.CalculateRisk(Request{
		Symbol:         "SOLUSDT",
		Direction:      Long,
		WinProb:        0.6,
		RewardRisk:     2.0,
		RealizedVolPct: 1.0,
		Equity:         10000,
		Price:          82.03,
	})

	assert.Less(t, a.StopLossPrice, 82.03)
	assert.Greater(t, a.TakeProfitPrice, 82.03)
	assert.Greater(t, a.SizeUSD, 0.0)
}

func TestCalculateRisk_ShortStopAboveTargetBelow(t *testing.T) {
	s := NewService(DefaultConfig())

	a := s.CalculateRisk(Request{
		Symbol:         "SOLUSDT",
		Direction:      Short,
		WinProb:        0.6,
		RewardRisk:     2.0,
		RealizedVolPct: 1.0,
		Equity:         10000,
		Price:          82.03,
	})

	assert.Greater(t, a.StopLossPrice, 82.03)
	assert.Less(t, a.TakeProfitPrice, 82.03)
}

func TestCalculateRisk_InvalidDirectionZeroPrices(t *testing.T) {
	s := NewService(DefaultConfig())

	a := s.CalculateRisk(Request{Symbol: "X", Direction: "SIDEWAYS", WinProb: 0.6, RewardRisk: 2, Equity: 1000, Price: 100})
	assert.Equal(t, 0.0, a.StopLossPrice)
	assert.Equal(t, 0.0, a.TakeProfitPrice)

	a = s.CalculateRisk(Request{Symbol: "X", Direction: Long, WinProb: 0.6, RewardRisk: 2, Equity: 1000, Price: -5})
	assert.Equal(t, 0.0, a.StopLossPrice)
	assert.Equal(t, 0.0, a.TakeProfitPrice)
}

func TestCalculateRisk_SizeRespectsLeverageAndAbsoluteCaps(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxLeverage = 2.0
	cfg.MaxPositionUSD = 5000
	s := NewService(cfg)

	a := s.CalculateRisk(Request{
		Symbol: "X", Direction: Long, WinProb: 0.9, RewardRisk: 5,
		RealizedVolPct: 0.1, Equity: 100000, Price: 100,
	})
	assert.LessOrEqual(t, a.SizeUSD, 5000.0)
}

func TestCalculateRisk_DrawdownPenalty(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SeedEquity = 10000
	s := NewService(cfg)

	req := Request{Symbol: "X", Direction: Long, WinProb: 0.6, RewardRisk: 2, RealizedVolPct: 1, Price: 100}

	req.Equity = 10000
	atPeak := s.CalculateRisk(req)
	assert.Equal(t, 1.0, atPeak.Breakdown.DrawdownScalar)

	req.Equity = 8500 // 15% drawdown
	inDD := s.CalculateRisk(req)
	assert.Less(t, inDD.Breakdown.DrawdownScalar, 1.0)
	assert.GreaterOrEqual(t, inDD.Breakdown.DrawdownScalar, 0.3)
	assert.Less(t, inDD.SizeUSD, atPeak.SizeUSD)
}

func TestCalculateRisk_DrawdownScalarFloored(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SeedEquity = 10000
	s := NewService(cfg)

	a := s.CalculateRisk(Request{
		Symbol: "X", Direction: Long, WinProb: 0.6, RewardRisk: 2,
		RealizedVolPct: 1, Equity: 2000, Price: 100, // 80% drawdown
	})
	assert.Equal(t, 0.3, a.Breakdown.DrawdownScalar)
}

func TestCalculateRisk_CorrelationPenalty(t *testing.T) {
	s := NewService(DefaultConfig())

	req := Request{Symbol: "X", Direction: Long, WinProb: 0.6, RewardRisk: 2, RealizedVolPct: 1, Equity: 10000, Price: 100}

	req.CorrelationWith = 0.5
	assert.Equal(t, 1.0, s.CalculateRisk(req).Breakdown.CorrPenalty)

	req.CorrelationWith = 0.9
	p := s.CalculateRisk(req).Breakdown.CorrPenalty
	assert.Less(t, p, 1.0)
	assert.GreaterOrEqual(t, p, 0.5)

	req.CorrelationWith = 1.0
	assert.Equal(t, 0.5, s.CalculateRisk(req).Breakdown.CorrPenalty)
}

func TestCalculateRisk_RegimeScalars(t *testing.T) {
	s := NewService(DefaultConfig())

	req := Request{Symbol: "X", Direction: Long, WinProb: 0.6, RewardRisk: 2, RealizedVolPct: 1, Equity: 10000, Price: 100}

	req.Regime = "CRISIS_MODE"
	assert.Equal(t, 0.4, s.CalculateRisk(req).Breakdown.RegimeScalar)

	req.Regime = "SQUEEZE_ENVIRONMENT"
	assert.Equal(t, 1.5, s.CalculateRisk(req).Breakdown.RegimeScalar)

	req.Regime = "SOMETHING_ELSE"
	assert.Equal(t, 1.0, s.CalculateRisk(req).Breakdown.RegimeScalar)
}

func TestCalculateRisk_VolScalarClamped(t *testing.T) {
	s := NewService(DefaultConfig())

	req := Request{Symbol: "X", Direction: Long, WinProb: 0.6, RewardRisk: 2, Equity: 10000, Price: 100}

	req.RealizedVolPct = 0.1 // target/realized = 20, clamped to 1.5
	assert.Equal(t, 1.5, s.CalculateRisk(req).Breakdown.VolScalar)

	req.RealizedVolPct = 50 // target/realized = 0.04, clamped to 0.2
	assert.Equal(t, 0.2, s.CalculateRisk(req).Breakdown.VolScalar)
}
