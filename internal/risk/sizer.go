package risk

import (
	"math"
	"time"

	"github.com/rs/zerolog/log"
)

// Direction of the proposed position.
type Direction string

const (
	Long  Direction = "LONG"
	Short Direction = "SHORT"
)

// Config holds sizing floors, ceilings and scalar tables. All inputs are
// defensively clamped against these at call time.
type Config struct {
	KellyFraction    float64 `yaml:"kelly_fraction" default:"0.5" validate:"gt=0,lte=1"` // half-Kelly default
	KellyCap         float64 `yaml:"kelly_cap" default:"0.2" validate:"gt=0,lte=1"`     // never risk >20% of bankroll
	MaxRiskPct       float64 `yaml:"max_risk_pct" default:"0.02" validate:"gt=0,lte=1"`
	TargetVolPct     float64 `yaml:"target_vol_pct" default:"2.0" validate:"gt=0"`
	MinStopPct       float64 `yaml:"min_stop_pct" default:"0.5" validate:"gt=0"`
	MaxLeverage      float64 `yaml:"max_leverage" default:"5.0" validate:"gte=1"`
	MaxPositionUSD   float64 `yaml:"max_position_usd" default:"250000" validate:"gt=0"`
	DrawdownTrigger  float64 `yaml:"drawdown_trigger" default:"0.05" validate:"gte=0"`
	DrawdownSlope    float64 `yaml:"drawdown_slope" default:"5.0" validate:"gt=0"`
	CorrThreshold    float64 `yaml:"corr_threshold" default:"0.7" validate:"gte=0,lte=1"`
	SeedEquity       float64 `yaml:"seed_equity" default:"0" validate:"gte=0"`

	RegimeScalars map[string]float64 `yaml:"regime_scalars"`
}

// DefaultConfig returns production sizing constants.
func DefaultConfig() Config {
	return Config{
		KellyFraction:   0.5,
		KellyCap:        0.2,
		MaxRiskPct:      0.02,
		TargetVolPct:    2.0,
		MinStopPct:      0.5,
		MaxLeverage:     5.0,
		MaxPositionUSD:  250000,
		DrawdownTrigger: 0.05,
		DrawdownSlope:   5.0,
		CorrThreshold:   0.7,
		RegimeScalars:   DefaultRegimeScalars(),
	}
}

// DefaultRegimeScalars maps conviction regimes to risk multipliers.
// Unlisted regimes default to 1.0.
func DefaultRegimeScalars() map[string]float64 {
	return map[string]float64{
		"CRISIS_MODE":            0.4,
		"HIGH_VOLATILITY":        0.7,
		"LONG_UNWIND":            0.8,
		"AGGRESSIVE_SHORT_BUILD": 0.8,
		"SQUEEZE_ENVIRONMENT":    1.5,
	}
}

// Breakdown surfaces every intermediate multiplier so a sizing decision can
// be audited after the fact. This transparency is a design requirement.
type Breakdown struct {
	Edge            float64 `json:"edge"`
	RawKelly        float64 `json:"raw_kelly"`
	KellyFraction   float64 `json:"kelly_fraction"`
	VolScalar       float64 `json:"vol_scalar"`
	RegimeScalar    float64 `json:"regime_scalar"`
	DrawdownScalar  float64 `json:"drawdown_scalar"`
	CorrPenalty     float64 `json:"corr_penalty"`
	StopDistancePct float64 `json:"stop_distance_pct"`
	RiskUSD         float64 `json:"risk_usd"`
}

// Assessment is the sized, bounded position recommendation.
type Assessment struct {
	Symbol           string    `json:"symbol"`
	Direction        Direction `json:"direction"`
	SizeUSD          float64   `json:"size_usd"`
	MaxLeverage      float64   `json:"max_leverage"`
	RiskPctEquity    float64   `json:"risk_pct_equity"`
	StopLossPrice    float64   `json:"stop_loss_price"`
	TakeProfitPrice  float64   `json:"take_profit_price"`
	Breakdown        Breakdown `json:"breakdown"`
	Timestamp        time.Time `json:"timestamp"`
}

// Request carries the caller-supplied sizing inputs.
type Request struct {
	Symbol          string
	Direction       Direction
	WinProb         float64
	RewardRisk      float64
	RealizedVolPct  float64
	Equity          float64
	Regime          string
	Price           float64
	CorrelationWith float64 // correlation with existing portfolio
}

// Service converts conviction-derived edge estimates into bounded position
// sizes with a fractional-Kelly framework and multiplicative risk scalars.
// It tracks the equity high-water mark across calls for the drawdown scalar.
type Service struct {
	config        Config
	highWaterMark float64
}

// NewService creates a sizing service. The high-water mark seeds from config.
func NewService(config Config) *Service {
	if config.KellyCap == 0 {
		config = DefaultConfig()
	}
	return &Service{config: config, highWaterMark: config.SeedEquity}
}

// CalculateRisk sizes a position. Invalid direction or non-positive price
// yields zero-priced stop/target rather than an error: the pipeline must
// always produce a decision or a clean "no signal".
func (s *Service) CalculateRisk(req Request) Assessment {
	cfg := s.config

	winProb := clamp(req.WinProb, 0, 1)
	rewardRisk := math.Max(req.RewardRisk, 0.1)
	equity := math.Max(req.Equity, 0)
	realizedVol := math.Max(req.RealizedVolPct, 0.01)

	if equity > s.highWaterMark {
		s.highWaterMark = equity
	}

	b := Breakdown{
		Edge:           edge(winProb, rewardRisk),
		RawKelly:       winProb - (1-winProb)/rewardRisk,
		VolScalar:      clamp(cfg.TargetVolPct/realizedVol, 0.2, 1.5),
		RegimeScalar:   s.regimeScalar(req.Regime),
		DrawdownScalar: s.drawdownScalar(equity),
		CorrPenalty:    s.corrPenalty(req.CorrelationWith),
	}
	b.KellyFraction = math.Min(s.Kelly(winProb, rewardRisk), cfg.MaxRiskPct)

	b.StopDistancePct = math.Max(cfg.MinStopPct, 2*realizedVol)
	b.RiskUSD = equity * b.KellyFraction * b.VolScalar * b.RegimeScalar * b.DrawdownScalar * b.CorrPenalty

	sizeUSD := b.RiskUSD / (b.StopDistancePct / 100)
	sizeUSD = math.Min(sizeUSD, cfg.MaxLeverage*equity)
	sizeUSD = math.Min(sizeUSD, cfg.MaxPositionUSD)

	stop, target := stopTarget(req.Direction, req.Price, b.StopDistancePct, rewardRisk)

	riskPct := 0.0
	if equity > 0 {
		riskPct = b.RiskUSD / equity
	}

	log.Debug().
		Str("symbol", req.Symbol).
		Str("direction", string(req.Direction)).
		Float64("size_usd", sizeUSD).
		Float64("kelly", b.KellyFraction).
		Msg("risk assessment")

	return Assessment{
		Symbol:          req.Symbol,
		Direction:       req.Direction,
		SizeUSD:         sizeUSD,
		MaxLeverage:     cfg.MaxLeverage,
		RiskPctEquity:   riskPct,
		StopLossPrice:   stop,
		TakeProfitPrice: target,
		Breakdown:       b,
		Timestamp:       time.Now(),
	}
}

// Kelly computes the fractional Kelly bet size: winProb − (1−winProb)/RR,
// scaled by the configured fraction and hard-capped. Never exceeds KellyCap
// regardless of inputs.
func (s *Service) Kelly(winProb, rewardRisk float64) float64 {
	if rewardRisk <= 0 {
		return 0
	}
	raw := winProb - (1-winProb)/rewardRisk
	if raw <= 0 {
		return 0
	}
	return math.Min(raw*s.config.KellyFraction, s.config.KellyCap)
}

// HighWaterMark exposes the tracked equity peak.
func (s *Service) HighWaterMark() float64 { return s.highWaterMark }

// edge approximates expected value per unit risked; the x50 scale pushes any
// usable edge toward the top of [0,1] quickly.
func edge(winProb, rewardRisk float64) float64 {
	avgWin, avgLoss := rewardRisk, 1.0
	return clamp((winProb*avgWin-(1-winProb)*avgLoss)*50, 0, 1)
}

func (s *Service) regimeScalar(regime string) float64 {
	if v, ok := s.config.RegimeScalars[regime]; ok {
		return v
	}
	return 1.0
}

// drawdownScalar is 1.0 at or above the high-water mark, then penalized
// linearly once drawdown exceeds the trigger, floored at 0.3.
func (s *Service) drawdownScalar(equity float64) float64 {
	if s.highWaterMark <= 0 || equity >= s.highWaterMark {
		return 1.0
	}
	dd := 1 - equity/s.highWaterMark
	if dd <= s.config.DrawdownTrigger {
		return 1.0
	}
	return math.Max(0.3, 1-(dd-s.config.DrawdownTrigger)*s.config.DrawdownSlope)
}

// corrPenalty is 1.0 below the correlation threshold, then linearly reduced,
// floored at 0.5.
func (s *Service) corrPenalty(corr float64) float64 {
	corr = math.Abs(corr)
	if corr <= s.config.CorrThreshold {
		return 1.0
	}
	span := 1 - s.config.CorrThreshold
	return math.Max(0.5, 1-(corr-s.config.CorrThreshold)/span*0.5)
}

// stopTarget computes direction-aware stop-loss and take-profit prices.
// Invalid direction or non-positive price yields zeros.
func stopTarget(dir Direction, price, stopPct, rewardRisk float64) (float64, float64) {
	if price <= 0 {
		return 0, 0
	}
	stopDist := price * stopPct / 100
	switch dir {
	case Long:
		return price - stopDist, price + stopDist*rewardRisk
	case Short:
		return price + stopDist, price - stopDist*rewardRisk
	default:
		return 0, 0
	}
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
