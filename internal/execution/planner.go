package execution

import (
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/quantmesh/edgecore/internal/telemetry"
)

// Strategy selects how aggressively the order crosses the book.
type Strategy string

const (
	Passive    Strategy = "PASSIVE"
	Hybrid     Strategy = "HYBRID"
	Aggressive Strategy = "AGGRESSIVE"
)

// OrderType of a child slice.
type OrderType string

const (
	Market OrderType = "MARKET"
	Limit  OrderType = "LIMIT"
)

// Strategy selection thresholds on the urgency score.
const (
	hybridUrgency     = 0.4
	aggressiveUrgency = 0.7
)

// Config holds execution-planning constants.
type Config struct {
	MaxSpreadBps        float64 `yaml:"max_spread_bps" default:"20"`
	ImbalanceLow        float64 `yaml:"imbalance_low" default:"0.1"`
	ImbalanceHigh       float64 `yaml:"imbalance_high" default:"10.0"`
	MinLiquidityUSD     float64 `yaml:"min_liquidity_usd" default:"1000"`
	MaxDepthImpact      float64 `yaml:"max_depth_impact" default:"0.05"`
	MinSliceUSD         float64 `yaml:"min_slice_usd" default:"100"`
	SingleSliceDepthPct float64 `yaml:"single_slice_depth_pct" default:"0.01"`
	SliceDelayMs        int64   `yaml:"slice_delay_ms" default:"2000"`
	DecayThresholdPct   float64 `yaml:"decay_threshold_pct" default:"1.0"` // signal decay %/min
}

// DefaultConfig returns production execution constants.
func DefaultConfig() Config {
	return Config{
		MaxSpreadBps:        20,
		ImbalanceLow:        0.1,
		ImbalanceHigh:       10.0,
		MinLiquidityUSD:     1000,
		MaxDepthImpact:      0.05,
		MinSliceUSD:         100,
		SingleSliceDepthPct: 0.01,
		SliceDelayMs:        2000,
		DecayThresholdPct:   1.0,
	}
}

// Slice is one child order of a plan.
type Slice struct {
	ID        string    `json:"id"`
	Type      OrderType `json:"type"`
	AmountUSD float64   `json:"amount_usd"`
	Urgency   string    `json:"urgency"` // HIGH / MEDIUM / LOW
	DelayMs   int64     `json:"delay_ms"`
}

// Plan is the immutable, slippage-aware execution plan for one sized order.
type Plan struct {
	ID           string           `json:"id"`
	Symbol       string           `json:"symbol"`
	Direction    string           `json:"direction"`
	TotalSizeUSD float64          `json:"total_size_usd"`
	Strategy     Strategy         `json:"strategy"`
	Slippage     SlippageEstimate `json:"slippage"`
	UrgencyScore float64          `json:"urgency_score"`
	Slices       []Slice          `json:"slices"`
	SafetyChecks map[string]bool  `json:"safety_checks"`
	GatePassed   bool             `json:"gate_passed"`
	Timestamp    time.Time        `json:"timestamp"`
}

// Request carries the live microstructure inputs for one plan.
type Request struct {
	Symbol          string
	Direction       string
	SizeUSD         float64
	LiquidityUSD    float64
	SpreadBps       float64
	VolatilityBps   float64
	BookImbalance   float64
	ConvictionScore int     // 0-100
	ImpulseStrength float64 // 0-5 from the footprint detector
	Regime          string
	DecayPerMinPct  float64
	RecentSweep     bool
}

// Planner turns sized orders into urgency-ranked slice sequences with a
// pre-trade safety gate.
type Planner struct {
	config  Config
	tracker *Tracker
	metrics *telemetry.Metrics
}

// NewPlanner creates a planner. tracker and metrics may be nil.
func NewPlanner(config Config, tracker *Tracker, metrics *telemetry.Metrics) *Planner {
	if config == (Config{}) {
		config = DefaultConfig()
	}
	return &Planner{config: config, tracker: tracker, metrics: metrics}
}

// GeneratePlan models slippage and urgency, selects a strategy, slices the
// order and evaluates the adverse-selection gate. A failing gate does not
// error: the caller decides whether to proceed, hold or cancel.
func (p *Planner) GeneratePlan(req Request) *Plan {
	urgency := p.urgencyScore(req)
	strategy := strategyFor(urgency)

	plan := &Plan{
		ID:           uuid.NewString(),
		Symbol:       req.Symbol,
		Direction:    req.Direction,
		TotalSizeUSD: req.SizeUSD,
		Strategy:     strategy,
		Slippage:     EstimateSlippage(req.SizeUSD, req.LiquidityUSD, req.SpreadBps, req.VolatilityBps),
		UrgencyScore: urgency,
		Slices:       p.buildSlices(req.SizeUSD, req.LiquidityUSD, urgency, strategy),
		SafetyChecks: p.safetyChecks(req),
		Timestamp:    time.Now(),
	}

	plan.GatePassed = true
	for check, ok := range plan.SafetyChecks {
		if !ok {
			plan.GatePassed = false
			if p.metrics != nil {
				p.metrics.ObserveGateVeto(check)
			}
		}
	}

	if p.tracker != nil {
		p.tracker.RecordPlan(plan)
	}
	if p.metrics != nil {
		p.metrics.ObservePlan(string(strategy), plan.Slippage.TotalBps)
	}
	log.Info().
		Str("symbol", req.Symbol).
		Str("plan_id", plan.ID).
		Str("strategy", string(strategy)).
		Int("slices", len(plan.Slices)).
		Float64("slippage_bps", plan.Slippage.TotalBps).
		Bool("gate_passed", plan.GatePassed).
		Msg("execution plan generated")

	return plan
}

// urgencyScore blends conviction, impulse strength, a regime adjustment and
// a decay bonus into [0,1].
func (p *Planner) urgencyScore(req Request) float64 {
	conviction := clamp(float64(req.ConvictionScore)/100, 0, 1)
	impulse := clamp(req.ImpulseStrength/5, 0, 1)

	u := 0.4*conviction + 0.3*impulse + regimeUrgencyAdj[req.Regime]
	if req.DecayPerMinPct > p.config.DecayThresholdPct {
		u += 0.2
	}
	return clamp(u, 0, 1)
}

// regimeUrgencyAdj nudges urgency by regime category; unlisted regimes add
// nothing.
var regimeUrgencyAdj = map[string]float64{
	"SQUEEZE_ENVIRONMENT":    0.2,
	"AGGRESSIVE_LONG_BUILD":  0.1,
	"AGGRESSIVE_SHORT_BUILD": 0.1,
	"STABLE_ACCUMULATION":    -0.1,
	"STABLE_DISTRIBUTION":    -0.1,
	"CRISIS_MODE":            -0.2,
}

func strategyFor(urgency float64) Strategy {
	switch {
	case urgency < hybridUrgency:
		return Passive
	case urgency < aggressiveUrgency:
		return Hybrid
	default:
		return Aggressive
	}
}

// buildSlices splits the order. Small orders (under the single-slice depth
// share) go out whole; larger ones are cut to the depth-impact cap with
// staggered delays to reduce signaling.
func (p *Planner) buildSlices(sizeUSD, liquidityUSD, urgency float64, strategy Strategy) []Slice {
	if sizeUSD <= 0 {
		return nil
	}
	if liquidityUSD > 0 && sizeUSD < p.config.SingleSliceDepthPct*liquidityUSD {
		return []Slice{{
			ID:        uuid.NewString(),
			Type:      sliceType(strategy, 0),
			AmountUSD: sizeUSD,
			Urgency:   urgencyTier(urgency),
		}}
	}

	optimal := math.Max(liquidityUSD*p.config.MaxDepthImpact*(1+urgency), p.config.MinSliceUSD)

	var slices []Slice
	remaining := sizeUSD
	for i := 0; remaining > 0; i++ {
		amount := math.Min(optimal, remaining)
		slices = append(slices, Slice{
			ID:        uuid.NewString(),
			Type:      sliceType(strategy, i),
			AmountUSD: amount,
			Urgency:   urgencyTier(urgency),
			DelayMs:   int64(i) * p.config.SliceDelayMs,
		})
		remaining -= amount
	}
	return slices
}

// sliceType: aggressive plans cross immediately on every slice; hybrid plans
// take liquidity on the first slice only; passive plans always rest.
func sliceType(strategy Strategy, index int) OrderType {
	switch strategy {
	case Aggressive:
		return Market
	case Hybrid:
		if index == 0 {
			return Market
		}
		return Limit
	default:
		return Limit
	}
}

func urgencyTier(urgency float64) string {
	switch {
	case urgency >= aggressiveUrgency:
		return "HIGH"
	case urgency >= hybridUrgency:
		return "MEDIUM"
	default:
		return "LOW"
	}
}

// safetyChecks is the adverse-selection gate: every named check must pass
// before the caller should release the plan.
func (p *Planner) safetyChecks(req Request) map[string]bool {
	return map[string]bool{
		"spread_ok":       req.SpreadBps <= p.config.MaxSpreadBps,
		"imbalance_ok":    req.BookImbalance >= p.config.ImbalanceLow && req.BookImbalance <= p.config.ImbalanceHigh,
		"no_recent_sweep": !req.RecentSweep,
		"liquidity_ok":    req.LiquidityUSD >= p.config.MinLiquidityUSD,
	}
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
