package application

import (
	"context"
	"math"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/quantmesh/edgecore/internal/conviction"
	"github.com/quantmesh/edgecore/internal/execution"
	"github.com/quantmesh/edgecore/internal/market"
	"github.com/quantmesh/edgecore/internal/persistence"
	"github.com/quantmesh/edgecore/internal/risk"
)

// depthLevels is how many book levels on each side count as actionable
// liquidity for slippage and slicing.
const depthLevels = 5

// defaultRewardRisk applies when the caller does not supply a target ratio.
const defaultRewardRisk = 2.0

// Pipeline runs the full decision chain for one symbol: conviction, sizing,
// execution planning and optional persistence.
type Pipeline struct {
	store      *market.Store
	conviction *conviction.Service
	risk       *risk.Service
	planner    *execution.Planner
	plans      persistence.PlanRepo // nil disables persistence
}

// NewPipeline wires the decision chain. plans may be nil.
func NewPipeline(
	store *market.Store,
	convictionSvc *conviction.Service,
	riskSvc *risk.Service,
	planner *execution.Planner,
	plans persistence.PlanRepo,
) *Pipeline {
	return &Pipeline{
		store:      store,
		conviction: convictionSvc,
		risk:       riskSvc,
		planner:    planner,
		plans:      plans,
	}
}

// DecideRequest carries the caller-owned inputs for one decision.
type DecideRequest struct {
	Symbol          string  `json:"symbol"`
	Equity          float64 `json:"equity"`
	RewardRisk      float64 `json:"reward_risk,omitempty"`
	CorrelationWith float64 `json:"correlation_with,omitempty"`
}

// Decision is the complete pipeline output. Assessment and Plan are nil when
// the conviction bias is NEUTRAL: no directional call, nothing to size.
type Decision struct {
	Conviction *conviction.Result `json:"conviction"`
	Assessment *risk.Assessment   `json:"assessment,omitempty"`
	Plan       *execution.Plan    `json:"plan,omitempty"`
}

// Decide evaluates conviction for the symbol and, if it resolves to a
// directional bias, sizes the position and generates an execution plan.
func (p *Pipeline) Decide(ctx context.Context, req DecideRequest) (*Decision, error) {
	res, err := p.conviction.Evaluate(ctx, req.Symbol)
	if err != nil {
		return nil, err
	}

	decision := &Decision{Conviction: res}
	if res.Bias == conviction.Neutral {
		return decision, nil
	}

	state, ok := p.store.Get(req.Symbol)
	if !ok {
		return decision, nil
	}

	regimeCat, _ := p.conviction.RegimeCategory(req.Symbol)

	rewardRisk := req.RewardRisk
	if rewardRisk <= 0 {
		rewardRisk = defaultRewardRisk
	}

	assessment := p.risk.CalculateRisk(risk.Request{
		Symbol:          req.Symbol,
		Direction:       risk.Direction(res.Bias),
		WinProb:         winProbFor(res.Score),
		RewardRisk:      rewardRisk,
		RealizedVolPct:  realizedVolPct(state),
		Equity:          req.Equity,
		Regime:          string(regimeCat),
		Price:           state.Price,
		CorrelationWith: req.CorrelationWith,
	})
	decision.Assessment = &assessment

	planReq := execution.Request{
		Symbol:          req.Symbol,
		Direction:       string(res.Bias),
		SizeUSD:         assessment.SizeUSD,
		LiquidityUSD:    bookDepthUSD(state),
		SpreadBps:       spreadBps(state),
		VolatilityBps:   realizedVolPct(state) * 100,
		BookImbalance:   state.BookImbalance,
		ConvictionScore: res.Score,
		Regime:          string(regimeCat),
	}
	if res.Footprint != nil {
		planReq.RecentSweep = res.Footprint.Sweep.Detected
		planReq.ImpulseStrength = res.Footprint.Impulse.Strength
	}
	decision.Plan = p.planner.GeneratePlan(planReq)

	if p.plans != nil {
		rec := persistence.DecisionRecord{
			PlanID:     decision.Plan.ID,
			Symbol:     req.Symbol,
			Score:      res.Score,
			Bias:       string(res.Bias),
			Conviction: res,
			Assessment: decision.Assessment,
			Plan:       decision.Plan,
			CreatedAt:  time.Now(),
		}
		if _, err := p.plans.Insert(ctx, rec); err != nil {
			// Persistence is an audit trail, not a gate on the decision.
			log.Error().Err(err).Str("plan_id", rec.PlanID).Msg("decision persist failed")
		}
	}
	return decision, nil
}

// Evaluate runs conviction only, without sizing or planning.
func (p *Pipeline) Evaluate(ctx context.Context, symbol string) (*conviction.Result, error) {
	return p.conviction.Evaluate(ctx, symbol)
}

// Size runs the risk sizer directly with caller-supplied inputs.
func (p *Pipeline) Size(req risk.Request) risk.Assessment {
	return p.risk.CalculateRisk(req)
}

// StateAge reports how stale the symbol's snapshot is. Unknown symbols report
// ok=false.
func (p *Pipeline) StateAge(symbol string) (time.Duration, bool) {
	state, ok := p.store.Get(symbol)
	if !ok {
		return 0, false
	}
	return time.Since(time.UnixMilli(state.TimestampMs)), true
}

// winProbFor maps score distance from the 50 midpoint into a win
// probability, capped at 0.75 at the score extremes.
func winProbFor(score int) float64 {
	return 0.5 + math.Abs(float64(score)-50)/200
}

// realizedVolPct proxies short-horizon realized volatility with the 1m move.
func realizedVolPct(state market.State) float64 {
	if state.Price <= 0 {
		return 0
	}
	return math.Abs(state.PriceDelta1m) / state.Price * 100
}

func spreadBps(state market.State) float64 {
	if len(state.Bids) == 0 || len(state.Asks) == 0 {
		return 0
	}
	bid, ask := state.Bids[0].Price, state.Asks[0].Price
	mid := (bid + ask) / 2
	if mid <= 0 || ask < bid {
		return 0
	}
	return (ask - bid) / mid * 10000
}

// bookDepthUSD sums notional across the top levels of both sides.
func bookDepthUSD(state market.State) float64 {
	sum := 0.0
	for _, side := range [][]market.BookLevel{state.Bids, state.Asks} {
		n := len(side)
		if n > depthLevels {
			n = depthLevels
		}
		for _, lvl := range side[:n] {
			sum += lvl.Price * lvl.Size
		}
	}
	return sum
}
