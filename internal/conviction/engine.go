package conviction

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/quantmesh/edgecore/internal/signals/footprint"
	"github.com/quantmesh/edgecore/internal/signals/liquidation"
	"github.com/quantmesh/edgecore/internal/signals/regime"
	"github.com/quantmesh/edgecore/internal/signals/volatility"
)

// Bias is the synthesized directional call.
type Bias string

const (
	Long    Bias = "LONG"
	Short   Bias = "SHORT"
	Neutral Bias = "NEUTRAL"
)

// Bias thresholds require clear separation from the 50 midpoint.
const (
	LongThreshold  = 55
	ShortThreshold = 45
)

// ErrIncompleteSignals is returned when a required sub-signal is missing:
// the engine fails closed rather than guessing a partial conviction.
var ErrIncompleteSignals = fmt.Errorf("conviction: required sub-signal unavailable")

// Inputs carries the processor outputs fused by the engine. Regime,
// volatility and footprint are required; liquidation is optional because the
// projector legitimately reports "not available" (its component then scores
// neutral rather than suppressing the whole decision).
type Inputs struct {
	Symbol      string
	Regime      *regime.Signal
	Volatility  *volatility.Signal
	Footprint   *footprint.Result
	Liquidation *liquidation.Result
	FundingRate float64
	FundingMean float64
	FundingStd  float64
}

// Component is one named, weighted contributor to the final score.
type Component struct {
	Name        string  `json:"name"`
	Score       float64 `json:"score"` // normalized, -1.0 to 1.0
	Weight      float64 `json:"weight"`
	Description string  `json:"description"`
}

// Result is the fused, explainable conviction signal.
type Result struct {
	Symbol      string      `json:"symbol"`
	Bias        Bias        `json:"bias"`
	Score       int         `json:"score"`      // 0-100
	Confidence  float64     `json:"confidence"` // 0.0-1.0
	Components  []Component `json:"components"`
	Explanation []string    `json:"explanation"`
	Smoothed    bool        `json:"smoothed"`
	Timestamp   time.Time   `json:"timestamp"`

	// Footprint carries the raw detector output so downstream consumers
	// (execution urgency, the adverse-selection gate) can read sweep and
	// impulse state without re-running detection.
	Footprint *footprint.Result `json:"footprint,omitempty"`
}

// Engine fuses processor outputs into a single 0-100 conviction score.
// Analyze is a pure function of its inputs.
type Engine struct {
	weights Weights
}

// NewEngine creates an engine with the given weights; zero weights select the
// default set. Explicit weights must satisfy the sum-to-one invariant.
func NewEngine(weights Weights) (*Engine, error) {
	if weights == (Weights{}) {
		weights = DefaultWeights()
	}
	if err := weights.Validate(); err != nil {
		return nil, err
	}
	return &Engine{weights: weights}, nil
}

// Analyze maps each sub-signal to a normalized [-1,1] component, applies the
// weight set and emits score, bias, confidence and an ordered explanation.
func (e *Engine) Analyze(in Inputs) (*Result, error) {
	if in.Regime == nil || in.Volatility == nil || in.Footprint == nil {
		return nil, ErrIncompleteSignals
	}

	regimeScore, regimeDir := regimeComponent(*in.Regime)
	components := []Component{
		{
			Name:        "regime",
			Score:       regimeScore,
			Weight:      e.weights.Regime,
			Description: fmt.Sprintf("%s (conf %.2f)", in.Regime.Category, in.Regime.Confidence),
		},
		{
			Name:        "liquidation",
			Score:       liquidationComponent(in.Liquidation),
			Weight:      e.weights.Liquidation,
			Description: liquidationDescription(in.Liquidation),
		},
		{
			Name:        "footprint",
			Score:       footprintComponent(*in.Footprint),
			Weight:      e.weights.Footprint,
			Description: footprintDescription(*in.Footprint),
		},
		{
			Name:        "funding",
			Score:       fundingComponent(in.FundingRate, in.FundingMean, in.FundingStd),
			Weight:      e.weights.Funding,
			Description: fmt.Sprintf("funding %.5f vs mean %.5f", in.FundingRate, in.FundingMean),
		},
		{
			Name:        "volatility",
			Score:       volatilityComponent(*in.Volatility, regimeDir),
			Weight:      e.weights.Volatility,
			Description: fmt.Sprintf("%s (compression %.2f)", in.Volatility.Category, in.Volatility.CompressionScore),
		},
	}

	weighted := 0.0
	for _, c := range components {
		weighted += c.Weight * c.Score
	}

	score := int(math.Round(50 + 50*weighted))
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}

	return &Result{
		Symbol:      in.Symbol,
		Bias:        BiasForScore(score),
		Score:       score,
		Confidence:  confidence(components, weighted),
		Components:  components,
		Explanation: explain(components, score),
		Timestamp:   time.Now(),
	}, nil
}

// BiasForScore applies the LONG/SHORT thresholds.
func BiasForScore(score int) Bias {
	switch {
	case score >= LongThreshold:
		return Long
	case score <= ShortThreshold:
		return Short
	default:
		return Neutral
	}
}

// regimeDirections maps each category to a fixed directional bias, scaled by
// the classifier's confidence.
var regimeDirections = map[regime.Category]float64{
	regime.AggressiveLongBuild:  1.0,
	regime.ShortCover:           0.6,
	regime.StableAccumulation:   0.3,
	regime.Neutral:              0.0,
	regime.StableDistribution:   -0.3,
	regime.LongUnwind:           -0.6,
	regime.AggressiveShortBuild: -1.0,
}

func regimeComponent(sig regime.Signal) (score, direction float64) {
	direction = regimeDirections[sig.Category]
	return direction * sig.Confidence, direction
}

// provenanceDiscount scales the liquidation component down when levels are
// not exchange-reported.
var provenanceDiscount = map[liquidation.Provenance]float64{
	liquidation.SourceReal:      1.0,
	liquidation.SourceMixed:     0.8,
	liquidation.SourceEstimated: 0.6,
}

func liquidationComponent(res *liquidation.Result) float64 {
	if res == nil {
		return 0
	}
	discount := provenanceDiscount[res.Provenance]
	switch res.DominantSide {
	case liquidation.ShortSqueeze:
		return 0.8 * discount
	case liquidation.LongSqueeze:
		return -0.8 * discount
	default:
		return 0
	}
}

func liquidationDescription(res *liquidation.Result) string {
	if res == nil {
		return "no liquidation data"
	}
	return fmt.Sprintf("%s (%s, %d levels)", res.DominantSide, res.Provenance, res.LevelCount)
}

// footprintComponent averages the directional strengths of the detectors
// that fired, each normalized to its own clamp range.
func footprintComponent(res footprint.Result) float64 {
	var sum float64
	var n int

	add := func(score float64) {
		sum += score
		n++
	}

	if res.Sweep.Detected {
		add(signOf(res.Sweep.Event == footprint.BuySweep) * math.Min(res.Sweep.Strength, 1))
	}
	if res.Absorption.Detected {
		add(signOf(res.Absorption.Event == footprint.BuyAbsorption) * math.Min(res.Absorption.Strength/10, 1))
	}
	if res.Flow.Detected {
		add(signOf(res.Flow.Event == footprint.BuyFlowDominant) * math.Min(res.Flow.Strength/3, 1))
	}
	if res.Impulse.Detected {
		add(signOf(res.Impulse.Event == footprint.BullishImpulse) * math.Min(res.Impulse.Strength/5, 1))
	}

	if n == 0 {
		return 0
	}
	return clamp(sum/float64(n), -1, 1)
}

func footprintDescription(res footprint.Result) string {
	events := []string{}
	for _, sr := range []footprint.SubResult{res.Sweep, res.Absorption, res.Flow.SubResult, res.Impulse} {
		if sr.Detected {
			events = append(events, sr.Event)
		}
	}
	if len(events) == 0 {
		return "no footprint events"
	}
	return fmt.Sprintf("events: %v", events)
}

// fundingComponent z-scores the current rate against its rolling mean/std.
// Elevated funding marks a crowded long side, which reads bearish.
func fundingComponent(rate, mean, std float64) float64 {
	if std <= 0 {
		return 0
	}
	z := clamp((rate-mean)/std, -3, 3)
	return -z / 3
}

// volatilityComponent aligns compression with the regime direction: a
// compressed market leaning one way is primed to break that way. Expansion
// gets a small push in the same direction; plain trending adds nothing.
func volatilityComponent(sig volatility.Signal, regimeDir float64) float64 {
	dir := 0.0
	if regimeDir > 0 {
		dir = 1
	} else if regimeDir < 0 {
		dir = -1
	}
	switch sig.Category {
	case volatility.Compression:
		return dir * sig.CompressionScore
	case volatility.Expansion:
		return dir * 0.2
	default:
		return 0
	}
}

// confidence blends component agreement (fraction of active components
// pointing with the weighted sum) with the magnitude of the weighted sum.
func confidence(components []Component, weighted float64) float64 {
	active, agreeing := 0, 0
	for _, c := range components {
		if math.Abs(c.Score) < 0.05 {
			continue
		}
		active++
		if (c.Score > 0) == (weighted > 0) {
			agreeing++
		}
	}

	agreement := 0.0
	if active > 0 {
		agreement = float64(agreeing) / float64(active)
	}
	return clamp(0.5*agreement+0.5*math.Min(math.Abs(weighted), 1), 0, 1)
}

// explain lists the deciding factors in order of weighted contribution.
func explain(components []Component, score int) []string {
	ranked := make([]Component, len(components))
	copy(ranked, components)
	sort.SliceStable(ranked, func(i, j int) bool {
		return math.Abs(ranked[i].Weight*ranked[i].Score) > math.Abs(ranked[j].Weight*ranked[j].Score)
	})

	out := []string{fmt.Sprintf("score %d (%s)", score, BiasForScore(score))}
	for _, c := range ranked {
		out = append(out, fmt.Sprintf("%s %+0.2f x %.2f: %s", c.Name, c.Score, c.Weight, c.Description))
	}
	return out
}

func signOf(positive bool) float64 {
	if positive {
		return 1
	}
	return -1
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
