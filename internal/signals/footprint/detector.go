package footprint

import (
	"math"
	"time"

	"github.com/quantmesh/edgecore/internal/market"
)

// Event tags emitted by the detectors. An empty tag means nothing fired.
const (
	BuySweep         = "BUY_SWEEP"
	SellSweep        = "SELL_SWEEP"
	BuyAbsorption    = "BUY_ABSORPTION"  // aggressive selling absorbed by resting bids
	SellAbsorption   = "SELL_ABSORPTION" // aggressive buying absorbed by resting asks
	BuyFlowDominant  = "BUY_FLOW_DOMINANT"
	SellFlowDominant = "SELL_FLOW_DOMINANT"
	BullishImpulse   = "BULLISH_IMPULSE"
	BearishImpulse   = "BEARISH_IMPULSE"
)

// Config holds the footprint tuning constants. Like the regime thresholds,
// these are product-tuned values exposed through configuration.
type Config struct {
	SweepWindowMs       int64   `yaml:"sweep_window_ms"`       // default 500
	SweepNotionalUSD    float64 `yaml:"sweep_notional_usd"`    // default $50k
	SweepCollapseFactor float64 `yaml:"sweep_collapse_factor"` // default 1.4x top-3 depth

	AbsorptionWindowMs    int64   `yaml:"absorption_window_ms"`    // default 30s
	AbsorptionNotionalUSD float64 `yaml:"absorption_notional_usd"` // default $100k
	AbsorptionMaxMovePct  float64 `yaml:"absorption_max_move_pct"` // default 0.02%

	FlowZThreshold float64 `yaml:"flow_z_threshold"` // default 1.5
	FlowRatioLow   float64 `yaml:"flow_ratio_low"`   // default 0.5
	FlowRatioHigh  float64 `yaml:"flow_ratio_high"`  // default 2.0
	FlowMinHistory int     `yaml:"flow_min_history"` // default 5

	ImpulseMinPricePct float64 `yaml:"impulse_min_price_pct"` // default 0.1%
	ImpulseMinCVDUSD   float64 `yaml:"impulse_min_cvd_usd"`   // default $50k
}

// DefaultConfig returns production footprint constants.
func DefaultConfig() Config {
	return Config{
		SweepWindowMs:         500,
		SweepNotionalUSD:      50000,
		SweepCollapseFactor:   1.4,
		AbsorptionWindowMs:    30000,
		AbsorptionNotionalUSD: 100000,
		AbsorptionMaxMovePct:  0.02,
		FlowZThreshold:        1.5,
		FlowRatioLow:          0.5,
		FlowRatioHigh:         2.0,
		FlowMinHistory:        5,
		ImpulseMinPricePct:    0.1,
		ImpulseMinCVDUSD:      50000,
	}
}

// SubResult is a single detector outcome.
type SubResult struct {
	Detected bool    `json:"detected"`
	Event    string  `json:"event,omitempty"`
	Strength float64 `json:"strength"`
}

// FlowResult extends SubResult with the raw ratio and z-score for audit.
type FlowResult struct {
	SubResult
	Ratio  float64 `json:"ratio"`
	ZScore float64 `json:"z_score"`
}

// Result bundles the four footprint detectors for one evaluation.
type Result struct {
	Sweep      SubResult  `json:"sweep"`
	Absorption SubResult  `json:"absorption"`
	Flow       FlowResult `json:"flow"`
	Impulse    SubResult  `json:"impulse"`
	Timestamp  time.Time  `json:"timestamp"`
}

// Detector runs the sweep/absorption/flow/impulse detectors over the trailing
// trade window carried by the market state. It is stateless; the flow
// detector's rolling ratio history is owned by the orchestrating service.
type Detector struct {
	config Config
	nowMs  func() int64
}

// NewDetector creates a footprint detector. A zero-valued config selects
// defaults.
func NewDetector(config Config) *Detector {
	if config == (Config{}) {
		config = DefaultConfig()
	}
	return &Detector{
		config: config,
		nowMs:  func() int64 { return time.Now().UnixMilli() },
	}
}

// Detect evaluates all four detectors. flowHistory holds prior 1m buy/sell
// ratios, oldest first; with fewer than FlowMinHistory samples the flow score
// falls back to the log-ratio instead of a z-score.
func (d *Detector) Detect(state market.State, flowHistory []float64) Result {
	return Result{
		Sweep:      d.detectSweep(state),
		Absorption: d.detectAbsorption(state),
		Flow:       d.detectFlow(state, flowHistory),
		Impulse:    d.detectImpulse(state),
		Timestamp:  time.Now(),
	}
}

// detectSweep fires when one-sided aggressive notional inside the sweep
// window exceeds both the fixed threshold and the collapse factor times the
// top-3 resting depth on the swept side.
func (d *Detector) detectSweep(state market.State) SubResult {
	cutoff := d.nowMs() - d.config.SweepWindowMs
	var buyNotional, sellNotional float64
	for _, tr := range state.RecentTrades {
		if tr.TimestampMs < cutoff {
			continue
		}
		if tr.Side == "buy" {
			buyNotional += tr.Price * tr.Size
		} else {
			sellNotional += tr.Price * tr.Size
		}
	}

	askDepth := topDepthUSD(state.Asks, 3)
	bidDepth := topDepthUSD(state.Bids, 3)

	if buyNotional > d.config.SweepNotionalUSD && buyNotional > d.config.SweepCollapseFactor*askDepth {
		return SubResult{Detected: true, Event: BuySweep, Strength: clamp(buyNotional/(d.config.SweepNotionalUSD*5), 0, 1)}
	}
	if sellNotional > d.config.SweepNotionalUSD && sellNotional > d.config.SweepCollapseFactor*bidDepth {
		return SubResult{Detected: true, Event: SellSweep, Strength: clamp(sellNotional/(d.config.SweepNotionalUSD*5), 0, 1)}
	}
	return SubResult{}
}

// detectAbsorption fires when heavy aggression over the absorption window
// barely moves price: the passive side is soaking up the flow.
func (d *Detector) detectAbsorption(state market.State) SubResult {
	cutoff := d.nowMs() - d.config.AbsorptionWindowMs
	var buyNotional, sellNotional float64
	var first, last *market.Trade
	for i := range state.RecentTrades {
		tr := &state.RecentTrades[i]
		if tr.TimestampMs < cutoff {
			continue
		}
		if first == nil {
			first = tr
		}
		last = tr
		if tr.Side == "buy" {
			buyNotional += tr.Price * tr.Size
		} else {
			sellNotional += tr.Price * tr.Size
		}
	}
	if first == nil || first.Price == 0 {
		return SubResult{}
	}

	movePct := math.Abs(last.Price-first.Price) / first.Price * 100
	if movePct >= d.config.AbsorptionMaxMovePct {
		return SubResult{}
	}

	if sellNotional > d.config.AbsorptionNotionalUSD {
		return SubResult{Detected: true, Event: BuyAbsorption, Strength: clamp(sellNotional/d.config.AbsorptionNotionalUSD, 0, 10)}
	}
	if buyNotional > d.config.AbsorptionNotionalUSD {
		return SubResult{Detected: true, Event: SellAbsorption, Strength: clamp(buyNotional/d.config.AbsorptionNotionalUSD, 0, 10)}
	}
	return SubResult{}
}

// detectFlow scores the 1-minute aggressive buy/sell ratio. Zero volume on
// both sides is a neutral ratio of 1.0, never a division error.
func (d *Detector) detectFlow(state market.State, history []float64) FlowResult {
	buy, sell := state.AggBuyVol1m, state.AggSellVol1m

	res := FlowResult{Ratio: 1.0}
	switch {
	case buy == 0 && sell == 0:
		return res
	case sell == 0:
		res.Ratio = maxFlowRatio
	default:
		res.Ratio = math.Min(buy/sell, maxFlowRatio)
	}

	if len(history) >= d.config.FlowMinHistory {
		mean, std := meanStd(history)
		if std > 0 {
			res.ZScore = (res.Ratio - mean) / std
		}
	} else {
		// Sparse history: log-ratio doubles as a crude z proxy.
		res.ZScore = math.Log(res.Ratio)
	}

	dominant := math.Abs(res.ZScore) > d.config.FlowZThreshold ||
		res.Ratio < d.config.FlowRatioLow || res.Ratio > d.config.FlowRatioHigh
	if !dominant {
		return res
	}

	res.Detected = true
	res.Strength = clamp(math.Abs(res.ZScore), 0, 3)
	if res.Ratio >= 1 {
		res.Event = BuyFlowDominant
	} else {
		res.Event = SellFlowDominant
	}
	return res
}

// detectImpulse fires on a simultaneous, same-signed price and CVD thrust.
func (d *Detector) detectImpulse(state market.State) SubResult {
	if state.Price <= 0 {
		return SubResult{}
	}
	pricePct := state.PriceDelta1m / state.Price * 100
	cvd := state.CVDDelta1m

	if math.Abs(pricePct) < d.config.ImpulseMinPricePct || math.Abs(cvd) < d.config.ImpulseMinCVDUSD {
		return SubResult{}
	}
	if (pricePct > 0) != (cvd > 0) {
		return SubResult{}
	}

	strength := clamp((math.Abs(pricePct)/d.config.ImpulseMinPricePct)*(math.Abs(cvd)/d.config.ImpulseMinCVDUSD), 0, 5)
	if pricePct > 0 {
		return SubResult{Detected: true, Event: BullishImpulse, Strength: strength}
	}
	return SubResult{Detected: true, Event: BearishImpulse, Strength: strength}
}

const maxFlowRatio = 100.0

func topDepthUSD(levels []market.BookLevel, n int) float64 {
	if n > len(levels) {
		n = len(levels)
	}
	sum := 0.0
	for _, lvl := range levels[:n] {
		sum += lvl.Price * lvl.Size
	}
	return sum
}

func meanStd(values []float64) (float64, float64) {
	if len(values) == 0 {
		return 0, 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))
	variance := 0.0
	for _, v := range values {
		variance += (v - mean) * (v - mean)
	}
	return mean, math.Sqrt(variance / float64(len(values)))
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
