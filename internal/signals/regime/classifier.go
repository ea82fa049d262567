package regime

import (
	"math"
	"time"

	"github.com/quantmesh/edgecore/internal/market"
)

// Category is the price/open-interest regime classification.
type Category string

const (
	AggressiveLongBuild  Category = "AGGRESSIVE_LONG_BUILD"
	AggressiveShortBuild Category = "AGGRESSIVE_SHORT_BUILD"
	ShortCover           Category = "SHORT_COVER"
	LongUnwind           Category = "LONG_UNWIND"
	StableAccumulation   Category = "STABLE_ACCUMULATION"
	StableDistribution   Category = "STABLE_DISTRIBUTION"
	Neutral              Category = "NEUTRAL"
)

// Config holds the classifier's tuning constants. These are empirically tuned
// product constants, not derived invariants; override them via configuration,
// do not infer new semantics from them.
type Config struct {
	// PriceMoveThresholdBps is deliberately tiny (0.2bps): the classifier
	// favors responsiveness over noise rejection and relies on downstream
	// score smoothing to absorb flicker.
	PriceMoveThresholdBps float64 `yaml:"price_move_threshold_bps"`
	OIDeltaThreshold      float64 `yaml:"oi_delta_threshold"`
	PriceStrengthCapBps   float64 `yaml:"price_strength_cap_bps"`
	OIStrengthCap         float64 `yaml:"oi_strength_cap"`
	ImbalanceThreshold    float64 `yaml:"imbalance_threshold"`
	MinConfidence         float64 `yaml:"min_confidence"`
}

// DefaultConfig returns production classifier constants.
func DefaultConfig() Config {
	return Config{
		PriceMoveThresholdBps: 0.2,
		OIDeltaThreshold:      10.0,
		PriceStrengthCapBps:   5.0,
		OIStrengthCap:         100.0,
		ImbalanceThreshold:    1.2,
		MinConfidence:         0.25,
	}
}

// Signal is the classifier output.
type Signal struct {
	Category   Category  `json:"category"`
	Confidence float64   `json:"confidence"` // 0.0-1.0, floored at MinConfidence
	PriceBps   float64   `json:"price_bps"`  // 1m price move in basis points
	OIDelta    float64   `json:"oi_delta"`   // 1m open interest delta
	Timestamp  time.Time `json:"timestamp"`
}

// Classifier classifies the price/OI regime from a market snapshot.
type Classifier struct {
	config Config
}

// NewClassifier creates a classifier. A zero-valued config selects defaults.
func NewClassifier(config Config) *Classifier {
	if config == (Config{}) {
		config = DefaultConfig()
	}
	return &Classifier{config: config}
}

// Classify maps 1m price delta x 1m OI delta into a regime category. When the
// OI delta is too weak to disambiguate, the order-book imbalance provides a
// secondary confirmation. Confidence blends normalized price, OI and book
// strength and is floored so the output is always actionable.
func (c *Classifier) Classify(state market.State) Signal {
	priceBps := 0.0
	if state.Price > 0 {
		priceBps = state.PriceDelta1m / state.Price * 10000
	}

	priceUp := priceBps > c.config.PriceMoveThresholdBps
	priceDown := priceBps < -c.config.PriceMoveThresholdBps
	oiStrong := math.Abs(state.OIDelta1m) >= c.config.OIDeltaThreshold
	oiUp := state.OIDelta1m > 0

	category := Neutral
	switch {
	case priceUp && oiStrong && oiUp:
		category = AggressiveLongBuild
	case priceDown && oiStrong && oiUp:
		category = AggressiveShortBuild
	case priceUp && oiStrong && !oiUp:
		category = ShortCover
	case priceDown && oiStrong && !oiUp:
		category = LongUnwind
	case priceUp || priceDown:
		// Weak OI: confirm direction with resting book pressure.
		category = c.confirmWithBook(priceUp, state.BookImbalance)
	case oiStrong && oiUp:
		category = StableAccumulation
	case oiStrong && !oiUp:
		category = StableDistribution
	}

	return Signal{
		Category:   category,
		Confidence: c.confidence(priceBps, state.OIDelta1m, state.BookImbalance),
		PriceBps:   priceBps,
		OIDelta:    state.OIDelta1m,
		Timestamp:  time.Now(),
	}
}

func (c *Classifier) confirmWithBook(priceUp bool, imbalance float64) Category {
	if priceUp {
		if imbalance >= c.config.ImbalanceThreshold {
			return AggressiveLongBuild
		}
		return ShortCover
	}
	if imbalance > 0 && imbalance <= 1/c.config.ImbalanceThreshold {
		return AggressiveShortBuild
	}
	return LongUnwind
}

// confidence blends three normalized strengths: price move (contribution capped
// beyond PriceStrengthCapBps), OI delta (capped beyond OIStrengthCap) and book
// imbalance distance from parity.
func (c *Classifier) confidence(priceBps, oiDelta, imbalance float64) float64 {
	priceStrength := math.Min(math.Abs(priceBps)/c.config.PriceStrengthCapBps, 1.0)
	oiStrength := math.Min(math.Abs(oiDelta)/c.config.OIStrengthCap, 1.0)

	bookStrength := 0.0
	if imbalance > 0 {
		bookStrength = math.Min(math.Abs(math.Log(imbalance)), 1.0)
	}

	conf := 0.5*priceStrength + 0.3*oiStrength + 0.2*bookStrength
	return math.Max(conf, c.config.MinConfidence)
}
