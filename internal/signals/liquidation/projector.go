package liquidation

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/quantmesh/edgecore/internal/market"
)

// DominantSide classifies which side of the book carries the larger
// liquidation notional.
type DominantSide string

const (
	ShortSqueeze DominantSide = "SHORT_SQUEEZE" // short liquidations dominate above price
	LongSqueeze  DominantSide = "LONG_SQUEEZE"  // long liquidations dominate below price
	Balanced     DominantSide = "BALANCED"
)

// Provenance tags where the contributing levels came from so consumers can
// discount low-confidence projections.
type Provenance string

const (
	SourceReal      Provenance = "real"
	SourceEstimated Provenance = "estimated"
	SourceMixed     Provenance = "mixed"
)

// ErrNotAvailable is returned when neither the state nor the secondary cache
// has any liquidation levels for the symbol.
var ErrNotAvailable = fmt.Errorf("liquidation data not available")

// Config holds projector tuning constants.
type Config struct {
	// OffsetsPct are the bucket boundaries (percent from current price).
	// Levels beyond the last offset are ignored as not actionable.
	OffsetsPct []float64 `yaml:"offsets_pct"`
	// SqueezeRatio is the upside/downside notional ratio beyond which the
	// projection is classified as a squeeze.
	SqueezeRatio float64 `yaml:"squeeze_ratio"`
}

// DefaultConfig returns production projector constants.
func DefaultConfig() Config {
	return Config{
		OffsetsPct:   []float64{0.5, 1.0, 2.0, 3.0, 5.0},
		SqueezeRatio: 1.5,
	}
}

// Result is the notional-at-risk projection around the current price.
type Result struct {
	Symbol         string             `json:"symbol"`
	CurrentPrice   float64            `json:"current_price"`
	UpsideUSD      map[string]float64 `json:"upside_usd"`      // pct offset -> short notional above price
	DownsideUSD    map[string]float64 `json:"downside_usd"`    // pct offset -> long notional below price
	ImbalanceRatio float64            `json:"imbalance_ratio"` // upside / downside notional, capped
	DominantSide   DominantSide       `json:"dominant_side"`
	Provenance     Provenance         `json:"provenance"`
	LevelCount     int                `json:"level_count"`
	Exchanges      []string           `json:"exchanges"`
	Timestamp      time.Time          `json:"timestamp"`
}

// SecondarySource supplies cached liquidation levels when the live state has
// none. Implementations must be safe for concurrent use.
type SecondarySource interface {
	Levels(ctx context.Context, symbol string) ([]market.LiquidationLevel, error)
}

// Projector buckets liquidation levels into notional-at-risk maps keyed by
// percentage offset from the current price.
type Projector struct {
	config    Config
	secondary SecondarySource
}

// NewProjector creates a projector. The secondary source may be nil, in which
// case only state-held levels are used. Offsets and squeeze ratio default
// independently so a partial config never leaves either unset.
func NewProjector(config Config, secondary SecondarySource) *Projector {
	def := DefaultConfig()
	if len(config.OffsetsPct) == 0 {
		config.OffsetsPct = def.OffsetsPct
	}
	if config.SqueezeRatio == 0 {
		config.SqueezeRatio = def.SqueezeRatio
	}
	return &Projector{config: config, secondary: secondary}
}

// Project computes the liquidation projection for the symbol's state. If the
// state carries no levels it falls back to the secondary cached source before
// giving up with ErrNotAvailable.
func (p *Projector) Project(ctx context.Context, state market.State) (*Result, error) {
	levels := state.LiqLevels
	if len(levels) == 0 && p.secondary != nil {
		cached, err := p.secondary.Levels(ctx, state.Symbol)
		if err != nil {
			log.Debug().Err(err).Str("symbol", state.Symbol).Msg("secondary liquidation source unavailable")
		} else {
			levels = cached
		}
	}
	if len(levels) == 0 || state.Price <= 0 {
		return nil, ErrNotAvailable
	}

	res := &Result{
		Symbol:       state.Symbol,
		CurrentPrice: state.Price,
		UpsideUSD:    make(map[string]float64),
		DownsideUSD:  make(map[string]float64),
		Timestamp:    time.Now(),
	}

	maxOffset := p.config.OffsetsPct[len(p.config.OffsetsPct)-1]
	exchanges := make(map[string]struct{})
	var real, estimated int
	var upTotal, downTotal float64

	for _, lvl := range levels {
		distPct := math.Abs(lvl.Price-state.Price) / state.Price * 100
		if distPct > maxOffset {
			continue
		}
		key := p.bucketKey(distPct)

		// Shorts liquidate as price rises (upside pressure); longs as it
		// falls (downside pressure). Side decides the map, not level price.
		switch lvl.Side {
		case "SHORT":
			res.UpsideUSD[key] += lvl.NotionalUSD
			upTotal += lvl.NotionalUSD
		case "LONG":
			res.DownsideUSD[key] += lvl.NotionalUSD
			downTotal += lvl.NotionalUSD
		default:
			continue
		}

		res.LevelCount++
		exchanges[lvl.Exchange] = struct{}{}
		if lvl.Source == string(SourceEstimated) {
			estimated++
		} else {
			real++
		}
	}

	if res.LevelCount == 0 {
		return nil, ErrNotAvailable
	}

	res.Exchanges = sortedKeys(exchanges)
	res.Provenance = provenance(real, estimated)
	res.ImbalanceRatio = ratio(upTotal, downTotal)
	res.DominantSide = p.dominantSide(res.ImbalanceRatio)
	return res, nil
}

func (p *Projector) bucketKey(distPct float64) string {
	for _, off := range p.config.OffsetsPct {
		if distPct <= off {
			return fmt.Sprintf("%.1f", off)
		}
	}
	return fmt.Sprintf("%.1f", p.config.OffsetsPct[len(p.config.OffsetsPct)-1])
}

func (p *Projector) dominantSide(imbalance float64) DominantSide {
	switch {
	case imbalance >= p.config.SqueezeRatio:
		return ShortSqueeze
	case imbalance <= 1/p.config.SqueezeRatio:
		return LongSqueeze
	default:
		return Balanced
	}
}

// maxImbalanceRatio caps the one-sided case; Inf would not survive JSON
// serialization.
const maxImbalanceRatio = 1000.0

func ratio(up, down float64) float64 {
	if down == 0 {
		if up == 0 {
			return 1.0
		}
		return maxImbalanceRatio
	}
	return math.Min(up/down, maxImbalanceRatio)
}

func provenance(real, estimated int) Provenance {
	switch {
	case real > 0 && estimated > 0:
		return SourceMixed
	case estimated > 0:
		return SourceEstimated
	default:
		return SourceReal
	}
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
