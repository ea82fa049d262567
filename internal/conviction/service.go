package conviction

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/rs/zerolog/log"

	"github.com/quantmesh/edgecore/internal/market"
	"github.com/quantmesh/edgecore/internal/rolling"
	"github.com/quantmesh/edgecore/internal/signals/footprint"
	"github.com/quantmesh/edgecore/internal/signals/liquidation"
	"github.com/quantmesh/edgecore/internal/signals/regime"
	"github.com/quantmesh/edgecore/internal/signals/volatility"
	"github.com/quantmesh/edgecore/internal/telemetry"
)

// ErrNoState is returned when the symbol has never been seen by the store.
var ErrNoState = errors.New("conviction: no market state for symbol")

// historyCap bounds every per-symbol rolling buffer.
const historyCap = 200

// Service orchestrates the per-symbol decision pipeline: it reads the latest
// state, drives the signal processors, fuses them through the engine and
// applies the smoothing gate.
//
// Precondition: a single logical task drives each symbol's pipeline. The
// rolling histories are deliberately unlocked; concurrent Evaluate calls for
// the same symbol are an unsupported configuration.
type Service struct {
	store      *market.Store
	classifier *regime.Classifier
	volatility *volatility.Detector
	footprints *footprint.Detector
	projector  *liquidation.Projector
	engine     *Engine
	metrics    *telemetry.Metrics
	histories  map[string]*symbolHistory
}

type symbolHistory struct {
	volSamples *rolling.Ring[volatility.Sample]
	flowRatios *rolling.Ring[float64]
	funding    *rolling.Ring[float64]
	smoother   *Smoother
}

// NewService wires the pipeline. metrics may be nil in tests.
func NewService(
	store *market.Store,
	classifier *regime.Classifier,
	volDetector *volatility.Detector,
	footprints *footprint.Detector,
	projector *liquidation.Projector,
	engine *Engine,
	metrics *telemetry.Metrics,
) *Service {
	return &Service{
		store:      store,
		classifier: classifier,
		volatility: volDetector,
		footprints: footprints,
		projector:  projector,
		engine:     engine,
		metrics:    metrics,
		histories:  make(map[string]*symbolHistory),
	}
}

// Evaluate runs the full pipeline for one symbol and returns the smoothed,
// explainable conviction.
func (s *Service) Evaluate(ctx context.Context, symbol string) (*Result, error) {
	state, ok := s.store.Get(symbol)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoState, symbol)
	}

	h := s.historyFor(symbol)

	h.volSamples.Push(candleProxy(state))
	volSig := s.volatility.Detect(h.volSamples.Values())

	regimeSig := s.classifier.Classify(state)

	fp := s.footprints.Detect(state, h.flowRatios.Values())
	if r, ok := flowRatio(state); ok {
		h.flowRatios.Push(r)
	}

	fundingMean, fundingStd := meanStd(h.funding.Values())
	h.funding.Push(state.FundingRate)

	liq, err := s.projector.Project(ctx, state)
	if err != nil {
		if !errors.Is(err, liquidation.ErrNotAvailable) {
			return nil, fmt.Errorf("liquidation projection: %w", err)
		}
		liq = nil // optional component scores neutral
	}

	res, err := s.engine.Analyze(Inputs{
		Symbol:      symbol,
		Regime:      &regimeSig,
		Volatility:  &volSig,
		Footprint:   &fp,
		Liquidation: liq,
		FundingRate: state.FundingRate,
		FundingMean: fundingMean,
		FundingStd:  fundingStd,
	})
	if err != nil {
		return nil, err
	}

	res.Footprint = &fp

	raw := res.Score
	res.Score, res.Smoothed = h.smoother.Observe(regimeSig.Category, raw)
	res.Bias = BiasForScore(res.Score)
	if res.Smoothed {
		res.Explanation = append(res.Explanation, fmt.Sprintf("smoothed %d -> %d over last %d readings", raw, res.Score, smoothWindow))
	}

	if s.metrics != nil {
		s.metrics.ObserveConviction(symbol, string(res.Bias), float64(res.Score))
	}
	log.Debug().
		Str("symbol", symbol).
		Int("score", res.Score).
		Str("bias", string(res.Bias)).
		Bool("smoothed", res.Smoothed).
		Str("regime", string(regimeSig.Category)).
		Msg("conviction evaluated")

	return res, nil
}

// RegimeCategory exposes the instantaneous regime classification, used by the
// risk layer's regime scalar.
func (s *Service) RegimeCategory(symbol string) (regime.Category, error) {
	state, ok := s.store.Get(symbol)
	if !ok {
		return regime.Neutral, fmt.Errorf("%w: %s", ErrNoState, symbol)
	}
	return s.classifier.Classify(state).Category, nil
}

func (s *Service) historyFor(symbol string) *symbolHistory {
	h, ok := s.histories[symbol]
	if !ok {
		h = &symbolHistory{
			volSamples: rolling.NewRing[volatility.Sample](historyCap),
			flowRatios: rolling.NewRing[float64](historyCap),
			funding:    rolling.NewRing[float64](historyCap),
			smoother:   NewSmoother(),
		}
		s.histories[symbol] = h
	}
	return h
}

// candleProxy derives a one-interval range sample from the snapshot: the 1m
// price delta spans the bar, aggressive volume proxies activity.
func candleProxy(state market.State) volatility.Sample {
	open := state.Price - state.PriceDelta1m
	return volatility.Sample{
		High:   math.Max(state.Price, open),
		Low:    math.Min(state.Price, open),
		Volume: state.AggBuyVol1m + state.AggSellVol1m,
	}
}

func flowRatio(state market.State) (float64, bool) {
	buy, sell := state.AggBuyVol1m, state.AggSellVol1m
	switch {
	case buy == 0 && sell == 0:
		return 0, false
	case sell == 0:
		return 100, true
	default:
		return math.Min(buy/sell, 100), true
	}
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
