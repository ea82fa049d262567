package volatility

import (
	"math"
	"time"
)

// Category is the volatility regime classification.
type Category string

const (
	Compression Category = "COMPRESSION"
	Expansion   Category = "EXPANSION"
	Trending    Category = "TRENDING"
)

// Sample is one observation fed into the detector's rolling window.
type Sample struct {
	High   float64
	Low    float64
	Volume float64
}

// Config holds compression detector tuning constants.
type Config struct {
	RecentRangeWindow int     `yaml:"recent_range_window"` // last N samples, default 5
	PriorRangeWindow  int     `yaml:"prior_range_window"`  // preceding N samples, default 9
	RecentVolWindow   int     `yaml:"recent_vol_window"`   // last N samples, default 3
	PriorVolWindow    int     `yaml:"prior_vol_window"`    // preceding N samples, default 14
	CompressionScore  float64 `yaml:"compression_score"`   // score above which regime is COMPRESSION
	ExpansionRatio    float64 `yaml:"expansion_ratio"`     // range ratio above which regime is EXPANSION
}

// DefaultConfig returns production compression constants.
func DefaultConfig() Config {
	return Config{
		RecentRangeWindow: 5,
		PriorRangeWindow:  9,
		RecentVolWindow:   3,
		PriorVolWindow:    14,
		CompressionScore:  0.7,
		ExpansionRatio:    1.5,
	}
}

// Signal is the detector output. CompressionScore is 0 when history is thin.
type Signal struct {
	Category         Category  `json:"category"`
	CompressionScore float64   `json:"compression_score"` // 0.0-1.0
	RangeRatio       float64   `json:"range_ratio"`
	VolumeRatio      float64   `json:"volume_ratio"`
	Timestamp        time.Time `json:"timestamp"`
}

// Detector computes a volatility-compression score from rolling price ranges
// and volume. It is stateless; the caller owns the sample history.
type Detector struct {
	config Config
}

// NewDetector creates a detector. A zero-valued config selects defaults.
func NewDetector(config Config) *Detector {
	if config == (Config{}) {
		config = DefaultConfig()
	}
	return &Detector{config: config}
}

// MinSamples is the history length required for a classification.
func (d *Detector) MinSamples() int {
	return d.config.RecentRangeWindow + d.config.PriorRangeWindow
}

// Detect classifies the volatility regime from the sample history (oldest
// first). With fewer than MinSamples observations it defaults to TRENDING
// with score 0 rather than guessing.
func (d *Detector) Detect(samples []Sample) Signal {
	sig := Signal{Category: Trending, Timestamp: time.Now()}
	if len(samples) < d.MinSamples() {
		return sig
	}

	rangeRatio := windowRatio(samples, d.config.RecentRangeWindow, d.config.PriorRangeWindow, avgRange)
	volRatio := windowRatio(samples, d.config.RecentVolWindow, d.config.PriorVolWindow, avgVolume)

	score := (math.Max(0, 1-rangeRatio) + math.Max(0, 1-volRatio)) / 2

	sig.RangeRatio = rangeRatio
	sig.VolumeRatio = volRatio
	sig.CompressionScore = score

	switch {
	case score > d.config.CompressionScore:
		sig.Category = Compression
	case rangeRatio > d.config.ExpansionRatio:
		sig.Category = Expansion
	}
	return sig
}

// windowRatio compares the mean of the most recent `recent` samples against
// the mean of the `prior` samples preceding them. The prior window shrinks
// when history is shorter than recent+prior.
func windowRatio(samples []Sample, recent, prior int, metric func(Sample) float64) float64 {
	n := len(samples)
	if prior > n-recent {
		prior = n - recent
	}
	if prior <= 0 {
		return 1.0
	}
	recentAvg := mean(samples[n-recent:], metric)
	priorAvg := mean(samples[n-recent-prior:n-recent], metric)
	if priorAvg == 0 {
		return 1.0
	}
	return recentAvg / priorAvg
}

func mean(samples []Sample, metric func(Sample) float64) float64 {
	if len(samples) == 0 {
		return 0
	}
	sum := 0.0
	for _, s := range samples {
		sum += metric(s)
	}
	return sum / float64(len(samples))
}

func avgRange(s Sample) float64  { return s.High - s.Low }
func avgVolume(s Sample) float64 { return s.Volume }
