package volatility

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func flatSamples(n int, rng, vol float64) []Sample {
	out := make([]Sample, n)
	for i := range out {
		out[i] = Sample{High: 100 + rng, Low: 100, Volume: vol}
	}
	return out
}

func TestDetect_InsufficientHistoryDefaultsTrending(t *testing.T) {
	d := NewDetector(Config{})

	sig := d.Detect(flatSamples(13, 1.0, 100))
	assert.Equal(t, Trending, sig.Category)
	assert.Equal(t, 0.0, sig.CompressionScore)
}

func TestDetect_Compression(t *testing.T) {
	d := NewDetector(DefaultConfig())

	// Wide ranges and heavy volume early, then both collapse.
	samples := flatSamples(12, 10.0, 1000)
	samples = append(samples, flatSamples(5, 0.5, 50)...)

	sig := d.Detect(samples)
	assert.Equal(t, Compression, sig.Category)
	assert.Greater(t, sig.CompressionScore, 0.7)
	assert.LessOrEqual(t, sig.CompressionScore, 1.0)
}

func TestDetect_Expansion(t *testing.T) {
	d := NewDetector(DefaultConfig())

	// Tight ranges early, then range blows out.
	samples := flatSamples(12, 1.0, 100)
	samples = append(samples, flatSamples(5, 5.0, 100)...)

	sig := d.Detect(samples)
	assert.Equal(t, Expansion, sig.Category)
	assert.Greater(t, sig.RangeRatio, 1.5)
}

func TestDetect_SteadyStateIsTrending(t *testing.T) {
	d := NewDetector(DefaultConfig())

	sig := d.Detect(flatSamples(20, 2.0, 100))
	assert.Equal(t, Trending, sig.Category)
	assert.InDelta(t, 1.0, sig.RangeRatio, 0.01)
	assert.InDelta(t, 1.0, sig.VolumeRatio, 0.01)
}

func TestDetect_ZeroPriorVolumeNoDivisionError(t *testing.T) {
	d := NewDetector(DefaultConfig())

	sig := d.Detect(flatSamples(17, 1.0, 0))
	assert.Equal(t, 1.0, sig.VolumeRatio)
}
