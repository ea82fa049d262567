package conviction

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/quantmesh/edgecore/internal/signals/regime"
)

func TestSmoother_RawUntilThreeReadings(t *testing.T) {
	s := NewSmoother()

	score, smoothed := s.Observe(regime.Neutral, 60)
	assert.Equal(t, 60, score)
	assert.False(t, smoothed)

	score, smoothed = s.Observe(regime.Neutral, 62)
	assert.Equal(t, 62, score)
	assert.False(t, smoothed)
}

func TestSmoother_AveragesOnceConsensusForms(t *testing.T) {
	s := NewSmoother()

	s.Observe(regime.Neutral, 60)
	s.Observe(regime.Neutral, 62)
	score, smoothed := s.Observe(regime.Neutral, 61)

	assert.True(t, smoothed)
	assert.Equal(t, 61, score, "mean of [60 62 61] rounded")
}

func TestSmoother_NoConsensusStaysRaw(t *testing.T) {
	s := NewSmoother()

	// Readings straddle 50 with fewer than three on either actionable side.
	s.Observe(regime.Neutral, 60)
	s.Observe(regime.Neutral, 48)
	score, smoothed := s.Observe(regime.Neutral, 52)

	assert.False(t, smoothed)
	assert.Equal(t, 52, score)
}

func TestSmoother_ShortSideConsensus(t *testing.T) {
	s := NewSmoother()

	s.Observe(regime.LongUnwind, 40)
	s.Observe(regime.LongUnwind, 42)
	score, smoothed := s.Observe(regime.LongUnwind, 44)

	assert.True(t, smoothed)
	assert.Equal(t, 42, score)
}

func TestSmoother_RegimeChangeResetsHistory(t *testing.T) {
	s := NewSmoother()

	s.Observe(regime.AggressiveLongBuild, 70)
	s.Observe(regime.AggressiveLongBuild, 72)
	s.Observe(regime.AggressiveLongBuild, 71)

	// Regime flips: stale consensus must not drag the fresh reading.
	score, smoothed := s.Observe(regime.AggressiveShortBuild, 30)
	assert.False(t, smoothed)
	assert.Equal(t, 30, score, "new raw reading becomes the baseline")

	// Consensus rebuilds on the new side.
	s.Observe(regime.AggressiveShortBuild, 32)
	score, smoothed = s.Observe(regime.AggressiveShortBuild, 34)
	assert.True(t, smoothed)
	assert.Equal(t, 32, score)
}

func TestSmoother_WindowCapsAtTen(t *testing.T) {
	s := NewSmoother()

	for i := 0; i < 15; i++ {
		s.Observe(regime.Neutral, 60)
	}
	score, smoothed := s.Observe(regime.Neutral, 60)
	assert.True(t, smoothed)
	assert.Equal(t, 60, score)
}
