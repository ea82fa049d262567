package conviction

import (
	"math"

	"github.com/quantmesh/edgecore/internal/rolling"
	"github.com/quantmesh/edgecore/internal/signals/regime"
)

// Smoothing window constants: a score becomes actionable only once three
// readings exist and three of the last ten agree on a side of 50.
const (
	smoothWindow     = 10
	smoothMinSamples = 3
	smoothMinAgree   = 3
)

// Smoother is the per-symbol stability gate over raw conviction scores.
// It is not safe for concurrent use; a single logical task drives each
// symbol's pipeline (see the service precondition).
type Smoother struct {
	scores       *rolling.Ring[int]
	lastCategory regime.Category
	seen         bool
}

// NewSmoother creates an empty smoother.
func NewSmoother() *Smoother {
	return &Smoother{scores: rolling.NewRing[int](smoothWindow)}
}

// Observe records a raw score under the current regime category and returns
// the actionable score plus whether smoothing was applied.
//
// On any regime-category change the history resets and the raw reading
// becomes the new actionable baseline immediately: smoothing must not drag a
// post-regime-shift signal back toward a stale consensus.
func (s *Smoother) Observe(category regime.Category, rawScore int) (int, bool) {
	if s.seen && category != s.lastCategory {
		s.scores.Reset()
	}
	s.lastCategory = category
	s.seen = true
	s.scores.Push(rawScore)

	if s.scores.Len() < smoothMinSamples || !s.sideConsensus() {
		return rawScore, false
	}

	sum := 0
	for _, v := range s.scores.Values() {
		sum += v
	}
	return int(math.Round(float64(sum) / float64(s.scores.Len()))), true
}

// sideConsensus reports whether at least smoothMinAgree of the stored
// readings sit on the same actionable side of 50.
func (s *Smoother) sideConsensus() bool {
	long, short := 0, 0
	for _, v := range s.scores.Values() {
		if v >= LongThreshold {
			long++
		}
		if v <= ShortThreshold {
			short++
		}
	}
	return long >= smoothMinAgree || short >= smoothMinAgree
}
