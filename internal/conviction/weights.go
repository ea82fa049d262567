package conviction

import (
	"fmt"
	"math"
)

// Weights is the fixed set of component weights. Using a tagged struct
// instead of a string-keyed map makes an unknown component a compile error
// and lets the sum-to-one invariant be checked once at construction.
type Weights struct {
	Regime      float64 `yaml:"regime" json:"regime"`
	Liquidation float64 `yaml:"liquidation" json:"liquidation"`
	Footprint   float64 `yaml:"footprint" json:"footprint"`
	Funding     float64 `yaml:"funding" json:"funding"`
	Volatility  float64 `yaml:"volatility" json:"volatility"`
}

// weightSumTolerance bounds how far an explicit weight set may drift from 1.0.
const weightSumTolerance = 0.001

// DefaultWeights returns the production weight set.
func DefaultWeights() Weights {
	return Weights{
		Regime:      0.25,
		Liquidation: 0.20,
		Footprint:   0.25,
		Funding:     0.15,
		Volatility:  0.15,
	}
}

// Validate checks the sum-to-one invariant.
func (w Weights) Validate() error {
	sum := w.Regime + w.Liquidation + w.Footprint + w.Funding + w.Volatility
	if math.Abs(sum-1.0) > weightSumTolerance {
		return fmt.Errorf("component weights sum to %.4f, want 1.0±%.3f", sum, weightSumTolerance)
	}
	return nil
}
