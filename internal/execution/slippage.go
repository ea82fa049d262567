package execution

import "math"

// Slippage model constants. The square-root-family impact exponent and
// constant are product-tuned; volatility scales impact once vol exceeds
// 10bps.
const (
	impactConstant   = 0.5
	impactExponent   = 0.6
	volScalerDivisor = 10.0

	// extremePenaltyBps is the sentinel for a book with no measurable
	// liquidity: the plan is still produced but priced as untradeable.
	extremePenaltyBps = 1000.0
)

// SlippageEstimate is the modeled cost of crossing the book.
type SlippageEstimate struct {
	TotalBps  float64 `json:"total_bps"`
	SpreadBps float64 `json:"spread_bps"`
	ImpactBps float64 `json:"impact_bps"`
	CostUSD   float64 `json:"cost_usd"`
}

// EstimateSlippage models expected execution cost: half the spread plus a
// concave market-impact term in the order's share of available liquidity.
func EstimateSlippage(sizeUSD, liquidityUSD, spreadBps, volatilityBps float64) SlippageEstimate {
	if liquidityUSD <= 0 {
		return SlippageEstimate{
			TotalBps:  extremePenaltyBps,
			SpreadBps: spreadBps,
			ImpactBps: extremePenaltyBps,
			CostUSD:   sizeUSD * extremePenaltyBps / 10000,
		}
	}

	volScaler := math.Max(1, volatilityBps/volScalerDivisor)
	impactBps := impactConstant * volScaler * math.Pow(sizeUSD/liquidityUSD, impactExponent)

	total := spreadBps/2 + impactBps
	return SlippageEstimate{
		TotalBps:  total,
		SpreadBps: spreadBps,
		ImpactBps: impactBps,
		CostUSD:   sizeUSD * total / 10000,
	}
}
