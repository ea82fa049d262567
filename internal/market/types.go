package market

// BookLevel is a single resting order-book level.
type BookLevel struct {
	Price float64 `json:"price"`
	Size  float64 `json:"size"`
}

// Trade is one print from the recent trade stream. Side is the aggressor side.
type Trade struct {
	Price       float64 `json:"price"`
	Size        float64 `json:"size"`
	Side        string  `json:"side"` // "buy" or "sell"
	TimestampMs int64   `json:"timestamp_ms"`
}

// LiquidationLevel is an estimated or exchange-reported liquidation cluster.
type LiquidationLevel struct {
	Exchange    string  `json:"exchange"`
	Side        string  `json:"side"` // "LONG" or "SHORT" positions at risk
	Price       float64 `json:"price"`
	NotionalUSD float64 `json:"notional_usd"`
	Source      string  `json:"source"` // "real" or "estimated"
}

// State is the per-symbol market snapshot. The Store owns the canonical copy;
// Get returns deep copies so callers can never mutate shared state.
type State struct {
	Symbol        string             `json:"symbol"`
	Price         float64            `json:"price"`
	MarkPrice     float64            `json:"mark_price"`
	FundingRate   float64            `json:"funding_rate"`
	OpenInterest  float64            `json:"open_interest"`
	OIDelta1m     float64            `json:"oi_delta_1m"`
	OIDelta5m     float64            `json:"oi_delta_5m"`
	PriceDelta1m  float64            `json:"price_delta_1m"`
	CVDFutures    float64            `json:"cvd_futures"`
	CVDSpot       float64            `json:"cvd_spot"`
	CVDDelta1m    float64            `json:"cvd_delta_1m"`
	AggBuyVol1m   float64            `json:"agg_buy_vol_1m"`
	AggSellVol1m  float64            `json:"agg_sell_vol_1m"`
	Bids          []BookLevel        `json:"bids"`
	Asks          []BookLevel        `json:"asks"`
	RecentTrades  []Trade            `json:"recent_trades"`
	LiqLevels     []LiquidationLevel `json:"liq_levels"`
	BookImbalance float64            `json:"book_imbalance"` // bid depth / ask depth
	TimestampMs   int64              `json:"timestamp_ms"`
}

// FieldUpdates is the closed set of settable fields. Nil pointers mean "leave
// unchanged"; there is no reflective merge path, unknown fields cannot exist.
type FieldUpdates struct {
	Price         *float64
	MarkPrice     *float64
	FundingRate   *float64
	OpenInterest  *float64
	OIDelta1m     *float64
	OIDelta5m     *float64
	PriceDelta1m  *float64
	CVDFutures    *float64
	CVDSpot       *float64
	CVDDelta1m    *float64
	AggBuyVol1m   *float64
	AggSellVol1m  *float64
	Bids          []BookLevel
	Asks          []BookLevel
	RecentTrades  []Trade
	LiqLevels     []LiquidationLevel
	BookImbalance *float64
	TimestampMs   *int64
}

// clone returns a deep copy of the state.
func (s *State) clone() State {
	out := *s
	out.Bids = append([]BookLevel(nil), s.Bids...)
	out.Asks = append([]BookLevel(nil), s.Asks...)
	out.RecentTrades = append([]Trade(nil), s.RecentTrades...)
	out.LiqLevels = append([]LiquidationLevel(nil), s.LiqLevels...)
	return out
}
