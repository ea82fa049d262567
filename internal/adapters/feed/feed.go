package feed

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/quantmesh/edgecore/internal/market"
)

// Config holds feed connection settings.
type Config struct {
	URL          string
	Symbols      []string
	RatePerSec   float64
	RateBurst    int
	Reconnect    time.Duration
	PingInterval time.Duration
}

// Tick is one inbound market update. Absent fields stay nil and leave the
// stored state untouched.
type Tick struct {
	Symbol        string       `json:"symbol"`
	Price         *float64     `json:"price,omitempty"`
	MarkPrice     *float64     `json:"mark_price,omitempty"`
	FundingRate   *float64     `json:"funding_rate,omitempty"`
	OpenInterest  *float64     `json:"open_interest,omitempty"`
	OIDelta1m     *float64     `json:"oi_delta_1m,omitempty"`
	OIDelta5m     *float64     `json:"oi_delta_5m,omitempty"`
	PriceDelta1m  *float64     `json:"price_delta_1m,omitempty"`
	CVDFutures    *float64     `json:"cvd_futures,omitempty"`
	CVDSpot       *float64     `json:"cvd_spot,omitempty"`
	CVDDelta1m    *float64     `json:"cvd_delta_1m,omitempty"`
	AggBuyVol1m   *float64     `json:"agg_buy_vol_1m,omitempty"`
	AggSellVol1m  *float64     `json:"agg_sell_vol_1m,omitempty"`
	Bids          [][2]float64 `json:"bids,omitempty"` // [price, size]
	Asks          [][2]float64 `json:"asks,omitempty"`
	BookImbalance *float64     `json:"book_imbalance,omitempty"`
	TimestampMs   *int64       `json:"timestamp_ms,omitempty"`

	Trades []struct {
		Price       float64 `json:"price"`
		Size        float64 `json:"size"`
		Side        string  `json:"side"`
		TimestampMs int64   `json:"timestamp_ms"`
	} `json:"trades,omitempty"`

	LiqLevels []struct {
		Exchange    string  `json:"exchange"`
		Side        string  `json:"side"`
		Price       float64 `json:"price"`
		NotionalUSD float64 `json:"notional_usd"`
		Source      string  `json:"source"`
	} `json:"liq_levels,omitempty"`
}

// Adapter consumes a websocket market feed and merges each tick into the
// state store. It reconnects on failure and rate-limits inbound processing.
type Adapter struct {
	config  Config
	store   *market.Store
	limiter *rate.Limiter
	dialer  *websocket.Dialer
}

// NewAdapter creates a feed adapter writing into store.
func NewAdapter(config Config, store *market.Store) *Adapter {
	if config.Reconnect <= 0 {
		config.Reconnect = 5 * time.Second
	}
	if config.PingInterval <= 0 {
		config.PingInterval = 30 * time.Second
	}
	if config.RatePerSec <= 0 {
		config.RatePerSec = 20
	}
	if config.RateBurst <= 0 {
		config.RateBurst = 40
	}
	return &Adapter{
		config:  config,
		store:   store,
		limiter: rate.NewLimiter(rate.Limit(config.RatePerSec), config.RateBurst),
		dialer:  websocket.DefaultDialer,
	}
}

// Run connects and consumes the feed until the context is canceled,
// reconnecting with a fixed delay on any connection error.
func (a *Adapter) Run(ctx context.Context) error {
	for {
		if err := a.consume(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Warn().Err(err).Dur("retry_in", a.config.Reconnect).Msg("feed disconnected")
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(a.config.Reconnect):
		}
	}
}

func (a *Adapter) consume(ctx context.Context) error {
	conn, _, err := a.dialer.DialContext(ctx, a.config.URL, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	if err := a.subscribe(conn); err != nil {
		return err
	}
	log.Info().Str("url", a.config.URL).Strs("symbols", a.config.Symbols).Msg("feed connected")

	// Close the connection when the context dies so ReadMessage unblocks.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	pinger := time.NewTicker(a.config.PingInterval)
	defer pinger.Stop()
	go func() {
		for {
			select {
			case <-pinger.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
					return
				}
			case <-done:
				return
			}
		}
	}()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		if err := a.limiter.Wait(ctx); err != nil {
			return err
		}
		a.handleMessage(msg)
	}
}

func (a *Adapter) subscribe(conn *websocket.Conn) error {
	sub := map[string]any{
		"op":      "subscribe",
		"symbols": a.config.Symbols,
	}
	return conn.WriteJSON(sub)
}

func (a *Adapter) handleMessage(msg []byte) {
	var tick Tick
	if err := json.Unmarshal(msg, &tick); err != nil {
		log.Debug().Err(err).Msg("feed message dropped")
		return
	}
	if tick.Symbol == "" {
		return
	}
	a.store.Update(tick.Symbol, tick.toUpdates())
}

// toUpdates maps the wire tick onto the store's typed field set.
func (t Tick) toUpdates() market.FieldUpdates {
	u := market.FieldUpdates{
		Price:         t.Price,
		MarkPrice:     t.MarkPrice,
		FundingRate:   t.FundingRate,
		OpenInterest:  t.OpenInterest,
		OIDelta1m:     t.OIDelta1m,
		OIDelta5m:     t.OIDelta5m,
		PriceDelta1m:  t.PriceDelta1m,
		CVDFutures:    t.CVDFutures,
		CVDSpot:       t.CVDSpot,
		CVDDelta1m:    t.CVDDelta1m,
		AggBuyVol1m:   t.AggBuyVol1m,
		AggSellVol1m:  t.AggSellVol1m,
		BookImbalance: t.BookImbalance,
		TimestampMs:   t.TimestampMs,
	}
	for _, lvl := range t.Bids {
		u.Bids = append(u.Bids, market.BookLevel{Price: lvl[0], Size: lvl[1]})
	}
	for _, lvl := range t.Asks {
		u.Asks = append(u.Asks, market.BookLevel{Price: lvl[0], Size: lvl[1]})
	}
	for _, tr := range t.Trades {
		u.RecentTrades = append(u.RecentTrades, market.Trade{
			Price:       tr.Price,
			Size:        tr.Size,
			Side:        tr.Side,
			TimestampMs: tr.TimestampMs,
		})
	}
	for _, lvl := range t.LiqLevels {
		u.LiqLevels = append(u.LiqLevels, market.LiquidationLevel{
			Exchange:    lvl.Exchange,
			Side:        lvl.Side,
			Price:       lvl.Price,
			NotionalUSD: lvl.NotionalUSD,
			Source:      lvl.Source,
		})
	}
	return u
}
