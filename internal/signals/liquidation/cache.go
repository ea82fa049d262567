package liquidation

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/quantmesh/edgecore/infra/breakers"
	"github.com/quantmesh/edgecore/internal/market"
)

// RedisSource reads estimated liquidation levels that an out-of-process
// aggregator caches in Redis under liq:levels:<symbol>. Calls go through a
// circuit breaker so a degraded cache cannot stall the signal path.
type RedisSource struct {
	client  *redis.Client
	breaker *breakers.Breaker
	timeout time.Duration
}

// NewRedisSource creates a breaker-protected Redis level source.
func NewRedisSource(client *redis.Client) *RedisSource {
	return &RedisSource{
		client:  client,
		breaker: breakers.New("liquidation-cache"),
		timeout: 2 * time.Second,
	}
}

// Levels returns cached levels for the symbol, re-tagged as estimated
// provenance regardless of how the aggregator labeled them.
func (r *RedisSource) Levels(ctx context.Context, symbol string) ([]market.LiquidationLevel, error) {
	raw, err := r.breaker.Execute(func() (any, error) {
		ctx, cancel := context.WithTimeout(ctx, r.timeout)
		defer cancel()
		return r.client.Get(ctx, "liq:levels:"+symbol).Bytes()
	})
	if err != nil {
		if err == redis.Nil {
			return nil, ErrNotAvailable
		}
		return nil, fmt.Errorf("liquidation cache read: %w", err)
	}

	var levels []market.LiquidationLevel
	if err := json.Unmarshal(raw.([]byte), &levels); err != nil {
		return nil, fmt.Errorf("liquidation cache decode: %w", err)
	}
	for i := range levels {
		levels[i].Source = string(SourceEstimated)
	}
	return levels, nil
}
