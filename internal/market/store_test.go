package market

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func f(v float64) *float64 { return &v }

func TestStore_UpdateRoundTrip(t *testing.T) {
	store := NewStore()

	store.Update("BTCUSDT", FieldUpdates{Price: f(100)})

	st, ok := store.Get("BTCUSDT")
	require.True(t, ok)
	assert.Equal(t, 100.0, st.Price)
	assert.Equal(t, "BTCUSDT", st.Symbol)
	assert.NotZero(t, st.TimestampMs, "timestamp should be stamped when absent")
}

func TestStore_PartialMergeLeavesUnrelatedFields(t *testing.T) {
	store := NewStore()

	store.Update("ETHUSDT", FieldUpdates{Price: f(2000), FundingRate: f(0.0001)})
	store.Update("ETHUSDT", FieldUpdates{OpenInterest: f(5e8)})

	st, ok := store.Get("ETHUSDT")
	require.True(t, ok)
	assert.Equal(t, 2000.0, st.Price)
	assert.Equal(t, 0.0001, st.FundingRate)
	assert.Equal(t, 5e8, st.OpenInterest)
}

func TestStore_CallerSuppliedTimestampPreserved(t *testing.T) {
	store := NewStore()
	ts := int64(1700000000000)

	store.Update("BTCUSDT", FieldUpdates{Price: f(1), TimestampMs: &ts})

	st, _ := store.Get("BTCUSDT")
	assert.Equal(t, ts, st.TimestampMs)
}

func TestStore_GetReturnsDefensiveCopy(t *testing.T) {
	store := NewStore()
	store.Update("BTCUSDT", FieldUpdates{
		Bids: []BookLevel{{Price: 99, Size: 10}},
		Asks: []BookLevel{{Price: 101, Size: 12}},
	})

	st1, _ := store.Get("BTCUSDT")
	st1.Bids[0].Size = 9999

	st2, _ := store.Get("BTCUSDT")
	assert.Equal(t, 10.0, st2.Bids[0].Size, "mutating a copy must not leak into the store")
}

func TestStore_UnknownSymbol(t *testing.T) {
	store := NewStore()
	_, ok := store.Get("NOPE")
	assert.False(t, ok)
	assert.Empty(t, store.Symbols())
}

func TestStore_ConcurrentWritersDistinctSymbols(t *testing.T) {
	store := NewStore()
	symbols := []string{"BTCUSDT", "ETHUSDT", "SOLUSDT", "XRPUSDT"}

	var wg sync.WaitGroup
	for _, sym := range symbols {
		wg.Add(1)
		go func(sym string) {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				store.Update(sym, FieldUpdates{Price: f(float64(i))})
				if _, ok := store.Get(sym); !ok {
					t.Errorf("symbol %s missing after update", sym)
					return
				}
			}
		}(sym)
	}
	wg.Wait()

	assert.Len(t, store.Symbols(), len(symbols))
}
