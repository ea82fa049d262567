package feed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantmesh/edgecore/internal/market"
)

func TestHandleMessage_MergesTickIntoStore(t *testing.T) {
	store := market.NewStore()
	a := NewAdapter(Config{URL: "ws://unused", Symbols: []string{"BTCUSDT"}}, store)

	a.handleMessage([]byte(`{
		"symbol": "BTCUSDT",
		"price": 50000,
		"funding_rate": 0.0001,
		"bids": [[49999, 2], [49998, 5]],
		"asks": [[50001, 3]],
		"trades": [{"price": 50000, "size": 0.5, "side": "buy", "timestamp_ms": 1700000000000}]
	}`))

	state, ok := store.Get("BTCUSDT")
	require.True(t, ok)
	assert.Equal(t, 50000.0, state.Price)
	assert.Equal(t, 0.0001, state.FundingRate)
	require.Len(t, state.Bids, 2)
	assert.Equal(t, 2.0, state.Bids[0].Size)
	require.Len(t, state.RecentTrades, 1)
	assert.Equal(t, "buy", state.RecentTrades[0].Side)
}

func TestHandleMessage_PartialTickLeavesOtherFields(t *testing.T) {
	store := market.NewStore()
	a := NewAdapter(Config{URL: "ws://unused"}, store)

	a.handleMessage([]byte(`{"symbol": "ETHUSDT", "price": 2000}`))
	a.handleMessage([]byte(`{"symbol": "ETHUSDT", "funding_rate": 0.0002}`))

	state, ok := store.Get("ETHUSDT")
	require.True(t, ok)
	assert.Equal(t, 2000.0, state.Price)
	assert.Equal(t, 0.0002, state.FundingRate)
}

func TestHandleMessage_DropsGarbageAndMissingSymbol(t *testing.T) {
	store := market.NewStore()
	a := NewAdapter(Config{URL: "ws://unused"}, store)

	a.handleMessage([]byte(`not json`))
	a.handleMessage([]byte(`{"price": 123}`))

	assert.Empty(t, store.Symbols())
}

func TestAdapter_ConsumesFromServer(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()

		// First inbound frame is the subscription request.
		var sub map[string]any
		require.NoError(t, conn.ReadJSON(&sub))
		assert.Equal(t, "subscribe", sub["op"])

		require.NoError(t, conn.WriteMessage(websocket.TextMessage,
			[]byte(`{"symbol": "SOLUSDT", "price": 82.03}`)))

		// Hold the connection open until the client goes away.
		conn.ReadMessage()
	}))
	defer srv.Close()

	store := market.NewStore()
	a := NewAdapter(Config{
		URL:     "ws" + strings.TrimPrefix(srv.URL, "http"),
		Symbols: []string{"SOLUSDT"},
	}, store)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go a.Run(ctx)

	require.Eventually(t, func() bool {
		state, ok := store.Get("SOLUSDT")
		return ok && state.Price == 82.03
	}, 2*time.Second, 10*time.Millisecond)
}
