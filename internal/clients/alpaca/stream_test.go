package alpaca

import (
	"testing"

	"github.com/jtallis/ballast/internal/events"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStream(bus *events.Bus) *TradeUpdatesStream {
	log := zerolog.New(nil).Level(zerolog.Disabled)
	return NewTradeUpdatesStream(Config{
		StreamURL: "wss://example.invalid/stream",
		APIKey:    "k",
		APISecret: "s",
	}, bus, log)
}

func TestHandleMessageTradeUpdateEmitsEvent(t *testing.T) {
	log := zerolog.New(nil).Level(zerolog.Disabled)
	bus := events.NewBus(log)

	var received *events.Event
	bus.Subscribe(events.OrderUpdate, func(event *events.Event) {
		received = event
	})

	ws := newTestStream(bus)

	msg := []byte(`{
		"stream": "trade_updates",
		"data": {
			"event": "fill",
			"qty": "10",
			"price": "150.25",
			"timestamp": "2025-01-02T15:04:05Z",
			"order": {
				"id": "ord-1",
				"symbol": "AAPL",
				"side": "buy",
				"filled_qty": "10",
				"filled_avg_price": "150.25"
			}
		}
	}`)

	require.NoError(t, ws.handleMessage(msg))
	require.NotNil(t, received)
	assert.Equal(t, "ord-1", received.Data["broker_order_id"])
	assert.Equal(t, "AAPL", received.Data["symbol"])
	assert.Equal(t, "fill", received.Data["event"])
	assert.Equal(t, 10.0, received.Data["filled_qty"])
	assert.Equal(t, 150.25, received.Data["filled_avg_price"])
}

func TestHandleMessageAuthorizationRejected(t *testing.T) {
	ws := newTestStream(nil)

	err := ws.handleMessage([]byte(`{"stream": "authorization", "data": {"status": "unauthorized"}}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unauthorized")
}

func TestHandleMessageAuthorizedAndListening(t *testing.T) {
	ws := newTestStream(nil)

	assert.NoError(t, ws.handleMessage([]byte(`{"stream": "authorization", "data": {"status": "authorized"}}`)))
	assert.NoError(t, ws.handleMessage([]byte(`{"stream": "listening", "data": {"streams": ["trade_updates"]}}`)))
}

func TestHandleMessageUnknownStreamIgnored(t *testing.T) {
	ws := newTestStream(nil)

	assert.NoError(t, ws.handleMessage([]byte(`{"stream": "account_updates", "data": {}}`)))
}

func TestHandleMessageMalformed(t *testing.T) {
	ws := newTestStream(nil)

	assert.Error(t, ws.handleMessage([]byte(`not json`)))
}

func TestCalculateBackoff(t *testing.T) {
	ws := newTestStream(nil)

	first := ws.calculateBackoff(1)
	second := ws.calculateBackoff(2)
	huge := ws.calculateBackoff(50)

	assert.Equal(t, baseReconnectDelay, first)
	assert.Equal(t, 2*baseReconnectDelay, second)
	assert.Equal(t, maxReconnectDelay, huge)
}
