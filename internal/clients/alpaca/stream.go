package alpaca

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"math"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/jtallis/ballast/internal/events"
	"github.com/rs/zerolog"
	"nhooyr.io/websocket"
)

const (
	// WebSocket connection constants
	writeWait   = 10 * time.Second
	dialTimeout = 30 * time.Second

	// Reconnection constants
	baseReconnectDelay   = 5 * time.Second
	maxReconnectDelay    = 5 * time.Minute
	maxReconnectAttempts = 10
)

// TradeUpdatesStream consumes Alpaca's trade_updates stream and emits
// OrderUpdate events to the bus.
type TradeUpdatesStream struct {
	// Connection
	url        string
	apiKey     string
	apiSecret  string
	httpClient *http.Client // Reusable HTTP client configured for HTTP/1.1
	conn       *websocket.Conn
	connCtx    context.Context    // Connection context (cancelled on disconnect)
	cancelFunc context.CancelFunc // For cancelling the connection context
	mu         sync.RWMutex

	// Dependencies
	eventBus *events.Bus
	log      zerolog.Logger

	// State
	connected    bool
	reconnecting bool
	stopChan     chan struct{}
	stopped      bool
}

// createHTTP1Client creates an HTTP client that forces HTTP/1.1.
// WebSocket upgrades require HTTP/1.1, but the endpoint's TLS ALPN
// negotiation would otherwise pick HTTP/2.
func createHTTP1Client() *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout:   30 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			TLSClientConfig: &tls.Config{
				NextProtos: []string{"http/1.1"},
			},
			ForceAttemptHTTP2: false,
		},
	}
}

// NewTradeUpdatesStream creates a new trade updates stream client.
func NewTradeUpdatesStream(cfg Config, eventBus *events.Bus, log zerolog.Logger) *TradeUpdatesStream {
	return &TradeUpdatesStream{
		url:        cfg.StreamURL,
		apiKey:     cfg.APIKey,
		apiSecret:  cfg.APISecret,
		httpClient: createHTTP1Client(),
		eventBus:   eventBus,
		log:        log.With().Str("component", "trade_updates_stream").Logger(),
		stopChan:   make(chan struct{}),
	}
}

// Start initializes the WebSocket connection and starts the read loop.
func (ws *TradeUpdatesStream) Start() error {
	ws.log.Info().Msg("Starting trade updates stream")

	if err := ws.Connect(); err != nil {
		ws.log.Warn().Err(err).Msg("Initial stream connection failed, will retry in background")
		go ws.reconnectLoop()
		return err
	}

	ws.mu.RLock()
	ctx := ws.connCtx
	ws.mu.RUnlock()
	go ws.readMessages(ctx)

	ws.log.Info().Msg("Trade updates stream started")
	return nil
}

// Stop gracefully shuts down the WebSocket connection.
func (ws *TradeUpdatesStream) Stop() error {
	ws.mu.Lock()
	if ws.stopped {
		ws.mu.Unlock()
		return nil
	}
	ws.stopped = true
	ws.mu.Unlock()

	ws.log.Info().Msg("Stopping trade updates stream")

	close(ws.stopChan)

	return ws.Disconnect()
}

// Connect establishes the WebSocket connection, authenticates and
// subscribes to the trade_updates stream.
func (ws *TradeUpdatesStream) Connect() error {
	ws.mu.Lock()
	defer ws.mu.Unlock()

	ws.log.Info().Str("url", ws.url).Msg("Connecting to trade updates stream")

	dialCtx, dialCancel := context.WithTimeout(context.Background(), dialTimeout)
	defer dialCancel()

	conn, _, err := websocket.Dial(dialCtx, ws.url, &websocket.DialOptions{
		HTTPClient: ws.httpClient,
	})
	if err != nil {
		return fmt.Errorf("failed to dial WebSocket: %w", err)
	}

	// Long-lived context for read operations, cancelled on disconnect
	connCtx, connCancel := context.WithCancel(context.Background())
	ws.conn = conn
	ws.connCtx = connCtx
	ws.cancelFunc = connCancel
	ws.connected = true

	if err := ws.authenticate(connCtx); err != nil {
		connCancel()
		conn.Close(websocket.StatusNormalClosure, "auth failed")
		ws.conn = nil
		ws.connCtx = nil
		ws.cancelFunc = nil
		ws.connected = false
		return fmt.Errorf("failed to authenticate stream: %w", err)
	}

	ws.emitStreamStatus(true)
	ws.log.Info().Msg("Connected to trade updates stream")
	return nil
}

// Disconnect closes the WebSocket connection.
func (ws *TradeUpdatesStream) Disconnect() error {
	ws.mu.Lock()
	defer ws.mu.Unlock()

	if ws.conn == nil {
		return nil
	}

	ws.log.Info().Msg("Disconnecting from trade updates stream")

	if ws.cancelFunc != nil {
		ws.cancelFunc()
		ws.cancelFunc = nil
	}

	err := ws.conn.Close(websocket.StatusNormalClosure, "")

	ws.conn = nil
	ws.connCtx = nil
	ws.connected = false

	ws.emitStreamStatus(false)

	if err != nil {
		return fmt.Errorf("error closing WebSocket: %w", err)
	}

	return nil
}

// authenticate sends the auth message followed by the listen request.
func (ws *TradeUpdatesStream) authenticate(ctx context.Context) error {
	authMsg := map[string]interface{}{
		"action": "auth",
		"key":    ws.apiKey,
		"secret": ws.apiSecret,
	}
	if err := ws.writeJSON(ctx, authMsg); err != nil {
		return fmt.Errorf("failed to send auth message: %w", err)
	}

	listenMsg := map[string]interface{}{
		"action": "listen",
		"data": map[string]interface{}{
			"streams": []string{"trade_updates"},
		},
	}
	if err := ws.writeJSON(ctx, listenMsg); err != nil {
		return fmt.Errorf("failed to send listen message: %w", err)
	}

	return nil
}

// writeJSON marshals and writes a message with a write timeout.
func (ws *TradeUpdatesStream) writeJSON(ctx context.Context, msg interface{}) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	writeCtx, cancel := context.WithTimeout(ctx, writeWait)
	defer cancel()

	return ws.conn.Write(writeCtx, websocket.MessageText, data)
}

// readMessages continuously reads messages from the WebSocket.
func (ws *TradeUpdatesStream) readMessages(ctx context.Context) {
	defer func() {
		ws.log.Info().Msg("Read loop stopped")
		ws.mu.RLock()
		stopped := ws.stopped
		ws.mu.RUnlock()
		if !stopped {
			go ws.reconnectLoop()
		}
	}()

	for {
		select {
		case <-ws.stopChan:
			return
		case <-ctx.Done():
			ws.log.Debug().Msg("Read loop context cancelled")
			return
		default:
		}

		ws.mu.RLock()
		conn := ws.conn
		ws.mu.RUnlock()

		if conn == nil {
			ws.log.Warn().Msg("Connection is nil, stopping read loop")
			return
		}

		msgType, message, err := conn.Read(ctx)
		if err != nil {
			closeStatus := websocket.CloseStatus(err)
			if closeStatus == websocket.StatusNormalClosure || closeStatus == websocket.StatusGoingAway {
				ws.log.Info().Int("status", int(closeStatus)).Msg("WebSocket closed normally")
			} else if ctx.Err() != nil {
				ws.log.Debug().Msg("Read cancelled by context")
			} else {
				ws.log.Error().Err(err).Msg("Unexpected WebSocket read error")
			}
			return
		}

		if msgType != websocket.MessageText {
			ws.log.Debug().Int("type", int(msgType)).Msg("Ignoring non-text message")
			continue
		}

		if err := ws.handleMessage(message); err != nil {
			ws.log.Error().Err(err).Str("message", string(message)).Msg("Failed to handle stream message")
			// Continue reading despite parse errors
		}
	}
}

// streamEnvelope is the outer {"stream": ..., "data": ...} frame.
type streamEnvelope struct {
	Stream string          `json:"stream"`
	Data   json.RawMessage `json:"data"`
}

// tradeUpdateJSON mirrors trade_updates payloads.
type tradeUpdateJSON struct {
	Event     string `json:"event"`
	Qty       string `json:"qty"`
	Price     string `json:"price"`
	Timestamp string `json:"timestamp"`
	Order     struct {
		ID             string  `json:"id"`
		Symbol         string  `json:"symbol"`
		Side           string  `json:"side"`
		FilledQty      *string `json:"filled_qty"`
		FilledAvgPrice *string `json:"filled_avg_price"`
	} `json:"order"`
}

// handleMessage parses and processes stream frames.
func (ws *TradeUpdatesStream) handleMessage(message []byte) error {
	var envelope streamEnvelope
	if err := json.Unmarshal(message, &envelope); err != nil {
		return fmt.Errorf("failed to parse stream envelope: %w", err)
	}

	switch envelope.Stream {
	case "authorization":
		var auth struct {
			Status string `json:"status"`
		}
		if err := json.Unmarshal(envelope.Data, &auth); err != nil {
			return fmt.Errorf("failed to parse authorization frame: %w", err)
		}
		if auth.Status != "authorized" {
			return fmt.Errorf("stream authorization rejected: %s", auth.Status)
		}
		ws.log.Info().Msg("Stream authorized")
		return nil

	case "listening":
		ws.log.Info().Msg("Listening for trade updates")
		return nil

	case "trade_updates":
		var update tradeUpdateJSON
		if err := json.Unmarshal(envelope.Data, &update); err != nil {
			return fmt.Errorf("failed to parse trade update: %w", err)
		}
		return ws.handleTradeUpdate(update)

	default:
		ws.log.Debug().Str("stream", envelope.Stream).Msg("Ignoring unknown stream frame")
		return nil
	}
}

// handleTradeUpdate emits an OrderUpdate event for a trade update.
func (ws *TradeUpdatesStream) handleTradeUpdate(update tradeUpdateJSON) error {
	filledQty := 0.0
	if update.Order.FilledQty != nil {
		filledQty = parseFloat(*update.Order.FilledQty)
	}
	filledAvgPrice := 0.0
	if update.Order.FilledAvgPrice != nil {
		filledAvgPrice = parseFloat(*update.Order.FilledAvgPrice)
	}

	ws.log.Info().
		Str("event", update.Event).
		Str("symbol", update.Order.Symbol).
		Str("side", update.Order.Side).
		Str("order_id", update.Order.ID).
		Msg("Trade update received")

	if ws.eventBus != nil {
		ws.eventBus.Emit(events.OrderUpdate, "alpaca_stream", map[string]interface{}{
			"broker_order_id":  update.Order.ID,
			"symbol":           update.Order.Symbol,
			"side":             update.Order.Side,
			"event":            update.Event,
			"filled_qty":       filledQty,
			"filled_avg_price": filledAvgPrice,
			"timestamp":        update.Timestamp,
		})
	}

	return nil
}

// emitStreamStatus emits a StreamStatusChanged event. Callers hold ws.mu.
func (ws *TradeUpdatesStream) emitStreamStatus(connected bool) {
	if ws.eventBus == nil {
		return
	}
	ws.eventBus.Emit(events.StreamStatusChanged, "alpaca_stream", map[string]interface{}{
		"connected": connected,
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

// reconnectLoop handles automatic reconnection with exponential backoff.
func (ws *TradeUpdatesStream) reconnectLoop() {
	ws.mu.Lock()
	if ws.reconnecting || ws.stopped {
		ws.mu.Unlock()
		return
	}
	ws.reconnecting = true
	ws.mu.Unlock()

	defer func() {
		ws.mu.Lock()
		ws.reconnecting = false
		ws.mu.Unlock()
	}()

	attempt := 0
	for {
		select {
		case <-ws.stopChan:
			ws.log.Info().Msg("Reconnection loop stopped")
			return
		default:
		}

		ws.mu.RLock()
		stopped := ws.stopped
		ws.mu.RUnlock()
		if stopped {
			return
		}

		attempt++

		delay := ws.calculateBackoff(attempt)

		if attempt <= maxReconnectAttempts {
			ws.log.Info().
				Int("attempt", attempt).
				Dur("delay", delay).
				Msg("Attempting to reconnect to stream")
		} else {
			ws.log.Warn().
				Int("attempt", attempt).
				Dur("delay", delay).
				Msg("Reconnection attempt (exceeded max attempts, will keep retrying)")
		}

		select {
		case <-time.After(delay):
		case <-ws.stopChan:
			return
		}

		if err := ws.Connect(); err != nil {
			ws.log.Error().Err(err).
				Int("attempt", attempt).
				Msg("Reconnection failed")
			continue
		}

		ws.log.Info().
			Int("attempt", attempt).
			Msg("Reconnected to stream")

		attempt = 0

		ws.mu.RLock()
		ctx := ws.connCtx
		ws.mu.RUnlock()
		go ws.readMessages(ctx)
		return
	}
}

// calculateBackoff calculates exponential backoff delay.
func (ws *TradeUpdatesStream) calculateBackoff(attempt int) time.Duration {
	delay := float64(baseReconnectDelay) * math.Pow(2, float64(attempt-1))

	if delay > float64(maxReconnectDelay) {
		delay = float64(maxReconnectDelay)
	}

	return time.Duration(delay)
}

// IsConnected returns current connection status.
func (ws *TradeUpdatesStream) IsConnected() bool {
	ws.mu.RLock()
	defer ws.mu.RUnlock()
	return ws.connected
}
