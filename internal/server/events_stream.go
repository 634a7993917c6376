package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/jtallis/ballast/internal/events"
)

// EventsStreamHandler bridges the event bus onto Server-Sent Events. It
// subscribes to the bus once and fans events out to every connected client,
// so bus handlers never accumulate as clients come and go.
type EventsStreamHandler struct {
	log     zerolog.Logger
	mu      sync.Mutex
	nextID  uint64
	clients map[uint64]chan *events.Event
}

// NewEventsStreamHandler creates the stream handler and registers it on the
// bus for every event type.
func NewEventsStreamHandler(bus *events.Bus, log zerolog.Logger) *EventsStreamHandler {
	h := &EventsStreamHandler{
		log:     log.With().Str("component", "events_stream").Logger(),
		clients: make(map[uint64]chan *events.Event),
	}

	if bus != nil {
		for _, eventType := range events.AllTypes() {
			bus.Subscribe(eventType, h.broadcast)
		}
	}

	return h
}

// broadcast fans an event out to connected clients without blocking the
// emitter. Clients that cannot keep up lose events.
func (h *EventsStreamHandler) broadcast(event *events.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for id, ch := range h.clients {
		select {
		case ch <- event:
		default:
			h.log.Warn().
				Uint64("client", id).
				Str("event_type", string(event.Type)).
				Msg("Client channel full, dropping event")
		}
	}
}

func (h *EventsStreamHandler) addClient() (uint64, chan *events.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextID++
	ch := make(chan *events.Event, 100)
	h.clients[h.nextID] = ch
	return h.nextID, ch
}

func (h *EventsStreamHandler) removeClient(id uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, id)
}

// ServeHTTP handles GET /api/events/stream requests (SSE). An optional
// `types` query parameter narrows the stream to a comma-separated list of
// event types.
func (h *EventsStreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	var allowedTypes map[events.EventType]bool
	if typesFilter := r.URL.Query().Get("types"); typesFilter != "" {
		allowedTypes = make(map[events.EventType]bool)
		for _, t := range strings.Split(typesFilter, ",") {
			allowedTypes[events.EventType(strings.TrimSpace(t))] = true
		}
	}

	clientID, eventChan := h.addClient()
	defer h.removeClient(clientID)

	h.log.Info().Uint64("client", clientID).Msg("Client connected to event stream")

	fmt.Fprintf(w, "data: %s\n\n", h.encode(map[string]interface{}{
		"type":    "connected",
		"message": "Connected to event stream",
	}))
	flusher.Flush()

	heartbeat := time.NewTicker(30 * time.Second)
	defer heartbeat.Stop()

	done := r.Context().Done()
	for {
		select {
		case <-done:
			h.log.Info().Uint64("client", clientID).Msg("Client disconnected from event stream")
			return

		case event := <-eventChan:
			if allowedTypes != nil && !allowedTypes[event.Type] {
				continue
			}

			fmt.Fprintf(w, "data: %s\n\n", h.encode(event))
			flusher.Flush()

		case <-heartbeat.C:
			fmt.Fprintf(w, "data: %s\n\n", h.encode(map[string]interface{}{
				"type":      "heartbeat",
				"timestamp": time.Now().Format(time.RFC3339),
			}))
			flusher.Flush()
		}
	}
}

// encode marshals a payload for the wire.
func (h *EventsStreamHandler) encode(payload interface{}) string {
	data, err := json.Marshal(payload)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to marshal event")
		return `{"error":"failed to encode event"}`
	}
	return string(data)
}
