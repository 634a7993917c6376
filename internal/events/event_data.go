package events

import (
	"encoding/json"
	"time"
)

// EventData is the interface that all event data types must implement
// This allows for type-safe event data while maintaining flexibility
type EventData interface {
	// EventType returns the event type this data is associated with
	EventType() EventType
}

// RunStartedData contains data for RunStarted events
type RunStartedData struct {
	ExecutionID string `json:"execution_id"`
	StrategyID  string `json:"strategy_id"`
	UserID      string `json:"user_id"`
	DryRun      bool   `json:"dry_run"`
}

// EventType returns the event type for RunStartedData
func (d *RunStartedData) EventType() EventType {
	return RunStarted
}

// RunCompletedData contains data for RunCompleted events
type RunCompletedData struct {
	ExecutionID  string  `json:"execution_id"`
	StrategyID   string  `json:"strategy_id"`
	UserID       string  `json:"user_id"`
	Success      bool    `json:"success"`
	State        string  `json:"state"`
	OrdersPlaced int     `json:"orders_placed"`
	OrdersFailed int     `json:"orders_failed"`
	TotalBought  float64 `json:"total_bought"`
	TotalSold    float64 `json:"total_sold"`
	Error        string  `json:"error,omitempty"`
}

// EventType returns the event type for RunCompletedData
func (d *RunCompletedData) EventType() EventType {
	return RunCompleted
}

// OrderPlacedData contains data for OrderPlaced events
type OrderPlacedData struct {
	ExecutionID   string  `json:"execution_id"`
	StrategyID    string  `json:"strategy_id"`
	Symbol        string  `json:"symbol"`
	Side          string  `json:"side"`
	Notional      float64 `json:"notional"`
	Qty           float64 `json:"qty,omitempty"`
	Status        string  `json:"status"`
	Reason        string  `json:"reason"`
	BrokerOrderID string  `json:"broker_order_id,omitempty"`
}

// EventType returns the event type for OrderPlacedData
func (d *OrderPlacedData) EventType() EventType {
	return OrderPlaced
}

// OrderUpdateData contains data for OrderUpdate events from the broker's
// trade updates stream
type OrderUpdateData struct {
	BrokerOrderID  string  `json:"broker_order_id"`
	Symbol         string  `json:"symbol"`
	Side           string  `json:"side"`
	Event          string  `json:"event"` // "fill", "partial_fill", "canceled", "rejected", ...
	FilledQty      float64 `json:"filled_qty,omitempty"`
	FilledAvgPrice float64 `json:"filled_avg_price,omitempty"`
	Timestamp      string  `json:"timestamp,omitempty"`
}

// EventType returns the event type for OrderUpdateData
func (d *OrderUpdateData) EventType() EventType {
	return OrderUpdate
}

// StreamStatusChangedData contains data for StreamStatusChanged events
type StreamStatusChangedData struct {
	Connected bool   `json:"connected"`
	Timestamp string `json:"timestamp"`
}

// EventType returns the event type for StreamStatusChangedData
func (d *StreamStatusChangedData) EventType() EventType {
	return StreamStatusChanged
}

// SystemStatusChangedData contains data for SystemStatusChanged events
type SystemStatusChangedData struct {
	Status    string `json:"status,omitempty"`
	Timestamp string `json:"timestamp"`
}

// EventType returns the event type for SystemStatusChangedData
func (d *SystemStatusChangedData) EventType() EventType {
	return SystemStatusChanged
}

// ErrorEventData contains data for ErrorOccurred events
type ErrorEventData struct {
	Error   string                 `json:"error"`
	Context map[string]interface{} `json:"context,omitempty"`
}

// EventType returns the event type for ErrorEventData
func (d *ErrorEventData) EventType() EventType {
	return ErrorOccurred
}

// JobStatusData contains data for scheduled job lifecycle events
type JobStatusData struct {
	JobName   string    `json:"job_name"`
	Status    string    `json:"status"` // "started", "completed", "failed"
	Error     string    `json:"error,omitempty"`
	Duration  float64   `json:"duration,omitempty"` // seconds
	Timestamp time.Time `json:"timestamp"`
}

// EventType returns the event type for JobStatusData
// Note: The actual event type is determined by the Status field
func (d *JobStatusData) EventType() EventType {
	switch d.Status {
	case "completed":
		return JobCompleted
	case "failed":
		return JobFailed
	default:
		return JobStarted
	}
}

// EventWithData represents an event with typed data
type EventWithData struct {
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Module    string    `json:"module"`
	Data      EventData `json:"data"`
}

// MarshalJSON customizes JSON serialization for EventWithData
func (e *EventWithData) MarshalJSON() ([]byte, error) {
	type Alias EventWithData
	aux := &struct {
		Data json.RawMessage `json:"data"`
		*Alias
	}{
		Alias: (*Alias)(e),
	}

	if e.Data != nil {
		dataBytes, err := json.Marshal(e.Data)
		if err != nil {
			return nil, err
		}
		aux.Data = dataBytes
	}

	return json.Marshal(aux)
}

// UnmarshalJSON customizes JSON deserialization for EventWithData
func (e *EventWithData) UnmarshalJSON(data []byte) error {
	type Alias EventWithData
	aux := &struct {
		Data json.RawMessage `json:"data"`
		*Alias
	}{
		Alias: (*Alias)(e),
	}

	if err := json.Unmarshal(data, aux); err != nil {
		return err
	}

	if len(aux.Data) > 0 {
		var eventData EventData
		switch aux.Type {
		case RunStarted:
			eventData = &RunStartedData{}
		case RunCompleted:
			eventData = &RunCompletedData{}
		case OrderPlaced:
			eventData = &OrderPlacedData{}
		case OrderUpdate:
			eventData = &OrderUpdateData{}
		case StreamStatusChanged:
			eventData = &StreamStatusChangedData{}
		case SystemStatusChanged:
			eventData = &SystemStatusChangedData{}
		case ErrorOccurred:
			eventData = &ErrorEventData{}
		case JobStarted, JobCompleted, JobFailed:
			eventData = &JobStatusData{}
		default:
			// Unknown types fall back to a raw map
			var rawData map[string]interface{}
			if err := json.Unmarshal(aux.Data, &rawData); err != nil {
				return err
			}
			eventData = &GenericEventData{Type: aux.Type, Data: rawData}
		}

		if _, ok := eventData.(*GenericEventData); !ok {
			if err := json.Unmarshal(aux.Data, eventData); err != nil {
				return err
			}
		}
		e.Data = eventData
	}

	return nil
}

// GenericEventData is a fallback for events that don't have a specific type
type GenericEventData struct {
	Type EventType              `json:"-"`
	Data map[string]interface{} `json:"-"`
}

// EventType returns the event type for GenericEventData
func (d *GenericEventData) EventType() EventType {
	return d.Type
}

// MarshalJSON customizes JSON serialization for GenericEventData
func (d *GenericEventData) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.Data)
}

// UnmarshalJSON customizes JSON deserialization for GenericEventData
func (d *GenericEventData) UnmarshalJSON(data []byte) error {
	return json.Unmarshal(data, &d.Data)
}
