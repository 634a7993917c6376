// Package events provides event management functionality.
package events

import "time"

// EventType represents different event types
type EventType string

const (
	// Rebalance run lifecycle
	RunStarted   EventType = "RUN_STARTED"
	RunCompleted EventType = "RUN_COMPLETED"

	// Order activity
	OrderPlaced EventType = "ORDER_PLACED"
	OrderUpdate EventType = "ORDER_UPDATE"

	// Broker stream connectivity
	StreamStatusChanged EventType = "STREAM_STATUS_CHANGED"

	// Scheduled job lifecycle
	JobStarted   EventType = "JOB_STARTED"
	JobCompleted EventType = "JOB_COMPLETED"
	JobFailed    EventType = "JOB_FAILED"

	// System
	ErrorOccurred       EventType = "ERROR_OCCURRED"
	SystemStatusChanged EventType = "SYSTEM_STATUS_CHANGED"
)

// AllTypes lists every event type for subscribers that want the full
// stream.
func AllTypes() []EventType {
	return []EventType{
		RunStarted,
		RunCompleted,
		OrderPlaced,
		OrderUpdate,
		StreamStatusChanged,
		JobStarted,
		JobCompleted,
		JobFailed,
		ErrorOccurred,
		SystemStatusChanged,
	}
}

// Event represents a system event. Data holds the JSON-compatible
// payload; typed payloads are defined in event_data.go.
type Event struct {
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data"`
	Module    string                 `json:"module"`
}
