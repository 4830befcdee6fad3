package contracts

import "time"

// EventType names a progress event emitted while a session runs
type EventType string

const (
	EventWindowStarted    EventType = "window_started"
	EventOutputSkipped    EventType = "output_skipped"
	EventOutputFilled     EventType = "output_filled"
	EventOutputFailed     EventType = "output_failed"
	EventGapExhausted     EventType = "gap_exhausted"
	EventSessionCompleted EventType = "session_completed"
)

// ProgressEvent is broadcast to API websocket clients
type ProgressEvent struct {
	Type      EventType `json:"type"`
	SessionID string    `json:"session_id"`
	Site      string    `json:"site,omitempty"`
	Output    string    `json:"output,omitempty"`
	Window    *Window   `json:"window,omitempty"`
	Message   string    `json:"message,omitempty"`
	Time      time.Time `json:"time"`
}
