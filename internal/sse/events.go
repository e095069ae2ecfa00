// Package sse implements Server-Sent Events for streaming import progress
// and library changes to clients.
package sse

import "time"

// EventType represents the type of SSE event.
type EventType string

const (
	// EventImportStarted signals that a commit run has begun.
	EventImportStarted EventType = "import.started"
	// EventImportProgress carries cumulative commit progress.
	EventImportProgress EventType = "import.progress"
	// EventImportCompleted carries the final batch counters.
	EventImportCompleted EventType = "import.completed"
	// EventImportFailed signals a file-level failure (decode or mapping).
	EventImportFailed EventType = "import.failed"

	// EventBookCreated represents a book being added to the library.
	EventBookCreated EventType = "book.created"

	// EventHeartbeat represents a connection keepalive event.
	EventHeartbeat EventType = "heartbeat"
)

// Event is the envelope written to clients.
type Event struct {
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	BatchID   string    `json:"batch_id,omitempty"`
	Data      any       `json:"data,omitempty"`
}

// ImportProgressData is the payload of an import.progress event.
type ImportProgressData struct {
	Processed int `json:"processed"`
	Total     int `json:"total"`
}

// ImportCompletedData is the payload of an import.completed event.
type ImportCompletedData struct {
	TotalRows    int  `json:"total_rows"`
	Imported     int  `json:"imported"`
	Skipped      int  `json:"skipped"`
	Failed       int  `json:"failed"`
	NotProcessed int  `json:"not_processed"`
	Queued       int  `json:"queued"`
	Cancelled    bool `json:"cancelled"`
}

// NewImportStartedEvent creates an import.started event.
func NewImportStartedEvent(batchID string) Event {
	return Event{Type: EventImportStarted, Timestamp: time.Now(), BatchID: batchID}
}

// NewImportProgressEvent creates an import.progress event.
func NewImportProgressEvent(batchID string, processed, total int) Event {
	return Event{
		Type:      EventImportProgress,
		Timestamp: time.Now(),
		BatchID:   batchID,
		Data:      ImportProgressData{Processed: processed, Total: total},
	}
}

// NewImportCompletedEvent creates an import.completed event.
func NewImportCompletedEvent(batchID string, data ImportCompletedData) Event {
	return Event{Type: EventImportCompleted, Timestamp: time.Now(), BatchID: batchID, Data: data}
}

// NewImportFailedEvent creates an import.failed event.
func NewImportFailedEvent(batchID string, reason string) Event {
	return Event{
		Type:      EventImportFailed,
		Timestamp: time.Now(),
		BatchID:   batchID,
		Data:      map[string]string{"reason": reason},
	}
}

// NewBookCreatedEvent creates a book.created event.
func NewBookCreatedEvent(isbn string) Event {
	return Event{
		Type:      EventBookCreated,
		Timestamp: time.Now(),
		Data:      map[string]string{"isbn": isbn},
	}
}

// NewHeartbeatEvent creates a heartbeat event.
func NewHeartbeatEvent() Event {
	return Event{Type: EventHeartbeat, Timestamp: time.Now()}
}
