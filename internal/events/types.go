// Package events provides an in-process event bus for scan job progress.
package events

import "time"

// EventType represents the type of event
type EventType string

const (
	EventJobQueued    EventType = "scan.job.queued"
	EventJobStarted   EventType = "scan.job.started"
	EventJobProgress  EventType = "scan.job.progress"
	EventJobCompleted EventType = "scan.job.completed"
	EventJobCancelled EventType = "scan.job.cancelled"

	EventLayerCleared   EventType = "index.layer.cleared"
	EventProfilesLoaded EventType = "profiles.loaded"
	EventAssetAdded     EventType = "catalog.asset.added"
)

// Event represents a system event
type Event struct {
	ID        string                 `json:"id"`
	Type      EventType              `json:"type"`
	Source    string                 `json:"source"`
	Message   string                 `json:"message,omitempty"`
	Data      map[string]interface{} `json:"data,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

// EventHandler represents a function that handles events
type EventHandler func(event Event)

// EventFilter selects events by type. An empty filter matches everything.
type EventFilter struct {
	Types []EventType `json:"types,omitempty"`
}

// Matches reports whether the event passes the filter
func (f EventFilter) Matches(event Event) bool {
	if len(f.Types) == 0 {
		return true
	}
	for _, t := range f.Types {
		if t == event.Type {
			return true
		}
	}
	return false
}

// Subscription represents an event subscription
type Subscription struct {
	ID           string      `json:"id"`
	Filter       EventFilter `json:"filter"`
	Subscriber   string      `json:"subscriber"`
	Created      time.Time   `json:"created"`
	TriggerCount int64       `json:"trigger_count"`

	handler EventHandler
}
