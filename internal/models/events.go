package models

import "time"

// Event types
const (
	EventTypeSegmentationRequested = "SEGMENTATION_REQUESTED"
	EventTypeSegmentationCompleted = "SEGMENTATION_COMPLETED"
	EventTypeSegmentationFailed    = "SEGMENTATION_FAILED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// SegmentationRequestedEvent asks the worker to recompute the snapshot
type SegmentationRequestedEvent struct {
	BaseEvent
	Strategy      string     `json:"strategy,omitempty"`
	ReferenceDate *time.Time `json:"reference_date,omitempty"`
}

// SegmentationCompletedEvent published after a snapshot is persisted
type SegmentationCompletedEvent struct {
	BaseEvent
	RunID          string         `json:"run_id"`
	Strategy       string         `json:"strategy"`
	ReferenceDate  time.Time      `json:"reference_date"`
	TotalCustomers int            `json:"total_customers"`
	ChurnRate      float64        `json:"churn_rate"`
	SegmentCounts  map[string]int `json:"segment_counts"`
}

// SegmentationFailedEvent published when a run aborts
type SegmentationFailedEvent struct {
	BaseEvent
	Strategy string `json:"strategy"`
	Kind     string `json:"kind"`
	Reason   string `json:"reason"`
}
