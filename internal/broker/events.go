package broker

import (
	"context"
	"encoding/json"
	"fmt"

	"customer-segments/internal/models"
	"customer-segments/internal/util"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// EventPublisher handles publishing segmentation events
type EventPublisher struct {
	producer *Producer
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(producer *Producer) *EventPublisher {
	return &EventPublisher{producer: producer}
}

// PublishSegmentationRequested publishes SegmentationRequested event
func (ep *EventPublisher) PublishSegmentationRequested(ctx context.Context, event *models.SegmentationRequestedEvent) error {
	return ep.producer.PublishEvent(ctx, "request-"+event.EventID, event)
}

// PublishSegmentationCompleted publishes SegmentationCompleted event
func (ep *EventPublisher) PublishSegmentationCompleted(ctx context.Context, event *models.SegmentationCompletedEvent) error {
	return ep.producer.PublishEvent(ctx, "run-"+event.RunID, event)
}

// PublishSegmentationFailed publishes SegmentationFailed event
func (ep *EventPublisher) PublishSegmentationFailed(ctx context.Context, event *models.SegmentationFailedEvent) error {
	return ep.producer.PublishEvent(ctx, "failed-"+event.EventID, event)
}

// EventHandler routes incoming events to registered handlers
type EventHandler struct {
	onSegmentationRequested func(context.Context, *models.SegmentationRequestedEvent) error
	logger                  *zap.Logger
}

// NewEventHandler creates a new event handler
func NewEventHandler() *EventHandler {
	return &EventHandler{logger: util.GetLogger()}
}

// OnSegmentationRequested registers a handler for SegmentationRequested events
func (eh *EventHandler) OnSegmentationRequested(handler func(context.Context, *models.SegmentationRequestedEvent) error) {
	eh.onSegmentationRequested = handler
}

// HandleMessage routes messages to appropriate handlers
func (eh *EventHandler) HandleMessage(ctx context.Context, msg kafka.Message) error {
	var baseEvent models.BaseEvent
	if err := json.Unmarshal(msg.Value, &baseEvent); err != nil {
		return fmt.Errorf("failed to unmarshal base event: %w", err)
	}

	eh.logger.Debug("Handling event",
		zap.String("type", baseEvent.EventType),
		zap.String("id", baseEvent.EventID))

	switch baseEvent.EventType {
	case models.EventTypeSegmentationRequested:
		if eh.onSegmentationRequested != nil {
			var event models.SegmentationRequestedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal SegmentationRequested event: %w", err)
			}
			return eh.onSegmentationRequested(ctx, &event)
		}

	case models.EventTypeSegmentationCompleted, models.EventTypeSegmentationFailed:
		// our own notifications share the topic

	default:
		eh.logger.Warn("Unhandled event type", zap.String("type", baseEvent.EventType))
	}

	return nil
}
