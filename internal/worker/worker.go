package worker

import (
	"context"

	"customer-segments/internal/broker"
	"customer-segments/internal/service"
	"customer-segments/internal/util"

	"go.uber.org/zap"
)

// SegmentationWorker runs a segmentation for every SegmentationRequested
// event on the segmentation topic
type SegmentationWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
	logger       *zap.Logger
}

// NewSegmentationWorker creates a new segmentation worker
func NewSegmentationWorker(
	consumer *broker.Consumer,
	segmentationService *service.SegmentationService,
) *SegmentationWorker {
	eventHandler := broker.NewEventHandler()
	eventHandler.OnSegmentationRequested(segmentationService.HandleSegmentationRequested)

	return &SegmentationWorker{
		consumer:     consumer,
		eventHandler: eventHandler,
		logger:       util.GetLogger(),
	}
}

// Start blocks consuming events until ctx is cancelled
func (w *SegmentationWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting segmentation worker")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *SegmentationWorker) Stop() error {
	w.logger.Info("Stopping segmentation worker")
	return w.consumer.Close()
}
