package service

import (
	"context"
	"fmt"

	"customer-segments/internal/models"
	"customer-segments/internal/rfm"
	"customer-segments/internal/util"

	"go.uber.org/zap"
)

// latestRunID reads the store, which is written before the cache; a failed
// cache write must not pin queries to an older run
func (s *SegmentationService) latestRunID(ctx context.Context) (string, error) {
	run, err := s.store.GetLatestRun(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to get latest run: %w", err)
	}
	if run == nil {
		return "", ErrNoSnapshot
	}
	return run.ID, nil
}

// Summary returns the headline figures of the latest snapshot
func (s *SegmentationService) Summary(ctx context.Context) (*models.Summary, error) {
	ctx, span := util.StartSpan(ctx, "SegmentationService.Summary")
	defer span.End()

	runID, err := s.latestRunID(ctx)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		summary, err := s.cache.GetSummary(ctx, runID)
		if err != nil {
			s.logger.Warn("Failed to read summary from cache", zap.Error(err))
		} else if summary != nil {
			return summary, nil
		}
	}

	segments, err := s.store.GetSegments(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to get segments: %w", err)
	}
	summary := rfm.Summarize(segments)
	summary.RunID = runID
	return &summary, nil
}

// Customer returns one customer's row of the latest snapshot
func (s *SegmentationService) Customer(ctx context.Context, customerID string) (*models.CustomerSegment, error) {
	ctx, span := util.StartSpan(ctx, "SegmentationService.Customer")
	defer span.End()

	runID, err := s.latestRunID(ctx)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		seg, err := s.cache.GetCustomerSegment(ctx, runID, customerID)
		if err != nil {
			s.logger.Warn("Failed to read customer from cache",
				zap.String("customer_id", customerID),
				zap.Error(err))
		} else if seg != nil {
			return seg, nil
		}
		util.CacheMissesTotal.Inc()
	}
	return s.store.GetCustomerSegment(ctx, runID, customerID)
}

// Customers lists the latest snapshot filtered by segment labels and churn status
func (s *SegmentationService) Customers(ctx context.Context, labels []string, status string) ([]models.CustomerSegment, error) {
	ctx, span := util.StartSpan(ctx, "SegmentationService.Customers")
	defer span.End()

	segments, err := s.latestSegments(ctx)
	if err != nil {
		return nil, err
	}
	return rfm.Filter(segments, labels, status), nil
}

// AtRisk lists the highest-spending churned customers of the latest snapshot,
// restricted to labels when any are given
func (s *SegmentationService) AtRisk(ctx context.Context, labels []string, limit int) ([]models.CustomerSegment, error) {
	ctx, span := util.StartSpan(ctx, "SegmentationService.AtRisk")
	defer span.End()

	segments, err := s.latestSegments(ctx)
	if err != nil {
		return nil, err
	}
	return rfm.AtRisk(rfm.Filter(segments, labels, models.StatusChurned), limit), nil
}

func (s *SegmentationService) latestSegments(ctx context.Context) ([]models.CustomerSegment, error) {
	runID, err := s.latestRunID(ctx)
	if err != nil {
		return nil, err
	}
	segments, err := s.store.GetSegments(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to get segments: %w", err)
	}
	return segments, nil
}
