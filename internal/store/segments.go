package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"customer-segments/internal/models"
)

// ErrNotFound is returned when a run or customer has no stored snapshot
var ErrNotFound = errors.New("not found")

const insertBatchSize = 500

const insertSegment = `
	INSERT INTO customer_segments (
		run_id, customer_id, recency_days, frequency, monetary, avg_order_value,
		avg_days_between, one_time_buyer, first_purchase, last_purchase,
		segment_label, cluster, churn_label
	) VALUES (
		:run_id, :customer_id, :recency_days, :frequency, :monetary, :avg_order_value,
		:avg_days_between, :one_time_buyer, :first_purchase, :last_purchase,
		:segment_label, :cluster, :churn_label
	)`

// SaveSnapshot stores a run and all of its customer rows in one transaction
func (s *Store) SaveSnapshot(ctx context.Context, run *models.SegmentationRun, segments []models.CustomerSegment) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.NamedExecContext(ctx, `
		INSERT INTO segmentation_runs (id, strategy, reference_date, customers, created_at)
		VALUES (:id, :strategy, :reference_date, :customers, :created_at)`, run)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	rows := make([]models.CustomerSegment, len(segments))
	for i, seg := range segments {
		seg.RunID = run.ID
		rows[i] = seg
	}
	for _, batch := range chunk(rows, insertBatchSize) {
		if _, err := tx.NamedExecContext(ctx, insertSegment, batch); err != nil {
			return fmt.Errorf("failed to insert segments: %w", err)
		}
	}

	return tx.Commit()
}

func chunk(rows []models.CustomerSegment, size int) [][]models.CustomerSegment {
	var out [][]models.CustomerSegment
	for len(rows) > size {
		out = append(out, rows[:size])
		rows = rows[size:]
	}
	if len(rows) > 0 {
		out = append(out, rows)
	}
	return out
}

// GetLatestRun returns the most recent run, or nil when none exists
func (s *Store) GetLatestRun(ctx context.Context) (*models.SegmentationRun, error) {
	var run models.SegmentationRun
	err := s.db.GetContext(ctx, &run,
		"SELECT * FROM segmentation_runs ORDER BY created_at DESC LIMIT 1")
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &run, nil
}

// GetSegments retrieves every customer row of a run
func (s *Store) GetSegments(ctx context.Context, runID string) ([]models.CustomerSegment, error) {
	var segments []models.CustomerSegment
	err := s.db.SelectContext(ctx, &segments,
		s.db.Rebind("SELECT * FROM customer_segments WHERE run_id = ? ORDER BY customer_id"), runID)
	return segments, err
}

// GetCustomerSegment retrieves one customer's row of a run
func (s *Store) GetCustomerSegment(ctx context.Context, runID, customerID string) (*models.CustomerSegment, error) {
	var seg models.CustomerSegment
	err := s.db.GetContext(ctx, &seg,
		s.db.Rebind("SELECT * FROM customer_segments WHERE run_id = ? AND customer_id = ?"), runID, customerID)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("customer %s: %w", customerID, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &seg, nil
}
