package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"customer-segments/internal/models"
	"customer-segments/internal/rfm"
	"customer-segments/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	runLockKey = "segmentation-run"
	runLockTTL = 10 * time.Minute
)

var (
	// ErrRunInProgress is returned when another run holds the lock
	ErrRunInProgress = errors.New("segmentation run already in progress")
	// ErrNoSnapshot is returned by queries before the first run completes
	ErrNoSnapshot = errors.New("no segmentation snapshot available")
)

// TransactionSource loads the full transaction table
type TransactionSource interface {
	GetTransactions(ctx context.Context) ([]models.Transaction, error)
}

// SnapshotStore persists labelled snapshots
type SnapshotStore interface {
	SaveSnapshot(ctx context.Context, run *models.SegmentationRun, segments []models.CustomerSegment) error
	GetLatestRun(ctx context.Context) (*models.SegmentationRun, error)
	GetSegments(ctx context.Context, runID string) ([]models.CustomerSegment, error)
	GetCustomerSegment(ctx context.Context, runID, customerID string) (*models.CustomerSegment, error)
}

// SnapshotCache serves the latest snapshot without touching the database
type SnapshotCache interface {
	CacheSnapshot(ctx context.Context, runID string, segments []models.CustomerSegment, summary models.Summary, ttl time.Duration) error
	GetCustomerSegment(ctx context.Context, runID, customerID string) (*models.CustomerSegment, error)
	GetSummary(ctx context.Context, runID string) (*models.Summary, error)
	AcquireLock(ctx context.Context, lockKey string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, lockKey string) error
}

// EventPublisher announces run outcomes
type EventPublisher interface {
	PublishSegmentationCompleted(ctx context.Context, event *models.SegmentationCompletedEvent) error
	PublishSegmentationFailed(ctx context.Context, event *models.SegmentationFailedEvent) error
}

// Options is the configuration surface of a run
type Options struct {
	Strategy        string
	ChurnCutoffDays int
	Rules           rfm.RuleTable
	Cluster         rfm.ClusterConfig
	ReferenceDate   *time.Time
	CacheTTL        time.Duration
}

// DefaultOptions clusters into the default labels with a 90 day churn cutoff
func DefaultOptions() Options {
	return Options{
		Strategy:        models.StrategyKMeans,
		ChurnCutoffDays: rfm.DefaultChurnCutoffDays,
		Rules:           rfm.DefaultRuleTable(),
		Cluster:         rfm.DefaultClusterConfig(),
		CacheTTL:        24 * time.Hour,
	}
}

// RunRequest overrides the configured strategy or reference date for one run
type RunRequest struct {
	Strategy      string     `json:"strategy,omitempty"`
	ReferenceDate *time.Time `json:"reference_date,omitempty"`
}

// RunResult describes a completed run
type RunResult struct {
	Run     models.SegmentationRun `json:"run"`
	Summary models.Summary         `json:"summary"`
}

// SegmentationService runs the feature builder and segmenter over the
// transaction source and keeps the resulting snapshot queryable
type SegmentationService struct {
	source    TransactionSource
	store     SnapshotStore
	cache     SnapshotCache
	publisher EventPublisher
	opts      Options
	logger    *zap.Logger
	mu        sync.Mutex
	now       func() time.Time
}

// NewSegmentationService creates a new segmentation service. cache and
// publisher may be nil.
func NewSegmentationService(
	source TransactionSource,
	store SnapshotStore,
	cache SnapshotCache,
	publisher EventPublisher,
	opts Options,
) *SegmentationService {
	return &SegmentationService{
		source:    source,
		store:     store,
		cache:     cache,
		publisher: publisher,
		opts:      opts,
		logger:    util.GetLogger(),
		now:       time.Now,
	}
}

// Run recomputes the whole snapshot. Any error aborts the run and nothing
// is persisted.
func (s *SegmentationService) Run(ctx context.Context, req RunRequest) (*RunResult, error) {
	ctx, span := util.StartSpan(ctx, "SegmentationService.Run")
	defer span.End()

	strategy := req.Strategy
	if strategy == "" {
		strategy = s.opts.Strategy
	}
	asOf := req.ReferenceDate
	if asOf == nil {
		asOf = s.opts.ReferenceDate
	}

	if !s.mu.TryLock() {
		return nil, ErrRunInProgress
	}
	defer s.mu.Unlock()

	if s.cache != nil {
		acquired, err := s.cache.AcquireLock(ctx, runLockKey, runLockTTL)
		if err != nil {
			s.logger.Warn("Failed to acquire run lock, continuing", zap.Error(err))
		} else if !acquired {
			return nil, ErrRunInProgress
		} else {
			defer func() {
				if err := s.cache.ReleaseLock(context.Background(), runLockKey); err != nil {
					s.logger.Error("Failed to release run lock", zap.Error(err))
				}
			}()
		}
	}

	start := time.Now()
	result, err := s.run(ctx, strategy, asOf)
	if err != nil {
		kind := rfm.Kind(err)
		util.SegmentationRunsFailed.WithLabelValues(kind).Inc()
		s.logger.Error("Segmentation run failed",
			zap.String("strategy", strategy),
			zap.String("kind", kind),
			zap.Error(err))
		s.publishFailed(ctx, strategy, kind, err)
		return nil, err
	}

	util.SegmentationRunDuration.WithLabelValues(strategy).Observe(time.Since(start).Seconds())
	util.SegmentationRunsTotal.WithLabelValues(strategy).Inc()
	return result, nil
}

func (s *SegmentationService) run(ctx context.Context, strategy string, asOf *time.Time) (*RunResult, error) {
	txns, err := s.source.GetTransactions(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load transactions: %w", err)
	}
	qualifying := len(rfm.FilterQualifying(txns))
	util.TransactionsLoaded.Set(float64(len(txns)))
	util.TransactionsExcluded.Set(float64(len(txns) - qualifying))

	features, err := rfm.BuildFeatures(txns, asOf)
	if err != nil {
		return nil, fmt.Errorf("failed to build features: %w", err)
	}

	segments, err := s.segment(features, strategy)
	if err != nil {
		return nil, fmt.Errorf("failed to segment customers: %w", err)
	}

	ref, err := rfm.ReferenceDate(txns)
	if err != nil {
		return nil, err
	}
	if asOf != nil {
		ref = *asOf
	}

	run := models.SegmentationRun{
		ID:            uuid.New().String(),
		Strategy:      strategy,
		ReferenceDate: ref,
		Customers:     len(segments),
		CreatedAt:     s.now().UTC(),
	}
	summary := rfm.Summarize(segments)
	summary.RunID = run.ID

	if err := s.store.SaveSnapshot(ctx, &run, segments); err != nil {
		return nil, fmt.Errorf("failed to save snapshot: %w", err)
	}

	if s.cache != nil {
		if err := s.cache.CacheSnapshot(ctx, run.ID, segments, summary, s.opts.CacheTTL); err != nil {
			s.logger.Warn("Failed to cache snapshot", zap.String("run_id", run.ID), zap.Error(err))
		}
	}

	util.ChurnRate.Set(summary.ChurnRate)
	util.CustomersBySegment.Reset()
	for _, st := range summary.Segments {
		util.CustomersBySegment.WithLabelValues(st.Segment).Set(float64(st.Customers))
	}

	s.logger.Info("Segmentation run completed",
		zap.String("run_id", run.ID),
		zap.String("strategy", strategy),
		zap.Time("reference_date", ref),
		zap.Int("transactions", len(txns)),
		zap.Int("qualifying", qualifying),
		zap.Int("customers", len(segments)),
		zap.Float64("churn_rate", summary.ChurnRate))

	s.publishCompleted(ctx, &run, summary, segments)
	return &RunResult{Run: run, Summary: summary}, nil
}

func (s *SegmentationService) segment(features []models.CustomerFeatures, strategy string) ([]models.CustomerSegment, error) {
	switch strategy {
	case models.StrategyRules:
		return rfm.SegmentByRules(features, s.opts.Rules, s.opts.ChurnCutoffDays)
	case models.StrategyKMeans:
		return rfm.SegmentByClusters(features, s.opts.Cluster, s.opts.ChurnCutoffDays)
	}
	return nil, &rfm.ConfigError{Reason: fmt.Sprintf("unknown segmentation strategy %q", strategy)}
}

func (s *SegmentationService) publishCompleted(ctx context.Context, run *models.SegmentationRun, summary models.Summary, segments []models.CustomerSegment) {
	if s.publisher == nil {
		return
	}
	event := &models.SegmentationCompletedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeSegmentationCompleted,
			Timestamp: s.now(),
		},
		RunID:          run.ID,
		Strategy:       run.Strategy,
		ReferenceDate:  run.ReferenceDate,
		TotalCustomers: run.Customers,
		ChurnRate:      summary.ChurnRate,
		SegmentCounts:  rfm.SegmentCounts(segments),
	}
	if err := s.publisher.PublishSegmentationCompleted(ctx, event); err != nil {
		s.logger.Error("Failed to publish SegmentationCompleted event", zap.Error(err))
	}
}

func (s *SegmentationService) publishFailed(ctx context.Context, strategy, kind string, cause error) {
	if s.publisher == nil {
		return
	}
	event := &models.SegmentationFailedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeSegmentationFailed,
			Timestamp: s.now(),
		},
		Strategy: strategy,
		Kind:     kind,
		Reason:   cause.Error(),
	}
	if err := s.publisher.PublishSegmentationFailed(ctx, event); err != nil {
		s.logger.Error("Failed to publish SegmentationFailed event", zap.Error(err))
	}
}

// HandleSegmentationRequested runs a segmentation for a broker request
func (s *SegmentationService) HandleSegmentationRequested(ctx context.Context, event *models.SegmentationRequestedEvent) error {
	s.logger.Info("Segmentation requested", zap.String("event_id", event.EventID))
	_, err := s.Run(ctx, RunRequest{Strategy: event.Strategy, ReferenceDate: event.ReferenceDate})
	if errors.Is(err, ErrRunInProgress) {
		s.logger.Info("Skipping request, run already in progress", zap.String("event_id", event.EventID))
		return nil
	}
	return err
}
