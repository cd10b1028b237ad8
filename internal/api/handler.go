package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"customer-segments/config"
	"customer-segments/internal/models"
	"customer-segments/internal/rfm"
	"customer-segments/internal/service"
	"customer-segments/internal/store"
	"customer-segments/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const defaultAtRiskLimit = 20

// Segmenter is the part of the segmentation service the HTTP surface uses
type Segmenter interface {
	Run(ctx context.Context, req service.RunRequest) (*service.RunResult, error)
	Summary(ctx context.Context) (*models.Summary, error)
	Customer(ctx context.Context, customerID string) (*models.CustomerSegment, error)
	Customers(ctx context.Context, labels []string, status string) ([]models.CustomerSegment, error)
	AtRisk(ctx context.Context, labels []string, limit int) ([]models.CustomerSegment, error)
}

// RequestPublisher queues a segmentation for the worker
type RequestPublisher interface {
	PublishSegmentationRequested(ctx context.Context, event *models.SegmentationRequestedEvent) error
}

// Pinger is a dependency checked by the readiness probe
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler contains HTTP handlers
type Handler struct {
	segmenter Segmenter
	publisher RequestPublisher
	deps      map[string]Pinger
	logger    *zap.Logger
}

// NewHandler creates a new HTTP handler. publisher may be nil, in which case
// asynchronous runs are rejected.
func NewHandler(segmenter Segmenter, publisher RequestPublisher, deps map[string]Pinger) *Handler {
	return &Handler{
		segmenter: segmenter,
		publisher: publisher,
		deps:      deps,
		logger:    util.GetLogger(),
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(gin.Logger())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		v1.POST("/segmentations", h.runSegmentation)
		v1.GET("/summary", h.getSummary)
		v1.GET("/customers", h.listCustomers)
		v1.GET("/customers/:id", h.getCustomer)
		v1.GET("/at-risk", h.listAtRisk)
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck pings every dependency
func (h *Handler) readinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	failed := gin.H{}
	for name, dep := range h.deps {
		if err := dep.Ping(ctx); err != nil {
			failed[name] = err.Error()
		}
	}
	if len(failed) > 0 {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":  "not ready",
			"details": failed,
			"time":    time.Now().Unix(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

type runSegmentationRequest struct {
	Strategy      string `json:"strategy"`
	ReferenceDate string `json:"reference_date"`
	Async         bool   `json:"async"`
}

// runSegmentation recomputes the snapshot, or queues a run when async is set
func (h *Handler) runSegmentation(c *gin.Context) {
	var req runSegmentationRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "Invalid request body",
				"details": err.Error(),
			})
			return
		}
	}
	switch req.Strategy {
	case "", models.StrategyRules, models.StrategyKMeans:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown strategy", "details": req.Strategy})
		return
	}
	asOf, err := config.ParseReferenceDate(req.ReferenceDate)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid reference date", "details": err.Error()})
		return
	}

	if req.Async {
		h.queueSegmentation(c, req.Strategy, asOf)
		return
	}

	result, err := h.segmenter.Run(c.Request.Context(), service.RunRequest{Strategy: req.Strategy, ReferenceDate: asOf})
	if err != nil {
		h.writeError(c, "Segmentation failed", err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

func (h *Handler) queueSegmentation(c *gin.Context, strategy string, asOf *time.Time) {
	if h.publisher == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Asynchronous runs are not available"})
		return
	}
	event := &models.SegmentationRequestedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeSegmentationRequested,
			Timestamp: time.Now(),
		},
		Strategy:      strategy,
		ReferenceDate: asOf,
	}
	if err := h.publisher.PublishSegmentationRequested(c.Request.Context(), event); err != nil {
		h.writeError(c, "Failed to queue segmentation", err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"event_id": event.EventID})
}

func (h *Handler) getSummary(c *gin.Context) {
	summary, err := h.segmenter.Summary(c.Request.Context())
	if err != nil {
		h.writeError(c, "Failed to get summary", err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (h *Handler) getCustomer(c *gin.Context) {
	seg, err := h.segmenter.Customer(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, "Customer not found", err)
		return
	}
	c.JSON(http.StatusOK, seg)
}

// segmentLabels accepts repeated or comma separated segment params
func segmentLabels(c *gin.Context) []string {
	var labels []string
	for _, v := range c.QueryArray("segment") {
		for _, l := range strings.Split(v, ",") {
			if l = strings.TrimSpace(l); l != "" {
				labels = append(labels, l)
			}
		}
	}
	return labels
}

func (h *Handler) listCustomers(c *gin.Context) {
	labels := segmentLabels(c)
	status := c.DefaultQuery("status", models.StatusAll)
	switch status {
	case models.StatusAll, models.StatusActive, models.StatusChurned:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid status", "details": status})
		return
	}

	customers, err := h.segmenter.Customers(c.Request.Context(), labels, status)
	if err != nil {
		h.writeError(c, "Failed to list customers", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"count":     len(customers),
		"customers": customers,
	})
}

func (h *Handler) listAtRisk(c *gin.Context) {
	limit := defaultAtRiskLimit
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid limit"})
			return
		}
		limit = n
	}

	customers, err := h.segmenter.AtRisk(c.Request.Context(), segmentLabels(c), limit)
	if err != nil {
		h.writeError(c, "Failed to list at-risk customers", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"count":     len(customers),
		"customers": customers,
	})
}

func (h *Handler) writeError(c *gin.Context, message string, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.logger.Error(message, zap.String("path", c.FullPath()), zap.Error(err))
	}
	c.JSON(status, gin.H{
		"error":   message,
		"kind":    rfm.Kind(err),
		"details": err.Error(),
	})
}

// statusFor maps run and lookup errors onto HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrNoSnapshot), errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrRunInProgress):
		return http.StatusConflict
	}
	switch rfm.Kind(err) {
	case rfm.KindSchema, rfm.KindData:
		return http.StatusUnprocessableEntity
	case rfm.KindConfig:
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()
	}
}
