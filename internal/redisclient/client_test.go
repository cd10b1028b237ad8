package redisclient

import (
	"context"
	"testing"
	"time"

	"customer-segments/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeys(t *testing.T) {
	assert.Equal(t, "segments:run-1", segmentsKey("run-1"))
	assert.Equal(t, "summary:run-1", summaryKey("run-1"))
}

func TestCacheSnapshot(t *testing.T) {
	t.Skip("Integration test - requires redis")

	client, err := NewClient("localhost:6379", "", 15)
	require.NoError(t, err)
	defer client.Close()

	ctx := context.Background()
	segments := []models.CustomerSegment{{
		CustomerFeatures: models.CustomerFeatures{
			CustomerID: "17850",
			Frequency:  34,
			Monetary:   decimal.RequireFromString("5391.21"),
		},
		Segment: models.SegmentAtRiskLost,
		Churned: true,
	}}
	summary := models.Summary{RunID: "run-1", TotalCustomers: 1, ChurnedCustomers: 1, ChurnRate: 1}

	require.NoError(t, client.CacheSnapshot(ctx, "run-1", segments, summary, time.Minute))

	latest, err := client.LatestRunID(ctx)
	require.NoError(t, err)
	assert.Equal(t, "run-1", latest)

	seg, err := client.GetCustomerSegment(ctx, "run-1", "17850")
	require.NoError(t, err)
	require.NotNil(t, seg)
	assert.True(t, seg.Churned)
	assert.True(t, decimal.RequireFromString("5391.21").Equal(seg.Monetary))

	missing, err := client.GetCustomerSegment(ctx, "run-1", "00000")
	require.NoError(t, err)
	assert.Nil(t, missing)

	cached, err := client.GetSummary(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, 1, cached.TotalCustomers)
}
