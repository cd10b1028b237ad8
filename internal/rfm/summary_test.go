package rfm

import (
	"testing"

	"customer-segments/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func segment(id, label string, recency int, monetary string, churned bool) models.CustomerSegment {
	return models.CustomerSegment{
		CustomerFeatures: features(id, recency, 2, monetary),
		Segment:          label,
		Churned:          churned,
	}
}

func sampleSegments() []models.CustomerSegment {
	return []models.CustomerSegment{
		segment("A", "VIP", 5, "9000", false),
		segment("B", "VIP", 120, "7000", true),
		segment("C", "Loyal", 30, "800", false),
		segment("D", "AtRisk", 200, "150", true),
		segment("E", "AtRisk", 300, "50", true),
	}
}

func TestSummarize(t *testing.T) {
	summary := Summarize(sampleSegments())

	assert.Equal(t, 5, summary.TotalCustomers)
	assert.Equal(t, 3, summary.ChurnedCustomers)
	assert.InDelta(t, 0.6, summary.ChurnRate, 1e-9)
	assert.True(t, decimal.NewFromInt(17000).Equal(summary.TotalRevenue))
	assert.True(t, decimal.NewFromInt(3400).Equal(summary.AvgCustomerValue))

	require.Len(t, summary.Segments, 3)
	assert.Equal(t, "VIP", summary.Segments[0].Segment)
	assert.Equal(t, "Loyal", summary.Segments[1].Segment)
	assert.Equal(t, "AtRisk", summary.Segments[2].Segment)

	vip := summary.Segments[0]
	assert.Equal(t, 2, vip.Customers)
	assert.Equal(t, 1, vip.Churned)
	assert.InDelta(t, 0.5, vip.ChurnRate, 1e-9)
	assert.InDelta(t, 62.5, vip.MeanRecency, 1e-9)
	assert.InDelta(t, 2.0, vip.MeanFrequency, 1e-9)
	assert.True(t, decimal.NewFromInt(8000).Equal(vip.MeanMonetary))
}

func TestSummarizeEmpty(t *testing.T) {
	summary := Summarize(nil)
	assert.Equal(t, 0, summary.TotalCustomers)
	assert.Equal(t, 0.0, summary.ChurnRate)
	assert.Empty(t, summary.Segments)
}

func TestAtRisk(t *testing.T) {
	atRisk := AtRisk(sampleSegments(), 2)
	require.Len(t, atRisk, 2)
	assert.Equal(t, "B", atRisk[0].CustomerID)
	assert.Equal(t, "D", atRisk[1].CustomerID)

	assert.Len(t, AtRisk(sampleSegments(), 0), 3)
}

func TestFilter(t *testing.T) {
	all := sampleSegments()

	assert.Len(t, Filter(all, nil, models.StatusAll), 5)
	assert.Len(t, Filter(all, []string{"VIP"}, models.StatusAll), 2)
	assert.Len(t, Filter(all, []string{"VIP", "Loyal"}, models.StatusActive), 2)
	assert.Len(t, Filter(all, nil, models.StatusChurned), 3)
	assert.Empty(t, Filter(all, []string{"Loyal"}, models.StatusChurned))
}

func TestSegmentCounts(t *testing.T) {
	assert.Equal(t, map[string]int{"VIP": 2, "Loyal": 1, "AtRisk": 2}, SegmentCounts(sampleSegments()))
}
