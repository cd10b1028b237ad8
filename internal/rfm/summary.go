package rfm

import (
	"sort"

	"customer-segments/internal/models"

	"github.com/shopspring/decimal"
)

// Summarize computes headline figures and per-segment statistics.
// Segments are ordered by revenue, highest first.
func Summarize(segments []models.CustomerSegment) models.Summary {
	summary := models.Summary{
		TotalCustomers:   len(segments),
		TotalRevenue:     decimal.Zero,
		AvgCustomerValue: decimal.Zero,
		Segments:         []models.SegmentStats{},
	}
	if len(segments) == 0 {
		return summary
	}

	type acc struct {
		stats     models.SegmentStats
		recency   int
		frequency int
	}
	bySegment := make(map[string]*acc)
	for _, s := range segments {
		a, ok := bySegment[s.Segment]
		if !ok {
			a = &acc{stats: models.SegmentStats{Segment: s.Segment, Revenue: decimal.Zero}}
			bySegment[s.Segment] = a
		}
		a.stats.Customers++
		a.stats.Revenue = a.stats.Revenue.Add(s.Monetary)
		a.recency += s.RecencyDays
		a.frequency += s.Frequency
		if s.Churned {
			a.stats.Churned++
			summary.ChurnedCustomers++
		}
		summary.TotalRevenue = summary.TotalRevenue.Add(s.Monetary)
	}

	total := float64(len(segments))
	summary.ChurnRate = float64(summary.ChurnedCustomers) / total
	summary.AvgCustomerValue = summary.TotalRevenue.Div(decimal.NewFromInt(int64(len(segments)))).Round(2)

	for _, a := range bySegment {
		n := float64(a.stats.Customers)
		a.stats.ChurnRate = float64(a.stats.Churned) / n
		a.stats.MeanRecency = float64(a.recency) / n
		a.stats.MeanFrequency = float64(a.frequency) / n
		a.stats.MeanMonetary = a.stats.Revenue.Div(decimal.NewFromInt(int64(a.stats.Customers))).Round(2)
		summary.Segments = append(summary.Segments, a.stats)
	}
	sort.Slice(summary.Segments, func(i, j int) bool {
		a, b := summary.Segments[i], summary.Segments[j]
		if !a.Revenue.Equal(b.Revenue) {
			return a.Revenue.GreaterThan(b.Revenue)
		}
		return a.Segment < b.Segment
	})
	return summary
}

// AtRisk returns churned customers by monetary value, highest first.
// limit <= 0 returns all of them.
func AtRisk(segments []models.CustomerSegment, limit int) []models.CustomerSegment {
	var out []models.CustomerSegment
	for _, s := range segments {
		if s.Churned {
			out = append(out, s)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Monetary.GreaterThan(out[j].Monetary)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// Filter keeps customers in one of labels (all when empty) with the given
// churn status (all, active or churned).
func Filter(segments []models.CustomerSegment, labels []string, status string) []models.CustomerSegment {
	allowed := make(map[string]bool, len(labels))
	for _, l := range labels {
		allowed[l] = true
	}
	out := make([]models.CustomerSegment, 0, len(segments))
	for _, s := range segments {
		if len(allowed) > 0 && !allowed[s.Segment] {
			continue
		}
		switch status {
		case models.StatusActive:
			if s.Churned {
				continue
			}
		case models.StatusChurned:
			if !s.Churned {
				continue
			}
		}
		out = append(out, s)
	}
	return out
}

// SegmentCounts returns the number of customers per label
func SegmentCounts(segments []models.CustomerSegment) map[string]int {
	counts := make(map[string]int)
	for _, s := range segments {
		counts[s.Segment]++
	}
	return counts
}
