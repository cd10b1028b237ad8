package rfm

import (
	"sort"

	"customer-segments/internal/models"

	"github.com/shopspring/decimal"
)

// DefaultChurnCutoffDays marks a customer churned after 90 days without a purchase
const DefaultChurnCutoffDays = 90

// IsChurned reports whether the last purchase is older than cutoff days
func IsChurned(f models.CustomerFeatures, cutoffDays int) bool {
	return f.RecencyDays > cutoffDays
}

func validateCutoff(cutoffDays int) error {
	if cutoffDays < 0 {
		return configErrorf("churn cutoff must be non-negative, got %d", cutoffDays)
	}
	return nil
}

// SegmentByRules labels every customer with the first matching rule
func SegmentByRules(features []models.CustomerFeatures, table RuleTable, cutoffDays int) ([]models.CustomerSegment, error) {
	if err := table.Validate(); err != nil {
		return nil, err
	}
	if err := validateCutoff(cutoffDays); err != nil {
		return nil, err
	}
	if len(features) == 0 {
		return nil, &DataError{Reason: "no customers to segment"}
	}

	out := make([]models.CustomerSegment, len(features))
	for i, f := range features {
		label, err := table.Classify(f)
		if err != nil {
			return nil, err
		}
		out[i] = models.CustomerSegment{
			CustomerFeatures: f,
			Segment:          label,
			Cluster:          -1,
			Churned:          IsChurned(f, cutoffDays),
		}
	}
	return out, nil
}

// ClusterConfig fixes the cluster count, seed and rank-ordered labels.
// The count is decided offline; it is never searched at runtime.
type ClusterConfig struct {
	K       int
	Seed    int64
	Labels  []string
	Options KMeansOptions
}

// DefaultClusterConfig uses one cluster per default label
func DefaultClusterConfig() ClusterConfig {
	return ClusterConfig{
		K:      len(models.DefaultSegmentLabels),
		Seed:   42,
		Labels: models.DefaultSegmentLabels,
	}
}

// Validate checks the config against the number of customers to cluster
func (c ClusterConfig) Validate(customers int) error {
	if c.K < 1 {
		return configErrorf("cluster count must be positive, got %d", c.K)
	}
	if c.K > customers {
		return configErrorf("cluster count %d exceeds %d customers", c.K, customers)
	}
	if len(c.Labels) != c.K {
		return configErrorf("need %d segment labels for %d clusters, got %d", c.K, c.K, len(c.Labels))
	}
	for i, l := range c.Labels {
		if l == "" {
			return configErrorf("segment label %d is empty", i)
		}
	}
	return nil
}

// SegmentByClusters standardises the RFM features, clusters them and names
// each cluster by its mean monetary rank.
func SegmentByClusters(features []models.CustomerFeatures, cfg ClusterConfig, cutoffDays int) ([]models.CustomerSegment, error) {
	if err := validateCutoff(cutoffDays); err != nil {
		return nil, err
	}
	if len(features) == 0 {
		return nil, &DataError{Reason: "no customers to segment"}
	}
	if err := cfg.Validate(len(features)); err != nil {
		return nil, err
	}

	points, err := Standardize(features)
	if err != nil {
		return nil, err
	}
	res, err := KMeans(points, cfg.K, cfg.Seed, cfg.Options)
	if err != nil {
		return nil, err
	}
	ranks, err := RankClusters(res.Assignments, features, cfg.K)
	if err != nil {
		return nil, err
	}

	out := make([]models.CustomerSegment, len(features))
	for i, f := range features {
		cluster := res.Assignments[i]
		out[i] = models.CustomerSegment{
			CustomerFeatures: f,
			Segment:          cfg.Labels[ranks[cluster]],
			Cluster:          cluster,
			Churned:          IsChurned(f, cutoffDays),
		}
	}
	return out, nil
}

// RankClusters returns, per cluster, its rank by mean monetary value with 0
// for the highest spenders. Empty clusters rank last; ties keep cluster order.
func RankClusters(assignments []int, features []models.CustomerFeatures, k int) ([]int, error) {
	if len(assignments) != len(features) {
		return nil, &DataError{Reason: "assignments and features differ in length"}
	}
	sums := make([]decimal.Decimal, k)
	counts := make([]int, k)
	for i := range sums {
		sums[i] = decimal.Zero
	}
	for i, c := range assignments {
		if c < 0 || c >= k {
			return nil, configErrorf("cluster %d out of range for k=%d", c, k)
		}
		sums[c] = sums[c].Add(features[i].Monetary)
		counts[c]++
	}
	means := make([]decimal.Decimal, k)
	order := make([]int, k)
	for c := range order {
		order[c] = c
		if counts[c] > 0 {
			means[c] = sums[c].Div(decimal.NewFromInt(int64(counts[c])))
		}
	}
	sort.SliceStable(order, func(i, j int) bool {
		a, b := order[i], order[j]
		if (counts[a] > 0) != (counts[b] > 0) {
			return counts[a] > 0
		}
		return means[a].GreaterThan(means[b])
	})
	ranks := make([]int, k)
	for rank, c := range order {
		ranks[c] = rank
	}
	return ranks, nil
}
