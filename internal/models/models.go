package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transaction represents one invoice line item
type Transaction struct {
	InvoiceID  string          `db:"invoice_id" json:"invoice_id"`
	CustomerID string          `db:"customer_id" json:"customer_id,omitempty"`
	Timestamp  time.Time       `db:"invoice_date" json:"timestamp"`
	Quantity   int64           `db:"quantity" json:"quantity"`
	UnitPrice  decimal.Decimal `db:"unit_price" json:"unit_price"`
}

// LineTotal returns quantity * unit price
func (t Transaction) LineTotal() decimal.Decimal {
	return t.UnitPrice.Mul(decimal.NewFromInt(t.Quantity))
}

// Qualifying reports whether the line is a retainable purchase event.
// Returns, zero-priced lines and anonymous sales are not.
func (t Transaction) Qualifying() bool {
	return t.Quantity > 0 && t.UnitPrice.IsPositive() && t.CustomerID != ""
}

// CustomerFeatures is the RFM vector of one customer for a snapshot
type CustomerFeatures struct {
	CustomerID              string          `db:"customer_id" json:"customer_id"`
	RecencyDays             int             `db:"recency_days" json:"recency_days"`
	Frequency               int             `db:"frequency" json:"frequency"`
	Monetary                decimal.Decimal `db:"monetary" json:"monetary"`
	AvgOrderValue           decimal.Decimal `db:"avg_order_value" json:"avg_order_value"`
	AvgDaysBetweenPurchases float64         `db:"avg_days_between" json:"avg_days_between_purchases"`
	OneTimeBuyer            bool            `db:"one_time_buyer" json:"one_time_buyer"`
	FirstPurchase           time.Time       `db:"first_purchase" json:"first_purchase"`
	LastPurchase            time.Time       `db:"last_purchase" json:"last_purchase"`
}

// CustomerSegment is a feature vector with its segment and churn labels
type CustomerSegment struct {
	CustomerFeatures
	RunID   string `db:"run_id" json:"run_id,omitempty"`
	Segment string `db:"segment_label" json:"segment_label"`
	Cluster int    `db:"cluster" json:"cluster"`
	Churned bool   `db:"churn_label" json:"churn_label"`
}

// Default segment labels, most favourable first
const (
	SegmentVIPChampion       = "VIP Champion"
	SegmentHighValueLoyalist = "High-Value Loyalist"
	SegmentLoyalCustomer     = "Loyal Customer"
	SegmentAtRiskLost        = "At-Risk/Lost"
)

// DefaultSegmentLabels is the label set shared by rule and cluster segmentation
var DefaultSegmentLabels = []string{
	SegmentVIPChampion,
	SegmentHighValueLoyalist,
	SegmentLoyalCustomer,
	SegmentAtRiskLost,
}

// Segmentation strategies
const (
	StrategyRules  = "rules"
	StrategyKMeans = "kmeans"
)

// Churn status filters
const (
	StatusAll     = "all"
	StatusActive  = "active"
	StatusChurned = "churned"
)

// SegmentationRun describes one persisted snapshot
type SegmentationRun struct {
	ID            string    `db:"id" json:"id"`
	Strategy      string    `db:"strategy" json:"strategy"`
	ReferenceDate time.Time `db:"reference_date" json:"reference_date"`
	Customers     int       `db:"customers" json:"customers"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}

// SegmentStats aggregates one segment of a snapshot
type SegmentStats struct {
	Segment       string          `json:"segment"`
	Customers     int             `json:"customers"`
	Churned       int             `json:"churned"`
	ChurnRate     float64         `json:"churn_rate"`
	Revenue       decimal.Decimal `json:"revenue"`
	MeanRecency   float64         `json:"mean_recency_days"`
	MeanFrequency float64         `json:"mean_frequency"`
	MeanMonetary  decimal.Decimal `json:"mean_monetary"`
}

// Summary holds the headline figures of a snapshot
type Summary struct {
	RunID            string          `json:"run_id,omitempty"`
	TotalCustomers   int             `json:"total_customers"`
	ChurnedCustomers int             `json:"churned_customers"`
	ChurnRate        float64         `json:"churn_rate"`
	TotalRevenue     decimal.Decimal `json:"total_revenue"`
	AvgCustomerValue decimal.Decimal `json:"avg_customer_value"`
	Segments         []SegmentStats  `json:"segments"`
}
