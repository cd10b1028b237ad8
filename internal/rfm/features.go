// Package rfm computes Recency-Frequency-Monetary features per customer and
// assigns segment and churn labels to them.
//
// Every function here is a pure transform over a fully loaded table. The
// reference date is always an explicit argument so runs over a static dataset
// are reproducible.
package rfm

import (
	"sort"
	"time"

	"customer-segments/internal/models"

	"github.com/shopspring/decimal"
)

const day = 24 * time.Hour

// FilterQualifying returns the transactions that count towards RFM features
func FilterQualifying(txns []models.Transaction) []models.Transaction {
	out := make([]models.Transaction, 0, len(txns))
	for _, t := range txns {
		if t.Qualifying() {
			out = append(out, t)
		}
	}
	return out
}

// ReferenceDate returns the latest timestamp among qualifying transactions
func ReferenceDate(txns []models.Transaction) (time.Time, error) {
	var ref time.Time
	found := false
	for _, t := range txns {
		if !t.Qualifying() {
			continue
		}
		if !found || t.Timestamp.After(ref) {
			ref = t.Timestamp
			found = true
		}
	}
	if !found {
		return time.Time{}, &DataError{Reason: "no qualifying transactions"}
	}
	return ref, nil
}

type customerAgg struct {
	invoices map[string]struct{}
	monetary decimal.Decimal
	first    time.Time
	last     time.Time
}

// BuildFeatures produces one feature vector per customer with at least one
// qualifying transaction. When asOf is nil the reference date is the latest
// qualifying transaction, never the wall clock.
func BuildFeatures(txns []models.Transaction, asOf *time.Time) ([]models.CustomerFeatures, error) {
	for i, t := range txns {
		if err := validateTransaction(i+1, t); err != nil {
			return nil, err
		}
	}

	qualifying := FilterQualifying(txns)
	if len(qualifying) == 0 {
		return nil, &DataError{Reason: "no qualifying transactions"}
	}

	latest, err := ReferenceDate(qualifying)
	if err != nil {
		return nil, err
	}
	ref := latest
	if asOf != nil {
		if asOf.Before(latest) {
			return nil, &DataError{Reason: "reference date " + asOf.Format(time.RFC3339) +
				" precedes latest qualifying transaction " + latest.Format(time.RFC3339)}
		}
		ref = *asOf
	}

	groups := make(map[string]*customerAgg)
	for _, t := range qualifying {
		agg, ok := groups[t.CustomerID]
		if !ok {
			agg = &customerAgg{
				invoices: make(map[string]struct{}),
				monetary: decimal.Zero,
				first:    t.Timestamp,
				last:     t.Timestamp,
			}
			groups[t.CustomerID] = agg
		}
		agg.invoices[t.InvoiceID] = struct{}{}
		agg.monetary = agg.monetary.Add(t.LineTotal())
		if t.Timestamp.Before(agg.first) {
			agg.first = t.Timestamp
		}
		if t.Timestamp.After(agg.last) {
			agg.last = t.Timestamp
		}
	}

	features := make([]models.CustomerFeatures, 0, len(groups))
	for id, agg := range groups {
		features = append(features, newFeatures(id, agg, ref))
	}
	sort.Slice(features, func(i, j int) bool {
		return features[i].CustomerID < features[j].CustomerID
	})
	return features, nil
}

func newFeatures(id string, agg *customerAgg, ref time.Time) models.CustomerFeatures {
	frequency := len(agg.invoices)
	f := models.CustomerFeatures{
		CustomerID:    id,
		RecencyDays:   int(ref.Sub(agg.last) / day),
		Frequency:     frequency,
		Monetary:      agg.monetary,
		AvgOrderValue: agg.monetary.Div(decimal.NewFromInt(int64(frequency))).Round(2),
		OneTimeBuyer:  frequency == 1,
		FirstPurchase: agg.first,
		LastPurchase:  agg.last,
	}
	if frequency > 1 {
		span := agg.last.Sub(agg.first).Hours() / 24
		f.AvgDaysBetweenPurchases = span / float64(frequency-1)
	}
	return f
}

func validateTransaction(row int, t models.Transaction) error {
	if t.InvoiceID == "" {
		return &SchemaError{Field: "invoice_id", Row: row, Reason: "missing"}
	}
	if t.Timestamp.IsZero() {
		return &SchemaError{Field: "timestamp", Row: row, Reason: "missing"}
	}
	return nil
}
