package rfm

import (
	"errors"
	"fmt"
	"math/rand"
	"testing"
	"time"

	"customer-segments/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(t *testing.T, s string) time.Time {
	t.Helper()
	layout := "2006-01-02"
	if len(s) > len(layout) {
		layout = "2006-01-02 15:04"
	}
	ts, err := time.Parse(layout, s)
	require.NoError(t, err)
	return ts
}

func txn(t *testing.T, invoice, customer, when string, qty int64, price string) models.Transaction {
	t.Helper()
	return models.Transaction{
		InvoiceID:  invoice,
		CustomerID: customer,
		Timestamp:  date(t, when),
		Quantity:   qty,
		UnitPrice:  decimal.RequireFromString(price),
	}
}

func TestBuildFeaturesExcludesReturns(t *testing.T) {
	txns := []models.Transaction{
		txn(t, "536365", "C1", "2023-01-01", 2, "10"),
		txn(t, "C536365", "C1", "2023-01-01", -1, "10"),
	}
	ref := date(t, "2023-01-01")

	features, err := BuildFeatures(txns, &ref)
	require.NoError(t, err)
	require.Len(t, features, 1)

	f := features[0]
	assert.Equal(t, "C1", f.CustomerID)
	assert.Equal(t, 1, f.Frequency)
	assert.True(t, decimal.NewFromInt(20).Equal(f.Monetary), "monetary = %s", f.Monetary)
	assert.Equal(t, 0, f.RecencyDays)
	assert.True(t, f.OneTimeBuyer)
}

func TestBuildFeaturesCountsInvoicesOnce(t *testing.T) {
	txns := []models.Transaction{
		txn(t, "1001", "C1", "2023-03-01", 1, "5.50"),
		txn(t, "1001", "C1", "2023-03-01", 3, "2.00"),
		txn(t, "1001", "C1", "2023-03-01", 2, "1.25"),
		txn(t, "1002", "C1", "2023-03-11", 1, "4.00"),
	}

	features, err := BuildFeatures(txns, nil)
	require.NoError(t, err)
	require.Len(t, features, 1)

	f := features[0]
	assert.Equal(t, 2, f.Frequency)
	assert.True(t, decimal.RequireFromString("18.00").Equal(f.Monetary), "monetary = %s", f.Monetary)
	assert.True(t, decimal.RequireFromString("9.00").Equal(f.AvgOrderValue), "avg order = %s", f.AvgOrderValue)
	assert.InDelta(t, 10.0, f.AvgDaysBetweenPurchases, 1e-9)
	assert.False(t, f.OneTimeBuyer)
}

func TestBuildFeaturesDefaultReferenceDate(t *testing.T) {
	txns := []models.Transaction{
		txn(t, "1", "A", "2023-01-01", 1, "10"),
		txn(t, "2", "B", "2023-02-15 18:00", 1, "10"),
		// a return dated later must not move the reference date
		txn(t, "C3", "B", "2023-06-01", -1, "10"),
		// nor must an anonymous sale
		txn(t, "4", "", "2023-07-01", 1, "10"),
	}

	features, err := BuildFeatures(txns, nil)
	require.NoError(t, err)
	require.Len(t, features, 2)

	assert.Equal(t, "A", features[0].CustomerID)
	assert.Equal(t, 45, features[0].RecencyDays)
	assert.Equal(t, "B", features[1].CustomerID)
	assert.Equal(t, 0, features[1].RecencyDays)
}

func TestBuildFeaturesRecencyFloorsPartialDays(t *testing.T) {
	txns := []models.Transaction{txn(t, "1", "A", "2023-01-01 18:00", 1, "10")}
	ref := date(t, "2023-01-10 12:00")

	features, err := BuildFeatures(txns, &ref)
	require.NoError(t, err)
	assert.Equal(t, 8, features[0].RecencyDays)
}

func TestBuildFeaturesErrors(t *testing.T) {
	t.Run("no qualifying transactions", func(t *testing.T) {
		txns := []models.Transaction{
			txn(t, "C1", "A", "2023-01-01", -2, "10"),
			txn(t, "2", "A", "2023-01-01", 2, "0"),
			txn(t, "3", "", "2023-01-01", 2, "10"),
		}
		_, err := BuildFeatures(txns, nil)
		var dataErr *DataError
		assert.True(t, errors.As(err, &dataErr), "got %v", err)
	})

	t.Run("empty input", func(t *testing.T) {
		_, err := BuildFeatures(nil, nil)
		assert.Equal(t, KindData, Kind(err))
	})

	t.Run("missing invoice id", func(t *testing.T) {
		txns := []models.Transaction{
			txn(t, "1", "A", "2023-01-01", 1, "10"),
			txn(t, "", "A", "2023-01-02", 1, "10"),
		}
		_, err := BuildFeatures(txns, nil)
		var schemaErr *SchemaError
		require.True(t, errors.As(err, &schemaErr), "got %v", err)
		assert.Equal(t, "invoice_id", schemaErr.Field)
		assert.Equal(t, 2, schemaErr.Row)
	})

	t.Run("missing timestamp", func(t *testing.T) {
		txns := []models.Transaction{{InvoiceID: "1", CustomerID: "A", Quantity: 1, UnitPrice: decimal.NewFromInt(1)}}
		_, err := BuildFeatures(txns, nil)
		assert.Equal(t, KindSchema, Kind(err))
	})

	t.Run("reference date before last purchase", func(t *testing.T) {
		txns := []models.Transaction{txn(t, "1", "A", "2023-05-01", 1, "10")}
		ref := date(t, "2023-04-01")
		_, err := BuildFeatures(txns, &ref)
		assert.Equal(t, KindData, Kind(err))
	})
}

func randomTransactions(rng *rand.Rand, n int) []models.Transaction {
	start := time.Date(2010, 12, 1, 8, 0, 0, 0, time.UTC)
	txns := make([]models.Transaction, 0, n)
	for i := 0; i < n; i++ {
		customer := ""
		if rng.Intn(10) > 0 {
			customer = fmt.Sprintf("%d", 12000+rng.Intn(40))
		}
		qty := int64(rng.Intn(30) - 5)
		price := decimal.New(int64(rng.Intn(2000)), -2)
		txns = append(txns, models.Transaction{
			InvoiceID:  fmt.Sprintf("%d", 536000+rng.Intn(n/3+1)),
			CustomerID: customer,
			Timestamp:  start.Add(time.Duration(rng.Intn(365*24)) * time.Hour),
			Quantity:   qty,
			UnitPrice:  price,
		})
	}
	return txns
}

func TestBuildFeaturesInvariants(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for round := 0; round < 20; round++ {
		txns := randomTransactions(rng, 300)

		features, err := BuildFeatures(txns, nil)
		require.NoError(t, err)

		customers := make(map[string]bool)
		for _, tx := range FilterQualifying(txns) {
			customers[tx.CustomerID] = true
		}
		assert.Len(t, features, len(customers))

		for _, f := range features {
			assert.True(t, customers[f.CustomerID])
			assert.GreaterOrEqual(t, f.Frequency, 1)
			assert.GreaterOrEqual(t, f.RecencyDays, 0)
			assert.True(t, f.Monetary.IsPositive(), "customer %s monetary %s", f.CustomerID, f.Monetary)
		}
	}
}

func TestBuildFeaturesFilterIdempotent(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	txns := randomTransactions(rng, 500)

	first, err := BuildFeatures(txns, nil)
	require.NoError(t, err)

	filtered := FilterQualifying(txns)
	assert.Equal(t, filtered, FilterQualifying(filtered))

	second, err := BuildFeatures(filtered, nil)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestReferenceDate(t *testing.T) {
	txns := []models.Transaction{
		txn(t, "1", "A", "2023-01-01", 1, "10"),
		txn(t, "2", "B", "2023-03-01", 1, "10"),
		txn(t, "C3", "B", "2023-04-01", -1, "10"),
	}
	ref, err := ReferenceDate(txns)
	require.NoError(t, err)
	assert.Equal(t, date(t, "2023-03-01"), ref)
}
