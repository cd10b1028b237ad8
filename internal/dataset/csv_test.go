package dataset

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"customer-segments/internal/models"
	"customer-segments/internal/rfm"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const retailCSV = `InvoiceNo,StockCode,Description,Quantity,InvoiceDate,UnitPrice,CustomerID,Country
536365,85123A,WHITE HANGING HEART T-LIGHT HOLDER,6,12/1/2010 8:26,2.55,17850.0,United Kingdom
536365,71053,WHITE METAL LANTERN,6,12/1/2010 8:26,3.39,17850.0,United Kingdom
C536379,D,Discount,-1,12/1/2010 9:41,27.50,14527.0,United Kingdom
536414,22139,,56,12/1/2010 11:52,0,,United Kingdom
536520,21123,SET/10 IVORY POLKADOT PARTY CANDLES,1,12/1/2010 12:43,1.25,14729.0,United Kingdom
`

func TestReadTransactions(t *testing.T) {
	txns, err := ReadTransactions(strings.NewReader(retailCSV), DefaultFieldMapping())
	require.NoError(t, err)
	require.Len(t, txns, 5)

	first := txns[0]
	assert.Equal(t, "536365", first.InvoiceID)
	assert.Equal(t, "17850", first.CustomerID)
	assert.Equal(t, int64(6), first.Quantity)
	assert.True(t, decimal.RequireFromString("2.55").Equal(first.UnitPrice))
	assert.Equal(t, time.Date(2010, 12, 1, 8, 26, 0, 0, time.UTC), first.Timestamp)

	assert.Equal(t, int64(-1), txns[2].Quantity)
	assert.Equal(t, "", txns[3].CustomerID)

	features, err := rfm.BuildFeatures(txns, nil)
	require.NoError(t, err)
	require.Len(t, features, 2)
	assert.Equal(t, "14729", features[0].CustomerID)
	assert.Equal(t, "17850", features[1].CustomerID)
	assert.True(t, decimal.RequireFromString("35.64").Equal(features[1].Monetary))
}

func TestReadTransactionsCustomMapping(t *testing.T) {
	input := "order,client,ts,qty,price\nA-1,c1,2023-01-01,2,10\n"
	mapping := FieldMapping{InvoiceID: "order", CustomerID: "client", Timestamp: "ts", Quantity: "qty", UnitPrice: "price"}

	txns, err := ReadTransactions(strings.NewReader(input), mapping)
	require.NoError(t, err)
	require.Len(t, txns, 1)
	assert.Equal(t, "A-1", txns[0].InvoiceID)
	assert.Equal(t, "c1", txns[0].CustomerID)
}

func TestReadTransactionsSchemaErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		field string
		row   int
	}{
		{"missing column", "InvoiceNo,CustomerID,InvoiceDate,Quantity\n1,2,2023-01-01,1\n", "UnitPrice", 0},
		{"empty input", "", "InvoiceNo", 0},
		{"bad quantity", "InvoiceNo,CustomerID,InvoiceDate,Quantity,UnitPrice\n1,2,2023-01-01,two,1\n", "Quantity", 1},
		{"bad price", "InvoiceNo,CustomerID,InvoiceDate,Quantity,UnitPrice\n1,2,2023-01-01,1,1\n1,2,2023-01-01,1,£1\n", "UnitPrice", 2},
		{"bad date", "InvoiceNo,CustomerID,InvoiceDate,Quantity,UnitPrice\n1,2,yesterday,1,1\n", "InvoiceDate", 1},
		{"short row", "InvoiceNo,CustomerID,InvoiceDate,Quantity,UnitPrice\n1,2,2023-01-01\n", "Quantity", 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadTransactions(strings.NewReader(tt.input), DefaultFieldMapping())
			var schemaErr *rfm.SchemaError
			require.True(t, errors.As(err, &schemaErr), "got %v", err)
			assert.Equal(t, tt.field, schemaErr.Field)
			assert.Equal(t, tt.row, schemaErr.Row)
		})
	}
}

func TestWriteSegments(t *testing.T) {
	segments := []models.CustomerSegment{{
		CustomerFeatures: models.CustomerFeatures{
			CustomerID:    "17850",
			RecencyDays:   372,
			Frequency:     34,
			Monetary:      decimal.RequireFromString("5391.21"),
			AvgOrderValue: decimal.RequireFromString("158.57"),
		},
		Segment: models.SegmentAtRiskLost,
		Churned: true,
		Cluster: 3,
	}}

	var buf bytes.Buffer
	require.NoError(t, WriteSegments(&buf, segments))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, []string{
		"customer_id", "recency_days", "frequency", "monetary", "avg_order_value",
		"avg_days_between_purchases", "one_time_buyer", "segment_label", "churn_label", "cluster",
	}, records[0])
	assert.Equal(t, []string{"17850", "372", "34", "5391.21", "158.57", "0.00", "false", "At-Risk/Lost", "true", "3"}, records[1])
}

func TestWriteFeatures(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteFeatures(&buf, []models.CustomerFeatures{{
		CustomerID: "C1", RecencyDays: 0, Frequency: 1,
		Monetary: decimal.NewFromInt(20), AvgOrderValue: decimal.NewFromInt(20), OneTimeBuyer: true,
	}}))
	assert.Equal(t,
		"customer_id,recency_days,frequency,monetary,avg_order_value,avg_days_between_purchases,one_time_buyer\n"+
			"C1,0,1,20.00,20.00,0.00,true\n",
		buf.String())
}

func TestExportJSON(t *testing.T) {
	dir := t.TempDir()
	at := time.Date(2024, 3, 5, 14, 7, 9, 0, time.UTC)
	filename := TimestampedFilename(filepath.Join(dir, "reports"), "summary", "json", at)
	assert.Equal(t, filepath.Join(dir, "reports", "summary_20240305_140709.json"), filename)

	require.NoError(t, ExportJSON(filename, map[string]int{"customers": 3}))

	data, err := os.ReadFile(filename)
	require.NoError(t, err)
	var decoded map[string]int
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, 3, decoded["customers"])
}
