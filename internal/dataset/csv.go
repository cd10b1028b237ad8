// Package dataset reads transaction tables and writes feature and segment
// tables. The rfm package never touches files; this is the only place that
// knows column names.
package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"customer-segments/internal/models"
	"customer-segments/internal/rfm"

	"github.com/shopspring/decimal"
)

// FieldMapping names the input columns holding each transaction field
type FieldMapping struct {
	InvoiceID  string
	CustomerID string
	Timestamp  string
	Quantity   string
	UnitPrice  string
}

// DefaultFieldMapping matches the Online Retail export column names
func DefaultFieldMapping() FieldMapping {
	return FieldMapping{
		InvoiceID:  "InvoiceNo",
		CustomerID: "CustomerID",
		Timestamp:  "InvoiceDate",
		Quantity:   "Quantity",
		UnitPrice:  "UnitPrice",
	}
}

// TimeLayouts are tried in order when parsing the timestamp column
var TimeLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"1/2/2006 15:04",
	"01/02/2006 15:04",
}

// ParseTime parses s with the first matching layout in TimeLayouts
func ParseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range TimeLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised time %q", s)
}

type columnIndex struct {
	invoice, customer, timestamp, quantity, price int
}

func resolveColumns(header []string, m FieldMapping) (columnIndex, error) {
	pos := make(map[string]int, len(header))
	for i, h := range header {
		pos[strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))] = i
	}
	lookup := func(name string) (int, error) {
		i, ok := pos[name]
		if !ok {
			return 0, &rfm.SchemaError{Field: name, Reason: "column not found"}
		}
		return i, nil
	}

	var idx columnIndex
	var err error
	if idx.invoice, err = lookup(m.InvoiceID); err != nil {
		return idx, err
	}
	if idx.customer, err = lookup(m.CustomerID); err != nil {
		return idx, err
	}
	if idx.timestamp, err = lookup(m.Timestamp); err != nil {
		return idx, err
	}
	if idx.quantity, err = lookup(m.Quantity); err != nil {
		return idx, err
	}
	if idx.price, err = lookup(m.UnitPrice); err != nil {
		return idx, err
	}
	return idx, nil
}

// NormalizeCustomerID trims whitespace and the ".0" suffix spreadsheets add
// to numeric ids
func NormalizeCustomerID(id string) string {
	return strings.TrimSuffix(strings.TrimSpace(id), ".0")
}

// ReadTransactions decodes every row of a CSV transaction table. A missing
// column or an unparseable value fails the whole read with a SchemaError.
func ReadTransactions(r io.Reader, m FieldMapping) ([]models.Transaction, error) {
	reader := csv.NewReader(r)
	reader.ReuseRecord = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, &rfm.SchemaError{Field: m.InvoiceID, Reason: "input has no header row"}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	idx, err := resolveColumns(header, m)
	if err != nil {
		return nil, err
	}

	var txns []models.Transaction
	row := 0
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read row %d: %w", row+1, err)
		}
		row++

		txn, err := decodeRow(record, idx, m, row)
		if err != nil {
			return nil, err
		}
		txns = append(txns, txn)
	}
	return txns, nil
}

func decodeRow(record []string, idx columnIndex, m FieldMapping, row int) (models.Transaction, error) {
	field := func(i int, name string) (string, error) {
		if i >= len(record) {
			return "", &rfm.SchemaError{Field: name, Row: row, Reason: "row too short"}
		}
		return strings.TrimSpace(record[i]), nil
	}

	var txn models.Transaction
	var err error
	if txn.InvoiceID, err = field(idx.invoice, m.InvoiceID); err != nil {
		return txn, err
	}
	customer, err := field(idx.customer, m.CustomerID)
	if err != nil {
		return txn, err
	}
	txn.CustomerID = NormalizeCustomerID(customer)

	ts, err := field(idx.timestamp, m.Timestamp)
	if err != nil {
		return txn, err
	}
	if txn.Timestamp, err = ParseTime(ts); err != nil {
		return txn, &rfm.SchemaError{Field: m.Timestamp, Row: row, Reason: err.Error()}
	}

	qty, err := field(idx.quantity, m.Quantity)
	if err != nil {
		return txn, err
	}
	if txn.Quantity, err = strconv.ParseInt(qty, 10, 64); err != nil {
		return txn, &rfm.SchemaError{Field: m.Quantity, Row: row, Reason: fmt.Sprintf("invalid integer %q", qty)}
	}

	price, err := field(idx.price, m.UnitPrice)
	if err != nil {
		return txn, err
	}
	if txn.UnitPrice, err = decimal.NewFromString(price); err != nil {
		return txn, &rfm.SchemaError{Field: m.UnitPrice, Row: row, Reason: fmt.Sprintf("invalid amount %q", price)}
	}
	return txn, nil
}

var featureHeader = []string{
	"customer_id", "recency_days", "frequency", "monetary",
	"avg_order_value", "avg_days_between_purchases", "one_time_buyer",
}

func featureRecord(f models.CustomerFeatures) []string {
	return []string{
		f.CustomerID,
		strconv.Itoa(f.RecencyDays),
		strconv.Itoa(f.Frequency),
		f.Monetary.StringFixed(2),
		f.AvgOrderValue.StringFixed(2),
		strconv.FormatFloat(f.AvgDaysBetweenPurchases, 'f', 2, 64),
		strconv.FormatBool(f.OneTimeBuyer),
	}
}

// WriteFeatures writes one CSV row per customer feature vector
func WriteFeatures(w io.Writer, features []models.CustomerFeatures) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(featureHeader); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for _, f := range features {
		if err := writer.Write(featureRecord(f)); err != nil {
			return fmt.Errorf("failed to write customer %s: %w", f.CustomerID, err)
		}
	}
	writer.Flush()
	return writer.Error()
}

// WriteSegments writes the labelled table, one row per customer
func WriteSegments(w io.Writer, segments []models.CustomerSegment) error {
	writer := csv.NewWriter(w)
	header := append(append([]string{}, featureHeader...), "segment_label", "churn_label", "cluster")
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for _, s := range segments {
		record := append(featureRecord(s.CustomerFeatures),
			s.Segment,
			strconv.FormatBool(s.Churned),
			strconv.Itoa(s.Cluster),
		)
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("failed to write customer %s: %w", s.CustomerID, err)
		}
	}
	writer.Flush()
	return writer.Error()
}
