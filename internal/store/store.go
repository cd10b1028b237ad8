package store

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"customer-segments/internal/models"

	_ "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// Supported database drivers
const (
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
)

var identifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_.]*$`)

type Store struct {
	db                *sqlx.DB
	transactionsTable string
}

// NewStore connects to postgres or mysql. MySQL DSNs need parseTime=true.
func NewStore(driver, databaseURL, transactionsTable string) (*Store, error) {
	if driver != DriverPostgres && driver != DriverMySQL {
		return nil, fmt.Errorf("unsupported database driver: %s", driver)
	}
	if !identifier.MatchString(transactionsTable) {
		return nil, fmt.Errorf("invalid transactions table name: %q", transactionsTable)
	}

	db, err := sqlx.Connect(driver, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{db: db, transactionsTable: transactionsTable}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// GetDB returns the underlying database connection
func (s *Store) GetDB() *sqlx.DB {
	return s.db
}

// Ping checks the connection is alive
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

const createRunsTable = `
CREATE TABLE IF NOT EXISTS segmentation_runs (
	id             VARCHAR(36) PRIMARY KEY,
	strategy       VARCHAR(16) NOT NULL,
	reference_date TIMESTAMP NOT NULL,
	customers      INT NOT NULL,
	created_at     TIMESTAMP NOT NULL
)`

const createSegmentsTable = `
CREATE TABLE IF NOT EXISTS customer_segments (
	run_id           VARCHAR(36) NOT NULL,
	customer_id      VARCHAR(64) NOT NULL,
	recency_days     INT NOT NULL,
	frequency        INT NOT NULL,
	monetary         NUMERIC(18,4) NOT NULL,
	avg_order_value  NUMERIC(18,4) NOT NULL,
	avg_days_between DOUBLE PRECISION NOT NULL,
	one_time_buyer   BOOLEAN NOT NULL,
	first_purchase   TIMESTAMP NOT NULL,
	last_purchase    TIMESTAMP NOT NULL,
	segment_label    VARCHAR(64) NOT NULL,
	cluster          INT NOT NULL,
	churn_label      BOOLEAN NOT NULL,
	PRIMARY KEY (run_id, customer_id)
)`

// Migrate creates the snapshot tables when missing
func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range []string{createRunsTable, createSegmentsTable} {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to migrate: %w", err)
		}
	}
	return nil
}

// transactionsQuery selects every line item. Anonymous lines come back with
// an empty customer id so the builder can exclude them.
func transactionsQuery(table string) string {
	return `
		SELECT invoice_id, COALESCE(customer_id, '') AS customer_id, invoice_date, quantity, unit_price
		FROM ` + table + `
		ORDER BY invoice_date, invoice_id`
}

// GetTransactions loads the whole transaction table
func (s *Store) GetTransactions(ctx context.Context) ([]models.Transaction, error) {
	var txns []models.Transaction
	if err := s.db.SelectContext(ctx, &txns, transactionsQuery(s.transactionsTable)); err != nil {
		return nil, fmt.Errorf("failed to load transactions: %w", err)
	}
	return txns, nil
}
