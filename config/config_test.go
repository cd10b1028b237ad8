package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, 90, cfg.Analytics.ChurnCutoffDays)
	assert.Equal(t, 4, cfg.Analytics.ClusterCount)
	assert.Equal(t, int64(42), cfg.Analytics.ClusterSeed)
	assert.Equal(t, "InvoiceNo", cfg.Columns.InvoiceID)
	assert.Equal(t, 24*time.Hour, cfg.Redis.TTL)
	assert.Empty(t, cfg.Analytics.Invalid)
	assert.Empty(t, cfg.Redis.Invalid)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("CHURN_CUTOFF_DAYS", "120")
	t.Setenv("SEGMENT_STRATEGY", "rules")
	t.Setenv("SEGMENT_LABELS", "Gold, Silver ,Bronze")
	t.Setenv("DATABASE_DRIVER", "mysql")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")

	cfg := Load()

	assert.Equal(t, 120, cfg.Analytics.ChurnCutoffDays)
	assert.Equal(t, "rules", cfg.Analytics.Strategy)
	assert.Equal(t, []string{"Gold", "Silver", "Bronze"}, cfg.Analytics.SegmentLabels)
	assert.Equal(t, "mysql", cfg.Database.Driver)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
}

func TestParseReferenceDate(t *testing.T) {
	ref, err := ParseReferenceDate("")
	require.NoError(t, err)
	assert.Nil(t, ref)

	ref, err = ParseReferenceDate("2011-12-10")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2011, 12, 10, 0, 0, 0, 0, time.UTC), *ref)

	ref, err = ParseReferenceDate("2011-12-10T12:00:00Z")
	require.NoError(t, err)
	assert.Equal(t, 12, ref.Hour())

	_, err = ParseReferenceDate("10/12/2011")
	assert.Error(t, err)
}

func TestLoadRecordsInvalidNumbers(t *testing.T) {
	t.Setenv("CHURN_CUTOFF_DAYS", "ninety")
	t.Setenv("CLUSTER_SEED", "x42")
	t.Setenv("REDIS_TTL_HOURS", "1d")

	cfg := Load()

	assert.Equal(t, 90, cfg.Analytics.ChurnCutoffDays)
	assert.Equal(t, []string{
		`CHURN_CUTOFF_DAYS: invalid integer "ninety"`,
		`CLUSTER_SEED: invalid integer "x42"`,
	}, cfg.Analytics.Invalid)
	assert.Equal(t, []string{`REDIS_TTL_HOURS: invalid integer "1d"`}, cfg.Redis.Invalid)
}
