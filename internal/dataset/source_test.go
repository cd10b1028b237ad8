package dataset

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "retail.csv")
	require.NoError(t, os.WriteFile(path, []byte(retailCSV), 0o644))

	src := NewFileSource(path, DefaultFieldMapping())
	txns, err := src.GetTransactions(context.Background())
	require.NoError(t, err)
	assert.Len(t, txns, 5)
}

func TestFileSourceMissingFile(t *testing.T) {
	src := NewFileSource(filepath.Join(t.TempDir(), "missing.csv"), DefaultFieldMapping())
	_, err := src.GetTransactions(context.Background())
	assert.Error(t, err)
}

func TestFileSourceCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewFileSource("unused.csv", DefaultFieldMapping()).GetTransactions(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
