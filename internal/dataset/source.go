package dataset

import (
	"context"
	"fmt"
	"os"

	"customer-segments/internal/models"
)

// FileSource loads transactions from a CSV file on every call
type FileSource struct {
	Path    string
	Mapping FieldMapping
}

func NewFileSource(path string, mapping FieldMapping) *FileSource {
	return &FileSource{Path: path, Mapping: mapping}
}

func (s *FileSource) GetTransactions(ctx context.Context) ([]models.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	file, err := os.Open(s.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", s.Path, err)
	}
	defer file.Close()

	return ReadTransactions(file, s.Mapping)
}
