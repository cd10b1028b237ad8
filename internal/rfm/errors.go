package rfm

import (
	"errors"
	"fmt"
)

// SchemaError reports a missing or malformed required field
type SchemaError struct {
	Field  string
	Row    int
	Reason string
}

func (e *SchemaError) Error() string {
	if e.Row > 0 {
		return fmt.Sprintf("schema error: field %q at row %d: %s", e.Field, e.Row, e.Reason)
	}
	return fmt.Sprintf("schema error: field %q: %s", e.Field, e.Reason)
}

// DataError reports empty or degenerate input after filtering
type DataError struct {
	Reason string
}

func (e *DataError) Error() string {
	return "data error: " + e.Reason
}

// ConfigError reports an invalid rule table, cutoff or cluster setup
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string {
	return "config error: " + e.Reason
}

func configErrorf(format string, args ...interface{}) error {
	return &ConfigError{Reason: fmt.Sprintf(format, args...)}
}

// Error kinds, used as metric labels and in failure events
const (
	KindSchema   = "schema"
	KindData     = "data"
	KindConfig   = "config"
	KindInternal = "internal"
)

// Kind classifies err into one of the error kinds
func Kind(err error) string {
	var schemaErr *SchemaError
	var dataErr *DataError
	var configErr *ConfigError
	switch {
	case errors.As(err, &schemaErr):
		return KindSchema
	case errors.As(err, &dataErr):
		return KindData
	case errors.As(err, &configErr):
		return KindConfig
	default:
		return KindInternal
	}
}
