// Package backend picks the dataset source named by configuration.
package backend

import (
	"context"
	"time"

	"fonreal/internal/dataset"
)

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// WatchFunc calls onChange whenever the underlying data changes.
type WatchFunc func(ctx context.Context, onChange func()) error

// Result is a ready source plus its lifecycle hooks. Cleanup is never nil;
// Watch is nil when the source cannot signal changes.
type Result struct {
	Source  dataset.Source
	Cleanup CleanupFunc
	Watch   WatchFunc
}

// Factory creates sources based on configuration
type Factory interface {
	CreateSource(ctx context.Context, config Config) (*Result, error)
}

// Config holds configuration for source creation
type Config struct {
	Type BackendType

	DatasetURL   string
	DatasetFile  string
	FetchTimeout time.Duration

	SQLiteDBPath string

	GoogleSpreadsheetID      string
	GoogleSheetRange         string
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string
}

// BackendType represents the type of backend
type BackendType string

const (
	HTTPBackend   BackendType = "http"
	FileBackend   BackendType = "file"
	SheetsBackend BackendType = "sheets"
	SQLiteBackend BackendType = "sqlite"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case HTTPBackend, FileBackend, SheetsBackend, SQLiteBackend:
		return true
	default:
		return false
	}
}
