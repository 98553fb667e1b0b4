// Package dataset fetches the financial table from its configured origin
// and keeps it cached for the pipeline.
package dataset

import (
	"context"

	"fonreal/internal/core"
)

// DefaultURL is the published CSV.
const DefaultURL = "https://raw.githubusercontent.com/h3mps/fonrealwebapp/master/fon-REAL-data.csv"

// Source produces a complete table from one origin.
type Source interface {
	Fetch(ctx context.Context) (*core.Table, error)
	Name() string
}

// Versioned is a Source that can report, without a full fetch, which
// revision of the data it currently holds.
type Versioned interface {
	Version(ctx context.Context) (string, error)
}
