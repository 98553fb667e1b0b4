package backend

import (
	"context"
	"fmt"

	"fonreal/internal/dataset"
	"fonreal/internal/log"
	gsheet "fonreal/internal/sheets/google"
	"fonreal/internal/storage"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *log.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *log.Logger) Factory {
	if logger == nil {
		logger = log.Default(log.ComponentBackend)
	}
	return &DefaultFactory{logger: logger}
}

func noCleanup() error { return nil }

// CreateSource implements Factory.CreateSource
func (f *DefaultFactory) CreateSource(ctx context.Context, config Config) (*Result, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	var (
		res *Result
		err error
	)
	switch config.Type {
	case HTTPBackend:
		res = &Result{
			Source:  dataset.NewHTTPSource(config.DatasetURL, nil, config.FetchTimeout),
			Cleanup: noCleanup,
		}
	case FileBackend:
		src := dataset.NewFileSource(config.DatasetFile, f.logger.WithComponent(log.ComponentDataset))
		res = &Result{Source: src, Cleanup: noCleanup, Watch: src.Watch}
	case SQLiteBackend:
		res, err = f.createSQLiteSource(config)
	case SheetsBackend:
		res, err = f.createSheetsSource(ctx, config)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
	if err != nil {
		return nil, err
	}

	f.logger.InfoContext(ctx, "Dataset source ready", log.FieldSource, res.Source.Name())
	return res, nil
}

func (f *DefaultFactory) createSQLiteSource(config Config) (*Result, error) {
	repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath, f.logger.WithComponent(log.ComponentStorage))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
	}
	return &Result{Source: repo, Cleanup: repo.Close}, nil
}

func (f *DefaultFactory) createSheetsSource(ctx context.Context, config Config) (*Result, error) {
	src, err := gsheet.New(ctx, gsheet.Config{
		SpreadsheetID:   config.GoogleSpreadsheetID,
		Range:           config.GoogleSheetRange,
		CredentialsJSON: config.GoogleServiceAccountJSON,
		CredentialsFile: config.GoogleServiceAccountFile,
	}, f.logger.WithComponent(log.ComponentSheets))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Google Sheets source: %w", err)
	}
	return &Result{Source: src, Cleanup: noCleanup}, nil
}
