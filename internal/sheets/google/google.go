// Package google reads the dataset from a Google Sheets range.
package google

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"fonreal/internal/backoff"
	"fonreal/internal/core"
	"fonreal/internal/log"
)

// DefaultRange covers the six dataset columns of the first sheet.
const DefaultRange = "A:F"

// Config selects the spreadsheet and credentials.
type Config struct {
	SpreadsheetID   string
	Range           string
	CredentialsJSON string
	CredentialsFile string
}

// valuesReader returns a raw values matrix for a range.
type valuesReader interface {
	Values(ctx context.Context, spreadsheetID, rng string) ([][]interface{}, error)
}

// Source fetches the table from a spreadsheet.
type Source struct {
	reader        valuesReader
	spreadsheetID string
	rng           string
	logger        *log.Logger
}

// New builds a Sheets-backed source with service account credentials.
func New(ctx context.Context, cfg Config, logger *log.Logger) (*Source, error) {
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	svc, err := newSheetsService(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return newSource(&serviceReader{svc: svc}, cfg, logger), nil
}

func newSource(r valuesReader, cfg Config, logger *log.Logger) *Source {
	if logger == nil {
		logger = log.Default(log.ComponentSheets)
	}
	rng := strings.TrimSpace(cfg.Range)
	if rng == "" {
		rng = DefaultRange
	}
	return &Source{reader: r, spreadsheetID: cfg.SpreadsheetID, rng: rng, logger: logger}
}

func (s *Source) Name() string { return "sheets" }

func (s *Source) Fetch(ctx context.Context) (*core.Table, error) {
	values, err := s.reader.Values(ctx, s.spreadsheetID, s.rng)
	if err != nil {
		return nil, fmt.Errorf("read range %s: %w", s.rng, err)
	}
	table, err := parseValues(values)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("sheet %s: %w", s.rng, err))
	}
	s.logger.DebugContext(ctx, "Sheet range read", log.FieldRows, table.Len(), "range", s.rng)
	return table, nil
}

type serviceReader struct {
	svc *gsheet.Service
}

func (r *serviceReader) Values(ctx context.Context, spreadsheetID, rng string) ([][]interface{}, error) {
	resp, err := r.svc.Spreadsheets.Values.Get(spreadsheetID, rng).
		ValueRenderOption("UNFORMATTED_VALUE").
		Context(ctx).Do()
	if err != nil {
		return nil, err
	}
	return resp.Values, nil
}

// newSheetsService authenticates with inline JSON, a credentials file or
// GOOGLE_APPLICATION_CREDENTIALS, in that order.
func newSheetsService(ctx context.Context, cfg Config) (*gsheet.Service, error) {
	credentialsJSON := []byte(strings.TrimSpace(cfg.CredentialsJSON))
	file := strings.TrimSpace(cfg.CredentialsFile)
	if len(credentialsJSON) == 0 && file == "" {
		file = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}
	if len(credentialsJSON) == 0 {
		if file == "" {
			return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
		}
		var err error
		if credentialsJSON, err = os.ReadFile(file); err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
	}

	service, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsReadonlyScope),
		goption.WithHTTPClient(newHTTPClientWithPooling()))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return service, nil
}

func newHTTPClientWithPooling() *http.Client {
	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	transport := &http.Transport{
		DialContext:           dialer.DialContext,
		MaxIdleConns:          20,
		MaxIdleConnsPerHost:   5,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		ForceAttemptHTTP2:     true,
	}
	return &http.Client{Transport: transport, Timeout: 60 * time.Second}
}
