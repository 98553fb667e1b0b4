package dataset

import (
	"encoding/csv"
	"fmt"
	"io"

	"fonreal/internal/core"
)

// ParseCSV reads a header row followed by records. Column order is free.
func ParseCSV(r io.Reader) (*core.Table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("read csv header: %w", core.ErrEmptyDataset)
	}
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}

	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv rows: %w", err)
	}
	return core.BuildTable(header, rows)
}
