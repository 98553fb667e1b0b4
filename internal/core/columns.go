package core

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// Canonical column names of the source CSV.
const (
	ColNormalization = "normalization"
	ColItem          = "fonitem"
	ColJurisdiction  = "provname"
	ColAbbreviation  = "provabb"
	ColDate          = "date"
	ColValue         = "val"
)

var columnAliases = map[string]string{
	"normalization": ColNormalization,
	"unit":          ColNormalization,
	"fonitem":       ColItem,
	"item":          ColItem,
	"provname":      ColJurisdiction,
	"jurisdiction":  ColJurisdiction,
	"provabb":       ColAbbreviation,
	"abbreviation":  ColAbbreviation,
	"date":          ColDate,
	"year":          ColDate,
	"val":           ColValue,
	"value":         ColValue,
}

var requiredColumns = []string{ColNormalization, ColItem, ColJurisdiction, ColAbbreviation, ColDate, ColValue}

// ColumnMap locates the six dataset columns inside a header row.
type ColumnMap map[string]int

// NewColumnMap matches header names case-insensitively. Unknown columns are
// ignored; a missing required column is an error.
func NewColumnMap(header []string) (ColumnMap, error) {
	m := ColumnMap{}
	for i, h := range header {
		key := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		if canonical, ok := columnAliases[key]; ok {
			if _, dup := m[canonical]; !dup {
				m[canonical] = i
			}
		}
	}
	var missing []string
	for _, c := range requiredColumns {
		if _, ok := m[c]; !ok {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s; got header=%v", ErrMissingColumn, strings.Join(missing, ","), header)
	}
	return m, nil
}

// Record converts one data row. A blank value is kept as NaN so the chart
// shows a gap at that date.
func (m ColumnMap) Record(row []string) (Record, error) {
	get := func(col string) string {
		i := m[col]
		if i < len(row) {
			return strings.TrimSpace(row[i])
		}
		return ""
	}
	val, ok, err := ParseValue(get(ColValue))
	if err != nil {
		return Record{}, err
	}
	if !ok {
		val = math.NaN()
	}
	label := get(ColDate)
	date, err := ParseDate(label)
	if err != nil {
		return Record{}, err
	}
	rec := Record{
		Normalization: get(ColNormalization),
		Item:          get(ColItem),
		Jurisdiction:  get(ColJurisdiction),
		Abbreviation:  get(ColAbbreviation),
		Date:          date,
		DateLabel:     normalizeLabel(label, date),
		Value:         val,
	}
	if err := rec.Validate(); err != nil {
		return Record{}, err
	}
	return rec, nil
}

// BuildTable converts a header plus data rows into a Table. Row numbers in
// errors are 1-based and count the header.
func BuildTable(header []string, rows [][]string) (*Table, error) {
	cols, err := NewColumnMap(header)
	if err != nil {
		return nil, err
	}
	recs := make([]Record, 0, len(rows))
	for i, row := range rows {
		if isBlank(row) {
			continue
		}
		rec, err := cols.Record(row)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		recs = append(recs, rec)
	}
	if len(recs) == 0 {
		return nil, ErrEmptyDataset
	}
	return &Table{rows: recs}, nil
}

// normalizeLabel keeps year labels tidy when the source wrote them as floats.
func normalizeLabel(raw string, t time.Time) string {
	if strings.Contains(raw, ".") {
		return FormatDateLabel(t)
	}
	return raw
}

func isBlank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
