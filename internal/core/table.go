package core

import "sort"

// Table is an immutable, ordered set of records. Filtering never mutates
// the receiver; it returns a new Table.
type Table struct {
	rows []Record
}

// NewTable copies rows into a new Table.
func NewTable(rows []Record) *Table {
	cp := make([]Record, len(rows))
	copy(cp, rows)
	return &Table{rows: cp}
}

// Len returns the number of rows. A nil Table is empty.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.rows)
}

// At returns the i-th row.
func (t *Table) At(i int) Record {
	return t.rows[i]
}

// Rows returns a copy of the rows in table order.
func (t *Table) Rows() []Record {
	if t == nil {
		return nil
	}
	cp := make([]Record, len(t.rows))
	copy(cp, t.rows)
	return cp
}

// Where returns the rows for which keep reports true, preserving order.
func (t *Table) Where(keep func(Record) bool) *Table {
	out := &Table{}
	if t == nil {
		return out
	}
	for _, r := range t.rows {
		if keep(r) {
			out.rows = append(out.rows, r)
		}
	}
	return out
}

// Normalizations returns the distinct units in first-seen order.
func (t *Table) Normalizations() []string {
	return t.distinct(func(r Record) string { return r.Normalization })
}

// Items returns the distinct line items in first-seen order.
func (t *Table) Items() []string {
	return t.distinct(func(r Record) string { return r.Item })
}

// Jurisdictions returns the distinct governments in first-seen order. The
// abbreviation is taken from the first row naming the government.
func (t *Table) Jurisdictions() []Jurisdiction {
	if t == nil {
		return nil
	}
	seen := make(map[string]struct{})
	var out []Jurisdiction
	for _, r := range t.rows {
		if _, ok := seen[r.Jurisdiction]; ok {
			continue
		}
		seen[r.Jurisdiction] = struct{}{}
		out = append(out, Jurisdiction{Name: r.Jurisdiction, Abbreviation: r.Abbreviation})
	}
	return out
}

// SortedByDate returns the rows ordered by date ascending. Rows sharing a
// date keep their table order.
func (t *Table) SortedByDate() []Record {
	rows := t.Rows()
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Date.Before(rows[j].Date) })
	return rows
}

func (t *Table) distinct(key func(Record) string) []string {
	if t == nil {
		return nil
	}
	seen := make(map[string]struct{})
	var out []string
	for _, r := range t.rows {
		k := key(r)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}
