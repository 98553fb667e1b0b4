// Package pipeline turns a loaded table and a user selection into
// contextual selector options and a chart.
package pipeline

import "fonreal/internal/core"

const (
	// ExcludedNormalization is never offered as a unit.
	ExcludedNormalization = "Nominal dollars"
	DefaultItem           = "Total revenue"
	DefaultJurisdiction   = "Federal government"
)

// Eligible drops rows in the excluded unit.
func Eligible(t *core.Table) *core.Table {
	return t.Where(func(r core.Record) bool { return r.Normalization != ExcludedNormalization })
}

// ByUnit keeps rows in unit norm.
func ByUnit(t *core.Table, norm string) *core.Table {
	return t.Where(func(r core.Record) bool { return r.Normalization == norm })
}

// ByItems keeps rows whose item is in items.
func ByItems(t *core.Table, items []string) *core.Table {
	set := toSet(items)
	return t.Where(func(r core.Record) bool { return set[r.Item] })
}

// ByJurisdictions keeps rows whose jurisdiction is in provs.
func ByJurisdictions(t *core.Table, provs []string) *core.Table {
	set := toSet(provs)
	return t.Where(func(r core.Record) bool { return set[r.Jurisdiction] })
}

// Filter applies every stage in order. It is pure: t is never modified.
func Filter(t *core.Table, norm string, items, provs []string) *core.Table {
	return ByJurisdictions(ByItems(ByUnit(Eligible(t), norm), items), provs)
}

func toSet(vals []string) map[string]bool {
	set := make(map[string]bool, len(vals))
	for _, v := range vals {
		set[v] = true
	}
	return set
}
