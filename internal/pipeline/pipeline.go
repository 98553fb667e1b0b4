package pipeline

import (
	"fonreal/internal/chart"
	"fonreal/internal/core"
)

// Selection is what the user picked. A nil slice asks for the default; a
// non-nil empty slice is an explicit empty choice. An empty Unit asks for
// the first available unit.
type Selection struct {
	Unit          string   `json:"unit"`
	Items         []string `json:"items"`
	Jurisdictions []string `json:"jurisdictions"`
}

// Options are the choices offered to each selector, each derived only from
// the stages before it.
type Options struct {
	Units         []string `json:"units"`
	Items         []string `json:"items"`
	Jurisdictions []string `json:"jurisdictions"`
}

// Result is everything one render needs.
type Result struct {
	Options   Options     `json:"options"`
	Selection Selection   `json:"selection"`
	Filtered  *core.Table `json:"-"`
	Chart     chart.Spec  `json:"chart"`
}

// Pipeline holds the fixed styling inputs. Run has no other state.
type Pipeline struct {
	builder *chart.Builder
	opts    chart.Options
}

// New returns a Pipeline drawing with palette and opts.
func New(palette chart.Palette, opts chart.Options) *Pipeline {
	return &Pipeline{builder: chart.NewBuilder(palette), opts: opts}
}

// Run resolves sel against t and builds the chart. Stale values in sel are
// dropped; the resolved selection is returned in the Result.
func (p *Pipeline) Run(t *core.Table, sel Selection) Result {
	eligible := Eligible(t)
	units := nonNil(eligible.Normalizations())
	unit := resolveUnit(sel.Unit, units)

	byUnit := ByUnit(eligible, unit)
	universe := byUnit.Jurisdictions()
	itemOpts := nonNil(byUnit.Items())
	items := resolveMany(sel.Items, itemOpts, DefaultItem)

	byItems := ByItems(byUnit, items)
	govOpts := nonNil(names(byItems.Jurisdictions()))
	govs := resolveMany(sel.Jurisdictions, govOpts, DefaultJurisdiction)

	filtered := ByJurisdictions(byItems, govs)
	traces := p.builder.BuildTraces(filtered, universe, govs, items)

	return Result{
		Options:   Options{Units: units, Items: itemOpts, Jurisdictions: govOpts},
		Selection: Selection{Unit: unit, Items: items, Jurisdictions: govs},
		Filtered:  filtered,
		Chart:     chart.Assemble(traces, unit, items, govs, p.opts),
	}
}

func resolveUnit(want string, options []string) string {
	if want == "" {
		if len(options) > 0 {
			return options[0]
		}
		return ""
	}
	for _, o := range options {
		if o == want {
			return want
		}
	}
	return ""
}

// resolveMany keeps the requested values that are still offered, in request
// order without duplicates. nil requests the default, or the first option
// when the default is not offered.
func resolveMany(want, options []string, def string) []string {
	offered := toSet(options)
	if want == nil {
		if offered[def] {
			return []string{def}
		}
		if len(options) > 0 {
			return []string{options[0]}
		}
		return []string{}
	}
	out := make([]string, 0, len(want))
	seen := make(map[string]bool, len(want))
	for _, w := range want {
		if offered[w] && !seen[w] {
			seen[w] = true
			out = append(out, w)
		}
	}
	return out
}

func names(js []core.Jurisdiction) []string {
	out := make([]string, len(js))
	for i, j := range js {
		out[i] = j.Name
	}
	return out
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
