package chart

import "fonreal/internal/core"

const (
	// HoverTemplate shows full jurisdiction name, item, unit and x value.
	HoverTemplate = "Prov: %{customdata[0]} <br>Item: %{customdata[1]} <br>Unit: %{customdata[2]} <br>Year: %{x}<extra></extra>"

	singleLineWidth = 2
	multiLineWidth  = 1.5
	markerSize      = 8
)

// Builder turns a filtered table into ordered traces.
type Builder struct {
	Palette Palette
}

// NewBuilder returns a Builder using palette.
func NewBuilder(palette Palette) *Builder {
	return &Builder{Palette: palette}
}

// BuildTraces emits one trace per (jurisdiction, item) pair, jurisdictions
// outer and items inner, both in selection order. Items with no row in
// filtered are skipped entirely. universe is the jurisdiction list after the
// unit filter and decides colors.
func (b *Builder) BuildTraces(filtered *core.Table, universe []core.Jurisdiction, provs, items []string) []Trace {
	if len(provs) == 0 || len(items) == 0 {
		return []Trace{}
	}

	styles := b.Palette.Assign(universe)
	abbrev := make(map[string]string, len(universe))
	for _, j := range universe {
		abbrev[j.Name] = j.Abbreviation
	}

	type pair struct{ prov, item string }
	present := make(map[string]bool)
	byPair := make(map[pair][]core.Record)
	for _, r := range filtered.SortedByDate() {
		present[r.Item] = true
		k := pair{r.Jurisdiction, r.Item}
		byPair[k] = append(byPair[k], r)
	}

	multi := len(items) > 1
	traces := make([]Trace, 0, len(provs)*len(items))

	for _, prov := range provs {
		style := styles[prov]
		abb := abbrev[prov]
		if abb == "" {
			abb = prov
		}
		for rank, item := range items {
			if !present[item] {
				continue
			}
			rows := byPair[pair{prov, item}]

			tr := Trace{
				Type:          "scatter",
				Name:          abb + ", " + item,
				Mode:          "lines",
				X:             make([]string, 0, len(rows)),
				Y:             make(Values, 0, len(rows)),
				CustomData:    make([][3]string, 0, len(rows)),
				Line:          Line{Color: style.Color, Width: singleLineWidth},
				HoverTemplate: HoverTemplate,
				HoverLabel:    HoverLabel{Font: Font{Color: style.FontColor}},
				Jurisdiction:  prov,
				Item:          item,
				ColorHex:      style.ColorHex,
			}
			if multi {
				tr.Mode = "lines+markers"
				tr.Line.Width = multiLineWidth
				tr.Marker = &Marker{Symbol: b.Palette.Marker(rank), Size: markerSize}
			}
			for _, r := range rows {
				tr.X = append(tr.X, r.DateLabel)
				tr.Y = append(tr.Y, r.Value)
				tr.Times = append(tr.Times, r.Date)
				tr.CustomData = append(tr.CustomData, [3]string{r.Jurisdiction, r.Item, r.Normalization})
			}
			traces = append(traces, tr)
		}
	}
	return traces
}
