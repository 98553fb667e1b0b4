package http

import (
	"net/url"
	"strings"

	"fonreal/internal/pipeline"
)

// Query parameter names. item and gov repeat.
const (
	ParamUnit = "unit"
	ParamItem = "item"
	ParamGov  = "gov"
)

// ParseSelection reads a selection from query parameters. An absent
// parameter asks for the default; a present one, even if every value is
// blank, is an explicit choice.
func ParseSelection(q url.Values) pipeline.Selection {
	return pipeline.Selection{
		Unit:          sanitizeInput(q.Get(ParamUnit)),
		Items:         parseMany(q, ParamItem),
		Jurisdictions: parseMany(q, ParamGov),
	}
}

func parseMany(q url.Values, key string) []string {
	raw, ok := q[key]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if v = sanitizeInput(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// SelectionQuery is the inverse of ParseSelection for a resolved selection.
func SelectionQuery(sel pipeline.Selection) url.Values {
	q := url.Values{}
	q.Set(ParamUnit, sel.Unit)
	q[ParamItem] = append([]string{}, sel.Items...)
	q[ParamGov] = append([]string{}, sel.Jurisdictions...)
	if len(sel.Items) == 0 {
		q[ParamItem] = []string{""}
	}
	if len(sel.Jurisdictions) == 0 {
		q[ParamGov] = []string{""}
	}
	return q
}

// LinkSelection is the selection to encode in links back to a render. A
// stale unit resolves to "", which a query reads as the first unit, so the
// requested unit is kept and the link renders the same empty chart.
func LinkSelection(requested, resolved pipeline.Selection) pipeline.Selection {
	if resolved.Unit == "" && requested.Unit != "" {
		resolved.Unit = requested.Unit
	}
	return resolved
}

// sanitizeInput removes control characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}
