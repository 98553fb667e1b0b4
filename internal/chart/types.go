package chart

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"time"
)

// Spec is a complete figure: traces plus layout. The JSON shape is what the
// browser chart library consumes directly.
type Spec struct {
	Data   []Trace `json:"data"`
	Layout Layout  `json:"layout"`
}

type (
	Trace struct {
		Type          string      `json:"type"`
		Name          string      `json:"name"`
		Mode          string      `json:"mode"`
		X             []string    `json:"x"`
		Y             Values      `json:"y"`
		Line          Line        `json:"line"`
		Marker        *Marker     `json:"marker,omitempty"`
		CustomData    [][3]string `json:"customdata"`
		HoverTemplate string      `json:"hovertemplate"`
		HoverLabel    HoverLabel  `json:"hoverlabel"`

		// Jurisdiction and Item identify the pair the trace was built from.
		Jurisdiction string      `json:"-"`
		Item         string      `json:"-"`
		Times        []time.Time `json:"-"`
		ColorHex     string      `json:"-"`
	}

	Line struct {
		Color string  `json:"color"`
		Width float64 `json:"width"`
	}

	Marker struct {
		Symbol string `json:"symbol"`
		Size   int    `json:"size"`
	}

	HoverLabel struct {
		Font Font `json:"font"`
	}

	Font struct {
		Color string `json:"color,omitempty"`
		Size  int    `json:"size,omitempty"`
	}
)

type (
	Layout struct {
		Title      Text       `json:"title"`
		Template   string     `json:"template"`
		Width      int        `json:"width"`
		Height     int        `json:"height"`
		XAxis      Axis       `json:"xaxis"`
		YAxis      Axis       `json:"yaxis"`
		ShowLegend bool       `json:"showlegend"`
		Legend     Legend     `json:"legend"`
		HoverLabel HoverLabel `json:"hoverlabel"`
		Images     []Image    `json:"images"`
	}

	Text struct {
		Text string `json:"text"`
	}

	Axis struct {
		Title     Text   `json:"title"`
		ShowGrid  bool   `json:"showgrid"`
		ZeroLine  bool   `json:"zeroline,omitempty"`
		RangeMode string `json:"rangemode,omitempty"`
	}

	Legend struct {
		Title Text    `json:"title"`
		X     float64 `json:"x"`
		Y     float64 `json:"y"`
	}

	Image struct {
		Source  string  `json:"source"`
		XRef    string  `json:"xref"`
		YRef    string  `json:"yref"`
		X       float64 `json:"x"`
		Y       float64 `json:"y"`
		SizeX   float64 `json:"sizex"`
		SizeY   float64 `json:"sizey"`
		XAnchor string  `json:"xanchor"`
		YAnchor string  `json:"yanchor"`
	}
)

// Values is a y series. NaN marks a missing observation and encodes as
// null, which the browser chart draws as a gap.
type Values []float64

func (v Values) MarshalJSON() ([]byte, error) {
	if v == nil {
		return []byte("null"), nil
	}
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, f := range v {
		if i > 0 {
			buf.WriteByte(',')
		}
		if math.IsNaN(f) || math.IsInf(f, 0) {
			buf.WriteString("null")
			continue
		}
		buf.WriteString(strconv.FormatFloat(f, 'g', -1, 64))
	}
	buf.WriteByte(']')
	return buf.Bytes(), nil
}

func (v *Values) UnmarshalJSON(data []byte) error {
	var raw []*float64
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == nil {
		*v = nil
		return nil
	}
	out := make(Values, len(raw))
	for i, p := range raw {
		if p == nil {
			out[i] = math.NaN()
			continue
		}
		out[i] = *p
	}
	*v = out
	return nil
}
