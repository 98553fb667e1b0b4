package chart

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"
	"log/slog"
	"math"
	"strings"
	"time"

	gochart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

// RenderPNG draws spec as a PNG image. When the figure has nothing to plot
// or the renderer fails, a blank canvas of the same size is written instead
// so callers always get an image.
func RenderPNG(w io.Writer, spec Spec) error {
	width, height := spec.Layout.Width, spec.Layout.Height
	if width <= 0 {
		width = DefaultWidth
	}
	if height <= 0 {
		height = DefaultHeight
	}

	series, minY, maxY := timeSeries(spec.Data)
	if len(series) == 0 {
		return writeBlank(w, width, height)
	}

	ch := gochart.Chart{
		Title:      plainTitle(spec.Layout.Title.Text),
		Width:      width,
		Height:     height,
		Background: gochart.Style{Padding: gochart.Box{Top: 48, Left: 16, Right: 16, Bottom: 16}},
		XAxis: gochart.XAxis{
			Name:           spec.Layout.XAxis.Title.Text,
			ValueFormatter: gochart.TimeValueFormatterWithFormat("2006"),
			GridMajorStyle: gridStyle(),
		},
		YAxis: gochart.YAxis{
			Name:           spec.Layout.YAxis.Title.Text,
			Range:          yRange(minY, maxY),
			GridMajorStyle: gridStyle(),
		},
		Series: series,
	}
	ch.Elements = []gochart.Renderable{gochart.Legend(&ch)}

	var buf bytes.Buffer
	if err := ch.Render(gochart.PNG, &buf); err != nil {
		slog.Warn("Chart render failed, writing blank image", "error", err, "traces", len(series))
		return writeBlank(w, width, height)
	}
	if _, err := w.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("write chart png: %w", err)
	}
	return nil
}

// timeSeries converts traces to go-chart series. Missing values split a
// trace into segments; only the first segment is named so the legend lists
// each trace once.
func timeSeries(traces []Trace) ([]gochart.Series, float64, float64) {
	series := make([]gochart.Series, 0, len(traces))
	minY, maxY := math.Inf(1), math.Inf(-1)
	for _, tr := range traces {
		if len(tr.Times) == 0 || len(tr.Times) != len(tr.Y) {
			continue
		}

		col := colorOf(tr.ColorHex)
		st := gochart.Style{
			StrokeColor: col,
			StrokeWidth: tr.Line.Width,
		}
		if tr.Marker != nil {
			st.DotColor = col
			st.DotWidth = 3
		}

		name := tr.Name
		for _, seg := range segments(tr.Times, tr.Y) {
			for _, v := range seg.ys {
				minY = math.Min(minY, v)
				maxY = math.Max(maxY, v)
			}
			series = append(series, gochart.TimeSeries{
				Name:    name,
				Style:   st,
				XValues: seg.xs,
				YValues: seg.ys,
			})
			name = ""
		}
	}
	return series, minY, maxY
}

type segment struct {
	xs []time.Time
	ys []float64
}

// segments splits a series at NaN values. A single-point segment has no x
// extent, so it is padded by a day to give the axis a range.
func segments(times []time.Time, ys Values) []segment {
	var out []segment
	var cur segment
	flush := func() {
		if len(cur.xs) == 1 {
			cur.xs = append(cur.xs, cur.xs[0].Add(24*time.Hour))
			cur.ys = append(cur.ys, cur.ys[0])
		}
		if len(cur.xs) > 0 {
			out = append(out, cur)
		}
		cur = segment{}
	}
	for i, v := range ys {
		if math.IsNaN(v) {
			flush()
			continue
		}
		cur.xs = append(cur.xs, times[i])
		cur.ys = append(cur.ys, v)
	}
	flush()
	return out
}

// yRange always includes zero.
func yRange(minY, maxY float64) *gochart.ContinuousRange {
	lo, hi := math.Min(0, minY), math.Max(0, maxY)
	if hi == lo {
		hi = lo + 1
	}
	return &gochart.ContinuousRange{Min: lo, Max: hi * 1.05}
}

func gridStyle() gochart.Style {
	return gochart.Style{
		StrokeColor: drawing.ColorFromHex("e0e0e0"),
		StrokeWidth: 1,
	}
}

func colorOf(hex string) drawing.Color {
	hex = strings.TrimPrefix(strings.TrimSpace(hex), "#")
	if hex == "" {
		return drawing.ColorBlack
	}
	return drawing.ColorFromHex(hex)
}

func plainTitle(s string) string {
	return strings.ReplaceAll(s, " <br>", ": ")
}

func writeBlank(w io.Writer, width, height int) error {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: color.White}, image.Point{}, draw.Src)
	if err := png.Encode(w, img); err != nil {
		return fmt.Errorf("write blank png: %w", err)
	}
	return nil
}
