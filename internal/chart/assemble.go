package chart

const (
	Banner         = "Government REAL Data"
	DefaultLogoURL = "https://raw.githubusercontent.com/h3mps/t1webapp/master/fon-icon.png"
	DefaultWidth   = 800
	DefaultHeight  = 600

	xAxisTitle    = "Year"
	selectedItems = "Selected Items"
	selectedGovs  = "Selected Governments"
)

// Options control the fixed cosmetics of an assembled figure.
type Options struct {
	Banner  string
	LogoURL string
	Width   int
	Height  int
}

// DefaultOptions returns the stock banner, logo and canvas size.
func DefaultOptions() Options {
	return Options{
		Banner:  Banner,
		LogoURL: DefaultLogoURL,
		Width:   DefaultWidth,
		Height:  DefaultHeight,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.Banner == "" {
		o.Banner = d.Banner
	}
	if o.LogoURL == "" {
		o.LogoURL = d.LogoURL
	}
	if o.Width <= 0 {
		o.Width = d.Width
	}
	if o.Height <= 0 {
		o.Height = d.Height
	}
	return o
}

// TitleBody picks the title line from the selection sizes. A single item or
// government is named. Anything else, an empty selection included, reads
// "Selected ...".
func TitleBody(items, provs []string) string {
	itemPart := selectedItems
	if len(items) == 1 {
		itemPart = items[0]
	}
	govPart := selectedGovs
	if len(provs) == 1 {
		govPart = provs[0]
	}
	return itemPart + " for " + govPart
}

// Assemble builds the complete figure. An empty trace list yields a valid
// figure with no data.
func Assemble(traces []Trace, norm string, items, provs []string, opts Options) Spec {
	opts = opts.withDefaults()
	if traces == nil {
		traces = []Trace{}
	}
	return Spec{
		Data: traces,
		Layout: Layout{
			Title:    Text{Text: opts.Banner + " <br>" + TitleBody(items, provs)},
			Template: "simple_white",
			Width:    opts.Width,
			Height:   opts.Height,
			XAxis: Axis{
				Title:    Text{Text: xAxisTitle},
				ShowGrid: true,
			},
			YAxis: Axis{
				Title:     Text{Text: norm},
				ShowGrid:  true,
				ZeroLine:  true,
				RangeMode: "tozero",
			},
			ShowLegend: true,
			Legend:     Legend{X: 0, Y: -0.5},
			HoverLabel: HoverLabel{Font: Font{Size: 14}},
			Images: []Image{{
				Source:  opts.LogoURL,
				XRef:    "paper",
				YRef:    "paper",
				X:       1,
				Y:       -0.5,
				SizeX:   0.25,
				SizeY:   0.25,
				XAnchor: "right",
				YAnchor: "bottom",
			}},
		},
	}
}
