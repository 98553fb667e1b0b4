package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"fonreal/internal/chart"
)

// ValidRenderFormats defines the allowed render outputs.
var ValidRenderFormats = []string{"json", "png"}

// NewRenderCommand creates the render command.
func NewRenderCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		flags  selectionFlags
		format string
		out    string
	)
	cmd := &cobra.Command{
		Use:   "render",
		Short: "Build the chart for a selection",
		Long: `Run the full pipeline for a selection and write the chart, either as
the JSON figure the dashboard draws or as a PNG image.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if format != "json" && format != "png" {
				return fmt.Errorf("invalid format %q: must be one of %v", format, ValidRenderFormats)
			}
			res, err := run(cmd.Context(), rootOpts, flags.selection(cmd))
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if out != "" && out != "-" {
				f, err := os.Create(out)
				if err != nil {
					return fmt.Errorf("create output: %w", err)
				}
				defer f.Close()
				w = f
			}
			if err := writeChart(w, format, res.Chart); err != nil {
				return err
			}
			rootOpts.logger.InfoContext(cmd.Context(), "Chart rendered", "format", format, "traces", len(res.Chart.Data), "out", out)
			return nil
		},
	}
	flags.bind(cmd)
	cmd.Flags().StringVar(&format, "format", "json", "output format (json|png)")
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (default stdout)")
	return cmd
}

func writeChart(w io.Writer, format string, spec chart.Spec) error {
	if format == "png" {
		return chart.RenderPNG(w, spec)
	}
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(spec)
}
