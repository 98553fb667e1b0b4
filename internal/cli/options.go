package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"fonreal/internal/pipeline"
)

// NewOptionsCommand creates the options command.
func NewOptionsCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		flags  selectionFlags
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "options",
		Short: "Print the choices each selector offers",
		Long: `Print the units, items and governments a user can pick, given the
selections made so far. Selected values are marked with '*'.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := run(cmd.Context(), rootOpts, flags.selection(cmd))
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(struct {
					Options   pipeline.Options   `json:"options"`
					Selection pipeline.Selection `json:"selection"`
				}{res.Options, res.Selection})
			}
			return printOptions(cmd.OutOrStdout(), res)
		},
	}
	flags.bind(cmd)
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of text")
	return cmd
}

func printOptions(w io.Writer, res pipeline.Result) error {
	sections := []struct {
		title    string
		values   []string
		selected []string
	}{
		{"Units", res.Options.Units, []string{res.Selection.Unit}},
		{"Items", res.Options.Items, res.Selection.Items},
		{"Governments", res.Options.Jurisdictions, res.Selection.Jurisdictions},
	}
	for i, s := range sections {
		if i > 0 {
			if _, err := fmt.Fprintln(w); err != nil {
				return err
			}
		}
		if _, err := fmt.Fprintf(w, "%s:\n", s.title); err != nil {
			return err
		}
		chosen := make(map[string]bool, len(s.selected))
		for _, v := range s.selected {
			chosen[v] = true
		}
		for _, v := range s.values {
			mark := " "
			if chosen[v] {
				mark = "*"
			}
			if _, err := fmt.Fprintf(w, "%s %s\n", mark, v); err != nil {
				return err
			}
		}
	}
	return nil
}
