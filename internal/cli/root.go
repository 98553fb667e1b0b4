package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"fonreal/internal/config"
	"fonreal/internal/core"
	"fonreal/internal/dataset"
	"fonreal/internal/log"
	"fonreal/internal/pipeline"
)

// RootOptions holds global flags and the state PersistentPreRunE prepares.
type RootOptions struct {
	LogLevel string

	cfg    *config.Config
	logger *log.Logger
}

// NewRootCommand creates the fonctl command tree.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "fonctl",
		Short: "Inspect and import the government REAL dataset",
		Long: `fonctl runs the dashboard pipeline offline.

It reads the same environment variables as the server (DATA_BACKEND,
DATASET_URL, SQLITE_DB_PATH, STYLE_FILE ...), so a .env file in the
working directory is honoured.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.prepare(cmd.ErrOrStderr())
		},
	}

	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "", "log level (debug|info|warn|error), defaults to LOG_LEVEL")

	cmd.AddCommand(NewOptionsCommand(opts))
	cmd.AddCommand(NewRenderCommand(opts))
	cmd.AddCommand(NewImportCommand(opts))

	return cmd
}

// prepare loads configuration and a logger writing to errOut, keeping
// stdout for command output.
func (o *RootOptions) prepare(errOut io.Writer) error {
	LoadEnvFile()
	cfg := config.Load()
	if o.LogLevel != "" {
		cfg.LogLevel = o.LogLevel
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	lc := log.DefaultConfig()
	lc.Level = log.LevelFromString(cfg.LogLevel)
	lc.Component = log.ComponentCLI
	lc.Output = errOut
	o.logger = log.New(lc)
	o.cfg = cfg
	return nil
}

// loadTable fetches the configured dataset once, with retries.
func (o *RootOptions) loadTable(ctx context.Context) (*core.Table, error) {
	res, err := OpenSource(ctx, o.cfg, o.logger)
	if err != nil {
		return nil, err
	}
	defer res.Cleanup()

	loader := dataset.NewLoader(res.Source, o.cfg.DatasetTTL, LoaderOptions(o.cfg, o.logger)...)
	return loader.Load(ctx)
}

// selectionFlags binds --unit, --item and --gov. An unset repeatable flag
// asks for the default; passing it with an empty value selects nothing.
type selectionFlags struct {
	unit  string
	items []string
	govs  []string
}

func (f *selectionFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.unit, "unit", "", "normalization unit (default: first available)")
	cmd.Flags().StringArrayVar(&f.items, "item", nil, "line item, repeatable (default: Total revenue)")
	cmd.Flags().StringArrayVar(&f.govs, "gov", nil, "government, repeatable (default: Federal government)")
}

func (f *selectionFlags) selection(cmd *cobra.Command) pipeline.Selection {
	sel := pipeline.Selection{Unit: strings.TrimSpace(f.unit)}
	if cmd.Flags().Changed("item") {
		sel.Items = nonBlank(f.items)
	}
	if cmd.Flags().Changed("gov") {
		sel.Jurisdictions = nonBlank(f.govs)
	}
	return sel
}

func nonBlank(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func run(ctx context.Context, opts *RootOptions, sel pipeline.Selection) (pipeline.Result, error) {
	pipe, err := NewPipeline(opts.cfg)
	if err != nil {
		return pipeline.Result{}, err
	}
	table, err := opts.loadTable(ctx)
	if err != nil {
		return pipeline.Result{}, fmt.Errorf("load dataset: %w", err)
	}
	res := pipe.Run(table, sel)
	opts.logger.DebugContext(ctx, "Pipeline run",
		log.NewFields().
			WithSelection(res.Selection.Unit, res.Selection.Items, res.Selection.Jurisdictions).
			ToSlice()...)
	return res, nil
}
