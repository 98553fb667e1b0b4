package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"fonreal/internal/log"
	"fonreal/internal/storage"
	"fonreal/internal/worker"
)

// NewImportCommand creates the import command.
func NewImportCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "import",
		Short: "Copy the upstream dataset into the SQLite snapshot",
		Long: `Fetch the dataset from the upstream source (DATASET_URL unless
DATA_BACKEND names another source) and replace the snapshot stored at
SQLITE_DB_PATH.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, logger := rootOpts.cfg, rootOpts.logger

			upstream, err := OpenUpstream(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer upstream.Cleanup()

			repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath, logger.WithComponent(log.ComponentStorage))
			if err != nil {
				return err
			}
			defer repo.Close()

			importer := worker.NewImporter(upstream.Source, repo, RetryPolicy(cfg), logger.WithComponent(log.ComponentWorker))
			rows, err := importer.Import(ctx)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "imported %d rows from %s into %s\n", rows, upstream.Source.Name(), cfg.SQLiteDBPath)
			return err
		},
	}
}
