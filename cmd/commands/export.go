package commands

// Command to export the persisted state as JSON (whole document) or CSV (wallets only)

import (
	"context"
	"fmt"

	logging "holders-api/internal/infra/log"
	"holders-api/internal/store"

	"github.com/spf13/cobra"
)

var exportFormat string

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the stored state to the backup directory",
	RunE:  runExport,
}

func init() {
	exportCmd.Flags().StringVar(&exportFormat, "format", "json", "Export format: json or csv")
}

func runExport(cmd *cobra.Command, args []string) error {
	cfg, err := bootstrap(cmd)
	if err != nil {
		return err
	}
	defer logging.Sync()

	st, err := openStore(context.Background(), cfg)
	if err != nil {
		return err
	}

	path, err := st.Export(store.ExportFormat(exportFormat))
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), path)
	return nil
}
