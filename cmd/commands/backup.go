package commands

// Command to take one backup of the stored state (and upload it when S3 is enabled)

import (
	"context"
	"fmt"
	"time"

	logging "holders-api/internal/infra/log"

	"github.com/spf13/cobra"
)

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Write a timestamped backup of the stored state",
	RunE:  runBackup,
}

func runBackup(cmd *cobra.Command, args []string) error {
	cfg, err := bootstrap(cmd)
	if err != nil {
		return err
	}
	defer logging.Sync()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	st, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}

	path, err := st.Backup(ctx)
	if err != nil {
		return err
	}
	if path == "" {
		return fmt.Errorf("backup directory is not configured")
	}
	fmt.Fprintln(cmd.OutOrStdout(), path)
	return nil
}
