package commands

// Root command for Cobra CLI
// Registers the shared config flags and all subcommands (serve, scrape, export, backup)

import (
	"holders-api/internal/infra/config"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "holders-api",
	Short: "Token holders API - Solana holder snapshots, wallet rotation and winner ledger",
	Long: `holders-api keeps a persisted snapshot of a Solana token's holders, rotates a
randomly selected "current wallet" over it, records race winners and serves all of it over HTTP.`,
	Version:       "1.0.0",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	config.RegisterFlags(rootCmd.PersistentFlags())

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(scrapeCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(backupCmd)
}
