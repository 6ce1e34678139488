// Package main implements the doccached daemon and its operational CLI.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	// configPath is the optional YAML config file for the serve command.
	configPath string
	// serverURL is the daemon base URL for the client commands.
	serverURL string
	// version information (set via ldflags during build)
	version = "dev"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "doccached",
	Short: "Multi-tenant document retrieval cache",
	Long: `doccached keeps a similarity-searchable cache of tenant documents in
front of the primary record store and answers retrieval queries through
an ordered fallback chain.`,
	Version: version,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:9180", "doccached server URL")
	serveCmd.Flags().StringVar(&configPath, "config", "", "path to YAML config file")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(searchCmd)
}
