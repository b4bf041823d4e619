package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "localsort",
	Short: "On-device file analysis, folder matching, and semantic indexing",
	Long: `localsort reads files on disk, classifies and summarizes them with a
local or remote model, matches each one against your configured smart
folders, and maintains a semantic vector index plus a relationship graph
across everything it has analyzed — all without uploading file contents
anywhere you haven't configured it to.`,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", ".localsort.yml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

func exitOnError(err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
