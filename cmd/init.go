package cmd

import (
	"github.com/spf13/cobra"

	"github.com/ziadkadry99/localsort-core/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize localsort configuration with an interactive wizard",
	Long:  `Runs an interactive wizard to configure localsort for this machine and generates a .localsort.yml file.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, err := config.RunWizard(cfgFile)
		return err
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
