package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var resetCircuitCmd = &cobra.Command{
	Use:   "reset-circuit <model-name>",
	Short: "Manually close the circuit breaker for a model",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp(cfgFile)
		if err != nil {
			return err
		}
		defer a.Core.Shutdown(cmd.Context())

		if err := a.Core.Breakers.Reset(args[0]); err != nil {
			return fmt.Errorf("resetting circuit for %q: %w", args[0], err)
		}
		fmt.Printf("circuit breaker for %q reset to closed\n", args[0])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(resetCircuitCmd)
}
