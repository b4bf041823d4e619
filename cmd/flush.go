package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var flushCmd = &cobra.Command{
	Use:   "flush",
	Short: "Force-flush the analysis and organize embedding queues",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp(cfgFile)
		if err != nil {
			return err
		}
		ctx := context.Background()
		defer a.Core.Shutdown(ctx)

		if err := a.Queues.ForceFlushAll(ctx); err != nil {
			return err
		}
		if err := a.Store.Persist(ctx, a.StateDir()); err != nil {
			return fmt.Errorf("persisting vector store: %w", err)
		}
		fmt.Println("flushed analysis and organize queues")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(flushCmd)
}
