package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ziadkadry99/localsort-core/internal/queue"
)

var deadLetterCmd = &cobra.Command{
	Use:   "dead-letter",
	Short: "Inspect and recover permanently-failed embedding queue items",
}

var deadLetterListCmd = &cobra.Command{
	Use:   "list",
	Short: "List dead-lettered items across both queues",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp(cfgFile)
		if err != nil {
			return err
		}
		defer a.Core.Shutdown(cmd.Context())

		for _, stage := range []queue.Stage{queue.StageAnalysis, queue.StageOrganize} {
			q, err := a.Queues.Queue(stage)
			if err != nil {
				return err
			}
			entries := q.DeadLetterEntries()
			fmt.Printf("%s: %d dead-lettered item(s)\n", stage, len(entries))
			for _, e := range entries {
				fmt.Printf("  %-40s retries=%d failed_at=%s error=%s\n", e.Item.ID, e.RetryCount, e.FailedAt.Format("2006-01-02T15:04:05"), e.Error)
			}
		}
		return nil
	},
}

var deadLetterRetryCmd = &cobra.Command{
	Use:   "retry [id]",
	Short: "Re-queue dead-lettered items; omit id to retry all",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp(cfgFile)
		if err != nil {
			return err
		}
		defer a.Core.Shutdown(cmd.Context())

		for _, stage := range []queue.Stage{queue.StageAnalysis, queue.StageOrganize} {
			q, err := a.Queues.Queue(stage)
			if err != nil {
				return err
			}
			if len(args) == 1 {
				if err := q.RetryDeadLetterItem(args[0]); err != nil {
					continue
				}
				fmt.Printf("%s: retried %s\n", stage, args[0])
				return nil
			}
			q.RetryAllDeadLetterItems()
		}
		if len(args) == 0 {
			fmt.Println("re-queued all dead-lettered items")
		}
		return nil
	},
}

var deadLetterClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Discard every dead-lettered item",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp(cfgFile)
		if err != nil {
			return err
		}
		defer a.Core.Shutdown(cmd.Context())

		for _, stage := range []queue.Stage{queue.StageAnalysis, queue.StageOrganize} {
			q, err := a.Queues.Queue(stage)
			if err != nil {
				return err
			}
			q.ClearDeadLetter()
		}
		fmt.Println("cleared dead-letter lists")
		return nil
	},
}

func init() {
	deadLetterCmd.AddCommand(deadLetterListCmd, deadLetterRetryCmd, deadLetterClearCmd)
	rootCmd.AddCommand(deadLetterCmd)
}
