package cmd

import (
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ziadkadry99/localsort-core/internal/fileref"
)

var forgetCmd = &cobra.Command{
	Use:   "forget <path>",
	Short: "Purge a deleted file's fileref row, cache entry, queued items, and vector store entries",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp(cfgFile)
		if err != nil {
			return err
		}
		defer a.Core.Shutdown(cmd.Context())

		path := args[0]
		kind := fileref.KindDocument
		if imageExtensions[strings.ToLower(filepath.Ext(path))] {
			kind = fileref.KindImage
		}

		if err := a.PathCoord.Delete(cmd.Context(), path, kind); err != nil {
			return err
		}
		return a.Store.Persist(cmd.Context(), a.StateDir())
	},
}

func init() {
	rootCmd.AddCommand(forgetCmd)
}
