package cmd

import (
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ziadkadry99/localsort-core/internal/fileref"
)

var moveCmd = &cobra.Command{
	Use:   "move <old-path> <new-path>",
	Short: "Propagate an already-performed file move across the fileref registry, caches, queues, and vector store",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp(cfgFile)
		if err != nil {
			return err
		}
		defer a.Core.Shutdown(cmd.Context())

		oldPath, newPath := args[0], args[1]
		kind := fileref.KindDocument
		if imageExtensions[strings.ToLower(filepath.Ext(newPath))] {
			kind = fileref.KindImage
		}

		if err := a.PathCoord.Move(cmd.Context(), oldPath, newPath, kind); err != nil {
			return err
		}
		return a.Store.Persist(cmd.Context(), a.StateDir())
	},
}

func init() {
	rootCmd.AddCommand(moveCmd)
}
