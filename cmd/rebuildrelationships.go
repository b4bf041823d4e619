package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ziadkadry99/localsort-core/internal/relationship"
	"github.com/ziadkadry99/localsort-core/internal/vectorstore"
)

var rebuildRelationshipsCmd = &cobra.Command{
	Use:   "rebuild-relationships",
	Short: "Rebuild the relationship index from currently-analyzed files",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp(cfgFile)
		if err != nil {
			return err
		}
		defer a.Core.Shutdown(cmd.Context())

		records, sourceUpdatedAt, err := collectSourceRecords(cmd.Context(), a.Store)
		if err != nil {
			return fmt.Errorf("collecting analyzed files: %w", err)
		}

		if err := a.Relationships.Rebuild(records, sourceUpdatedAt); err != nil {
			return fmt.Errorf("rebuilding relationship index: %w", err)
		}

		fmt.Printf("relationship index: %d edge(s)\n", len(a.Relationships.Edges()))
		return nil
	},
}

// collectSourceRecords reads every analyzed file's tags/entities back
// out of the vector store's files collection. sourceUpdatedAt is the
// most recent file UpdatedAt seen, so a rebuild is a no-op when nothing
// has changed since the last one.
func collectSourceRecords(ctx context.Context, store *vectorstore.ChromemStore) ([]relationship.SourceRecord, time.Time, error) {
	docs, err := store.ListFiles(ctx)
	if err != nil {
		return nil, time.Time{}, err
	}

	var (
		records []relationship.SourceRecord
		latest  time.Time
	)
	for _, doc := range docs {
		concepts := make([]string, 0, len(doc.Meta.Keywords)+len(doc.Meta.KeyEntities))
		concepts = append(concepts, doc.Meta.Keywords...)
		concepts = append(concepts, doc.Meta.KeyEntities...)
		if doc.Meta.Entity != "" {
			concepts = append(concepts, doc.Meta.Entity)
		}
		records = append(records, relationship.SourceRecord{
			FileID:   doc.ID,
			Concepts: concepts,
		})
		if doc.Meta.UpdatedAt.After(latest) {
			latest = doc.Meta.UpdatedAt
		}
	}
	return records, latest, nil
}

func init() {
	rootCmd.AddCommand(rebuildRelationshipsCmd)
}
