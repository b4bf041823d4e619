package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/ziadkadry99/localsort-core/internal/analyzer"
	"github.com/ziadkadry99/localsort-core/internal/progress"
	"github.com/ziadkadry99/localsort-core/internal/walker"
)

// imageExtensions mirrors the image subset of the analyzer's
// supportedExtensions, so the CLI can decide which FileRef.Kind to
// hand the analyzer without importing its unexported table.
var imageExtensions = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true,
	".bmp": true, ".webp": true, ".tiff": true, ".heic": true,
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze <path>",
	Short: "Analyze one file or every file under a directory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp(cfgFile)
		if err != nil {
			return err
		}
		defer a.Core.Shutdown(context.Background())

		root := args[0]
		info, err := os.Stat(root)
		if err != nil {
			return fmt.Errorf("stat %s: %w", root, err)
		}

		var paths []string
		// hints carries the walker-derived language/test-fixture metadata
		// the analyzer prompt can use as context, and seenHash lets a
		// batch walk skip re-analyzing files whose content is
		// byte-identical to one already analyzed.
		hints := map[string]walker.FileInfo{}
		seenHash := map[string]string{}
		duplicates := map[string]string{}
		if info.IsDir() {
			files, err := walker.Walk(walker.WalkerConfig{RootDir: root})
			if err != nil {
				return fmt.Errorf("walking %s: %w", root, err)
			}
			for _, f := range files {
				hints[f.Path] = f
				if f.ContentHash != "" {
					if original, ok := seenHash[f.ContentHash]; ok {
						duplicates[f.Path] = original
						continue
					}
					seenHash[f.ContentHash] = f.Path
				}
				paths = append(paths, f.Path)
			}
		} else {
			abs, err := filepath.Abs(root)
			if err != nil {
				return err
			}
			paths = []string{abs}
		}

		ctx := context.Background()
		reporter := progress.NewReporter()
		reporter.Start(len(paths))
		results := make(map[string]*analyzer.AnalysisResult, len(paths))
		var totalBytes uint64
		for i, path := range paths {
			reporter.Update(i+1, filepath.Base(path))
			st, statErr := os.Stat(path)
			if statErr == nil {
				totalBytes += uint64(st.Size())
			}
			result, err := analyzeOne(ctx, a, path, hints[path])
			if err != nil {
				fmt.Fprintf(os.Stderr, "%s: %v\n", path, err)
				continue
			}
			results[path] = result
			fmt.Printf("%-60s %-20s confidence=%d\n", path, result.Category, result.Confidence)
		}
		for path, original := range duplicates {
			if result, ok := results[original]; ok {
				fmt.Printf("%-60s %-20s confidence=%d (duplicate of %s)\n", path, result.Category, result.Confidence, original)
			}
		}
		reporter.Finish()
		fmt.Printf("analyzed %d file(s), %d duplicate(s) skipped, %s total\n", len(paths), len(duplicates), humanize.Bytes(totalBytes))

		if err := a.Queues.ForceFlushAll(ctx); err != nil {
			return err
		}
		return a.Store.Persist(ctx, a.StateDir())
	},
}

// analyzeOne analyzes path. hint carries walker-derived metadata
// (detected source language, test-fixture status) for files discovered
// during a directory walk; it is the zero value for single-file runs.
func analyzeOne(ctx context.Context, a *app, path string, hint walker.FileInfo) (*analyzer.AnalysisResult, error) {
	st, err := os.Stat(path)
	if err != nil {
		return nil, err
	}

	ext := strings.ToLower(filepath.Ext(path))
	kind := analyzer.KindDocument
	if imageExtensions[ext] {
		kind = analyzer.KindImage
	}

	language := hint.Language
	if language == "unknown" {
		language = ""
	}

	ref := analyzer.FileRef{
		Path:       path,
		Kind:       kind,
		Extension:  ext,
		Size:       st.Size(),
		ModTime:    st.ModTime(),
		Language:   language,
		IsTestFile: hint.IsTest,
	}

	return a.Analyzer.Analyze(ctx, ref, analyzer.Opts{})
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
}
