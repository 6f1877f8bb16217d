package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/filewise/filewise/internal/models"
	"github.com/filewise/filewise/internal/output"
	"github.com/filewise/filewise/internal/pipeline"
	"github.com/filewise/filewise/internal/store"
)

var (
	processParallel  int
	processRecursive bool
)

var processCmd = &cobra.Command{
	Use:   "process <directory>",
	Short: "Process a directory of files through the AI pipeline",
	Long: `Process every file in a directory: categorize it, generate a
descriptive name, and optionally validate the suggestion.

Progress is written through to the database as each file finishes, so an
interrupted run can be continued with 'filewise resume'. Press Ctrl-C to
stop; files already dispatched finish and are recorded before exit.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return processRun(args[0])
	},
}

func init() {
	processCmd.Flags().IntVar(&processParallel, "parallel", 0, "Files processed concurrently (default from config)")
	processCmd.Flags().BoolVarP(&processRecursive, "recursive", "r", false, "Include files in subdirectories")
	rootCmd.AddCommand(processCmd)
}

func processRun(dir string) error {
	s, err := getStore()
	if err != nil {
		return err
	}
	ctx := context.Background()

	// Refuse to start while an earlier batch is waiting on resolution.
	resumer := pipeline.NewResumer(s, nil)
	if ib, err := resumer.CheckInterrupted(ctx); err != nil {
		return err
	} else if ib != nil {
		ui.Warning("Batch %s in %s was interrupted with %d of %d files remaining.",
			shortID(ib.Batch.ID), ib.Batch.Directory, ib.Remaining, ib.Total)
		return fmt.Errorf("resolve it first: 'filewise resume' to continue or 'filewise resume --dismiss' to discard")
	}

	paths, err := collectFiles(dir, processRecursive)
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		ui.Info("No files to process in %s", dir)
		return nil
	}

	if dryRun {
		ui.DryRunMsg("Would process %d files in %s:", len(paths), dir)
		for _, p := range paths {
			fmt.Fprintf(ui.Out, "  %s\n", p)
		}
		return nil
	}

	proc, err := newProcessor()
	if err != nil {
		return err
	}

	batcher := pipeline.NewBatcher(s, proc, func(processed, total int) {
		ui.Info("Processed %d/%d files", processed, total)
	})

	concurrency := processParallel
	if concurrency < 1 {
		concurrency = concurrencyFromConfig()
	}

	handle, err := batcher.Start(ctx, paths, dir, concurrency)
	if err != nil {
		return err
	}

	ui.Info("Processing %d files in %s (batch %s, %d at a time)",
		len(paths), dir, shortID(handle.BatchID), concurrency)

	summary, err := waitWithInterrupt(handle)
	if err != nil {
		return err
	}
	return renderSummary(s, summary)
}

// waitWithInterrupt waits for the batch, turning the first Ctrl-C into a
// cooperative cancel. Dispatched files finish before the handle resolves.
func waitWithInterrupt(handle *pipeline.Handle) (pipeline.Summary, error) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt)
	defer signal.Stop(sigCh)

	done := make(chan struct{})
	go func() {
		select {
		case <-sigCh:
			ui.Warning("Interrupt received, finishing in-flight files...")
			handle.Cancel()
		case <-done:
		}
	}()

	summary, err := handle.Wait()
	close(done)
	return summary, err
}

func renderSummary(s store.Store, summary pipeline.Summary) error {
	ctx := context.Background()
	items, err := s.GetItems(ctx, summary.BatchID)
	if err != nil {
		return err
	}

	table := ui.Table([]string{"File", "Category", "Suggested Name", "Status"})
	for _, item := range items {
		name, category := "", ""
		if item.Result != nil {
			name = item.Result.SuggestedName
			category = item.Result.Category
			if item.Result.ValidationPassed != nil && !*item.Result.ValidationPassed {
				name += " (unvalidated)"
			}
		}
		status := string(item.Status)
		if item.Status == models.ItemStatusFailed && item.Error != "" {
			status = fmt.Sprintf("failed: %s", item.Error)
		}
		_ = table.Append([]string{
			filepath.Base(item.FilePath),
			category,
			name,
			output.StatusColor(status),
		})
	}
	_ = table.Render()

	if summary.Cancelled {
		ui.Warning("Batch %s stopped: %d succeeded, %d failed, %d remaining",
			shortID(summary.BatchID), summary.Succeeded, summary.Failed,
			summary.Total-summary.Succeeded-summary.Failed)
		ui.Info("Run 'filewise resume' to continue.")
	} else {
		ui.Success("Batch %s complete: %d succeeded, %d failed",
			shortID(summary.BatchID), summary.Succeeded, summary.Failed)
	}
	return nil
}

// collectFiles lists regular files under dir in a stable order. Hidden files
// are skipped.
func collectFiles(dir string, recursive bool) ([]string, error) {
	var paths []string

	if recursive {
		err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
			if err != nil {
				return err
			}
			base := filepath.Base(path)
			if d.IsDir() {
				if path != dir && strings.HasPrefix(base, ".") {
					return filepath.SkipDir
				}
				return nil
			}
			if strings.HasPrefix(base, ".") {
				return nil
			}
			paths = append(paths, path)
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", dir, err)
		}
	} else {
		entries, err := os.ReadDir(dir)
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", dir, err)
		}
		for _, e := range entries {
			if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
				continue
			}
			paths = append(paths, filepath.Join(dir, e.Name()))
		}
	}

	sort.Strings(paths)
	return paths, nil
}

// shortID truncates a ULID for display.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
