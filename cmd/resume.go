package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/filewise/filewise/internal/pipeline"
)

var resumeDismiss bool

var resumeCmd = &cobra.Command{
	Use:   "resume",
	Short: "Continue an interrupted batch",
	Long: `Continue the interrupted batch, processing only the files that have
no recorded outcome yet. Files that already completed or failed are not
reprocessed, so resuming twice does no extra work.

Use --dismiss to discard the interrupted batch instead of continuing it.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return resumeRun()
	},
}

func init() {
	resumeCmd.Flags().BoolVar(&resumeDismiss, "dismiss", false, "Discard the interrupted batch without processing")
	rootCmd.AddCommand(resumeCmd)
}

func resumeRun() error {
	s, err := getStore()
	if err != nil {
		return err
	}
	ctx := context.Background()

	resumer := pipeline.NewResumer(s, nil)
	ib, err := resumer.CheckInterrupted(ctx)
	if err != nil {
		return err
	}
	if ib == nil {
		ui.Info("No interrupted batch to resume.")
		return nil
	}

	if resumeDismiss {
		if dryRun {
			ui.DryRunMsg("Would dismiss batch %s (%d files remaining)", shortID(ib.Batch.ID), ib.Remaining)
			return nil
		}
		if err := resumer.Dismiss(ctx, ib); err != nil {
			return err
		}
		ui.Success("Dismissed batch %s", shortID(ib.Batch.ID))
		return nil
	}

	if dryRun {
		ui.DryRunMsg("Would resume batch %s in %s: %d done, %d failed, %d remaining",
			shortID(ib.Batch.ID), ib.Batch.Directory, ib.Completed, ib.Failed, ib.Remaining)
		return nil
	}

	proc, err := newProcessor()
	if err != nil {
		return err
	}
	batcher := pipeline.NewBatcher(s, proc, func(processed, total int) {
		ui.Info("Processed %d/%d files", processed, total)
	})
	resumer = pipeline.NewResumer(s, batcher)

	ui.Info("Resuming batch %s in %s: %d of %d files remaining",
		shortID(ib.Batch.ID), ib.Batch.Directory, ib.Remaining, ib.Total)

	handle, err := resumer.Resume(ctx, ib, concurrencyFromConfig())
	if err != nil {
		return err
	}

	summary, err := waitWithInterrupt(handle)
	if err != nil {
		return err
	}
	return renderSummary(s, summary)
}
