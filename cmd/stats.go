package cmd

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/filewise/filewise/internal/feedback"
	"github.com/filewise/filewise/internal/models"
	"github.com/filewise/filewise/internal/output"
)

var (
	statsRange      string
	statsLow        bool
	statsThreshold  float64
	statsRejections bool
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show per-category suggestion effectiveness",
	Long: `Show how well suggestions are landing per category: acceptance rates,
edit counts, and the average edit distance of corrections.

Use --low to list only categories performing below the threshold, and
--rejections to review recently rejected names.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return statsRun()
	},
}

var pruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete old feedback records",
	Long: `Delete feedback older than feedback.retention_days. With the default
of 0 days nothing is ever pruned.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return pruneRun()
	},
}

func init() {
	statsCmd.Flags().StringVar(&statsRange, "range", "all", "Time window (e.g. 24h, 7d, 30d, all)")
	statsCmd.Flags().BoolVar(&statsLow, "low", false, "Show only low-performing categories")
	statsCmd.Flags().Float64Var(&statsThreshold, "threshold", feedback.DefaultLowPerformingThreshold, "Acceptance-rate threshold for --low (percent)")
	statsCmd.Flags().BoolVar(&statsRejections, "rejections", false, "Show recent rejections instead of aggregates")
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(pruneCmd)
}

func statsRun() error {
	s, err := getStore()
	if err != nil {
		return err
	}
	ctx := context.Background()

	since, err := feedback.ParseWindow(statsRange)
	if err != nil {
		return err
	}
	tracker := feedback.NewTracker(s)

	if statsRejections {
		return rejectionsRun(ctx, tracker, since)
	}

	var stats []*models.CategoryEffectiveness
	if statsLow {
		stats, err = tracker.LowPerforming(ctx, statsThreshold, since)
	} else {
		stats, err = tracker.Effectiveness(ctx, since)
	}
	if err != nil {
		return err
	}

	if len(stats) == 0 {
		if statsLow {
			ui.Success("No categories below %.0f%% acceptance.", statsThreshold)
		} else {
			ui.Info("No feedback recorded yet. Use 'filewise apply' or 'filewise reject' after processing.")
		}
		return nil
	}

	table := ui.Table([]string{"Category", "Accepted", "Edited", "Rejected", "Skipped", "Accept Rate", "Avg Edit Dist"})
	for _, e := range stats {
		rate := "-"
		if e.AcceptanceRate != nil {
			rate = output.RateColor(*e.AcceptanceRate)
		}
		avg := "-"
		if e.Edited > 0 {
			avg = fmt.Sprintf("%.1f", e.AvgEditDistance)
		}
		_ = table.Append([]string{
			e.Category,
			fmt.Sprintf("%d", e.Accepted),
			fmt.Sprintf("%d", e.Edited),
			fmt.Sprintf("%d", e.Rejected),
			fmt.Sprintf("%d", e.Skipped),
			rate,
			avg,
		})
	}
	_ = table.Render()
	return nil
}

func rejectionsRun(ctx context.Context, tracker *feedback.Tracker, since time.Time) error {
	recs, err := tracker.RecentRejections(ctx, 20, since)
	if err != nil {
		return err
	}
	if len(recs) == 0 {
		ui.Info("No rejections in this window.")
		return nil
	}

	table := ui.Table([]string{"When", "File", "Category", "Rejected Name"})
	for _, r := range recs {
		_ = table.Append([]string{
			r.RecordedAt.Format("2006-01-02 15:04"),
			filepath.Base(r.FilePath),
			r.Category,
			r.AISuggestedName,
		})
	}
	_ = table.Render()
	return nil
}

func pruneRun() error {
	s, err := getStore()
	if err != nil {
		return err
	}
	ctx := context.Background()

	days := viper.GetInt("feedback.retention_days")
	if days <= 0 {
		ui.Info("feedback.retention_days is not set; nothing to prune.")
		return nil
	}
	retention := time.Duration(days) * 24 * time.Hour

	if dryRun {
		ui.DryRunMsg("Would delete feedback older than %d days", days)
		return nil
	}

	n, err := feedback.NewTracker(s).Prune(ctx, retention)
	if err != nil {
		return err
	}
	ui.Success("Pruned %d feedback records older than %d days", n, days)
	return nil
}
