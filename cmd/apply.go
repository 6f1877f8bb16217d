package cmd

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/filewise/filewise/internal/feedback"
	"github.com/filewise/filewise/internal/models"
	"github.com/filewise/filewise/internal/output"
	"github.com/filewise/filewise/internal/rename"
)

var applyName string

var applyCmd = &cobra.Command{
	Use:   "apply <file>",
	Short: "Accept a suggestion and rename the file",
	Long: `Rename a file to its AI-suggested name and record the acceptance.

Pass --name to apply an edited name instead; the edit is recorded with
its distance from the original suggestion, which feeds the per-category
effectiveness stats shown by 'filewise stats'.

With organize.enabled set, the file also moves into a per-category
subdirectory under organize.base_dir.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return applyRun(args[0])
	},
}

var rejectCmd = &cobra.Command{
	Use:   "reject <file>",
	Short: "Reject a suggestion without renaming",
	Long: `Record that the suggestion for a file was rejected. The file is not
renamed. Rejections lower the category's acceptance rate and are shown
by 'filewise stats --rejections'.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return feedbackOnlyRun(args[0], models.FeedbackRejected)
	},
}

var skipCmd = &cobra.Command{
	Use:   "skip <file>",
	Short: "Skip a suggestion without judging it",
	Long: `Record that the suggestion for a file was skipped. Skips are kept for
completeness but do not count toward acceptance rates.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return feedbackOnlyRun(args[0], models.FeedbackSkipped)
	},
}

func init() {
	applyCmd.Flags().StringVar(&applyName, "name", "", "Apply this edited name instead of the suggestion")
	rootCmd.AddCommand(applyCmd)
	rootCmd.AddCommand(rejectCmd)
	rootCmd.AddCommand(skipCmd)
}

func applyRun(path string) error {
	s, err := getStore()
	if err != nil {
		return err
	}
	ctx := context.Background()

	item, err := s.GetLatestResult(ctx, path)
	if err != nil {
		return err
	}
	if item == nil || item.Result == nil {
		return fmt.Errorf("%s has no suggestion yet: run 'filewise process' first", path)
	}

	action := models.FeedbackAccepted
	finalName := item.Result.SuggestedName
	if applyName != "" && applyName != item.Result.SuggestedName {
		action = models.FeedbackEdited
		finalName = applyName
	}

	if dryRun {
		ui.DryRunMsg("Would rename %s to %s (%s)", path, finalName, action)
		return nil
	}

	executor := rename.NewLocal(viper.GetBool("organize.enabled"), viper.GetString("organize.base_dir"))
	res, err := executor.Apply(path, finalName, item.Result.Category)
	if err != nil {
		return err
	}

	tracker := feedback.NewTracker(s)
	rec, err := tracker.Record(ctx, path, action, finalName)
	if err != nil {
		return err
	}

	if res.Moved {
		ui.Success("Renamed and moved to %s", output.Cyan(res.NewPath))
	} else {
		ui.Success("Renamed to %s", output.Cyan(filepath.Base(res.NewPath)))
	}
	if rec.EditDistance != nil && *rec.EditDistance > 0 {
		ui.VerboseLog("Recorded edit at distance %d from the suggestion", *rec.EditDistance)
	}
	return nil
}

func feedbackOnlyRun(path string, action models.FeedbackAction) error {
	s, err := getStore()
	if err != nil {
		return err
	}
	ctx := context.Background()

	if dryRun {
		ui.DryRunMsg("Would record %s for %s", action, path)
		return nil
	}

	tracker := feedback.NewTracker(s)
	if _, err := tracker.Record(ctx, path, action, ""); err != nil {
		return err
	}
	ui.Success("Recorded %s for %s", action, filepath.Base(path))
	if action == models.FeedbackRejected {
		ui.Info("Run 'filewise regenerate %s' for a new suggestion.", path)
	}
	return nil
}
