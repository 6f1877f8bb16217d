package cmd

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/filewise/filewise/internal/feedback"
	"github.com/filewise/filewise/internal/output"
	"github.com/filewise/filewise/internal/pipeline"
)

var regenerateFeedback string

var regenerateCmd = &cobra.Command{
	Use:   "regenerate <file>",
	Short: "Reject a suggestion and generate a new name",
	Long: `Record the current suggestion for a file as rejected and run the
naming stage again. The rejected name, and any feedback you give with
--feedback, is included in the new prompt so the next suggestion differs.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return regenerateRun(args[0])
	},
}

func init() {
	regenerateCmd.Flags().StringVar(&regenerateFeedback, "feedback", "", "Guidance for the new suggestion (e.g. 'too generic, mention the client')")
	rootCmd.AddCommand(regenerateCmd)
}

func regenerateRun(path string) error {
	s, err := getStore()
	if err != nil {
		return err
	}
	ctx := context.Background()

	if dryRun {
		ui.DryRunMsg("Would regenerate a name for %s", path)
		return nil
	}

	proc, err := newProcessor()
	if err != nil {
		return err
	}
	tracker := feedback.NewTracker(s)

	result, err := pipeline.RegenerateForFile(ctx, s, tracker, proc, path, regenerateFeedback)
	if err != nil {
		return err
	}

	ui.Success("New suggestion for %s", filepath.Base(path))
	fmt.Fprintf(ui.Out, "  Category: %s\n", result.Category)
	fmt.Fprintf(ui.Out, "  Name:     %s\n", output.Cyan(result.SuggestedName))
	if result.ValidationPassed != nil && !*result.ValidationPassed {
		ui.Warning("Validation did not pass; the name is the best unvalidated attempt.")
	}
	return nil
}
