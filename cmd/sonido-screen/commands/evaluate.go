package commands

import (
	"github.com/spf13/cobra"
)

func newEvaluateCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "evaluate",
		Short: "Load the corpus and report leave-one-out accuracy",
		Long: `Load the reference corpus, fit the normalisation statistics and print
the model metadata, including leave-one-out accuracy for the chosen k.

Accuracy is omitted when the corpus has fewer than two samples.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			engine, err := a.engine(ctx)
			if err != nil {
				return err
			}

			meta, err := engine.EnsureModel(ctx, a.k())
			if err != nil {
				return err
			}
			return a.writeResult(cmd, meta)
		},
	}
}
