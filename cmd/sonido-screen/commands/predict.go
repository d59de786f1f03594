package commands

import (
	"github.com/spf13/cobra"
)

func newPredictCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "predict <audio>...",
		Short: "Screen one or more recordings",
		Long: `Extract features from each recording and classify them against the
reference corpus. The corpus is loaded once and shared by all recordings.

The report for each file holds the label, the adjusted and raw affected
probability, the neighbours that voted and the model metadata.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			engine, err := a.engine(ctx)
			if err != nil {
				return err
			}

			if len(args) == 1 {
				report, err := engine.ScreenFile(ctx, args[0], a.k())
				if err != nil {
					return err
				}
				return a.writeResult(cmd, report)
			}

			results := make([]any, 0, len(args))
			for _, path := range args {
				report, err := engine.ScreenFile(ctx, path, a.k())
				if err != nil {
					results = append(results, map[string]string{
						"source": path,
						"error":  err.Error(),
					})
					continue
				}
				results = append(results, report)
			}
			return a.writeResult(cmd, results)
		},
	}
}
