package commands

import (
	"github.com/spf13/cobra"

	"github.com/RyanBlaney/sonido-screen/screening"
)

func newExtractCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "extract <audio>",
		Short: "Print the acoustic feature vector of a recording",
		Long: `Decode a recording, trim and mix it down, then print its sixteen
voice quality features together with the pitch statistics they came from.

No reference corpus is needed.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			engine := screening.NewEngine(a.cfg, nil)

			w, err := engine.DecodeFile(ctx, args[0])
			if err != nil {
				return err
			}
			ex, err := engine.Extract(w)
			if err != nil {
				return err
			}
			return a.writeResult(cmd, ex)
		},
	}
}
