package commands

import (
	"github.com/spf13/cobra"

	"github.com/RyanBlaney/sonido-screen/transcode"
)

type formatsResult struct {
	Native          []transcode.Format `json:"native"`
	FFmpegEnabled   bool               `json:"ffmpeg_enabled"`
	FFmpegAvailable bool               `json:"ffmpeg_available"`
	FFmpegError     string             `json:"ffmpeg_error,omitempty"`
}

func newFormatsCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "formats",
		Short: "List supported audio formats and check for ffmpeg",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			decoderConfig := a.cfg.Decoder
			decoder := transcode.NewDecoder(&decoderConfig)

			result := formatsResult{
				Native:        decoder.SupportedFormats(),
				FFmpegEnabled: decoderConfig.EnableFFmpeg,
			}
			if decoderConfig.EnableFFmpeg {
				if err := decoder.CheckFFmpeg(cmd.Context()); err != nil {
					result.FFmpegError = err.Error()
				} else {
					result.FFmpegAvailable = true
				}
			}
			return a.writeResult(cmd, result)
		},
	}
}
