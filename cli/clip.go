package main

import (
	"fmt"
	"time"

	"github.com/baba2413/VEA/ffmpeg"
	"github.com/spf13/cobra"
)

func newClipCmd(a *app) *cobra.Command {
	var (
		outDir  string
		seconds float64
	)

	cmd := &cobra.Command{
		Use:   "clip <video>",
		Short: "Cut a video into fixed-length clips",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if seconds <= 0 {
				return fmt.Errorf("--duration must be positive")
			}
			e, err := newFFmpeg(a.cfg, a.logger)
			if err != nil {
				return err
			}

			window := time.Duration(seconds * float64(time.Second))
			paths, err := ffmpeg.NewClipper(e).ClipFile(cmd.Context(), args[0], outDir, window)
			for _, p := range paths {
				fmt.Fprintln(cmd.OutOrStdout(), p)
			}
			return err
		},
	}

	cmd.Flags().StringVarP(&outDir, "output", "o", "./video_clips", "Output directory")
	cmd.Flags().Float64VarP(&seconds, "duration", "d", ffmpeg.DefaultWindow.Seconds(), "Clip length in seconds")
	return cmd
}
