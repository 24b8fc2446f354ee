// Command vea downloads linked videos, analyzes them with Gemini or OpenAI
// and keeps a resumable JSON log of the results.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/baba2413/VEA/config"
	"github.com/baba2413/VEA/internal/logging"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// app carries what every subcommand needs after the root pre-run.
type app struct {
	cfg    *config.Config
	logger zerolog.Logger
}

var (
	configPath string
	logLevel   string
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := &app{}
	rootCmd := &cobra.Command{
		Use:   "vea",
		Short: "Batch video download and AI content analysis",
		Long: `vea reads a JSON list of video links, downloads each one with yt-dlp,
asks Gemini or OpenAI to analyze it and appends the answer to a JSON result
file. Interrupted runs resume from the records already on disk.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadFrom(config.Sources{File: configPath, DotEnv: ".env"})
			if err != nil {
				return err
			}
			if logLevel != "" {
				cfg.LogLevel = logLevel
			}
			a.cfg = cfg
			a.logger = logging.New(os.Stderr, cfg.LogLevel)
			logConfig(a.logger, cfg)
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default: ./vea.yaml or ~/.config/vea/vea.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")

	rootCmd.AddCommand(
		newAnalyzeCmd(a),
		newDownloadCmd(a),
		newClipCmd(a),
		newProbeCmd(a),
	)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
