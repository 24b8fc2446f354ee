package main

import (
	"fmt"

	"github.com/baba2413/VEA/config"
	"github.com/spf13/cobra"
)

func newProbeCmd(a *app) *cobra.Command {
	var (
		video       string
		audio       string
		useGemini   bool
		useVision   bool
		useAudio    bool
		all         bool
		numFrames   int
		geminiModel string
		visionModel string
		asrModel    string
	)

	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Run analyzers on one local file and print their output",
		Long: `Probe checks that credentials and models work by analyzing a single local
file. The audio analyzer uses --audio when given, otherwise it extracts the
audio track from --video with ffmpeg.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var names []string
			if useGemini || all {
				names = append(names, config.CapabilityGemini)
			}
			if useVision || all {
				names = append(names, config.CapabilityOpenAIVision)
			}
			if useAudio || all {
				names = append(names, config.CapabilityOpenAIAudio)
			}
			if len(names) == 0 {
				return fmt.Errorf("select at least one of --gemini, --openai-vision, --openai-audio or --all")
			}
			for _, n := range names {
				if n != config.CapabilityOpenAIAudio && video == "" {
					return fmt.Errorf("%s needs --video", n)
				}
			}
			if useAudio || all {
				if video == "" && audio == "" {
					return fmt.Errorf("%s needs --audio or --video", config.CapabilityOpenAIAudio)
				}
			}
			if err := requireAnalyzers(a.cfg, names); err != nil {
				return err
			}

			var asr []string
			if asrModel != "" {
				asr = []string{asrModel}
			}
			built, err := buildAnalyzers(cmd.Context(), a.cfg, names, analyzerSettings{
				geminiModel: geminiModel,
				visionModel: visionModel,
				asrModels:   asr,
				numFrames:   numFrames,
			}, a.logger)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			failed := 0
			for _, an := range built {
				input := video
				if an.Name() == config.CapabilityOpenAIAudio && audio != "" {
					input = audio
				}
				text, err := an.Analyze(cmd.Context(), input)
				fmt.Fprintf(out, "=== %s ===\n", an.Name())
				if err != nil {
					failed++
					fmt.Fprintf(out, "ERROR: %v\n\n", err)
					continue
				}
				fmt.Fprintf(out, "%s\n\n", text)
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d analyzers failed", failed, len(built))
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&video, "video", "", "Video file")
	f.StringVar(&audio, "audio", "", "Audio file for the transcription analyzer")
	f.BoolVar(&useGemini, "gemini", false, "Run Gemini video analysis")
	f.BoolVar(&useVision, "openai-vision", false, "Run OpenAI frame-based vision analysis")
	f.BoolVar(&useAudio, "openai-audio", false, "Run OpenAI transcription")
	f.BoolVar(&all, "all", false, "Run every analyzer")
	f.IntVar(&numFrames, "num-frames", 8, "Frames sampled for vision analysis")
	f.StringVar(&geminiModel, "gemini-model", "", "Gemini model (default from config)")
	f.StringVar(&visionModel, "openai-vision-model", "", "OpenAI vision model (default from config)")
	f.StringVar(&asrModel, "openai-asr-model", "", "OpenAI transcription model (default: try gpt-4o-mini-transcribe, then whisper-1)")
	return cmd
}
