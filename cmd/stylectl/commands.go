package main

import (
	"encoding/json"
	"fmt"
	"image"
	"io"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"style-lock-studio/internal/aspect"
	"style-lock-studio/internal/fingerprint"
	"style-lock-studio/internal/imaging"
	"style-lock-studio/internal/instruction"
	"style-lock-studio/internal/palette"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "stylectl",
		Short: "Offline style fingerprint and instruction tools",
		Long: `stylectl runs the style analysis locally, without calling the image model.

Examples:
  stylectl fingerprint reference.png
  stylectl aspect plan.jpg
  stylectl aspect 1920 1080
  stylectl instruction --mode plan --blend 80 --ref reference.png
  stylectl palette reference.png --k 6 --method kmeans`,
		SilenceUsage: true,
	}

	root.AddCommand(
		newFingerprintCmd(),
		newAspectCmd(),
		newInstructionCmd(),
		newPaletteCmd(),
	)
	return root
}

func newFingerprintCmd() *cobra.Command {
	var sampleMaxSide int
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "fingerprint <image>",
		Short: "Print the style fingerprint of an image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fp, err := fingerprintFile(args[0], sampleMaxSide)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), fp)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), fp.String())
			return err
		},
	}
	cmd.Flags().IntVar(&sampleMaxSide, "sample", imaging.DefaultSampleMaxSide, "Longest side of the sampling buffer")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON")
	return cmd
}

func newAspectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "aspect <image> | <width> <height>",
		Short: "Classify an image or dimensions into a supported aspect ratio",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var width, height int
			if len(args) == 2 {
				var err error
				if width, err = strconv.Atoi(args[0]); err != nil {
					return fmt.Errorf("width: %w", err)
				}
				if height, err = strconv.Atoi(args[1]); err != nil {
					return fmt.Errorf("height: %w", err)
				}
			} else {
				img, err := decodeFile(args[0])
				if err != nil {
					return err
				}
				width, height = img.Bounds().Dx(), img.Bounds().Dy()
			}

			ratio, err := aspect.Classify(width, height)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), ratio)
			return err
		},
	}
}

func newInstructionCmd() *cobra.Command {
	var (
		modeFlag    string
		blendFlag   int
		refFlag     string
		noTelemetry bool
		enhance     = instruction.DefaultEnhanceParameters()
	)

	cmd := &cobra.Command{
		Use:   "instruction",
		Short: "Assemble the instruction text for a render mode",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			mode, err := instruction.ParseMode(modeFlag)
			if err != nil {
				return err
			}

			var fp *fingerprint.StyleFingerprint
			if mode == instruction.ModePlanStyleLock && refFlag != "" && !noTelemetry {
				computed, err := fingerprintFile(refFlag, imaging.DefaultSampleMaxSide)
				if err != nil {
					return fmt.Errorf("reference: %w", err)
				}
				fp = &computed
			}

			text, err := instruction.Assemble(mode, blendFlag, fp, &enhance)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), text)
			return err
		},
	}

	cmd.Flags().StringVarP(&modeFlag, "mode", "m", "plan", "Render mode: plan, spatial or enhance")
	cmd.Flags().IntVarP(&blendFlag, "blend", "b", 80, "Style blend weight (0-100)")
	cmd.Flags().StringVar(&refFlag, "ref", "", "Style reference image for telemetry")
	cmd.Flags().BoolVar(&noTelemetry, "no-telemetry", false, "Use the fallback telemetry sentence")
	cmd.Flags().IntVar(&enhance.Texture, "texture", enhance.Texture, "Enhance texture (0-100)")
	cmd.Flags().IntVar(&enhance.Smoothing, "smoothing", enhance.Smoothing, "Enhance smoothing (0-100)")
	cmd.Flags().IntVar(&enhance.Detail, "detail", enhance.Detail, "Enhance detail (0-100)")
	cmd.Flags().IntVar(&enhance.Light, "light", enhance.Light, "Enhance light (0-100)")
	return cmd
}

func newPaletteCmd() *cobra.Command {
	var k int
	var methodFlag string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "palette <image>",
		Short: "Print the dominant colors of an image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			method, err := palette.ParseMethod(methodFlag)
			if err != nil {
				return err
			}
			img, err := decodeFile(args[0])
			if err != nil {
				return err
			}

			swatches := palette.Extract(imaging.Downsample(img, imaging.DefaultSampleMaxSide), k, method)
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), swatches)
			}
			for _, s := range swatches {
				if _, err := fmt.Fprintf(cmd.OutOrStdout(), "#%s %.3f\n", s.Hex, s.Weight); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&k, "k", 5, "Number of colors")
	cmd.Flags().StringVar(&methodFlag, "method", "dominant", "Extraction method: dominant or kmeans")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON")
	return cmd
}

func decodeFile(path string) (image.Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	img, _, err := imaging.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return img, nil
}

func fingerprintFile(path string, sampleMaxSide int) (fingerprint.StyleFingerprint, error) {
	img, err := decodeFile(path)
	if err != nil {
		return fingerprint.StyleFingerprint{}, err
	}
	return fingerprint.FromImage(imaging.Downsample(img, sampleMaxSide))
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
