package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var pipelineCmd = &cobra.Command{
	Use:   "pipeline <image>",
	Short: "Run detection, alignment and embedding on one image and print every stage",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		return runPipeline(cmd.Context(), args[0])
	},
}

func init() {
	rootCmd.AddCommand(pipelineCmd)
}

func runPipeline(ctx context.Context, imagePath string) error {
	eng, err := newFaceEngine(ctx, Cfg)
	if err != nil {
		return err
	}
	defer eng.Close()

	m, err := eng.Measure(imagePath)
	if err != nil {
		eng.fail("Pipeline failed", err)
		return err
	}

	fmt.Printf("Image:              %s (%dx%d)\n", m.Path, m.Width, m.Height)
	fmt.Printf("RGB norm:           %.4f (true %.2f)\n", m.RGBNorm, m.RGBNormTrue)
	fmt.Printf("Bounding box:       left=%d right=%d top=%d bottom=%d\n", m.Box.Left, m.Box.Right, m.Box.Top, m.Box.Bottom)
	fmt.Printf("Aligned norm:       %.5f (true %.2f)\n", m.AlignedNorm, m.AlignedTrue)
	fmt.Printf("Rep:                %d dims, first %v\n", len(m.Rep), fmtRep(m.Rep, 4))
	fmt.Printf("Cosine to ones:     %.16f\n", m.CosineToOnes)
	fmt.Fprintln(os.Stderr, "🏁 Pipeline complete.")
	return nil
}

func fmtRep(rep []float64, n int) string {
	if len(rep) < n {
		n = len(rep)
	}
	s := "["
	for i := 0; i < n; i++ {
		if i > 0 {
			s += " "
		}
		s += fmt.Sprintf("%.2f", rep[i])
	}
	return s + " ...]"
}
