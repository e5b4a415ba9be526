package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/andresmejia3/facecheck/internal/store"
	"github.com/andresmejia3/facecheck/internal/utils"
)

var findThreshold float64

var findCmd = &cobra.Command{
	Use:   "find <image_path>",
	Short: "Search the rep store for the face in an image",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		return runFind(cmd.Context(), args[0], findThreshold)
	},
}

func init() {
	findCmd.Flags().Float64VarP(&findThreshold, "threshold", "t", 0.5, "Maximum cosine distance for a match (lower is stricter)")
	rootCmd.AddCommand(findCmd)
}

func runFind(ctx context.Context, imagePath string, threshold float64) error {
	if _, err := os.Stat(imagePath); os.IsNotExist(err) {
		utils.ShowError("Input file does not exist", err, nil)
		return err
	}
	if threshold <= 0 || threshold > 2.0 {
		return fmt.Errorf("threshold must be in (0, 2], got %f", threshold)
	}

	if err := openDB(ctx); err != nil {
		return err
	}

	eng, err := newFaceEngine(ctx, Cfg)
	if err != nil {
		return err
	}
	defer eng.Close()

	fmt.Fprintln(os.Stderr, "🔍 Analyzing face...")
	rep, _, err := eng.Rep(imagePath)
	if err != nil {
		eng.fail("Unable to represent image", err)
		return err
	}

	fmt.Fprintln(os.Stderr, "🗄️  Searching database...")
	m, err := DB.FindClosest(ctx, rep, threshold)
	if errors.Is(err, store.ErrNotFound) {
		fmt.Println("❌ No match found in database.")
		return nil
	}
	if err != nil {
		utils.ShowError("Database search failed", err, nil)
		return err
	}

	fmt.Printf("✅ Found Match: %s (distance %.4f, %s)\n", m.Label, m.Distance, m.Path)
	return nil
}
