package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/andresmejia3/facecheck/internal/types"
	"github.com/andresmejia3/facecheck/internal/utils"
)

var compareCmd = &cobra.Command{
	Use:   "compare <image> <image>...",
	Short: "Print the squared L2 distance between the face reps of every image pair",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		return runCompare(cmd.Context(), args)
	},
}

func init() {
	rootCmd.AddCommand(compareCmd)
}

func runCompare(ctx context.Context, imgs []string) error {
	eng, err := newFaceEngine(ctx, Cfg)
	if err != nil {
		return err
	}
	defer eng.Close()

	// Each image is represented once no matter how many pairs it is part of
	reps := make(map[string]types.Rep, len(imgs))
	getRep := func(path string) (types.Rep, error) {
		if rep, ok := reps[path]; ok {
			return rep, nil
		}
		rep, _, err := eng.Rep(path)
		if err != nil {
			return nil, err
		}
		reps[path] = rep
		return rep, nil
	}

	for i := 0; i < len(imgs); i++ {
		for j := i + 1; j < len(imgs); j++ {
			a, err := getRep(imgs[i])
			if err != nil {
				eng.fail("Unable to represent image", err)
				return err
			}
			b, err := getRep(imgs[j])
			if err != nil {
				eng.fail("Unable to represent image", err)
				return err
			}
			fmt.Printf("Comparing %s with %s.\n", imgs[i], imgs[j])
			fmt.Printf("  + Squared l2 distance between representations: %0.3f\n", utils.SquaredL2(a, b))
		}
	}
	return nil
}
