package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/andresmejia3/facecheck/internal/classifier"
	"github.com/andresmejia3/facecheck/internal/types"
)

var (
	trainWorkDir string
	trainOpts    = classifier.DefaultTrainOptions()
)

var classifierCmd = &cobra.Command{
	Use:   "classifier",
	Short: "Train or run the identity classifier",
}

var classifierTrainCmd = &cobra.Command{
	Use:   "train <model_out>",
	Short: "Train a classifier from stored reps (or a CSV work dir) and save it as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		return runTrain(cmd.Context(), args[0])
	},
}

var classifierInferCmd = &cobra.Command{
	Use:   "infer <model> <image>...",
	Short: "Predict the identity of the largest face in each image",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		return runInfer(cmd.Context(), args[0], args[1:])
	},
}

func init() {
	classifierTrainCmd.Flags().StringVarP(&trainWorkDir, "work-dir", "w", "", "Read labels.csv/reps.csv from this directory instead of the database")
	classifierTrainCmd.Flags().IntVar(&trainOpts.Epochs, "epochs", trainOpts.Epochs, "Gradient descent epochs")
	classifierTrainCmd.Flags().Float64Var(&trainOpts.LearningRate, "lr", trainOpts.LearningRate, "Learning rate")
	classifierTrainCmd.Flags().Float64Var(&trainOpts.L2, "l2", trainOpts.L2, "L2 regularization strength")

	classifierCmd.AddCommand(classifierTrainCmd, classifierInferCmd)
	rootCmd.AddCommand(classifierCmd)
}

func runTrain(ctx context.Context, modelOut string) error {
	// 1. Gather samples
	var samples []types.Sample
	var err error
	if trainWorkDir != "" {
		samples, err = classifier.LoadWorkDir(trainWorkDir)
	} else {
		if err := openDB(ctx); err != nil {
			return err
		}
		samples, err = DB.Samples(ctx)
	}
	if err != nil {
		return fmt.Errorf("load training reps: %w", err)
	}
	if len(samples) == 0 {
		return errors.New("no reps to train on; run 'facecheck represent' first")
	}

	// 2. Fit
	fmt.Fprintf(os.Stderr, "🏋️  Training on %d reps...\n", len(samples))
	model, err := classifier.Train(samples, trainOpts)
	if err != nil {
		return err
	}
	Log.WithField("labels", len(model.Labels)).Debug("classifier trained")

	// 3. Persist
	if err := model.Save(modelOut); err != nil {
		return fmt.Errorf("save classifier: %w", err)
	}
	fmt.Printf("Saved classifier with %d labels to '%s'.\n", len(model.Labels), modelOut)
	return nil
}

func runInfer(ctx context.Context, modelPath string, imgs []string) error {
	model, err := classifier.Load(modelPath)
	if err != nil {
		return err
	}

	eng, err := newFaceEngine(ctx, Cfg)
	if err != nil {
		return err
	}
	defer eng.Close()

	for _, img := range imgs {
		rep, _, err := eng.Rep(img)
		if err != nil {
			eng.fail("Unable to represent image", err)
			return err
		}
		label, confidence, err := model.Predict(rep)
		if err != nil {
			return err
		}
		fmt.Printf("Predict %s with %.2f confidence.\n", label, confidence)
	}
	return nil
}
