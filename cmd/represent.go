package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/andresmejia3/facecheck/internal/align"
	"github.com/andresmejia3/facecheck/internal/classifier"
	"github.com/andresmejia3/facecheck/internal/types"
	"github.com/andresmejia3/facecheck/internal/utils"
)

var (
	representWorkDir string
	representNoStore bool
)

var representCmd = &cobra.Command{
	Use:   "represent <dir>",
	Short: "Represent every face image under <dir>/<label>/ and store the reps",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		return runRepresent(cmd.Context(), args[0])
	},
}

func init() {
	representCmd.Flags().StringVarP(&representWorkDir, "work-dir", "w", "", "Also write labels.csv/reps.csv to this directory")
	representCmd.Flags().BoolVar(&representNoStore, "no-store", false, "Skip the database (requires --work-dir)")
	rootCmd.AddCommand(representCmd)
}

var imageExts = map[string]bool{".jpg": true, ".jpeg": true, ".png": true, ".bmp": true}

// labelledImages lists <dir>/<label>/<image> files, sorted for stable output.
func labelledImages(dir string) ([]types.Sample, error) {
	labels, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var out []types.Sample
	for _, l := range labels {
		if !l.IsDir() {
			continue
		}
		files, err := os.ReadDir(filepath.Join(dir, l.Name()))
		if err != nil {
			return nil, err
		}
		for _, f := range files {
			if f.IsDir() || !imageExts[strings.ToLower(filepath.Ext(f.Name()))] {
				continue
			}
			out = append(out, types.Sample{Label: l.Name(), Path: filepath.Join(dir, l.Name(), f.Name())})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

func runRepresent(ctx context.Context, dir string) error {
	if representNoStore && representWorkDir == "" {
		return errors.New("--no-store needs --work-dir, otherwise the reps go nowhere")
	}

	// 1. Discover images
	samples, err := labelledImages(dir)
	if err != nil {
		return fmt.Errorf("read image tree: %w", err)
	}
	if len(samples) == 0 {
		return fmt.Errorf("no images found under %s/<label>/", dir)
	}

	if !representNoStore {
		if err := openDB(ctx); err != nil {
			return err
		}
	}

	eng, err := newFaceEngine(ctx, Cfg)
	if err != nil {
		return err
	}
	defer eng.Close()

	bar := progressbar.NewOptions(len(samples),
		progressbar.OptionSetDescription("🧬 Representing"),
		progressbar.OptionSetWriter(os.Stderr), // Write bar to Stderr
		progressbar.OptionShowCount(),
	)

	// 2. Represent & Persist
	var kept []types.Sample
	skipped := 0
	for _, s := range samples {
		if err := ctx.Err(); err != nil {
			return err
		}

		rep, box, err := eng.Rep(s.Path)
		bar.Add(1)
		if err != nil {
			if errors.Is(err, align.ErrNoFace) {
				Log.WithField("image", s.Path).Warn("no face found, skipping")
				skipped++
				continue
			}
			eng.fail("Unable to represent image", err)
			return err
		}
		s.Rep = rep

		if !representNoStore {
			id, err := utils.GenerateImageID(s.Path)
			if err != nil {
				return err
			}
			if err := DB.UpsertRep(ctx, id, s, box); err != nil {
				utils.ShowError("Failed to store rep", err, nil)
				return err
			}
		}
		kept = append(kept, s)
	}
	bar.Finish()

	if representWorkDir != "" {
		if err := classifier.WriteWorkDir(representWorkDir, kept); err != nil {
			return fmt.Errorf("write work dir: %w", err)
		}
	}

	fmt.Fprintf(os.Stderr, "\n🏁 Represented %d images (%d without a face).\n", len(kept), skipped)
	return nil
}
