package cmd

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/andresmejia3/facecheck/internal/utils"
)

var (
	resetLabel string
	resetYes   bool
)

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Clear the rep store",
	Long:  "Drops the reps table. Use --label to remove a single identity instead.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		ctx := cmd.Context()
		if err := openDB(ctx); err != nil {
			return err
		}

		reader := bufio.NewReader(os.Stdin)

		if resetLabel != "" {
			if !resetYes && !confirm(reader, os.Stdout, fmt.Sprintf("⚠️  Delete every rep labelled '%s'?", resetLabel)) {
				return nil
			}
			n, err := DB.DeleteLabel(ctx, resetLabel)
			if err != nil {
				utils.ShowError("Failed to delete label", err, nil)
				return err
			}
			fmt.Printf("🗑️  Removed %d reps of '%s'.\n", n, resetLabel)
			return nil
		}

		if resetYes || confirm(reader, os.Stdout, "⚠️  Are you sure you want to DROP the reps table?") {
			fmt.Println("🗑️  Clearing Database...")
			if err := DB.Reset(ctx); err != nil {
				utils.ShowError("Failed to reset database", err, nil)
				return err
			}
			fmt.Println("✨ Reset Complete.")
		}
		return nil
	},
}

func init() {
	resetCmd.Flags().StringVar(&resetLabel, "label", "", "Only delete reps with this label")
	resetCmd.Flags().BoolVarP(&resetYes, "yes", "y", false, "Do not ask for confirmation")
	rootCmd.AddCommand(resetCmd)
}

func confirm(r *bufio.Reader, w io.Writer, prompt string) bool {
	fmt.Fprintf(w, "%s [y/N]: ", prompt)
	res, _ := r.ReadString('\n')
	res = strings.TrimSpace(strings.ToLower(res))
	return res == "y" || res == "yes"
}
