package cmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/andresmejia3/facecheck/internal/utils"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List the identities in the rep store",
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		return runList(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(listCmd)
}

func runList(ctx context.Context) error {
	if err := openDB(ctx); err != nil {
		return err
	}
	labels, err := DB.ListLabels(ctx)
	if err != nil {
		utils.ShowError("Failed to list identities", err, nil)
		return err
	}

	if len(labels) == 0 {
		fmt.Println("No reps found in database.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "LABEL\tREPS\tUPDATED")
	fmt.Fprintln(w, "-----\t----\t-------")

	for _, l := range labels {
		fmt.Fprintf(w, "%s\t%d\t%s\n", l.Label, l.Count, l.UpdatedAt.Local().Format("2006-01-02 15:04"))
	}
	return w.Flush()
}
