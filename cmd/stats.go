package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/abhisek/adaptest/internal/ui/report"
)

var statsCmd = &cobra.Command{
	Use:   "stats <student>",
	Short: "Show a student's ability estimates",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		ctx := cmd.Context()
		st, err := a.Service.Student(ctx, args[0])
		if err != nil {
			return err
		}
		reviews, err := a.Reviews.ReviewStates(ctx, st.ID)
		if err != nil {
			return fmt.Errorf("load reviews: %w", err)
		}
		if wantJSON(cmd) {
			return printJSON(cmd, struct {
				Student any `json:"student"`
				Reviews any `json:"reviews"`
			}{st, reviews})
		}
		out := cmd.OutOrStdout()
		fmt.Fprint(out, report.Student(st, a.Catalog))
		fmt.Fprint(out, "\n"+report.Reviews(reviews, time.Now()))
		return nil
	},
}
