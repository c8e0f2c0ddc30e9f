package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/abhisek/adaptest/internal/bank"
)

var bankCmd = &cobra.Command{
	Use:   "bank",
	Short: "Manage the item bank",
}

var bankImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import items from a JSON item-bank document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("read item bank: %w", err)
		}
		items, err := bank.Decode(raw)
		if err != nil {
			return err
		}

		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.Bank.Save(cmd.Context(), items); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Imported %d items.\n", len(items))
		return nil
	},
}

var bankListCmd = &cobra.Command{
	Use:   "list",
	Short: "List items with their parameters and usage",
	RunE: func(cmd *cobra.Command, args []string) error {
		topic, _ := cmd.Flags().GetString("topic")

		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		ctx := cmd.Context()
		var items []bank.Item
		if topic != "" {
			items, err = a.Bank.Query(ctx, topic, false)
		} else {
			items, err = a.Bank.All(ctx)
		}
		if err != nil {
			return fmt.Errorf("query items: %w", err)
		}
		if wantJSON(cmd) {
			return printJSON(cmd, items)
		}
		if len(items) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No items found.")
			return nil
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%-20s  %-20s  %-7s  %5s  %6s  %5s  %6s  %6s  %s\n",
			"ID", "Topic", "Type", "a", "b", "c", "Served", "p", "Active")
		fmt.Fprintln(out, strings.Repeat("─", 100))
		for _, it := range items {
			u, err := a.Bank.Usage(ctx, it.ID)
			if err != nil {
				return fmt.Errorf("read usage %s: %w", it.ID, err)
			}
			pval := "-"
			if p := u.PValue(); p >= 0 {
				pval = fmt.Sprintf("%.2f", p)
			}
			active := "✓"
			if !it.Active {
				active = "✗"
			}
			fmt.Fprintf(out, "%-20s  %-20s  %-7s  %5.2f  %+6.2f  %5.2f  %6d  %6s  %s\n",
				it.ID, it.TopicKey, it.Type, it.Params.A, it.Params.B, it.Params.C,
				u.Served, pval, active)
		}
		fmt.Fprintf(out, "\n%d items\n", len(items))
		return nil
	},
}

func init() {
	bankListCmd.Flags().String("topic", "", "Only list items of this topic")

	bankCmd.AddCommand(bankImportCmd)
	bankCmd.AddCommand(bankListCmd)
}
