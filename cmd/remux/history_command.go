package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"remux/internal/history"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var showItems bool

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show past conversion batches",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if !cfg.History.Enabled {
				return fmt.Errorf("history is disabled in the configuration")
			}

			store, err := history.Open(cmd.Context(), cfg.HistoryDBPath(), history.WithKeepLast(cfg.History.KeepLast))
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			records, err := store.List(cmd.Context(), limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(records) == 0 {
				fmt.Fprintln(out, "No recorded batches")
				return nil
			}

			rows := make([][]string, 0, len(records))
			for _, record := range records {
				rows = append(rows, []string{
					record.FinishedAt.Local().Format(time.DateTime),
					record.Outcome,
					strconv.Itoa(record.Total),
					strconv.Itoa(record.Done),
					strconv.Itoa(record.Failed),
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Finished", "Outcome", "Files", "Done", "Failed"},
				rows,
				3, 4, 5,
			))

			if showItems {
				for _, record := range records {
					fmt.Fprintf(out, "\n%s (%s)\n", record.FinishedAt.Local().Format(time.DateTime), record.Outcome)
					for _, item := range record.Items {
						if item.State == "done" {
							fmt.Fprintf(out, "  done %s -> %s\n", item.DisplayName, item.OutputPath)
						} else {
							fmt.Fprintf(out, "  failed %s: %s\n", item.DisplayName, item.ErrorDetail)
						}
					}
				}
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "Maximum number of batches to show (0 for all)")
	cmd.Flags().BoolVar(&showItems, "items", false, "Show per-file results for each batch")
	return cmd
}
