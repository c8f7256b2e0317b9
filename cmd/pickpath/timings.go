package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/Veraticus/pickpath/internal/cli"
	"github.com/spf13/cobra"
)

func timingsCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "timings",
		Short: "Show how long recent start-of-trip sorts took",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			timings, err := store.GetSortTimings(ctx, limit)
			if err != nil {
				return err
			}
			if len(timings) == 0 {
				fmt.Println(cli.FormatInfo("No sorts recorded yet")) //nolint:forbidigo // User-facing output
				return nil
			}

			var total time.Duration
			rows := make([][]string, 0, len(timings))
			for _, t := range timings {
				total += t.Duration
				rows = append(rows, []string{
					t.RecordedAt.Local().Format(time.DateTime),
					strconv.Itoa(t.CustomerNumber),
					strconv.Itoa(t.ItemCount),
					t.Duration.String(),
				})
			}

			fmt.Println(cli.FormatTitle("Sort timings")) //nolint:forbidigo // User-facing output
			fmt.Println(cli.RenderTable( //nolint:forbidigo // User-facing output
				[]string{"Recorded", "Customer", "Items", "Duration"}, rows))
			avg := total / time.Duration(len(timings))
			fmt.Println(cli.FormatInfo(fmt.Sprintf("Average over %d sorts: %s", len(timings), avg))) //nolint:forbidigo // User-facing output
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "maximum timings to show (0 for all)")

	return cmd
}
