package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Veraticus/pickpath/internal/cli"
	"github.com/Veraticus/pickpath/internal/common"
	"github.com/Veraticus/pickpath/internal/model"
	"github.com/spf13/cobra"
)

func snapshotsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "snapshots",
		Aliases: []string{"snapshot"},
		Short:   "Inspect and prune compiled snapshots",
		Example: `  pickpath snapshots list
  pickpath snapshots show 3f2c...
  pickpath snapshots delete 3f2c...`,
	}

	cmd.AddCommand(listSnapshotsCmd())
	cmd.AddCommand(showSnapshotCmd())
	cmd.AddCommand(deleteSnapshotCmd())

	return cmd
}

func listSnapshotsCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List snapshots, newest first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			summaries, err := store.ListSnapshots(ctx, limit)
			if err != nil {
				return err
			}
			if len(summaries) == 0 {
				fmt.Println(cli.FormatInfo("No snapshots yet")) //nolint:forbidigo // User-facing output
				return nil
			}

			rows := make([][]string, 0, len(summaries))
			for _, s := range summaries {
				rows = append(rows, []string{
					s.ID,
					s.CreatedAt.Local().Format(time.DateTime),
					s.Strategy,
					strconv.Itoa(s.ItemCount),
					strconv.Itoa(s.ClusterCount),
					strconv.Itoa(s.TripCount),
				})
			}
			fmt.Println(cli.FormatTitle("Snapshots")) //nolint:forbidigo // User-facing output
			fmt.Println(cli.RenderTable( //nolint:forbidigo // User-facing output
				[]string{"ID", "Created", "Strategy", "Items", "Clusters", "Trips"}, rows))
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum snapshots to list (0 for all)")

	return cmd
}

func showSnapshotCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show [id]",
		Short: "Show the clusters of a snapshot (latest by default)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			var snap *model.Snapshot
			if len(args) == 1 {
				snap, err = store.GetSnapshot(ctx, args[0])
			} else {
				snap, err = store.LatestSnapshot(ctx)
			}
			if errors.Is(err, common.ErrNotFound) {
				return common.NewUserError("snapshot not found", err)
			}
			if err != nil {
				return err
			}

			header := fmt.Sprintf("%s  %s  %d items in %d clusters from %d trips",
				snap.ID, snap.Strategy, len(snap.Items), snap.ClusterCount, snap.TripCount)
			fmt.Println(cli.FormatTitle(header)) //nolint:forbidigo // User-facing output

			rows := make([][]string, 0, len(snap.Assignment))
			for _, id := range snap.Assignment.IDs() {
				cohesion := "-"
				if c, ok := snap.Cohesion[id]; ok {
					cohesion = strconv.FormatFloat(c, 'f', 1, 64)
				}
				rows = append(rows, []string{
					strconv.Itoa(id),
					cohesion,
					strings.Join(snap.Assignment[id], ", "),
				})
			}
			fmt.Println(cli.RenderTable([]string{"Cluster", "Cohesion", "Items"}, rows)) //nolint:forbidigo // User-facing output

			if len(snap.ClusterDistances) > 0 {
				pairs := make([][]string, 0, len(snap.ClusterDistances))
				for _, pair := range snap.ClusterDistances.Pairs() {
					pairs = append(pairs, []string{
						strconv.Itoa(pair.A),
						strconv.Itoa(pair.B),
						strconv.FormatFloat(snap.ClusterDistances[pair], 'f', 1, 64),
					})
				}
				fmt.Println() //nolint:forbidigo // User-facing output
				fmt.Println(cli.RenderTable([]string{"From", "To", "Distance"}, pairs)) //nolint:forbidigo // User-facing output
			}
			return nil
		},
	}
}

func deleteSnapshotCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			if err := store.DeleteSnapshot(ctx, args[0]); err != nil {
				if errors.Is(err, common.ErrNotFound) {
					return common.NewUserError("snapshot not found", err)
				}
				return err
			}
			fmt.Println(cli.FormatSuccess("Deleted snapshot " + args[0])) //nolint:forbidigo // User-facing output
			return nil
		},
	}
}
