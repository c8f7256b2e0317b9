package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/Veraticus/pickpath/internal/cli"
	"github.com/Veraticus/pickpath/internal/cluster"
	"github.com/Veraticus/pickpath/internal/common"
	"github.com/Veraticus/pickpath/internal/config"
	"github.com/Veraticus/pickpath/internal/export"
	"github.com/Veraticus/pickpath/internal/recordings"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func compileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compile",
		Short: "Learn item proximity from the recorded trips",
		Long: `Compile reads every recording under <data dir>/CSVRecordings, estimates the
walking time between each pair of items, clusters the items and stores the
result as a new snapshot. The cluster CSV and the timestamped JSON files are
written next to the recordings unless --no-export is given.`,
		Example: `  # Compile with the configured strategy
  pickpath compile --dir /srv/store

  # Try k-means instead
  pickpath compile --dir /srv/store --strategy kmeans`,
		RunE: runCompile,
	}

	cmd.Flags().String("dir", "", "data directory holding CSVRecordings (default: server.data_dir)")
	cmd.Flags().StringP("strategy", "s", "", "clustering strategy: hierarchical, kmeans or affinity")
	cmd.Flags().Bool("no-export", false, "store the snapshot without writing export files")
	cmd.Flags().Int("concurrency", 0, "recordings parsed in parallel")

	_ = viper.BindPFlag("recordings.concurrency", cmd.Flags().Lookup("concurrency"))

	return cmd
}

func runCompile(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	dir, _ := cmd.Flags().GetString("dir")
	if dir == "" {
		dir = viper.GetString("server.data_dir")
	}
	dir = config.ExpandPath(dir)

	strategy, _ := cmd.Flags().GetString("strategy")
	if strategy == "" {
		strategy = viper.GetString("cluster.strategy")
	}
	strategy, err := cluster.ParseName(strategy)
	if err != nil {
		return common.NewUserError("unknown clustering strategy", err)
	}
	noExport, _ := cmd.Flags().GetBool("no-export")

	recDir := filepath.Join(dir, recordings.RecordingsDir)
	pattern := viper.GetString("recordings.pattern")
	files, err := recordings.Discover(recDir, pattern)
	if err != nil {
		return common.NewUserError("could not read "+recDir, err)
	}
	if len(files) == 0 {
		return common.NewUserError("no recordings found in "+recDir, recordings.ErrNoRecordings)
	}

	store, err := initStorage(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	e, err := initEngine(ctx, store)
	if err != nil {
		return err
	}

	fmt.Println(cli.FormatTitle("Compiling " + strconv.Itoa(len(files)) + " recordings")) //nolint:forbidigo // User-facing output

	bar := progressbar.NewOptions(len(files),
		progressbar.OptionSetDescription("Parsing"),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)
	records, err := recordings.Compile(ctx, recDir, recordings.Options{
		Pattern:     pattern,
		Concurrency: viper.GetInt("recordings.concurrency"),
		Progress: func(string, int) {
			_ = bar.Add(1)
		},
	})
	_ = bar.Finish()
	if err != nil {
		return fmt.Errorf("failed to compile recordings: %w", err)
	}

	started := time.Now()
	snap, err := e.Compile(ctx, records, strategy)
	if err != nil {
		return noData(err)
	}

	summary := fmt.Sprintf("Snapshot  %s\nStrategy  %s\nItems     %d\nTrips     %d\nClusters  %d\nTook      %s",
		snap.ID, snap.Strategy, len(snap.Items), snap.TripCount, snap.ClusterCount,
		time.Since(started).Round(time.Millisecond))

	if !noExport {
		logPath, err := export.WriteCompiledLog(dir, snap.CreatedAt, records)
		if err != nil {
			return err
		}
		art, err := export.WriteArtifacts(dir, snap)
		if err != nil {
			return err
		}
		summary += fmt.Sprintf("\n\nCompiled  %s\nClusters  %s\nJSON      %s\n          %s",
			logPath, art.ClustersCSV, art.ClustersJSON, art.TimegapsJSON)
	}

	fmt.Println(cli.RenderBox(cli.FormatSuccess("Compile finished"), summary)) //nolint:forbidigo // User-facing output
	return nil
}
