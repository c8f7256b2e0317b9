package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/Veraticus/pickpath/internal/cli"
	"github.com/Veraticus/pickpath/internal/common"
	"github.com/Veraticus/pickpath/internal/config"
	"github.com/Veraticus/pickpath/internal/engine"
	"github.com/Veraticus/pickpath/internal/recordings"
	"github.com/Veraticus/pickpath/internal/server"
	"github.com/Veraticus/pickpath/internal/watch"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"
)

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Answer cluster and sort requests from scanners",
		Long: `Serve listens for scanner requests over TCP. Each connection carries one
request and gets one reply:

  cluster|<strategy>^<data dir>      recompile from the recordings
  sort|start^<customer>/<items>      order a fresh list
  sort|mid^<picked item>/<items>     reorder what is left
  sort|end^<items>                   echo the list
  notsort|...                        echo the list unchanged

With --watch the server also recompiles whenever new recordings land in
<data dir>/CSVRecordings.`,
		RunE: runServe,
	}

	cmd.Flags().String("addr", "", "listen address (default: server.addr)")
	cmd.Flags().String("dir", "", "data directory used by --watch (default: server.data_dir)")
	cmd.Flags().Bool("watch", false, "recompile when recordings change")
	cmd.Flags().Int("workers", 0, "requests handled at once")

	_ = viper.BindPFlag("server.addr", cmd.Flags().Lookup("addr"))
	_ = viper.BindPFlag("server.data_dir", cmd.Flags().Lookup("dir"))
	_ = viper.BindPFlag("server.watch", cmd.Flags().Lookup("watch"))
	_ = viper.BindPFlag("server.workers", cmd.Flags().Lookup("workers"))

	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	interrupts := cli.NewInterruptHandler(os.Stderr, "Server")
	ctx := interrupts.HandleInterrupts(cmd.Context())
	defer interrupts.Stop()

	cfg, err := config.LoadServerConfig(viper.GetViper())
	if err != nil {
		return common.NewUserError("invalid server configuration", err)
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
	if e.Snapshot() == nil {
		slog.Warn("No snapshot yet; sorts return lists unchanged until the first compile")
	}

	srv := server.New(e, cfg)

	var w *watch.Watcher
	if viper.GetBool("server.watch") {
		w, err = watch.New(
			filepath.Join(cfg.DataDir, recordings.RecordingsDir),
			cfg.Pattern,
			viper.GetDuration("server.watch_debounce"),
			func(ctx context.Context, paths []string) error {
				slog.Info("Recordings changed, recompiling", "files", len(paths))
				err := srv.Cluster(ctx, cfg.Strategy, cfg.DataDir)
				if errors.Is(err, engine.ErrNoData) {
					return nil
				}
				return err
			},
		)
		if err != nil {
			return err
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.ListenAndServe(gctx)
	})
	if w != nil {
		g.Go(func() error {
			return w.Run(gctx)
		})
	}

	return g.Wait()
}
