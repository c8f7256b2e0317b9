package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/Veraticus/pickpath/internal/common"
	"github.com/Veraticus/pickpath/internal/config"
	"github.com/Veraticus/pickpath/internal/engine"
	"github.com/Veraticus/pickpath/internal/storage"
	"github.com/spf13/viper"
)

const defaultDBPath = "$HOME/.local/share/pickpath/pickpath.db"

// initStorage opens the snapshot database and brings its schema up to date.
func initStorage(ctx context.Context) (*storage.SQLiteStorage, error) {
	store, err := openStorage()
	if err != nil {
		return nil, err
	}
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return store, nil
}

func openStorage() (*storage.SQLiteStorage, error) {
	store, err := storage.NewSQLiteStorage(dbPath())
	if err != nil {
		return nil, common.NewUserError("could not open the snapshot database", err)
	}
	return store, nil
}

func dbPath() string {
	path := viper.GetString("database.path")
	if path == "" {
		path = defaultDBPath
	}
	return config.ExpandPath(path)
}

// initEngine builds an engine over store from the loaded configuration and
// restores the latest snapshot, if any.
func initEngine(ctx context.Context, store *storage.SQLiteStorage) (*engine.Engine, error) {
	cfg, err := config.LoadEngineConfig(viper.GetViper())
	if err != nil {
		return nil, common.NewUserError("invalid pipeline configuration", err)
	}
	e := engine.New(store, cfg)
	if err := e.Load(ctx); err != nil {
		return nil, fmt.Errorf("failed to load latest snapshot: %w", err)
	}
	return e, nil
}

// noData turns engine.ErrNoData into a friendlier message.
func noData(err error) error {
	if errors.Is(err, engine.ErrNoData) {
		return common.NewUserError("no snapshot compiled yet; run \"pickpath compile\" first", err)
	}
	return err
}
