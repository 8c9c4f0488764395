package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"

	"github.com/roach88/idocore/internal/config"
	"github.com/roach88/idocore/internal/logging"
	"github.com/roach88/idocore/internal/store"
	"github.com/roach88/idocore/internal/store/memory"
	"github.com/roach88/idocore/internal/store/postgres"
	"github.com/roach88/idocore/internal/tier"
)

// loadConfig reads the configuration named by --config, or the default
// search path when it is empty.
func loadConfig(opts *RootOptions) (*config.Config, error) {
	cfg, err := config.Load(opts.Config)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, ErrCodeConfig+": loading configuration", err)
	}
	return cfg, nil
}

// newLogger builds the process logger from cfg. --verbose forces debug.
func newLogger(opts *RootOptions, cfg *config.Config, out io.Writer) (*logrus.Logger, error) {
	level := cfg.Log.Level
	if opts.Verbose {
		level = "debug"
	}
	log, err := logging.New(level, cfg.Log.Format, out)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, ErrCodeConfig+": configuring logger", err)
	}
	return log, nil
}

// openStore opens the store the configuration selects.
func openStore(ctx context.Context, db config.DatabaseConfig) (store.Store, error) {
	switch db.Driver {
	case config.DriverSQLite:
		st, err := store.Open(db.Path)
		if err != nil {
			return nil, err
		}
		return st, nil
	case config.DriverPostgres:
		st, err := postgres.Open(ctx, db.DSN)
		if err != nil {
			return nil, err
		}
		return st, nil
	case config.DriverMemory:
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("unknown database driver %q", db.Driver)
	}
}

// openConfiguredStore loads the configuration and opens its store, for
// the commands that read the journal directly. A non-empty dbPath selects
// that SQLite file instead of the configured database.
func openConfiguredStore(ctx context.Context, opts *RootOptions, dbPath string) (*config.Config, store.Store, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, nil, err
	}
	if dbPath != "" {
		cfg.Database = config.DatabaseConfig{Driver: config.DriverSQLite, Path: dbPath}
	}
	st, err := openStore(ctx, cfg.Database)
	if err != nil {
		return nil, nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	return cfg, st, nil
}

// tierEngine builds the tier engine from the configured table.
func tierEngine(cfg *config.Config) (*tier.Engine, error) {
	t, err := tier.New(cfg.Tiers.Table())
	if err != nil {
		return nil, WrapExitError(ExitCommandError, ErrCodeConfig+": tier table", err)
	}
	return t, nil
}
