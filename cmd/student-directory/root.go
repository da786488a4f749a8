package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/aanand-mishra/student-directory/internal/asset"
	"github.com/aanand-mishra/student-directory/internal/config"
	"github.com/aanand-mishra/student-directory/internal/directory"
	"github.com/aanand-mishra/student-directory/internal/storage"
	"github.com/aanand-mishra/student-directory/internal/storage/memory"
	"github.com/aanand-mishra/student-directory/internal/storage/sqlite"
)

// rootOptions holds global flags and what PersistentPreRunE builds from them.
type rootOptions struct {
	configPath string

	cfg *config.Config
	log *slog.Logger
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "student-directory",
		Short: "Local student directory",
		Long: `student-directory records students (name, place, contact number, photo)
in a local store and lets you list, search, add, edit and delete them.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(opts.configPath)
			if err != nil {
				return err
			}
			opts.cfg = cfg
			opts.log = setupLogger(cfg.Env, cmd.ErrOrStderr())
			return nil
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "path to the configuration YAML file (default $CONFIG_PATH)")

	cmd.AddCommand(
		newServeCmd(opts),
		newListCmd(opts),
		newShowCmd(opts),
		newAddCmd(opts),
		newEditCmd(opts),
		newDeleteCmd(opts),
	)
	return cmd
}

// openDirectory builds the record store, the asset store and the
// directory service described by the config. closeFn releases the store.
func (o *rootOptions) openDirectory(ctx context.Context) (dir *directory.Service, closeFn func() error, err error) {
	var store storage.Storage
	switch o.cfg.StorageBackend {
	case config.BackendMemory:
		store = memory.New()
	default:
		db, err := sqlite.New(o.cfg)
		if err != nil {
			return nil, nil, fmt.Errorf("initialise storage: %w", err)
		}
		store = db
	}

	assets, err := asset.New(ctx, o.cfg.Assets)
	if err != nil {
		store.Close()
		return nil, nil, fmt.Errorf("initialise asset store: %w", err)
	}

	o.log.Debug("storage initialised",
		slog.String("backend", o.cfg.StorageBackend),
		slog.String("path", o.cfg.StoragePath),
		slog.String("assets", o.cfg.Assets.Backend))

	dir = directory.New(store, assets,
		directory.WithLogger(o.log),
		directory.WithStoreTimeout(o.cfg.StoreTimeout))
	return dir, store.Close, nil
}

// setupLogger returns a *slog.Logger configured for the given environment.
//
// Development (dev): human-readable text output at DEBUG level.
// Production (prod): machine-readable JSON output at INFO level.
func setupLogger(env string, w io.Writer) *slog.Logger {
	if w == nil {
		w = os.Stderr
	}
	switch env {
	case "prod":
		return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: slog.LevelInfo}))
	case "staging":
		return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug}))
	default: // "dev" and anything unrecognised
		return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
}
