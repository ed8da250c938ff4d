package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/gizilens/backend/internal/config"
	"github.com/gizilens/backend/internal/logger"
	"github.com/gizilens/backend/internal/repository/postgres"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		dir    string
		out    string
		dryRun bool
	)

	cmd := &cobra.Command{
		Use:           "migrate",
		Short:         "Apply the SQL migrations in one transaction",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadMigrate()
			if err != nil {
				logrus.WithError(err).Error("invalid configuration")
				return err
			}
			log := logger.New(cfg.LogLevel, cfg.LogFormat).WithField("component", "migrate")

			if dir == "" {
				dir = cfg.MigrationsDir
			}

			script, err := postgres.CombineMigrations(os.DirFS(dir))
			if err != nil {
				log.WithError(err).Error("failed to read migrations")
				return err
			}
			log.WithField("files", script.Files).Info("combined migrations")

			if out != "" {
				if err := script.WriteFile(out); err != nil {
					log.WithError(err).Error("failed to write combined script")
					return err
				}
				log.WithField("path", out).Info("combined script written")
			}
			if dryRun {
				return nil
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			db, err := postgres.Open(ctx, cfg.Database, log)
			if err != nil {
				log.WithError(err).Error("database unreachable")
				return err
			}
			defer db.Close()

			if err := postgres.RunMigrations(ctx, db, script); err != nil {
				log.WithError(err).Error("migration failed, all changes rolled back")
				return err
			}
			log.Info("database migration completed successfully")
			return nil
		},
	}

	cmd.Flags().StringVar(&dir, "dir", "", "directory holding NNNN-name.sql files (default MIGRATIONS_DIR)")
	cmd.Flags().StringVar(&out, "out", "", "also write the combined script to this path")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "combine the scripts without touching the database")

	return cmd
}
