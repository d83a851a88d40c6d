package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"vidtube/internal/infrastructure/repositories/sqlite"
	"vidtube/pkg/backup"
	"vidtube/pkg/config"
	"vidtube/pkg/logger"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type cli struct {
	configPath string
	cfg        *config.Config
	log        *zap.SugaredLogger
}

func main() {
	c := &cli{}
	root := &cobra.Command{
		Use:           "vidtube-backup",
		Short:         "Manage snapshots of the vidtube SQLite database",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.initialize()
		},
	}
	root.PersistentFlags().StringVarP(&c.configPath, "config", "c", os.Getenv("VIDTUBE_CONFIG"), "path to config.yaml")

	root.AddCommand(c.createCommand(), c.listCommand(), c.pruneCommand(), c.restoreCommand())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func (c *cli) initialize() error {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	zapLogger, err := logger.New(cfg.Logging.Level, "console")
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	c.cfg = cfg
	c.log = zapLogger.Sugar()
	return nil
}

func (c *cli) storage(ctx context.Context) (backup.Storage, error) {
	return backup.NewStorage(ctx, c.cfg.Backup.Backend, c.cfg.Backup.Dir, backup.S3Options{
		Bucket:   c.cfg.Backup.S3.Bucket,
		Region:   c.cfg.Backup.S3.Region,
		Endpoint: c.cfg.Backup.S3.Endpoint,
		Prefix:   c.cfg.Backup.S3.Prefix,
	})
}

// service opens the backup storage; withSource also opens the database.
// The returned cleanup closes whatever was opened.
func (c *cli) service(ctx context.Context, withSource bool) (*backup.Service, func(), error) {
	storage, err := c.storage(ctx)
	if err != nil {
		return nil, nil, err
	}
	if !withSource {
		return backup.NewService(storage, nil), func() {}, nil
	}
	if c.cfg.Storage.Backend != "sqlite" {
		return nil, nil, fmt.Errorf("backups need storage.backend=sqlite, got %q", c.cfg.Storage.Backend)
	}
	store, err := sqlite.NewStore(c.cfg.Storage.SQLitePath, c.log)
	if err != nil {
		return nil, nil, err
	}
	return backup.NewService(storage, store), func() { store.Close() }, nil
}

func (c *cli) createCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "create",
		Short: "Snapshot the database now",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, cleanup, err := c.service(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer cleanup()

			name, err := svc.Create(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), name)
			return nil
		},
	}
}

func (c *cli) listCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored backups, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, cleanup, err := c.service(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer cleanup()

			infos, err := svc.List(cmd.Context())
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tCREATED\tAGE")
			for _, info := range infos {
				age := time.Since(info.CreatedAt).Truncate(time.Minute)
				fmt.Fprintf(w, "%s\t%s\t%s\n", info.Name, info.CreatedAt.Format(time.RFC3339), age)
			}
			return w.Flush()
		},
	}
}

func (c *cli) pruneCommand() *cobra.Command {
	var retention time.Duration
	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete backups older than the retention period",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if retention <= 0 {
				retention = c.cfg.Backup.Retention
			}
			svc, cleanup, err := c.service(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer cleanup()

			deleted, err := svc.Prune(cmd.Context(), retention)
			for _, name := range deleted {
				fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", name)
			}
			return err
		},
	}
	cmd.Flags().DurationVar(&retention, "retention", 0, "keep backups newer than this (default: backup.retention)")
	return cmd
}

func (c *cli) restoreCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "restore NAME DEST",
		Short: "Copy a backup to DEST; stop the server before moving it over the live database",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, cleanup, err := c.service(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer cleanup()

			if err := svc.Restore(cmd.Context(), args[0], args[1]); err != nil {
				return err
			}
			c.log.Infow("backup restored", "backup_name", args[0], "dest", args[1])
			return nil
		},
	}
}
