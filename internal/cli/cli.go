// Package cli содержит команды утилиты lifecyclectl: применение миграций,
// ручной тик планировщика и расчёт статуса заказа.
package cli

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/magabrotheeeer/mealkit-lifecycle/internal/app/lifecycle"
	"github.com/magabrotheeeer/mealkit-lifecycle/internal/config"
	"github.com/magabrotheeeer/mealkit-lifecycle/internal/lib/sl"
	"github.com/magabrotheeeer/mealkit-lifecycle/internal/migrations"
	orderservice "github.com/magabrotheeeer/mealkit-lifecycle/internal/services/order"
	"github.com/magabrotheeeer/mealkit-lifecycle/internal/storage/repository"
)

type options struct {
	configPath string
}

// NewRootCmd создаёт корневую команду lifecyclectl.
func NewRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:           "lifecyclectl",
		Short:         "Operate the meal-kit lifecycle engine",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "config file path (defaults to $CONFIG_PATH)")

	root.AddCommand(newMigrateCmd(opts), newTickCmd(opts), newStatusCmd())
	return root
}

// Execute запускает CLI и завершает процесс с кодом 1 при ошибке.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func (o *options) load(cmd *cobra.Command) (*config.Config, *slog.Logger, error) {
	_ = godotenv.Load()

	path := o.configPath
	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	if path == "" {
		return nil, nil, errors.New("config path is not set: use --config or CONFIG_PATH")
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, nil, err
	}
	return cfg, sl.SetupLogger(cfg.Env, cmd.ErrOrStderr()), nil
}

func newMigrateCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := opts.load(cmd)
			if err != nil {
				return err
			}
			db, err := repository.New(cfg.StorageConnectionString)
			if err != nil {
				return err
			}
			defer db.Close()

			if err := migrations.Run(db.DB, cfg.MigrationsPath); err != nil {
				return err
			}
			version, dirty, err := migrations.Version(db.DB, cfg.MigrationsPath)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "schema version %d (dirty=%t)\n", version, dirty)
			return nil
		},
	}
}

func newTickCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "tick",
		Short: "Run one scheduler tick against the configured database",
		Long: `Runs the order and subscription jobs once, exactly as the background
scheduler does, including the distributed lease when it is enabled.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := opts.load(cmd)
			if err != nil {
				return err
			}
			db, err := repository.New(cfg.StorageConnectionString)
			if err != nil {
				return err
			}
			defer db.Close()
			if err := repository.CheckDatabaseReady(db); err != nil {
				return fmt.Errorf("database is not migrated: %w", err)
			}

			engine, err := lifecycle.NewEngine(cmd.Context(), cfg, db, prometheus.NewRegistry(), log)
			if err != nil {
				return err
			}
			defer engine.Close()

			if err := engine.NewScheduler(cfg.Scheduler).TickNow(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "tick complete")
			return nil
		},
	}
}

func newStatusCmd() *cobra.Command {
	var (
		orderTime string
		at        string
		stage     time.Duration
	)
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Print the status an order placed at --order-time has at --at",
		Long: `Computes the delivery status from elapsed time only.

Examples:
  lifecyclectl status --order-time 2026-03-10T12:00:00Z --at 2026-03-10T12:00:45Z
  lifecyclectl status --order-time 2026-03-10T12:00:00Z --stage 1m`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			placed, err := time.Parse(time.RFC3339, orderTime)
			if err != nil {
				return fmt.Errorf("invalid --order-time: %w", err)
			}
			now := time.Now().UTC()
			if at != "" {
				if now, err = time.Parse(time.RFC3339, at); err != nil {
					return fmt.Errorf("invalid --at: %w", err)
				}
			}
			status := orderservice.Timeline{Stage: stage}.Status(placed, now)
			fmt.Fprintln(cmd.OutOrStdout(), status)
			return nil
		},
	}
	cmd.Flags().StringVar(&orderTime, "order-time", "", "order time in RFC3339")
	cmd.Flags().StringVar(&at, "at", "", "evaluation time in RFC3339 (defaults to now)")
	cmd.Flags().DurationVar(&stage, "stage", orderservice.DefaultStageDuration, "duration of each delivery stage")
	_ = cmd.MarkFlagRequired("order-time")
	return cmd
}
