package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	_ "github.com/lib/pq"
	"github.com/spf13/cobra"
	"github.com/uptrace/bun"

	"github.com/redmonkez12/locklog/internal/accesslog"
	"github.com/redmonkez12/locklog/internal/card"
	"github.com/redmonkez12/locklog/internal/config"
	"github.com/redmonkez12/locklog/internal/database"
	"github.com/redmonkez12/locklog/internal/device"
	"github.com/redmonkez12/locklog/internal/lock"
	"github.com/redmonkez12/locklog/internal/logging"
	"github.com/redmonkez12/locklog/internal/project"
	"github.com/redmonkez12/locklog/internal/validation"
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "locklog-admin",
		Short:         "Maintenance commands for a locklog deployment",
		SilenceUsage:  true,
	}

	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE:  runMigrate,
	}
	migrateStatusCmd := &cobra.Command{
		Use:   "status",
		Short: "Print the state of every migration",
		RunE:  runMigrateStatus,
	}
	migrateCmd.AddCommand(migrateStatusCmd)

	reportCmd := &cobra.Command{
		Use:   "report",
		Short: "Export the score report as CSV",
		RunE:  runReport,
	}
	reportCmd.Flags().StringP("out", "o", "", "Output file (default stdout)")

	tokenCmd := &cobra.Command{
		Use:   "token <lock-uid>",
		Short: "Issue a device token for a registered lock",
		Args:  cobra.ExactArgs(1),
		RunE:  runToken,
	}

	rootCmd.AddCommand(migrateCmd, reportCmd, tokenCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	return withDB(func(_ *config.Config, db *bun.DB) error {
		if err := database.Migrate(cmd.Context(), db.DB); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
		return nil
	})
}

func runMigrateStatus(cmd *cobra.Command, _ []string) error {
	return withDB(func(_ *config.Config, db *bun.DB) error {
		return database.MigrationStatus(cmd.Context(), db.DB)
	})
}

func runReport(cmd *cobra.Command, _ []string) error {
	out, _ := cmd.Flags().GetString("out")

	return withDB(func(cfg *config.Config, db *bun.DB) error {
		timeout := cfg.Database.OperationTimeout
		svc := accesslog.NewService(
			accesslog.NewRepository(db, timeout),
			card.NewRepository(db, timeout),
			project.NewRepository(db, timeout),
			validation.New(cfg.Auth.RequiredEmailMarker),
			logging.NewLogger(cfg.Server.IsDevelopment()),
		)

		rows, err := svc.Report(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to build report: %w", err)
		}

		w := cmd.OutOrStdout()
		if out != "" {
			f, err := os.Create(out)
			if err != nil {
				return fmt.Errorf("create %s: %w", out, err)
			}
			defer f.Close()
			w = f
		}

		if err := writeReportCSV(w, rows); err != nil {
			return err
		}
		if out != "" {
			fmt.Fprintf(cmd.ErrOrStderr(), "wrote %d rows to %s\n", len(rows), out)
		}
		return nil
	})
}

func runToken(cmd *cobra.Command, args []string) error {
	return withDB(func(cfg *config.Config, db *bun.DB) error {
		l, err := lock.NewRepository(db, cfg.Database.OperationTimeout).GetByUID(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("lock %q: %w", args[0], err)
		}

		tokens, err := device.NewTokenService(cfg.Auth.PasetoKey, cfg.Auth.DeviceTokenDuration)
		if err != nil {
			return err
		}
		token, expires, err := tokens.Issue(l.UID)
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.ErrOrStderr(), "token for %s expires %s\n", l.UID, expires.Format("2006-01-02 15:04 MST"))
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	})
}

// withDB loads config, opens the database and runs fn.
func withDB(fn func(cfg *config.Config, db *bun.DB) error) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	sqlDB, err := sql.Open("postgres", cfg.Database.ConnectionString())
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	if err := sqlDB.PingContext(context.Background()); err != nil {
		sqlDB.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	db := database.NewBunDB(sqlDB)
	defer db.Close()

	return fn(cfg, db)
}
