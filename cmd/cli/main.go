package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jakechorley/soldier-roster/cmd/cli/commands"
	"github.com/jakechorley/soldier-roster/internal/config"
	"github.com/jakechorley/soldier-roster/pkg/core/services"
	"github.com/jakechorley/soldier-roster/pkg/db"
	"github.com/jakechorley/soldier-roster/pkg/postgres"
	"github.com/jakechorley/soldier-roster/pkg/sqlite"
	"github.com/jakechorley/soldier-roster/pkg/utils/logging"
)

var (
	env     string
	verbose bool
	app     = &commands.AppContext{}
	closeDB func()
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "roster",
		Short: "Soldier roster - schedule base and home days for an event",
		Long: `A CLI tool for building day-by-day ON_BASE / AT_HOME schedules that keep every day staffed
while respecting rest, travel and fairness rules.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initApp()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if closeDB != nil {
				closeDB()
			}
			if app.Logger != nil {
				_ = app.Logger.Sync()
			}
		},
	}

	rootCmd.PersistentFlags().StringVarP(&env, "env", "e", "", "Environment (required: test, prod, etc.)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log debug output to the console")
	_ = rootCmd.MarkPersistentFlagRequired("env")

	rootCmd.AddCommand(commands.EventCmd(app))
	rootCmd.AddCommand(commands.RosterCmd(app))
	rootCmd.AddCommand(commands.ValidateCmd(app))
	rootCmd.AddCommand(commands.SolveCmd(app))
	rootCmd.AddCommand(commands.RunsCmd(app))
	rootCmd.AddCommand(commands.PublishCmd(app))
	rootCmd.AddCommand(commands.ExportCmd(app))

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// initApp sets up logger, config, database and the run manager
func initApp() error {
	var err error
	app.Env = env
	app.Ctx = context.Background()

	app.Logger, err = logging.InitLogger(env, logging.Options{Verbose: verbose})
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	app.Logger.Debug("Starting application", zap.String("environment", env))

	app.Cfg, err = config.LoadWithEnv(env)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	app.Logger.Debug("Configuration loaded", zap.String("backend", app.Cfg.Storage.Backend))

	pol, err := app.Cfg.PenaltyPolicy()
	if err != nil {
		return err
	}
	engineOpts, err := app.Cfg.EngineOptions()
	if err != nil {
		return err
	}
	app.Options = services.RunOptions{Policy: pol, Engine: engineOpts}

	app.Database, closeDB, err = openDatabase(app.Ctx, app.Cfg.Storage)
	if err != nil {
		return err
	}
	app.Logger.Debug("Database ready")

	app.Manager = services.NewManager(app.Database, app.Options, app.Logger)

	recovered, err := app.Manager.RecoverStale(app.Ctx, staleRunAge(engineOpts.TimeBudget))
	if err != nil {
		return fmt.Errorf("failed to recover stale runs: %w", err)
	}
	if recovered > 0 {
		app.Logger.Warn("Marked interrupted runs as FAILURE", zap.Int("runs", recovered))
	}
	return nil
}

// staleRunAge is how long an IN_PROGRESS run may go uncommitted before it counts as abandoned.
// Another process may still be searching within its time budget.
func staleRunAge(timeBudget time.Duration) time.Duration {
	if timeBudget <= 0 {
		return time.Hour
	}
	return 2*timeBudget + time.Minute
}

// openDatabase connects to the configured backend and applies pending migrations
func openDatabase(ctx context.Context, storage config.StorageConfig) (db.Database, func(), error) {
	switch storage.Backend {
	case config.BackendPostgres:
		pg, err := postgres.NewDB(ctx, storage.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		if err := pg.RunMigrations(ctx); err != nil {
			pg.Close()
			return nil, nil, fmt.Errorf("failed to run migrations: %w", err)
		}
		return pg, pg.Close, nil

	case config.BackendSQLite:
		// Open applies the migrations itself
		lite, err := sqlite.Open(ctx, storage.SQLitePath)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open database: %w", err)
		}
		return lite, func() { _ = lite.Close() }, nil
	}
	return nil, nil, fmt.Errorf("unknown storage backend %q", storage.Backend)
}
